package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/shelfd/shelfd/pkg/models"
	"github.com/shelfd/shelfd/pkg/share"
)

// ShareService is the slice of the share service the handler needs.
// Implemented by *share.Service.
type ShareService interface {
	Create(ctx context.Context, in share.CreateInput) (*models.ShareLink, error)
	Get(ctx context.Context, id string) (*models.ShareLink, error)
	List(ctx context.Context, libraryID string) ([]*models.ShareLink, error)
	ListByCreator(ctx context.Context, createdBy string) ([]*models.ShareLink, error)
	Revoke(ctx context.Context, id, actorID string) error
	Delete(ctx context.Context, id string) error
	Access(ctx context.Context, token, password string) (*share.Grant, error)
}

// ShareHandler serves share link management and the public access
// endpoint.
type ShareHandler struct {
	svc ShareService

	defaultExpiryDays int
	maxExpiryDays     int
}

// NewShareHandler creates a share handler. Expiry days clamp requested
// lifetimes; zero values fall back to 30 and 90 days.
func NewShareHandler(svc ShareService, defaultExpiryDays, maxExpiryDays int) *ShareHandler {
	if defaultExpiryDays <= 0 {
		defaultExpiryDays = 30
	}
	if maxExpiryDays <= 0 {
		maxExpiryDays = 90
	}
	return &ShareHandler{svc: svc, defaultExpiryDays: defaultExpiryDays, maxExpiryDays: maxExpiryDays}
}

type createShareRequest struct {
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	ShareType  string `json:"share_type"`

	Password         string `json:"password"`
	ExpiresInDays    int    `json:"expires_in_days"`
	MaxAccessCount   *int   `json:"max_access_count"`
	AllowGuestAccess bool   `json:"allow_guest_access"`
	NotifyOnAccess   bool   `json:"notify_on_access"`
}

// Create handles POST /v1/libraries/{libraryID}/shares. The requested
// lifetime is clamped to the configured maximum; zero takes the
// default.
func (h *ShareHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createShareRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.TargetID == "" {
		BadRequest(w, "target_id is required")
		return
	}

	days := req.ExpiresInDays
	if days <= 0 {
		days = h.defaultExpiryDays
	}
	if days > h.maxExpiryDays {
		days = h.maxExpiryDays
	}
	expiresAt := time.Now().UTC().AddDate(0, 0, days)

	link, err := h.svc.Create(r.Context(), share.CreateInput{
		TargetType:       req.TargetType,
		TargetID:         req.TargetID,
		LibraryID:        chi.URLParam(r, "libraryID"),
		ShareType:        req.ShareType,
		Password:         req.Password,
		ExpiresAt:        &expiresAt,
		MaxAccessCount:   req.MaxAccessCount,
		AllowGuestAccess: req.AllowGuestAccess,
		NotifyOnAccess:   req.NotifyOnAccess,
		ActorID:          actorID(r),
	})
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONCreated(w, link)
}

// List handles GET /v1/libraries/{libraryID}/shares.
func (h *ShareHandler) List(w http.ResponseWriter, r *http.Request) {
	links, err := h.svc.List(r.Context(), chi.URLParam(r, "libraryID"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, map[string]any{"shares": links})
}

// ListMine handles GET /v1/shares and returns the caller's links
// across libraries.
func (h *ShareHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	links, err := h.svc.ListByCreator(r.Context(), actorID(r))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, map[string]any{"shares": links})
}

// Get handles GET /v1/shares/{shareID}.
func (h *ShareHandler) Get(w http.ResponseWriter, r *http.Request) {
	link, err := h.svc.Get(r.Context(), chi.URLParam(r, "shareID"))
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, link)
}

// Revoke handles POST /v1/shares/{shareID}/revoke. Revocation keeps
// the row for auditing; Delete removes it.
func (h *ShareHandler) Revoke(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Revoke(r.Context(), chi.URLParam(r, "shareID"), actorID(r)); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteNoContent(w)
}

// Delete handles DELETE /v1/shares/{shareID}.
func (h *ShareHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), chi.URLParam(r, "shareID")); err != nil {
		WriteError(w, r, err)
		return
	}
	WriteNoContent(w)
}

type accessShareRequest struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

// Access handles POST /v1/shares/access. The route is unauthenticated:
// possession of the share token is the credential. A valid exchange
// charges the access budget and returns a short-lived access token.
func (h *ShareHandler) Access(w http.ResponseWriter, r *http.Request) {
	var req accessShareRequest
	if !decodeJSONBody(w, r, &req) {
		return
	}
	if req.Token == "" {
		BadRequest(w, "token is required")
		return
	}

	grant, err := h.svc.Access(r.Context(), req.Token, req.Password)
	if err != nil {
		WriteError(w, r, err)
		return
	}
	WriteJSONOK(w, grant)
}
