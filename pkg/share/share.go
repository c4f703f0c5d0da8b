// Package share issues and enforces share links: externally addressable
// capabilities pointing at a file, directory or library.
//
// The link token is the capability. Passwords, expiry and access budgets
// narrow it. A successful access exchanges the link token for a
// short-lived signed access token scoped to the link's share type.
package share

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/shelfd/shelfd/pkg/audit"
	"github.com/shelfd/shelfd/pkg/models"
	"github.com/shelfd/shelfd/pkg/notify"
)

// tokenBytes is the entropy of a link token. 32 bytes encodes to a
// 43-character URL-safe string.
const tokenBytes = 32

// Store is the slice of the metadata store the service needs.
type Store interface {
	CreateShareLink(ctx context.Context, link *models.ShareLink) (string, error)
	GetShareLink(ctx context.Context, id string) (*models.ShareLink, error)
	GetShareLinkByToken(ctx context.Context, token string) (*models.ShareLink, error)
	ListShareLinks(ctx context.Context, libraryID string) ([]*models.ShareLink, error)
	ListShareLinksByCreator(ctx context.Context, createdBy string) ([]*models.ShareLink, error)
	RevokeShareLink(ctx context.Context, id string) error
	RecordShareAccess(ctx context.Context, id string, now time.Time) error
	DeleteShareLink(ctx context.Context, id string) error
}

// GuestProvisioner creates ephemeral guest identities for links with
// guest access enabled. Provisioning failures never block the access.
type GuestProvisioner interface {
	ProvisionGuest(ctx context.Context, link *models.ShareLink) (string, error)
}

// Config carries the service's tunables.
type Config struct {
	// Secret signs access tokens. Required.
	Secret []byte

	// ViewTokenTTL bounds view access tokens (default 1h).
	ViewTokenTTL time.Duration

	// ActionTokenTTL bounds download and edit access tokens
	// (default 24h).
	ActionTokenTTL time.Duration
}

func (c Config) withDefaults() Config {
	if c.ViewTokenTTL <= 0 {
		c.ViewTokenTTL = time.Hour
	}
	if c.ActionTokenTTL <= 0 {
		c.ActionTokenTTL = 24 * time.Hour
	}
	return c
}

// Service manages share links. audit, notifier and guests may be nil.
type Service struct {
	store    Store
	audit    *audit.Recorder
	notifier *notify.Service
	guests   GuestProvisioner
	cfg      Config
}

// NewService wires the share service.
func NewService(store Store, rec *audit.Recorder, notifier *notify.Service, guests GuestProvisioner, cfg Config) (*Service, error) {
	if len(cfg.Secret) == 0 {
		return nil, errors.New("share token secret is required")
	}
	return &Service{
		store:    store,
		audit:    rec,
		notifier: notifier,
		guests:   guests,
		cfg:      cfg.withDefaults(),
	}, nil
}

// CreateInput describes a new share link.
type CreateInput struct {
	TargetType string // file, directory, library
	TargetID   string
	LibraryID  string
	ShareType  string // view (default), download, edit

	Password         string
	ExpiresAt        *time.Time
	MaxAccessCount   *int
	AllowGuestAccess bool
	NotifyOnAccess   bool

	ActorID string
}

// Create mints a link with a fresh token. The password, when set, is
// stored only as a bcrypt hash.
func (s *Service) Create(ctx context.Context, in CreateInput) (*models.ShareLink, error) {
	switch in.TargetType {
	case models.ShareTargetFile, models.ShareTargetDirectory, models.ShareTargetLibrary:
	default:
		return nil, fmt.Errorf("unknown share target type %q", in.TargetType)
	}
	shareType := in.ShareType
	if shareType == "" {
		shareType = models.ShareTypeView
	}
	switch shareType {
	case models.ShareTypeView, models.ShareTypeDownload, models.ShareTypeEdit:
	default:
		return nil, fmt.Errorf("unknown share type %q", shareType)
	}

	token, err := generateToken()
	if err != nil {
		return nil, err
	}

	link := &models.ShareLink{
		ID:               uuid.NewString(),
		Token:            token,
		TargetType:       in.TargetType,
		TargetID:         in.TargetID,
		LibraryID:        in.LibraryID,
		ShareType:        shareType,
		ExpiresAt:        in.ExpiresAt,
		MaxAccessCount:   in.MaxAccessCount,
		AllowGuestAccess: in.AllowGuestAccess,
		NotifyOnAccess:   in.NotifyOnAccess,
		IsActive:         true,
		CreatedBy:        in.ActorID,
	}
	if in.Password != "" {
		hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
		if err != nil {
			return nil, fmt.Errorf("failed to hash share password: %w", err)
		}
		link.PasswordHash = string(hash)
	}

	if _, err := s.store.CreateShareLink(ctx, link); err != nil {
		return nil, err
	}

	s.record(ctx, audit.Entry{
		ActorID:    in.ActorID,
		Action:     audit.ActionShareCreated,
		TargetType: in.TargetType,
		TargetID:   in.TargetID,
		LibraryID:  in.LibraryID,
		Details: map[string]any{
			"share_id":   link.ID,
			"share_type": shareType,
		},
	})
	return link, nil
}

// generateToken returns a URL-safe random token with 256 bits of
// entropy.
func generateToken() (string, error) {
	buf := make([]byte, tokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate share token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// Get returns a link by id.
func (s *Service) Get(ctx context.Context, id string) (*models.ShareLink, error) {
	return s.store.GetShareLink(ctx, id)
}

// List returns a library's links.
func (s *Service) List(ctx context.Context, libraryID string) ([]*models.ShareLink, error) {
	return s.store.ListShareLinks(ctx, libraryID)
}

// ListByCreator returns the links a user created.
func (s *Service) ListByCreator(ctx context.Context, createdBy string) ([]*models.ShareLink, error) {
	return s.store.ListShareLinksByCreator(ctx, createdBy)
}

// Revoke deactivates a link. Revocation is permanent; a new link must
// be created to share again.
func (s *Service) Revoke(ctx context.Context, id, actorID string) error {
	link, err := s.store.GetShareLink(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.RevokeShareLink(ctx, id); err != nil {
		return err
	}
	s.record(ctx, audit.Entry{
		ActorID:    actorID,
		Action:     audit.ActionShareRevoked,
		TargetType: link.TargetType,
		TargetID:   link.TargetID,
		LibraryID:  link.LibraryID,
		Details:    map[string]any{"share_id": id},
	})
	return nil
}

// Delete removes the link row entirely.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.DeleteShareLink(ctx, id)
}

func (s *Service) record(ctx context.Context, entry audit.Entry) {
	if s.audit != nil {
		s.audit.Record(ctx, entry)
	}
}
