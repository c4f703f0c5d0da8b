package share

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/shelfd/shelfd/internal/logger"
	"github.com/shelfd/shelfd/pkg/audit"
	"github.com/shelfd/shelfd/pkg/models"
	"github.com/shelfd/shelfd/pkg/notify"
)

// Grant is the result of a successful access: the link plus a
// short-lived signed token scoped to the link's share type.
type Grant struct {
	Link        *models.ShareLink `json:"link"`
	AccessToken string            `json:"access_token"`
	ExpiresAt   time.Time         `json:"expires_at"`

	// GuestID is set when guest provisioning is wired and the link
	// allows guest access.
	GuestID string `json:"guest_id,omitempty"`
}

// Claims are the verified contents of an access token.
type Claims struct {
	ShareID    string `json:"sub"`
	ShareType  string `json:"share_type"`
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`
	LibraryID  string `json:"library_id"`

	jwt.RegisteredClaims
}

// Access checks the link's full predicate and, on success, charges the
// access budget and issues an access token. Failures are typed and not
// retriable: a revoked, expired or consumed link stays that way.
func (s *Service) Access(ctx context.Context, token, password string) (*Grant, error) {
	link, err := s.store.GetShareLinkByToken(ctx, token)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	switch {
	case !link.IsActive:
		return nil, models.ErrShareLinkRevoked
	case link.IsExpired(now):
		return nil, models.ErrShareLinkExpired
	case link.IsConsumed():
		return nil, models.ErrShareLinkConsumed
	}
	if link.HasPassword() {
		if err := bcrypt.CompareHashAndPassword([]byte(link.PasswordHash), []byte(password)); err != nil {
			return nil, models.ErrSharePassword
		}
	}

	if err := s.store.RecordShareAccess(ctx, link.ID, now); err != nil {
		return nil, err
	}
	link.AccessCount++
	link.LastAccessedAt = &now

	ttl := s.cfg.ViewTokenTTL
	if link.ShareType != models.ShareTypeView {
		ttl = s.cfg.ActionTokenTTL
	}
	expiresAt := now.Add(ttl)
	accessToken, err := s.signAccessToken(link, now, expiresAt)
	if err != nil {
		return nil, err
	}

	grant := &Grant{Link: link, AccessToken: accessToken, ExpiresAt: expiresAt}
	if link.AllowGuestAccess && s.guests != nil {
		guestID, err := s.guests.ProvisionGuest(ctx, link)
		if err != nil {
			logger.WarnCtx(ctx, "guest provisioning failed", "share_id", link.ID, "error", err)
		} else {
			grant.GuestID = guestID
		}
	}

	s.record(ctx, audit.Entry{
		ActorType:  audit.ActorUser,
		Action:     audit.ActionShareAccessed,
		TargetType: link.TargetType,
		TargetID:   link.TargetID,
		LibraryID:  link.LibraryID,
		Details: map[string]any{
			"share_id":     link.ID,
			"share_type":   link.ShareType,
			"access_count": link.AccessCount,
		},
	})
	s.notifyOwner(ctx, link)

	return grant, nil
}

func (s *Service) signAccessToken(link *models.ShareLink, now, expiresAt time.Time) (string, error) {
	claims := Claims{
		ShareID:    link.ID,
		ShareType:  link.ShareType,
		TargetType: link.TargetType,
		TargetID:   link.TargetID,
		LibraryID:  link.LibraryID,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.cfg.Secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign access token: %w", err)
	}
	return signed, nil
}

// VerifyAccessToken parses and validates a previously issued access
// token.
func (s *Service) VerifyAccessToken(tokenString string) (*Claims, error) {
	var claims Claims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return s.cfg.Secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, models.ErrShareLinkExpired
		}
		return nil, fmt.Errorf("invalid access token: %w", err)
	}
	if !token.Valid {
		return nil, errors.New("invalid access token")
	}
	return &claims, nil
}

// notifyOwner sends the link creator an in-app notification when the
// link asks for one.
func (s *Service) notifyOwner(ctx context.Context, link *models.ShareLink) {
	if !link.NotifyOnAccess || s.notifier == nil {
		return
	}
	if _, err := s.notifier.Notify(ctx, notify.Notification{
		UserID:     link.CreatedBy,
		Kind:       models.NotificationShareAccessed,
		Title:      "Share link accessed",
		Message:    fmt.Sprintf("Your %s share was accessed.", link.TargetType),
		LibraryID:  link.LibraryID,
		TargetType: link.TargetType,
		TargetID:   link.TargetID,
	}); err != nil {
		logger.WarnCtx(ctx, "failed to notify share owner", "share_id", link.ID, "error", err)
	}
}
