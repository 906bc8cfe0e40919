package auth

import (
	"context"
	"time"

	apperrors "tourhub/pkg/errors"
	"tourhub/pkg/model"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type Claims struct {
	Role model.Role `json:"role"`
	jwt.RegisteredClaims
}

// RevocationStore remembers revoked token ids until their natural expiry.
type RevocationStore interface {
	Revoke(ctx context.Context, tokenID string, ttl time.Duration) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

// Manager issues and verifies HS256 session tokens. Logout works by
// denylisting the token id rather than by shortening expiry.
type Manager struct {
	secret []byte
	ttl    time.Duration
	store  RevocationStore
}

func NewManager(secret string, ttl time.Duration, store RevocationStore) *Manager {
	return &Manager{
		secret: []byte(secret),
		ttl:    ttl,
		store:  store,
	}
}

// Issue creates a signed session token for the user.
func (m *Manager) Issue(userID string, role model.Role) (string, error) {
	now := time.Now()
	claims := Claims{
		Role: role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			ID:        uuid.New().String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(m.ttl)),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(m.secret)
	if err != nil {
		return "", apperrors.Internal("Failed to sign session token", err)
	}
	return signed, nil
}

// Verify parses the token, checks its signature and expiry, and rejects
// revoked sessions. Every failure maps to an authentication error.
func (m *Manager) Verify(ctx context.Context, tokenStr string) (*Principal, error) {
	token, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return m.secret, nil
	})
	if err != nil {
		return nil, apperrors.Unauthorized("Invalid or expired session")
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, apperrors.Unauthorized("Invalid or expired session")
	}

	if m.store != nil {
		revoked, err := m.store.IsRevoked(ctx, claims.ID)
		if err != nil {
			return nil, apperrors.Internal("Failed to check session revocation", err)
		}
		if revoked {
			return nil, apperrors.Unauthorized("Session has been logged out")
		}
	}

	return &Principal{
		UserID:  claims.Subject,
		Role:    claims.Role,
		TokenID: claims.ID,
	}, nil
}

// Revoke invalidates the session until the token would have expired anyway.
func (m *Manager) Revoke(ctx context.Context, p *Principal) error {
	if m.store == nil || p == nil {
		return nil
	}
	if err := m.store.Revoke(ctx, p.TokenID, m.ttl); err != nil {
		return apperrors.Internal("Failed to revoke session", err)
	}
	return nil
}
