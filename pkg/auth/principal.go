package auth

import (
	"context"

	"tourhub/pkg/model"
)

// Principal is the authenticated session identity. It is resolved once
// per request by the auth middleware and passed explicitly into every
// service operation, so authorization checks never depend on ambient
// state.
type Principal struct {
	UserID string
	Role   model.Role
	// TokenID is the jti of the session token, used for revocation.
	TokenID string
}

type principalKey struct{}

func WithPrincipal(ctx context.Context, p *Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

// PrincipalFrom returns the request principal, or nil for anonymous
// requests on optional-auth routes.
func PrincipalFrom(ctx context.Context) *Principal {
	p, _ := ctx.Value(principalKey{}).(*Principal)
	return p
}
