package middleware

import (
	"net/http"
	"strings"

	"tourhub/pkg/auth"
	apperrors "tourhub/pkg/errors"
	httputil "tourhub/pkg/http"
	"tourhub/pkg/logger"
	"tourhub/pkg/model"

	"github.com/julienschmidt/httprouter"
)

const SessionCookieName = "tourhub_session"

// extractToken prefers the Authorization header and falls back to the
// session cookie the browser client relies on.
func extractToken(r *http.Request) string {
	if header := r.Header.Get("Authorization"); strings.HasPrefix(header, "Bearer ") {
		return strings.TrimPrefix(header, "Bearer ")
	}
	if cookie, err := r.Cookie(SessionCookieName); err == nil {
		return cookie.Value
	}
	return ""
}

// RequireAuth rejects requests without a valid session and attaches the
// principal to the request context.
func RequireAuth(manager *auth.Manager, log *logger.Logger) func(httprouter.Handle) httprouter.Handle {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			token := extractToken(r)
			if token == "" {
				writeAuthError(w, log, r, apperrors.Unauthorized("Authentication required"))
				return
			}

			principal, err := manager.Verify(r.Context(), token)
			if err != nil {
				writeAuthError(w, log, r, err)
				return
			}

			next(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)), ps)
		}
	}
}

// OptionalAuth attaches a principal when a valid session is present and
// lets anonymous requests through untouched. An invalid token is still
// rejected: a client that sends credentials should learn they expired.
func OptionalAuth(manager *auth.Manager, log *logger.Logger) func(httprouter.Handle) httprouter.Handle {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			token := extractToken(r)
			if token == "" {
				next(w, r, ps)
				return
			}

			principal, err := manager.Verify(r.Context(), token)
			if err != nil {
				writeAuthError(w, log, r, err)
				return
			}

			next(w, r.WithContext(auth.WithPrincipal(r.Context(), principal)), ps)
		}
	}
}

// RequireRole gates a route to the given roles. It must run inside
// RequireAuth.
func RequireRole(log *logger.Logger, roles ...model.Role) func(httprouter.Handle) httprouter.Handle {
	return func(next httprouter.Handle) httprouter.Handle {
		return func(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
			principal := auth.PrincipalFrom(r.Context())
			if principal == nil {
				writeAuthError(w, log, r, apperrors.Unauthorized("Authentication required"))
				return
			}

			for _, role := range roles {
				if principal.Role == role {
					next(w, r, ps)
					return
				}
			}

			writeAuthError(w, log, r, apperrors.Forbidden("Insufficient role for this operation"))
		}
	}
}

func writeAuthError(w http.ResponseWriter, log *logger.Logger, r *http.Request, err error) {
	if writeErr := httputil.WriteError(w, err); writeErr != nil {
		log.Error("failed to write auth error response",
			"request_id", requestIDFrom(r),
			"error", writeErr,
		)
	}
}
