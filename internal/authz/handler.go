package authz

import (
	"net/http"

	"tourhub/pkg/auth"
	httputil "tourhub/pkg/http"
	"tourhub/pkg/logger"
	"tourhub/pkg/middleware"
	"tourhub/pkg/model"

	"github.com/julienschmidt/httprouter"
)

// NavigationHandler serves the role-resolved menu and the enum catalog
// frontend clients render from.
type NavigationHandler struct {
	tokens *auth.Manager
	log    *logger.Logger
}

func NewNavigationHandler(tokens *auth.Manager, log *logger.Logger) *NavigationHandler {
	return &NavigationHandler{
		tokens: tokens,
		log:    log,
	}
}

func (h *NavigationHandler) Navigation(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var role model.Role
	if principal := auth.PrincipalFrom(r.Context()); principal != nil {
		role = principal.Role
	}

	if err := httputil.WriteSuccess(w, ResolveNavigation(role)); err != nil {
		h.log.Error("failed to write success response", "handler", "Navigation", "operation", "WriteSuccess", "error", err)
	}
}

func (h *NavigationHandler) Enums(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	enums := map[string]any{
		"roles":            model.Roles(),
		"tour_statuses":    model.TourStatuses(),
		"booking_statuses": model.BookingStatuses(),
		"payment_statuses": model.PaymentStatuses(),
	}

	if err := httputil.WriteSuccess(w, enums); err != nil {
		h.log.Error("failed to write success response", "handler", "Enums", "operation", "WriteSuccess", "error", err)
	}
}

func (h *NavigationHandler) RegisterRoutes(router *httprouter.Router) {
	maybeAuthed := middleware.OptionalAuth(h.tokens, h.log)

	router.GET("/api/v1/navigation", maybeAuthed(h.Navigation))
	router.GET("/api/v1/meta/enums", h.Enums)
}
