package handler

import (
	"net/http"

	"tourhub/internal/wishlist/service"
	"tourhub/pkg/auth"
	"tourhub/pkg/config"
	httputil "tourhub/pkg/http"
	"tourhub/pkg/logger"
	"tourhub/pkg/middleware"
	"tourhub/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type WishlistHandler struct {
	service service.WishlistService
	tokens  *auth.Manager
	log     *logger.Logger
}

func NewWishlistHandler(service service.WishlistService, tokens *auth.Manager, cfg *config.Config) *WishlistHandler {
	return &WishlistHandler{
		service: service,
		tokens:  tokens,
		log:     cfg.Log,
	}
}

func (h *WishlistHandler) Add(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tourID := ps.ByName("tourID")
	principal := auth.PrincipalFrom(r.Context())

	if err := h.service.Add(r.Context(), principal, tourID); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Add", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *WishlistHandler) Remove(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tourID := ps.ByName("tourID")
	principal := auth.PrincipalFrom(r.Context())

	if err := h.service.Remove(r.Context(), principal, tourID); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Remove", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *WishlistHandler) Contains(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	tourID := ps.ByName("tourID")
	principal := auth.PrincipalFrom(r.Context())

	listed, err := h.service.Contains(r.Context(), principal, tourID)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Contains", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, map[string]bool{"wishlisted": listed}); err != nil {
		h.log.Error("failed to write success response", "handler", "Contains", "operation", "WriteSuccess", "error", err)
	}
}

func (h *WishlistHandler) List(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal := auth.PrincipalFrom(r.Context())

	tours, err := h.service.List(r.Context(), principal)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "List", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, tours); err != nil {
		h.log.Error("failed to write success response", "handler", "List", "operation", "WriteSuccess", "error", err)
	}
}

func (h *WishlistHandler) RegisterRoutes(router *httprouter.Router) {
	authed := middleware.RequireAuth(h.tokens, h.log)
	touristOnly := middleware.RequireRole(h.log, model.RoleTourist)

	router.GET("/api/v1/wishlist", authed(touristOnly(h.List)))
	router.GET("/api/v1/wishlist/id/:tourID", authed(touristOnly(h.Contains)))
	router.PUT("/api/v1/wishlist/id/:tourID", authed(touristOnly(h.Add)))
	router.DELETE("/api/v1/wishlist/id/:tourID", authed(touristOnly(h.Remove)))
}
