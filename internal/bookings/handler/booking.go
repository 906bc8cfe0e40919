package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"tourhub/internal/bookings/service"
	"tourhub/internal/bookings/validator"
	"tourhub/pkg/auth"
	"tourhub/pkg/config"
	httputil "tourhub/pkg/http"
	"tourhub/pkg/logger"
	"tourhub/pkg/middleware"
	"tourhub/pkg/model"

	"github.com/julienschmidt/httprouter"
)

type BookingHandler struct {
	service service.BookingService
	tokens  *auth.Manager
	log     *logger.Logger
}

func NewBookingHandler(service service.BookingService, tokens *auth.Manager, cfg *config.Config) *BookingHandler {
	return &BookingHandler{
		service: service,
		tokens:  tokens,
		log:     cfg.Log,
	}
}

func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var req validator.BookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "Create", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	principal := auth.PrincipalFrom(r.Context())
	booking, err := h.service.Create(r.Context(), principal, &req)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "Create", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, booking); err != nil {
		h.log.Error("failed to write created response", "handler", "Create", "operation", "WriteCreated", "error", err)
	}
}

func (h *BookingHandler) GetByID(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if id == "" {
		if err := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "ID parameter is required",
		}); err != nil {
			h.log.Error("failed to write bad request response", "handler", "GetByID", "operation", "WriteJSON", "error", err)
		}
		return
	}

	principal := auth.PrincipalFrom(r.Context())
	booking, err := h.service.GetByID(r.Context(), principal, id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "GetByID", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, booking); err != nil {
		h.log.Error("failed to write success response", "handler", "GetByID", "operation", "WriteSuccess", "error", err)
	}
}

func (h *BookingHandler) InitiatePayment(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if id == "" {
		if err := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "ID parameter is required",
		}); err != nil {
			h.log.Error("failed to write bad request response", "handler", "InitiatePayment", "operation", "WriteJSON", "error", err)
		}
		return
	}

	principal := auth.PrincipalFrom(r.Context())
	payment, err := h.service.InitiatePayment(r.Context(), principal, id)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "InitiatePayment", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteCreated(w, payment); err != nil {
		h.log.Error("failed to write created response", "handler", "InitiatePayment", "operation", "WriteCreated", "error", err)
	}
}

// PaymentCallback is the gateway webhook. It authenticates by
// transaction id knowledge, not by user session.
func (h *BookingHandler) PaymentCallback(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	var body struct {
		TransactionID string              `json:"transaction_id"`
		Outcome       model.PaymentStatus `json:"outcome"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "PaymentCallback", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	if err := h.service.ResolvePayment(r.Context(), body.TransactionID, body.Outcome); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "PaymentCallback", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BookingHandler) Accept(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.decide(w, r, ps, "Accept", h.service.Accept)
}

func (h *BookingHandler) Reject(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.decide(w, r, ps, "Reject", h.service.Reject)
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.decide(w, r, ps, "Cancel", h.service.Cancel)
}

func (h *BookingHandler) Complete(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	h.decide(w, r, ps, "Complete", h.service.Complete)
}

func (h *BookingHandler) decide(
	w http.ResponseWriter,
	r *http.Request,
	ps httprouter.Params,
	name string,
	op func(context.Context, *auth.Principal, string) error,
) {
	id := ps.ByName("id")
	if id == "" {
		if err := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "ID parameter is required",
		}); err != nil {
			h.log.Error("failed to write bad request response", "handler", name, "operation", "WriteJSON", "error", err)
		}
		return
	}

	principal := auth.PrincipalFrom(r.Context())
	if err := op(r.Context(), principal, id); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", name, "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BookingHandler) ForceStatus(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	id := ps.ByName("id")
	if id == "" {
		if err := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "ID parameter is required",
		}); err != nil {
			h.log.Error("failed to write bad request response", "handler", "ForceStatus", "operation", "WriteJSON", "error", err)
		}
		return
	}

	var body struct {
		Status model.BookingStatus `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		if writeErr := httputil.WriteJSON(w, http.StatusBadRequest, httputil.ErrorResponse{
			Error: "Invalid request body",
		}); writeErr != nil {
			h.log.Error("failed to write JSON response", "handler", "ForceStatus", "operation", "WriteJSON", "error", writeErr)
		}
		return
	}

	principal := auth.PrincipalFrom(r.Context())
	if err := h.service.ForceStatus(r.Context(), principal, id, body.Status); err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ForceStatus", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	httputil.WriteNoContent(w)
}

func (h *BookingHandler) Mine(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.listFor(w, r, "Mine", h.service.Mine)
}

func (h *BookingHandler) GuideBookings(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	h.listFor(w, r, "GuideBookings", h.service.GuideBookings)
}

func (h *BookingHandler) listFor(
	w http.ResponseWriter,
	r *http.Request,
	name string,
	op func(context.Context, *auth.Principal, model.BookingStatus, int, int64) ([]*model.Booking, int64, error),
) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", name, "operation", "WriteError", "error", writeErr)
		}
		return
	}

	status := model.BookingStatus(r.URL.Query().Get("status"))
	principal := auth.PrincipalFrom(r.Context())

	bookings, totalCount, err := op(r.Context(), principal, status, limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", name, "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, bookings, totalCount, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", name, "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) ListAll(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	limit, offset, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	status := model.BookingStatus(r.URL.Query().Get("status"))
	bookings, totalCount, err := h.service.ListAll(r.Context(), status, limit, offset)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "ListAll", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WritePaginated(w, bookings, totalCount, limit, offset); err != nil {
		h.log.Error("failed to write paginated response", "handler", "ListAll", "operation", "WritePaginated", "error", err)
	}
}

func (h *BookingHandler) RegisterRoutes(router *httprouter.Router) {
	authed := middleware.RequireAuth(h.tokens, h.log)
	touristOnly := middleware.RequireRole(h.log, model.RoleTourist)
	guideOrAdmin := middleware.RequireRole(h.log, model.RoleGuide, model.RoleAdmin)
	adminOnly := middleware.RequireRole(h.log, model.RoleAdmin)

	router.POST("/api/v1/bookings", authed(touristOnly(h.Create)))
	router.GET("/api/v1/bookings/mine", authed(h.Mine))
	router.GET("/api/v1/bookings/id/:id", authed(h.GetByID))
	router.POST("/api/v1/bookings/id/:id/payment", authed(touristOnly(h.InitiatePayment)))
	router.POST("/api/v1/bookings/id/:id/cancel", authed(h.Cancel))

	// Gateway webhook; no session, the transaction id is the credential.
	router.POST("/api/v1/payments/callback", h.PaymentCallback)

	router.GET("/api/v1/guide/bookings", authed(guideOrAdmin(h.GuideBookings)))
	router.POST("/api/v1/bookings/id/:id/accept", authed(guideOrAdmin(h.Accept)))
	router.POST("/api/v1/bookings/id/:id/reject", authed(guideOrAdmin(h.Reject)))
	router.POST("/api/v1/bookings/id/:id/complete", authed(guideOrAdmin(h.Complete)))

	router.GET("/api/v1/admin/bookings", authed(adminOnly(h.ListAll)))
	router.PATCH("/api/v1/admin/bookings/id/:id/status", authed(adminOnly(h.ForceStatus)))
}
