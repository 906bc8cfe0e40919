package handler

import (
	"net/http"
	"time"

	"tourhub/internal/chat/service"
	"tourhub/pkg/auth"
	"tourhub/pkg/config"
	"tourhub/pkg/contracts"
	httputil "tourhub/pkg/http"
	"tourhub/pkg/logger"
	"tourhub/pkg/middleware"

	"github.com/gorilla/websocket"
	"github.com/julienschmidt/httprouter"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

type ChatHandler struct {
	hub    *service.Hub
	tokens *auth.Manager
	log    *logger.Logger

	upgrader websocket.Upgrader
}

func NewChatHandler(hub *service.Hub, tokens *auth.Manager, cfg *config.Config) *ChatHandler {
	return &ChatHandler{
		hub:    hub,
		tokens: tokens,
		log:    cfg.Log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// Connect upgrades the request and ties the socket to the session user.
// Identity comes from the session cookie, never from the client frames.
func (h *ChatHandler) Connect(w http.ResponseWriter, r *http.Request, _ httprouter.Params) {
	principal := auth.PrincipalFrom(r.Context())

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.log.Warn("Websocket upgrade failed",
			"user_id", principal.UserID,
			"error", err,
		)
		return
	}

	frames, detach := h.hub.Attach(principal.UserID)

	go h.writePump(conn, frames)
	h.readPump(r, conn, principal, detach)
}

func (h *ChatHandler) readPump(r *http.Request, conn *websocket.Conn, principal *auth.Principal, detach func()) {
	defer func() {
		detach()
		conn.Close()
	}()

	conn.SetReadLimit(8192)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		var frame service.Frame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				h.log.Warn("Websocket read failed",
					"user_id", principal.UserID,
					"error", err,
				)
			}
			return
		}

		if frame.Type != service.FrameSendMessage {
			continue
		}

		if _, err := h.hub.Send(r.Context(), principal.UserID, frame.ReceiverID, frame.Text); err != nil {
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			_ = conn.WriteJSON(service.Frame{Type: service.FrameError, Text: err.Error()})
		}
	}
}

func (h *ChatHandler) writePump(conn *websocket.Conn, frames <-chan service.Frame) {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		conn.Close()
	}()

	for {
		select {
		case frame, ok := <-frames:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := conn.WriteJSON(frame); err != nil {
				return
			}

		case <-ticker.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// History serves the REST view of a conversation for initial page load.
func (h *ChatHandler) History(w http.ResponseWriter, r *http.Request, ps httprouter.Params) {
	peerID := ps.ByName("peerID")
	limit, _, err := httputil.ExtractLimitOffset(r)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "History", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	principal := auth.PrincipalFrom(r.Context())
	messages, err := h.hub.History(r.Context(), principal.UserID, peerID, limit)
	if err != nil {
		if writeErr := httputil.WriteError(w, err); writeErr != nil {
			h.log.Error("failed to write error response", "handler", "History", "operation", "WriteError", "error", writeErr)
		}
		return
	}

	if err := httputil.WriteSuccess(w, messages); err != nil {
		h.log.Error("failed to write success response", "handler", "History", "operation", "WriteSuccess", "error", err)
	}
}

func (h *ChatHandler) RegisterRoutes(router *httprouter.Router) {
	authed := middleware.RequireAuth(h.tokens, h.log)

	router.GET("/api/v1/chat/history/id/:peerID", authed(h.History))
}

// SocketPath is where Socket() must be mounted. The upgrade needs the
// raw ResponseWriter and the connection outlives any request timeout,
// so the route cannot sit behind the buffered middleware chain.
const SocketPath = "/api/v1/chat/ws"

type socketRoutes struct {
	h *ChatHandler
}

func (s socketRoutes) RegisterRoutes(router *httprouter.Router) {
	authed := middleware.RequireAuth(s.h.tokens, s.h.log)

	router.GET(SocketPath, authed(s.h.Connect))
}

// Socket returns the websocket endpoint for mounting at SocketPath.
func (h *ChatHandler) Socket() contracts.Handler {
	return socketRoutes{h: h}
}
