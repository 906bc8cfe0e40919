package service

import (
	"context"
	"sync"

	"tourhub/internal/chat/repository"
	"tourhub/pkg/config"
	apperrors "tourhub/pkg/errors"
	"tourhub/pkg/logger"
	"tourhub/pkg/model"
	"tourhub/pkg/sanitizer"
)

// outbound is a queued frame for one connected user.
type outbound struct {
	userID  string
	payload Frame
}

// Frame is the websocket envelope both directions use. Clients send
// type "send_message" with ReceiverID and Text; the hub delivers type
// "new_message" carrying the stored message.
type Frame struct {
	Type    string         `json:"type"`
	Message *model.Message `json:"message,omitempty"`

	ReceiverID string `json:"receiver_id,omitempty"`
	Text       string `json:"text,omitempty"`
}

const (
	FrameSendMessage = "send_message"
	FrameNewMessage  = "new_message"
	FrameError       = "error"
)

// Hub routes frames between connected sessions. One goroutine owns the
// connection table; registration, teardown, and delivery all go through
// its channels.
type Hub struct {
	repo repository.MessageRepository
	log  *logger.Logger

	register   chan *session
	unregister chan *session
	deliver    chan outbound

	mu       sync.RWMutex
	sessions map[string][]*session
}

// session is one live websocket connection. A user may hold several,
// one per device or tab.
type session struct {
	userID string
	send   chan Frame
}

func NewHub(repo repository.MessageRepository, cfg *config.Config) *Hub {
	return &Hub{
		repo:       repo,
		log:        cfg.Log,
		register:   make(chan *session),
		unregister: make(chan *session),
		deliver:    make(chan outbound, 64),
		sessions:   make(map[string][]*session),
	}
}

// Run owns the session table until ctx is cancelled. Call it once from
// the application bootstrap.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return

		case s := <-h.register:
			h.mu.Lock()
			h.sessions[s.userID] = append(h.sessions[s.userID], s)
			h.mu.Unlock()
			h.log.Debug("Chat session connected", "user_id", s.userID)

		case s := <-h.unregister:
			h.drop(s)

		case out := <-h.deliver:
			h.mu.RLock()
			targets := h.sessions[out.userID]
			h.mu.RUnlock()
			for _, s := range targets {
				select {
				case s.send <- out.payload:
				default:
					// Slow consumer; drop the frame rather than block the hub.
					h.log.Warn("Chat frame dropped", "user_id", out.userID)
				}
			}
		}
	}
}

// Attach registers a connection for the user and returns its outbound
// queue plus a detach function.
func (h *Hub) Attach(userID string) (<-chan Frame, func()) {
	s := &session{
		userID: userID,
		send:   make(chan Frame, 16),
	}
	h.register <- s
	return s.send, func() { h.unregister <- s }
}

// Send persists the message and fans it out to both parties' live
// connections. The write is authoritative; delivery is best effort.
func (h *Hub) Send(ctx context.Context, senderID, receiverID, text string) (*model.Message, error) {
	text = sanitizer.TrimAndNormalize(text)
	if text == "" {
		return nil, apperrors.InvalidInput("Message text cannot be empty")
	}
	if len(text) > 4000 {
		return nil, apperrors.InvalidInput("Message text is too long")
	}
	if receiverID == "" || receiverID == senderID {
		return nil, apperrors.InvalidInput("Message must address another user")
	}

	message := &model.Message{
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
	}
	if err := h.repo.Save(ctx, message); err != nil {
		h.log.Error("Failed to save chat message",
			"sender_id", senderID,
			"receiver_id", receiverID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to send message", err)
	}

	frame := Frame{Type: FrameNewMessage, Message: message}
	h.deliver <- outbound{userID: receiverID, payload: frame}
	h.deliver <- outbound{userID: senderID, payload: frame}

	return message, nil
}

// History loads the conversation between the caller and the peer.
func (h *Hub) History(ctx context.Context, userID, peerID string, limit int) ([]*model.Message, error) {
	if peerID == "" {
		return nil, apperrors.InvalidInput("Peer ID cannot be empty")
	}
	limit = config.NormalizePaginationLimit(limit)

	messages, err := h.repo.History(ctx, userID, peerID, limit)
	if err != nil {
		h.log.Error("Failed to load chat history",
			"user_id", userID,
			"peer_id", peerID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to load chat history", err)
	}

	return messages, nil
}

func (h *Hub) drop(s *session) {
	h.mu.Lock()
	defer h.mu.Unlock()

	conns := h.sessions[s.userID]
	for i, c := range conns {
		if c == s {
			conns = append(conns[:i], conns[i+1:]...)
			break
		}
	}
	if len(conns) == 0 {
		delete(h.sessions, s.userID)
	} else {
		h.sessions[s.userID] = conns
	}
	close(s.send)
	h.log.Debug("Chat session disconnected", "user_id", s.userID)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for _, conns := range h.sessions {
		for _, s := range conns {
			close(s.send)
		}
	}
	h.sessions = make(map[string][]*session)
}
