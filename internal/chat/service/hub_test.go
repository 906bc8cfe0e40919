package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"tourhub/pkg/config"
	apperrors "tourhub/pkg/errors"
	"tourhub/pkg/logger"
	"tourhub/pkg/model"
)

const (
	aliceID = "650000000000000000000001"
	bobID   = "650000000000000000000002"
)

type memMessageRepository struct {
	saved []*model.Message

	lastHistoryLimit int
}

func (m *memMessageRepository) Save(ctx context.Context, message *model.Message) error {
	message.CreatedAt = time.Now().UTC()
	m.saved = append(m.saved, message)
	return nil
}

func (m *memMessageRepository) History(ctx context.Context, userA, userB string, limit int) ([]*model.Message, error) {
	m.lastHistoryLimit = limit
	var out []*model.Message
	for _, msg := range m.saved {
		if (msg.SenderID == userA && msg.ReceiverID == userB) ||
			(msg.SenderID == userB && msg.ReceiverID == userA) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func newTestHub(repo *memMessageRepository) *Hub {
	cfg := &config.Config{Log: logger.Discard()}
	return NewHub(repo, cfg)
}

func runHub(t *testing.T, hub *Hub) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
}

func receiveFrame(t *testing.T, frames <-chan Frame) Frame {
	t.Helper()
	select {
	case frame := <-frames:
		return frame
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
		return Frame{}
	}
}

func TestSend_DeliversToBothParties(t *testing.T) {
	repo := &memMessageRepository{}
	hub := newTestHub(repo)
	runHub(t, hub)

	aliceFrames, detachAlice := hub.Attach(aliceID)
	bobFrames, detachBob := hub.Attach(bobID)
	defer detachAlice()
	defer detachBob()

	message, err := hub.Send(context.Background(), aliceID, bobID, "  See you at the trailhead  ")
	if err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if message.Text != "See you at the trailhead" {
		t.Errorf("expected trimmed text, got %q", message.Text)
	}
	if len(repo.saved) != 1 {
		t.Fatalf("expected 1 persisted message, got %d", len(repo.saved))
	}

	for _, frames := range []<-chan Frame{bobFrames, aliceFrames} {
		frame := receiveFrame(t, frames)
		if frame.Type != FrameNewMessage {
			t.Errorf("expected %q frame, got %q", FrameNewMessage, frame.Type)
		}
		if frame.Message == nil || frame.Message.Text != "See you at the trailhead" {
			t.Errorf("frame carries wrong message: %+v", frame.Message)
		}
	}
}

func TestSend_RejectsInvalidFrames(t *testing.T) {
	repo := &memMessageRepository{}
	hub := newTestHub(repo)

	tests := []struct {
		name       string
		receiverID string
		text       string
	}{
		{"empty text", bobID, "   "},
		{"text too long", bobID, strings.Repeat("a", 4001)},
		{"missing receiver", "", "hello"},
		{"self message", aliceID, "hello"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := hub.Send(context.Background(), aliceID, tc.receiverID, tc.text)
			if !apperrors.IsCode(err, apperrors.CodeInvalidInput) {
				t.Fatalf("expected invalid input, got %v", err)
			}
		})
	}

	if len(repo.saved) != 0 {
		t.Errorf("invalid frames must not be persisted, got %d", len(repo.saved))
	}
}

func TestSend_OfflineReceiverStillPersists(t *testing.T) {
	repo := &memMessageRepository{}
	hub := newTestHub(repo)
	runHub(t, hub)

	if _, err := hub.Send(context.Background(), aliceID, bobID, "are you there?"); err != nil {
		t.Fatalf("send failed: %v", err)
	}
	if len(repo.saved) != 1 {
		t.Fatalf("expected message persisted for offline receiver, got %d", len(repo.saved))
	}
}

func TestHistory_NormalizesLimit(t *testing.T) {
	repo := &memMessageRepository{}
	hub := newTestHub(repo)

	if _, err := hub.History(context.Background(), aliceID, bobID, -5); err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if repo.lastHistoryLimit != 10 {
		t.Errorf("expected default limit 10, got %d", repo.lastHistoryLimit)
	}

	if _, err := hub.History(context.Background(), aliceID, bobID, 100000); err != nil {
		t.Fatalf("history failed: %v", err)
	}
	if repo.lastHistoryLimit != config.DefaultPaginationLimit {
		t.Errorf("expected limit capped at %d, got %d", config.DefaultPaginationLimit, repo.lastHistoryLimit)
	}
}

func TestHistory_RequiresPeer(t *testing.T) {
	hub := newTestHub(&memMessageRepository{})

	_, err := hub.History(context.Background(), aliceID, "", 10)
	if !apperrors.IsCode(err, apperrors.CodeInvalidInput) {
		t.Fatalf("expected invalid input, got %v", err)
	}
}
