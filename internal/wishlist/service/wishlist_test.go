package service

import (
	"context"
	"testing"

	tourserrors "tourhub/internal/tours/errors"
	toursrepo "tourhub/internal/tours/repository"
	"tourhub/pkg/auth"
	"tourhub/pkg/config"
	apperrors "tourhub/pkg/errors"
	"tourhub/pkg/logger"
	"tourhub/pkg/model"
)

const (
	touristID = "650000000000000000000002"
	tourOne   = "650000000000000000000011"
	tourTwo   = "650000000000000000000012"
)

// ────────────────────────────────────────────────
// In-memory repositories for testing
// ────────────────────────────────────────────────

type memWishlistRepository struct {
	entries []*model.WishlistEntry
}

func (m *memWishlistRepository) Add(ctx context.Context, entry *model.WishlistEntry) (bool, error) {
	for _, e := range m.entries {
		if e.UserID == entry.UserID && e.TourID == entry.TourID {
			return false, nil
		}
	}
	m.entries = append(m.entries, entry)
	return true, nil
}

func (m *memWishlistRepository) Remove(ctx context.Context, userID, tourID string) (bool, error) {
	for i, e := range m.entries {
		if e.UserID == userID && e.TourID == tourID {
			m.entries = append(m.entries[:i], m.entries[i+1:]...)
			return true, nil
		}
	}
	return false, nil
}

func (m *memWishlistRepository) ListByUser(ctx context.Context, userID string) ([]*model.WishlistEntry, error) {
	var out []*model.WishlistEntry
	for _, e := range m.entries {
		if e.UserID == userID {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memWishlistRepository) Contains(ctx context.Context, userID, tourID string) (bool, error) {
	for _, e := range m.entries {
		if e.UserID == userID && e.TourID == tourID {
			return true, nil
		}
	}
	return false, nil
}

type stubTourRepository struct {
	tours map[string]*model.Tour
}

func (s *stubTourRepository) Create(ctx context.Context, tour *model.Tour) error { return nil }

func (s *stubTourRepository) FindByID(ctx context.Context, id string) (*model.Tour, error) {
	tour, ok := s.tours[id]
	if !ok {
		return nil, tourserrors.ErrNotFound
	}
	return tour, nil
}

func (s *stubTourRepository) FindBySlug(ctx context.Context, slug string) (*model.Tour, error) {
	return nil, tourserrors.ErrNotFound
}

func (s *stubTourRepository) FindAll(ctx context.Context, filter toursrepo.TourFilter, limit int, offset int64) ([]*model.Tour, error) {
	return nil, nil
}

func (s *stubTourRepository) Count(ctx context.Context, filter toursrepo.TourFilter) (int64, error) {
	return 0, nil
}

func (s *stubTourRepository) Update(ctx context.Context, id string, tour *model.Tour) error {
	return nil
}

func (s *stubTourRepository) UpdateRating(ctx context.Context, id string, rating float64, count int) error {
	return nil
}

func (s *stubTourRepository) Delete(ctx context.Context, id string) error { return nil }

func newTestService(repo *memWishlistRepository, tours map[string]*model.Tour) WishlistService {
	cfg := &config.Config{Log: logger.Discard()}
	return NewWishlistService(repo, &stubTourRepository{tours: tours}, cfg)
}

func twoTours() map[string]*model.Tour {
	return map[string]*model.Tour{
		tourOne: {ID: tourOne, Title: "Petra by Night"},
		tourTwo: {ID: tourTwo, Title: "Wadi Rum Jeep Safari"},
	}
}

func tourist() *auth.Principal {
	return &auth.Principal{UserID: touristID, Role: model.RoleTourist}
}

// ────────────────────────────────────────────────
// Tests
// ────────────────────────────────────────────────

func TestAdd_IdempotentAndOrdered(t *testing.T) {
	repo := &memWishlistRepository{}
	svc := newTestService(repo, twoTours())

	for _, tourID := range []string{tourOne, tourTwo, tourOne, tourOne} {
		if err := svc.Add(context.Background(), tourist(), tourID); err != nil {
			t.Fatalf("add %s failed: %v", tourID, err)
		}
	}

	tours, err := svc.List(context.Background(), tourist())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}

	if len(tours) != 2 {
		t.Fatalf("re-adding must not duplicate, got %d entries", len(tours))
	}
	if tours[0].ID != tourOne || tours[1].ID != tourTwo {
		t.Error("wishlist must keep first-added order")
	}
}

func TestRemove_IdempotentRoundTrip(t *testing.T) {
	repo := &memWishlistRepository{}
	svc := newTestService(repo, twoTours())

	if err := svc.Add(context.Background(), tourist(), tourOne); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	// Removing twice is as safe as removing once.
	for i := 0; i < 2; i++ {
		if err := svc.Remove(context.Background(), tourist(), tourOne); err != nil {
			t.Fatalf("remove %d failed: %v", i, err)
		}
	}

	tours, err := svc.List(context.Background(), tourist())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(tours) != 0 {
		t.Errorf("expected empty wishlist, got %d entries", len(tours))
	}
}

func TestAdd_UnknownTourRejected(t *testing.T) {
	svc := newTestService(&memWishlistRepository{}, twoTours())

	err := svc.Add(context.Background(), tourist(), "650000000000000000000099")
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestWishlist_TouristOnly(t *testing.T) {
	svc := newTestService(&memWishlistRepository{}, twoTours())

	for _, role := range []model.Role{model.RoleGuide, model.RoleAdmin} {
		p := &auth.Principal{UserID: touristID, Role: role}
		if err := svc.Add(context.Background(), p, tourOne); !apperrors.IsCode(err, apperrors.CodeForbidden) {
			t.Errorf("%s: expected forbidden, got %v", role, err)
		}
		if _, err := svc.List(context.Background(), p); !apperrors.IsCode(err, apperrors.CodeForbidden) {
			t.Errorf("%s: expected forbidden on list, got %v", role, err)
		}
	}
}

func TestContains_TracksMembership(t *testing.T) {
	repo := &memWishlistRepository{}
	svc := newTestService(repo, twoTours())

	listed, err := svc.Contains(context.Background(), tourist(), tourOne)
	if err != nil {
		t.Fatalf("contains failed: %v", err)
	}
	if listed {
		t.Error("empty wishlist must not contain the tour")
	}

	if err := svc.Add(context.Background(), tourist(), tourOne); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	listed, err = svc.Contains(context.Background(), tourist(), tourOne)
	if err != nil {
		t.Fatalf("contains failed: %v", err)
	}
	if !listed {
		t.Error("added tour must be reported as wishlisted")
	}

	if listed, _ = svc.Contains(context.Background(), tourist(), tourTwo); listed {
		t.Error("membership must be per tour")
	}
}

func TestList_SkipsDeletedTours(t *testing.T) {
	tours := twoTours()
	repo := &memWishlistRepository{}
	svc := newTestService(repo, tours)

	if err := svc.Add(context.Background(), tourist(), tourOne); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := svc.Add(context.Background(), tourist(), tourTwo); err != nil {
		t.Fatalf("add failed: %v", err)
	}

	delete(tours, tourOne)

	listed, err := svc.List(context.Background(), tourist())
	if err != nil {
		t.Fatalf("list failed: %v", err)
	}
	if len(listed) != 1 || listed[0].ID != tourTwo {
		t.Errorf("deleted tours must be skipped, got %v", listed)
	}
}
