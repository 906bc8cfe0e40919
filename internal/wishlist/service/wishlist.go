package service

import (
	"context"
	"errors"

	"tourhub/internal/authz"
	tourserrors "tourhub/internal/tours/errors"
	toursrepo "tourhub/internal/tours/repository"
	"tourhub/internal/wishlist/repository"
	"tourhub/pkg/auth"
	"tourhub/pkg/config"
	apperrors "tourhub/pkg/errors"
	"tourhub/pkg/model"
)

type WishlistService interface {
	Add(ctx context.Context, principal *auth.Principal, tourID string) error
	Remove(ctx context.Context, principal *auth.Principal, tourID string) error
	List(ctx context.Context, principal *auth.Principal) ([]*model.Tour, error)
	Contains(ctx context.Context, principal *auth.Principal, tourID string) (bool, error)
}

type wishlistService struct {
	repo  repository.WishlistRepository
	tours toursrepo.TourRepository
	cfg   *config.Config
}

func NewWishlistService(
	repo repository.WishlistRepository,
	tours toursrepo.TourRepository,
	cfg *config.Config,
) WishlistService {
	return &wishlistService{
		repo:  repo,
		tours: tours,
		cfg:   cfg,
	}
}

// Add puts a tour on the caller's wishlist. Adding an already listed
// tour is a no-op, not an error.
func (s *wishlistService) Add(ctx context.Context, principal *auth.Principal, tourID string) error {
	if err := s.authorize(principal); err != nil {
		return err
	}
	if tourID == "" {
		return apperrors.InvalidInput("Tour ID cannot be empty")
	}

	if _, err := s.tours.FindByID(ctx, tourID); err != nil {
		if errors.Is(err, tourserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Tour", tourID)
		}
		if errors.Is(err, tourserrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid tour ID format")
		}
		return apperrors.Internal("Failed to check tour", err)
	}

	inserted, err := s.repo.Add(ctx, &model.WishlistEntry{
		UserID: principal.UserID,
		TourID: tourID,
	})
	if err != nil {
		s.cfg.Log.Error("Failed to add wishlist entry",
			"user_id", principal.UserID,
			"tour_id", tourID,
			"error", err,
		)
		return apperrors.Internal("Failed to update wishlist", err)
	}

	if inserted {
		s.cfg.Log.Info("Wishlist entry added",
			"user_id", principal.UserID,
			"tour_id", tourID,
		)
	}
	return nil
}

// Remove takes a tour off the wishlist. Removing an absent tour is a
// no-op, mirroring Add.
func (s *wishlistService) Remove(ctx context.Context, principal *auth.Principal, tourID string) error {
	if err := s.authorize(principal); err != nil {
		return err
	}
	if tourID == "" {
		return apperrors.InvalidInput("Tour ID cannot be empty")
	}

	removed, err := s.repo.Remove(ctx, principal.UserID, tourID)
	if err != nil {
		s.cfg.Log.Error("Failed to remove wishlist entry",
			"user_id", principal.UserID,
			"tour_id", tourID,
			"error", err,
		)
		return apperrors.Internal("Failed to update wishlist", err)
	}

	if removed {
		s.cfg.Log.Info("Wishlist entry removed",
			"user_id", principal.UserID,
			"tour_id", tourID,
		)
	}
	return nil
}

// List resolves the wishlist to tour documents in insertion order.
// Tours deleted since they were wished for are silently skipped.
func (s *wishlistService) List(ctx context.Context, principal *auth.Principal) ([]*model.Tour, error) {
	if err := s.authorize(principal); err != nil {
		return nil, err
	}

	entries, err := s.repo.ListByUser(ctx, principal.UserID)
	if err != nil {
		s.cfg.Log.Error("Failed to list wishlist",
			"user_id", principal.UserID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to retrieve wishlist", err)
	}

	tours := make([]*model.Tour, 0, len(entries))
	for _, entry := range entries {
		tour, err := s.tours.FindByID(ctx, entry.TourID)
		if err != nil {
			if errors.Is(err, tourserrors.ErrNotFound) {
				continue
			}
			return nil, apperrors.Internal("Failed to resolve wishlist tour", err)
		}
		tours = append(tours, tour)
	}

	return tours, nil
}

// Contains reports whether the tour is on the caller's wishlist; the
// client renders the heart toggle from it without fetching the full list.
func (s *wishlistService) Contains(ctx context.Context, principal *auth.Principal, tourID string) (bool, error) {
	if err := s.authorize(principal); err != nil {
		return false, err
	}
	if tourID == "" {
		return false, apperrors.InvalidInput("Tour ID cannot be empty")
	}

	listed, err := s.repo.Contains(ctx, principal.UserID, tourID)
	if err != nil {
		s.cfg.Log.Error("Failed to check wishlist entry",
			"user_id", principal.UserID,
			"tour_id", tourID,
			"error", err,
		)
		return false, apperrors.Internal("Failed to check wishlist", err)
	}

	return listed, nil
}

func (s *wishlistService) authorize(principal *auth.Principal) error {
	if !authz.Can(principal.Role, authz.CapUseWishlist) {
		return apperrors.Forbidden("Only tourists have a wishlist")
	}
	return nil
}
