package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"tourhub/internal/authz"
	tourserrors "tourhub/internal/tours/errors"
	"tourhub/internal/tours/repository"
	"tourhub/internal/tours/validator"
	"tourhub/pkg/auth"
	"tourhub/pkg/cache"
	"tourhub/pkg/config"
	apperrors "tourhub/pkg/errors"
	"tourhub/pkg/model"
	"tourhub/pkg/sanitizer"
)

// cacheEntity tags every cached tour payload; any tour mutation bumps it.
const cacheEntity = "tours"

type TourService interface {
	Create(ctx context.Context, principal *auth.Principal, tour *model.Tour) error
	GetByID(ctx context.Context, id string) (*model.Tour, error)
	GetBySlug(ctx context.Context, slug string) (*model.Tour, error)
	Browse(ctx context.Context, category, location string, limit int, offset int64) ([]*model.Tour, int64, error)
	Mine(ctx context.Context, principal *auth.Principal, limit int, offset int64) ([]*model.Tour, int64, error)
	Update(ctx context.Context, principal *auth.Principal, id string, updates *model.TourUpdate) (*model.Tour, error)
	SetStatus(ctx context.Context, principal *auth.Principal, id string, status model.TourStatus) error
	Delete(ctx context.Context, principal *auth.Principal, id string) error

	ListAll(ctx context.Context, status model.TourStatus, limit int, offset int64) ([]*model.Tour, int64, error)
}

type tourService struct {
	repo      repository.TourRepository
	validator *validator.TourValidator
	cache     *cache.TagCache
	cfg       *config.Config
}

func NewTourService(
	repo repository.TourRepository,
	validator *validator.TourValidator,
	tagCache *cache.TagCache,
	cfg *config.Config,
) TourService {
	return &tourService{
		repo:      repo,
		validator: validator,
		cache:     tagCache,
		cfg:       cfg,
	}
}

// Create registers a new tour owned by the calling guide. Admins may
// create on behalf of a guide by presetting GuideID.
func (s *tourService) Create(ctx context.Context, principal *auth.Principal, tour *model.Tour) error {
	if !authz.Can(principal.Role, authz.CapManageAllTours) {
		tour.GuideID = principal.UserID
	} else if tour.GuideID == "" {
		return apperrors.InvalidInput("guide_id is required when creating a tour as admin")
	}

	s.sanitize(tour)
	tour.Slug = sanitizer.Slugify(tour.Title)
	if tour.Status == "" {
		tour.Status = model.TourActive
	}
	tour.Rating = 0
	tour.RatingCount = 0

	if err := s.validator.Validate(tour); err != nil {
		s.cfg.Log.Warn("Tour validation failed",
			"title", tour.Title,
			"guide_id", tour.GuideID,
			"error", err,
		)
		return apperrors.Validation("Tour validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	if err := s.repo.Create(ctx, tour); err != nil {
		if errors.Is(err, tourserrors.ErrDuplicateSlug) {
			return apperrors.Conflict(fmt.Sprintf("A tour with slug %q already exists", tour.Slug))
		}
		s.cfg.Log.Error("Failed to create tour",
			"title", tour.Title,
			"guide_id", tour.GuideID,
			"error", err,
		)
		return apperrors.Internal("Failed to create tour", err)
	}

	if s.cache != nil {
		s.cache.Bump(ctx, cacheEntity)
	}

	s.cfg.Log.Info("Tour created successfully",
		"id", tour.ID,
		"slug", tour.Slug,
		"guide_id", tour.GuideID,
	)
	return nil
}

func (s *tourService) GetByID(ctx context.Context, id string) (*model.Tour, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("Tour ID cannot be empty")
	}

	tour, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, s.mapLookupError(id, err)
	}
	return tour, nil
}

func (s *tourService) GetBySlug(ctx context.Context, slug string) (*model.Tour, error) {
	if slug == "" {
		return nil, apperrors.InvalidInput("Tour slug cannot be empty")
	}

	var cached model.Tour
	if s.cache != nil && s.cache.GetJSON(ctx, cacheEntity, "slug:"+slug, &cached) {
		return &cached, nil
	}

	tour, err := s.repo.FindBySlug(ctx, slug)
	if err != nil {
		if errors.Is(err, tourserrors.ErrNotFound) {
			return nil, apperrors.NotFound("Tour")
		}
		s.cfg.Log.Error("Failed to get tour by slug",
			"slug", slug,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to retrieve tour", err)
	}

	if s.cache != nil {
		s.cache.SetJSON(ctx, cacheEntity, "slug:"+slug, tour)
	}
	return tour, nil
}

// Browse is the public catalog: only ACTIVE tours, optionally narrowed
// by category and location, cached per filter and page.
func (s *tourService) Browse(ctx context.Context, category, location string, limit int, offset int64) ([]*model.Tour, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	filter := repository.TourFilter{
		Status:   model.TourActive,
		Category: sanitizer.NormalizeCategory(category),
		Location: sanitizer.NormalizeLocation(location),
	}

	type page struct {
		Tours []*model.Tour `json:"tours"`
		Total int64         `json:"total"`
	}
	cacheKey := fmt.Sprintf("browse:%s:%s:%d:%d", filter.Category, filter.Location, limit, offset)

	var cached page
	if s.cache != nil && s.cache.GetJSON(ctx, cacheEntity, cacheKey, &cached) {
		return cached.Tours, cached.Total, nil
	}

	tours, total, err := s.list(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	if s.cache != nil {
		s.cache.SetJSON(ctx, cacheEntity, cacheKey, page{Tours: tours, Total: total})
	}
	return tours, total, nil
}

// Mine lists the calling guide's tours in every status.
func (s *tourService) Mine(ctx context.Context, principal *auth.Principal, limit int, offset int64) ([]*model.Tour, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	return s.list(ctx, repository.TourFilter{GuideID: principal.UserID}, limit, offset)
}

// ListAll is the admin view across guides and statuses.
func (s *tourService) ListAll(ctx context.Context, status model.TourStatus, limit int, offset int64) ([]*model.Tour, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	return s.list(ctx, repository.TourFilter{Status: status}, limit, offset)
}

func (s *tourService) Update(ctx context.Context, principal *auth.Principal, id string, updates *model.TourUpdate) (*model.Tour, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeOwner(principal, existing); err != nil {
		return nil, err
	}

	s.sanitizeUpdate(updates)
	if err := s.validator.ValidateUpdate(updates); err != nil {
		return nil, apperrors.Validation("Tour validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	merged := s.mergeTourUpdates(existing, updates)
	if err := s.repo.Update(ctx, id, merged); err != nil {
		if errors.Is(err, tourserrors.ErrDuplicateSlug) {
			return nil, apperrors.Conflict(fmt.Sprintf("A tour with slug %q already exists", merged.Slug))
		}
		s.cfg.Log.Error("Failed to update tour",
			"id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to update tour", err)
	}

	if s.cache != nil {
		s.cache.Bump(ctx, cacheEntity)
	}

	s.cfg.Log.Info("Tour updated successfully", "id", id, "slug", merged.Slug)
	return merged, nil
}

func (s *tourService) SetStatus(ctx context.Context, principal *auth.Principal, id string, status model.TourStatus) error {
	switch status {
	case model.TourActive, model.TourInactive:
	default:
		return apperrors.InvalidInput(fmt.Sprintf("Unknown tour status: %s", status))
	}

	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeOwner(principal, existing); err != nil {
		return err
	}

	existing.Status = status
	if err := s.repo.Update(ctx, id, existing); err != nil {
		s.cfg.Log.Error("Failed to change tour status",
			"id", id,
			"status", status,
			"error", err,
		)
		return apperrors.Internal("Failed to change tour status", err)
	}

	if s.cache != nil {
		s.cache.Bump(ctx, cacheEntity)
	}

	s.cfg.Log.Info("Tour status changed", "id", id, "status", status)
	return nil
}

func (s *tourService) Delete(ctx context.Context, principal *auth.Principal, id string) error {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.authorizeOwner(principal, existing); err != nil {
		return err
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, tourserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("Tour", id)
		}
		s.cfg.Log.Error("Failed to delete tour",
			"id", id,
			"error", err,
		)
		return apperrors.Internal("Failed to delete tour", err)
	}

	if s.cache != nil {
		s.cache.Bump(ctx, cacheEntity)
	}

	s.cfg.Log.Info("Tour deleted", "id", id)
	return nil
}

func (s *tourService) list(ctx context.Context, filter repository.TourFilter, limit int, offset int64) ([]*model.Tour, int64, error) {
	var count int64
	var tours []*model.Tour
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.Count(ctx, filter)
		if err != nil {
			s.cfg.Log.Error("Failed to count tours", "error", err)
			errCount = apperrors.Internal("Failed to count tours", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		tours, err = s.repo.FindAll(ctx, filter, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list tours",
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve tours", err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return tours, count, nil
}

// authorizeOwner lets the owning guide and anyone who can manage all
// tours through; everyone else is rejected.
func (s *tourService) authorizeOwner(principal *auth.Principal, tour *model.Tour) error {
	if authz.Can(principal.Role, authz.CapManageAllTours) {
		return nil
	}
	if authz.Can(principal.Role, authz.CapManageOwnTours) && tour.GuideID == principal.UserID {
		return nil
	}
	return apperrors.Forbidden("You do not own this tour")
}

func (s *tourService) mapLookupError(id string, err error) error {
	if errors.Is(err, tourserrors.ErrNotFound) {
		return apperrors.NotFoundWithID("Tour", id)
	}
	if errors.Is(err, tourserrors.ErrInvalidID) {
		return apperrors.InvalidInput("Invalid tour ID format")
	}
	s.cfg.Log.Error("Failed to get tour by ID",
		"id", id,
		"error", err,
	)
	return apperrors.Internal("Failed to retrieve tour", err)
}

func (s *tourService) sanitize(tour *model.Tour) {
	tour.Title = sanitizer.TrimAndNormalize(tour.Title)
	tour.Description = sanitizer.TrimAndNormalize(tour.Description)
	tour.Location = sanitizer.NormalizeLocation(tour.Location)
	tour.Category = sanitizer.NormalizeCategory(tour.Category)
	tour.Images = sanitizer.SanitizeSlice(tour.Images, sanitizer.TrimAndNormalize)
}

func (s *tourService) sanitizeUpdate(updates *model.TourUpdate) {
	if updates.Title != "" {
		updates.Title = sanitizer.TrimAndNormalize(updates.Title)
	}
	if updates.Description != "" {
		updates.Description = sanitizer.TrimAndNormalize(updates.Description)
	}
	if updates.Location != "" {
		updates.Location = sanitizer.NormalizeLocation(updates.Location)
	}
	if updates.Category != "" {
		updates.Category = sanitizer.NormalizeCategory(updates.Category)
	}
	if updates.Images != nil {
		updates.Images = sanitizer.SanitizeSlice(updates.Images, sanitizer.TrimAndNormalize)
	}
}

func (s *tourService) mergeTourUpdates(existing *model.Tour, updates *model.TourUpdate) *model.Tour {
	merged := *existing

	if updates.Title != "" {
		merged.Title = updates.Title
		merged.Slug = sanitizer.Slugify(updates.Title)
	}
	if updates.Description != "" {
		merged.Description = updates.Description
	}
	if updates.Location != "" {
		merged.Location = updates.Location
	}
	if updates.TourFee != nil {
		merged.TourFee = *updates.TourFee
	}
	if updates.MaxGroupSize != nil {
		merged.MaxGroupSize = *updates.MaxGroupSize
	}
	if updates.MaxDuration != nil {
		merged.MaxDuration = *updates.MaxDuration
	}
	if updates.Category != "" {
		merged.Category = updates.Category
	}
	if updates.Images != nil {
		merged.Images = updates.Images
	}

	merged.ID = existing.ID
	merged.GuideID = existing.GuideID
	merged.CreatedAt = existing.CreatedAt

	return &merged
}
