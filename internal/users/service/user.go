package service

import (
	"context"
	"errors"
	"sync"

	userserrors "tourhub/internal/users/errors"
	"tourhub/internal/users/repository"
	"tourhub/internal/users/validator"
	"tourhub/pkg/auth"
	"tourhub/pkg/config"
	apperrors "tourhub/pkg/errors"
	"tourhub/pkg/model"
	"tourhub/pkg/sanitizer"

	"golang.org/x/crypto/bcrypt"
)

type UserService interface {
	Register(ctx context.Context, reg *validator.Registration) (*model.User, error)
	Login(ctx context.Context, creds *validator.Credentials) (*model.User, string, error)
	Logout(ctx context.Context, principal *auth.Principal) error

	GetByID(ctx context.Context, id string) (*model.User, error)
	UpdateProfile(ctx context.Context, principal *auth.Principal, updates *model.UserUpdate) (*model.User, error)

	GetAll(ctx context.Context, limit int, offset int64) ([]*model.User, int64, error)
	AdminUpdate(ctx context.Context, id string, updates *model.AdminUserUpdate) (*model.User, error)
	Delete(ctx context.Context, id string) error
}

type userService struct {
	repo      repository.UserRepository
	validator *validator.UserValidator
	tokens    *auth.Manager
	cfg       *config.Config
}

func NewUserService(
	repo repository.UserRepository,
	validator *validator.UserValidator,
	tokens *auth.Manager,
	cfg *config.Config,
) UserService {
	return &userService{
		repo:      repo,
		validator: validator,
		tokens:    tokens,
		cfg:       cfg,
	}
}

// Register creates a TOURIST or GUIDE account. ADMIN accounts are never
// self-served; the validator rejects the role before it gets here.
func (s *userService) Register(ctx context.Context, reg *validator.Registration) (*model.User, error) {
	reg.Name = sanitizer.NormalizeName(reg.Name)
	reg.Email = sanitizer.NormalizeEmail(reg.Email)
	if reg.Role == "" {
		reg.Role = model.RoleTourist
	}

	if err := s.validator.ValidateRegistration(reg); err != nil {
		s.cfg.Log.Warn("Registration validation failed",
			"email", reg.Email,
			"error", err,
		)
		return nil, apperrors.Validation("Registration validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(reg.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, apperrors.Internal("Failed to hash password", err)
	}

	user := &model.User{
		Name:         reg.Name,
		Email:        reg.Email,
		PasswordHash: string(hash),
		Role:         reg.Role,
	}

	if err := s.repo.Create(ctx, user); err != nil {
		if errors.Is(err, userserrors.ErrDuplicateEmail) {
			return nil, apperrors.Conflict("An account with this email already exists")
		}
		s.cfg.Log.Error("Failed to create user",
			"email", user.Email,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to create account", err)
	}

	s.cfg.Log.Info("User registered successfully",
		"id", user.ID,
		"email", user.Email,
		"role", user.Role,
	)

	return user, nil
}

// Login verifies credentials and issues a session token. Unknown emails
// and wrong passwords produce the same error to avoid account probing.
func (s *userService) Login(ctx context.Context, creds *validator.Credentials) (*model.User, string, error) {
	creds.Email = sanitizer.NormalizeEmail(creds.Email)

	if err := s.validator.ValidateCredentials(creds); err != nil {
		return nil, "", apperrors.Validation("Login validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	user, err := s.repo.FindByEmail(ctx, creds.Email)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) {
			return nil, "", apperrors.Unauthorized("Invalid email or password")
		}
		s.cfg.Log.Error("Failed to look up user for login",
			"email", creds.Email,
			"error", err,
		)
		return nil, "", apperrors.Internal("Failed to log in", err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		s.cfg.Log.Warn("Login attempt with wrong password",
			"user_id", user.ID,
		)
		return nil, "", apperrors.Unauthorized("Invalid email or password")
	}

	token, err := s.tokens.Issue(user.ID, user.Role)
	if err != nil {
		return nil, "", err
	}

	s.cfg.Log.Info("User logged in",
		"id", user.ID,
		"role", user.Role,
	)

	return user, token, nil
}

func (s *userService) Logout(ctx context.Context, principal *auth.Principal) error {
	if err := s.tokens.Revoke(ctx, principal); err != nil {
		s.cfg.Log.Error("Failed to revoke session",
			"user_id", principal.UserID,
			"error", err,
		)
		return err
	}

	s.cfg.Log.Info("User logged out", "user_id", principal.UserID)
	return nil
}

func (s *userService) GetByID(ctx context.Context, id string) (*model.User, error) {
	if id == "" {
		return nil, apperrors.InvalidInput("User ID cannot be empty")
	}

	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, userserrors.ErrNotFound) {
			return nil, apperrors.NotFoundWithID("User", id)
		}
		if errors.Is(err, userserrors.ErrInvalidID) {
			return nil, apperrors.InvalidInput("Invalid user ID format")
		}
		s.cfg.Log.Error("Failed to get user by ID",
			"id", id,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to retrieve user", err)
	}

	return user, nil
}

func (s *userService) UpdateProfile(ctx context.Context, principal *auth.Principal, updates *model.UserUpdate) (*model.User, error) {
	existing, err := s.GetByID(ctx, principal.UserID)
	if err != nil {
		return nil, err
	}

	s.sanitizeUpdate(updates)
	if err := s.validator.ValidateUpdate(updates); err != nil {
		return nil, apperrors.Validation("Profile validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	merged := s.mergeUserUpdates(existing, updates)
	if err := s.repo.Update(ctx, existing.ID, merged); err != nil {
		s.cfg.Log.Error("Failed to update profile",
			"id", existing.ID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to update profile", err)
	}

	s.cfg.Log.Info("Profile updated successfully", "id", existing.ID)
	return merged, nil
}

func (s *userService) GetAll(ctx context.Context, limit int, offset int64) ([]*model.User, int64, error) {
	limit = config.NormalizePaginationLimit(limit)
	offset = config.NormalizeOffset(offset)

	var count int64
	var users []*model.User
	var errCount, errFind error
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		var err error
		count, err = s.repo.Count(ctx)
		if err != nil {
			s.cfg.Log.Error("Failed to count users", "error", err)
			errCount = apperrors.Internal("Failed to count users", err)
		}
	}()

	go func() {
		defer wg.Done()
		var err error
		users, err = s.repo.FindAll(ctx, limit, offset)
		if err != nil {
			s.cfg.Log.Error("Failed to list users",
				"limit", limit,
				"offset", offset,
				"error", err,
			)
			errFind = apperrors.Internal("Failed to retrieve users", err)
		}
	}()
	wg.Wait()

	if errCount != nil {
		return nil, 0, errCount
	}
	if errFind != nil {
		return nil, 0, errFind
	}

	return users, count, nil
}

func (s *userService) AdminUpdate(ctx context.Context, id string, updates *model.AdminUserUpdate) (*model.User, error) {
	existing, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	s.sanitizeUpdate(&updates.UserUpdate)
	if err := s.validator.ValidateAdminUpdate(updates); err != nil {
		return nil, apperrors.Validation("User validation failed", map[string]any{
			"error": err.Error(),
		})
	}

	merged := s.mergeUserUpdates(existing, &updates.UserUpdate)
	if updates.Role != "" {
		merged.Role = updates.Role
	}

	if err := s.repo.Update(ctx, existing.ID, merged); err != nil {
		s.cfg.Log.Error("Failed to update user",
			"id", existing.ID,
			"error", err,
		)
		return nil, apperrors.Internal("Failed to update user", err)
	}

	s.cfg.Log.Info("User updated by admin",
		"id", existing.ID,
		"role", merged.Role,
	)
	return merged, nil
}

func (s *userService) Delete(ctx context.Context, id string) error {
	if id == "" {
		return apperrors.InvalidInput("User ID cannot be empty")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, userserrors.ErrNotFound) {
			return apperrors.NotFoundWithID("User", id)
		}
		if errors.Is(err, userserrors.ErrInvalidID) {
			return apperrors.InvalidInput("Invalid user ID format")
		}
		s.cfg.Log.Error("Failed to delete user",
			"id", id,
			"error", err,
		)
		return apperrors.Internal("Failed to delete user", err)
	}

	s.cfg.Log.Info("User deleted", "id", id)
	return nil
}

func (s *userService) sanitizeUpdate(updates *model.UserUpdate) {
	if updates.Name != "" {
		updates.Name = sanitizer.NormalizeName(updates.Name)
	}
	if updates.Address != "" {
		updates.Address = sanitizer.TrimAndNormalize(updates.Address)
	}
}

func (s *userService) mergeUserUpdates(existing *model.User, updates *model.UserUpdate) *model.User {
	merged := *existing

	if updates.Name != "" {
		merged.Name = updates.Name
	}
	if updates.Image != "" {
		merged.Image = updates.Image
	}
	if updates.Phone != "" {
		merged.Phone = updates.Phone
	}
	if updates.Address != "" {
		merged.Address = updates.Address
	}

	merged.ID = existing.ID
	merged.CreatedAt = existing.CreatedAt

	return &merged
}
