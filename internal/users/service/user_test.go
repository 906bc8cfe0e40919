package service

import (
	"context"
	"testing"
	"time"

	userserrors "tourhub/internal/users/errors"
	"tourhub/internal/users/validator"
	"tourhub/pkg/auth"
	"tourhub/pkg/config"
	apperrors "tourhub/pkg/errors"
	"tourhub/pkg/logger"
	"tourhub/pkg/model"

	"golang.org/x/crypto/bcrypt"
)

// ────────────────────────────────────────────────
// Mock repository for testing
// ────────────────────────────────────────────────

type mockUserRepository struct {
	createFunc      func(ctx context.Context, user *model.User) error
	findByIDFunc    func(ctx context.Context, id string) (*model.User, error)
	findByEmailFunc func(ctx context.Context, email string) (*model.User, error)
	updateFunc      func(ctx context.Context, id string, user *model.User) error
	deleteFunc      func(ctx context.Context, id string) error
}

func (m *mockUserRepository) Create(ctx context.Context, user *model.User) error {
	if m.createFunc != nil {
		return m.createFunc(ctx, user)
	}
	user.ID = "6500000000000000000000aa"
	return nil
}

func (m *mockUserRepository) FindByID(ctx context.Context, id string) (*model.User, error) {
	if m.findByIDFunc != nil {
		return m.findByIDFunc(ctx, id)
	}
	return nil, userserrors.ErrNotFound
}

func (m *mockUserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	if m.findByEmailFunc != nil {
		return m.findByEmailFunc(ctx, email)
	}
	return nil, userserrors.ErrNotFound
}

func (m *mockUserRepository) FindAll(ctx context.Context, limit int, offset int64) ([]*model.User, error) {
	return []*model.User{}, nil
}

func (m *mockUserRepository) Count(ctx context.Context) (int64, error) {
	return 0, nil
}

func (m *mockUserRepository) Update(ctx context.Context, id string, user *model.User) error {
	if m.updateFunc != nil {
		return m.updateFunc(ctx, id, user)
	}
	return nil
}

func (m *mockUserRepository) Delete(ctx context.Context, id string) error {
	if m.deleteFunc != nil {
		return m.deleteFunc(ctx, id)
	}
	return nil
}

func newTestService(repo *mockUserRepository) UserService {
	cfg := &config.Config{
		Log:        logger.Discard(),
		BcryptCost: bcrypt.MinCost,
	}
	tokens := auth.NewManager("0123456789abcdef0123456789abcdef", time.Hour, auth.NewMemoryRevocationStore())
	return NewUserService(repo, validator.NewUserValidator(cfg.Log), tokens, cfg)
}

// ────────────────────────────────────────────────
// Tests for Register()
// ────────────────────────────────────────────────

func TestRegister_DefaultsToTourist(t *testing.T) {
	svc := newTestService(&mockUserRepository{})

	user, err := svc.Register(context.Background(), &validator.Registration{
		Name:            "Lina Haddad",
		Email:           "Lina@Example.COM",
		Password:        "s3cret-pass",
		PasswordConfirm: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if user.Role != model.RoleTourist {
		t.Errorf("expected default role TOURIST, got %s", user.Role)
	}
	if user.Email != "lina@example.com" {
		t.Errorf("expected normalized email, got %s", user.Email)
	}
	if user.PasswordHash == "" || user.PasswordHash == "s3cret-pass" {
		t.Error("password must be stored hashed")
	}
}

func TestRegister_RejectsAdminRole(t *testing.T) {
	svc := newTestService(&mockUserRepository{})

	_, err := svc.Register(context.Background(), &validator.Registration{
		Name:            "Mallory",
		Email:           "mallory@example.com",
		Password:        "s3cret-pass",
		PasswordConfirm: "s3cret-pass",
		Role:            model.RoleAdmin,
	})
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error for ADMIN self-registration, got %v", err)
	}
}

func TestRegister_RejectsPasswordMismatch(t *testing.T) {
	svc := newTestService(&mockUserRepository{})

	_, err := svc.Register(context.Background(), &validator.Registration{
		Name:            "Lina",
		Email:           "lina@example.com",
		Password:        "s3cret-pass",
		PasswordConfirm: "different-pass",
	})
	if !apperrors.IsCode(err, apperrors.CodeValidation) {
		t.Fatalf("expected validation error for password mismatch, got %v", err)
	}
}

func TestRegister_DuplicateEmailConflict(t *testing.T) {
	svc := newTestService(&mockUserRepository{
		createFunc: func(ctx context.Context, user *model.User) error {
			return userserrors.ErrDuplicateEmail
		},
	})

	_, err := svc.Register(context.Background(), &validator.Registration{
		Name:            "Lina",
		Email:           "lina@example.com",
		Password:        "s3cret-pass",
		PasswordConfirm: "s3cret-pass",
		Role:            model.RoleGuide,
	})
	if !apperrors.IsCode(err, apperrors.CodeConflict) {
		t.Fatalf("expected conflict for duplicate email, got %v", err)
	}
}

// ────────────────────────────────────────────────
// Tests for Login() / Logout()
// ────────────────────────────────────────────────

func storedUser(t *testing.T, password string) *model.User {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatalf("failed to hash test password: %v", err)
	}
	return &model.User{
		ID:           "6500000000000000000000aa",
		Name:         "Lina Haddad",
		Email:        "lina@example.com",
		PasswordHash: string(hash),
		Role:         model.RoleTourist,
	}
}

func TestLogin_Success(t *testing.T) {
	stored := storedUser(t, "s3cret-pass")
	svc := newTestService(&mockUserRepository{
		findByEmailFunc: func(ctx context.Context, email string) (*model.User, error) {
			if email != stored.Email {
				return nil, userserrors.ErrNotFound
			}
			return stored, nil
		},
	})

	user, token, err := svc.Login(context.Background(), &validator.Credentials{
		Email:    "LINA@example.com",
		Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if user.ID != stored.ID {
		t.Errorf("expected user %s, got %s", stored.ID, user.ID)
	}
	if token == "" {
		t.Error("expected a session token")
	}
}

func TestLogin_WrongPasswordAndUnknownEmailLookAlike(t *testing.T) {
	stored := storedUser(t, "s3cret-pass")
	svc := newTestService(&mockUserRepository{
		findByEmailFunc: func(ctx context.Context, email string) (*model.User, error) {
			if email != stored.Email {
				return nil, userserrors.ErrNotFound
			}
			return stored, nil
		},
	})

	_, _, errWrongPass := svc.Login(context.Background(), &validator.Credentials{
		Email:    "lina@example.com",
		Password: "wrong-pass",
	})
	_, _, errUnknown := svc.Login(context.Background(), &validator.Credentials{
		Email:    "nobody@example.com",
		Password: "s3cret-pass",
	})

	for _, err := range []error{errWrongPass, errUnknown} {
		if !apperrors.IsCode(err, apperrors.CodeUnauthorized) {
			t.Fatalf("expected unauthorized, got %v", err)
		}
	}
	if errWrongPass.Error() != errUnknown.Error() {
		t.Error("wrong password and unknown email must produce identical errors")
	}
}

func TestLogout_RevokesSession(t *testing.T) {
	stored := storedUser(t, "s3cret-pass")
	repo := &mockUserRepository{
		findByEmailFunc: func(ctx context.Context, email string) (*model.User, error) {
			return stored, nil
		},
	}

	cfg := &config.Config{Log: logger.Discard(), BcryptCost: bcrypt.MinCost}
	tokens := auth.NewManager("0123456789abcdef0123456789abcdef", time.Hour, auth.NewMemoryRevocationStore())
	svc := NewUserService(repo, validator.NewUserValidator(cfg.Log), tokens, cfg)

	_, token, err := svc.Login(context.Background(), &validator.Credentials{
		Email:    "lina@example.com",
		Password: "s3cret-pass",
	})
	if err != nil {
		t.Fatalf("login failed: %v", err)
	}

	principal, err := tokens.Verify(context.Background(), token)
	if err != nil {
		t.Fatalf("token must verify before logout: %v", err)
	}

	if err := svc.Logout(context.Background(), principal); err != nil {
		t.Fatalf("logout failed: %v", err)
	}

	if _, err := tokens.Verify(context.Background(), token); err == nil {
		t.Error("token must be rejected after logout")
	}
}

// ────────────────────────────────────────────────
// Tests for profile and admin updates
// ────────────────────────────────────────────────

func TestUpdateProfile_CannotChangeRoleOrEmail(t *testing.T) {
	stored := storedUser(t, "s3cret-pass")
	var saved *model.User
	svc := newTestService(&mockUserRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
			return stored, nil
		},
		updateFunc: func(ctx context.Context, id string, user *model.User) error {
			saved = user
			return nil
		},
	})

	principal := &auth.Principal{UserID: stored.ID, Role: stored.Role}
	updated, err := svc.UpdateProfile(context.Background(), principal, &model.UserUpdate{
		Name:    "  Lina   M.  Haddad ",
		Address: "Amman, Jordan",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if updated.Name != "Lina M. Haddad" {
		t.Errorf("expected normalized name, got %q", updated.Name)
	}
	if saved.Role != model.RoleTourist || saved.Email != "lina@example.com" {
		t.Error("profile update must not touch role or email")
	}
}

func TestAdminUpdate_CanReassignRole(t *testing.T) {
	stored := storedUser(t, "s3cret-pass")
	svc := newTestService(&mockUserRepository{
		findByIDFunc: func(ctx context.Context, id string) (*model.User, error) {
			return stored, nil
		},
	})

	updated, err := svc.AdminUpdate(context.Background(), stored.ID, &model.AdminUserUpdate{
		Role: model.RoleGuide,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if updated.Role != model.RoleGuide {
		t.Errorf("expected role GUIDE, got %s", updated.Role)
	}
}

func TestGetByID_NotFound(t *testing.T) {
	svc := newTestService(&mockUserRepository{})

	_, err := svc.GetByID(context.Background(), "6500000000000000000000ff")
	if !apperrors.IsCode(err, apperrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}
