package validator

import (
	"errors"
	"fmt"
	"strings"

	"tourhub/pkg/logger"
	"tourhub/pkg/model"

	"github.com/go-playground/validator/v10"
)

type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

func (v ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", v.Field, v.Message)
}

type ValidationErrors []ValidationError

func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return ""
	}
	var messages []string
	for _, err := range v {
		messages = append(messages, err.Error())
	}
	return fmt.Sprintf("validation failed: %d error(s): [%s]", len(v), strings.Join(messages, "; "))
}

// Registration is the self-service signup payload. ADMIN is deliberately
// not an accepted role here.
type Registration struct {
	Name            string     `json:"name" validate:"required,min=2,max=100"`
	Email           string     `json:"email" validate:"required,email"`
	Password        string     `json:"password" validate:"required,min=8,max=72"`
	PasswordConfirm string     `json:"password_confirm" validate:"required,eqfield=Password"`
	Role            model.Role `json:"role" validate:"omitempty,oneof=TOURIST GUIDE"`
}

type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type UserValidator struct {
	validate *validator.Validate
	logger   *logger.Logger
}

func NewUserValidator(log *logger.Logger) *UserValidator {
	return &UserValidator{
		validate: validator.New(),
		logger:   log,
	}
}

func (v *UserValidator) ValidateRegistration(reg *Registration) error {
	return v.translate(v.validate.Struct(reg))
}

func (v *UserValidator) ValidateCredentials(creds *Credentials) error {
	return v.translate(v.validate.Struct(creds))
}

func (v *UserValidator) Validate(user *model.User) error {
	return v.translate(v.validate.Struct(user))
}

func (v *UserValidator) ValidateUpdate(update *model.UserUpdate) error {
	return v.translate(v.validate.Struct(update))
}

func (v *UserValidator) ValidateAdminUpdate(update *model.AdminUserUpdate) error {
	return v.translate(v.validate.Struct(update))
}

func (v *UserValidator) translate(err error) error {
	if err == nil {
		return nil
	}
	var validationErrs validator.ValidationErrors
	if errors.As(err, &validationErrs) {
		return translateValidationErrors(validationErrs)
	}
	return err
}

func translateValidationErrors(errs validator.ValidationErrors) ValidationErrors {
	var validationErrors ValidationErrors

	for _, err := range errs {
		message := err.Error()

		switch err.Tag() {
		case "required":
			message = fmt.Sprintf("%s is required", err.Field())
		case "min":
			message = fmt.Sprintf("%s must be at least %s", err.Field(), err.Param())
		case "max":
			message = fmt.Sprintf("%s must be at most %s", err.Field(), err.Param())
		case "email":
			message = fmt.Sprintf("%s must be a valid email address", err.Field())
		case "eqfield":
			message = fmt.Sprintf("%s must match %s", err.Field(), err.Param())
		case "oneof":
			message = fmt.Sprintf("%s must be one of: %s", err.Field(), err.Param())
		case "mongodb":
			message = fmt.Sprintf("%s must be a valid MongoDB ObjectID", err.Field())
		case "e164":
			message = fmt.Sprintf("%s must be in E.164 format (e.g., +962791234567)", err.Field())
		case "url":
			message = fmt.Sprintf("%s must be a valid URL", err.Field())
		}

		validationErrors = append(validationErrors, ValidationError{
			Field:   err.Field(),
			Message: message,
		})
	}

	return validationErrors
}
