package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"

	apperrors "orgapi/internal/errors"
	"orgapi/internal/model"
	"orgapi/internal/repository"
)

// Validator checks a candidate before it is persisted. Field problems come back
// as FieldErrors (nil when valid); the error return is reserved for lookups that
// could not run.
type Validator[T any] interface {
	Validate(ctx context.Context, candidate T) (apperrors.FieldErrors, error)
}

// UserCandidate is a user about to be registered. Password is still clear text.
type UserCandidate struct {
	ID        uuid.UUID `json:"userId"`
	FirstName string    `json:"firstName" validate:"required,max=255"`
	LastName  string    `json:"lastName" validate:"required,max=255"`
	Email     string    `json:"email" validate:"required,email,max=255"`
	Password  string    `json:"password" validate:"required,maxbytes=72"`
	Phone     string    `json:"phone" validate:"max=50"`
}

// Credentials is a login attempt.
type Credentials struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

type organisationFields struct {
	Name        string `json:"name" validate:"required,max=255"`
	Description string `json:"description" validate:"max=1024"`
}

var fieldLabels = map[string]string{
	"firstName":   "First name",
	"lastName":    "Last name",
	"email":       "Email",
	"password":    "Password",
	"phone":       "Phone",
	"name":        "Name",
	"description": "Description",
}

// maxPasswordBytes is the longest input bcrypt accepts.
const maxPasswordBytes = 72

func newStructValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// max counts runes; maxbytes bounds the encoded length.
	_ = v.RegisterValidation("maxbytes", func(fl validator.FieldLevel) bool {
		limit, err := strconv.Atoi(fl.Param())
		if err != nil {
			return false
		}
		return len(fl.Field().String()) <= limit
	})
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// fieldErrors converts validator output into one FieldError per failing field, in struct order.
func fieldErrors(err error) (apperrors.FieldErrors, error) {
	if err == nil {
		return nil, nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil, err
	}
	out := make(apperrors.FieldErrors, 0, len(verrs))
	for _, fe := range verrs {
		out = append(out, apperrors.FieldError{Field: fe.Field(), Message: fieldMessage(fe)})
	}
	return out, nil
}

func fieldMessage(fe validator.FieldError) string {
	label, ok := fieldLabels[fe.Field()]
	if !ok {
		label = fe.Field()
	}
	switch fe.Tag() {
	case "required":
		return label + " is required"
	case "email":
		return "Invalid email format"
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", label, fe.Param())
	case "maxbytes":
		return fmt.Sprintf("%s must be at most %s bytes", label, fe.Param())
	default:
		return label + " is invalid"
	}
}

type userValidator struct {
	users    repository.UserRepository
	validate *validator.Validate
}

// NewUserValidator checks required fields, email format, and probes the store
// for an existing email or id.
func NewUserValidator(users repository.UserRepository) Validator[UserCandidate] {
	return &userValidator{users: users, validate: newStructValidator()}
}

func (v *userValidator) Validate(ctx context.Context, c UserCandidate) (apperrors.FieldErrors, error) {
	errs, err := fieldErrors(v.validate.StructCtx(ctx, c))
	if err != nil {
		return nil, err
	}

	if c.Email != "" && !errs.Has("email") {
		taken, err := exists(v.users.FindByEmail(ctx, c.Email))
		if err != nil {
			return nil, fmt.Errorf("check email uniqueness: %w", err)
		}
		if taken {
			errs = append(errs, apperrors.FieldError{Field: "email", Message: "Email already exists"})
		}
	}

	if c.ID != uuid.Nil {
		taken, err := exists(v.users.FindByID(ctx, c.ID))
		if err != nil {
			return nil, fmt.Errorf("check user id uniqueness: %w", err)
		}
		if taken {
			errs = append(errs, apperrors.FieldError{Field: "userId", Message: "User ID already exists"})
		}
	}

	if len(errs) == 0 {
		return nil, nil
	}
	return errs, nil
}

func exists(_ *model.User, err error) (bool, error) {
	if err == nil {
		return true, nil
	}
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, nil
	}
	return false, err
}

type credentialsValidator struct {
	validate *validator.Validate
}

// NewCredentialsValidator checks that email and password are present and the email is well formed.
func NewCredentialsValidator() Validator[Credentials] {
	return &credentialsValidator{validate: newStructValidator()}
}

func (v *credentialsValidator) Validate(ctx context.Context, c Credentials) (apperrors.FieldErrors, error) {
	return fieldErrors(v.validate.StructCtx(ctx, c))
}

type organisationValidator struct {
	validate *validator.Validate
}

// NewOrganisationValidator checks that the name is present.
func NewOrganisationValidator() Validator[*model.Organisation] {
	return &organisationValidator{validate: newStructValidator()}
}

func (v *organisationValidator) Validate(ctx context.Context, org *model.Organisation) (apperrors.FieldErrors, error) {
	return fieldErrors(v.validate.StructCtx(ctx, organisationFields{
		Name:        org.Name,
		Description: org.Description,
	}))
}
