package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
	"gorm.io/gorm"

	"orgapi/internal/auth"
	apperrors "orgapi/internal/errors"
	"orgapi/internal/model"
	"orgapi/internal/repository"
)

const bcryptCost = 10

var passwordTooLong = apperrors.FieldError{
	Field:   "password",
	Message: fmt.Sprintf("Password must be at most %d bytes", maxPasswordBytes),
}

// placeholderHash is compared against when the email is unknown so both failure paths cost one bcrypt run.
var placeholderHash = sync.OnceValue(func() []byte {
	h, _ := bcrypt.GenerateFromPassword([]byte("placeholder-password"), bcryptCost)
	return h
})

// AuthService handles registration, login and logout.
type AuthService interface {
	Register(ctx context.Context, candidate UserCandidate) (user *model.User, accessToken string, err error)
	Login(ctx context.Context, creds Credentials) (accessToken string, user *model.User, err error)
	Logout(ctx context.Context, claims *auth.Claims) error
}

type authService struct {
	tx                   repository.Transactor
	users                repository.UserRepository
	jwtService           *auth.JWTService
	tokenStore           auth.TokenStoreInterface
	userValidator        Validator[UserCandidate]
	credentialsValidator Validator[Credentials]
}

// NewAuthService creates a new authentication service.
func NewAuthService(
	tx repository.Transactor,
	users repository.UserRepository,
	jwtService *auth.JWTService,
	tokenStore auth.TokenStoreInterface,
) AuthService {
	return &authService{
		tx:                   tx,
		users:                users,
		jwtService:           jwtService,
		tokenStore:           tokenStore,
		userValidator:        NewUserValidator(users),
		credentialsValidator: NewCredentialsValidator(),
	}
}

// DefaultOrganisationName is the name of the organisation created on registration.
func DefaultOrganisationName(firstName string) string {
	return fmt.Sprintf("%s's Organisation", firstName)
}

// Register validates the candidate, then stores the user and their default
// organisation in one transaction and issues an access token.
func (s *authService) Register(ctx context.Context, candidate UserCandidate) (*model.User, string, error) {
	candidate.FirstName = strings.TrimSpace(candidate.FirstName)
	candidate.LastName = strings.TrimSpace(candidate.LastName)
	candidate.Email = normaliseEmail(candidate.Email)
	candidate.Phone = strings.TrimSpace(candidate.Phone)
	if candidate.ID == uuid.Nil {
		candidate.ID = uuid.New()
	}

	fieldErrs, err := s.userValidator.Validate(ctx, candidate)
	if err != nil {
		return nil, "", fmt.Errorf("validate user: %w", err)
	}
	if len(fieldErrs) > 0 {
		return nil, "", apperrors.NewValidationError(fieldErrs)
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(candidate.Password), bcryptCost)
	if errors.Is(err, bcrypt.ErrPasswordTooLong) {
		return nil, "", apperrors.NewValidationError(apperrors.FieldErrors{passwordTooLong})
	}
	if err != nil {
		return nil, "", fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		ID:           candidate.ID,
		FirstName:    candidate.FirstName,
		LastName:     candidate.LastName,
		Email:        candidate.Email,
		PasswordHash: string(hashedPassword),
		Phone:        candidate.Phone,
	}
	org := &model.Organisation{
		ID:      uuid.New(),
		Name:    DefaultOrganisationName(user.FirstName),
		OwnerID: user.ID,
		Members: []*model.User{user},
	}

	err = s.tx.WithTransaction(ctx, func(ctx context.Context, users repository.UserRepository, orgs repository.OrganisationRepository) error {
		if err := users.Create(ctx, user); err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) {
				return apperrors.NewValidationError(apperrors.FieldErrors{
					{Field: "email", Message: "Email already exists"},
				})
			}
			return fmt.Errorf("create user: %w", err)
		}
		if err := orgs.Create(ctx, org); err != nil {
			return fmt.Errorf("create default organisation: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, "", err
	}
	user.OwnedOrganisations = []model.Organisation{*org}

	token, err := s.jwtService.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return nil, "", fmt.Errorf("generate access token: %w", err)
	}

	slog.InfoContext(ctx, "user registered", "user_id", user.ID, "org_id", org.ID)
	return user, token, nil
}

// Login authenticates a user and returns a fresh access token.
func (s *authService) Login(ctx context.Context, creds Credentials) (string, *model.User, error) {
	creds.Email = normaliseEmail(creds.Email)

	fieldErrs, err := s.credentialsValidator.Validate(ctx, creds)
	if err != nil {
		return "", nil, fmt.Errorf("validate credentials: %w", err)
	}
	if len(fieldErrs) > 0 {
		return "", nil, apperrors.NewValidationError(fieldErrs)
	}

	user, err := s.users.FindByEmail(ctx, creds.Email)
	if err != nil {
		if !errors.Is(err, gorm.ErrRecordNotFound) {
			return "", nil, fmt.Errorf("find user: %w", err)
		}
		_ = bcrypt.CompareHashAndPassword(placeholderHash(), []byte(creds.Password))
		return "", nil, apperrors.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(creds.Password)); err != nil {
		return "", nil, apperrors.ErrInvalidCredentials
	}

	accessToken, err := s.jwtService.GenerateAccessToken(user.ID, user.Email)
	if err != nil {
		return "", nil, fmt.Errorf("generate access token: %w", err)
	}

	return accessToken, user, nil
}

// Logout revokes the presented access token for the rest of its lifetime.
func (s *authService) Logout(ctx context.Context, claims *auth.Claims) error {
	if claims == nil || claims.ID == "" || claims.ExpiresAt == nil {
		return apperrors.ErrUnauthorized
	}
	if err := s.tokenStore.RevokeAccessToken(ctx, claims.ID, time.Until(claims.ExpiresAt.Time)); err != nil {
		return fmt.Errorf("revoke access token: %w", err)
	}
	return nil
}

func normaliseEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
