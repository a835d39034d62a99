package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "orgapi/internal/errors"
	"orgapi/internal/middleware"
	"orgapi/internal/service"
)

// AuthHandler handles authentication endpoints.
type AuthHandler struct {
	authService service.AuthService
}

// NewAuthHandler creates a new auth handler.
func NewAuthHandler(authService service.AuthService) *AuthHandler {
	return &AuthHandler{authService: authService}
}

// RegisterRequest represents a user registration request.
type RegisterRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Password  string `json:"password"`
	Phone     string `json:"phone"`
}

// LoginRequest represents a user login request.
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthData is the payload of a successful register or login.
type AuthData struct {
	AccessToken string       `json:"accessToken"`
	User        UserResponse `json:"user"`
}

// Register godoc
// @Summary Register a new user
// @Description Creates the user and their default organisation and returns an access token.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration data"
// @Success 201 {object} Response{data=AuthData}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ValidationErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/register [post]
func (h *AuthHandler) Register(c echo.Context) error {
	var req RegisterRequest
	if err := c.Bind(&req); err != nil {
		return errorBody(http.StatusBadRequest, "Bad request", "Registration unsuccessful")
	}

	user, token, err := h.authService.Register(c.Request().Context(), service.UserCandidate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Email:     req.Email,
		Password:  req.Password,
		Phone:     req.Phone,
	})
	if err != nil {
		return fail(c, err)
	}

	return success(c, http.StatusCreated, "Registration successful", AuthData{
		AccessToken: token,
		User:        newUserResponse(user),
	})
}

// Login godoc
// @Summary Login user
// @Description The response has the same shape as register: data.accessToken and the user projection under data.user.
// @Tags auth
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login credentials"
// @Success 200 {object} Response{data=AuthData}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ValidationErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/login [post]
func (h *AuthHandler) Login(c echo.Context) error {
	var req LoginRequest
	if err := c.Bind(&req); err != nil {
		return errorBody(http.StatusBadRequest, "Bad request", "Client error")
	}

	token, user, err := h.authService.Login(c.Request().Context(), service.Credentials{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		return fail(c, err)
	}

	return success(c, http.StatusOK, "Login successful", AuthData{
		AccessToken: token,
		User:        newUserResponse(user),
	})
}

// Logout godoc
// @Summary Revoke the presented access token
// @Description Fails with 500 when the revocation cannot be stored, in which case the token stays valid.
// @Tags auth
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /auth/logout [post]
func (h *AuthHandler) Logout(c echo.Context) error {
	claims, ok := middleware.CurrentClaims(c)
	if !ok {
		return fail(c, apperrors.ErrUnauthorized)
	}

	if err := h.authService.Logout(c.Request().Context(), claims); err != nil {
		return fail(c, err)
	}

	return success(c, http.StatusOK, "Logout successful", nil)
}
