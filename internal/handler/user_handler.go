package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apperrors "orgapi/internal/errors"
	"orgapi/internal/middleware"
	"orgapi/internal/service"
)

// UserHandler serves user lookups.
type UserHandler struct {
	svc service.UserService
}

// NewUserHandler creates a user handler.
func NewUserHandler(svc service.UserService) *UserHandler {
	return &UserHandler{svc: svc}
}

// GetUser godoc
// @Summary Get user by id
// @Description Callers see themselves and users they share an organisation with.
// @Tags users
// @Produce json
// @Security BearerAuth
// @Param id path string true "User ID"
// @Success 200 {object} Response{data=UserResponse}
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/users/{id} [get]
func (h *UserHandler) GetUser(c echo.Context) error {
	requester, ok := middleware.CurrentUser(c)
	if !ok {
		return fail(c, apperrors.ErrUnauthorized)
	}

	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		return fail(c, apperrors.ErrUserNotFound)
	}

	user, err := h.svc.GetVisibleUser(c.Request().Context(), requester, id)
	if err != nil {
		return fail(c, err)
	}
	return success(c, http.StatusOK, "User retrieved successfully", newUserResponse(user))
}
