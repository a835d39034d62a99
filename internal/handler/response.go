package handler

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/labstack/echo/v4"

	apperrors "orgapi/internal/errors"
	"orgapi/internal/model"
)

// Response is the envelope of every successful reply.
type Response struct {
	Status  string      `json:"status" example:"success"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// UserResponse is the public projection of a user.
type UserResponse struct {
	UserID    string `json:"userId"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
}

// OrganisationResponse is the public projection of an organisation.
type OrganisationResponse struct {
	OrgID       string `json:"orgId"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

func newUserResponse(u *model.User) UserResponse {
	return UserResponse{
		UserID:    u.ID.String(),
		FirstName: u.FirstName,
		LastName:  u.LastName,
		Email:     u.Email,
		Phone:     u.Phone,
	}
}

func newOrganisationResponse(o *model.Organisation) OrganisationResponse {
	return OrganisationResponse{
		OrgID:       o.ID.String(),
		Name:        o.Name,
		Description: o.Description,
	}
}

func success(c echo.Context, code int, message string, data interface{}) error {
	return c.JSON(code, Response{Status: "success", Message: message, Data: data})
}

// fail translates a service error into an echo error carrying the JSON body.
func fail(c echo.Context, err error) error {
	httpErr := apperrors.MapErrorToHTTP(err)
	if httpErr.StatusCode >= http.StatusInternalServerError {
		slog.ErrorContext(c.Request().Context(), "request failed", "path", c.Path(), "error", err)
	}
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.Body()).SetInternal(err)
}

func errorBody(code int, status, message string) *echo.HTTPError {
	return echo.NewHTTPError(code, apperrors.ErrorResponse{
		Status:     status,
		Message:    message,
		StatusCode: code,
	})
}

// ErrorHandler renders errors that carry no envelope, such as unknown routes, in the error body shape.
func ErrorHandler(err error, c echo.Context) {
	if c.Response().Committed {
		return
	}

	var he *echo.HTTPError
	if !errors.As(err, &he) {
		he = errorBody(http.StatusInternalServerError, "Internal Server Error", "Internal server error")
	}

	body := he.Message
	if msg, ok := he.Message.(string); ok {
		body = apperrors.ErrorResponse{Status: "error", Message: msg, StatusCode: he.Code}
	}

	if c.Request().Method == http.MethodHead {
		err = c.NoContent(he.Code)
	} else {
		err = c.JSON(he.Code, body)
	}
	if err != nil {
		slog.ErrorContext(c.Request().Context(), "write error response", "error", err)
	}
}
