package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apperrors "orgapi/internal/errors"
	"orgapi/internal/middleware"
	"orgapi/internal/service"
)

// OrganisationHandler serves organisation and membership endpoints.
type OrganisationHandler struct {
	orgs  service.OrganisationService
	users service.UserService
}

// NewOrganisationHandler creates an organisation handler.
func NewOrganisationHandler(orgs service.OrganisationService, users service.UserService) *OrganisationHandler {
	return &OrganisationHandler{orgs: orgs, users: users}
}

// CreateOrganisationRequest is the body of an organisation create.
type CreateOrganisationRequest struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// AddMemberRequest is the body of an add-member call.
type AddMemberRequest struct {
	UserID string `json:"userId" validate:"required,uuid"`
}

// OrganisationList wraps a list of organisations.
type OrganisationList struct {
	Organisations []OrganisationResponse `json:"organisations"`
}

// MemberList wraps the members of an organisation.
type MemberList struct {
	Users []UserResponse `json:"users"`
}

var stringFieldLabels = map[string]string{
	"name":        "Name",
	"description": "Description",
}

// Create godoc
// @Summary Create an organisation
// @Description The caller becomes owner and sole member.
// @Tags organisations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param request body CreateOrganisationRequest true "Organisation"
// @Success 201 {object} Response{data=OrganisationResponse}
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ValidationErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/organisations [post]
func (h *OrganisationHandler) Create(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return fail(c, apperrors.ErrUnauthorized)
	}

	var req CreateOrganisationRequest
	if err := c.Bind(&req); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			if label, known := stringFieldLabels[typeErr.Field]; known {
				return fail(c, apperrors.NewValidationError(apperrors.FieldErrors{
					{Field: typeErr.Field, Message: label + " must be a string"},
				}))
			}
		}
		return errorBody(http.StatusBadRequest, "Bad request", "Client error")
	}

	org, err := h.orgs.CreateOrganisation(c.Request().Context(), user, req.Name, req.Description)
	if err != nil {
		return fail(c, err)
	}

	return success(c, http.StatusCreated, "Organisation created successfully", newOrganisationResponse(org))
}

// List godoc
// @Summary List the caller's organisations
// @Tags organisations
// @Produce json
// @Security BearerAuth
// @Success 200 {object} Response{data=OrganisationList}
// @Failure 401 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/organisations [get]
func (h *OrganisationHandler) List(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return fail(c, apperrors.ErrUnauthorized)
	}

	orgs, err := h.orgs.ListOrganisations(c.Request().Context(), user)
	if err != nil {
		return fail(c, err)
	}

	out := OrganisationList{Organisations: make([]OrganisationResponse, 0, len(orgs))}
	for i := range orgs {
		out.Organisations = append(out.Organisations, newOrganisationResponse(&orgs[i]))
	}
	return success(c, http.StatusOK, "Organisations retrieved successfully", out)
}

// Get godoc
// @Summary Get an organisation by id
// @Tags organisations
// @Produce json
// @Security BearerAuth
// @Param orgId path string true "Organisation ID"
// @Success 200 {object} Response{data=OrganisationResponse}
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/organisations/{orgId} [get]
func (h *OrganisationHandler) Get(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return fail(c, apperrors.ErrUnauthorized)
	}

	orgID, err := uuid.Parse(c.Param("orgId"))
	if err != nil {
		return fail(c, apperrors.ErrOrganisationNotFound)
	}

	org, err := h.orgs.RequireMembership(c.Request().Context(), user, orgID)
	if err != nil {
		return fail(c, err)
	}
	return success(c, http.StatusOK, "Organisation retrieved successfully", newOrganisationResponse(org))
}

// ListMembers godoc
// @Summary List the members of an organisation
// @Tags organisations
// @Produce json
// @Security BearerAuth
// @Param orgId path string true "Organisation ID"
// @Success 200 {object} Response{data=MemberList}
// @Failure 401 {object} errors.ErrorResponse
// @Failure 403 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/organisations/{orgId}/users [get]
func (h *OrganisationHandler) ListMembers(c echo.Context) error {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		return fail(c, apperrors.ErrUnauthorized)
	}

	orgID, err := uuid.Parse(c.Param("orgId"))
	if err != nil {
		return fail(c, apperrors.ErrOrganisationNotFound)
	}

	ctx := c.Request().Context()
	if _, err := h.orgs.RequireMembership(ctx, user, orgID); err != nil {
		return fail(c, err)
	}

	members, err := h.users.ListOrganisationMembers(ctx, orgID)
	if err != nil {
		return fail(c, err)
	}

	out := MemberList{Users: make([]UserResponse, 0, len(members))}
	for i := range members {
		out.Users = append(out.Users, newUserResponse(&members[i]))
	}
	return success(c, http.StatusOK, "Users retrieved successfully", out)
}

// AddMember godoc
// @Summary Add a user to an organisation
// @Description Adding an existing member succeeds without change.
// @Tags organisations
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param orgId path string true "Organisation ID"
// @Param request body AddMemberRequest true "User to add"
// @Success 200 {object} Response
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 422 {object} errors.ValidationErrorResponse
// @Failure 500 {object} errors.ErrorResponse
// @Router /api/organisations/{orgId}/users [post]
func (h *OrganisationHandler) AddMember(c echo.Context) error {
	var req AddMemberRequest
	if err := c.Bind(&req); err != nil {
		return errorBody(http.StatusBadRequest, "Bad request", "Client error")
	}
	if err := c.Validate(&req); err != nil {
		return fail(c, addMemberValidationError(err))
	}

	orgID, err := uuid.Parse(c.Param("orgId"))
	if err != nil {
		return errorBody(http.StatusBadRequest, "error", apperrors.ErrOrganisationNotFound.Error())
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		return fail(c, addMemberValidationError(err))
	}

	err = h.orgs.AddMember(c.Request().Context(), orgID, userID)
	switch {
	case errors.Is(err, apperrors.ErrOrganisationNotFound), errors.Is(err, apperrors.ErrUserNotFound):
		return errorBody(http.StatusBadRequest, "error", err.Error())
	case err != nil:
		return fail(c, err)
	}

	return success(c, http.StatusOK, "User added to organisation successfully", nil)
}

func addMemberValidationError(err error) error {
	message := "User ID must be a valid UUID"
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 && verrs[0].Tag() == "required" {
		message = "User ID is required"
	}
	return apperrors.NewValidationError(apperrors.FieldErrors{{Field: "userId", Message: message}})
}
