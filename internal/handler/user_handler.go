package handler

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"todoapp/internal/errors"
	"todoapp/internal/service"
	"todoapp/internal/timefmt"
)

// UserHandler serves the signed-in user's profile.
type UserHandler struct {
	svc  service.UserService
	zone *timefmt.Zone
}

// NewUserHandler creates a handler layer.
func NewUserHandler(svc service.UserService, zone *timefmt.Zone) *UserHandler {
	return &UserHandler{svc: svc, zone: zone}
}

// UpdateEmailRequest changes the account email.
type UpdateEmailRequest struct {
	Email string `json:"email" form:"email" validate:"required,email"`
}

// Me godoc
// @Summary Current user
// @Tags users
// @Produce json
// @Security BearerAuth
// @Success 200 {object} UserView
// @Failure 401 {object} errors.ErrorResponse
// @Failure 404 {object} errors.ErrorResponse
// @Router /me [get]
func (h *UserHandler) Me(c echo.Context) error {
	username, err := currentUsername(c)
	if err != nil {
		return err
	}
	user, err := h.svc.FindByUsername(c.Request().Context(), username)
	if err != nil {
		return respondError(err)
	}
	if user == nil {
		return respondError(errors.NewNotFoundError("user", username))
	}
	return c.JSON(http.StatusOK, newUserView(h.zone, user))
}

// UpdateEmail godoc
// @Summary Change the current user's email
// @Tags users
// @Accept json,x-www-form-urlencoded
// @Produce json
// @Security BearerAuth
// @Param request body UpdateEmailRequest true "New email"
// @Success 200 {object} UserView
// @Failure 400 {object} errors.ErrorResponse
// @Failure 401 {object} errors.ErrorResponse
// @Failure 409 {object} errors.ErrorResponse
// @Router /me/email [put]
func (h *UserHandler) UpdateEmail(c echo.Context) error {
	username, err := currentUsername(c)
	if err != nil {
		return err
	}
	var req UpdateEmailRequest
	if err := bindAndValidate(c, &req); err != nil {
		return err
	}

	ctx := c.Request().Context()
	user, err := h.svc.FindByUsername(ctx, username)
	if err != nil {
		return respondError(err)
	}
	if user == nil {
		return respondError(errors.NewNotFoundError("user", username))
	}
	if err := h.svc.UpdateEmail(ctx, user.ID, req.Email); err != nil {
		return respondError(err)
	}

	user, err = h.svc.FindByUsername(ctx, username)
	if err != nil || user == nil {
		return respondError(err)
	}
	return c.JSON(http.StatusOK, newUserView(h.zone, user))
}
