package handler

import (
	"net/http"

	"github.com/golang-jwt/jwt/v5"
	"github.com/labstack/echo/v4"

	"todoapp/internal/auth"
	"todoapp/internal/errors"
)

// ContextKeyToken is where the JWT middleware stores the parsed token.
const ContextKeyToken = "user"

// currentUsername returns the username carried by the request's access token.
func currentUsername(c echo.Context) (string, error) {
	token, ok := c.Get(ContextKeyToken).(*jwt.Token)
	if !ok {
		return "", unauthorized()
	}
	username, ok := auth.UsernameFromToken(token)
	if !ok {
		return "", unauthorized()
	}
	return username, nil
}

func unauthorized() *echo.HTTPError {
	return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
		Error: "invalid or missing token",
		Code:  "UNAUTHORIZED",
	})
}

// bindAndValidate decodes form or JSON input into req and validates it.
func bindAndValidate(c echo.Context, req interface{}) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: "invalid request body",
			Code:  "INVALID_REQUEST",
		})
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, errors.ErrorResponse{
			Error: err.Error(),
			Code:  "VALIDATION_FAILED",
		})
	}
	return nil
}

// respondError turns a service error into the matching HTTP error.
func respondError(err error) error {
	httpErr := errors.MapErrorToHTTP(err)
	return echo.NewHTTPError(httpErr.StatusCode, httpErr.ToErrorResponse()).SetInternal(err)
}
