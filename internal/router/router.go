package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	echojwt "github.com/labstack/echo-jwt/v4"
	"github.com/labstack/echo/v4"
	"github.com/labstack/echo/v4/middleware"
	"github.com/sirupsen/logrus"
	echoSwagger "github.com/swaggo/echo-swagger"

	"todoapp/internal/auth"
	"todoapp/internal/errors"
	"todoapp/internal/handler"
	"todoapp/internal/logging"
)

// Handlers groups everything Register mounts.
type Handlers struct {
	Auth *handler.AuthHandler
	User *handler.UserHandler
	Task *handler.TaskHandler
}

// Register wires routes and middleware.
func Register(e *echo.Echo, log *logrus.Logger, jwtSecret []byte, h Handlers) {
	e.Use(middleware.RequestID())
	e.Use(logging.RequestLogger(log))
	e.Use(middleware.Recover())

	e.Validator = NewValidator()

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})

	e.GET("/swagger/*", echoSwagger.WrapHandler)

	api := e.Group("/api")

	// Public routes
	api.POST("/auth/signup", h.Auth.Signup)
	api.POST("/auth/login", h.Auth.Login)
	api.POST("/auth/refresh", h.Auth.Refresh)
	api.POST("/auth/logout", h.Auth.Logout)

	// Secured routes (require JWT authentication)
	secured := api.Group("", JWTMiddleware(jwtSecret))

	secured.GET("/me", h.User.Me)
	secured.PUT("/me/email", h.User.UpdateEmail)

	secured.GET("/dashboard", h.Task.Dashboard)
	secured.GET("/tasks", h.Task.List)
	secured.POST("/tasks", h.Task.Create)
	secured.GET("/tasks/:id", h.Task.Get)
	secured.DELETE("/tasks/:id", h.Task.Delete)
	secured.POST("/tasks/:id/complete", h.Task.Complete)
	secured.GET("/tasks/:id/progress", h.Task.Progress)
	secured.POST("/tasks/:id/subtasks", h.Task.AddSubtask)

	secured.POST("/subtasks/:id/complete", h.Task.CompleteSubtask)
	secured.DELETE("/subtasks/:id", h.Task.DeleteSubtask)
}

// JWTMiddleware accepts bearer access tokens signed with secret and stores
// the parsed token under handler.ContextKeyToken. Refresh tokens are rejected.
func JWTMiddleware(secret []byte) echo.MiddlewareFunc {
	return echojwt.WithConfig(echojwt.Config{
		TokenLookup: "header:" + echo.HeaderAuthorization + ":Bearer ",
		ContextKey:  handler.ContextKeyToken,
		ParseTokenFunc: func(_ echo.Context, raw string) (interface{}, error) {
			token, _, err := auth.ParseToken(secret, raw, auth.TokenTypeAccess)
			return token, err
		},
		ErrorHandler: func(c echo.Context, err error) error {
			return echo.NewHTTPError(http.StatusUnauthorized, errors.ErrorResponse{
				Error: "invalid or missing token",
				Code:  "UNAUTHORIZED",
			}).SetInternal(err)
		},
	})
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// NewValidator returns the request validator used by every handler.
func NewValidator() *CustomValidator {
	return &CustomValidator{validator: validator.New()}
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
