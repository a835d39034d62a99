package router

import (
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	echoSwagger "github.com/swaggo/echo-swagger"

	"orgapi/internal/handler"
	"orgapi/internal/metrics"
	"orgapi/internal/middleware"
)

// Register wires routes and middleware. requireAuth guards every route that needs a caller.
func Register(
	e *echo.Echo,
	m *metrics.Metrics,
	requireAuth echo.MiddlewareFunc,
	authHandler *handler.AuthHandler,
	organisationHandler *handler.OrganisationHandler,
	userHandler *handler.UserHandler,
) {
	e.HTTPErrorHandler = handler.ErrorHandler
	e.Validator = &CustomValidator{validator: validator.New()}

	e.Use(echomw.RequestID())
	e.Use(echomw.Recover())
	e.Use(middleware.RequestLogger())
	e.Use(middleware.Metrics(m))

	e.GET("/healthz", func(c echo.Context) error {
		return c.String(http.StatusOK, "ok")
	})
	e.GET("/metrics", echo.WrapHandler(m.Handler()))
	e.GET("/api-docs/*", echoSwagger.WrapHandler)

	authGroup := e.Group("/auth")
	authGroup.POST("/register", authHandler.Register)
	authGroup.POST("/login", authHandler.Login)
	authGroup.POST("/logout", authHandler.Logout, requireAuth)

	api := e.Group("/api", requireAuth)

	api.GET("/organisations", organisationHandler.List)
	api.POST("/organisations", organisationHandler.Create)
	api.GET("/organisations/:orgId", organisationHandler.Get)
	api.GET("/organisations/:orgId/users", organisationHandler.ListMembers)
	api.POST("/organisations/:orgId/users", organisationHandler.AddMember)

	api.GET("/users/:id", userHandler.GetUser)
}

// CustomValidator wraps validator for Echo.
type CustomValidator struct {
	validator *validator.Validate
}

// Validate implements echo.Validator interface.
func (cv *CustomValidator) Validate(i interface{}) error {
	return cv.validator.Struct(i)
}
