package router

import (
	"net/http"

	_ "github.com/anonto42/safecircle/backend/docs"
	"github.com/labstack/echo/v4"
	httpSwagger "github.com/swaggo/http-swagger/v2"
)

// RegisterDocsRoutes serves the OpenAPI document and Swagger UI under /api-docs.
// Regenerate docs/ with `swag init -g cmd/server/docs.go` after changing handler annotations.
func RegisterDocsRoutes(e *echo.Echo) {
	e.GET("/api-docs", func(c echo.Context) error {
		return c.Redirect(http.StatusMovedPermanently, "/api-docs/index.html")
	})
	e.GET("/api-docs/*", echo.WrapHandler(httpSwagger.Handler(
		httpSwagger.URL("/api-docs/doc.json"),
		httpSwagger.DeepLinking(true),
		httpSwagger.DocExpansion("list"),
		httpSwagger.DomID("swagger-ui"),
	)))
}
