package httpserver

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

type Deps struct {
	CatalogHandler *CatalogHTTP
	AuthHandler    *AuthHTTP
	RequireAdmin   echo.MiddlewareFunc
	// LoginLimiter is optional.
	LoginLimiter echo.MiddlewareFunc
}

// Register mounts the API under /api and again at the root for older clients.
func Register(e *echo.Echo, d *Deps) {
	e.GET("/health/live", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })
	e.GET("/health/ready", func(c echo.Context) error { return c.NoContent(http.StatusNoContent) })

	for _, prefix := range []string{"/api", ""} {
		registerAPI(e.Group(prefix), d)
	}
}

func registerAPI(g *echo.Group, d *Deps) {
	var loginMW []echo.MiddlewareFunc
	if d.LoginLimiter != nil {
		loginMW = append(loginMW, d.LoginLimiter)
	}
	g.POST("/login", d.AuthHandler.Login, loginMW...)

	g.GET("/products", d.CatalogHandler.GetProducts)
	g.GET("/products/search", d.CatalogHandler.SearchProducts)
	g.GET("/products/:id", d.CatalogHandler.GetProduct)

	g.POST("/products", d.CatalogHandler.CreateProduct, d.RequireAdmin)
	g.PUT("/products/:id", d.CatalogHandler.UpdateProduct, d.RequireAdmin)
	g.PATCH("/products/:id", d.CatalogHandler.UpdateProduct, d.RequireAdmin)
	g.DELETE("/products/:id", d.CatalogHandler.DeleteProduct, d.RequireAdmin)
}
