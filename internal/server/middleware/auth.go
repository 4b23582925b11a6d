package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/labstack/echo/v4"
)

// AuthMiddleware authorizes API requests with a static key in the
// X-API-Key header. Comparison is constant-time.
func AuthMiddleware(next echo.HandlerFunc) echo.HandlerFunc {
	return func(c echo.Context) error {
		cc, ok := c.(*AppContext)
		if !ok || cc.App.APIKey == "" {
			return c.JSON(http.StatusInternalServerError, map[string]string{
				"message": "Server misconfigured",
			})
		}

		key := c.Request().Header.Get("X-API-Key")
		if key == "" || subtle.ConstantTimeCompare([]byte(key), []byte(cc.App.APIKey)) != 1 {
			return c.JSON(http.StatusUnauthorized, map[string]string{
				"message": "Unauthorized",
			})
		}

		return next(c)
	}
}
