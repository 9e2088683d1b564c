package middleware

import (
	"fmt"
	"net/http"
	"runtime"

	"github.com/labstack/echo/v4"
	"github.com/rs/zerolog"
)

// Recovery turns a handler panic into a 500 with the JSON failure envelope.
func Recovery(logger zerolog.Logger) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) (err error) {
			defer func() {
				if r := recover(); r != nil {
					var stack [4096]byte
					n := runtime.Stack(stack[:], false)

					evt := logger.Error().
						Str("request_id", fmt.Sprintf("%v", c.Get("request_id"))).
						Str("path", c.Request().URL.Path).
						Str("panic", fmt.Sprintf("%v", r)).
						Str("stack", string(stack[:n]))
					if id := instanceID(c); id != "" {
						evt = evt.Str("instance_id", id)
					}
					evt.Msg("panic recovered")

					err = jsonError(c, http.StatusInternalServerError, "internal server error")
				}
			}()
			return next(c)
		}
	}
}

// instanceID returns the instance a request targets, from the route or query.
func instanceID(c echo.Context) string {
	if id := c.Param("instanceId"); id != "" {
		return SanitizeString(id)
	}
	return SanitizeString(c.QueryParam("instanceId"))
}
