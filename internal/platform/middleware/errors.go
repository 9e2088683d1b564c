package middleware

import (
	"github.com/labstack/echo/v4"
)

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

// jsonError writes the API's failure envelope with the given status.
func jsonError(c echo.Context, status int, msg string) error {
	if c.Response().Committed {
		return nil
	}
	return c.JSON(status, errorBody{Success: false, Error: msg})
}
