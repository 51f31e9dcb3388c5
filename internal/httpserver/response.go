package httpserver

import (
	"github.com/labstack/echo/v4"
)

// Envelope is the body shape of every successful response.
type Envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data,omitempty"`
	Message string `json:"message,omitempty"`
	Count   *int   `json:"count,omitempty"`
}

func respond(c echo.Context, code int, data any, message string) error {
	return c.JSON(code, Envelope{Success: true, Data: data, Message: message})
}

func respondList[T any](c echo.Context, code int, items []T) error {
	if items == nil {
		items = []T{}
	}
	n := len(items)
	return c.JSON(code, Envelope{Success: true, Data: items, Count: &n})
}
