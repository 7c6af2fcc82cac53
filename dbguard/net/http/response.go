package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

// ErrorResponse is the body written for failed requests.
type ErrorResponse struct {
	Code    string `json:"code"`
	Title   string `json:"title"`
	Message string `json:"message"`
}

// JSONResponse sends a custom status code and body as a JSON response.
func JSONResponse(c *fiber.Ctx, status int, s any) error {
	return c.Status(status).JSON(s)
}

// OK sends an HTTP 200 OK response with a custom body.
func OK(c *fiber.Ctx, s any) error {
	return JSONResponse(c, fiber.StatusOK, s)
}

// WriteError writes a structured error response.
func WriteError(c *fiber.Ctx, status int, title, message string) error {
	return JSONResponse(c, status, ErrorResponse{
		Code:    strconv.Itoa(status),
		Title:   title,
		Message: message,
	})
}
