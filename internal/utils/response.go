package utils

import "github.com/gofiber/fiber/v2"

// APIResponse is the envelope shared by every JSON response of the API.
type APIResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Meta    interface{} `json:"meta,omitempty"`
	Details interface{} `json:"details,omitempty"`
	Message string      `json:"message"`
}

// SendSuccess answers 200 with data.
func SendSuccess(c *fiber.Ctx, message string, data interface{}) error {
	return SendSuccessWithStatus(c, fiber.StatusOK, message, data)
}

// SendSuccessWithStatus answers with data under the given status, e.g. 201 for a sent
// message or 202 for a published alert.
func SendSuccessWithStatus(c *fiber.Ctx, status int, message string, data interface{}) error {
	return write(c, status, fiber.StatusOK, APIResponse{Success: true, Data: data, Message: orDefault(message, "success")})
}

// OK answers 200 with data and pagination or count metadata.
func OK(c *fiber.Ctx, data interface{}, message string, meta interface{}) error {
	return write(c, fiber.StatusOK, fiber.StatusOK, APIResponse{Success: true, Data: data, Meta: meta, Message: orDefault(message, "success")})
}

// SendError answers with an error envelope and no details.
func SendError(c *fiber.Ctx, status int, message string) error {
	return Fail(c, status, message, nil)
}

// Fail answers with an error envelope; details usually map rejected fields to the
// validation tag that failed.
func Fail(c *fiber.Ctx, status int, message string, details interface{}) error {
	return write(c, status, fiber.StatusInternalServerError, APIResponse{Details: details, Message: orDefault(message, "error")})
}

func write(c *fiber.Ctx, status, fallback int, body APIResponse) error {
	if status == 0 {
		status = fallback
	}
	return c.Status(status).JSON(body)
}

func orDefault(value, fallback string) string {
	if value == "" {
		return fallback
	}
	return value
}
