package handlers

import (
	"io"

	"github.com/gofiber/fiber/v2"

	"github.com/lingopal/lingopal-client/internal/api"
)

// ProxyAudio streams a synthesized or uploaded audio file from the backend so
// the browser never talks to it directly.
func ProxyAudio(client *api.Client) fiber.Handler {
	return func(c *fiber.Ctx) error {
		filename := c.Params("filename")
		body, contentType, err := client.FetchAudio(c.Context(), filename)
		if err != nil {
			if httpErr, ok := err.(*api.HTTPError); ok && httpErr.StatusCode == fiber.StatusNotFound {
				return c.Status(fiber.StatusNotFound).JSON(fiber.Map{
					"error": "Audio file not found",
				})
			}
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		defer body.Close()

		if contentType != "" {
			c.Set(fiber.HeaderContentType, contentType)
		}
		data, err := io.ReadAll(body)
		if err != nil {
			return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{
				"error": err.Error(),
			})
		}
		return c.Send(data)
	}
}
