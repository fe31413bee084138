package auth

import (
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestApp(apiKey string) *fiber.App {
	app := fiber.New()
	app.Use(New(Config{ApiKey: apiKey}))
	app.Get("/", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

// TestNew tests the API key gate.
func TestNew(t *testing.T) {
	tests := []struct {
		name         string
		configured   string
		provided     string
		expectStatus int
	}{
		{name: "correct key", configured: "sekret", provided: "sekret", expectStatus: fiber.StatusOK},
		{name: "wrong key", configured: "sekret", provided: "nope", expectStatus: fiber.StatusUnauthorized},
		{name: "missing key", configured: "sekret", provided: "", expectStatus: fiber.StatusUnauthorized},
		{name: "empty config disables the check", configured: "", provided: "", expectStatus: fiber.StatusOK},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app := newTestApp(tt.configured)

			req := httptest.NewRequest(fiber.MethodGet, "/", nil)
			if tt.provided != "" {
				req.Header.Set(HeaderName, tt.provided)
			}

			resp, err := app.Test(req, -1)
			require.NoError(t, err)
			assert.Equal(t, tt.expectStatus, resp.StatusCode)
		})
	}
}
