package ticketing

import (
	"errors"

	"ticketing-sync/core/logger"
	"ticketing-sync/feature/ticketing/providers"
	"ticketing-sync/feature/ticketing/sync"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"
)

// Handler handles HTTP requests for ticketing synchronization.
type Handler struct {
	service *Service
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service) *Handler {
	return &Handler{service: service}
}

// RegisterRoutes registers the ticketing routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/ticketing")
	group.Post("/sync", h.HandleSync)
	group.Post("/check", h.HandleCheck)
}

// HandleSync triggers one reconciled synchronization pass for an
// organization and returns the per-serie classification summary.
func (h *Handler) HandleSync(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req SyncRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	summary, err := h.service.Sync(c.Context(), req)
	if err != nil {
		return respondError(c, l, err)
	}
	return c.JSON(summary)
}

// HandleCheck validates an organization's ticketing credentials.
func (h *Handler) HandleCheck(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.logger, c)

	var req SyncRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "invalid request body"})
	}

	ok, err := h.service.Check(c.Context(), req)
	if err != nil {
		return respondError(c, l, err)
	}
	return c.JSON(fiber.Map{"connected": ok})
}

// respondError maps engine errors to HTTP responses. Typed business errors
// carry a stable code the presentation layer localizes; everything else is
// surfaced generically so internals never leak.
func respondError(c *fiber.Ctx, l *zap.Logger, err error) error {
	var invalid validator.ValidationErrors
	if errors.As(err, &invalid) {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	var business *providers.Error
	if errors.As(err, &business) {
		status := fiber.StatusUnprocessableEntity
		if business == sync.ErrSyncAlreadyOngoing {
			status = fiber.StatusConflict
		}
		return c.Status(status).JSON(fiber.Map{
			"code":  business.Code,
			"error": business.Message,
		})
	}

	l.Error("ticketing request failed", zap.Error(err))
	return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
		"error": "unexpected error",
	})
}
