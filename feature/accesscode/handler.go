package accesscode

import (
	"errors"

	"access-sync/core/logger"
	"access-sync/core/pindora"
	"access-sync/feature/accesscode/models"

	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Handler handles HTTP requests for access codes.
type Handler struct {
	service *Service
	jobs    *Jobs
}

// NewHandler creates a new HTTP handler.
func NewHandler(service *Service, jobs *Jobs) *Handler {
	return &Handler{service: service, jobs: jobs}
}

// RegisterRoutes registers the access-code routes.
func (h *Handler) RegisterRoutes(app fiber.Router) {
	group := app.Group("/access-codes")
	group.Get("/reservations/:uuid", h.HandleGetAccessCode)
	group.Post("/reservations/:uuid/sync", h.HandleSyncAccessCode)
	group.Delete("/reservations/:uuid", h.HandleDeleteAccessCode)
	group.Get("/units/:uuid", h.HandleGetUnitInfo)

	app.Post("/jobs/:name/run", h.HandleRunJob)
}

// HandleGetAccessCode returns the access code and derived validity windows
// for the reservation, fetched from the record that owns it.
func (h *Handler) HandleGetAccessCode(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.log, c)

	reservation, ok, err := h.loadReservation(c)
	if !ok {
		return err
	}

	details, err := h.service.GetAccessCode(c.Context(), reservation)
	if err != nil {
		l.Error("Access code lookup failed", zap.Error(err))
		return errorResponse(c, err)
	}

	return c.JSON(details)
}

// HandleSyncAccessCode brings the remote record for the reservation's owning
// entity in line with local state, creating or deleting it as needed.
func (h *Handler) HandleSyncAccessCode(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.log, c)

	reservation, ok, err := h.loadReservation(c)
	if !ok {
		return err
	}

	if err := h.service.SyncAccessCode(c.Context(), reservation); err != nil {
		l.Error("Access code sync failed", zap.Error(err))
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{"status": "synced"})
}

// HandleDeleteAccessCode queues removal of the reservation's access code.
// For reservations inside a series or seasonal group the owning record is
// rescheduled without this reservation rather than deleted.
func (h *Handler) HandleDeleteAccessCode(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.log, c)

	reservation, ok, err := h.loadReservation(c)
	if !ok {
		return err
	}

	if err := h.service.DeleteAccessCodeAsync(c.Context(), reservation); err != nil {
		l.Error("Access code delete dispatch failed", zap.Error(err))
		return errorResponse(c, err)
	}

	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "queued"})
}

// HandleGetUnitInfo returns keypad details for a reservation unit.
func (h *Handler) HandleGetUnitInfo(c *fiber.Ctx) error {
	l := logger.WithRayID(h.service.log, c)

	id, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid uuid",
		})
	}

	info, err := h.service.GetUnitInfo(c.Context(), id)
	if err != nil {
		l.Error("Unit info lookup failed", zap.Error(err))
		return errorResponse(c, err)
	}

	return c.JSON(info)
}

// HandleRunJob triggers one reconciliation job immediately. The lock still
// applies, so a run overlapping the scheduler's is skipped.
func (h *Handler) HandleRunJob(c *fiber.Ctx) error {
	name := c.Params("name")
	l := logger.WithRayID(h.service.log, c)

	if err := h.jobs.RunByName(c.Context(), name); err != nil {
		l.Error("Job run failed", zap.String("job", name), zap.Error(err))
		return errorResponse(c, err)
	}

	return c.JSON(fiber.Map{"status": "completed"})
}

func (h *Handler) loadReservation(c *fiber.Ctx) (*models.Reservation, bool, error) {
	id, err := uuid.Parse(c.Params("uuid"))
	if err != nil {
		return nil, false, c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "invalid uuid",
		})
	}

	reservation, err := h.service.repo.ReservationByExtUUID(c.Context(), id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, false, c.Status(fiber.StatusNotFound).JSON(fiber.Map{
				"error": "reservation not found",
			})
		}
		return nil, false, c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{
			"error": err.Error(),
		})
	}

	return reservation, true, nil
}

// errorResponse maps service errors onto HTTP statuses. Remote rejections
// surface as 502 so callers can tell them apart from our own failures.
func errorResponse(c *fiber.Ctx, err error) error {
	var validation *pindora.ValidationError
	switch {
	case pindora.IsNotFound(err):
		return c.Status(fiber.StatusNotFound).JSON(fiber.Map{"error": err.Error()})
	case errors.As(err, &validation):
		return c.Status(fiber.StatusUnprocessableEntity).JSON(fiber.Map{"error": err.Error()})
	case pindora.IsExternalServiceError(err):
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
}
