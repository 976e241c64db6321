package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/pulseboard/pulseboard-api/internal/dto"
	"github.com/pulseboard/pulseboard-api/internal/service"
	"github.com/pulseboard/pulseboard-api/internal/utils"
)

// ActivityHandler serves the activity ingest and pull-query endpoints.
type ActivityHandler struct {
	service service.ActivityService
	logger  zerolog.Logger
}

// NewActivityHandler constructs the handler instance.
func NewActivityHandler(service service.ActivityService, logger zerolog.Logger) *ActivityHandler {
	return &ActivityHandler{
		service: service,
		logger:  logger.With().Str("component", "activity_handler").Logger(),
	}
}

// Register wires the activity routes.
func (h *ActivityHandler) Register(router fiber.Router) {
	router.Get("/", h.list)
	router.Get("/snapshot", h.snapshot)
	router.Post("/", h.record)
	router.Post("/seed", h.seed)
}

// list answers the pull query. The type discriminator selects the same
// aggregations the live stream pushes; both shapes stay renderable even when
// the store is down.
func (h *ActivityHandler) list(c *fiber.Ctx) error {
	ctx := requestContext(c)

	switch c.Query("type") {
	case "weekly-logins":
		buckets, err := h.service.WeeklyLogins(ctx)
		if err != nil {
			requestLogger(h.logger, c).Warn().Err(err).Msg("weekly logins served from fallback")
		}
		return utils.SendSuccess(c, "weekly logins retrieved", buckets)
	case "recent":
		recent, err := h.service.Recent(ctx)
		if err != nil {
			requestLogger(h.logger, c).Warn().Err(err).Msg("recent activities served from fallback")
		}
		return utils.SendSuccess(c, "recent activities retrieved", recent)
	default:
		items, err := h.service.List(ctx)
		if err != nil {
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to fetch activities")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to fetch activities")
		}
		return utils.SendSuccess(c, "activities retrieved", items)
	}
}

func (h *ActivityHandler) snapshot(c *fiber.Ctx) error {
	snapshot, err := h.service.Snapshot(requestContext(c))
	if err != nil {
		requestLogger(h.logger, c).Warn().Err(err).Msg("snapshot served from fallback")
	}
	return utils.SendSuccess(c, "activity snapshot retrieved", snapshot)
}

func (h *ActivityHandler) record(c *fiber.Ctx) error {
	var req dto.ActivityRecordRequest
	if err := c.BodyParser(&req); err != nil {
		return utils.SendError(c, fiber.StatusBadRequest, "invalid payload")
	}

	event, err := h.service.Record(requestContext(c), req)
	if err != nil {
		switch {
		case isValidationError(err), errors.Is(err, service.ErrUnknownAction):
			return utils.SendError(c, fiber.StatusBadRequest, err.Error())
		case errors.Is(err, service.ErrStoreUnavailable):
			return utils.SendError(c, fiber.StatusServiceUnavailable, "activity store unavailable")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("failed to record activity")
			return utils.SendError(c, fiber.StatusInternalServerError, "failed to record activity")
		}
	}

	return utils.SendSuccessWithStatus(c, fiber.StatusCreated, "activity recorded", event)
}

func (h *ActivityHandler) seed(c *fiber.Ctx) error {
	token := c.Get("X-Seed-Token")
	if token == "" {
		token = c.Query("token")
	}

	seeded, err := h.service.Seed(requestContext(c), token)
	if err != nil {
		switch {
		case errors.Is(err, service.ErrSeedDisabled):
			return utils.SendError(c, fiber.StatusForbidden, "seeding disabled")
		case errors.Is(err, service.ErrSeedUnauthorized):
			return utils.SendError(c, fiber.StatusForbidden, "invalid token")
		default:
			requestLogger(h.logger, c).Error().Err(err).Msg("seed operation failed")
			return utils.SendError(c, fiber.StatusInternalServerError, "seed operation failed")
		}
	}

	return utils.SendSuccess(c, "activities seeded", fiber.Map{"seeded": seeded})
}
