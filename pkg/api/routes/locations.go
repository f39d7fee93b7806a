package routes

import (
	"errors"

	"github.com/fleetlive/fleetlive/pkg/ingest"
	"github.com/fleetlive/fleetlive/pkg/store"
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog/log"
)

func LocationsRouter(router fiber.Router, ingestService *ingest.Service) {
	router.Post("/", createLocation(ingestService))
}

func createLocation(ingestService *ingest.Service) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var candidate ingest.CandidateReport
		if err := c.BodyParser(&candidate); err != nil {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "Could not parse location report",
			})
		}

		report, err := ingestService.Submit(c.Context(), candidate)

		var validationError *ingest.ValidationError
		if errors.As(err, &validationError) {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": validationError.Reason,
				"field": validationError.Field,
			})
		} else if errors.Is(err, store.ErrNotFound) {
			c.SendStatus(fiber.StatusNotFound)
			return c.JSON(fiber.Map{
				"error": "Could not find Vehicle matching Vehicle Identifier",
			})
		} else if err != nil {
			log.Error().Err(err).Msg("Failed to ingest location report")

			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Failed to save location report",
			})
		}

		c.SendStatus(fiber.StatusCreated)
		return c.JSON(fiber.Map{
			"ok":         true,
			"recordedAt": report.RecordedAt,
		})
	}
}
