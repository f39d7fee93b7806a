package routes

import (
	"errors"

	"github.com/fleetlive/fleetlive/pkg/store"
	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/rs/zerolog/log"
)

func StopsRouter(router fiber.Router, recordStore store.Store) {
	router.Get("/", listStops(recordStore))
	router.Get("/:identifier", getStop(recordStore))
}

func listStops(recordStore store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		stops, err := recordStore.Stops(c.Context())
		if err != nil {
			log.Error().Err(err).Msg("Failed to list Stops")

			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Failed to list Stops",
			})
		}

		stopsReduced, err := sheriff.Marshal(&sheriff.Options{
			Groups: []string{"basic"},
		}, stops)
		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Sheriff could not reduce Stops",
			})
		}

		return c.JSON(stopsReduced)
	}
}

func getStop(recordStore store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := c.Params("identifier")

		stop, err := recordStore.GetStop(c.Context(), identifier)
		if errors.Is(err, store.ErrNotFound) {
			c.SendStatus(fiber.StatusNotFound)
			return c.JSON(fiber.Map{
				"error": "Could not find Stop matching Stop Identifier",
			})
		} else if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Failed to get Stop",
			})
		}

		return c.JSON(stop)
	}
}
