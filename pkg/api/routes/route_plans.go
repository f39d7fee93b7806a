package routes

import (
	"errors"

	"github.com/fleetlive/fleetlive/pkg/store"
	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
)

func RoutesRouter(router fiber.Router, recordStore store.Store) {
	router.Get("/:identifier", getRoute(recordStore))
}

func getRoute(recordStore store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := c.Params("identifier")

		route, err := recordStore.GetRoute(c.Context(), identifier)
		if errors.Is(err, store.ErrNotFound) {
			c.SendStatus(fiber.StatusNotFound)
			return c.JSON(fiber.Map{
				"error": "Could not find Route matching Route Identifier",
			})
		} else if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Failed to get Route",
			})
		}

		stops, err := recordStore.RouteStops(c.Context(), identifier)
		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Failed to get Route stops",
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

		return c.JSON(fiber.Map{
			"route": route,
			"stops": stopsReduced,
		})
	}
}
