package routes

import (
	"github.com/fleetlive/fleetlive/pkg/realtime/broker"
	"github.com/gofiber/fiber/v2"
)

func StatsRouter(router fiber.Router, liveBroker *broker.Broker) {
	router.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(liveBroker.Stats())
	})
}
