package routes

import (
	"errors"
	"strconv"
	"time"

	"github.com/fleetlive/fleetlive/pkg/eta"
	"github.com/fleetlive/fleetlive/pkg/model"
	"github.com/fleetlive/fleetlive/pkg/realtime/broker"
	"github.com/fleetlive/fleetlive/pkg/store"
	"github.com/gofiber/fiber/v2"
	"github.com/liip/sheriff"
	"github.com/rs/zerolog/log"

	iso8601 "github.com/senseyeio/duration"
)

func VehiclesRouter(router fiber.Router, recordStore store.Store, estimateCache eta.EstimateCache, liveBroker *broker.Broker) {
	router.Get("/", listVehicles(recordStore))
	router.Get("/:identifier", getVehicle(recordStore))
	router.Get("/:identifier/locations", getVehicleLocations(recordStore))
	router.Get("/:identifier/eta", getVehicleEta(estimateCache))

	registerVehicleLive(router, liveBroker)
}

func listVehicles(recordStore store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		vehicles, err := recordStore.Vehicles(c.Context())
		if err != nil {
			log.Error().Err(err).Msg("Failed to list Vehicles")

			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Failed to list Vehicles",
			})
		}

		vehiclesReduced, err := sheriff.Marshal(&sheriff.Options{
			Groups: []string{"basic"},
		}, vehicles)
		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Sheriff could not reduce Vehicles",
			})
		}

		return c.JSON(vehiclesReduced)
	}
}

func getVehicle(recordStore store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := c.Params("identifier")

		vehicle, err := recordStore.GetVehicle(c.Context(), identifier)
		if errors.Is(err, store.ErrNotFound) {
			c.SendStatus(fiber.StatusNotFound)
			return c.JSON(fiber.Map{
				"error": "Could not find Vehicle matching Vehicle Identifier",
			})
		} else if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Failed to get Vehicle",
			})
		}

		return c.JSON(vehicle)
	}
}

func getVehicleLocations(recordStore store.Store) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := c.Params("identifier")
		count, err := strconv.ParseInt(c.Query("count", "50"), 10, 64)
		if err != nil || count < 1 || count > 500 {
			c.SendStatus(fiber.StatusBadRequest)
			return c.JSON(fiber.Map{
				"error": "count must be between 1 and 500",
			})
		}

		reports, err := recordStore.LocationHistory(c.Context(), identifier, count)
		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Failed to get location history",
			})
		}

		reportsReduced, err := sheriff.Marshal(&sheriff.Options{
			Groups: []string{"basic"},
		}, reports)
		if err != nil {
			c.SendStatus(fiber.StatusInternalServerError)
			return c.JSON(fiber.Map{
				"error": "Sheriff could not reduce LocationReports",
			})
		}

		return c.JSON(reportsReduced)
	}
}

func getVehicleEta(estimateCache eta.EstimateCache) fiber.Handler {
	return func(c *fiber.Ctx) error {
		identifier := c.Params("identifier")
		stopRef := c.Query("stop")

		var estimate *model.EtaEstimate
		var err error
		if stopRef != "" {
			estimate, err = estimateCache.Get(c.Context(), identifier, stopRef)
		} else {
			estimate, err = estimateCache.Latest(c.Context(), identifier)
		}

		if err != nil {
			c.SendStatus(fiber.StatusNotFound)
			return c.JSON(fiber.Map{
				"error": "No current ETA estimate for Vehicle",
			})
		}

		rounded := estimate.Duration.Round(time.Second)
		isoDuration := iso8601.Duration{
			TH: int(rounded.Hours()),
			TM: int(rounded.Minutes()) % 60,
			TS: int(rounded.Seconds()) % 60,
		}

		return c.JSON(fiber.Map{
			"vehicle":    estimate.VehicleRef,
			"stop":       estimate.StopRef,
			"seconds":    int(rounded.Seconds()),
			"duration":   isoDuration.String(),
			"computedAt": estimate.ComputedAt,
		})
	}
}
