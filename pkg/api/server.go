package api

import (
	"github.com/fleetlive/fleetlive/pkg/api/routes"
	"github.com/fleetlive/fleetlive/pkg/eta"
	"github.com/fleetlive/fleetlive/pkg/ingest"
	"github.com/fleetlive/fleetlive/pkg/realtime/broker"
	"github.com/fleetlive/fleetlive/pkg/store"
	"github.com/fleetlive/fleetlive/pkg/util"
	"github.com/gofiber/fiber/v2"
)

func SetupServer(listen string, liveBroker *broker.Broker, ingestService *ingest.Service, recordStore store.Store, estimateCache eta.EstimateCache) error {
	webApp := fiber.New()
	webApp.Use(NewLogger())

	group := webApp.Group("/core")

	group.Get("version", routes.APIVersion)

	locationsGroup := group.Group("/locations")

	env := util.GetEnvironmentVariables()
	if env["FLEETLIVE_AUTH0_DOMAIN"] != "" {
		locationsGroup.Use(EnsureValidToken())
	}

	routes.LocationsRouter(locationsGroup, ingestService)

	routes.VehiclesRouter(group.Group("/vehicles"), recordStore, estimateCache, liveBroker)

	routes.StopsRouter(group.Group("/stops"), recordStore)

	routes.RoutesRouter(group.Group("/routes"), recordStore)

	routes.StatsRouter(group.Group("/stats"), liveBroker)

	return webApp.Listen(listen)
}
