package dataimporter

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fleetlive/fleetlive/pkg/database"
	"github.com/fleetlive/fleetlive/pkg/eta"
	"github.com/fleetlive/fleetlive/pkg/ingest"
	"github.com/fleetlive/fleetlive/pkg/realtime/broker"
	"github.com/fleetlive/fleetlive/pkg/redis_client"
	"github.com/fleetlive/fleetlive/pkg/store"
	"github.com/fleetlive/fleetlive/pkg/util"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "data-importer",
		Usage: "Imports reference data and external feeds",
		Subcommands: []*cli.Command{
			{
				Name:  "seed",
				Usage: "import vehicles, routes and stops from seed files",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "directory",
						Value: "data/seed/",
						Usage: "directory of YAML/CSV seed files",
					},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}

					return ImportSeedDirectory(context.Background(), store.NewMongoStore(), c.String("directory"))
				},
			},
			{
				Name:  "gtfs-rt",
				Usage: "poll a GTFS-RT VehiclePositions feed into the ingest path",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "url",
						Usage:    "feed URL",
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "interval",
						Value: 30 * time.Second,
						Usage: "poll interval",
					},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}

					recordStore := store.NewMongoStore()

					// The importer has no subscribers of its own; its
					// broker exists so feed reports run the full ingest
					// path. Live delivery belongs to the api process.
					var etaQueue ingest.Queue

					env := util.GetEnvironmentVariables()
					if env["FLEETLIVE_REDIS_ADDRESS"] != "" {
						if err := redis_client.Connect(); err != nil {
							return err
						}

						queue, err := redis_client.QueueConnection.OpenQueue(eta.QueueName)
						if err != nil {
							return err
						}
						etaQueue = queue
					} else {
						log.Info().Msg("Redis not configured, ETA jobs disabled")
					}

					ingestService := ingest.NewService(recordStore, broker.NewBroker(), etaQueue)

					pollCtx, cancelPoll := context.WithCancel(context.Background())
					go PollRealtime(pollCtx, c.String("url"), c.Duration("interval"), ingestService)

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT)
					defer signal.Stop(signals)

					<-signals // wait for signal
					cancelPoll()

					return nil
				},
			},
		},
	}
}
