package api

import (
	"os"
	"os/signal"
	"syscall"

	"github.com/fleetlive/fleetlive/pkg/database"
	"github.com/fleetlive/fleetlive/pkg/elastic_client"
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
		Name:  "api",
		Usage: "Provides the core web API and live subscriber streams",
		Subcommands: []*cli.Command{
			{
				Name:  "run",
				Usage: "run web api server",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "listen",
						Value: ":8080",
						Usage: "listen target for the web server",
					},
				},
				Action: func(c *cli.Context) error {
					if err := database.Connect(); err != nil {
						return err
					}
					if err := elastic_client.Connect(false); err != nil {
						return err
					}

					recordStore := store.NewMongoStore()

					// One broker per process: created here, shared by the
					// ingest path and every subscriber, torn down on exit.
					liveBroker := broker.NewBroker()

					var etaQueue ingest.Queue
					var estimateCache eta.EstimateCache = eta.NewMemoryEstimateCache()

					env := util.GetEnvironmentVariables()
					redisConfigured := env["FLEETLIVE_REDIS_ADDRESS"] != ""

					if redisConfigured {
						if err := redis_client.Connect(); err != nil {
							return err
						}

						queue, err := redis_client.QueueConnection.OpenQueue(eta.QueueName)
						if err != nil {
							return err
						}
						etaQueue = queue

						estimateCache = eta.NewRedisEstimateCache()

						worker := eta.NewWorker(recordStore, eta.NewOSRMRouter(), estimateCache)
						eta.StartConsumers(worker)
					} else {
						log.Info().Msg("Redis not configured, ETA jobs disabled")
					}

					ingestService := ingest.NewService(recordStore, liveBroker, etaQueue)

					go func() {
						if err := SetupServer(c.String("listen"), liveBroker, ingestService, recordStore, estimateCache); err != nil {
							log.Fatal().Err(err).Msg("Web server failed")
						}
					}()

					signals := make(chan os.Signal, 1)
					signal.Notify(signals, syscall.SIGINT)
					defer signal.Stop(signals)

					<-signals // wait for signal
					go func() {
						<-signals // hard exit on second signal (in case shutdown gets stuck)
						os.Exit(1)
					}()

					liveBroker.Close()

					if redisConfigured {
						<-redis_client.QueueConnection.StopAllConsuming() // wait for all Consume() calls to finish
					}

					return nil
				},
			},
		},
	}
}
