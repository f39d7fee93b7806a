package eta

import (
	"context"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/fleetlive/fleetlive/pkg/database"
	"github.com/fleetlive/fleetlive/pkg/redis_client"
	"github.com/fleetlive/fleetlive/pkg/store"
	"github.com/fleetlive/fleetlive/pkg/util"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"
)

const defaultSweepInterval = 60 * time.Second

func RegisterCLI() *cli.Command {
	return &cli.Command{
		Name:  "eta",
		Usage: "ETA estimation",
		Subcommands: []*cli.Command{
			{
				Name:  "worker",
				Usage: "ETA worker",
				Subcommands: []*cli.Command{
					{
						Name:  "run",
						Usage: "run the ETA worker (queue consumers + periodic sweep)",
						Action: func(c *cli.Context) error {
							if err := database.Connect(); err != nil {
								return err
							}
							if err := redis_client.Connect(); err != nil {
								return err
							}

							worker := NewWorker(store.NewMongoStore(), NewOSRMRouter(), NewRedisEstimateCache())

							StartConsumers(worker)

							sweepCtx, cancelSweep := context.WithCancel(context.Background())
							go runSweepLoop(sweepCtx, worker)

							signals := make(chan os.Signal, 1)
							signal.Notify(signals, syscall.SIGINT)
							defer signal.Stop(signals)

							<-signals // wait for signal
							go func() {
								<-signals // hard exit on second signal (in case shutdown gets stuck)
								os.Exit(1)
							}()

							cancelSweep()

							<-redis_client.QueueConnection.StopAllConsuming() // wait for all Consume() calls to finish

							return nil
						},
					},
				},
			},
		},
	}
}

func runSweepLoop(ctx context.Context, worker *Worker) {
	interval := defaultSweepInterval

	env := util.GetEnvironmentVariables()
	if env["FLEETLIVE_ETA_SWEEP_INTERVAL"] != "" {
		if seconds, err := strconv.Atoi(env["FLEETLIVE_ETA_SWEEP_INTERVAL"]); err == nil {
			interval = time.Duration(seconds) * time.Second
		}
	}

	log.Info().Dur("interval", interval).Msg("Starting ETA sweep loop")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			worker.Sweep(ctx)
		}
	}
}
