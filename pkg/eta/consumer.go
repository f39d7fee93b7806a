package eta

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/adjust/rmq/v5"
	"github.com/fleetlive/fleetlive/pkg/redis_client"
	"github.com/rs/zerolog/log"
	"github.com/sourcegraph/conc/pool"
)

const numConsumers = 2
const batchSize = 50

// QueueName is the on-demand recomputation queue fed by the ingest path.
const QueueName = "eta-queue"

func StartConsumers(worker *Worker) {
	log.Info().Msg("Starting ETA consumers")

	queue, err := redis_client.QueueConnection.OpenQueue(QueueName)
	if err != nil {
		panic(err)
	}
	if err := queue.StartConsuming(numConsumers*batchSize, 1*time.Second); err != nil {
		panic(err)
	}

	for i := 0; i < numConsumers; i++ {
		startEtaConsumer(queue, i, worker)
	}
}

func startEtaConsumer(queue rmq.Queue, id int, worker *Worker) {
	log.Info().Msgf("Starting ETA consumer %d", id)

	if _, err := queue.AddBatchConsumer(fmt.Sprintf("eta-queue-%d", id), batchSize, 2*time.Second, NewBatchConsumer(id, worker)); err != nil {
		panic(err)
	}
}

type BatchConsumer struct {
	id     int
	worker *Worker
}

func NewBatchConsumer(id int, worker *Worker) *BatchConsumer {
	return &BatchConsumer{id: id, worker: worker}
}

func (consumer *BatchConsumer) Consume(batch rmq.Deliveries) {
	payloads := batch.Payloads()

	// A burst of reports for one vehicle only needs one recomputation
	vehicleRefs := map[string]bool{}

	for _, payload := range payloads {
		var job *Job
		if err := json.Unmarshal([]byte(payload), &job); err != nil {
			log.Error().Err(err).Msg("Failed to decode ETA job")
			continue
		}

		vehicleRefs[job.VehicleRef] = true
	}

	p := pool.New().WithMaxGoroutines(maxConcurrentVehicles)

	for vehicleRef := range vehicleRefs {
		p.Go(func() {
			if err := consumer.worker.ComputeForVehicle(context.Background(), vehicleRef); err != nil {
				log.Warn().Err(err).Str("vehicle", vehicleRef).Msg("ETA computation failed")
			}
		})
	}

	p.Wait()

	if ackErrors := batch.Ack(); len(ackErrors) > 0 {
		for _, err := range ackErrors {
			log.Error().Err(err).Msg("Failed to ack ETA job")
		}
	}
}
