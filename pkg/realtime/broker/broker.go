package broker

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fleetlive/fleetlive/pkg/elastic_client"
	"github.com/fleetlive/fleetlive/pkg/model"
	"github.com/rs/zerolog/log"
)

// Broker owns the subscriber groups for live location fan-out. One
// instance is created at process startup, shared by the ingest path and
// every subscriber connection, and torn down at shutdown.
type Broker struct {
	registry *GroupRegistry
}

func NewBroker() *Broker {
	return &Broker{
		registry: NewGroupRegistry(),
	}
}

func (b *Broker) Subscribe(vehicleRef string, connection *Connection) {
	b.registry.Add(vehicleRef, connection)
	connection.joined(vehicleRef, b.registry)
}

// Unsubscribe always succeeds, even for connections that were never
// members.
func (b *Broker) Unsubscribe(vehicleRef string, connection *Connection) {
	b.registry.Remove(vehicleRef, connection)
	connection.left(vehicleRef)
}

// Publish delivers an event to every current subscriber of the vehicle.
// Members are snapshotted first so no lock is held while sending. Each
// Send is a non-blocking enqueue, so one slow or dead subscriber cannot
// block the rest, and sequential dispatch keeps per-subscriber ordering.
// No subscribers is the normal quiet case, not an error. Returns once all
// attempts are dispatched; never waits for network acknowledgment.
func (b *Broker) Publish(vehicleRef string, event model.Event) error {
	members := b.registry.Members(vehicleRef)
	if len(members) == 0 {
		return nil
	}

	dropped := 0
	for _, connection := range members {
		if connection.Send(event) == SendDropped {
			dropped += 1
		}
	}

	if dropped > 0 {
		log.Warn().
			Str("vehicle", vehicleRef).
			Int("dropped", dropped).
			Int("subscribers", len(members)).
			Msg("Fanout degraded")

		indexFanoutEvent(vehicleRef, dropped, len(members))
	}

	return nil
}

func (b *Broker) Close() {
	for _, connection := range b.registry.Connections() {
		connection.Close()
	}
}

type Stats struct {
	Groups      int `groups:"basic"`
	Subscribers int `groups:"basic"`
}

func (b *Broker) Stats() Stats {
	return Stats{
		Groups:      b.registry.GroupCount(),
		Subscribers: b.registry.SubscriberCount(),
	}
}

type fanoutDegradedElasticEvent struct {
	Timestamp time.Time

	Vehicle     string
	Dropped     int
	Subscribers int
}

func indexFanoutEvent(vehicleRef string, dropped int, subscribers int) {
	currentTime := time.Now()
	yearNumber, weekNumber := currentTime.ISOWeek()
	indexName := fmt.Sprintf("fleetlive-fanout-events-%d-%d", yearNumber, weekNumber)

	elasticEvent, _ := json.Marshal(fanoutDegradedElasticEvent{
		Timestamp: currentTime,

		Vehicle:     vehicleRef,
		Dropped:     dropped,
		Subscribers: subscribers,
	})

	elastic_client.IndexRequest(indexName, bytes.NewReader(elasticEvent))
}
