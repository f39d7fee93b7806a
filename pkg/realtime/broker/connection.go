package broker

import (
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
	"github.com/fleetlive/fleetlive/pkg/model"
	"github.com/rs/zerolog/log"
)

// Transport is the write half of the underlying duplex link, typically a
// websocket. WriteEvent may block on network I/O.
type Transport interface {
	WriteEvent(data []byte) error
	Close() error
}

type ConnectionState int32

const (
	StateConnecting ConnectionState = iota
	StateOpen
	StateClosing
	StateClosed
)

type SendResult int

const (
	// SendAccepted means the event was queued for delivery.
	SendAccepted SendResult = iota
	// SendDropped means the event was not queued: the connection is
	// closing, the subscription filter rejected it, or the queue could
	// not take it.
	SendDropped
)

const defaultQueueSize = 32

// Connection is one subscriber's long-lived link. Events are queued on a
// bounded outbound queue drained by a single write pump, so a slow
// consumer never blocks the publisher.
//
// Overflow policy: drop-oldest. A location feed is only ever about the
// freshest position, so when the queue is full the oldest queued update is
// evicted to make room for the new one.
type Connection struct {
	transport Transport

	state atomic.Int32

	queue chan model.Event
	done  chan struct{}

	closeOnce sync.Once

	// filter, when non-nil, decides per event whether this subscriber
	// wants it. Compiled once at subscribe time.
	filter *vm.Program

	groupsMutex sync.Mutex
	groups      map[string]*GroupRegistry

	droppedTotal atomic.Int64
}

type ConnectionOption func(*Connection)

func WithQueueSize(size int) ConnectionOption {
	return func(c *Connection) {
		c.queue = make(chan model.Event, size)
	}
}

// WithFilter compiles an expression over {lat, lon, speed} that each
// location event must satisfy to be delivered.
func WithFilter(source string) (ConnectionOption, error) {
	program, err := expr.Compile(source, expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("invalid subscription filter: %w", err)
	}

	return func(c *Connection) {
		c.filter = program
	}, nil
}

func NewConnection(transport Transport, options ...ConnectionOption) *Connection {
	connection := &Connection{
		transport: transport,
		queue:     make(chan model.Event, defaultQueueSize),
		done:      make(chan struct{}),
		groups:    map[string]*GroupRegistry{},
	}
	connection.state.Store(int32(StateConnecting))

	for _, option := range options {
		option(connection)
	}

	return connection
}

func (c *Connection) State() ConnectionState {
	return ConnectionState(c.state.Load())
}

// Open transitions Connecting -> Open and starts the write pump. Calling
// it on a connection past Connecting does nothing.
func (c *Connection) Open() {
	if !c.state.CompareAndSwap(int32(StateConnecting), int32(StateOpen)) {
		return
	}

	go c.writePump()
}

// Send queues an event for delivery. Never blocks.
func (c *Connection) Send(event model.Event) SendResult {
	if c.State() != StateOpen {
		return SendDropped
	}

	if !c.wantsEvent(event) {
		return SendDropped
	}

	select {
	case c.queue <- event:
		return SendAccepted
	default:
	}

	// Queue full. Evict the oldest queued event and try once more; the
	// new event is the one worth keeping.
	select {
	case <-c.queue:
		c.droppedTotal.Add(1)
	default:
	}

	select {
	case c.queue <- event:
		return SendAccepted
	default:
		return SendDropped
	}
}

// Close tears the connection down: deregisters it from every group it
// joined, stops the write pump and closes the transport. Cleanup runs
// exactly once no matter which path (client close, transport error,
// broker shutdown) gets here first.
func (c *Connection) Close() {
	c.closeOnce.Do(func() {
		c.state.Store(int32(StateClosing))

		c.groupsMutex.Lock()
		groups := c.groups
		c.groups = map[string]*GroupRegistry{}
		c.groupsMutex.Unlock()

		for vehicleRef, registry := range groups {
			registry.Remove(vehicleRef, c)
		}

		close(c.done)

		if err := c.transport.Close(); err != nil {
			log.Debug().Err(err).Msg("Closing subscriber transport")
		}

		c.state.Store(int32(StateClosed))
	})
}

// Dropped reports how many queued events were evicted by overflow.
func (c *Connection) Dropped() int64 {
	return c.droppedTotal.Load()
}

// joined records group membership so Close can deregister from everything,
// covering abrupt disconnects where nobody calls Unsubscribe.
func (c *Connection) joined(vehicleRef string, registry *GroupRegistry) {
	c.groupsMutex.Lock()
	defer c.groupsMutex.Unlock()

	c.groups[vehicleRef] = registry
}

func (c *Connection) left(vehicleRef string) {
	c.groupsMutex.Lock()
	defer c.groupsMutex.Unlock()

	delete(c.groups, vehicleRef)
}

func (c *Connection) wantsEvent(event model.Event) bool {
	if c.filter == nil || event.Type != model.EventTypeLocation {
		return true
	}

	speed := 0.0
	if event.Location.Speed != nil {
		speed = *event.Location.Speed
	}

	result, err := expr.Run(c.filter, map[string]interface{}{
		"lat":   event.Location.Lat,
		"lon":   event.Location.Lon,
		"speed": speed,
	})
	if err != nil {
		// A broken filter must not starve the subscriber of updates
		log.Warn().Err(err).Msg("Failed to evaluate subscription filter")
		return true
	}

	matches, ok := result.(bool)

	return !ok || matches
}

func (c *Connection) writePump() {
	for {
		select {
		case <-c.done:
			return
		case event := <-c.queue:
			frame, err := marshalFrame(event)
			if err != nil {
				log.Error().Err(err).Msg("Failed to marshal subscriber frame")
				continue
			}

			if err := c.transport.WriteEvent(frame); err != nil {
				log.Debug().Err(err).Msg("Subscriber write failed")
				go c.Close()
				return
			}
		}
	}
}

// marshalFrame converts an event to its wire form. Every member of the
// closed event set is handled here; an unhandled type is a programming
// error and gets dropped loudly by the caller.
func marshalFrame(event model.Event) ([]byte, error) {
	switch event.Type {
	case model.EventTypeLocation:
		return json.Marshal(struct {
			Type string `json:"type"`
			*model.LocationUpdate
		}{
			Type:           string(model.EventTypeLocation),
			LocationUpdate: event.Location,
		})
	default:
		return nil, fmt.Errorf("unhandled event type %q", event.Type)
	}
}
