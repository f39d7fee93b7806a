package broker

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBrokerPublishNoSubscribers(t *testing.T) {
	liveBroker := NewBroker()

	assert.NoError(t, liveBroker.Publish("vehicle-1", locationEvent(1, 2)))
}

func TestBrokerPublishFansOut(t *testing.T) {
	liveBroker := NewBroker()

	firstTransport := &fakeTransport{}
	secondTransport := &fakeTransport{}

	first := NewConnection(firstTransport)
	second := NewConnection(secondTransport)
	first.Open()
	second.Open()
	defer first.Close()
	defer second.Close()

	liveBroker.Subscribe("vehicle-1", first)
	liveBroker.Subscribe("vehicle-1", second)

	require.NoError(t, liveBroker.Publish("vehicle-1", locationEvent(1, 2)))

	require.Eventually(t, func() bool {
		return len(firstTransport.Frames()) == 1 && len(secondTransport.Frames()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestBrokerPublishOnlyReachesSubscribedGroup(t *testing.T) {
	liveBroker := NewBroker()

	transport := &fakeTransport{}
	connection := NewConnection(transport)
	connection.Open()
	defer connection.Close()

	liveBroker.Subscribe("vehicle-1", connection)

	require.NoError(t, liveBroker.Publish("vehicle-2", locationEvent(1, 2)))

	// Give the write pump a moment; no frame should ever arrive
	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, transport.Frames())
}

func TestBrokerBrokenSubscriberDoesNotBlockOthers(t *testing.T) {
	liveBroker := NewBroker()

	healthyTransport := &fakeTransport{}
	healthy := NewConnection(healthyTransport)
	healthy.Open()
	defer healthy.Close()

	// Never opened, so every send to it drops
	broken := NewConnection(&fakeTransport{})

	liveBroker.Subscribe("vehicle-1", broken)
	liveBroker.Subscribe("vehicle-1", healthy)

	require.NoError(t, liveBroker.Publish("vehicle-1", locationEvent(1, 2)))

	require.Eventually(t, func() bool {
		return len(healthyTransport.Frames()) == 1
	}, time.Second, 5*time.Millisecond)
}

func TestBrokerUnsubscribeStopsDelivery(t *testing.T) {
	liveBroker := NewBroker()

	transport := &fakeTransport{}
	connection := NewConnection(transport)
	connection.Open()
	defer connection.Close()

	liveBroker.Subscribe("vehicle-1", connection)
	liveBroker.Unsubscribe("vehicle-1", connection)

	// Unsubscribing a non-member also succeeds
	liveBroker.Unsubscribe("vehicle-2", connection)

	require.NoError(t, liveBroker.Publish("vehicle-1", locationEvent(1, 2)))

	time.Sleep(50 * time.Millisecond)
	assert.Empty(t, transport.Frames())
}

func TestBrokerCloseRemovesConnectionFromAllGroups(t *testing.T) {
	liveBroker := NewBroker()

	connection := NewConnection(&fakeTransport{})
	connection.Open()

	liveBroker.Subscribe("vehicle-1", connection)
	liveBroker.Subscribe("vehicle-2", connection)

	stats := liveBroker.Stats()
	assert.Equal(t, 2, stats.Groups)
	assert.Equal(t, 2, stats.Subscribers)

	connection.Close()

	stats = liveBroker.Stats()
	assert.Equal(t, 0, stats.Groups)
	assert.Equal(t, 0, stats.Subscribers)
}

func TestBrokerPreservesPerSubscriberOrder(t *testing.T) {
	liveBroker := NewBroker()

	transport := &fakeTransport{}
	connection := NewConnection(transport)
	connection.Open()
	defer connection.Close()

	liveBroker.Subscribe("vehicle-1", connection)

	require.NoError(t, liveBroker.Publish("vehicle-1", locationEvent(1, 0)))
	require.NoError(t, liveBroker.Publish("vehicle-1", locationEvent(2, 0)))
	require.NoError(t, liveBroker.Publish("vehicle-1", locationEvent(3, 0)))

	require.Eventually(t, func() bool {
		return len(transport.Frames()) == 3
	}, time.Second, 5*time.Millisecond)

	assert.Equal(t, []float64{1, 2, 3}, decodedLats(t, transport.Frames()))
}

func TestBrokerCloseClosesAllConnections(t *testing.T) {
	liveBroker := NewBroker()

	first := NewConnection(&fakeTransport{})
	second := NewConnection(&fakeTransport{})
	first.Open()
	second.Open()

	liveBroker.Subscribe("vehicle-1", first)
	liveBroker.Subscribe("vehicle-2", second)

	liveBroker.Close()

	assert.Equal(t, StateClosed, first.State())
	assert.Equal(t, StateClosed, second.State())
	assert.Equal(t, 0, liveBroker.Stats().Subscribers)
}
