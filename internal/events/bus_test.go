package events

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rovshanmuradov/launchpad-engine/internal/types"
)

func TestPublishDeliversToSubscriber(t *testing.T) {
	bus := NewBus(zap.NewNop(), 16)
	defer shutdownBus(t, bus)

	var delivered atomic.Int64
	done := make(chan struct{})
	bus.SubscribeFunc(TradeExecuted, func(_ context.Context, ev Event) error {
		trade, ok := ev.(*TradeExecutedEvent)
		require.True(t, ok)
		assert.Equal(t, SideBuy, trade.Side)
		if delivered.Add(1) == 1 {
			close(done)
		}
		return nil
	})

	require.NoError(t, bus.Publish(&TradeExecutedEvent{
		BaseEvent: Now(TradeExecuted),
		Asset:     types.AddressFromSeed([]byte("events/asset")),
		Side:      SideBuy,
		Fee:       10,
	}))

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("event was not delivered")
	}
}

func TestSubscriptionStopsDelivery(t *testing.T) {
	bus := NewBus(zap.NewNop(), 16)
	defer shutdownBus(t, bus)

	var delivered atomic.Int64
	sub := bus.SubscribeFunc(TokenCreated, func(_ context.Context, _ Event) error {
		delivered.Add(1)
		return nil
	})
	sub.Unsubscribe()

	require.NoError(t, bus.PublishSync(context.Background(), &TokenCreatedEvent{
		BaseEvent: Now(TokenCreated),
	}))
	assert.Zero(t, delivered.Load())
}

func TestPublishSyncAggregatesHandlerErrors(t *testing.T) {
	bus := NewBus(zap.NewNop(), 16)
	defer shutdownBus(t, bus)

	bus.SubscribeFunc(VestingClaimed, func(_ context.Context, _ Event) error {
		return assert.AnError
	})

	err := bus.PublishSync(context.Background(), &VestingClaimedEvent{
		BaseEvent: Now(VestingClaimed),
	})
	assert.Error(t, err)
}

func TestPublishDropsWhenBufferFull(t *testing.T) {
	bus := NewBus(zap.NewNop(), 1)

	entered := make(chan struct{}, 4)
	release := make(chan struct{})
	bus.SubscribeFunc(TokenCreated, func(_ context.Context, _ Event) error {
		entered <- struct{}{}
		<-release
		return nil
	})

	// The first event occupies the delivery loop; wait until its handler
	// is definitely running.
	require.NoError(t, bus.Publish(&TokenCreatedEvent{BaseEvent: Now(TokenCreated)}))
	select {
	case <-entered:
	case <-time.After(2 * time.Second):
		t.Fatal("handler never started")
	}

	// The second fills the one-slot buffer; the third has nowhere to go.
	require.NoError(t, bus.Publish(&TokenCreatedEvent{BaseEvent: Now(TokenCreated)}))
	err := bus.Publish(&TokenCreatedEvent{BaseEvent: Now(TokenCreated)})
	assert.Error(t, err)

	close(release)
	shutdownBus(t, bus)
}

func TestPublishFailsAfterShutdown(t *testing.T) {
	bus := NewBus(zap.NewNop(), 1)
	shutdownBus(t, bus)

	err := bus.Publish(&TokenCreatedEvent{BaseEvent: Now(TokenCreated)})
	assert.Error(t, err)
}

func shutdownBus(t *testing.T, bus *Bus) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, bus.Shutdown(ctx))
}
