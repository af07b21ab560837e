package eventbus_test

import (
	"context"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stageflow/stageflow/pkg/channels/gochannel"
	"github.com/stageflow/stageflow/pkg/eventbus"
	"github.com/stageflow/stageflow/pkg/events"
)

func newTestBus(t *testing.T) eventbus.EventBus {
	t.Helper()

	pub, sub, err := gochannel.CreateTestChannel(watermill.NopLogger{})
	require.NoError(t, err)

	bus := eventbus.NewWatermillEventBus(pub, sub)
	t.Cleanup(func() { _ = bus.Close() })

	return bus
}

func TestPublishSubscribeRoundTrip(t *testing.T) {
	bus := newTestBus(t)

	received := make(chan *events.TicketTransitioned, 1)

	require.NoError(t, bus.Handle(events.TicketTransitionedEvent, func(_ context.Context, event any) error {
		transitioned, ok := event.(*events.TicketTransitioned)
		require.True(t, ok)
		received <- transitioned

		return nil
	}))

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	published := events.TicketTransitioned{
		BaseEvent: events.BaseEvent{
			ID:       bus.GenerateID(),
			Type:     events.TicketTransitionedEvent,
			TicketID: "ticket-1",
		},
		TransitionID: "resolve",
		FromStageID:  "open",
		ToStageID:    "resolved",
		ActorID:      "carol",
	}

	require.NoError(t, bus.Publish(ctx, "ticket-1", published))

	select {
	case got := <-received:
		assert.Equal(t, "resolve", got.TransitionID)
		assert.Equal(t, "ticket-1", got.TicketID)
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestUnhandledEventTypesAreAcked(t *testing.T) {
	bus := newTestBus(t)

	ctx, cancel := context.WithCancel(t.Context())
	defer cancel()

	require.NoError(t, bus.Subscribe(ctx))

	// No handler registered for SLA warnings; the message is dropped
	// without blocking the stream.
	require.NoError(t, bus.Publish(ctx, "ticket-1", events.TicketSLAWarning{
		BaseEvent: events.BaseEvent{ID: bus.GenerateID(), Type: events.TicketSLAWarningEvent, TicketID: "ticket-1"},
		StageID:   "open",
	}))
}

func TestGenerateIDUnique(t *testing.T) {
	bus := newTestBus(t)

	assert.NotEqual(t, bus.GenerateID(), bus.GenerateID())
}
