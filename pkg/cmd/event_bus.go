package cmd

import (
	"fmt"
	"log/slog"

	"github.com/ThreeDotsLabs/watermill"

	"github.com/stageflow/stageflow/pkg/channels/gochannel"
	"github.com/stageflow/stageflow/pkg/channels/kafka"
	"github.com/stageflow/stageflow/pkg/eventbus"
)

// NewEventBus creates an event bus instance based on the provider. "memory"
// is an in-process bus for development; "none" returns nil, which publishers
// treat as a disabled bus.
func NewEventBus(provider string, logger *slog.Logger) eventbus.EventBus {
	switch provider {
	case "kafka":
		pub, sub, err := kafka.CreateChannel(watermill.NewSlogLogger(logger), "stageflow")
		if err != nil {
			panic(fmt.Errorf("failed to create Kafka pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	case "memory":
		pub, sub, err := gochannel.CreateChannel(watermill.NewSlogLogger(logger))
		if err != nil {
			panic(fmt.Errorf("failed to create in-memory pub/sub: %w", err))
		}

		return eventbus.NewWatermillEventBus(pub, sub)
	case "none", "":
		return nil
	default:
		panic("Unsupported event bus provider: " + provider)
	}
}
