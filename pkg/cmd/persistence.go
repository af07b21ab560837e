// Package cmd provides common initialization functions for command-line
// applications.
package cmd

import (
	"fmt"
	"strings"

	"github.com/stageflow/stageflow/pkg/persistence"
	"github.com/stageflow/stageflow/pkg/persistence/file"
	"github.com/stageflow/stageflow/pkg/persistence/redis"
)

// NewPersistence selects a persistence backend from the database URL scheme:
// redis:// for Redis, anything else is treated as a filesystem root.
func NewPersistence(databaseURL string) persistence.Persistence {
	switch parsePersistenceProvider(databaseURL) {
	case "redis", "rediss":
		p, err := redis.NewPersistence(databaseURL)
		if err != nil {
			panic(fmt.Errorf("failed to connect to redis: %w", err))
		}

		return p
	default:
		return file.NewPersistence(strings.TrimPrefix(databaseURL, "file://"))
	}
}

func parsePersistenceProvider(databaseURL string) string {
	scheme, _, found := strings.Cut(databaseURL, "://")
	if !found {
		return "file"
	}

	return scheme
}
