// Package redis provides redis-backed persistence for workflow definitions,
// tickets and approvals. Ticket writes use a WATCH transaction for the
// optimistic-concurrency contract.
package redis

import (
	"context"
	"fmt"
	"strings"

	redis "github.com/redis/go-redis/v9"

	"github.com/stageflow/stageflow/pkg/persistence"
)

const keyPrefix = "stageflow"

// Persistence implements the persistence.Persistence interface on redis.
type Persistence struct {
	client         redis.UniversalClient
	definitionRepo *DefinitionRepository
	ticketRepo     *TicketRepository
	approvalRepo   *ApprovalRepository
}

// NewPersistence creates a redis persistence from a redis:// URL.
func NewPersistence(url string) (*Persistence, error) {
	opts, err := redis.ParseURL(normalizeURL(url))
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	client := redis.NewClient(opts)

	return &Persistence{
		client:         client,
		definitionRepo: &DefinitionRepository{client: client},
		ticketRepo:     &TicketRepository{client: client},
		approvalRepo:   &ApprovalRepository{client: client},
	}, nil
}

func normalizeURL(url string) string {
	if strings.Contains(url, "://") {
		return url
	}

	return "redis://" + url
}

func (rp *Persistence) Close(_ context.Context) error {
	return rp.client.Close()
}

func (rp *Persistence) HealthCheck(ctx context.Context) error {
	return rp.client.Ping(ctx).Err()
}

func (rp *Persistence) DefinitionRepository() persistence.DefinitionRepository {
	return rp.definitionRepo
}

func (rp *Persistence) TicketRepository() persistence.TicketRepository {
	return rp.ticketRepo
}

func (rp *Persistence) ApprovalRepository() persistence.ApprovalRepository {
	return rp.approvalRepo
}

func definitionKey(id string) string {
	return keyPrefix + ":definitions:" + id
}

func definitionTypeKey(workflowType string) string {
	return keyPrefix + ":definitions:type:" + workflowType
}

func ticketKey(id string) string {
	return keyPrefix + ":tickets:" + id
}

func ticketIndexKey() string {
	return keyPrefix + ":tickets"
}

func approvalKey(ticketID string) string {
	return keyPrefix + ":approvals:" + ticketID
}
