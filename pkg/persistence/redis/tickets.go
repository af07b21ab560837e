package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/persistence"
)

// TicketRepository stores ticket snapshots as JSON values with a global
// index set. SaveTicket runs under WATCH so two concurrent transitions for
// the same ticket resolve to exactly one winner.
type TicketRepository struct {
	client redis.UniversalClient
}

func (tr *TicketRepository) TicketByID(ctx context.Context, id string) (*models.TicketSnapshot, error) {
	body, err := tr.client.Get(ctx, ticketKey(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, persistence.NewStoreError("TicketByID", id, persistence.ErrTicketNotFound)
		}

		return nil, fmt.Errorf("failed to fetch ticket %s: %w", id, err)
	}

	var ticket models.TicketSnapshot

	err = json.Unmarshal(body, &ticket)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal ticket %s: %w", id, err)
	}

	return &ticket, nil
}

func (tr *TicketRepository) OpenTickets(ctx context.Context) ([]*models.TicketSnapshot, error) {
	ids, err := tr.client.SMembers(ctx, ticketIndexKey()).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}

	out := make([]*models.TicketSnapshot, 0, len(ids))

	for _, id := range ids {
		ticket, err := tr.TicketByID(ctx, id)
		if err != nil {
			if persistence.IsTicketNotFound(err) {
				continue
			}

			return nil, err
		}

		out = append(out, ticket)
	}

	return out, nil
}

func (tr *TicketRepository) CreateTicket(ctx context.Context, ticket *models.TicketSnapshot) error {
	ticket.Version = 1

	data, err := json.Marshal(ticket)
	if err != nil {
		return fmt.Errorf("failed to marshal ticket %s: %w", ticket.ID, err)
	}

	created, err := tr.client.SetNX(ctx, ticketKey(ticket.ID), data, 0).Result()
	if err != nil {
		return fmt.Errorf("failed to create ticket %s: %w", ticket.ID, err)
	}

	if !created {
		return persistence.NewStoreError("CreateTicket", ticket.ID, persistence.ErrTicketAlreadyExists)
	}

	if err := tr.client.SAdd(ctx, ticketIndexKey(), ticket.ID).Err(); err != nil {
		return fmt.Errorf("failed to index ticket %s: %w", ticket.ID, err)
	}

	return nil
}

func (tr *TicketRepository) SaveTicket(ctx context.Context, ticket *models.TicketSnapshot) error {
	key := ticketKey(ticket.ID)

	err := tr.client.Watch(ctx, func(tx *redis.Tx) error {
		body, err := tx.Get(ctx, key).Bytes()
		if err != nil {
			if errors.Is(err, redis.Nil) {
				return persistence.NewStoreError("SaveTicket", ticket.ID, persistence.ErrTicketNotFound)
			}

			return err
		}

		var stored models.TicketSnapshot
		if err := json.Unmarshal(body, &stored); err != nil {
			return fmt.Errorf("failed to unmarshal ticket %s: %w", ticket.ID, err)
		}

		if stored.Version != ticket.Version {
			return persistence.NewStoreError("SaveTicket", ticket.ID, persistence.ErrVersionConflict)
		}

		ticket.Version++

		data, err := json.Marshal(ticket)
		if err != nil {
			ticket.Version--

			return fmt.Errorf("failed to marshal ticket %s: %w", ticket.ID, err)
		}

		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Set(ctx, key, data, 0)

			return nil
		})

		return err
	}, key)
	if err != nil {
		if errors.Is(err, redis.TxFailedErr) {
			// Another writer touched the key between GET and EXEC.
			return persistence.NewStoreError("SaveTicket", ticket.ID, persistence.ErrVersionConflict)
		}

		return err
	}

	return nil
}
