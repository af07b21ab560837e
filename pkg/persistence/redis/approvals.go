package redis

import (
	"context"
	"encoding/json"
	"fmt"

	redis "github.com/redis/go-redis/v9"

	"github.com/stageflow/stageflow/pkg/persistence"
)

// ApprovalRepository stores approval records per ticket in a redis list.
type ApprovalRepository struct {
	client redis.UniversalClient
}

func (ar *ApprovalRepository) HasApproval(ctx context.Context, ticketID string, roles []string) (bool, error) {
	raw, err := ar.client.LRange(ctx, approvalKey(ticketID), 0, -1).Result()
	if err != nil {
		return false, fmt.Errorf("failed to read approvals for %s: %w", ticketID, err)
	}

	for _, item := range raw {
		var approval persistence.Approval
		if err := json.Unmarshal([]byte(item), &approval); err != nil {
			return false, fmt.Errorf("failed to unmarshal approval for %s: %w", ticketID, err)
		}

		if approval.Status != persistence.ApprovalStatusApproved {
			continue
		}

		if len(roles) == 0 {
			return true, nil
		}

		for _, role := range roles {
			if approval.Role == role {
				return true, nil
			}
		}
	}

	return false, nil
}

func (ar *ApprovalRepository) RecordApproval(ctx context.Context, approval *persistence.Approval) error {
	data, err := json.Marshal(approval)
	if err != nil {
		return fmt.Errorf("failed to marshal approval for %s: %w", approval.TicketID, err)
	}

	return ar.client.RPush(ctx, approvalKey(approval.TicketID), data).Err()
}
