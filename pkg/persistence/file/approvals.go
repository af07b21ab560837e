package file

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/stageflow/stageflow/pkg/persistence"
)

// ApprovalRepository stores approval records per ticket as a JSON array.
type ApprovalRepository struct {
	root string
	mu   sync.Mutex
}

// NewApprovalRepository creates a new approval repository.
func NewApprovalRepository(root string) *ApprovalRepository {
	return &ApprovalRepository{root: root}
}

func (ar *ApprovalRepository) path(ticketID string) string {
	return filepath.Clean(path.Join(ar.root, "approvals", ticketID+".json"))
}

// HasApproval reports whether an approved record exists for the ticket with
// any of the given roles. An empty role list matches any approved record.
func (ar *ApprovalRepository) HasApproval(_ context.Context, ticketID string, roles []string) (bool, error) {
	approvals, err := ar.read(ticketID)
	if err != nil {
		return false, err
	}

	for _, approval := range approvals {
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

// RecordApproval appends an approval record for a ticket.
func (ar *ApprovalRepository) RecordApproval(_ context.Context, approval *persistence.Approval) error {
	ar.mu.Lock()
	defer ar.mu.Unlock()

	approvals, err := ar.read(approval.TicketID)
	if err != nil {
		return err
	}

	approvals = append(approvals, approval)

	err = os.MkdirAll(path.Join(ar.root, "approvals"), 0750)
	if err != nil {
		return fmt.Errorf("failed to create approvals directory: %w", err)
	}

	data, err := json.MarshalIndent(approvals, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal approvals for %s: %w", approval.TicketID, err)
	}

	return os.WriteFile(ar.path(approval.TicketID), data, 0600)
}

func (ar *ApprovalRepository) read(ticketID string) ([]*persistence.Approval, error) {
	body, err := os.ReadFile(ar.path(ticketID))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}

		return nil, fmt.Errorf("failed to read approvals for %s: %w", ticketID, err)
	}

	var approvals []*persistence.Approval

	err = json.Unmarshal(body, &approvals)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal approvals for %s: %w", ticketID, err)
	}

	return approvals, nil
}
