// Package file provides file-based persistence for workflow definitions,
// tickets and approvals. It backs local development and tests; production
// deployments use the redis store.
package file

import (
	"context"
	"os"
	"strings"

	"github.com/stageflow/stageflow/pkg/persistence"
)

// Persistence implements the persistence.Persistence interface using the
// file system.
type Persistence struct {
	root           string
	definitionRepo *DefinitionRepository
	ticketRepo     *TicketRepository
	approvalRepo   *ApprovalRepository
}

// NewPersistence creates a new instance of Persistence with the specified
// root directory.
func NewPersistence(root string) *Persistence {
	cleanRoot := strings.Replace(root, "file://", "", 1)

	return &Persistence{
		root:           cleanRoot,
		definitionRepo: NewDefinitionRepository(cleanRoot),
		ticketRepo:     NewTicketRepository(cleanRoot),
		approvalRepo:   NewApprovalRepository(cleanRoot),
	}
}

// Close performs any necessary cleanup. For file-based persistence, there is
// nothing to clean up.
func (fp *Persistence) Close(_ context.Context) error {
	return nil
}

// HealthCheck verifies the root directory exists.
func (fp *Persistence) HealthCheck(_ context.Context) error {
	if _, err := os.Stat(fp.root); os.IsNotExist(err) {
		return os.ErrNotExist
	}

	return nil
}

func (fp *Persistence) DefinitionRepository() persistence.DefinitionRepository {
	return fp.definitionRepo
}

func (fp *Persistence) TicketRepository() persistence.TicketRepository {
	return fp.ticketRepo
}

func (fp *Persistence) ApprovalRepository() persistence.ApprovalRepository {
	return fp.approvalRepo
}
