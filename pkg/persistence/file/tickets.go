package file

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sync"

	"github.com/stageflow/stageflow/pkg/models"
	"github.com/stageflow/stageflow/pkg/persistence"
)

// TicketRepository handles ticket snapshot file operations. Writes go
// through a mutex and a version check, giving the same
// optimistic-concurrency contract the redis store provides.
type TicketRepository struct {
	root string
	mu   sync.Mutex
}

// NewTicketRepository creates a new ticket repository.
func NewTicketRepository(root string) *TicketRepository {
	return &TicketRepository{root: root}
}

func (tr *TicketRepository) dir() string {
	return path.Join(tr.root, "tickets")
}

// TicketByID retrieves a ticket by its ID from the file system.
func (tr *TicketRepository) TicketByID(_ context.Context, id string) (*models.TicketSnapshot, error) {
	return tr.read(id)
}

// OpenTickets returns all stored tickets. The final-stage filter lives in
// the SLA scan, which knows each ticket's definition.
func (tr *TicketRepository) OpenTickets(_ context.Context) ([]*models.TicketSnapshot, error) {
	root := os.DirFS(tr.dir())

	jsonFiles, err := fs.Glob(root, "*.json")
	if err != nil {
		return nil, fmt.Errorf("failed to list ticket files: %w", err)
	}

	out := make([]*models.TicketSnapshot, 0, len(jsonFiles))

	for _, file := range jsonFiles {
		ticket, err := tr.read(file[:len(file)-5])
		if err != nil {
			return nil, err
		}

		out = append(out, ticket)
	}

	return out, nil
}

// CreateTicket stores a new ticket at version 1.
func (tr *TicketRepository) CreateTicket(_ context.Context, ticket *models.TicketSnapshot) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	filePath := filepath.Clean(path.Join(tr.dir(), ticket.ID+".json"))
	if _, err := os.Stat(filePath); err == nil {
		return persistence.NewStoreError("CreateTicket", ticket.ID, persistence.ErrTicketAlreadyExists)
	}

	ticket.Version = 1

	return tr.write(ticket)
}

// SaveTicket writes a ticket back, succeeding only when the stored version
// still matches the snapshot's version. The version is incremented on
// success.
func (tr *TicketRepository) SaveTicket(_ context.Context, ticket *models.TicketSnapshot) error {
	tr.mu.Lock()
	defer tr.mu.Unlock()

	stored, err := tr.read(ticket.ID)
	if err != nil {
		return err
	}

	if stored.Version != ticket.Version {
		return persistence.NewStoreError("SaveTicket", ticket.ID, persistence.ErrVersionConflict)
	}

	ticket.Version++

	return tr.write(ticket)
}

func (tr *TicketRepository) read(id string) (*models.TicketSnapshot, error) {
	filePath := filepath.Clean(path.Join(tr.dir(), id+".json"))

	body, err := os.ReadFile(filePath)
	if err != nil {
		if os.IsNotExist(err) {
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

func (tr *TicketRepository) write(ticket *models.TicketSnapshot) error {
	err := os.MkdirAll(tr.dir(), 0750)
	if err != nil {
		return fmt.Errorf("failed to create tickets directory: %w", err)
	}

	data, err := json.MarshalIndent(ticket, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal ticket %s: %w", ticket.ID, err)
	}

	return os.WriteFile(path.Join(tr.dir(), ticket.ID+".json"), data, 0600)
}
