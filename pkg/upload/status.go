package upload

import (
	"cmp"
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// State is the lifecycle stage of an upload.
type State string

const (
	StateQueued    State = "queued"
	StateUploading State = "uploading"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateCancelled State = "cancelled"
)

// Terminal reports whether no further transitions are expected.
func (s State) Terminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// Status is the last known state of one upload.
type Status struct {
	ID        uuid.UUID `json:"id"`
	Key       string    `json:"key"`
	Path      string    `json:"path"`
	State     State     `json:"state"`
	Size      int64     `json:"size,omitempty"`
	URL       string    `json:"url,omitempty"`
	Error     string    `json:"error,omitempty"`
	UpdatedAt time.Time `json:"updated_at"`
}

// StatusStore persists upload statuses.
type StatusStore interface {
	Set(ctx context.Context, status Status) error
	Get(ctx context.Context, id uuid.UUID) (Status, error)
	// List returns every known status ordered by key.
	List(ctx context.Context) ([]Status, error)
}

// MemoryStatusStore keeps statuses in process memory.
type MemoryStatusStore struct {
	mu       sync.RWMutex
	statuses map[uuid.UUID]Status
}

func NewMemoryStatusStore() *MemoryStatusStore {
	return &MemoryStatusStore{statuses: make(map[uuid.UUID]Status)}
}

func (s *MemoryStatusStore) Set(ctx context.Context, status Status) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	s.statuses[status.ID] = status
	s.mu.Unlock()
	return nil
}

func (s *MemoryStatusStore) Get(ctx context.Context, id uuid.UUID) (Status, error) {
	if err := ctx.Err(); err != nil {
		return Status{}, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	status, ok := s.statuses[id]
	if !ok {
		return Status{}, ErrStatusNotFound
	}
	return status, nil
}

func (s *MemoryStatusStore) List(ctx context.Context) ([]Status, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	out := make([]Status, 0, len(s.statuses))
	for _, st := range s.statuses {
		out = append(out, st)
	}
	s.mu.RUnlock()
	sortStatuses(out)
	return out, nil
}

func sortStatuses(list []Status) {
	slices.SortFunc(list, func(a, b Status) int {
		if c := cmp.Compare(a.Key, b.Key); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})
}
