package history

import (
	"context"

	"github.com/wondertwin-ai/ecoscan/pkg/store"
)

// MemoryRepository keeps records in process memory.
type MemoryRepository struct {
	records *store.Store[Record]
}

// NewMemoryRepository creates a repository holding at most capacity records
// (unbounded when capacity <= 0).
func NewMemoryRepository(capacity int) *MemoryRepository {
	return &MemoryRepository{records: store.New[Record](capacity)}
}

func (m *MemoryRepository) Save(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	m.records.Put(rec.ID, rec)
	return nil
}

func (m *MemoryRepository) List(ctx context.Context, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return m.records.Latest(limit), nil
}

func (m *MemoryRepository) Reset(ctx context.Context) error {
	m.records.Reset()
	return nil
}

// Snapshot exposes the stored records for admin state export.
func (m *MemoryRepository) Snapshot() []store.Entry[Record] {
	return m.records.Snapshot()
}

// Load replaces the stored records.
func (m *MemoryRepository) Load(entries []store.Entry[Record]) {
	m.records.Load(entries)
}
