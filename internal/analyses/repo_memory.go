package analyses

import (
	"context"
	"sort"
	"sync"
)

// MemoryRepo stores analyses in memory and is safe for concurrent use.
type MemoryRepo struct {
	mu      sync.RWMutex
	byUser  map[string][]Record
	history map[string]HistoryEntry
}

// NewMemoryRepo constructs a MemoryRepo.
func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		byUser:  make(map[string][]Record),
		history: make(map[string]HistoryEntry),
	}
}

func (r *MemoryRepo) CreateRecord(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.byUser[rec.UserID] = append(r.byUser[rec.UserID], rec)
	return nil
}

func (r *MemoryRepo) AppendHistory(ctx context.Context, entry HistoryEntry) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.history[entry.AnalysisID] = entry
	return nil
}

func (r *MemoryRepo) CountByUser(ctx context.Context, userID string) (int, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.byUser[userID]), nil
}

// ListByUser returns the newest records first.
func (r *MemoryRepo) ListByUser(ctx context.Context, userID string, limit int) ([]Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	r.mu.RLock()
	records := append([]Record(nil), r.byUser[userID]...)
	r.mu.RUnlock()

	sort.SliceStable(records, func(i, j int) bool {
		return records[i].ProcessedAt.After(records[j].ProcessedAt)
	})
	if limit > 0 && len(records) > limit {
		records = records[:limit]
	}
	return records, nil
}

func (r *MemoryRepo) GetHistory(ctx context.Context, analysisID string) (HistoryEntry, error) {
	if err := ctx.Err(); err != nil {
		return HistoryEntry{}, err
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.history[analysisID]
	if !ok {
		return HistoryEntry{}, ErrNotFound
	}
	return entry, nil
}
