package analyses

import "context"

// Repo defines persistence operations for analysis records and history.
type Repo interface {
	CreateRecord(ctx context.Context, rec Record) error
	AppendHistory(ctx context.Context, entry HistoryEntry) error
	CountByUser(ctx context.Context, userID string) (int, error)
	ListByUser(ctx context.Context, userID string, limit int) ([]Record, error)
	GetHistory(ctx context.Context, analysisID string) (HistoryEntry, error)
}
