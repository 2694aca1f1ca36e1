package analyses

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"cvbot-backend/internal/shared/telemetry"
)

// Service records completed pipeline runs.
type Service struct {
	Repo   Repo
	Mirror Mirror
	Now    func() time.Time
}

func NewService(repo Repo) *Service {
	return &Service{Repo: repo}
}

// NewAnalysisID returns a fresh analysis identifier.
func NewAnalysisID() string {
	return uuid.NewString()
}

// Save writes the summary record and, when present, the history entry. The
// summary is written first because it backs the free-analysis count. The
// reporting mirror is best-effort and never fails Save.
func (s *Service) Save(ctx context.Context, rec Record, history *HistoryEntry) (Record, error) {
	if s == nil || s.Repo == nil {
		return Record{}, errors.New("analyses service not configured")
	}
	if strings.TrimSpace(rec.UserID) == "" {
		return Record{}, fmt.Errorf("%w: user id is required", ErrInvalidRecord)
	}
	if strings.TrimSpace(rec.SourceURL) == "" {
		return Record{}, fmt.Errorf("%w: source url is required", ErrInvalidRecord)
	}
	if rec.AnalysisID == "" {
		rec.AnalysisID = NewAnalysisID()
	}
	if rec.ProcessedAt.IsZero() {
		rec.ProcessedAt = s.now()
	}
	if err := s.Repo.CreateRecord(ctx, rec); err != nil {
		return Record{}, fmt.Errorf("create analysis record: %w", err)
	}
	if history != nil {
		entry := *history
		entry.AnalysisID = rec.AnalysisID
		entry.UserID = rec.UserID
		if entry.CreatedAt.IsZero() {
			entry.CreatedAt = rec.ProcessedAt
		}
		if err := s.Repo.AppendHistory(ctx, entry); err != nil {
			return rec, fmt.Errorf("append analysis history: %w", err)
		}
	}
	if s.Mirror != nil {
		if err := s.Mirror.MirrorRecord(ctx, rec); err != nil {
			telemetry.Warn("analyses.mirror_failed", map[string]any{
				"analysis_id": rec.AnalysisID,
				"error":       err,
			})
		}
	}
	return rec, nil
}

// CountByUser returns the number of completed analyses for the user.
func (s *Service) CountByUser(ctx context.Context, userID string) (int, error) {
	if s == nil || s.Repo == nil {
		return 0, errors.New("analyses service not configured")
	}
	return s.Repo.CountByUser(ctx, userID)
}

func (s *Service) ListByUser(ctx context.Context, userID string, limit int) ([]Record, error) {
	if s == nil || s.Repo == nil {
		return nil, errors.New("analyses service not configured")
	}
	return s.Repo.ListByUser(ctx, userID, limit)
}

func (s *Service) now() time.Time {
	if s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}
