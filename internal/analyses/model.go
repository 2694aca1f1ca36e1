package analyses

import (
	"time"

	"cvbot-backend/internal/cvanalyzer"
)

// Record is the summary of one completed pipeline run. Records drive the
// free-analysis check and are never updated after creation.
type Record struct {
	AnalysisID  string    `json:"analysisId"`
	UserID      string    `json:"userId"`
	SourceURL   string    `json:"sourceUrl"`
	ReportURL   string    `json:"reportUrl"`
	JobPosition string    `json:"jobPosition"`
	Score       *int      `json:"score,omitempty"`
	ProcessedAt time.Time `json:"processedAt"`
}

// HistoryEntry keeps the full analyzer output for a run.
type HistoryEntry struct {
	AnalysisID string             `json:"analysisId"`
	UserID     string             `json:"userId"`
	FileName   string             `json:"fileName"`
	Result     *cvanalyzer.Result `json:"result"`
	CreatedAt  time.Time          `json:"createdAt"`
}
