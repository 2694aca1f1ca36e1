package analyses

import (
	"context"
	"fmt"
	"strings"

	"github.com/supabase-community/supabase-go"
)

// Mirror copies analysis summaries to an external reporting store.
type Mirror interface {
	MirrorRecord(ctx context.Context, rec Record) error
}

// SupabaseMirror inserts summaries into a Supabase table.
type SupabaseMirror struct {
	client *supabase.Client
	table  string
}

type mirrorRow struct {
	AnalysisID  string `json:"analysis_id"`
	UserID      string `json:"user_id"`
	SourceURL   string `json:"source_url"`
	ReportURL   string `json:"report_url"`
	JobPosition string `json:"job_position"`
	Score       *int   `json:"score"`
	ProcessedAt string `json:"processed_at"`
}

// NewSupabaseMirror connects to the Supabase project at url.
func NewSupabaseMirror(url, key string) (*SupabaseMirror, error) {
	if strings.TrimSpace(url) == "" || strings.TrimSpace(key) == "" {
		return nil, fmt.Errorf("supabase url and key are required")
	}
	client, err := supabase.NewClient(url, key, &supabase.ClientOptions{})
	if err != nil {
		return nil, err
	}
	return &SupabaseMirror{client: client, table: "cv_analyses"}, nil
}

func (m *SupabaseMirror) MirrorRecord(ctx context.Context, rec Record) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	row := mirrorRow{
		AnalysisID:  rec.AnalysisID,
		UserID:      rec.UserID,
		SourceURL:   rec.SourceURL,
		ReportURL:   rec.ReportURL,
		JobPosition: rec.JobPosition,
		Score:       rec.Score,
		ProcessedAt: rec.ProcessedAt.UTC().Format("2006-01-02T15:04:05Z07:00"),
	}
	if _, _, err := m.client.From(m.table).Insert(row, false, "", "minimal", "").Execute(); err != nil {
		return fmt.Errorf("mirror analysis %s: %w", rec.AnalysisID, err)
	}
	return nil
}
