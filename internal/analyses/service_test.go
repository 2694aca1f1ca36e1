package analyses

import (
	"context"
	"errors"
	"testing"
	"time"

	"cvbot-backend/internal/cvanalyzer"
)

type failingMirror struct{ calls int }

func (m *failingMirror) MirrorRecord(ctx context.Context, rec Record) error {
	m.calls++
	return errors.New("supabase down")
}

func TestSaveWritesRecordAndHistory(t *testing.T) {
	repo := NewMemoryRepo()
	svc := NewService(repo)
	fixed := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	svc.Now = func() time.Time { return fixed }

	score := 8
	rec, err := svc.Save(context.Background(), Record{
		UserID:      "u1",
		SourceURL:   "https://cdn.example/cv.pdf",
		ReportURL:   "https://cdn.example/report.html",
		JobPosition: "backend engineer",
		Score:       &score,
	}, &HistoryEntry{FileName: "cv.pdf", Result: &cvanalyzer.Result{Success: true, Score: 8}})
	if err != nil {
		t.Fatalf("Save: %v", err)
	}
	if rec.AnalysisID == "" || !rec.ProcessedAt.Equal(fixed) {
		t.Fatalf("expected generated id and timestamp, got %+v", rec)
	}
	n, err := svc.CountByUser(context.Background(), "u1")
	if err != nil || n != 1 {
		t.Fatalf("expected 1 record, got %d %v", n, err)
	}
	entry, err := repo.GetHistory(context.Background(), rec.AnalysisID)
	if err != nil {
		t.Fatalf("GetHistory: %v", err)
	}
	if entry.UserID != "u1" || entry.Result == nil || entry.Result.Score != 8 {
		t.Fatalf("unexpected history entry %+v", entry)
	}
}

func TestSaveIgnoresMirrorFailure(t *testing.T) {
	mirror := &failingMirror{}
	svc := NewService(NewMemoryRepo())
	svc.Mirror = mirror

	if _, err := svc.Save(context.Background(), Record{UserID: "u1", SourceURL: "https://cdn.example/cv.pdf"}, nil); err != nil {
		t.Fatalf("expected mirror failure to be ignored, got %v", err)
	}
	if mirror.calls != 1 {
		t.Fatalf("expected mirror to be called once, got %d", mirror.calls)
	}
}

func TestSaveValidatesRecord(t *testing.T) {
	svc := NewService(NewMemoryRepo())
	tests := []struct {
		name string
		rec  Record
	}{
		{name: "missing user", rec: Record{SourceURL: "https://x"}},
		{name: "missing source", rec: Record{UserID: "u1"}},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Save(context.Background(), tt.rec, nil); !errors.Is(err, ErrInvalidRecord) {
				t.Fatalf("expected ErrInvalidRecord, got %v", err)
			}
		})
	}
}

func TestListByUserNewestFirst(t *testing.T) {
	repo := NewMemoryRepo()
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		if err := repo.CreateRecord(ctx, Record{AnalysisID: string(rune('a' + i)), UserID: "u1", ProcessedAt: base.Add(time.Duration(i) * time.Hour)}); err != nil {
			t.Fatalf("CreateRecord: %v", err)
		}
	}
	got, err := repo.ListByUser(ctx, "u1", 2)
	if err != nil {
		t.Fatalf("ListByUser: %v", err)
	}
	if len(got) != 2 || got[0].AnalysisID != "c" || got[1].AnalysisID != "b" {
		t.Fatalf("unexpected order %+v", got)
	}
}
