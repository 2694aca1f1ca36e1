package documents

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"cvbot-backend/internal/analyses"
	"cvbot-backend/internal/cvanalyzer"
	"cvbot-backend/internal/extract"
	"cvbot-backend/internal/shared/metrics"
	"cvbot-backend/internal/shared/storage/object"
	"cvbot-backend/internal/shared/telemetry"
	"cvbot-backend/internal/shared/util"
)

// AnalysisRecorder persists completed analyses.
type AnalysisRecorder interface {
	Save(ctx context.Context, rec analyses.Record, history *analyses.HistoryEntry) (analyses.Record, error)
}

// CVCounter bumps the per-user analysis counter.
type CVCounter interface {
	IncrementCVCount(ctx context.Context, userID string) (int, error)
}

// Request is one pipeline run for a user's document.
type Request struct {
	UserID      string
	Ref         Ref
	JobPosition string
}

// Outcome is the best available result of a run. ArtifactURL is never empty
// once relocation succeeded.
type Outcome struct {
	ArtifactURL string
	SourceURL   string
	ReportURL   string
	DocumentID  string
	AnalysisID  string
	Analysis    *cvanalyzer.Result
	// Recorded is false when the bookkeeping writes failed.
	Recorded bool
}

// Analyzed reports whether the external analysis succeeded.
func (o Outcome) Analyzed() bool {
	return o.Analysis != nil
}

// Pipeline orchestrates fetch, relocation, analysis and bookkeeping. It
// holds no per-run state.
type Pipeline struct {
	Resolver   MediaResolver
	Downloader Downloader
	Store      object.ObjectStore
	Analyzer   cvanalyzer.Analyzer
	Analyses   AnalysisRecorder
	Users      CVCounter
	Documents  DocumentsRepo
	Provider   string
	MaxBytes   int64
	Now        func() time.Time
}

// Run executes the pipeline. It returns an error only when no artifact can be
// produced: resolution, download and relocation failures are fatal, analysis
// and bookkeeping failures degrade the outcome.
func (p *Pipeline) Run(ctx context.Context, req Request) (out Outcome, err error) {
	start := time.Now()
	defer func() {
		outcome := "failed"
		switch {
		case err != nil:
		case out.Analyzed():
			outcome = "analyzed"
		default:
			outcome = "fallback"
		}
		metrics.ObservePipeline(outcome, time.Since(start))
	}()

	if p == nil || p.Downloader == nil || p.Store == nil {
		return Outcome{}, ErrNotConfigured
	}
	if strings.TrimSpace(req.UserID) == "" {
		return Outcome{}, fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}

	src, err := resolve(ctx, p.Resolver, req.Ref)
	if err != nil {
		return Outcome{}, err
	}
	fileName, err := checkExtension(src.FileName, src.MimeType)
	if err != nil {
		return Outcome{}, err
	}

	data, contentType, err := p.Downloader.Download(ctx, src.URL, p.maxBytes())
	if err != nil {
		if errors.Is(err, ErrDocumentTooLarge) {
			return Outcome{}, err
		}
		return Outcome{}, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	if len(data) == 0 {
		return Outcome{}, fmt.Errorf("%w: empty body", ErrFetchFailed)
	}
	mimeType := src.MimeType
	if isGenericMime(mimeType) {
		mimeType = contentType
	}
	if isGenericMime(mimeType) {
		mimeType = util.DetectMime(fileName, data)
	}

	doc, err := p.relocate(ctx, req, fileName, data)
	if err != nil {
		return Outcome{}, err
	}
	out = Outcome{ArtifactURL: doc.PublicURL, SourceURL: doc.PublicURL, DocumentID: doc.ID}
	telemetry.Info("pipeline.relocated", map[string]any{
		"user_id":     req.UserID,
		"document_id": doc.ID,
		"size_bytes":  doc.SizeBytes,
		"mime_type":   doc.MimeType,
	})

	if p.Analyzer == nil {
		telemetry.Warn("pipeline.analyzer_missing", map[string]any{"user_id": req.UserID})
		return out, nil
	}
	text, textErr := extract.Text(ctx, data, mimeType, fileName, 0)
	if textErr != nil && !errors.Is(textErr, extract.ErrUnsupported) {
		telemetry.Warn("pipeline.extract_failed", map[string]any{"user_id": req.UserID, "error": textErr})
	}
	result, err := p.Analyzer.Analyze(ctx, cvanalyzer.Request{
		FileURL:       doc.PublicURL,
		ExtractedText: text,
		JobPosition:   req.JobPosition,
	})
	if err != nil || result == nil {
		telemetry.Warn("pipeline.analysis_unavailable", map[string]any{"user_id": req.UserID, "error": err})
		return out, nil
	}
	out.Analysis = result
	out.AnalysisID = analyses.NewAnalysisID()

	if reportURL, err := p.publishReport(ctx, req, out.AnalysisID, result, doc.PublicURL); err != nil {
		telemetry.Warn("pipeline.report_failed", map[string]any{"user_id": req.UserID, "error": err})
	} else {
		out.ReportURL = reportURL
		out.ArtifactURL = reportURL
	}

	out.Recorded = p.record(ctx, req, out, fileName)
	return out, nil
}

func (p *Pipeline) relocate(ctx context.Context, req Request, fileName string, data []byte) (Document, error) {
	key, size, storedMime, err := p.Store.Save(ctx, req.UserID, fileName, bytes.NewReader(data))
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrRelocateFailed, err)
	}
	publicURL, err := p.Store.PublicURL(ctx, key)
	if err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrRelocateFailed, err)
	}
	doc := Document{
		ID:              uuid.NewString(),
		UserID:          req.UserID,
		SourceRef:       req.Ref.Key(),
		FileName:        fileName,
		MimeType:        storedMime,
		SizeBytes:       size,
		StorageProvider: p.Provider,
		StorageKey:      key,
		PublicURL:       publicURL,
		CreatedAt:       p.now(),
	}
	if p.Documents != nil {
		if err := p.Documents.Create(ctx, doc); err != nil {
			telemetry.Warn("pipeline.document_record_failed", map[string]any{"user_id": req.UserID, "error": err})
		}
	}
	return doc, nil
}

func (p *Pipeline) publishReport(ctx context.Context, req Request, analysisID string, result *cvanalyzer.Result, sourceURL string) (string, error) {
	html, err := RenderReport(result, req.JobPosition, sourceURL, p.now())
	if err != nil {
		return "", err
	}
	key := path.Join("reports", util.OwnerKey(req.UserID), analysisID+".html")
	if _, err := p.Store.SaveWithKey(ctx, key, "text/html; charset=utf-8", bytes.NewReader(html)); err != nil {
		return "", err
	}
	return p.Store.PublicURL(ctx, key)
}

// record writes the summary record, history and user counter. Failures are
// logged and reported through the return value only.
func (p *Pipeline) record(ctx context.Context, req Request, out Outcome, fileName string) bool {
	ok := true
	if p.Analyses != nil {
		score := out.Analysis.Score
		_, err := p.Analyses.Save(ctx, analyses.Record{
			AnalysisID:  out.AnalysisID,
			UserID:      req.UserID,
			SourceURL:   out.SourceURL,
			ReportURL:   out.ReportURL,
			JobPosition: req.JobPosition,
			Score:       &score,
			ProcessedAt: p.now(),
		}, &analyses.HistoryEntry{FileName: fileName, Result: out.Analysis})
		if err != nil {
			ok = false
			telemetry.Error("pipeline.record_failed", map[string]any{
				"user_id":     req.UserID,
				"analysis_id": out.AnalysisID,
				"error":       err,
			})
		}
	}
	if p.Users != nil {
		if _, err := p.Users.IncrementCVCount(ctx, req.UserID); err != nil {
			ok = false
			telemetry.Error("pipeline.user_count_failed", map[string]any{"user_id": req.UserID, "error": err})
		}
	}
	return ok
}

func isGenericMime(mimeType string) bool {
	return mimeType == "" || strings.HasPrefix(mimeType, "application/octet-stream")
}

func (p *Pipeline) maxBytes() int64 {
	if p.MaxBytes > 0 {
		return p.MaxBytes
	}
	return MaxDocumentBytes
}

func (p *Pipeline) now() time.Time {
	if p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}
