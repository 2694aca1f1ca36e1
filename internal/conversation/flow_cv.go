package conversation

import (
	"context"
	"errors"
	"fmt"

	"cvbot-backend/internal/documents"
	"cvbot-backend/internal/ledger"
	"cvbot-backend/internal/session"
	"cvbot-backend/internal/shared/metrics"
	"cvbot-backend/internal/shared/telemetry"
	"cvbot-backend/internal/transport"
)

func (m *Machine) onWaitingForCV(ctx context.Context, sess session.Session, ev transport.Event) (continuation, error) {
	if _, ok := documentRef(ev); ok {
		return m.acceptDocument(ctx, sess, ev)
	}
	if isNo(ev.Input()) {
		return nil, m.showMenu(ctx, sess, ev)
	}
	m.say(ctx, sess.UserID, msgAskCV)
	return nil, nil
}

func (m *Machine) onCVReceived(ctx context.Context, sess session.Session, ev transport.Event) error {
	if sess.ProcessingCV {
		m.say(ctx, sess.UserID, msgCVBusy)
		return nil
	}
	// Nothing in flight: the run finished without moving on.
	if _, err := m.transition(ctx, sess, session.StatePostCVOptions, ev, session.Patch{}); err != nil {
		return err
	}
	m.buttons(ctx, sess.UserID, msgPostCV, postCVButtons())
	return nil
}

func (m *Machine) onPostCV(ctx context.Context, sess session.Session, ev transport.Event) (continuation, error) {
	if _, ok := documentRef(ev); ok {
		return m.acceptDocument(ctx, sess, ev)
	}
	switch input := ev.Input(); {
	case input == btnPostInterview || menuChoice(input) == btnMenuInterview:
		return nil, m.startInterviewFlow(ctx, sess, ev)
	case input == btnNewCV || menuChoice(input) == btnMenuCV:
		return nil, m.askForAnotherCV(ctx, sess, ev)
	case input == btnBackToMenu || isNo(input):
		return nil, m.showMenu(ctx, sess, ev)
	}
	m.buttons(ctx, sess.UserID, msgPostCV, postCVButtons())
	return nil, nil
}

// askForAnotherCV keeps the job position and waits for a new document.
func (m *Machine) askForAnotherCV(ctx context.Context, sess session.Session, ev transport.Event) error {
	ent, err := m.Ledger.Entitlement(ctx, sess.UserID, m.cfg.FreeAnalyses)
	if err != nil {
		return err
	}
	if ent.Source == ledger.SourceNone {
		return m.showPackages(ctx, sess, ev, msgPaywall)
	}
	if sess.JobPosition == "" {
		return m.startCVFlow(ctx, sess, ev)
	}
	if _, err := m.transition(ctx, sess, session.StateWaitingForCV, ev, session.Patch{CVProcessed: session.Ptr(false)}); err != nil {
		return err
	}
	m.say(ctx, sess.UserID, msgAskCV)
	return nil
}

// acceptDocument applies the re-entrancy gate, reserves the free analysis
// or credit that pays for the run, marks the session as processing and
// schedules the pipeline run. The reservation outlives a reset.
func (m *Machine) acceptDocument(ctx context.Context, sess session.Session, ev transport.Event) (continuation, error) {
	ref, _ := documentRef(ev)
	docKey := ref.Key()
	if sess.ProcessingCV {
		telemetry.Info("conversation.document_while_processing", map[string]any{"user_id": sess.UserID, "document": docKey})
		m.say(ctx, sess.UserID, msgCVBusy)
		return nil, nil
	}
	if sess.CVProcessed && sess.LastDocumentID == docKey {
		telemetry.Info("conversation.duplicate_document", map[string]any{"user_id": sess.UserID, "document": docKey})
		return nil, nil
	}
	if sess.JobPosition == "" {
		if _, err := m.transition(ctx, sess, session.StateWaitingPositionBeforeCV, ev, session.Patch{}); err != nil {
			return nil, err
		}
		m.say(ctx, sess.UserID, "Antes de analizar tu CV necesito saber el puesto.", msgAskPositionCV)
		return nil, nil
	}

	res, err := m.Ledger.Reserve(ctx, sess.UserID, m.cfg.FreeAnalyses, "cv analysis "+docKey)
	if err != nil {
		return nil, err
	}
	if res.Source == ledger.SourceNone {
		return nil, m.showPackages(ctx, sess, ev, msgPaywall)
	}
	if res.Source == ledger.SourceCredit {
		metrics.IncCreditConsumed()
	}
	telemetry.Info("conversation.analysis_reserved", map[string]any{"user_id": sess.UserID, "source": string(res.Source), "document": docKey})

	updated, err := m.transition(ctx, sess, session.StateCVReceived, ev, session.Patch{
		ProcessingCV:   session.Ptr(true),
		CVProcessed:    session.Ptr(false),
		LastDocumentID: &docKey,
	})
	if err != nil {
		m.release(ctx, sess.UserID, res, "session write failed")
		return nil, err
	}
	m.say(ctx, sess.UserID, msgCVReceived)

	req := documents.Request{UserID: sess.UserID, Ref: ref, JobPosition: sess.JobPosition}
	epoch := updated.Epoch
	return func(ctx context.Context) {
		m.runPipeline(ctx, req, epoch, res)
	}, nil
}

// runPipeline is the slow half of document handling.
func (m *Machine) runPipeline(ctx context.Context, req documents.Request, epoch int64, res ledger.Reservation) {
	userID := req.UserID
	out, err := m.Pipeline.Run(ctx, req)
	if err != nil {
		telemetry.Warn("conversation.pipeline_failed", map[string]any{"user_id": userID, "error": err})
		m.release(ctx, userID, res, "analysis failed")
		if _, terr := m.transitionIfEpoch(ctx, userID, epoch, session.StateCVReceived, session.StateWaitingForCV, string(transport.KindDocument), session.Patch{
			ProcessingCV: session.Ptr(false),
			CVProcessed:  session.Ptr(false),
		}); terr != nil {
			telemetry.Error("conversation.pipeline_reset_failed", map[string]any{"user_id": userID, "error": terr})
		}
		m.say(ctx, userID, pipelineErrorMessage(err))
		return
	}

	if !out.Analyzed() {
		m.release(ctx, userID, res, "analysis fell back to storage")
	}

	patch := session.Patch{
		ProcessingCV: session.Ptr(false),
		CVProcessed:  session.Ptr(true),
		LastPDFURL:   &out.ArtifactURL,
	}
	if out.Analyzed() {
		summary := previousAnalysis(out.Analysis)
		patch.PreviousAnalysis = &summary
	}
	applied, err := m.transitionIfEpoch(ctx, userID, epoch, session.StateCVReceived, session.StatePostCVOptions, string(transport.KindDocument), patch)
	if err != nil {
		telemetry.Error("conversation.pipeline_writeback_failed", map[string]any{"user_id": userID, "error": err})
	}

	// A result that arrives after a reset is still delivered; only the
	// session write is skipped.
	if out.Analyzed() {
		m.say(ctx, userID, analysisMessage(out.Analysis, out.ArtifactURL))
	} else {
		m.say(ctx, userID, fmt.Sprintf(msgCVFallback, out.ArtifactURL))
	}
	if applied {
		m.buttons(ctx, userID, msgPostCV, postCVButtons())
	}
}

// release returns a reservation for an analysis the user did not get.
func (m *Machine) release(ctx context.Context, userID string, res ledger.Reservation, reason string) {
	if res.Source != ledger.SourceFree && res.Source != ledger.SourceCredit {
		return
	}
	if err := m.Ledger.Release(ctx, userID, res, reason+" "+res.EntryID); err != nil {
		telemetry.Error("conversation.release_failed", map[string]any{"user_id": userID, "source": string(res.Source), "entry_id": res.EntryID, "error": err})
		return
	}
	telemetry.Info("conversation.reservation_released", map[string]any{"user_id": userID, "source": string(res.Source), "reason": reason})
}

func pipelineErrorMessage(err error) string {
	switch {
	case errors.Is(err, documents.ErrUnsupportedType):
		return msgCVUnsupported
	case errors.Is(err, documents.ErrDocumentTooLarge):
		return msgCVTooLarge
	default:
		return msgCVFailed
	}
}
