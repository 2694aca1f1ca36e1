package conversation

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"strings"
	"time"

	"cvbot-backend/internal/documents"
	"cvbot-backend/internal/interview"
	"cvbot-backend/internal/ledger"
	"cvbot-backend/internal/payments"
	"cvbot-backend/internal/session"
	"cvbot-backend/internal/shared/metrics"
	"cvbot-backend/internal/shared/telemetry"
	"cvbot-backend/internal/transport"
	"cvbot-backend/internal/users"
)

// DocumentProcessor runs the CV pipeline for one document.
type DocumentProcessor interface {
	Run(ctx context.Context, req documents.Request) (documents.Outcome, error)
}

// Config holds the business knobs of the conversation.
type Config struct {
	FreeAnalyses        int
	PayeeName           string
	PaymentInstructions string
	AdvisoryBookingURL  string
	MessageDelay        time.Duration
}

// Deps are the collaborators of a Machine.
type Deps struct {
	Sessions *session.Service
	Users    *users.Service
	Ledger   *ledger.Service
	Pipeline DocumentProcessor
	Coach    *interview.Coach
	Verifier *payments.Verifier
	Promos   *payments.Promos
	Catalog  payments.Catalog
	Media    MediaFetcher
	Sender   transport.Sender
}

// Machine routes inbound chat events through the conversation states.
// Events for the same user are handled one at a time; slow work (analysis,
// transcription, payment checks) runs after the user's lock is released
// and writes back only if the session was not reset meanwhile.
type Machine struct {
	Deps
	cfg   Config
	pacer transport.Pacer
	locks *keyedMutex
	seen  *recentIDs
}

// continuation is slow work scheduled by a handler to run outside the lock.
type continuation func(ctx context.Context)

func New(deps Deps, cfg Config) *Machine {
	if cfg.FreeAnalyses < 0 {
		cfg.FreeAnalyses = 0
	}
	if deps.Coach == nil {
		deps.Coach = interview.NewCoach(nil, interview.DefaultLength)
	}
	return &Machine{
		Deps:  deps,
		cfg:   cfg,
		pacer: transport.Pacer{Sender: deps.Sender, Delay: cfg.MessageDelay},
		locks: newKeyedMutex(),
		seen:  newRecentIDs(2048),
	}
}

// Handle processes one event. It never returns an error: failures are
// logged and answered with an apology.
func (m *Machine) Handle(ctx context.Context, ev transport.Event) {
	if strings.TrimSpace(ev.From) == "" {
		telemetry.Warn("conversation.event_without_sender", map[string]any{"kind": string(ev.Kind)})
		return
	}
	metrics.IncInboundEvent(string(ev.Kind))
	if ev.ID != "" && m.seen.Seen(ev.Transport+":"+ev.ID) {
		telemetry.Info("conversation.duplicate_event", map[string]any{"user_id": ev.From, "event_id": ev.ID})
		return
	}

	next := m.handleLocked(ctx, ev)
	if next != nil {
		m.guard(ctx, ev, "continuation", func() error {
			next(ctx)
			return nil
		})
	}
}

func (m *Machine) handleLocked(ctx context.Context, ev transport.Event) (next continuation) {
	unlock := m.locks.Lock(ev.From)
	defer unlock()
	m.guard(ctx, ev, "dispatch", func() error {
		var err error
		next, err = m.dispatch(ctx, ev)
		return err
	})
	return next
}

// guard converts panics and errors into a logged failure plus an apology.
func (m *Machine) guard(ctx context.Context, ev transport.Event, phase string, fn func() error) {
	state := "unknown"
	defer func() {
		if r := recover(); r != nil {
			telemetry.Error("conversation.panic", map[string]any{
				"user_id": ev.From,
				"phase":   phase,
				"panic":   fmt.Sprint(r),
				"stack":   string(debug.Stack()),
			})
			metrics.IncHandlerFailure(state)
			m.say(ctx, ev.From, msgApology)
		}
	}()
	if sess, err := m.Sessions.Get(ctx, ev.From); err == nil {
		state = string(sess.State)
	}
	if err := fn(); err != nil {
		telemetry.Error("conversation.handler_failed", map[string]any{
			"user_id": ev.From,
			"phase":   phase,
			"kind":    string(ev.Kind),
			"state":   state,
			"error":   err,
		})
		metrics.IncHandlerFailure(state)
		m.say(ctx, ev.From, msgApology)
	}
}

func (m *Machine) dispatch(ctx context.Context, ev transport.Event) (continuation, error) {
	if m.Users != nil {
		if _, err := m.Users.EnsureUser(ctx, ev.From, ev.Transport, ev.Name); err != nil {
			return nil, fmt.Errorf("ensure user: %w", err)
		}
	}
	sess, err := m.Sessions.Get(ctx, ev.From)
	if err != nil {
		return nil, fmt.Errorf("load session: %w", err)
	}
	if ev.Kind == transport.KindCommand {
		return m.handleCommand(ctx, sess, ev)
	}

	switch sess.State {
	case session.StateInitial:
		return nil, m.onInitial(ctx, sess, ev)
	case session.StateTermsAcceptance:
		return nil, m.onTerms(ctx, sess, ev)
	case session.StateMenuSelection:
		return m.onMenu(ctx, sess, ev)
	case session.StateWaitingPositionBeforeCV:
		return nil, m.onPositionBeforeCV(ctx, sess, ev)
	case session.StateWaitingPositionBeforeInterview:
		return nil, m.onPositionBeforeInterview(ctx, sess, ev)
	case session.StateWaitingForCV:
		return m.onWaitingForCV(ctx, sess, ev)
	case session.StateCVReceived:
		return nil, m.onCVReceived(ctx, sess, ev)
	case session.StatePostCVOptions:
		return m.onPostCV(ctx, sess, ev)
	case session.StatePositionReceived:
		return nil, m.onPositionReceived(ctx, sess, ev)
	case session.StateWaitingInterviewConfirmation:
		return m.onInterviewConfirmation(ctx, sess, ev)
	case session.StateInterviewStarted:
		return m.onInterviewStarted(ctx, sess, ev)
	case session.StateQuestionAsked:
		return m.onQuestionAsked(ctx, sess, ev)
	case session.StateAnswerReceived:
		return nil, m.onAnswerReceived(ctx, sess, ev)
	case session.StateInterviewCompleted:
		return nil, m.onInterviewCompleted(ctx, sess, ev)
	case session.StateSelectingPremiumPackage:
		return nil, m.onSelectingPackage(ctx, sess, ev)
	case session.StateConfirmingPayment:
		return nil, m.onConfirmingPayment(ctx, sess, ev)
	case session.StateWaitingPaymentScreenshot:
		return m.onPaymentScreenshot(ctx, sess, ev)
	case session.StatePaymentCompleted:
		return m.onPaymentCompleted(ctx, sess, ev)
	case session.StateSelectingAdvisory:
		return nil, m.onSelectingAdvisory(ctx, sess, ev)
	case session.StateConfirmingAdvisoryPayment:
		return nil, m.onConfirmingAdvisory(ctx, sess, ev)
	case session.StateWaitingAdvisoryPaymentScreenshot:
		return m.onAdvisoryScreenshot(ctx, sess, ev)
	case session.StateAdvisoryPaymentCompleted:
		return m.onAdvisoryCompleted(ctx, sess, ev)
	}
	return nil, fmt.Errorf("%w: %q", session.ErrInvalidState, sess.State)
}

// transition moves the session to state, merging extra, and logs the move.
func (m *Machine) transition(ctx context.Context, sess session.Session, to session.State, ev transport.Event, extra session.Patch) (session.Session, error) {
	extra.State = &to
	updated, err := m.Sessions.Update(ctx, sess.UserID, extra)
	if err != nil {
		return sess, fmt.Errorf("transition %s -> %s: %w", sess.State, to, err)
	}
	logTransition(sess.UserID, sess.State, to, ev)
	return updated, nil
}

// transitionIfEpoch is transition for continuations: it writes only while
// the session is still in epoch. applied is false after a reset.
func (m *Machine) transitionIfEpoch(ctx context.Context, userID string, epoch int64, from, to session.State, event string, extra session.Patch) (bool, error) {
	extra.State = &to
	_, applied, err := m.Sessions.UpdateIfEpoch(ctx, userID, epoch, extra)
	if err != nil {
		return false, fmt.Errorf("transition %s -> %s: %w", from, to, err)
	}
	if !applied {
		telemetry.Info("conversation.stale_result", map[string]any{"user_id": userID, "epoch": epoch, "to": string(to)})
		return false, nil
	}
	logTransition(userID, from, to, transport.Event{Kind: transport.Kind(event)})
	return true, nil
}

func logTransition(userID string, from, to session.State, ev transport.Event) {
	metrics.IncTransition(string(to))
	telemetry.Info("conversation.transition", map[string]any{
		"user_id": userID,
		"from":    string(from),
		"to":      string(to),
		"event":   string(ev.Kind),
	})
}

// say sends a text and logs, rather than returns, delivery failures.
func (m *Machine) say(ctx context.Context, to string, texts ...string) {
	if err := m.pacer.Text(ctx, to, texts...); err != nil {
		telemetry.Warn("conversation.send_failed", map[string]any{"user_id": to, "error": err})
	}
}

func (m *Machine) buttons(ctx context.Context, to, body string, buttons []transport.Button) {
	if err := m.Sender.SendButtons(ctx, to, body, buttons); err != nil {
		telemetry.Warn("conversation.send_failed", map[string]any{"user_id": to, "error": err})
	}
}

func (m *Machine) list(ctx context.Context, to, body, label string, rows []transport.ListRow) {
	if err := m.Sender.SendList(ctx, to, body, label, rows); err != nil {
		telemetry.Warn("conversation.send_failed", map[string]any{"user_id": to, "error": err})
	}
}

// showMenu moves to the main menu and sends it.
func (m *Machine) showMenu(ctx context.Context, sess session.Session, ev transport.Event) error {
	if _, err := m.transition(ctx, sess, session.StateMenuSelection, ev, session.Patch{}); err != nil {
		return err
	}
	m.list(ctx, sess.UserID, msgMenu, "Ver opciones", menuRows())
	return nil
}

// showTerms moves to terms acceptance and sends the prompt.
func (m *Machine) showTerms(ctx context.Context, sess session.Session, ev transport.Event, welcome bool) error {
	if _, err := m.transition(ctx, sess, session.StateTermsAcceptance, ev, session.Patch{}); err != nil {
		return err
	}
	if welcome {
		m.say(ctx, sess.UserID, msgWelcome)
	}
	m.buttons(ctx, sess.UserID, msgTerms, termsButtons())
	return nil
}

// restart clears the session and greets the user again.
func (m *Machine) restart(ctx context.Context, userID string, ev transport.Event, notice string) error {
	fresh, err := m.Sessions.Reset(ctx, userID)
	if err != nil {
		return fmt.Errorf("reset session: %w", err)
	}
	if notice != "" {
		m.say(ctx, userID, notice)
	}
	if fresh.TermsAccepted {
		return m.showMenu(ctx, fresh, ev)
	}
	return m.showTerms(ctx, fresh, ev, true)
}

var errNoSender = errors.New("conversation sender not configured")

// Validate reports missing collaborators.
func (m *Machine) Validate() error {
	var errs []error
	if m.Sessions == nil {
		errs = append(errs, errors.New("sessions not configured"))
	}
	if m.Sender == nil {
		errs = append(errs, errNoSender)
	}
	if m.Ledger == nil {
		errs = append(errs, errors.New("ledger not configured"))
	}
	if m.Pipeline == nil {
		errs = append(errs, errors.New("pipeline not configured"))
	}
	return errors.Join(errs...)
}
