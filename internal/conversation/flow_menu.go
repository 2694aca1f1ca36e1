package conversation

import (
	"context"
	"fmt"

	"cvbot-backend/internal/interview"
	"cvbot-backend/internal/ledger"
	"cvbot-backend/internal/session"
	"cvbot-backend/internal/transport"
)

func (m *Machine) onInitial(ctx context.Context, sess session.Session, ev transport.Event) error {
	if !sess.TermsAccepted {
		return m.showTerms(ctx, sess, ev, true)
	}
	return m.showMenu(ctx, sess, ev)
}

func (m *Machine) onTerms(ctx context.Context, sess session.Session, ev transport.Event) error {
	input := ev.Input()
	switch {
	case isYes(input):
		updated, err := m.transition(ctx, sess, session.StateMenuSelection, ev, session.Patch{TermsAccepted: session.Ptr(true)})
		if err != nil {
			return err
		}
		m.list(ctx, updated.UserID, msgMenu, "Ver opciones", menuRows())
		return nil
	case isNo(input):
		m.say(ctx, sess.UserID, msgTermsRejected)
	}
	m.buttons(ctx, sess.UserID, msgTerms, termsButtons())
	return nil
}

func (m *Machine) onMenu(ctx context.Context, sess session.Session, ev transport.Event) (continuation, error) {
	choice := menuChoice(ev.Input())
	if ev.Kind == transport.KindDocument {
		choice = btnMenuCV
	}
	switch choice {
	case btnMenuCV:
		return nil, m.startCVFlow(ctx, sess, ev)
	case btnMenuInterview:
		return nil, m.startInterviewFlow(ctx, sess, ev)
	case btnMenuPremium:
		return nil, m.showPackages(ctx, sess, ev, msgPackages)
	case btnMenuAdvisory:
		return nil, m.showAdvisories(ctx, sess, ev)
	}
	m.say(ctx, sess.UserID, msgMenuHint)
	m.list(ctx, sess.UserID, msgMenu, "Ver opciones", menuRows())
	return nil, nil
}

// startCVFlow checks the user can afford an analysis before asking for
// the position, so nobody types a position only to hit the paywall.
func (m *Machine) startCVFlow(ctx context.Context, sess session.Session, ev transport.Event) error {
	ent, err := m.Ledger.Entitlement(ctx, sess.UserID, m.cfg.FreeAnalyses)
	if err != nil {
		return err
	}
	if ent.Source == ledger.SourceNone {
		return m.showPackages(ctx, sess, ev, msgPaywall)
	}
	if _, err := m.transition(ctx, sess, session.StateWaitingPositionBeforeCV, ev, session.Patch{
		CVProcessed:  session.Ptr(false),
		ProcessingCV: session.Ptr(false),
	}); err != nil {
		return err
	}
	m.say(ctx, sess.UserID, msgAskPositionCV)
	return nil
}

func (m *Machine) startInterviewFlow(ctx context.Context, sess session.Session, ev transport.Event) error {
	if sess.JobPosition != "" {
		return m.askInterviewConfirmation(ctx, sess, ev, sess.JobPosition)
	}
	if _, err := m.transition(ctx, sess, session.StateWaitingPositionBeforeInterview, ev, session.Patch{}); err != nil {
		return err
	}
	m.say(ctx, sess.UserID, msgAskPositionInterview)
	return nil
}

func (m *Machine) onPositionBeforeCV(ctx context.Context, sess session.Session, ev transport.Event) error {
	position, ok := cleanPosition(ev.Text)
	if ev.Kind != transport.KindText || !ok {
		m.say(ctx, sess.UserID, msgAskPositionCV)
		return nil
	}
	if _, err := m.transition(ctx, sess, session.StateWaitingForCV, ev, session.Patch{JobPosition: &position}); err != nil {
		return err
	}
	m.say(ctx, sess.UserID, fmt.Sprintf("Perfecto, revisaré tu CV para el puesto de *%s*.", position), msgAskCV)
	return nil
}

func (m *Machine) onPositionBeforeInterview(ctx context.Context, sess session.Session, ev transport.Event) error {
	position, ok := cleanPosition(ev.Text)
	if ev.Kind != transport.KindText || !ok {
		m.say(ctx, sess.UserID, msgAskPositionInterview)
		return nil
	}
	return m.askInterviewConfirmation(ctx, sess, ev, position)
}

// askInterviewConfirmation records the position, passing through
// position_received, and asks the user to confirm the interview.
func (m *Machine) askInterviewConfirmation(ctx context.Context, sess session.Session, ev transport.Event, position string) error {
	updated, err := m.transition(ctx, sess, session.StatePositionReceived, ev, session.Patch{JobPosition: &position})
	if err != nil {
		return err
	}
	if _, err := m.transition(ctx, updated, session.StateWaitingInterviewConfirmation, ev, session.Patch{}); err != nil {
		return err
	}
	category := interview.NormalizeJobType(position)
	label := position
	if category.Known() && category != interview.CategoryGeneral {
		label = fmt.Sprintf("%s (%s)", position, category)
	}
	m.buttons(ctx, sess.UserID, fmt.Sprintf(msgInterviewConfirm, label, m.Coach.QuestionCount()), confirmInterviewButtons())
	return nil
}

// onPositionReceived recovers a session left between capturing the
// position and asking for confirmation.
func (m *Machine) onPositionReceived(ctx context.Context, sess session.Session, ev transport.Event) error {
	if sess.JobPosition == "" {
		if _, err := m.transition(ctx, sess, session.StateWaitingPositionBeforeInterview, ev, session.Patch{}); err != nil {
			return err
		}
		m.say(ctx, sess.UserID, msgAskPositionInterview)
		return nil
	}
	return m.askInterviewConfirmation(ctx, sess, ev, sess.JobPosition)
}
