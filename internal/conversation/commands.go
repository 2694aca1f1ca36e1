package conversation

import (
	"context"
	"errors"
	"fmt"

	"cvbot-backend/internal/payments"
	"cvbot-backend/internal/session"
	"cvbot-backend/internal/shared/telemetry"
	"cvbot-backend/internal/transport"
	"cvbot-backend/internal/users"
)

// interviewInProgress lists the states !start refuses to clear.
func interviewInProgress(s session.State) bool {
	switch s {
	case session.StatePositionReceived, session.StateInterviewStarted,
		session.StateQuestionAsked, session.StateAnswerReceived:
		return true
	}
	return false
}

// handleCommand runs a "!" command. Commands work in every state.
func (m *Machine) handleCommand(ctx context.Context, sess session.Session, ev transport.Event) (continuation, error) {
	switch ev.Command {
	case "!start":
		if interviewInProgress(sess.State) {
			m.say(ctx, sess.UserID, msgInterviewGuard)
			return nil, nil
		}
		return nil, m.restart(ctx, sess.UserID, ev, "")
	case "!reset":
		return nil, m.restart(ctx, sess.UserID, ev, msgReset)
	case "!help", "!ayuda":
		m.say(ctx, sess.UserID, msgHelp)
		return nil, nil
	case "!pdf", "!url", "!link":
		if sess.LastPDFURL == "" {
			m.say(ctx, sess.UserID, msgNoReport)
			return nil, nil
		}
		m.say(ctx, sess.UserID, "📎 Tu último informe: "+sess.LastPDFURL)
		return nil, nil
	case "!promo":
		return nil, m.redeemPromo(ctx, sess, ev.Args)
	default:
		m.say(ctx, sess.UserID, msgHelp)
		return nil, nil
	}
}

func (m *Machine) redeemPromo(ctx context.Context, sess session.Session, code string) error {
	if m.Promos == nil {
		m.say(ctx, sess.UserID, msgPromoUnknown)
		return nil
	}
	promo, err := m.Promos.Redeem(ctx, sess.UserID, code)
	var conflict *users.PromoConflictError
	switch {
	case err == nil:
		telemetry.Info("conversation.promo_redeemed", map[string]any{"user_id": sess.UserID, "code": promo.Code})
		m.say(ctx, sess.UserID, fmt.Sprintf(msgPromoOK, promo.Code))
	case errors.Is(err, payments.ErrEmptyPromoCode):
		m.say(ctx, sess.UserID, msgPromoUsage)
	case errors.Is(err, payments.ErrUnknownPromoCode):
		m.say(ctx, sess.UserID, msgPromoUnknown)
	case errors.As(err, &conflict):
		m.say(ctx, sess.UserID, fmt.Sprintf(msgPromoConflict, conflict.FirstCode))
	default:
		return fmt.Errorf("redeem promo: %w", err)
	}
	return nil
}
