package conversation

import (
	"context"
	"fmt"
	"strings"

	"cvbot-backend/internal/ledger"
	"cvbot-backend/internal/payments"
	"cvbot-backend/internal/session"
	"cvbot-backend/internal/shared/telemetry"
	"cvbot-backend/internal/transport"
)

// showPackages moves to package selection and lists the catalog.
func (m *Machine) showPackages(ctx context.Context, sess session.Session, ev transport.Event, intro string) error {
	if _, err := m.transition(ctx, sess, session.StateSelectingPremiumPackage, ev, session.Patch{}); err != nil {
		return err
	}
	m.list(ctx, sess.UserID, intro, "Ver paquetes", packageRows(m.Catalog))
	return nil
}

func (m *Machine) showAdvisories(ctx context.Context, sess session.Session, ev transport.Event) error {
	if _, err := m.transition(ctx, sess, session.StateSelectingAdvisory, ev, session.Patch{}); err != nil {
		return err
	}
	m.list(ctx, sess.UserID, msgAdvisories, "Ver asesorías", advisoryRows(m.Catalog))
	return nil
}

func (m *Machine) onSelectingPackage(ctx context.Context, sess session.Session, ev transport.Event) error {
	input := ev.Input()
	if isNo(input) {
		return m.showMenu(ctx, sess, ev)
	}
	pkg, ok := m.Catalog.MatchPackage(input)
	if !ok {
		m.list(ctx, sess.UserID, msgPackages, "Ver paquetes", packageRows(m.Catalog))
		return nil
	}
	if _, err := m.transition(ctx, sess, session.StateConfirmingPayment, ev, session.Patch{
		SelectedPackage: &pkg.ID,
		PackagePrice:    &pkg.Price,
		PackageReviews:  &pkg.Reviews,
	}); err != nil {
		return err
	}
	m.buttons(ctx, sess.UserID, fmt.Sprintf(msgPackageChosen, reviewsLabel(pkg.Reviews), m.Catalog.FormatPrice(pkg.Price)), confirmPaymentButtons())
	return nil
}

func (m *Machine) onConfirmingPayment(ctx context.Context, sess session.Session, ev transport.Event) error {
	input := ev.Input()
	switch {
	case isYes(input):
		if _, err := m.transition(ctx, sess, session.StateWaitingPaymentScreenshot, ev, session.Patch{}); err != nil {
			return err
		}
		m.say(ctx, sess.UserID, m.paymentInstructions(sess.PackagePrice)...)
		return nil
	case isNo(input):
		m.say(ctx, sess.UserID, msgPaymentCancelled)
		return m.showMenu(ctx, sess, ev)
	}
	m.buttons(ctx, sess.UserID, fmt.Sprintf(msgPackageChosen, reviewsLabel(sess.PackageReviews), m.Catalog.FormatPrice(sess.PackagePrice)), confirmPaymentButtons())
	return nil
}

func (m *Machine) onPaymentScreenshot(ctx context.Context, sess session.Session, ev transport.Event) (continuation, error) {
	media, ok := screenshot(ev)
	if !ok {
		if isNo(ev.Input()) {
			m.say(ctx, sess.UserID, msgPaymentCancelled)
			return nil, m.showMenu(ctx, sess, ev)
		}
		m.say(ctx, sess.UserID, msgSendScreenshot)
		return nil, nil
	}
	m.say(ctx, sess.UserID, msgVerifying)
	pkg := payments.Package{ID: sess.SelectedPackage, Reviews: sess.PackageReviews, Price: sess.PackagePrice}
	return func(ctx context.Context) {
		m.verifyPackagePayment(ctx, sess, media, pkg)
	}, nil
}

func (m *Machine) verifyPackagePayment(ctx context.Context, sess session.Session, media transport.Media, pkg payments.Package) {
	userID := sess.UserID
	if !m.checkReceipt(ctx, userID, media, pkg.Price) {
		return
	}
	claimed, err := m.claim(ctx, sess, session.StateWaitingPaymentScreenshot, session.StatePaymentCompleted)
	if err != nil || !claimed {
		if err != nil {
			telemetry.Error("conversation.payment_claim_failed", map[string]any{"user_id": userID, "error": err})
			m.say(ctx, userID, msgLedgerFailed)
		}
		return
	}

	desc := fmt.Sprintf("%s %s", pkg.ID, m.Catalog.FormatPrice(pkg.Price))
	if err := m.creditPurchase(ctx, userID, pkg, desc); err != nil {
		telemetry.Error("conversation.payment_ledger_failed", map[string]any{"user_id": userID, "package": pkg.ID, "error": err})
		m.releaseClaim(ctx, sess, session.StatePaymentCompleted, session.StateWaitingPaymentScreenshot)
		m.say(ctx, userID, msgLedgerFailed)
		return
	}
	remaining, err := m.Ledger.GetRemainingCredits(ctx, userID)
	if err != nil {
		remaining = pkg.Reviews
	}
	telemetry.Info("conversation.payment_completed", map[string]any{"user_id": userID, "package": pkg.ID, "reviews": pkg.Reviews})
	m.say(ctx, userID, fmt.Sprintf(msgPaymentOK, pkg.Reviews, remaining), msgAfterPayment)
	m.list(ctx, userID, msgMenu, "Ver opciones", menuRows())
}

// creditPurchase writes the payment audit row and then the credits. Both
// must succeed for the purchase to count.
func (m *Machine) creditPurchase(ctx context.Context, userID string, pkg payments.Package, desc string) error {
	if err := m.Ledger.RecordTransaction(ctx, userID, pkg.Price, ledger.KindPayment, desc); err != nil {
		return fmt.Errorf("record payment: %w", err)
	}
	if err := m.Ledger.AddCredits(ctx, userID, pkg.Reviews, desc); err != nil {
		return fmt.Errorf("add credits: %w", err)
	}
	return nil
}

// onPaymentCompleted behaves like the menu; a document starts an analysis.
func (m *Machine) onPaymentCompleted(ctx context.Context, sess session.Session, ev transport.Event) (continuation, error) {
	if _, ok := documentRef(ev); ok && sess.JobPosition != "" {
		return m.acceptDocument(ctx, sess, ev)
	}
	return m.onMenu(ctx, sess, ev)
}

func (m *Machine) onSelectingAdvisory(ctx context.Context, sess session.Session, ev transport.Event) error {
	input := ev.Input()
	if isNo(input) {
		return m.showMenu(ctx, sess, ev)
	}
	adv, ok := m.Catalog.MatchAdvisory(input)
	if !ok {
		m.list(ctx, sess.UserID, msgAdvisories, "Ver asesorías", advisoryRows(m.Catalog))
		return nil
	}
	if _, err := m.transition(ctx, sess, session.StateConfirmingAdvisoryPayment, ev, session.Patch{
		SelectedAdvisory: &adv.ID,
		PackagePrice:     &adv.Price,
	}); err != nil {
		return err
	}
	m.buttons(ctx, sess.UserID, fmt.Sprintf(msgAdvisoryChosen, adv.Name, m.Catalog.FormatPrice(adv.Price), adv.Description), confirmPaymentButtons())
	return nil
}

func (m *Machine) onConfirmingAdvisory(ctx context.Context, sess session.Session, ev transport.Event) error {
	input := ev.Input()
	switch {
	case isYes(input):
		if _, err := m.transition(ctx, sess, session.StateWaitingAdvisoryPaymentScreenshot, ev, session.Patch{}); err != nil {
			return err
		}
		m.say(ctx, sess.UserID, m.paymentInstructions(sess.PackagePrice)...)
		return nil
	case isNo(input):
		m.say(ctx, sess.UserID, msgPaymentCancelled)
		return m.showMenu(ctx, sess, ev)
	}
	adv, _ := m.Catalog.AdvisoryByID(sess.SelectedAdvisory)
	m.buttons(ctx, sess.UserID, fmt.Sprintf(msgAdvisoryChosen, adv.Name, m.Catalog.FormatPrice(sess.PackagePrice), adv.Description), confirmPaymentButtons())
	return nil
}

func (m *Machine) onAdvisoryScreenshot(ctx context.Context, sess session.Session, ev transport.Event) (continuation, error) {
	media, ok := screenshot(ev)
	if !ok {
		if isNo(ev.Input()) {
			m.say(ctx, sess.UserID, msgPaymentCancelled)
			return nil, m.showMenu(ctx, sess, ev)
		}
		m.say(ctx, sess.UserID, msgSendScreenshot)
		return nil, nil
	}
	m.say(ctx, sess.UserID, msgVerifying)
	adv, found := m.Catalog.AdvisoryByID(sess.SelectedAdvisory)
	if !found {
		adv = payments.Advisory{ID: sess.SelectedAdvisory, Name: sess.SelectedAdvisory}
	}
	adv.Price = sess.PackagePrice
	return func(ctx context.Context) {
		m.verifyAdvisoryPayment(ctx, sess, media, adv)
	}, nil
}

func (m *Machine) verifyAdvisoryPayment(ctx context.Context, sess session.Session, media transport.Media, adv payments.Advisory) {
	userID := sess.UserID
	if !m.checkReceipt(ctx, userID, media, adv.Price) {
		return
	}
	claimed, err := m.claim(ctx, sess, session.StateWaitingAdvisoryPaymentScreenshot, session.StateAdvisoryPaymentCompleted)
	if err != nil || !claimed {
		if err != nil {
			telemetry.Error("conversation.payment_claim_failed", map[string]any{"user_id": userID, "error": err})
			m.say(ctx, userID, msgLedgerFailed)
		}
		return
	}
	desc := fmt.Sprintf("%s %s", adv.ID, m.Catalog.FormatPrice(adv.Price))
	if err := m.Ledger.RecordTransaction(ctx, userID, adv.Price, ledger.KindAdvisoryPurchase, desc); err != nil {
		telemetry.Error("conversation.payment_ledger_failed", map[string]any{"user_id": userID, "advisory": adv.ID, "error": err})
		m.releaseClaim(ctx, sess, session.StateAdvisoryPaymentCompleted, session.StateWaitingAdvisoryPaymentScreenshot)
		m.say(ctx, userID, msgLedgerFailed)
		return
	}
	telemetry.Info("conversation.advisory_purchased", map[string]any{"user_id": userID, "advisory": adv.ID})
	if m.cfg.AdvisoryBookingURL != "" {
		m.say(ctx, userID, fmt.Sprintf(msgAdvisoryOK, adv.Name, m.cfg.AdvisoryBookingURL))
	} else {
		m.say(ctx, userID, fmt.Sprintf(msgAdvisoryPending, adv.Name))
	}
	m.list(ctx, userID, msgMenu, "Ver opciones", menuRows())
}

func (m *Machine) onAdvisoryCompleted(ctx context.Context, sess session.Session, ev transport.Event) (continuation, error) {
	return m.onMenu(ctx, sess, ev)
}

// checkReceipt downloads and verifies a screenshot, telling the user why
// it was rejected. The session stays where it is on rejection.
func (m *Machine) checkReceipt(ctx context.Context, userID string, media transport.Media, price int) bool {
	if m.Verifier == nil {
		telemetry.Error("conversation.verifier_missing", map[string]any{"user_id": userID})
		m.say(ctx, userID, msgApology)
		return false
	}
	data, mimeType, err := m.Media.Fetch(ctx, &media)
	if err != nil {
		telemetry.Warn("conversation.receipt_fetch_failed", map[string]any{"user_id": userID, "error": err})
		m.say(ctx, userID, payments.MismatchMessage(payments.Verification{Reason: payments.ReasonUnreadable}, m.payee(), m.Catalog.FormatPrice(price)))
		return false
	}
	v := m.Verifier.Verify(ctx, data, mimeType, price)
	if !v.Valid {
		m.say(ctx, userID, payments.MismatchMessage(v, m.payee(), m.Catalog.FormatPrice(price)))
		return false
	}
	return true
}

// claim moves the session from one state to another only if it is still
// in from and in the same epoch, so one screenshot is credited once.
func (m *Machine) claim(ctx context.Context, sess session.Session, from, to session.State) (bool, error) {
	claimed := false
	_, err := m.Sessions.Mutate(ctx, sess.UserID, func(cur *session.Session) error {
		if cur.Epoch != sess.Epoch || cur.State != from {
			return session.ErrSkip
		}
		cur.State = to
		claimed = true
		return nil
	})
	if err != nil {
		return false, err
	}
	if !claimed {
		telemetry.Info("conversation.payment_already_handled", map[string]any{"user_id": sess.UserID, "state": string(from)})
		return false, nil
	}
	logTransition(sess.UserID, from, to, transport.Event{Kind: transport.KindImage})
	return true, nil
}

// releaseClaim undoes a claim after a failed ledger write.
func (m *Machine) releaseClaim(ctx context.Context, sess session.Session, from, to session.State) {
	if _, err := m.claim(ctx, sess, from, to); err != nil {
		telemetry.Error("conversation.payment_release_failed", map[string]any{"user_id": sess.UserID, "error": err})
	}
}

func (m *Machine) paymentInstructions(price int) []string {
	out := []string{fmt.Sprintf(msgPayTo, m.Catalog.FormatPrice(price), m.payee())}
	if strings.TrimSpace(m.cfg.PaymentInstructions) != "" {
		out = append(out, m.cfg.PaymentInstructions)
	}
	return append(out, msgSendScreenshot)
}

func (m *Machine) payee() string {
	if m.cfg.PayeeName != "" {
		return m.cfg.PayeeName
	}
	return m.Catalog.PayeeName
}

// screenshot returns the image attached to ev, if any.
func screenshot(ev transport.Event) (transport.Media, bool) {
	if ev.Media == nil {
		return transport.Media{}, false
	}
	switch {
	case ev.Kind == transport.KindImage:
		return *ev.Media, true
	case ev.Kind == transport.KindDocument && strings.HasPrefix(ev.Media.MimeType, "image/"):
		return *ev.Media, true
	}
	return transport.Media{}, false
}

func reviewsLabel(n int) string {
	if n == 1 {
		return "1 revisión"
	}
	return fmt.Sprintf("%d revisiones", n)
}
