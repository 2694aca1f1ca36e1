package conversation

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"cvbot-backend/internal/cvanalyzer"
	"cvbot-backend/internal/documents"
	"cvbot-backend/internal/interview"
	"cvbot-backend/internal/ledger"
	"cvbot-backend/internal/llm"
	"cvbot-backend/internal/payments"
	"cvbot-backend/internal/session"
	"cvbot-backend/internal/shared/telemetry"
	"cvbot-backend/internal/transport"
	"cvbot-backend/internal/users"
)

type sent struct {
	to   string
	kind string
	body string
}

type recordingSender struct {
	mu  sync.Mutex
	out []sent
}

func (s *recordingSender) add(to, kind, body string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = append(s.out, sent{to: to, kind: kind, body: body})
}

func (s *recordingSender) SendText(ctx context.Context, to, text string) error {
	s.add(to, "text", text)
	return nil
}

func (s *recordingSender) SendButtons(ctx context.Context, to, body string, buttons []transport.Button) error {
	s.add(to, "buttons", body)
	return nil
}

func (s *recordingSender) SendList(ctx context.Context, to, body, label string, rows []transport.ListRow) error {
	s.add(to, "list", body)
	return nil
}

func (s *recordingSender) SendImage(ctx context.Context, to string, image []byte, mimeType, caption string) error {
	s.add(to, "image", caption)
	return nil
}

func (s *recordingSender) clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.out = nil
}

func (s *recordingSender) count(kind string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, m := range s.out {
		if m.kind == kind {
			n++
		}
	}
	return n
}

// saw reports whether any outbound message contains substr.
func (s *recordingSender) saw(substr string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.out {
		if strings.Contains(m.body, substr) {
			return true
		}
	}
	return false
}

// stubPipeline stands in for the document pipeline and doubles as the
// ledger's analysis counter.
type stubPipeline struct {
	mu      sync.Mutex
	calls   int
	counts  map[string]int
	result  *cvanalyzer.Result
	err     error
	started chan struct{}
	release chan struct{}
}

func newStubPipeline() *stubPipeline {
	return &stubPipeline{
		counts: map[string]int{},
		result: &cvanalyzer.Result{Success: true, Score: 8, Summary: "Perfil sólido.", Recommendations: []string{"Cuantifica logros"}},
	}
}

func (p *stubPipeline) Run(ctx context.Context, req documents.Request) (documents.Outcome, error) {
	p.mu.Lock()
	p.calls++
	started, release := p.started, p.release
	result, err := p.result, p.err
	p.mu.Unlock()
	if started != nil {
		close(started)
		<-release
	}
	if err != nil {
		return documents.Outcome{}, err
	}
	out := documents.Outcome{ArtifactURL: "https://files.test/" + req.UserID + "/cv.pdf", DocumentID: "doc-" + req.Ref.Key()}
	if result != nil {
		p.mu.Lock()
		p.counts[req.UserID]++
		p.mu.Unlock()
		out.Analysis = result
		out.AnalysisID = "an-1"
		out.ReportURL = "https://files.test/" + req.UserID + "/report.html"
		out.ArtifactURL = out.ReportURL
	}
	return out, nil
}

func (p *stubPipeline) CountByUser(ctx context.Context, userID string) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.counts[userID], nil
}

func (p *stubPipeline) runs() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls
}

// fakeLLM fails completions, which keeps questions static and scores mocked.
type fakeLLM struct {
	mu            sync.Mutex
	transcript    string
	transcribeErr error
	receipt       string
}

func (f *fakeLLM) Complete(ctx context.Context, messages []llm.Message, opts llm.Options) (string, error) {
	return "", llm.ErrNotImplemented
}

func (f *fakeLLM) Transcribe(ctx context.Context, audio io.Reader, fileName, mimeType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.transcript, f.transcribeErr
}

func (f *fakeLLM) DescribeImage(ctx context.Context, prompt string, image []byte, mimeType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.receipt, nil
}

type fakeDownloader struct{}

func (fakeDownloader) Download(ctx context.Context, url string, maxBytes int64) ([]byte, string, error) {
	return []byte("media"), "application/octet-stream", nil
}

type harness struct {
	t        *testing.T
	m        *Machine
	out      *recordingSender
	pipe     *stubPipeline
	llm      *fakeLLM
	sessions *session.Service
	ledger   *ledger.Service
	users    *users.Service
	seq      int
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	telemetry.SetOutput(io.Discard)

	out := &recordingSender{}
	pipe := newStubPipeline()
	fake := &fakeLLM{transcript: "Tengo cinco años liderando equipos de desarrollo."}
	userSvc := users.NewService(users.NewMemoryRepo())
	sessions := session.NewService(session.NewMemoryRepo())
	led := ledger.NewService(pipe, userSvc)

	cat := payments.DefaultCatalog()
	cat.PayeeName = "Ana Torres"
	cat.PromoCodes = []payments.PromoCode{{Code: "CVGRATIS"}, {Code: "BIENVENIDA"}}

	m := New(Deps{
		Sessions: sessions,
		Users:    userSvc,
		Ledger:   led,
		Pipeline: pipe,
		Coach:    interview.NewCoach(fake, 4),
		Verifier: payments.NewVerifier(fake, cat.PayeeName),
		Promos:   &payments.Promos{Catalog: cat, Users: userSvc},
		Catalog:  cat,
		Media:    MediaFetcher{Downloader: fakeDownloader{}},
		Sender:   out,
	}, Config{FreeAnalyses: 1, AdvisoryBookingURL: "https://agenda.test/cvbot"})
	require.NoError(t, m.Validate())

	return &harness{t: t, m: m, out: out, pipe: pipe, llm: fake, sessions: sessions, ledger: led, users: userSvc}
}

func (h *harness) nextID() string {
	h.seq++
	return fmt.Sprintf("wamid.%d", h.seq)
}

func (h *harness) handle(ev transport.Event) {
	h.m.Handle(context.Background(), ev)
}

func (h *harness) text(user, text string) {
	h.handle(transport.NewTextEvent("whatsapp", h.nextID(), user, "Usuario", text, time.Now()))
}

func (h *harness) button(user, id string) {
	h.handle(transport.Event{ID: h.nextID(), Transport: "whatsapp", From: user, Kind: transport.KindButton, ButtonID: id})
}

func (h *harness) media(user string, kind transport.Kind, mediaID, mimeType string) {
	h.handle(h.mediaEvent(user, kind, mediaID, mimeType))
}

func (h *harness) mediaEvent(user string, kind transport.Kind, mediaID, mimeType string) transport.Event {
	media := &transport.Media{ID: mediaID, URL: "https://media.test/" + mediaID, MimeType: mimeType}
	if kind == transport.KindDocument {
		media.FileName = mediaID + ".pdf"
	}
	return transport.Event{ID: h.nextID(), Transport: "whatsapp", From: user, Kind: kind, Media: media}
}

func (h *harness) session(user string) session.Session {
	h.t.Helper()
	sess, err := h.sessions.Get(context.Background(), user)
	require.NoError(h.t, err)
	return sess
}

// toMenu walks a new user through the greeting and the terms.
func (h *harness) toMenu(user string) {
	h.text(user, "hola")
	require.Equal(h.t, session.StateTermsAcceptance, h.session(user).State)
	h.button(user, btnAcceptTerms)
	require.Equal(h.t, session.StateMenuSelection, h.session(user).State)
}

// analyzeCV runs one full free analysis for user.
func (h *harness) analyzeCV(user, mediaID string) {
	h.button(user, btnMenuCV)
	require.Equal(h.t, session.StateWaitingPositionBeforeCV, h.session(user).State)
	h.text(user, "Analista de datos")
	require.Equal(h.t, session.StateWaitingForCV, h.session(user).State)
	h.media(user, transport.KindDocument, mediaID, "application/pdf")
}

func TestTermsMustBeAccepted(t *testing.T) {
	h := newHarness(t)
	h.text("u1", "hola")
	require.True(t, h.out.saw(msgWelcome))

	h.button("u1", btnRejectTerms)
	require.Equal(t, session.StateTermsAcceptance, h.session("u1").State)
	require.True(t, h.out.saw(msgTermsRejected))

	h.text("u1", "Sí")
	sess := h.session("u1")
	require.Equal(t, session.StateMenuSelection, sess.State)
	require.True(t, sess.TermsAccepted)
}

// A free analysis completes and a redelivered document is ignored.
func TestFreeAnalysisAndDuplicateDocument(t *testing.T) {
	h := newHarness(t)
	h.toMenu("u1")
	h.analyzeCV("u1", "media-1")

	sess := h.session("u1")
	require.Equal(t, session.StatePostCVOptions, sess.State)
	require.True(t, sess.CVProcessed)
	require.False(t, sess.ProcessingCV)
	require.Equal(t, "https://files.test/u1/report.html", sess.LastPDFURL)
	require.Contains(t, sess.PreviousAnalysis, "8/10")
	require.True(t, h.out.saw("Resultado de tu CV: 8/10"))

	h.media("u1", transport.KindDocument, "media-1", "application/pdf")
	require.Equal(t, 1, h.pipe.runs(), "same document must not be analyzed twice")
	require.Equal(t, session.StatePostCVOptions, h.session("u1").State)

	remaining, err := h.ledger.GetRemainingCredits(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 0, remaining)
}

func TestConcurrentDocumentsRunPipelineOnce(t *testing.T) {
	h := newHarness(t)
	h.toMenu("u1")
	h.button("u1", btnMenuCV)
	h.text("u1", "Contador")

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		ev := h.mediaEvent("u1", transport.KindDocument, "media-7", "application/pdf")
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.handle(ev)
		}()
	}
	wg.Wait()

	require.Equal(t, 1, h.pipe.runs())
	require.Equal(t, session.StatePostCVOptions, h.session("u1").State)
}

func TestFallbackAnalysisSendsArtifactLink(t *testing.T) {
	h := newHarness(t)
	h.pipe.result = nil
	h.toMenu("u1")
	h.analyzeCV("u1", "media-1")

	sess := h.session("u1")
	require.Equal(t, session.StatePostCVOptions, sess.State)
	require.Equal(t, "https://files.test/u1/cv.pdf", sess.LastPDFURL)
	require.True(t, h.out.saw("quedó guardado aquí"))

	// A fallback does not use up the free analysis.
	ent, err := h.ledger.Entitlement(context.Background(), "u1", 1)
	require.NoError(t, err)
	require.Equal(t, ledger.SourceFree, ent.Source)
}

func TestPipelineErrorReturnsToWaitingForCV(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "unsupported", err: fmt.Errorf("%w: .exe", documents.ErrUnsupportedType), want: msgCVUnsupported},
		{name: "too large", err: documents.ErrDocumentTooLarge, want: msgCVTooLarge},
		{name: "fetch", err: fmt.Errorf("%w: 404", documents.ErrFetchFailed), want: msgCVFailed},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			h.pipe.err = tt.err
			h.toMenu("u1")
			h.analyzeCV("u1", "media-1")

			sess := h.session("u1")
			require.Equal(t, session.StateWaitingForCV, sess.State)
			require.False(t, sess.ProcessingCV)
			require.False(t, sess.CVProcessed)
			require.True(t, h.out.saw(tt.want))
		})
	}
}

// After the free analysis the user hits the paywall, buys a package and
// spends one credit.
func TestPaywallPurchaseAndCreditUse(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.toMenu("u1")
	h.analyzeCV("u1", "media-1")

	h.button("u1", btnNewCV)
	require.Equal(t, session.StateSelectingPremiumPackage, h.session("u1").State)
	require.True(t, h.out.saw(msgPaywall))

	h.button("u1", "package_3")
	sess := h.session("u1")
	require.Equal(t, session.StateConfirmingPayment, sess.State)
	require.Equal(t, 7, sess.PackagePrice)
	require.Equal(t, 3, sess.PackageReviews)

	h.button("u1", btnConfirmPayment)
	require.Equal(t, session.StateWaitingPaymentScreenshot, h.session("u1").State)
	require.True(t, h.out.saw("Ana Torres"))

	h.text("u1", "ya pagué")
	require.Equal(t, session.StateWaitingPaymentScreenshot, h.session("u1").State)

	h.llm.receipt = `{"isValid": true, "recipientName": "Ana Torres", "amount": 4, "date": "2026-03-01"}`
	h.media("u1", transport.KindImage, "shot-1", "image/jpeg")
	require.Equal(t, session.StateWaitingPaymentScreenshot, h.session("u1").State)
	require.True(t, h.out.saw("monto"))
	remaining, err := h.ledger.GetRemainingCredits(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 0, remaining)

	h.llm.receipt = `{"isValid": true, "recipientName": "ANA TORRES", "amount": "S/ 7.00", "date": "2026-03-01"}`
	h.media("u1", transport.KindImage, "shot-2", "image/jpeg")
	require.Equal(t, session.StatePaymentCompleted, h.session("u1").State)
	remaining, err = h.ledger.GetRemainingCredits(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 3, remaining)

	h.media("u1", transport.KindDocument, "media-2", "application/pdf")
	require.Equal(t, session.StatePostCVOptions, h.session("u1").State)
	require.Equal(t, 2, h.pipe.runs())
	remaining, err = h.ledger.GetRemainingCredits(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 2, remaining)

	history, err := h.ledger.History(ctx, "u1")
	require.NoError(t, err)
	kinds := map[ledger.Kind]int{}
	for _, e := range history {
		kinds[e.Kind]++
	}
	require.Equal(t, 1, kinds[ledger.KindPayment])
	require.Equal(t, 1, kinds[ledger.KindPurchase])
	require.Equal(t, 1, kinds[ledger.KindConsume])
}

func TestConcurrentScreenshotsCreditOnce(t *testing.T) {
	h := newHarness(t)
	h.toMenu("u1")
	h.button("u1", btnMenuPremium)
	h.button("u1", "package_3")
	h.button("u1", btnConfirmPayment)
	h.llm.receipt = `{"isValid": true, "recipientName": "Ana Torres", "amount": 7, "date": "2026-03-01"}`

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		ev := h.mediaEvent("u1", transport.KindImage, fmt.Sprintf("shot-%d", i), "image/jpeg")
		wg.Add(1)
		go func() {
			defer wg.Done()
			h.handle(ev)
		}()
	}
	wg.Wait()

	require.Equal(t, session.StatePaymentCompleted, h.session("u1").State)
	remaining, err := h.ledger.GetRemainingCredits(context.Background(), "u1")
	require.NoError(t, err)
	require.Equal(t, 3, remaining)
}

func TestLenientOverrideAcceptsRawMatch(t *testing.T) {
	h := newHarness(t)
	h.toMenu("u1")
	h.button("u1", btnMenuPremium)
	h.text("u1", "6")
	require.Equal(t, "package_6", h.session("u1").SelectedPackage)
	h.text("u1", "confirmo")

	h.llm.receipt = `{"isValid": false, "recipientName": "", "amount": 0, "note": "Yape a Ana Torres por S/ 10"}`
	h.media("u1", transport.KindImage, "shot-1", "image/png")
	require.Equal(t, session.StatePaymentCompleted, h.session("u1").State)
}

func TestAdvisoryPurchase(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.toMenu("u1")
	h.button("u1", btnMenuAdvisory)
	require.Equal(t, session.StateSelectingAdvisory, h.session("u1").State)

	h.button("u1", "advisory_interview")
	sess := h.session("u1")
	require.Equal(t, session.StateConfirmingAdvisoryPayment, sess.State)
	require.Equal(t, 40, sess.PackagePrice)

	h.button("u1", btnConfirmPayment)
	h.llm.receipt = `{"isValid": true, "recipientName": "Ana Torres", "amount": 40, "date": "2026-03-01"}`
	h.media("u1", transport.KindImage, "shot-1", "image/jpeg")
	require.Equal(t, session.StateAdvisoryPaymentCompleted, h.session("u1").State)
	require.True(t, h.out.saw("https://agenda.test/cvbot"))

	history, err := h.ledger.History(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	require.Equal(t, ledger.KindAdvisoryPurchase, history[0].Kind)
	remaining, err := h.ledger.GetRemainingCredits(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 0, remaining)
}

func TestCancelPaymentReturnsToMenu(t *testing.T) {
	h := newHarness(t)
	h.toMenu("u1")
	h.button("u1", btnMenuPremium)
	h.button("u1", "package_1")
	h.button("u1", btnCancelPayment)
	require.Equal(t, session.StateMenuSelection, h.session("u1").State)
	require.True(t, h.out.saw(msgPaymentCancelled))
}

// Promo codes grant unlimited analyses, one code per user.
func TestPromoCodeGrantsUnlimitedAccess(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.toMenu("u1")
	h.analyzeCV("u1", "media-1")

	h.text("u1", "!promo")
	require.True(t, h.out.saw(msgPromoUsage))
	h.text("u1", "!promo NADA")
	require.True(t, h.out.saw(msgPromoUnknown))

	h.text("u1", "!promo cvgratis")
	require.True(t, h.out.saw("Código *CVGRATIS* activado"))
	unlimited, err := h.users.HasUnlimitedAccess(ctx, "u1")
	require.NoError(t, err)
	require.True(t, unlimited)

	h.text("u1", "!promo CVGRATIS")
	h.text("u1", "!promo BIENVENIDA")
	require.True(t, h.out.saw("Ya canjeaste el código *CVGRATIS*"))

	h.button("u1", btnNewCV)
	require.Equal(t, session.StateWaitingForCV, h.session("u1").State)
	h.media("u1", transport.KindDocument, "media-2", "application/pdf")
	require.Equal(t, 2, h.pipe.runs())
	remaining, err := h.ledger.GetRemainingCredits(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 0, remaining)
}

// The last answer fails transcription and the interview still completes
// with a mock analysis.
func TestInterviewCompletesWithFailedTranscription(t *testing.T) {
	h := newHarness(t)
	h.toMenu("u1")
	h.button("u1", btnMenuInterview)
	require.Equal(t, session.StateWaitingPositionBeforeInterview, h.session("u1").State)

	h.text("u1", "Desarrollador backend")
	require.Equal(t, session.StateWaitingInterviewConfirmation, h.session("u1").State)

	h.button("u1", btnStartInterview)
	sess := h.session("u1")
	require.Equal(t, session.StateQuestionAsked, sess.State)
	require.Len(t, sess.Questions, 1)
	require.True(t, h.out.saw("Pregunta 1 de 4"))

	h.text("u1", "mi respuesta escrita")
	require.True(t, h.out.saw(msgAnswerReminder))
	require.Equal(t, session.StateQuestionAsked, h.session("u1").State)

	h.text("u1", "!start")
	require.True(t, h.out.saw(msgInterviewGuard))
	require.Equal(t, session.StateQuestionAsked, h.session("u1").State)

	for i := 0; i < 3; i++ {
		h.media("u1", transport.KindAudio, fmt.Sprintf("voice-%d", i), "audio/ogg")
		sess = h.session("u1")
		require.Equal(t, session.StateQuestionAsked, sess.State)
		require.Equal(t, i+1, sess.CurrentQuestion)
		require.True(t, sess.Answered(i))
	}

	h.llm.transcribeErr = errors.New("whisper down")
	h.media("u1", transport.KindVideo, "video-3", "video/mp4")

	sess = h.session("u1")
	require.Equal(t, session.StateInterviewCompleted, sess.State)
	require.Equal(t, 4, sess.AnsweredCount())
	require.Equal(t, interview.FailedTranscription, sess.Answers[3].Transcription)
	require.True(t, sess.Answers[3].Analysis.Mock)
	require.GreaterOrEqual(t, sess.Answers[3].Analysis.Score, 6)
	require.LessOrEqual(t, sess.Answers[3].Analysis.Score, 9)
	for i := 1; i < len(sess.Questions); i++ {
		require.NotEqual(t, sess.Questions[i-1], sess.Questions[i])
	}
	require.True(t, h.out.saw("Entrevista completada"))
	require.Equal(t, 1, h.out.count("image"))

	h.text("u1", "gracias")
	sess = h.session("u1")
	require.Equal(t, session.StateMenuSelection, sess.State)
	require.True(t, sess.TermsAccepted)
	require.Empty(t, sess.Answers)
}

func TestInterviewUsesPositionFromCVFlow(t *testing.T) {
	h := newHarness(t)
	h.toMenu("u1")
	h.analyzeCV("u1", "media-1")

	h.button("u1", btnPostInterview)
	sess := h.session("u1")
	require.Equal(t, session.StateWaitingInterviewConfirmation, sess.State)
	require.Equal(t, "Analista de datos", sess.JobPosition)

	h.button("u1", btnBackToMenu)
	require.Equal(t, session.StateMenuSelection, h.session("u1").State)
}

func TestResetDuringAnalysisDiscardsLateResult(t *testing.T) {
	h := newHarness(t)
	h.toMenu("u1")
	h.button("u1", btnMenuCV)
	h.text("u1", "Diseñador")

	started, release := make(chan struct{}), make(chan struct{})
	h.pipe.started, h.pipe.release = started, release

	done := make(chan struct{})
	ev := h.mediaEvent("u1", transport.KindDocument, "media-1", "application/pdf")
	go func() {
		defer close(done)
		h.handle(ev)
	}()
	<-started

	h.text("u1", "!reset")
	require.Equal(t, session.StateMenuSelection, h.session("u1").State)
	close(release)
	<-done

	sess := h.session("u1")
	require.Equal(t, session.StateMenuSelection, sess.State)
	require.Empty(t, sess.LastPDFURL)
	require.False(t, sess.ProcessingCV)
	require.True(t, h.out.saw("Resultado de tu CV"), "late result is still delivered")
}

// blockNextRun makes the next pipeline run wait until the returned release
// func is called. started is closed once the run is in flight.
func (h *harness) blockNextRun() (started <-chan struct{}, release func()) {
	s, r := make(chan struct{}), make(chan struct{})
	h.pipe.mu.Lock()
	h.pipe.started, h.pipe.release = s, r
	h.pipe.mu.Unlock()
	return s, func() { close(r) }
}

// unblock stops later runs from waiting.
func (h *harness) unblock() {
	h.pipe.mu.Lock()
	h.pipe.started, h.pipe.release = nil, nil
	h.pipe.mu.Unlock()
}

func (h *harness) ledgerKinds(user string) map[ledger.Kind]int {
	h.t.Helper()
	history, err := h.ledger.History(context.Background(), user)
	require.NoError(h.t, err)
	kinds := map[ledger.Kind]int{}
	for _, e := range history {
		kinds[e.Kind]++
	}
	return kinds
}

func TestResetDuringPaidAnalysisSpendsOneCreditPerRun(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.toMenu("u1")
	h.analyzeCV("u1", "media-1")
	require.NoError(t, h.ledger.AddCredits(ctx, "u1", 1, "package_1"))

	h.button("u1", btnNewCV)
	require.Equal(t, session.StateWaitingForCV, h.session("u1").State)

	started, release := h.blockNextRun()
	done := make(chan struct{})
	ev := h.mediaEvent("u1", transport.KindDocument, "media-2", "application/pdf")
	go func() {
		defer close(done)
		h.handle(ev)
	}()
	<-started
	h.unblock()

	remaining, err := h.ledger.GetRemainingCredits(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 0, remaining, "credit is taken when the document is accepted")

	h.text("u1", "!reset")
	h.button("u1", btnMenuCV)
	require.Equal(t, session.StateSelectingPremiumPackage, h.session("u1").State)
	h.media("u1", transport.KindDocument, "media-3", "application/pdf")

	release()
	<-done

	require.Equal(t, 2, h.pipe.runs())
	remaining, err = h.ledger.GetRemainingCredits(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 0, remaining)
	require.Equal(t, 1, h.ledgerKinds("u1")[ledger.KindConsume])
}

func TestResetDuringFreeAnalysisKeepsOneFreeRun(t *testing.T) {
	h := newHarness(t)
	h.toMenu("u1")
	h.button("u1", btnMenuCV)
	h.text("u1", "Diseñador")

	started, release := h.blockNextRun()
	done := make(chan struct{})
	ev := h.mediaEvent("u1", transport.KindDocument, "media-1", "application/pdf")
	go func() {
		defer close(done)
		h.handle(ev)
	}()
	<-started
	h.unblock()

	h.text("u1", "!reset")
	h.button("u1", btnMenuCV)
	require.Equal(t, session.StateSelectingPremiumPackage, h.session("u1").State)
	require.True(t, h.out.saw(msgPaywall))
	h.media("u1", transport.KindDocument, "media-2", "application/pdf")

	release()
	<-done

	require.Equal(t, 1, h.pipe.runs())
	pay, err := h.ledger.ShouldUserPayForCVAnalysis(context.Background(), "u1", 1)
	require.NoError(t, err)
	require.True(t, pay)
}

func TestFailedPaidAnalysisRefundsCredit(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()
	h.toMenu("u1")
	h.analyzeCV("u1", "media-1")
	require.NoError(t, h.ledger.AddCredits(ctx, "u1", 1, "package_1"))

	h.pipe.err = fmt.Errorf("%w: 404", documents.ErrFetchFailed)
	h.button("u1", btnNewCV)
	h.media("u1", transport.KindDocument, "media-2", "application/pdf")
	require.Equal(t, session.StateWaitingForCV, h.session("u1").State)

	remaining, err := h.ledger.GetRemainingCredits(ctx, "u1")
	require.NoError(t, err)
	require.Equal(t, 1, remaining)
	kinds := h.ledgerKinds("u1")
	require.Equal(t, 1, kinds[ledger.KindConsume])
	require.Equal(t, 1, kinds[ledger.KindRefund])
}

func TestDuplicateEventIsHandledOnce(t *testing.T) {
	h := newHarness(t)
	ev := transport.NewTextEvent("whatsapp", "wamid.same", "u1", "Usuario", "hola", time.Now())
	h.handle(ev)
	n := len(h.out.out)
	h.handle(ev)
	require.Equal(t, n, len(h.out.out))
}

func TestCommandsWorkInAnyState(t *testing.T) {
	h := newHarness(t)
	h.toMenu("u1")

	h.text("u1", "!pdf")
	require.True(t, h.out.saw(msgNoReport))

	h.analyzeCV("u1", "media-1")
	h.out.clear()
	h.text("u1", "!link")
	require.True(t, h.out.saw("https://files.test/u1/report.html"))

	h.text("u1", "!ayuda")
	require.True(t, h.out.saw("Comandos disponibles"))

	h.text("u1", "!start")
	sess := h.session("u1")
	require.Equal(t, session.StateMenuSelection, sess.State)
	require.Empty(t, sess.JobPosition)
}

func TestUnrecognizedInputRepromptsMenu(t *testing.T) {
	h := newHarness(t)
	h.toMenu("u1")
	h.out.clear()
	h.text("u1", "qué tal")
	require.Equal(t, session.StateMenuSelection, h.session("u1").State)
	require.True(t, h.out.saw(msgMenuHint))
}

func TestGuardTurnsPanicIntoApology(t *testing.T) {
	h := newHarness(t)
	ev := transport.NewTextEvent("whatsapp", "wamid.1", "u1", "Usuario", "hola", time.Now())
	h.m.guard(context.Background(), ev, "test", func() error {
		panic("boom")
	})
	require.True(t, h.out.saw(msgApology))

	h.out.clear()
	h.m.guard(context.Background(), ev, "test", func() error {
		return errors.New("store unavailable")
	})
	require.True(t, h.out.saw(msgApology))
}
