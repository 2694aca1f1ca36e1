package session

import "time"

// State is the position of a user in the conversation.
type State string

const (
	StateInitial                        State = "initial"
	StateTermsAcceptance                State = "terms_acceptance"
	StateMenuSelection                  State = "menu_selection"
	StateWaitingPositionBeforeCV        State = "waiting_for_position_before_cv"
	StateWaitingPositionBeforeInterview State = "waiting_for_position_before_interview"
	StateWaitingForCV                   State = "waiting_for_cv"
	StateCVReceived                     State = "cv_received"
	StatePostCVOptions                  State = "post_cv_options"
	StatePositionReceived               State = "position_received"
	StateWaitingInterviewConfirmation   State = "waiting_interview_confirmation"
	StateInterviewStarted               State = "interview_started"
	StateQuestionAsked                  State = "question_asked"
	StateAnswerReceived                 State = "answer_received"
	StateInterviewCompleted             State = "interview_completed"

	StateSelectingPremiumPackage  State = "selecting_premium_package"
	StateConfirmingPayment        State = "confirming_payment"
	StateWaitingPaymentScreenshot State = "waiting_payment_screenshot"
	StatePaymentCompleted         State = "payment_completed"

	StateSelectingAdvisory                State = "selecting_advisory"
	StateConfirmingAdvisoryPayment        State = "confirming_advisory_payment"
	StateWaitingAdvisoryPaymentScreenshot State = "waiting_advisory_payment_screenshot"
	StateAdvisoryPaymentCompleted         State = "advisory_payment_completed"
)

var allStates = []State{
	StateInitial,
	StateTermsAcceptance,
	StateMenuSelection,
	StateWaitingPositionBeforeCV,
	StateWaitingPositionBeforeInterview,
	StateWaitingForCV,
	StateCVReceived,
	StatePostCVOptions,
	StatePositionReceived,
	StateWaitingInterviewConfirmation,
	StateInterviewStarted,
	StateQuestionAsked,
	StateAnswerReceived,
	StateInterviewCompleted,
	StateSelectingPremiumPackage,
	StateConfirmingPayment,
	StateWaitingPaymentScreenshot,
	StatePaymentCompleted,
	StateSelectingAdvisory,
	StateConfirmingAdvisoryPayment,
	StateWaitingAdvisoryPaymentScreenshot,
	StateAdvisoryPaymentCompleted,
}

// AllStates returns the closed set of conversation states.
func AllStates() []State {
	out := make([]State, len(allStates))
	copy(out, allStates)
	return out
}

// Valid reports whether s belongs to the closed set.
func (s State) Valid() bool {
	for _, st := range allStates {
		if st == s {
			return true
		}
	}
	return false
}

// Session is the durable per-user conversation record. JSON names are the
// persisted field names and must stay stable.
type Session struct {
	UserID           string             `json:"userId"`
	State            State              `json:"state"`
	TermsAccepted    bool               `json:"termsAccepted"`
	JobPosition      string             `json:"jobPosition,omitempty"`
	CVProcessed      bool               `json:"cvProcessed"`
	ProcessingCV     bool               `json:"processingCV"`
	LastDocumentID   string             `json:"lastDocumentId,omitempty"`
	Questions        []string           `json:"questions"`
	Answers          []*InterviewAnswer `json:"answers"`
	CurrentQuestion  int                `json:"currentQuestion"`
	LastPDFURL       string             `json:"lastPdfUrl,omitempty"`
	PreviousAnalysis string             `json:"previousAnalysis,omitempty"`
	SelectedPackage  string             `json:"selectedPackage,omitempty"`
	PackagePrice     int                `json:"packagePrice,omitempty"`
	PackageReviews   int                `json:"packageReviews,omitempty"`
	SelectedAdvisory string             `json:"selectedAdvisory,omitempty"`
	Epoch            int64              `json:"epoch"`
	Version          int64              `json:"-"`
	CreatedAt        time.Time          `json:"createdAt"`
	UpdatedAt        time.Time          `json:"updatedAt"`
}

// InterviewAnswer fills one answer slot. Written once per question.
type InterviewAnswer struct {
	QuestionNumber int            `json:"questionNumber"`
	Question       string         `json:"question,omitempty"`
	Transcription  string         `json:"transcription"`
	Analysis       AnswerAnalysis `json:"analysis"`
	Timestamp      time.Time      `json:"timestamp"`
}

// AnswerAnalysis is the scored feedback for one interview answer.
type AnswerAnalysis struct {
	Score       int      `json:"score"`
	Summary     string   `json:"summary"`
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
	Suggestions []string `json:"suggestions"`
	Mock        bool     `json:"mock,omitempty"`
}

// Answered reports whether answer slot i holds a value.
func (s Session) Answered(i int) bool {
	return i >= 0 && i < len(s.Answers) && s.Answers[i] != nil
}

// AnsweredCount counts filled answer slots.
func (s Session) AnsweredCount() int {
	n := 0
	for _, a := range s.Answers {
		if a != nil {
			n++
		}
	}
	return n
}

func newSession(userID string, now time.Time) Session {
	return Session{
		UserID:    userID,
		State:     StateInitial,
		Questions: []string{},
		Answers:   []*InterviewAnswer{},
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// clone returns a copy that shares no slices or answer pointers with s.
func (s Session) clone() Session {
	out := s
	out.Questions = append([]string{}, s.Questions...)
	out.Answers = make([]*InterviewAnswer, len(s.Answers))
	for i, a := range s.Answers {
		if a == nil {
			continue
		}
		cp := *a
		cp.Analysis.Strengths = append([]string(nil), a.Analysis.Strengths...)
		cp.Analysis.Weaknesses = append([]string(nil), a.Analysis.Weaknesses...)
		cp.Analysis.Suggestions = append([]string(nil), a.Analysis.Suggestions...)
		out.Answers[i] = &cp
	}
	return out
}
