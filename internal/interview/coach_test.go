package interview

import (
	"context"
	"errors"
	"io"
	"strings"
	"testing"

	"cvbot-backend/internal/llm"
	"cvbot-backend/internal/session"
)

type scriptedLLM struct {
	replies    []string
	err        error
	calls      int
	transcript string
	transErr   error
}

func (s *scriptedLLM) Complete(context.Context, []llm.Message, llm.Options) (string, error) {
	s.calls++
	if s.err != nil {
		return "", s.err
	}
	if len(s.replies) == 0 {
		return "", llm.ErrEmptyResponse
	}
	r := s.replies[0]
	if len(s.replies) > 1 {
		s.replies = s.replies[1:]
	}
	return r, nil
}

func (s *scriptedLLM) Transcribe(context.Context, io.Reader, string, string) (string, error) {
	return s.transcript, s.transErr
}

func (s *scriptedLLM) DescribeImage(context.Context, string, []byte, string) (string, error) {
	return "", llm.ErrNotImplemented
}

func TestGenerateQuestionUsesModel(t *testing.T) {
	fake := &scriptedLLM{replies: []string{`{"question":"¿Qué es un índice en SQL?"}`}}
	c := NewCoach(fake, 4)

	got := c.GenerateQuestion(context.Background(), "backend engineer", CategorySoftware, 1, nil)
	if got != "¿Qué es un índice en SQL?" {
		t.Fatalf("unexpected question %q", got)
	}
	if fake.calls != 1 {
		t.Fatalf("expected one call, got %d", fake.calls)
	}
}

func TestGenerateQuestionRetriesDuplicates(t *testing.T) {
	asked := []string{"Cuéntame sobre ti."}
	fake := &scriptedLLM{replies: []string{
		`{"question":"cuéntame  sobre ti."}`,
		`{"question":"¿Por qué quieres este puesto?"}`,
	}}
	c := NewCoach(fake, 4)

	got := c.GenerateQuestion(context.Background(), "ventas", CategorySales, 0, asked)
	if got != "¿Por qué quieres este puesto?" {
		t.Fatalf("unexpected question %q", got)
	}
	if fake.calls != 2 {
		t.Fatalf("expected two calls, got %d", fake.calls)
	}
}

func TestGenerateQuestionFallsBackAfterDuplicates(t *testing.T) {
	asked := []string{"Repetida"}
	fake := &scriptedLLM{replies: []string{`{"question":"Repetida"}`}}
	c := NewCoach(fake, 4)
	c.Intn = func(int) int { return 0 }

	got := c.GenerateQuestion(context.Background(), "ventas", CategorySales, 1, asked)
	if fake.calls != maxGenerateAttempts {
		t.Fatalf("expected %d calls, got %d", maxGenerateAttempts, fake.calls)
	}
	if got != staticTechnical[CategorySales][0] {
		t.Fatalf("expected static sales question, got %q", got)
	}
}

func TestGenerateQuestionStaticAvoidsDuplicates(t *testing.T) {
	c := NewCoach(llm.PlaceholderClient{}, 4)
	picks := []int{0, 0, 1}
	c.Intn = func(int) int {
		p := picks[0]
		if len(picks) > 1 {
			picks = picks[1:]
		}
		return p
	}
	asked := []string{staticTechnical[CategoryData][0]}

	got := c.GenerateQuestion(context.Background(), "analista", CategoryData, 1, asked)
	if got != staticTechnical[CategoryData][1] {
		t.Fatalf("expected second data question, got %q", got)
	}
}

func TestStaticPoolSubstitutesRole(t *testing.T) {
	pool := staticPool(StageIntro, CategoryGeneral, "chofer")
	for _, q := range pool {
		if strings.Contains(q, rolePlaceholder) {
			t.Fatalf("placeholder left in %q", q)
		}
	}
	if !strings.Contains(pool[0], "chofer") {
		t.Fatalf("expected role in %q", pool[0])
	}
	// Pseudo-categories have no technical table and use the stage pool.
	tech := staticPool(StageTechnical, Category("piloto de drones"), "piloto")
	if !strings.Contains(tech[0], "piloto") {
		t.Fatalf("expected stage pool for pseudo-category, got %q", tech[0])
	}
}

func TestStageFor(t *testing.T) {
	want := []Stage{StageIntro, StageTechnical, StageTeamwork, StageProblemSolving, StageProblemSolving}
	for i, w := range want {
		if got := StageFor(i); got != w {
			t.Fatalf("StageFor(%d) = %s, want %s", i, got, w)
		}
	}
}

func TestScoreAnswer(t *testing.T) {
	fake := &scriptedLLM{replies: []string{"```json\n" + `{"score": 12, "summary": "Buena respuesta",
		"strengths": ["a","b","c","d"], "weaknesses": ["x","y","z"], "suggestions": ["1","2","3","4","5"]}` + "\n```"}}
	c := NewCoach(fake, 4)

	got := c.ScoreAnswer(context.Background(), "backend", "¿Qué es REST?", "Es un estilo de arquitectura")
	if got.Mock {
		t.Fatalf("expected real analysis")
	}
	if got.Score != 10 {
		t.Fatalf("expected clamped score 10, got %d", got.Score)
	}
	if len(got.Strengths) != 3 || len(got.Suggestions) != 4 {
		t.Fatalf("unexpected shape %+v", got)
	}
}

func TestScoreAnswerFallsBackToMock(t *testing.T) {
	tests := []struct {
		name          string
		fake          *scriptedLLM
		transcription string
		wantCalls     int
	}{
		{name: "provider error", fake: &scriptedLLM{err: errors.New("status 503")}, transcription: "hola", wantCalls: 1},
		{name: "incomplete json", fake: &scriptedLLM{replies: []string{`{"score": 7}`}}, transcription: "hola", wantCalls: 1},
		{name: "failed transcription", fake: &scriptedLLM{}, transcription: FailedTranscription, wantCalls: 0},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			c := NewCoach(tt.fake, 4)
			got := c.ScoreAnswer(context.Background(), "", "pregunta", tt.transcription)
			if !got.Mock {
				t.Fatalf("expected mock analysis")
			}
			if got.Score < 6 || got.Score > 9 {
				t.Fatalf("mock score out of range: %d", got.Score)
			}
			if len(got.Strengths) != 3 || len(got.Weaknesses) != 3 {
				t.Fatalf("unexpected mock shape %+v", got)
			}
			if n := len(got.Suggestions); n < 3 || n > 4 {
				t.Fatalf("unexpected suggestion count %d", n)
			}
			if tt.fake.calls != tt.wantCalls {
				t.Fatalf("expected %d calls, got %d", tt.wantCalls, tt.fake.calls)
			}
		})
	}
}

func TestMockScoreBounds(t *testing.T) {
	c := NewCoach(nil, 0)
	for _, n := range []int{0, 3} {
		n := n
		c.Intn = func(int) int { return n }
		if got := c.MockAnalysis("x").Score; got != 6+n {
			t.Fatalf("expected %d, got %d", 6+n, got)
		}
	}
	if c.QuestionCount() != DefaultLength {
		t.Fatalf("expected default length")
	}
}

func TestTranscribe(t *testing.T) {
	c := NewCoach(&scriptedLLM{transcript: "  mi respuesta  "}, 4)
	text, ok := c.Transcribe(context.Background(), strings.NewReader("audio"), "a.ogg", "audio/ogg")
	if !ok || text != "mi respuesta" {
		t.Fatalf("unexpected transcription %q ok=%v", text, ok)
	}

	c = NewCoach(&scriptedLLM{transErr: errors.New("boom")}, 4)
	text, ok = c.Transcribe(context.Background(), strings.NewReader("audio"), "a.ogg", "audio/ogg")
	if ok || text != FailedTranscription {
		t.Fatalf("expected fallback, got %q ok=%v", text, ok)
	}
}

func TestSummarizeAndChart(t *testing.T) {
	answers := []*session.InterviewAnswer{
		{Analysis: session.AnswerAnalysis{Score: 7}},
		nil,
		{Analysis: session.AnswerAnalysis{Score: 8, Mock: true}},
		{Analysis: session.AnswerAnalysis{Score: 6}},
	}
	s := Summarize(answers)
	if len(s.Scores) != 3 || s.Average != 7 || s.Mocked != 1 {
		t.Fatalf("unexpected summary %+v", s)
	}

	png, err := ScoreChart(s)
	if err != nil {
		t.Fatalf("ScoreChart: %v", err)
	}
	if len(png) < 8 || string(png[1:4]) != "PNG" {
		t.Fatalf("expected PNG output")
	}

	if _, err := ScoreChart(Summary{}); !errors.Is(err, ErrNoScores) {
		t.Fatalf("expected ErrNoScores, got %v", err)
	}
}
