package interview

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"strings"

	"cvbot-backend/internal/llm"
	"cvbot-backend/internal/session"
	"cvbot-backend/internal/shared/telemetry"
)

const (
	DefaultLength = 4

	maxGenerateAttempts = 3
	maxStaticAttempts   = 5
)

// FailedTranscription is stored as the transcription when speech-to-text fails.
const FailedTranscription = "[No se pudo transcribir la respuesta]"

// Coach generates interview questions and scores answers. Every method
// degrades to static content when inference fails, so callers never have
// to handle an error to keep the interview moving.
type Coach struct {
	LLM llm.Client
	// Length is the number of questions per interview.
	Length int
	// Intn is the random source for static picks and mock scores.
	Intn func(n int) int
}

func NewCoach(client llm.Client, length int) *Coach {
	if client == nil {
		client = llm.PlaceholderClient{}
	}
	if length <= 0 {
		length = DefaultLength
	}
	return &Coach{LLM: client, Length: length}
}

func (c *Coach) intn(n int) int {
	if n <= 0 {
		return 0
	}
	if c.Intn != nil {
		return c.Intn(n)
	}
	return rand.IntN(n)
}

// QuestionCount returns the configured interview length.
func (c *Coach) QuestionCount() int {
	if c == nil || c.Length <= 0 {
		return DefaultLength
	}
	return c.Length
}

type questionReply struct {
	Question string `json:"question"`
}

// GenerateQuestion produces the question for slot index. asked holds the
// questions already put to the user this session; an exact (case and
// whitespace insensitive) repeat is rejected.
func (c *Coach) GenerateQuestion(ctx context.Context, role string, category Category, index int, asked []string) string {
	stage := StageFor(index)
	messages := []llm.Message{
		llm.System(questionSystemPrompt),
		llm.User(questionPrompt(stage, role, category, asked)),
	}

	var candidate string
	for attempt := 1; attempt <= maxGenerateAttempts; attempt++ {
		var reply questionReply
		_, err := llm.CompleteJSON(ctx, c.LLM, messages, &reply)
		if err != nil {
			telemetry.Warn("interview.question_llm_failed", map[string]any{
				"stage":   stage.String(),
				"attempt": attempt,
				"error":   err,
			})
			break
		}
		candidate = strings.TrimSpace(reply.Question)
		if candidate == "" {
			continue
		}
		if !alreadyAsked(candidate, asked) {
			return candidate
		}
		telemetry.Info("interview.question_duplicate", map[string]any{"stage": stage.String(), "attempt": attempt})
	}

	return c.staticQuestion(stage, category, role, asked)
}

func (c *Coach) staticQuestion(stage Stage, category Category, role string, asked []string) string {
	pool := staticPool(stage, category, role)
	var pick string
	for attempt := 0; attempt < maxStaticAttempts; attempt++ {
		pick = pool[c.intn(len(pool))]
		if !alreadyAsked(pick, asked) {
			return pick
		}
	}
	return pick
}

func alreadyAsked(q string, asked []string) bool {
	key := questionKey(q)
	for _, a := range asked {
		if questionKey(a) == key {
			return true
		}
	}
	return false
}

func questionKey(q string) string {
	return strings.Join(strings.Fields(strings.ToLower(q)), " ")
}

// Transcribe converts an audio answer to text. ok is false when the
// provider failed, in which case text is FailedTranscription.
func (c *Coach) Transcribe(ctx context.Context, audio io.Reader, fileName, mimeType string) (text string, ok bool) {
	out, err := c.LLM.Transcribe(ctx, audio, fileName, mimeType)
	out = strings.TrimSpace(out)
	if err != nil || out == "" {
		if err == nil {
			err = llm.ErrEmptyResponse
		}
		telemetry.Warn("interview.transcription_failed", map[string]any{"file_name": fileName, "error": err})
		return FailedTranscription, false
	}
	return out, true
}

type scoreReply struct {
	Score       int      `json:"score"`
	Summary     string   `json:"summary"`
	Strengths   []string `json:"strengths"`
	Weaknesses  []string `json:"weaknesses"`
	Suggestions []string `json:"suggestions"`
}

var errIncompleteScore = errors.New("incomplete score")

// ScoreAnswer evaluates one answer. On any failure it returns a mock
// analysis flagged with Mock.
func (c *Coach) ScoreAnswer(ctx context.Context, role, question, transcription string) session.AnswerAnalysis {
	if strings.TrimSpace(transcription) == "" || transcription == FailedTranscription {
		return c.MockAnalysis(role)
	}
	messages := []llm.Message{
		llm.System(scoreSystemPrompt),
		llm.User(fmt.Sprintf("Puesto: %s\nPregunta: %s\nRespuesta del candidato: %s", roleOrDefault(role), question, transcription)),
	}
	var reply scoreReply
	raw, err := llm.CompleteJSON(ctx, c.LLM, messages, &reply)
	if err == nil {
		err = reply.validate()
	}
	if err != nil {
		telemetry.Warn("interview.score_failed", map[string]any{"error": err, "raw_len": len(raw)})
		return c.MockAnalysis(role)
	}
	return session.AnswerAnalysis{
		Score:       clampScore(reply.Score),
		Summary:     strings.TrimSpace(reply.Summary),
		Strengths:   limit(reply.Strengths, 3),
		Weaknesses:  limit(reply.Weaknesses, 3),
		Suggestions: limit(reply.Suggestions, 4),
	}
}

func (r scoreReply) validate() error {
	if r.Score <= 0 || strings.TrimSpace(r.Summary) == "" {
		return errIncompleteScore
	}
	if len(r.Strengths) == 0 || len(r.Weaknesses) == 0 || len(r.Suggestions) == 0 {
		return errIncompleteScore
	}
	return nil
}

// MockAnalysis is the stand-in used when scoring is unavailable: a score
// between 6 and 9 with templated feedback.
func (c *Coach) MockAnalysis(role string) session.AnswerAnalysis {
	role = roleOrDefault(role)
	suggestions := []string{
		"Usa el método STAR (Situación, Tarea, Acción, Resultado) para estructurar tus respuestas.",
		"Incluye cifras o resultados medibles que respalden tus logros.",
		fmt.Sprintf("Relaciona tu experiencia directamente con las funciones de %s.", role),
	}
	if c.intn(2) == 1 {
		suggestions = append(suggestions, "Practica tu respuesta en voz alta para ganar fluidez y seguridad.")
	}
	return session.AnswerAnalysis{
		Score:   6 + c.intn(4),
		Summary: fmt.Sprintf("Tu respuesta muestra interés en el puesto de %s y aporta información útil, aunque puede ganar en estructura y ejemplos concretos.", role),
		Strengths: []string{
			"Comunicas tus ideas con claridad.",
			"Muestras motivación por el puesto.",
			"Haces referencia a tu experiencia previa.",
		},
		Weaknesses: []string{
			"Faltan ejemplos concretos de situaciones reales.",
			"La respuesta podría ser más estructurada.",
			"No se mencionan resultados medibles.",
		},
		Suggestions: suggestions,
		Mock:        true,
	}
}

func roleOrDefault(role string) string {
	role = strings.TrimSpace(role)
	if role == "" {
		return "el puesto"
	}
	return role
}

func clampScore(n int) int {
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}

func limit(items []string, n int) []string {
	out := make([]string, 0, n)
	for _, it := range items {
		it = strings.TrimSpace(it)
		if it == "" {
			continue
		}
		out = append(out, it)
		if len(out) == n {
			break
		}
	}
	return out
}
