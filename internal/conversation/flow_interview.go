package conversation

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"cvbot-backend/internal/interview"
	"cvbot-backend/internal/session"
	"cvbot-backend/internal/shared/telemetry"
	"cvbot-backend/internal/transport"
)

func (m *Machine) onInterviewConfirmation(ctx context.Context, sess session.Session, ev transport.Event) (continuation, error) {
	input := ev.Input()
	switch {
	case isYes(input):
		updated, err := m.transition(ctx, sess, session.StateInterviewStarted, ev, session.Patch{
			Questions:       &[]string{},
			Answers:         &[]*session.InterviewAnswer{},
			CurrentQuestion: session.Ptr(0),
		})
		if err != nil {
			return nil, err
		}
		m.say(ctx, sess.UserID, msgInterviewIntro, msgInterviewPreparing)
		return m.askQuestion(updated, 0), nil
	case isNo(input):
		return nil, m.showMenu(ctx, sess, ev)
	}
	m.buttons(ctx, sess.UserID, fmt.Sprintf(msgInterviewConfirm, sess.JobPosition, m.Coach.QuestionCount()), confirmInterviewButtons())
	return nil, nil
}

func (m *Machine) onInterviewStarted(ctx context.Context, sess session.Session, ev transport.Event) (continuation, error) {
	// The first question was never stored: generation died with the process.
	if len(sess.Questions) <= sess.CurrentQuestion && time.Since(sess.UpdatedAt) > 2*time.Minute {
		m.say(ctx, sess.UserID, msgInterviewPreparing)
		return m.askQuestion(sess, sess.CurrentQuestion), nil
	}
	m.say(ctx, sess.UserID, msgInterviewPreparing)
	return nil, nil
}

// askQuestion returns the continuation that generates question index and
// moves the session to question_asked.
func (m *Machine) askQuestion(sess session.Session, index int) continuation {
	userID, epoch := sess.UserID, sess.Epoch
	role := sess.JobPosition
	category := interview.NormalizeJobType(role)
	asked := append([]string(nil), sess.Questions...)
	from := sess.State
	return func(ctx context.Context) {
		question := m.Coach.GenerateQuestion(ctx, role, category, index, asked)
		applied := false
		_, err := m.Sessions.Mutate(ctx, userID, func(cur *session.Session) error {
			if cur.Epoch != epoch {
				return session.ErrSkip
			}
			for len(cur.Questions) <= index {
				cur.Questions = append(cur.Questions, "")
			}
			cur.Questions[index] = question
			cur.CurrentQuestion = index
			cur.State = session.StateQuestionAsked
			applied = true
			return nil
		})
		if err != nil {
			telemetry.Error("conversation.question_store_failed", map[string]any{"user_id": userID, "index": index, "error": err})
			m.say(ctx, userID, msgApology)
			return
		}
		if !applied {
			telemetry.Info("conversation.stale_result", map[string]any{"user_id": userID, "epoch": epoch, "to": string(session.StateQuestionAsked)})
			return
		}
		logTransition(userID, from, session.StateQuestionAsked, transport.Event{Kind: transport.KindText})
		m.say(ctx, userID, fmt.Sprintf(msgQuestion, index+1, m.Coach.QuestionCount(), question))
	}
}

func (m *Machine) onQuestionAsked(ctx context.Context, sess session.Session, ev transport.Event) (continuation, error) {
	index := sess.CurrentQuestion
	if (ev.Kind != transport.KindAudio && ev.Kind != transport.KindVideo) || ev.Media == nil {
		m.say(ctx, sess.UserID, msgAnswerReminder)
		if index < len(sess.Questions) {
			m.say(ctx, sess.UserID, fmt.Sprintf(msgQuestion, index+1, m.Coach.QuestionCount(), sess.Questions[index]))
		}
		return nil, nil
	}
	if sess.Answered(index) {
		telemetry.Info("conversation.duplicate_answer", map[string]any{"user_id": sess.UserID, "index": index})
		return nil, nil
	}
	updated, err := m.transition(ctx, sess, session.StateAnswerReceived, ev, session.Patch{})
	if err != nil {
		return nil, err
	}
	m.say(ctx, sess.UserID, msgAnswerProcessing)

	question := ""
	if index < len(sess.Questions) {
		question = sess.Questions[index]
	}
	media := *ev.Media
	return func(ctx context.Context) {
		m.evaluateAnswer(ctx, updated, index, question, media)
	}, nil
}

// evaluateAnswer transcribes and scores one answer, stores it and either
// asks the next question or closes the interview.
func (m *Machine) evaluateAnswer(ctx context.Context, sess session.Session, index int, question string, media transport.Media) {
	userID := sess.UserID
	transcription := interview.FailedTranscription
	data, mimeType, err := m.Media.Fetch(ctx, &media)
	if err != nil {
		telemetry.Warn("conversation.answer_fetch_failed", map[string]any{"user_id": userID, "index": index, "error": err})
	} else {
		transcription, _ = m.Coach.Transcribe(ctx, bytes.NewReader(data), answerFileName(media, mimeType), mimeType)
	}
	analysis := m.Coach.ScoreAnswer(ctx, sess.JobPosition, question, transcription)

	total := m.Coach.QuestionCount()
	last := index+1 >= total
	next := session.StateAnswerReceived
	if last {
		next = session.StateInterviewCompleted
	}
	stored, err := m.Sessions.AppendAnswerInEpoch(ctx, userID, sess.Epoch, index, session.InterviewAnswer{
		Question:      question,
		Transcription: transcription,
		Analysis:      analysis,
		Timestamp:     time.Now().UTC(),
	}, session.Patch{State: &next})
	switch {
	case errors.Is(err, session.ErrSkip):
		telemetry.Info("conversation.stale_result", map[string]any{"user_id": userID, "epoch": sess.Epoch, "index": index})
		return
	case errors.Is(err, session.ErrAnswerExists):
		telemetry.Info("conversation.duplicate_answer", map[string]any{"user_id": userID, "index": index})
		return
	case err != nil:
		telemetry.Error("conversation.answer_store_failed", map[string]any{"user_id": userID, "index": index, "error": err})
		m.say(ctx, userID, msgApology)
		return
	}

	m.say(ctx, userID, feedbackMessage(index, total, analysis))
	if !last {
		m.askQuestion(stored, index+1)(ctx)
		return
	}
	logTransition(userID, session.StateAnswerReceived, session.StateInterviewCompleted, transport.Event{Kind: transport.KindAudio})
	m.sendSummary(ctx, stored)
}

func (m *Machine) sendSummary(ctx context.Context, sess session.Session) {
	summary := interview.Summarize(sess.Answers)
	m.say(ctx, sess.UserID, summaryMessage(summary.Average, len(summary.Scores)))
	chart, err := interview.ScoreChart(summary)
	if err != nil {
		telemetry.Warn("conversation.chart_failed", map[string]any{"user_id": sess.UserID, "error": err})
		return
	}
	if err := m.Sender.SendImage(ctx, sess.UserID, chart, "image/png", "Tus puntajes por pregunta"); err != nil {
		telemetry.Warn("conversation.send_failed", map[string]any{"user_id": sess.UserID, "error": err})
	}
}

func (m *Machine) onAnswerReceived(ctx context.Context, sess session.Session, ev transport.Event) error {
	m.say(ctx, sess.UserID, msgAnswerProcessing)
	return nil
}

// onInterviewCompleted resets the session on the next message.
func (m *Machine) onInterviewCompleted(ctx context.Context, sess session.Session, ev transport.Event) error {
	return m.restart(ctx, sess.UserID, ev, "")
}

func answerFileName(media transport.Media, mimeType string) string {
	if media.FileName != "" {
		return media.FileName
	}
	switch mimeType {
	case "video/mp4":
		return "answer.mp4"
	case "audio/mpeg":
		return "answer.mp3"
	case "audio/mp4", "audio/aac":
		return "answer.m4a"
	case "audio/wav", "audio/x-wav":
		return "answer.wav"
	case "audio/webm", "video/webm":
		return "answer.webm"
	}
	return "answer.ogg"
}
