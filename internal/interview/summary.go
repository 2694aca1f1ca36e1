package interview

import (
	"bytes"
	"errors"
	"fmt"
	"math"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"cvbot-backend/internal/session"
)

// Summary aggregates a finished interview.
type Summary struct {
	Scores  []int
	Average float64
	Mocked  int
}

// Summarize averages the scores of the filled answer slots.
func Summarize(answers []*session.InterviewAnswer) Summary {
	var s Summary
	total := 0
	for _, a := range answers {
		if a == nil {
			continue
		}
		s.Scores = append(s.Scores, a.Analysis.Score)
		total += a.Analysis.Score
		if a.Analysis.Mock {
			s.Mocked++
		}
	}
	if len(s.Scores) > 0 {
		s.Average = math.Round(float64(total)/float64(len(s.Scores))*10) / 10
	}
	return s
}

// ErrNoScores is returned when there is nothing to chart.
var ErrNoScores = errors.New("no scores to chart")

var barColor = drawing.ColorFromHex("2e7d32")

// ScoreChart renders the per-question scores as a PNG bar chart.
func ScoreChart(s Summary) ([]byte, error) {
	if len(s.Scores) == 0 {
		return nil, ErrNoScores
	}
	bars := make([]chart.Value, 0, len(s.Scores))
	for i, score := range s.Scores {
		bars = append(bars, chart.Value{
			Label: fmt.Sprintf("P%d", i+1),
			Value: float64(score),
			Style: chart.Style{FillColor: barColor, StrokeColor: barColor},
		})
	}
	ticks := make([]chart.Tick, 0, 6)
	for v := 0; v <= 10; v += 2 {
		ticks = append(ticks, chart.Tick{Value: float64(v), Label: fmt.Sprintf("%d", v)})
	}
	graph := chart.BarChart{
		Title:    fmt.Sprintf("Tu entrevista: %.1f / 10", s.Average),
		Width:    640,
		Height:   400,
		BarWidth: 60,
		Background: chart.Style{
			Padding:   chart.Box{Top: 48, Left: 16, Right: 16, Bottom: 16},
			FillColor: chart.ColorWhite,
		},
		YAxis: chart.YAxis{
			Range: &chart.ContinuousRange{Min: 0, Max: 10},
			Ticks: ticks,
		},
		Bars: bars,
	}
	var buf bytes.Buffer
	if err := graph.Render(chart.PNG, &buf); err != nil {
		return nil, fmt.Errorf("render score chart: %w", err)
	}
	return buf.Bytes(), nil
}
