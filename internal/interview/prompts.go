package interview

import (
	"fmt"
	"strings"
)

const questionSystemPrompt = `Eres un reclutador experto que conduce entrevistas de trabajo en español.
Responde únicamente con un objeto JSON de la forma {"question": "<pregunta>"}.
La pregunta debe ser breve, clara y poder responderse en un mensaje de voz de uno o dos minutos.`

const scoreSystemPrompt = `Eres un coach de entrevistas. Evalúa la respuesta del candidato y responde únicamente con JSON:
{"score": <entero 1-10>, "summary": "<resumen breve>", "strengths": ["", "", ""], "weaknesses": ["", "", ""], "suggestions": ["", "", ""]}
Incluye exactamente 3 fortalezas, 3 debilidades y entre 3 y 4 sugerencias, todas en español.`

var stageInstructions = map[Stage]string{
	StageIntro:          "Haz una pregunta de introducción sobre la trayectoria y motivación del candidato.",
	StageTechnical:      "Haz una pregunta técnica o de conocimientos específicos del puesto.",
	StageTeamwork:       "Haz una pregunta sobre trabajo en equipo, comunicación o liderazgo.",
	StageProblemSolving: "Haz una pregunta situacional de resolución de problemas.",
}

func questionPrompt(stage Stage, role string, category Category, asked []string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Puesto: %s\n", roleOrDefault(role))
	if category != "" && category != CategoryGeneral {
		fmt.Fprintf(&b, "Categoría: %s\n", category)
	}
	b.WriteString(stageInstructions[stage])
	if len(asked) > 0 {
		b.WriteString("\nNo repitas ninguna de estas preguntas ya realizadas:\n")
		for _, q := range asked {
			if strings.TrimSpace(q) == "" {
				continue
			}
			fmt.Fprintf(&b, "- %s\n", q)
		}
	}
	return b.String()
}
