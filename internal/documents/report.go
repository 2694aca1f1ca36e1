package documents

import (
	"bytes"
	"html/template"
	"strings"
	"time"

	"cvbot-backend/internal/cvanalyzer"
)

var reportTemplate = template.Must(template.New("report").Funcs(template.FuncMap{
	"lines": splitLines,
	"join":  func(items []string) string { return strings.Join(items, ", ") },
}).Parse(`<!DOCTYPE html>
<html lang="es">
<head>
<meta charset="utf-8">
<meta name="viewport" content="width=device-width, initial-scale=1">
<title>Análisis de CV{{if .JobPosition}} · {{.JobPosition}}{{end}}</title>
<style>
body{font-family:system-ui,sans-serif;max-width:760px;margin:2rem auto;padding:0 1rem;color:#1f2933}
h1{font-size:1.6rem}h2{font-size:1.15rem;margin-top:2rem;border-bottom:1px solid #e4e7eb}
.score{font-size:2.5rem;font-weight:700}
.muted{color:#7b8794}
li{margin:.3rem 0}
</style>
</head>
<body>
<h1>Análisis de tu CV</h1>
{{if .JobPosition}}<p class="muted">Puesto objetivo: {{.JobPosition}}</p>{{end}}
<p class="score">{{.Result.Score}}/10</p>
<p>{{.Result.Summary}}</p>

<h2>Datos básicos</h2>
<ul>
{{with .Result.BasicInfo}}
{{if .Name}}<li>Nombre: {{.Name}}</li>{{end}}
{{if .Email}}<li>Email: {{.Email}}</li>{{end}}
{{if .Phone}}<li>Teléfono: {{.Phone}}</li>{{end}}
{{if .Location}}<li>Ubicación: {{.Location}}</li>{{end}}
<li>Completitud: {{.Completeness}}%</li>
{{end}}
</ul>
{{range lines .Result.BasicInfo.Suggestions}}<p>• {{.}}</p>{{end}}

<h2>Experiencia</h2>
{{with .Result.Experience}}
{{if .Years}}<p>Años de experiencia: {{.Years}}</p>{{end}}
<p>Calidad de la sección: {{.Quality}}/10</p>
{{if .Roles}}<p>Roles: {{join .Roles}}</p>{{end}}
{{if .Companies}}<p>Empresas: {{join .Companies}}</p>{{end}}
{{range lines .Suggestions}}<p>• {{.}}</p>{{end}}
{{end}}

<h2>Habilidades</h2>
{{if .Result.Skills}}<p>{{join .Result.Skills}}</p>{{else}}<p class="muted">No detectamos habilidades.</p>{{end}}
{{if .Result.MissingSkills}}<p>Habilidades a considerar: {{join .Result.MissingSkills}}</p>{{end}}
{{range lines .Result.SkillsSuggestions}}<p>• {{.}}</p>{{end}}

{{if .Result.Recommendations}}
<h2>Recomendaciones</h2>
<ol>
{{range .Result.Recommendations}}<li>{{.}}</li>
{{end}}
</ol>
{{end}}
<p class="muted">Generado el {{.GeneratedAt.Format "02/01/2006 15:04"}} UTC · <a href="{{.SourceURL}}">documento original</a></p>
</body>
</html>
`))

type reportData struct {
	Result      *cvanalyzer.Result
	JobPosition string
	SourceURL   string
	GeneratedAt time.Time
}

// RenderReport renders the analysis as a standalone HTML page.
func RenderReport(result *cvanalyzer.Result, jobPosition, sourceURL string, at time.Time) ([]byte, error) {
	var buf bytes.Buffer
	err := reportTemplate.Execute(&buf, reportData{
		Result:      result,
		JobPosition: jobPosition,
		SourceURL:   sourceURL,
		GeneratedAt: at.UTC(),
	})
	if err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
