package export

import (
	"bytes"
	"embed"
	"html/template"
	"strings"
	"time"
)

//go:embed templates/*.html
var templateFS embed.FS

var synopsisTemplate *template.Template

func init() {
	funcMap := template.FuncMap{
		"lower": strings.ToLower,
		"formatDate": func(t time.Time, layout string) string {
			return t.Format(layout)
		},
	}

	templateContent, err := templateFS.ReadFile("templates/document.html")
	if err != nil {
		synopsisTemplate = template.Must(template.New("synopsis").Funcs(funcMap).Parse(fallbackTemplate))
		return
	}

	synopsisTemplate = template.Must(template.New("synopsis").Funcs(funcMap).Parse(string(templateContent)))
}

// TemplateData holds data for synopsis template rendering
type TemplateData struct {
	Title       string
	Description string
	Brand       string
	GeneratedAt time.Time
	Chapters    []TemplateChapter
}

// TemplateChapter holds one chapter for the template
type TemplateChapter struct {
	Title    string
	Summary  string
	Sections []TemplateSection
}

// TemplateSection holds one section with its paragraphs
type TemplateSection struct {
	Title      string
	Paragraphs []string
}

// RenderSynopsisHTML renders the synopsis template with provided data
func RenderSynopsisHTML(data TemplateData) (string, error) {
	var buf bytes.Buffer
	if err := synopsisTemplate.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

// fallbackTemplate is used if the embedded template fails to load
const fallbackTemplate = `<!DOCTYPE html>
<html>
<head>
  <meta charset="UTF-8">
  <title>{{.Title}}</title>
</head>
<body>
  <h1>{{.Title}}</h1>
  {{range .Chapters}}<h2>{{.Title}}</h2>
  {{range .Sections}}<h3>{{.Title}}</h3>
  {{range .Paragraphs}}<p>{{.}}</p>{{end}}
  {{end}}{{end}}
</body>
</html>`
