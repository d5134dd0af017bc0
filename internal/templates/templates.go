// Package templates renders analysis reports from embedded markdown
// templates.
//
// Templates are compiled once at construction. Callers depend on the
// Renderer interface; EmbedRenderer is the embedded-FS implementation.
package templates

import (
	"bytes"
	"embed"
	"fmt"
	"strings"
	"text/template"

	"github.com/HendryAvila/asrgot/internal/graph"
	"github.com/HendryAvila/asrgot/internal/report"
)

//go:embed *.md.tmpl
var files embed.FS

// Template names.
const (
	Report = "report.md.tmpl"
)

// Renderer renders a named template with data.
type Renderer interface {
	Render(name string, data any) (string, error)
}

// ReportData feeds the Report template.
type ReportData struct {
	SessionID   string
	Query       string
	Composition *report.Composition
	Audit       *report.Audit
	Confidence  graph.Vector
}

// EmbedRenderer renders the templates compiled into the binary.
type EmbedRenderer struct {
	tmpl *template.Template
}

// NewRenderer parses every embedded template.
func NewRenderer() (*EmbedRenderer, error) {
	tmpl, err := template.New("").Funcs(funcs).ParseFS(files, "*.md.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return &EmbedRenderer{tmpl: tmpl}, nil
}

// Render executes the named template.
func (r *EmbedRenderer) Render(name string, data any) (string, error) {
	if r.tmpl.Lookup(name) == nil {
		return "", fmt.Errorf("template %q not found", name)
	}
	var buf bytes.Buffer
	if err := r.tmpl.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("rendering %s: %w", name, err)
	}
	return buf.String(), nil
}

var dimensionNames = [len(graph.VectorDimensions)]string{
	"Empirical support", "Theoretical basis", "Methodological rigor", "Consensus alignment",
}

var funcs = template.FuncMap{
	"dimensions": func(v graph.Vector) []string {
		out := make([]string, len(v))
		for i, f := range v {
			out[i] = fmt.Sprintf("%s: %.2f", dimensionNames[i], f)
		}
		return out
	},
	"statusIcon": func(s report.Status) string {
		switch s {
		case report.StatusPass:
			return "✅"
		case report.StatusWarning:
			return "⚠️"
		default:
			return "❌"
		}
	},
	"humanize": func(s string) string {
		return strings.ReplaceAll(s, "_", " ")
	},
}
