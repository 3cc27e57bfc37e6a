package template

import (
	"fmt"
	"regexp"

	"groomly/internal/notify"
)

var _ notify.Renderer = (*Engine)(nil)

// markerRe matches {{name}} variable markers, tolerating inner whitespace.
var markerRe = regexp.MustCompile(`\{\{\s*([A-Za-z0-9_]+)\s*\}\}`)

// Engine renders and validates {{name}}-marker templates. Rendering is a
// pure function over (template, data): identical inputs always produce
// identical output, and it never fails.
type Engine struct{}

// NewEngine creates a new template engine.
func NewEngine() *Engine {
	return &Engine{}
}

// Render replaces every {{name}} marker with the corresponding value from
// data. A marker with no matching key renders as the literal [name], so a
// partial data map never aborts rendering.
func (e *Engine) Render(tmpl string, data map[string]string) string {
	return markerRe.ReplaceAllStringFunc(tmpl, func(marker string) string {
		name := markerRe.FindStringSubmatch(marker)[1]
		if value, ok := data[name]; ok {
			return value
		}
		return "[" + name + "]"
	})
}

// Validate checks that every variable marked required has a marker in the
// template text, reporting each missing one by name. It operates on the
// template's declared variable list, independent of any runtime data: it
// protects template authors, not senders.
func (e *Engine) Validate(tmpl string, vars []notify.TemplateVariable) notify.ValidationResult {
	present := make(map[string]bool)
	for _, m := range markerRe.FindAllStringSubmatch(tmpl, -1) {
		present[m[1]] = true
	}

	var errs []string
	for _, v := range vars {
		if v.Required && !present[v.Name] {
			errs = append(errs, fmt.Sprintf("missing required variable %q", v.Name))
		}
	}

	return notify.ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
