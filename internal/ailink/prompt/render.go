package prompt

import (
	"fmt"
	"regexp"
	"strings"
)

var placeholder = regexp.MustCompile(`\{\{\s*([a-z_]+)\s*\}\}`)

// Rendered is a prompt with its variables applied.
type Rendered struct {
	System string
	User   string
	// JSON reports whether the reply is expected to be a JSON object.
	JSON bool
}

// Render substitutes {{name}} placeholders in both templates. Every required
// variable must be present and non-blank; unknown placeholders render empty.
func (p *Prompt) Render(vars map[string]string) (Rendered, error) {
	if p == nil {
		return Rendered{}, fmt.Errorf("prompt not configured")
	}
	for _, name := range p.Config.Input.RequiredVariables {
		if strings.TrimSpace(vars[name]) == "" {
			return Rendered{}, fmt.Errorf("prompt %s: missing variable %q", p.Config.Slug, name)
		}
	}
	return Rendered{
		System: applyVars(p.Config.SystemTemplate, vars),
		User:   applyVars(p.Config.UserTemplate, vars),
		JSON:   p.Config.ResponseField != "",
	}, nil
}

func applyVars(template string, vars map[string]string) string {
	out := placeholder.ReplaceAllStringFunc(template, func(match string) string {
		name := placeholder.FindStringSubmatch(match)[1]
		return vars[name]
	})
	return strings.TrimSpace(out)
}

func templateVars(template string) []string {
	var names []string
	for _, m := range placeholder.FindAllStringSubmatch(template, -1) {
		names = append(names, m[1])
	}
	return names
}
