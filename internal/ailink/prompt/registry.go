package prompt

import (
	"fmt"
	"slices"
	"strings"
)

// Registry provides access to prompt definitions.
type Registry interface {
	Get(slug string) (*Prompt, error)
	List() []*Prompt
}

// InMemoryRegistry is a Registry over a fixed prompt set.
type InMemoryRegistry struct {
	bySlug map[string]*Prompt
	slugs  []string
}

// NewRegistry indexes prompts by slug. Nil entries are skipped; blank or
// repeated slugs are rejected.
func NewRegistry(prompts []*Prompt) (*InMemoryRegistry, error) {
	reg := &InMemoryRegistry{bySlug: make(map[string]*Prompt, len(prompts))}
	for _, p := range prompts {
		if p == nil {
			continue
		}
		slug := strings.TrimSpace(p.Config.Slug)
		switch {
		case slug == "":
			return nil, fmt.Errorf("prompt from %s has no slug", sourceName(p))
		case reg.bySlug[slug] != nil:
			return nil, fmt.Errorf("duplicate prompt slug %q (%s)", slug, sourceName(p))
		}
		reg.bySlug[slug] = p
		reg.slugs = append(reg.slugs, slug)
	}
	slices.Sort(reg.slugs)
	return reg, nil
}

// Get returns the prompt for slug.
func (r *InMemoryRegistry) Get(slug string) (*Prompt, error) {
	if r == nil {
		return nil, fmt.Errorf("prompt registry not configured")
	}
	slug = strings.TrimSpace(slug)
	if slug == "" {
		return nil, fmt.Errorf("prompt slug is required")
	}
	p, ok := r.bySlug[slug]
	if !ok {
		return nil, fmt.Errorf("prompt %q not found", slug)
	}
	return p, nil
}

// List returns prompts sorted by slug.
func (r *InMemoryRegistry) List() []*Prompt {
	if r == nil {
		return nil
	}
	out := make([]*Prompt, 0, len(r.slugs))
	for _, slug := range r.slugs {
		out = append(out, r.bySlug[slug])
	}
	return out
}

// Require fails when any of slugs is missing from reg.
func Require(reg Registry, slugs ...string) error {
	var missing []string
	for _, slug := range slugs {
		if _, err := reg.Get(slug); err != nil {
			missing = append(missing, slug)
		}
	}
	if len(missing) > 0 {
		return fmt.Errorf("missing prompts: %s", strings.Join(missing, ", "))
	}
	return nil
}

func sourceName(p *Prompt) string {
	if p.Source == "" {
		return "unknown source"
	}
	return p.Source
}
