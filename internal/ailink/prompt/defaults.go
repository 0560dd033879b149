package prompt

import "embed"

//go:embed prompts/*.md
var embeddedPrompts embed.FS

// LoadDefaults parses the prompts compiled into the binary.
func LoadDefaults() ([]*Prompt, error) {
	return loadFS(embeddedPrompts, "prompts", func(name string) string {
		return "embedded:" + name
	})
}

// DefaultRegistry builds a registry from embedded prompts.
func DefaultRegistry() (Registry, error) {
	prompts, err := LoadDefaults()
	if err != nil {
		return nil, err
	}
	return NewRegistry(prompts)
}

// LoadRegistry builds a registry from the embedded prompts with any prompt in
// dir replacing the embedded prompt of the same slug. An empty dir yields the
// defaults.
func LoadRegistry(dir string) (Registry, error) {
	prompts, err := LoadDefaults()
	if err != nil {
		return nil, err
	}
	if dir == "" {
		return NewRegistry(prompts)
	}

	overrides, err := LoadFromDir(dir)
	if err != nil {
		return nil, err
	}
	bySlug := make(map[string]int, len(prompts))
	for i, p := range prompts {
		bySlug[p.Config.Slug] = i
	}
	for _, p := range overrides {
		if i, ok := bySlug[p.Config.Slug]; ok {
			prompts[i] = p
			continue
		}
		bySlug[p.Config.Slug] = len(prompts)
		prompts = append(prompts, p)
	}
	return NewRegistry(prompts)
}
