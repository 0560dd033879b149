package prompt

import (
	"bufio"
	"bytes"
	_ "embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fulmenhq/gofulmen/schema"
	"gopkg.in/yaml.v3"
)

//go:embed schema/prompt.schema.json
var promptSchema []byte

var (
	promptValidatorOnce sync.Once
	promptValidator     *schema.Validator
	promptValidatorErr  error
)

func frontmatterValidator() (*schema.Validator, error) {
	promptValidatorOnce.Do(func() {
		promptValidator, promptValidatorErr = schema.NewValidator(promptSchema)
	})
	return promptValidator, promptValidatorErr
}

// Load parses and validates a prompt definition. The Markdown body after the
// frontmatter becomes the user template unless user_template is set.
func Load(source string, data []byte) (*Prompt, error) {
	config, body, err := parseYAMLWithFrontmatter(data)
	if err != nil {
		return nil, fmt.Errorf("parse prompt %s: %w", source, err)
	}

	if strings.TrimSpace(config.UserTemplate) == "" {
		config.UserTemplate = strings.TrimSpace(body)
	}

	if strings.TrimSpace(config.UserTemplate) == "" {
		return nil, fmt.Errorf("prompt %s missing user_template", source)
	}

	if err := validateConfig(config); err != nil {
		return nil, fmt.Errorf("validate prompt %s: %w", source, err)
	}

	return &Prompt{Config: config, Source: source}, nil
}

// LoadFromDir reads every .md prompt file in dir. Subdirectories are not
// scanned.
func LoadFromDir(dir string) ([]*Prompt, error) {
	if _, err := os.Stat(dir); err != nil {
		return nil, fmt.Errorf("scan prompts: %w", err)
	}
	return loadFS(os.DirFS(dir), ".", func(name string) string {
		return filepath.Join(dir, name)
	})
}

// loadFS parses the .md files directly under root, in name order. source
// maps a file name to the label used in errors and Prompt.Source.
func loadFS(fsys fs.FS, root string, source func(name string) string) ([]*Prompt, error) {
	entries, err := fs.ReadDir(fsys, root)
	if err != nil {
		return nil, fmt.Errorf("scan prompts: %w", err)
	}
	results := make([]*Prompt, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || path.Ext(entry.Name()) != ".md" {
			continue
		}
		data, err := fs.ReadFile(fsys, path.Join(root, entry.Name()))
		if err != nil {
			return nil, fmt.Errorf("read prompt %s: %w", source(entry.Name()), err)
		}
		p, err := Load(source(entry.Name()), data)
		if err != nil {
			return nil, err
		}
		results = append(results, p)
	}
	return results, nil
}

func parseYAMLWithFrontmatter(data []byte) (Config, string, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return Config{}, "", fmt.Errorf("empty prompt")
	}

	lines := bufio.NewScanner(bytes.NewReader(trimmed))
	lines.Split(bufio.ScanLines)

	var (
		frontmatter []string
		body        []string
		inFront     bool
		headerSeen  bool
	)

	for lines.Scan() {
		line := lines.Text()
		switch {
		case !headerSeen && strings.TrimSpace(line) == "---":
			headerSeen = true
			inFront = true
		case headerSeen && inFront && strings.TrimSpace(line) == "---":
			inFront = false
		default:
			if inFront {
				frontmatter = append(frontmatter, line)
			} else {
				body = append(body, line)
			}
		}
	}
	if err := lines.Err(); err != nil {
		return Config{}, "", err
	}

	var cfg Config
	if headerSeen {
		if err := yaml.Unmarshal([]byte(strings.Join(frontmatter, "\n")), &cfg); err != nil {
			return Config{}, "", fmt.Errorf("invalid frontmatter: %w", err)
		}
	} else {
		if err := yaml.Unmarshal(trimmed, &cfg); err != nil {
			return Config{}, "", fmt.Errorf("invalid yaml: %w", err)
		}
	}

	return cfg, strings.Join(body, "\n"), nil
}

func validateConfig(cfg Config) error {
	payload, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}

	validator, err := frontmatterValidator()
	if err != nil {
		return fmt.Errorf("load prompt schema: %w", err)
	}
	diagnostics, err := validator.ValidateJSON(payload)
	if err != nil {
		return err
	}
	if len(diagnostics) > 0 {
		// The last diagnostic is the most specific cause.
		d := diagnostics[len(diagnostics)-1]
		return fmt.Errorf("schema validation failed at %q: %s", d.Pointer, d.Message)
	}

	declared := make(map[string]bool)
	for _, name := range cfg.Input.RequiredVariables {
		declared[name] = true
	}
	for _, name := range cfg.Input.OptionalVariables {
		declared[name] = true
	}
	for _, tmpl := range []string{cfg.SystemTemplate, cfg.UserTemplate} {
		for _, name := range templateVars(tmpl) {
			if !declared[name] {
				return fmt.Errorf("template uses undeclared variable %q", name)
			}
		}
	}
	return nil
}
