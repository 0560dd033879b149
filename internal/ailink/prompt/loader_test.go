package prompt

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	prompts, err := LoadDefaults()
	require.NoError(t, err)
	require.Len(t, prompts, 6)

	reg, err := NewRegistry(prompts)
	require.NoError(t, err)

	for _, slug := range []string{"clause-explanation", "clause-risk", "document-summary", "chat-clause", "chat-document", "chat-global"} {
		prompt, err := reg.Get(slug)
		require.NoError(t, err, slug)
		require.NotEmpty(t, prompt.Config.UserTemplate, slug)
	}

	explanation, err := reg.Get("clause-explanation")
	require.NoError(t, err)
	require.Equal(t, "explanation", explanation.Config.ResponseField)
	require.Equal(t, "analysis", explanation.Config.Pool)
}

func TestLoadUsesBodyAsUserTemplate(t *testing.T) {
	data := []byte("---\nslug: test\ninput:\n  required_variables: [name]\n---\nHello {{name}}\n")
	prompt, err := Load("test.md", data)
	require.NoError(t, err)
	require.Equal(t, "Hello {{name}}", prompt.Config.UserTemplate)
}

func TestLoadRejectsUndeclaredVariables(t *testing.T) {
	data := []byte("---\nslug: test\n---\nHello {{name}}\n")
	_, err := Load("test.md", data)
	require.Error(t, err)
	require.Contains(t, err.Error(), "undeclared variable")
}

func TestLoadRejectsMissingSlug(t *testing.T) {
	_, err := Load("test.md", []byte("---\nname: x\n---\nbody\n"))
	require.Error(t, err)
	require.Contains(t, err.Error(), "slug")

	_, err = Load("empty.md", []byte("  "))
	require.Error(t, err)
}

func TestLoadValidatesFrontmatterSchema(t *testing.T) {
	cases := []struct {
		name string
		data string
		want string
	}{
		{"slug casing", "---\nslug: Clause_Risk\n---\nbody\n", "/slug"},
		{"variable name", "---\nslug: test\ninput:\n  required_variables: [clause-text]\n---\nbody\n", "/input/required_variables/0"},
		{"duplicate variables", "---\nslug: test\ninput:\n  optional_variables: [a, a]\n---\nbody\n", "/input/optional_variables"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Load("test.md", []byte(tc.data))
			require.Error(t, err)
			require.Contains(t, err.Error(), "schema validation failed")
			require.Contains(t, err.Error(), tc.want)
		})
	}
}

func TestRenderAppliesVariables(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)

	prompt, err := reg.Get("chat-clause")
	require.NoError(t, err)

	rendered, err := prompt.Render(map[string]string{"message": "Can I leave early?", "clause": "The term shall be one year."})
	require.NoError(t, err)
	require.Contains(t, rendered.User, "Can I leave early?")
	require.Contains(t, rendered.User, "The term shall be one year.")
	require.NotContains(t, rendered.User, "{{")
	require.Contains(t, rendered.System, "ClauseLens")
	require.False(t, rendered.JSON)

	_, err = prompt.Render(map[string]string{"clause": "x"})
	require.Error(t, err)
	require.Contains(t, err.Error(), "message")
}

func TestLoadRegistryOverridesBySlug(t *testing.T) {
	dir := t.TempDir()
	override := "---\nslug: document-summary\ninput:\n  required_variables: [text]\n---\nOne line only: {{text}}\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "summary.md"), []byte(override), 0o600))

	reg, err := LoadRegistry(dir)
	require.NoError(t, err)
	require.Len(t, reg.List(), 6)

	prompt, err := reg.Get("document-summary")
	require.NoError(t, err)
	require.Equal(t, "One line only: {{text}}", prompt.Config.UserTemplate)
}

func TestNewRegistryRejectsDuplicateSlugs(t *testing.T) {
	a, err := Load("a.md", []byte("---\nslug: same\n---\nfirst\n"))
	require.NoError(t, err)
	b, err := Load("b.md", []byte("---\nslug: same\n---\nsecond\n"))
	require.NoError(t, err)

	_, err = NewRegistry([]*Prompt{a, nil, b})
	require.Error(t, err)
	require.Contains(t, err.Error(), "b.md")
}

func TestRequireListsMissingSlugs(t *testing.T) {
	reg, err := DefaultRegistry()
	require.NoError(t, err)
	require.NoError(t, Require(reg, "clause-explanation", "clause-risk"))

	err = Require(reg, "clause-risk", "ocr-extract", "translate")
	require.EqualError(t, err, "missing prompts: ocr-extract, translate")
}

func TestLoadFromDirSkipsOtherFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "risk.md"), []byte("---\nslug: clause-risk\n---\nRisks of {{clause}}\n"), 0o600))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("not a prompt"), 0o600))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "drafts.md"), 0o755))

	prompts, err := LoadFromDir(dir)
	require.NoError(t, err)
	require.Len(t, prompts, 1)
	require.Equal(t, filepath.Join(dir, "risk.md"), prompts[0].Source)

	_, err = LoadFromDir(filepath.Join(dir, "missing"))
	require.Error(t, err)
}

func TestLoadDefaultsLabelsEmbeddedSource(t *testing.T) {
	prompts, err := LoadDefaults()
	require.NoError(t, err)
	for _, p := range prompts {
		require.True(t, strings.HasPrefix(p.Source, "embedded:"), p.Source)
	}
}
