package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/clauselens/clauselens/internal/observability"
	"github.com/clauselens/clauselens/internal/output"
)

// outputTarget says where a command writes what it renders.
type outputTarget struct {
	Format output.Format
	// Path is a single output file; empty or "-" means stdout.
	Path string
	// Dir receives one file per input. Only commands reading several inputs
	// register --out-dir.
	Dir string
}

// addOutputFlags registers --output-format and --out, plus --out-dir when
// perInput is set.
func addOutputFlags(cmd *cobra.Command, perInput bool) {
	cmd.Flags().String("output-format", string(output.FormatTable), "output format: table, json or markdown")
	cmd.Flags().String("out", "", "write output to this file instead of stdout")
	if perInput {
		cmd.Flags().String("out-dir", "", "write one output file per input into this directory")
	}
}

func outputTargetFrom(cmd *cobra.Command) (outputTarget, error) {
	var t outputTarget
	format, err := output.ParseFormat(flagString(cmd, "output-format"))
	if err != nil {
		return t, err
	}
	t.Format = format
	t.Path = flagString(cmd, "out")
	t.Dir = flagString(cmd, "out-dir")
	if t.Path != "" && t.Dir != "" {
		return t, fmt.Errorf("--out and --out-dir are mutually exclusive")
	}
	return t, nil
}

// flagString reads a string flag, treating unregistered flags as empty.
func flagString(cmd *cobra.Command, name string) string {
	if cmd.Flags().Lookup(name) == nil {
		return ""
	}
	v, _ := cmd.Flags().GetString(name)
	return strings.TrimSpace(v)
}

// write sends text to the target file or the command's stdout.
func (t outputTarget) write(cmd *cobra.Command, text string) error {
	if t.Path == "" || t.Path == "-" {
		return writeLine(cmd.OutOrStdout(), text)
	}
	return writeFile(t.Path, text)
}

// writeFor stores the output for one input under Dir.
func (t outputTarget) writeFor(inputName, text string) error {
	if err := os.MkdirAll(t.Dir, 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(t.Dir, outputFileName(inputName, t.Format))
	if err := writeFile(path, text); err != nil {
		return err
	}
	observability.CLILogger.Info("Wrote "+path, zap.String("input", inputName))
	return nil
}

var nonFilename = regexp.MustCompile(`[^a-z0-9._-]+`)

// outputFileName derives a safe file name from an input name, e.g.
// "Lease Deed.txt" becomes "lease-deed.json".
func outputFileName(inputName string, format output.Format) string {
	base := strings.TrimSuffix(filepath.Base(inputName), filepath.Ext(inputName))
	clean := nonFilename.ReplaceAllString(strings.ToLower(strings.TrimSpace(base)), "-")
	clean = strings.Trim(clean, "-.")
	if clean == "" {
		clean = "output"
	}

	ext := "txt"
	switch format {
	case output.FormatJSON:
		ext = "json"
	case output.FormatMarkdown:
		ext = "md"
	}
	return clean + "." + ext
}

func writeFile(path, text string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	f, err := os.Create(path) // #nosec G304 -- output path is user-provided
	if err != nil {
		return err
	}
	if err := writeLine(f, text); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func writeLine(w io.Writer, text string) error {
	_, err := fmt.Fprintln(w, text)
	return err
}
