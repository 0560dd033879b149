package cmd

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"
)

// maxInputBytes caps a single document read from disk or stdin.
const maxInputBytes = 10 << 20

var unsupportedInputExt = map[string]bool{
	".png": true, ".jpg": true, ".jpeg": true, ".gif": true, ".webp": true,
	".pdf": true, ".docx": true,
}

// inputDocument is one text document read for the CLI.
type inputDocument struct {
	Name string
	Text string
}

// readInput reads path, or stdin when path is "" or "-".
func readInput(path string, stdin io.Reader) (inputDocument, error) {
	path = strings.TrimSpace(path)
	if path == "" || path == "-" {
		data, err := io.ReadAll(io.LimitReader(stdin, maxInputBytes+1))
		if err != nil {
			return inputDocument{}, fmt.Errorf("read stdin: %w", err)
		}
		return checkInput("stdin", data)
	}

	if unsupportedInputExt[strings.ToLower(filepath.Ext(path))] {
		return inputDocument{}, fmt.Errorf("%s: only plain text is supported; extract the text first", path)
	}
	f, err := os.Open(path)
	if err != nil {
		return inputDocument{}, err
	}
	defer f.Close() //nolint:errcheck

	data, err := io.ReadAll(io.LimitReader(f, maxInputBytes+1))
	if err != nil {
		return inputDocument{}, fmt.Errorf("read %s: %w", path, err)
	}
	return checkInput(filepath.Base(path), data)
}

func checkInput(name string, data []byte) (inputDocument, error) {
	if len(data) > maxInputBytes {
		return inputDocument{}, fmt.Errorf("%s: larger than %d bytes", name, maxInputBytes)
	}
	if !utf8.Valid(data) {
		return inputDocument{}, fmt.Errorf("%s: not UTF-8 text", name)
	}
	return inputDocument{Name: name, Text: string(data)}, nil
}
