package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"time"

	"github.com/pmezard/go-difflib/difflib"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/gubarz/dungeon/internal/config"
	"github.com/gubarz/dungeon/internal/document"
	"github.com/gubarz/dungeon/internal/parser"
)

// resolvePath picks the canvas file from the argument or the config. A path
// that doesn't exist is retried with ".md" appended.
func resolvePath(fs afero.Fs, args []string) (string, error) {
	path := config.GetPath()
	if len(args) > 0 {
		path = args[0]
	}
	if path == "" {
		return "", fmt.Errorf("no canvas file given")
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("error resolving path: %w", err)
	}

	if info, err := fs.Stat(abs); err == nil {
		if info.IsDir() {
			return "", fmt.Errorf("%s is a directory", abs)
		}
		return abs, nil
	}
	if !strings.HasSuffix(abs, ".md") {
		if _, err := fs.Stat(abs + ".md"); err == nil {
			return abs + ".md", nil
		}
	}
	return "", fmt.Errorf("canvas file not found: %s", abs)
}

type checkResult struct {
	Elements int
	Diff     string // unified diff from the file to its canonical form
}

// checkFile compares the file with what saving it would produce, and
// rewrites it when fix is set and they differ
func checkFile(fs afero.Fs, path string, fix bool) (checkResult, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return checkResult{}, fmt.Errorf("read %s: %w", path, err)
	}
	original := string(data)

	doc, err := parser.Parse(original, time.Now())
	if err != nil {
		return checkResult{}, err
	}
	canonical := parser.RenderDocument(doc)

	result := checkResult{Elements: len(doc.Elements)}
	if canonical == original {
		return result, nil
	}

	result.Diff, err = difflib.GetUnifiedDiffString(difflib.UnifiedDiff{
		A:        difflib.SplitLines(original),
		B:        difflib.SplitLines(canonical),
		FromFile: path,
		ToFile:   path + " (canonical)",
		Context:  1,
	})
	if err != nil {
		return result, err
	}

	if fix {
		info, err := fs.Stat(path)
		if err != nil {
			return result, err
		}
		if err := afero.WriteFile(fs, path, []byte(canonical), info.Mode().Perm()); err != nil {
			return result, fmt.Errorf("write %s: %w", path, err)
		}
	}
	return result, nil
}

// dump writes the document in the same shape the HTTP API serves it
func dump(w io.Writer, doc *document.Document, format string) error {
	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return err
	}

	switch strings.ToLower(format) {
	case "json":
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml", "yml":
		// go through JSON so elements keep their tagged shape
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		var tree any
		if err := dec.Decode(&tree); err != nil {
			return err
		}
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(numbers(tree)); err != nil {
			return err
		}
		return enc.Close()
	}
	return fmt.Errorf("unsupported format: %s (supported: json, yaml)", format)
}

// numbers turns decoded JSON numbers back into ints or floats so YAML
// prints them plainly
func numbers(v any) any {
	switch v := v.(type) {
	case map[string]any:
		for k, e := range v {
			v[k] = numbers(e)
		}
	case []any:
		for i, e := range v {
			v[i] = numbers(e)
		}
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
		f, _ := v.Float64()
		return f
	}
	return v
}
