package generator

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/sergi/go-diff/diffmatchpatch"
)

// output writes generated files below a directory, or in check mode
// compares them with what is there.
type output struct {
	dir   string
	check bool

	mu   sync.Mutex
	diff io.Writer
}

func newOutput(dir string, check bool, diff io.Writer) *output {
	if diff == nil {
		diff = io.Discard
	}

	return &output{dir: dir, check: check, diff: diff}
}

func (o *output) path(rel string) string {
	return filepath.Join(o.dir, filepath.FromSlash(rel))
}

func (o *output) mkdir(rel string) error {
	if err := os.MkdirAll(o.path(rel), 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}

	return nil
}

// write stores text as rel and reports whether the file changed. An
// unchanged file is not touched.
func (o *output) write(rel, text string) (bool, error) {
	existing, err := os.ReadFile(o.path(rel))
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return false, fmt.Errorf("read %s: %w", rel, err)
	}

	if err == nil && bytes.Equal(existing, []byte(text)) {
		return false, nil
	}

	if o.check {
		o.report(rel, string(existing), text)

		return true, nil
	}

	if err := os.MkdirAll(filepath.Dir(o.path(rel)), 0o755); err != nil {
		return false, fmt.Errorf("create output directory: %w", err)
	}

	if err := os.WriteFile(o.path(rel), []byte(text), 0o644); err != nil { //nolint:gosec // generated sources are world readable.
		return false, fmt.Errorf("write %s: %w", rel, err)
	}

	return true, nil
}

// report writes a line diff between the file on disk and the new text.
func (o *output) report(rel, old, text string) {
	o.mu.Lock()
	defer o.mu.Unlock()

	fmt.Fprint(o.diff, LineDiff("a/"+rel, "b/"+rel, old, text))
}

// LineDiff renders the differences between old and text line by line,
// in the layout of a unified diff without hunk headers.
func LineDiff(oldName, newName, old, text string) string {
	dmp := diffmatchpatch.New()
	a, b, lines := dmp.DiffLinesToChars(old, text)
	diffs := dmp.DiffCharsToLines(dmp.DiffMain(a, b, false), lines)

	var sb strings.Builder

	sb.WriteString("--- " + oldName + "\n+++ " + newName + "\n")

	for _, d := range diffs {
		prefix := " "

		switch d.Type {
		case diffmatchpatch.DiffDelete:
			prefix = "-"
		case diffmatchpatch.DiffInsert:
			prefix = "+"
		case diffmatchpatch.DiffEqual:
		}

		for _, line := range strings.SplitAfter(d.Text, "\n") {
			if line == "" {
				continue
			}

			sb.WriteString(prefix + line)

			if !strings.HasSuffix(line, "\n") {
				sb.WriteString("\n\\ No newline at end of file\n")
			}
		}
	}

	return sb.String()
}
