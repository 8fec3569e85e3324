package commands_test

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sipgen/cmd/sipgen/commands"
)

func TestWatchRegenerates(t *testing.T) {
	t.Parallel()

	pkg := goodPackage(t)
	out := t.TempDir()
	sip := filepath.Join(out, "KFoo", "foo.sip")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	type result struct {
		stdout string
		err    error
	}

	done := make(chan result, 1)

	go func() {
		stdout, err := execute(ctx, commands.NewWatchCommand(), "watch", pkg, "-o", out, "--debounce", "50ms")
		done <- result{stdout, err}
	}()

	contains := func(s string) func() bool {
		return func() bool {
			data, err := os.ReadFile(sip)

			return err == nil && strings.Contains(string(data), s)
		}
	}

	require.Eventually(t, contains("void shown();"), 10*time.Second, 20*time.Millisecond)

	header := filepath.Join(pkg, "src", "KFoo", "foo.h")
	require.NoError(t, os.WriteFile(header, []byte("class Foo {\npublic:\n    void shown();\n    void added();\n};\n"), 0o600))

	require.Eventually(t, contains("void added();"), 10*time.Second, 20*time.Millisecond)

	rulesFile := filepath.Join(pkg, "rules", "kfoo.yaml")
	require.NoError(t, os.WriteFile(rulesFile,
		[]byte("headers: \"KFoo/.*\"\nfunction_rules:\n  - [\"Foo\", \"added\", \".*\", \".*\", \".*\", function_discard]\n"), 0o600))

	require.Eventually(t, func() bool {
		return contains("void shown();")() && !contains("added")()
	}, 10*time.Second, 20*time.Millisecond)

	cancel()

	select {
	case r := <-done:
		require.NoError(t, r.err)
		assert.Contains(t, r.stdout, "headers in 1 directories")
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not stop")
	}
}
