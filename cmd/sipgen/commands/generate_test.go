package commands_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sipgen/cmd/sipgen/commands"
	"github.com/Sumatoshi-tech/sipgen/pkg/config"
	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
)

func TestGenerateWritesModule(t *testing.T) {
	t.Parallel()

	pkg := goodPackage(t)
	out := t.TempDir()

	stdout, err := execute(context.Background(), commands.NewGenerateCommand(), "generate", pkg, "-o", out, "--no-cache")
	require.NoError(t, err)

	foo := readFile(t, out, "KFoo/foo.sip")
	assert.Contains(t, foo, "void shown();")
	assert.NotContains(t, foo, "hidden")

	assert.FileExists(t, filepath.Join(out, "KFoo", "KFoomod.sip"))
	assert.Contains(t, stdout, "headers in 1 directories, 0 failed")
	assert.NotContains(t, stdout, "cache:")
}

func TestGenerateRulesFlag(t *testing.T) {
	t.Parallel()

	pkg := goodPackage(t)
	out := t.TempDir()

	_, err := execute(context.Background(), commands.NewGenerateCommand(),
		"generate", "-q", "--rules", pkg, "-o", out, "-j", "2", "--select", "KFoo/foo\\.h")
	require.NoError(t, err)

	assert.FileExists(t, filepath.Join(out, "KFoo", "foo.sip"))
	assert.NoFileExists(t, filepath.Join(out, "KFoo", "empty.sip"))
}

func TestGenerateCheck(t *testing.T) {
	t.Parallel()

	pkg := goodPackage(t)
	out := t.TempDir()
	ctx := context.Background()

	_, err := execute(ctx, commands.NewGenerateCommand(), "generate", pkg, "-o", out)
	require.NoError(t, err)

	stdout, err := execute(ctx, commands.NewGenerateCommand(), "generate", pkg, "-o", out, "--check")
	require.NoError(t, err)
	assert.Contains(t, stdout, "0 files out of date")

	header := filepath.Join(pkg, "src", "KFoo", "foo.h")
	require.NoError(t, os.WriteFile(header, []byte("class Foo {\npublic:\n    void shown();\n    void added();\n};\n"), 0o600))

	stdout, err = execute(ctx, commands.NewGenerateCommand(), "generate", pkg, "-o", out, "--check")
	require.ErrorIs(t, err, commands.ErrOutOfDate)
	assert.Contains(t, stdout, "void added();")
	assert.Contains(t, stdout, "1 files out of date")
	assert.NotContains(t, readFile(t, out, "KFoo/foo.sip"), "added")
}

func TestGenerateDumpUsage(t *testing.T) {
	t.Parallel()

	pkg := goodPackage(t)
	out := t.TempDir()
	chart := filepath.Join(t.TempDir(), "usage.html")

	stdout, err := execute(context.Background(), commands.NewGenerateCommand(),
		"generate", pkg, "-o", out, "--dump-rule-usage", "--report", chart)
	require.NoError(t, err)

	assert.Contains(t, stdout, "[0,function_discard]")
	assert.NotContains(t, stdout, "unused:")

	html := readFile(t, filepath.Dir(chart), "usage.html")
	assert.Contains(t, html, "PyKF5 rule usage")
}

func TestGenerateInvalidJobs(t *testing.T) {
	t.Parallel()

	_, err := execute(context.Background(), commands.NewGenerateCommand(),
		"generate", goodPackage(t), "-o", t.TempDir(), "-j", "0")
	require.ErrorIs(t, err, config.ErrInvalidJobs)
}

func TestGenerateBrokenRules(t *testing.T) {
	t.Parallel()

	pkg := writePackage(t, map[string]string{
		"sipgen.yaml":     "package: PyKF5\nsource_root: src\nmodules: [\"rules/*.yaml\"]\nbuiltin: false\n",
		"rules/kfoo.yaml": "function_rules:\n  - [\".*\", \".*\", \".*\", \".*\", \".*\", no_such_action]\n",
	})

	_, err := execute(context.Background(), commands.NewGenerateCommand(), "generate", "-q", pkg, "-o", t.TempDir())
	require.ErrorIs(t, err, rules.ErrUnknownAction)
}
