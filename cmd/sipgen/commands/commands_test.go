package commands_test

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sipgen/cmd/sipgen/commands"
)

func init() {
	color.NoColor = true
}

func writePackage(t *testing.T, files map[string]string) string {
	t.Helper()

	dir := t.TempDir()

	for name, content := range files {
		p := filepath.Join(dir, filepath.FromSlash(name))
		require.NoError(t, os.MkdirAll(filepath.Dir(p), 0o755))
		require.NoError(t, os.WriteFile(p, []byte(content), 0o600))
	}

	return dir
}

func goodPackage(t *testing.T) string {
	t.Helper()

	return writePackage(t, map[string]string{
		"sipgen.yaml":      "package: PyKF5\nsource_root: src\nmodules: [\"rules/*.yaml\"]\nbuiltin: false\n",
		"rules/kfoo.yaml":  "headers: \"KFoo/.*\"\nfunction_rules:\n  - [\"Foo\", \"hidden\", \".*\", \".*\", \".*\", function_discard]\n",
		"src/KFoo/foo.h":   "class Foo {\npublic:\n    void shown();\n    void hidden();\n};\n",
		"src/KFoo/empty.h": "#define NOTHING\n",
	})
}

// execute runs cmd below a root carrying the global flags and returns what
// it wrote to stdout.
func execute(ctx context.Context, cmd *cobra.Command, args ...string) (string, error) {
	root := &cobra.Command{Use: "sipgen", SilenceUsage: true, SilenceErrors: true}
	commands.AddGlobalFlags(root)
	root.AddCommand(cmd)

	var out bytes.Buffer

	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)

	return out.String(), err
}

func readFile(t *testing.T, dir, rel string) string {
	t.Helper()

	data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
	require.NoError(t, err)

	return string(data)
}

func TestCommandsExist(t *testing.T) {
	t.Parallel()

	tests := []struct {
		cmd  *cobra.Command
		use  string
		flag string
	}{
		{commands.NewGenerateCommand(), "generate [rules-package]", "check"},
		{commands.NewRenderCommand(), "render <header>", "trace-discards"},
		{commands.NewWatchCommand(), "watch [rules-package]", "debounce"},
		{commands.NewMCPCommand(), "mcp", "debug"},
	}

	for _, tt := range tests {
		t.Run(tt.use, func(t *testing.T) {
			t.Parallel()

			assert.Equal(t, tt.use, tt.cmd.Use)
			assert.NotEmpty(t, tt.cmd.Short)
			assert.NotEmpty(t, tt.cmd.Long)
			assert.NotNil(t, tt.cmd.Flags().Lookup(tt.flag))
		})
	}
}

func TestMissingRulesPackage(t *testing.T) {
	t.Parallel()

	for _, args := range [][]string{
		{"generate", "-q"},
		{"render", "-q", "foo.h"},
	} {
		var cmd *cobra.Command
		if args[0] == "generate" {
			cmd = commands.NewGenerateCommand()
		} else {
			cmd = commands.NewRenderCommand()
		}

		_, err := execute(context.Background(), cmd, args...)
		require.Error(t, err, args[0])
		assert.Contains(t, err.Error(), "rules package is not set")
	}
}
