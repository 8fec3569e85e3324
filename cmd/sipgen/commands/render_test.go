package commands_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sipgen/cmd/sipgen/commands"
	"github.com/Sumatoshi-tech/sipgen/pkg/generator"
)

func TestRender(t *testing.T) {
	t.Parallel()

	pkg := goodPackage(t)

	tests := []struct {
		name   string
		header string
	}{
		{"source root relative", "KFoo/foo.h"},
		{"absolute", filepath.Join(pkg, "src", "KFoo", "foo.h")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			stdout, err := execute(context.Background(), commands.NewRenderCommand(), "render", "-q", "--rules", pkg, tt.header)
			require.NoError(t, err)

			assert.Contains(t, stdout, "// This file, KFoo/foo.sip, is part of PyKF5.")
			assert.Contains(t, stdout, "void shown();")
			assert.NotContains(t, stdout, "hidden")
		})
	}
}

func TestRenderTraceDiscards(t *testing.T) {
	t.Parallel()

	stdout, err := execute(context.Background(), commands.NewRenderCommand(),
		"render", "-q", "--rules", goodPackage(t), "--trace-discards", "KFoo/foo.h")
	require.NoError(t, err)

	assert.Contains(t, stdout, "Discarded")
}

func TestRenderOutsideRoot(t *testing.T) {
	t.Parallel()

	outside := filepath.Join(t.TempDir(), "elsewhere.h")

	_, err := execute(context.Background(), commands.NewRenderCommand(), "render", "-q", "--rules", goodPackage(t), outside)
	require.ErrorIs(t, err, generator.ErrOutsideRoot)
}
