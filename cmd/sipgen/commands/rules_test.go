package commands_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/sipgen/cmd/sipgen/commands"
)

func TestRulesCheck(t *testing.T) {
	t.Parallel()

	stdout, err := execute(context.Background(), commands.NewRulesCommand(), "rules", "check", "-q", goodPackage(t))
	require.NoError(t, err)

	assert.Equal(t, "PyKF5: 1 modules, 1 rules OK\n", stdout)
}

func TestRulesCheckListsEveryProblem(t *testing.T) {
	t.Parallel()

	pkg := writePackage(t, map[string]string{
		"sipgen.yaml":  "package: PyKF5\nsource_root: src\nmodules: [\"rules/*.yaml\"]\nbuiltin: false\n",
		"rules/a.yaml": "function_rules:\n  - [\".*\", \".*\", \".*\", \".*\", \".*\", function_dscard]\n",
		"rules/b.yaml": "variable_rules:\n  - [\".*\", \"(\", \".*\", variable_discard]\n",
	})

	stdout, err := execute(context.Background(), commands.NewRulesCommand(), "rules", "check", "-q", pkg)
	require.ErrorIs(t, err, commands.ErrInvalidRules)

	assert.Contains(t, stdout, `did you mean "function_discard"?`)
	assert.Contains(t, stdout, "b.yaml")
	assert.Contains(t, err.Error(), "2 problems")
}
