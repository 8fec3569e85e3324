package commands

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/Sumatoshi-tech/sipgen/pkg/rulehelpers"
	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
)

// NewRulesCommand creates the rules command group.
func NewRulesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect rules packages",
	}

	cmd.AddCommand(newRulesCheckCommand())

	return cmd
}

func newRulesCheckCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "check [rules-package]",
		Short: "Validate a rules package",
		Long: `Validate the manifest and every rule module of a rules package: schemas,
regular expressions and action names. Every problem is listed, not only the
first one.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, args)
			if err != nil {
				return err
			}

			rs, problems := rules.Check(cfg.Rules.Package, rulehelpers.Default())

			out := cmd.OutOrStdout()

			if len(problems) > 0 {
				bad := color.New(color.FgRed)
				for _, p := range problems {
					bad.Fprintf(out, "%v\n", p)
				}

				return fmt.Errorf("%w: %d problems", ErrInvalidRules, len(problems))
			}

			count := 0
			for _, m := range rs.AllModules() {
				for _, stage := range rules.MatchStages() {
					count += len(m.Db.Rules(stage))
				}
			}

			color.New(color.FgGreen).Fprintf(out, "%s: %d modules, %d rules OK\n",
				rs.Package, len(rs.AllModules()), count)

			return nil
		},
	}
}
