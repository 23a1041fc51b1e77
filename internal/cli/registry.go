package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mera-platform/mera/internal/curriculum"
)

// RegistryReport is the output of registry validate.
type RegistryReport struct {
	Path    string             `json:"path"`
	Valid   bool               `json:"valid"`
	Summary curriculum.Summary `json:"summary"`
}

// NewRegistryCommand creates the registry command group.
func NewRegistryCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "registry",
		Short: "Work with curriculum registries",
	}

	validate := &cobra.Command{
		Use:   "validate <registry>",
		Short: "Validate a curriculum registry",
		Long: `Build a curriculum registry the way a session does and report every
problem found: duplicate or out-of-range ids, components without a known
kind, invalid component configs and navigation targets that do not exist.

The registry may be a single YAML file or a directory of menus/, lessons/ and
domains/ files.

Exit codes:
  0 - Registry is valid
  1 - Registry has problems
  2 - Registry could not be read

Examples:
  mera registry validate ./registry.yaml
  mera registry validate ./curriculum --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRegistryValidate(rootOpts, args[0], cmd)
		},
	}

	cmd.AddCommand(validate)
	return cmd
}

func runRegistryValidate(opts *RootOptions, path string, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts)

	doc, err := curriculum.ReadDocument(path)
	if err != nil {
		return out.Fail(ExitCommandError, CodeRegistry, "failed to read registry", err)
	}

	reg, err := curriculum.Build(doc)
	if err != nil {
		var be *curriculum.BuildError
		if errors.As(err, &be) {
			_ = out.Error(CodeRegistry, fmt.Sprintf("%s: %d problems", path, len(be.Problems)), be.Problems)
			if opts.Format != "json" {
				for _, p := range be.Problems {
					fmt.Fprintf(cmd.OutOrStdout(), "  - %s\n", p)
				}
			}
			return WrapExitError(ExitFailure, "invalid registry", err)
		}
		return out.Fail(ExitFailure, CodeRegistry, "invalid registry", err)
	}

	sum := reg.Summary()
	return out.Success(RegistryReport{Path: path, Valid: true, Summary: sum},
		fmt.Sprintf("✓ %s: %d menus, %d lessons, %d domains, %d components",
			path, sum.Menus, sum.Lessons, sum.Domains, sum.Components))
}
