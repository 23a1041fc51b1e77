package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/mera-platform/mera/internal/curriculum"
	"github.com/mera-platform/mera/internal/merge"
	"github.com/mera-platform/mera/internal/model"
	"github.com/mera-platform/mera/internal/trump"
)

// MergeOptions holds flags for the merge command.
type MergeOptions struct {
	BundleOptions
	Prefer string // "a" | "b"
}

// MergeOutput is the output of the merge command.
type MergeOutput struct {
	Bundle    model.Bundle        `json:"bundle"`
	Fallbacks []model.ImmutableID `json:"fallbacks,omitempty"`
	Repaired  []string            `json:"repaired,omitempty"`
}

// NewMergeCommand creates the merge command.
func NewMergeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &MergeOptions{BundleOptions: BundleOptions{RootOptions: rootOpts}}

	cmd := &cobra.Command{
		Use:   "merge <a.json> <b.json>",
		Short: "Merge two copies of a progress bundle",
		Long: `Recover two bundles of the same learner and merge them the way a session
merges its local and remote copies.

Each component merges field by field using its kind's merge table. Ties that
timestamps and progress cannot break go to --prefer.

Examples:
  mera merge local.json remote.json --registry ./registry.yaml --owner alice
  mera merge local.json remote.json --registry ./registry.yaml --owner alice --prefer a --out merged.json`,
		Args:          cobra.ExactArgs(2),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runMerge(opts, args[0], args[1], cmd)
		},
	}
	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.Prefer, "prefer", "b", "side that wins exact ties (a|b)")

	return cmd
}

func runMerge(opts *MergeOptions, pathA, pathB string, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)

	var prefer trump.Side
	switch opts.Prefer {
	case "a":
		prefer = trump.SideA
	case "b":
		prefer = trump.SideB
	default:
		return out.Fail(ExitCommandError, CodeInput, fmt.Sprintf("invalid --prefer %q: must be a or b", opts.Prefer), nil)
	}

	reg, err := curriculum.Load(opts.Registry)
	if err != nil {
		return out.Fail(ExitCommandError, CodeRegistry, "failed to load registry", err)
	}

	var (
		bundles  [2]model.Bundle
		repaired []string
	)
	for i, path := range []string{pathA, pathB} {
		res, err := recoverFile(path, opts.Owner, reg)
		if err != nil {
			return out.Fail(ExitCommandError, CodeInput, fmt.Sprintf("failed to recover %s", path), err)
		}
		if res.Critical.IdentityMismatch {
			return out.Fail(ExitFailure, CodeIdentity, fmt.Sprintf("%s belongs to another owner", path), nil)
		}
		if !res.PerfectlyValidInput {
			repaired = append(repaired, path)
			out.VerboseLog("%s was repaired before merging", path)
		}
		bundles[i] = res.Bundle
	}

	merged, rep, err := merge.MergeWithReport(bundles[0], bundles[1], merge.OrderingHints{PreferOnTie: prefer}, reg)
	if err != nil {
		return out.Fail(ExitFailure, CodeMerge, "failed to merge bundles", err)
	}

	canonical, err := merged.Canonical()
	if err != nil {
		return out.Fail(ExitFailure, CodeMerge, "failed to encode merged bundle", err)
	}
	if opts.Out != "" {
		if err := os.WriteFile(opts.Out, canonical, 0o644); err != nil {
			return out.Fail(ExitCommandError, CodeInput, "failed to write bundle", err)
		}
		out.VerboseLog("wrote %s", opts.Out)
	}

	for _, id := range rep.Fallbacks {
		out.VerboseLog("component %d merged by completeness", id)
	}
	return out.Success(MergeOutput{Bundle: merged, Fallbacks: rep.Fallbacks, Repaired: repaired}, string(canonical))
}
