package cli

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mera-platform/mera/internal/curriculum"
	"github.com/mera-platform/mera/internal/integrity"
)

// BundleOptions holds the flags shared by commands that read bundles.
type BundleOptions struct {
	*RootOptions
	Registry string
	Owner    string
	Out      string // write the resulting canonical bundle here
}

func (o *BundleOptions) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.Registry, "registry", "", "path to the curriculum registry (required)")
	cmd.Flags().StringVar(&o.Owner, "owner", "", "expected learner identity (required)")
	cmd.Flags().StringVarP(&o.Out, "out", "o", "", "write the resulting canonical bundle to this file")
	_ = cmd.MarkFlagRequired("registry")
	_ = cmd.MarkFlagRequired("owner")
}

// RecoverReport is the output of the recover command.
type RecoverReport struct {
	Path   string           `json:"path"`
	Result integrity.Result `json:"result"`
}

// NewRecoverCommand creates the recover command.
func NewRecoverCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &BundleOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "recover <bundle.json>",
		Short: "Repair a stored progress bundle",
		Long: `Run a stored bundle through recovery and report what had to be repaired.

Every section is checked against the registry: retired content is dropped,
missing content is synthesized, invalid fields are defaulted and corrupted
totals are recomputed. A bundle owned by someone other than --owner is
reported and the command exits with code 1.

Examples:
  mera recover ./mera.progress.json --registry ./registry.yaml --owner https://alice.example/profile#me
  mera recover ./broken.json --registry ./registry.yaml --owner alice --out ./fixed.json --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runRecover(opts, args[0], cmd)
		},
	}
	opts.addFlags(cmd)

	return cmd
}

func runRecover(opts *BundleOptions, path string, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)

	reg, err := curriculum.Load(opts.Registry)
	if err != nil {
		return out.Fail(ExitCommandError, CodeRegistry, "failed to load registry", err)
	}
	res, err := recoverFile(path, opts.Owner, reg)
	if err != nil {
		return out.Fail(ExitCommandError, CodeInput, "failed to recover bundle", err)
	}

	if opts.Out != "" && !res.Critical.IdentityMismatch {
		if err := writeBundle(opts.Out, res); err != nil {
			return out.Fail(ExitCommandError, CodeInput, "failed to write bundle", err)
		}
		out.VerboseLog("wrote %s", opts.Out)
	}

	if err := out.Success(RecoverReport{Path: path, Result: res}, recoverText(path, res)...); err != nil {
		return err
	}
	if res.Critical.IdentityMismatch {
		return NewExitError(ExitFailure, fmt.Sprintf("%s belongs to another owner", path))
	}
	return nil
}

// recoverFile reads and recovers one bundle file.
func recoverFile(path, owner string, reg curriculum.Registry) (integrity.Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return integrity.Result{}, err
	}
	return integrity.Recover(raw, owner, reg)
}

func writeBundle(path string, res integrity.Result) error {
	raw, err := res.Bundle.Canonical()
	if err != nil {
		return err
	}
	return os.WriteFile(path, raw, 0o644)
}

func recoverText(path string, res integrity.Result) []string {
	lines := []string{
		fmt.Sprintf("Bundle: %s", path),
		fmt.Sprintf("Perfectly valid: %s", yesNo(res.PerfectlyValidInput)),
		fmt.Sprintf("Identity mismatch: %s", yesNo(res.Critical.IdentityMismatch)),
	}
	if res.ParseFailed {
		lines = append(lines, "Input was not a JSON object; every section was defaulted.")
	}
	if len(res.UnknownKeys) > 0 {
		lines = append(lines, fmt.Sprintf("Unknown keys dropped: %s", strings.Join(res.UnknownKeys, ", ")))
	}

	lines = append(lines, "Sections:")
	for _, s := range integrity.Sections {
		lines = append(lines, fmt.Sprintf("  %-18s %s", s, sectionText(res.Sections[s])))
	}

	overall := res.Bundle.OverallProgress
	lines = append(lines, fmt.Sprintf("Lessons completed: %d, domains completed: %d",
		overall.TotalLessonsCompleted, overall.TotalDomainsCompleted))
	return lines
}

func sectionText(m integrity.SectionMetrics) string {
	if m.Clean() {
		return "clean"
	}
	var parts []string
	if m.Reset {
		parts = append(parts, "reset")
	}
	if !m.StrictValid && !m.Reset {
		parts = append(parts, "repaired")
	}
	for _, c := range []struct {
		n    int
		what string
	}{
		{m.FieldsDefaulted, "defaulted"},
		{m.EntriesDropped, "dropped"},
		{m.EntriesSynthesized, "synthesized"},
		{m.EntriesReset, "entries reset"},
	} {
		if c.n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", c.n, c.what))
		}
	}
	if m.CorruptionDetected {
		parts = append(parts, fmt.Sprintf("corrupted (lessons lost %d, domains lost %d)",
			m.LessonsLostToCorruption, m.DomainsLostToCorruption))
	}
	return strings.Join(parts, ", ")
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}
