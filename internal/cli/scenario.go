package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mera-platform/mera/internal/harness"
)

// ScenarioOptions holds flags for the scenario command.
type ScenarioOptions struct {
	*RootOptions
	Golden string // compare the final snapshot with this file
	Update bool   // write the final snapshot to Golden instead
}

// ScenarioResult holds the result of a single scenario execution.
type ScenarioResult struct {
	Name     string               `json:"name"`
	Pass     bool                 `json:"pass"`
	Errors   []string             `json:"errors,omitempty"`
	Ticks    int64                `json:"ticks"`
	Handoffs int                  `json:"handoffs"`
	Trace    []harness.TraceEvent `json:"trace,omitempty"`
}

// TestResult holds the overall result.
type TestResult struct {
	Scenarios []ScenarioResult `json:"scenarios"`
	Passed    int              `json:"passed"`
	Failed    int              `json:"failed"`
	Total     int              `json:"total"`
}

// NewScenarioCommand creates the scenario command.
func NewScenarioCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ScenarioOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "scenario <scenario.yaml>...",
		Short: "Run harness scenarios",
		Long: `Run one or more learner scenarios against the real engine on a fake clock.

Each scenario scripts ticks, clock advances, UI interactions and navigation,
then checks the final progress. With --golden the canonical final snapshot of
a single scenario is also compared against a file; --update rewrites it.

Exit codes:
  0 - All scenarios passed
  1 - One or more scenarios failed
  2 - Command error (invalid paths, etc.)

Examples:
  mera scenario ./scenarios/finish_welcome.yaml
  mera scenario ./scenarios/*.yaml --format json
  mera scenario ./scenarios/finish_welcome.yaml --golden ./golden/finish_welcome.golden --update`,
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenarios(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Golden, "golden", "", "golden snapshot file (single scenario only)")
	cmd.Flags().BoolVar(&opts.Update, "update", false, "rewrite the golden file")

	return cmd
}

func runScenarios(opts *ScenarioOptions, paths []string, cmd *cobra.Command) error {
	out := newFormatter(cmd, opts.RootOptions)

	if opts.Golden != "" && len(paths) != 1 {
		return out.Fail(ExitCommandError, CodeScenario, "--golden takes exactly one scenario", nil)
	}
	if opts.Update && opts.Golden == "" {
		return out.Fail(ExitCommandError, CodeScenario, "--update requires --golden", nil)
	}

	result := TestResult{
		Scenarios: make([]ScenarioResult, 0, len(paths)),
		Total:     len(paths),
	}
	for _, path := range paths {
		sr, err := runScenarioFile(opts, path)
		if err != nil {
			return out.Fail(ExitCommandError, CodeScenario, fmt.Sprintf("failed to run %s", path), err)
		}
		result.Scenarios = append(result.Scenarios, sr)
		if sr.Pass {
			result.Passed++
		} else {
			result.Failed++
		}
	}

	if opts.Format == "json" {
		if err := out.Success(result); err != nil {
			return err
		}
	} else {
		writeScenarioText(cmd, result, opts.Verbose)
	}

	if result.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d scenarios failed", result.Failed, result.Total))
	}
	return nil
}

func runScenarioFile(opts *ScenarioOptions, path string) (ScenarioResult, error) {
	s, err := harness.LoadScenario(path)
	if err != nil {
		return ScenarioResult{}, err
	}
	r, err := harness.Run(s)
	if err != nil {
		return ScenarioResult{}, err
	}

	sr := ScenarioResult{
		Name:     s.Name,
		Pass:     r.Pass,
		Errors:   r.Errors,
		Ticks:    r.Ticks,
		Handoffs: r.Handoffs,
		Trace:    r.Trace,
	}

	switch {
	case opts.Update:
		if err := os.MkdirAll(filepath.Dir(opts.Golden), 0o755); err != nil {
			return ScenarioResult{}, err
		}
		if err := os.WriteFile(opts.Golden, r.Snapshot, 0o644); err != nil {
			return ScenarioResult{}, err
		}
	case opts.Golden != "":
		want, err := os.ReadFile(opts.Golden)
		if err != nil {
			return ScenarioResult{}, err
		}
		if string(want) != string(r.Snapshot) {
			sr.Pass = false
			sr.Errors = append(sr.Errors, fmt.Sprintf("final snapshot differs from %s", opts.Golden))
		}
	}
	return sr, nil
}

func writeScenarioText(cmd *cobra.Command, result TestResult, verbose bool) {
	w := cmd.OutOrStdout()
	for _, sr := range result.Scenarios {
		if sr.Pass {
			fmt.Fprintf(w, "✓ %s (%d ticks)\n", sr.Name, sr.Ticks)
		} else {
			fmt.Fprintf(w, "✗ %s\n", sr.Name)
			for _, e := range sr.Errors {
				fmt.Fprintf(w, "  %s\n", e)
			}
		}
		if verbose {
			for _, ev := range sr.Trace {
				fmt.Fprintf(w, "    [%d] %s\n", ev.Seq, traceText(ev))
			}
		}
	}
	fmt.Fprintf(w, "\n%d passed, %d failed, %d total\n", result.Passed, result.Failed, result.Total)
}

func traceText(ev harness.TraceEvent) string {
	parts := []string{ev.Type}
	if ev.ComponentID != 0 {
		parts = append(parts, fmt.Sprintf("%d %s", ev.ComponentID, ev.Action))
	}
	if ev.Error != "" {
		parts = append(parts, "error: "+ev.Error)
	}
	return strings.Join(parts, " ")
}
