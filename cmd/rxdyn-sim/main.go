package main

import (
	"fmt"
	"io"
	"os"
	"slices"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/daniacca/rxdyn/internal/achem"
	"github.com/daniacca/rxdyn/internal/logging"
	"github.com/daniacca/rxdyn/internal/rxn"
)

type globalOptions struct {
	logLevel  string
	logFormat string
}

func (o *globalOptions) logger() (*zap.Logger, error) {
	return logging.New(o.logLevel, o.logFormat)
}

func newRootCommand() *cobra.Command {
	opts := &globalOptions{}
	cmd := &cobra.Command{
		Use:           "rxdyn-sim",
		Short:         "Run particle reaction scenarios offline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&opts.logLevel, "log-level", "warn", "log level (debug, info, warn, error)")
	pf.StringVar(&opts.logFormat, "log-format", "console", "log encoding: console or json")

	cmd.AddCommand(newRunCommand(opts), newCheckCommand(opts))
	return cmd
}

type runOptions struct {
	steps    int
	every    int
	envID    string
	from     string
	snapshot string
}

func newRunCommand(g *globalOptions) *cobra.Command {
	opts := &runOptions{}
	cmd := &cobra.Command{
		Use:   "run <scenario-file>",
		Short: "Run a scenario for a number of steps and print the species counts",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScenario(cmd.OutOrStdout(), g, opts, args[0])
		},
	}
	f := cmd.Flags()
	f.IntVar(&opts.steps, "steps", 100, "number of time steps to run")
	f.IntVar(&opts.every, "every", 0, "print the counts every N steps (0 prints only the summary)")
	f.StringVar(&opts.envID, "env-id", "simulation", "environment ID")
	f.StringVar(&opts.from, "from", "", "start from this snapshot file instead of the scenario's placements")
	f.StringVar(&opts.snapshot, "snapshot", "", "write the final state to this snapshot file")
	return cmd
}

func runScenario(w io.Writer, g *globalOptions, opts *runOptions, path string) error {
	if opts.steps < 0 {
		return fmt.Errorf("--steps must not be negative, got %d", opts.steps)
	}
	zl, err := g.logger()
	if err != nil {
		return err
	}
	defer zl.Sync()

	cfg, err := achem.LoadScenarioFile(path)
	if err != nil {
		return fmt.Errorf("loading scenario: %w", err)
	}
	env, err := achem.BuildEnvironment(cfg, zl.Sugar())
	if err != nil {
		return fmt.Errorf("building scenario: %w", err)
	}
	env.SetEnvironmentID(achem.EnvironmentID(opts.envID))

	if opts.from != "" {
		snapshot, err := achem.ReadSnapshotFile(opts.from)
		if err != nil {
			return fmt.Errorf("reading snapshot: %w", err)
		}
		if err := env.RestoreSnapshot(snapshot); err != nil {
			return fmt.Errorf("restoring snapshot: %w", err)
		}
		zl.Info("snapshot restored", zap.String("path", opts.from), zap.Int64("time", env.Time()))
	}

	for i := 1; i <= opts.steps; i++ {
		if err := env.Step(); err != nil {
			return fmt.Errorf("step %d: %w", env.Time()+1, err)
		}
		if opts.every > 0 && i%opts.every == 0 {
			fmt.Fprintf(w, "t=%.6g", env.SimTime())
			counts := env.Counts()
			for _, name := range sortedKeys(counts) {
				fmt.Fprintf(w, " %s=%d", name, counts[name])
			}
			fmt.Fprintln(w)
		}
	}

	printSummary(w, cfg.Name, env)

	if opts.snapshot != "" {
		if err := achem.WriteSnapshotFile(opts.snapshot, env.Snapshot()); err != nil {
			return fmt.Errorf("writing snapshot: %w", err)
		}
		zl.Info("snapshot written", zap.String("path", opts.snapshot))
	}
	return nil
}

func printSummary(w io.Writer, name string, env *achem.Environment) {
	fmt.Fprintf(w, "Simulation finished (scenario=%s, steps=%d, time=%.6g)\n", name, env.Time(), env.SimTime())
	fmt.Fprintln(w, "Species counts:")
	counts := env.Counts()
	for _, species := range sortedKeys(counts) {
		fmt.Fprintf(w, "  %s: %d\n", species, counts[species])
	}
	fmt.Fprintln(w, "Reaction events:")
	events := env.Events()
	for _, et := range sortedKeys(events) {
		if events[et] > 0 {
			fmt.Fprintf(w, "  %s: %d\n", et, events[et])
		}
	}
}

func newCheckCommand(g *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "check <scenario-file>",
		Short: "Resolve the reaction parameters of a scenario and report problems",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return checkScenario(cmd.OutOrStdout(), g, args[0])
		},
	}
}

// checkScenario prints the parameter table and the warnings. It fails when
// any finding is an error.
func checkScenario(w io.Writer, g *globalOptions, path string) error {
	zl, err := g.logger()
	if err != nil {
		return err
	}
	defer zl.Sync()

	cfg, err := achem.LoadScenarioFile(path)
	if err != nil {
		return fmt.Errorf("loading scenario: %w", err)
	}
	env, err := achem.NewEnvironment(cfg)
	if err != nil {
		return fmt.Errorf("building scenario: %w", err)
	}
	zl.Debug("scenario resolved", zap.String("scenario", cfg.Name), zap.Int("reactions", len(cfg.Reactions)))

	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "REACTION\tORDER\tSLOT\tRATE\tPROB\tBIND RADIUS\tUNBIND RADIUS")
	for _, t := range env.Tables() {
		for _, s := range t.Slots {
			fmt.Fprintf(tw, "%s\t%d\t%s\t%s\t%s\t%s\t%s\n",
				t.Name, t.Order, slotLabel(s.Surfaces), formatValue(s.Rate), formatValue(s.Probability),
				formatValue(s.BindRadius), formatValue(s.UnbindRadius))
		}
	}
	tw.Flush()

	warnings := env.Warnings()
	errs := 0
	for _, warning := range warnings {
		if warning.Level == rxn.LevelError {
			errs++
		}
		fmt.Fprintln(w, warning)
	}
	if errs > 0 {
		return fmt.Errorf("scenario %s has %d errors", cfg.Name, errs)
	}
	fmt.Fprintf(w, "scenario %s: %d warnings\n", cfg.Name, len(warnings))
	return nil
}

// slotLabel names the surfaces of a slot; "-" is the bulk solution.
func slotLabel(surfaces [2]string) string {
	var names []string
	for _, s := range surfaces {
		if s != "" {
			names = append(names, s)
		}
	}
	if len(names) == 0 {
		return "-"
	}
	return strings.Join(names, "/")
}

func formatValue(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("%g", *v)
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
