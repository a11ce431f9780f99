package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/autoscale-sim/autoscale-sim/sim"
	"github.com/autoscale-sim/autoscale-sim/sim/cluster"
	"github.com/autoscale-sim/autoscale-sim/sim/trace"
	"github.com/autoscale-sim/autoscale-sim/sim/workload"
)

var (
	// CLI flags shared by run and serve
	seed           int64  // Seed for user types and random load
	logLevel       string // Log verbosity level
	configPath     string // Scenario YAML; defaults apply when empty
	scenarioName   string // Built-in preset used instead of a YAML file
	pattern        string // Overrides default_load_profile.pattern
	initialPods    int    // Pods at tick 0
	podPrefix      string // Name prefix for created pods
	applyDecisions bool   // Resize the pod set to each decision

	// CLI flags for run
	ticks        int           // Number of ticks to simulate
	tickInterval time.Duration // Simulated time between ticks
	startTime    string        // RFC 3339 start of the fake clock
	traceLevel   string        // Decision trace verbosity
	outputPath   string        // Report destination; stdout when empty
	outputFormat string        // yaml or json
	withRecords  bool          // Include per-tick records in the report
)

// rootCmd is the base command for the CLI
var rootCmd = &cobra.Command{
	Use:   "autoscale-sim",
	Short: "Simulator for Kubernetes-style horizontal autoscaling decisions",
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		setupLogging(logLevel)
	},
}

// runOptions carries everything a batch run needs.
type runOptions struct {
	Seed           int64
	Ticks          int
	Interval       time.Duration
	Start          time.Time
	InitialPods    int
	PodPrefix      string
	ApplyDecisions bool
	TraceLevel     trace.TraceLevel
	WithRecords    bool
}

// runCmd executes a batch simulation on a fake clock
var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the autoscaling simulation for a fixed number of ticks",
	Run: func(cmd *cobra.Command, args []string) {
		cfg, err := loadRuntimeConfig(configPath, scenarioName, pattern)
		if err != nil {
			logrus.Fatalf("%v", err)
		}
		if !trace.IsValidTraceLevel(traceLevel) {
			logrus.Fatalf("Invalid trace level: %s", traceLevel)
		}
		start, err := parseStart(startTime)
		if err != nil {
			logrus.Fatalf("%v", err)
		}

		logrus.Infof("Starting simulation: pattern=%s ticks=%d interval=%s pods=%d seed=%d",
			cfg.DefaultLoadProfile.Pattern, ticks, tickInterval, initialPods, seed)

		report := runSimulation(cfg, runOptions{
			Seed:           seed,
			Ticks:          ticks,
			Interval:       tickInterval,
			Start:          start,
			InitialPods:    initialPods,
			PodPrefix:      podPrefix,
			ApplyDecisions: applyDecisions,
			TraceLevel:     trace.TraceLevel(traceLevel),
			WithRecords:    withRecords,
		})

		out := io.Writer(os.Stdout)
		if outputPath != "" {
			f, err := os.Create(outputPath)
			if err != nil {
				logrus.Fatalf("creating report file: %v", err)
			}
			defer f.Close()
			out = f
		}
		if err := writeReport(out, report, outputFormat); err != nil {
			logrus.Fatalf("writing report: %v", err)
		}

		logrus.Infof("Simulation complete: replicas p50=%.0f max=%.0f, cpu mean=%.1f%%",
			report.Replicas.P50, report.Replicas.Max, report.CPU.Mean)
	},
}

// setupLogging applies the --log level, exiting on an unknown level.
func setupLogging(level string) {
	parsed, err := logrus.ParseLevel(level)
	if err != nil {
		logrus.Fatalf("Invalid log level: %s", level)
	}
	logrus.SetLevel(parsed)
}

// loadRuntimeConfig reads path, the named preset or the defaults, applies a
// pattern override and validates the result.
func loadRuntimeConfig(path, scenario, patternOverride string) (*sim.RuntimeConfig, error) {
	cfg := sim.DefaultRuntimeConfig()
	switch {
	case path != "" && scenario != "":
		return nil, fmt.Errorf("--config and --scenario are mutually exclusive")
	case path != "":
		loaded, err := sim.LoadRuntimeConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	case scenario != "":
		preset, err := workload.Scenario(scenario)
		if err != nil {
			return nil, err
		}
		cfg = preset
	}
	if patternOverride != "" {
		cfg.DefaultLoadProfile.Pattern = patternOverride
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid runtime config: %w", err)
	}
	return cfg, nil
}

// parseStart parses an RFC 3339 timestamp. Empty means midnight UTC today.
func parseStart(s string) (time.Time, error) {
	if s == "" {
		return time.Now().UTC().Truncate(24 * time.Hour), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid --start %q: %w", s, err)
	}
	return t, nil
}

// runSimulation drives a fleet on a fake clock and returns its report.
func runSimulation(cfg *sim.RuntimeConfig, opts runOptions) *cluster.Report {
	ctx := sim.NewSimulationContext(opts.Seed, clockwork.NewFakeClockAt(opts.Start))
	fleet := cluster.NewFleetSimulator(cluster.FleetConfig{
		InitialPods:    opts.InitialPods,
		PodPrefix:      opts.PodPrefix,
		ApplyDecisions: opts.ApplyDecisions,
		Trace:          trace.TraceConfig{Level: opts.TraceLevel},
	}, ctx, cfg.PodResources)

	fleet.Run(cfg, opts.Ticks, opts.Interval)
	report := fleet.Report()
	if !opts.WithRecords {
		report.Records = nil
	}
	return report
}

// writeReport encodes report as YAML or JSON.
func writeReport(w io.Writer, report *cluster.Report, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	case "yaml", "yml", "":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(report); err != nil {
			return err
		}
		return enc.Close()
	default:
		return fmt.Errorf("unknown output format %q; valid: yaml, json", format)
	}
}

// Execute runs the CLI root command
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// init sets up CLI flags and subcommands
func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log", "warn", "Log level (trace, debug, info, warn, error, fatal, panic)")

	for _, c := range []*cobra.Command{runCmd, serveCmd} {
		c.Flags().Int64Var(&seed, "seed", 42, "Seed for user types and random load")
		c.Flags().StringVar(&configPath, "config", "", "Path to a scenario YAML file (defaults apply when empty)")
		c.Flags().StringVar(&scenarioName, "scenario", "", fmt.Sprintf("Built-in preset %v", workload.ScenarioNames()))
		c.Flags().StringVar(&pattern, "pattern", "", "Override the load pattern (linear, sine, spike, sawtooth, square, random, daily)")
		c.Flags().IntVar(&initialPods, "pods", 1, "Number of pods at start")
		c.Flags().StringVar(&podPrefix, "pod-prefix", cluster.DefaultPodPrefix, "Name prefix for created pods")
		c.Flags().BoolVar(&applyDecisions, "apply", true, "Resize the pod set to each scaling decision")
	}

	runCmd.Flags().IntVar(&ticks, "ticks", 120, "Number of ticks to simulate")
	runCmd.Flags().DurationVar(&tickInterval, "interval", 5*time.Second, "Simulated time between ticks")
	runCmd.Flags().StringVar(&startTime, "start", "", "RFC 3339 start time of the simulated clock (default: today 00:00 UTC)")
	runCmd.Flags().StringVar(&traceLevel, "trace", string(trace.TraceLevelNone), "Decision trace level (none, decisions, pods)")
	runCmd.Flags().StringVar(&outputPath, "output", "", "Report file (default: stdout)")
	runCmd.Flags().StringVar(&outputFormat, "format", "yaml", "Report format (yaml, json)")
	runCmd.Flags().BoolVar(&withRecords, "records", false, "Include per-tick records in the report")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(validateCmd)
}
