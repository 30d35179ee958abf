package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/leptonweighter/leptonweighter/lw"
	"github.com/leptonweighter/leptonweighter/lw/eventio"
	"github.com/leptonweighter/leptonweighter/lw/generation"
	"github.com/leptonweighter/leptonweighter/lw/metrics"
	"github.com/leptonweighter/leptonweighter/lw/store"
)

var profilePath string // Run profile YAML

var weightCmd = &cobra.Command{
	Use:   "weight",
	Short: "Weight an event CSV against a generation description",
	Long: `Weight reads a generation description and an event CSV, evaluates every event
against the configured fluxes and cross section, and writes the per-event weights.

Settings come from, in increasing precedence: built-in defaults, the --config profile
(or LW_CONFIG), LW_-prefixed environment variables, and explicitly set flags. With no
flux configured the output weights are one-weights.`,
	Run: func(cmd *cobra.Command, args []string) {
		p, err := LoadProfile(profilePath, cmd.Flags())
		if err != nil {
			logrus.Fatalf("Failed to load run profile: %v", err)
		}
		summary, err := runWeight(cmd.Context(), p)
		if err != nil {
			logrus.Fatalf("Weighting failed: %v", err)
		}
		printSummary(cmd.OutOrStdout(), summary)
	},
}

// buildWeighter assembles the weighter described by p.
func buildWeighter(p *Profile) (*lw.Weighter, error) {
	xs, err := p.XSec.CrossSection()
	if err != nil {
		return nil, err
	}
	name := p.XSec.Name
	if name == "" {
		name = DefaultXSecModelName
	}
	gens, err := generation.LoadFile(p.Description, map[string]generation.KinematicsModel{name: xs})
	if err != nil {
		return nil, err
	}
	fluxes, err := p.FluxModels()
	if err != nil {
		return nil, err
	}
	if len(fluxes) == 0 {
		logrus.Infof("No flux configured; computing one-weights")
		return lw.NewOneWeighter(xs, gens)
	}
	return lw.NewWeighter(fluxes, xs, gens)
}

// runWeight executes one weighting run and writes every configured sink.
func runWeight(ctx context.Context, p *Profile) (*lw.BatchSummary, error) {
	w, err := buildWeighter(p)
	if err != nil {
		return nil, err
	}
	events, err := eventio.ReadFile(p.Events)
	if err != nil {
		return nil, err
	}
	logrus.Infof("Weighting %d events with %d generators", len(events), w.NumGenerators())

	start := time.Now()
	results, err := lw.WeightBatch(ctx, w, events, p.Workers)
	if err != nil {
		return nil, err
	}
	elapsed := time.Since(start)

	if p.OnError == OnErrorAbort {
		for _, r := range results {
			if r.Err != nil {
				return nil, fmt.Errorf("event %d: %w", r.Index, r.Err)
			}
		}
	}
	for _, r := range results {
		if r.Err != nil {
			logrus.Debugf("event %d skipped: %v", r.Index, r.Err)
		}
	}
	summary := lw.Summarize(results)

	if p.Output != "" {
		if err := eventio.WriteResultsFile(p.Output, results); err != nil {
			return nil, err
		}
		logrus.Infof("Wrote %d results to %s", len(results), p.Output)
	}
	if p.DB != "" {
		if err := saveRun(ctx, p, results, summary); err != nil {
			return nil, err
		}
	}
	if p.MetricsFile != "" {
		reg := prometheus.NewRegistry()
		metrics.NewRecorder(reg).ObserveBatch(results, elapsed)
		if err := metrics.WriteTextfile(reg, p.MetricsFile); err != nil {
			return nil, err
		}
	}
	return summary, nil
}

func saveRun(ctx context.Context, p *Profile, results []lw.Result, summary *lw.BatchSummary) (err error) {
	s, err := store.Open(p.DB)
	if err != nil {
		return err
	}
	defer func() {
		err = errors.Join(err, s.Close())
	}()
	run, err := s.BeginRun(ctx, p.Description, len(results))
	if err != nil {
		return err
	}
	if err := s.SaveResults(ctx, run.ID, results); err != nil {
		return err
	}
	if err := s.FinishRun(ctx, run.ID, summary); err != nil {
		return err
	}
	logrus.Infof("Stored run %s in %s", run.ID, p.DB)
	return nil
}

// printSummary displays the aggregated batch statistics.
func printSummary(out io.Writer, s *lw.BatchSummary) {
	fmt.Fprintln(out, "=== Weighting Summary ===")
	fmt.Fprintf(out, "Events               : %d\n", s.Total)
	fmt.Fprintf(out, "Weighted             : %d\n", s.Weighted)
	fmt.Fprintf(out, "Failed               : %d\n", s.Failed)
	for _, kind := range slices.Sorted(maps.Keys(s.FailedByKind)) {
		fmt.Fprintf(out, "  %-19s: %d\n", kind, s.FailedByKind[kind])
	}
	if s.Weighted > 0 {
		fmt.Fprintf(out, "Sum of weights       : %g\n", s.SumWeights)
		fmt.Fprintf(out, "Effective N          : %.2f\n", s.EffectiveSampleSize())
		fmt.Fprintf(out, "Weight range         : [%g, %g]\n", s.MinWeight, s.MaxWeight)
	}
}

func init() {
	f := weightCmd.Flags()
	f.StringVar(&profilePath, "config", "", "Run profile YAML (defaults to $LW_CONFIG)")
	f.String("description", "", "Generation description YAML")
	f.String("events", "", "Event CSV to weight")
	f.String("output", "", "Write per-event results CSV here")
	f.String("db", "", "Record the run in this SQLite database")
	f.String("metrics-file", "", "Write Prometheus textfile metrics here")
	f.Int("workers", 0, "Weighting goroutines (0 uses one per CPU)")
	f.String("on-error", OnErrorSkip, "Per-event error policy: skip or abort")
	f.Float64("xs-constant", 0, "Use a constant cross section in cm² instead of tables")
	f.Float64("xs-validity-floor", 0, "Energy in GeV below which the cross section is undefined")
}
