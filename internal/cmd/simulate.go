package cmd

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/fulmenhq/gofulmen/ascii"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	errwrap "github.com/jarlhq/jarl/internal/errors"
	"github.com/jarlhq/jarl/internal/observability"
	"github.com/jarlhq/jarl/internal/output"
	"github.com/jarlhq/jarl/internal/window"
)

// maxSimulatedArrivals bounds --count and --arrivals.
const maxSimulatedArrivals = 1_000_000

var (
	simulateService  string
	simulateRequests int
	simulatePeriod   float64
	simulateArrivals []float64
	simulateCount    int
	simulateInterval float64
	simulateOutput   string
	simulateOut      string
)

var simulateCmd = &cobra.Command{
	Use:   "simulate",
	Short: "Replay arrival times through a fresh window and print the delays",
	Long: `Replay arrival times through a fresh sliding window, offline, and print the
delay each caller would have received. No socket is opened.

Arrivals are offsets in seconds from the first request, either listed with
--arrivals or generated with --count and --interval.`,
	Example: `  jarl simulate --requests 2 --period 10 --arrivals 0,1,2
  jarl simulate --requests 100 --period 1 --count 102 --interval 0.005 --output-format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		format, err := output.ParseFormat(simulateOutput)
		if err != nil {
			return err
		}

		arrivals, err := simulationArrivals(simulateArrivals, simulateCount, simulateInterval)
		if err != nil {
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "invalid arrivals")
		}

		period, err := window.ParseSeconds(simulatePeriod)
		if err != nil {
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "invalid period")
		}

		report, err := simulate(simulateService, simulateRequests, period, arrivals)
		if err != nil {
			return errwrap.WrapConfigInvalid(cmd.Context(), err, "invalid rate limit")
		}

		if observability.CLILogger != nil {
			observability.CLILogger.Debug("Simulation complete",
				zap.Int("arrivals", len(arrivals)),
				zap.Int("delayed", report.Summary.Delayed))
		}

		rendered, err := output.NewFormatter(format).FormatReport(report)
		if err != nil {
			return err
		}

		sink, err := openSink(cmd.OutOrStdout(), simulateOut)
		if err != nil {
			return err
		}
		defer func() { _ = sink.close() }()

		if _, err := fmt.Fprintln(sink.writer, strings.TrimRight(rendered, "\n")); err != nil {
			return err
		}
		if format == output.FormatTable {
			_, err = fmt.Fprint(sink.writer, ascii.DrawBox(summaryLines(report), 0))
		}
		return err
	},
}

func init() {
	rootCmd.AddCommand(simulateCmd)

	simulateCmd.Flags().StringVar(&simulateService, "service", "", "service label for the report")
	simulateCmd.Flags().IntVar(&simulateRequests, "requests", 0, "requests allowed per period")
	simulateCmd.Flags().Float64Var(&simulatePeriod, "period", 0, "period length in seconds")
	simulateCmd.Flags().Float64SliceVar(&simulateArrivals, "arrivals", nil, "arrival offsets in seconds, e.g. 0,1,2")
	simulateCmd.Flags().IntVar(&simulateCount, "count", 0, "generate this many evenly spaced arrivals")
	simulateCmd.Flags().Float64Var(&simulateInterval, "interval", 0, "spacing in seconds for --count")
	simulateCmd.Flags().StringVar(&simulateOutput, "output-format", string(output.FormatTable), "Output format: table|json|yaml|markdown")
	simulateCmd.Flags().StringVar(&simulateOut, "out", "", "Write output to a file (default stdout)")
	simulateCmd.MarkFlagsMutuallyExclusive("arrivals", "count")
}

// simulationArrivals validates listed offsets or generates evenly spaced ones.
func simulationArrivals(listed []float64, count int, interval float64) ([]time.Duration, error) {
	if len(listed) > maxSimulatedArrivals {
		return nil, fmt.Errorf("at most %d arrivals can be simulated, got %d", maxSimulatedArrivals, len(listed))
	}
	if len(listed) > 0 {
		arrivals := make([]time.Duration, 0, len(listed))
		var previous time.Duration
		for i, seconds := range listed {
			offset, err := offsetDuration(seconds)
			if err != nil {
				return nil, fmt.Errorf("arrival %d: %w", i+1, err)
			}
			if offset < previous {
				return nil, fmt.Errorf("arrival %d: offsets must not decrease (%v after %v)", i+1, offset, previous)
			}
			previous = offset
			arrivals = append(arrivals, offset)
		}
		return arrivals, nil
	}

	if count <= 0 {
		return nil, errors.New("provide --arrivals or a positive --count")
	}
	if count > maxSimulatedArrivals {
		return nil, fmt.Errorf("count must be at most %d, got %d", maxSimulatedArrivals, count)
	}
	step, err := offsetDuration(interval)
	if err != nil {
		return nil, fmt.Errorf("interval: %w", err)
	}
	if step > 0 && int64(count-1) > math.MaxInt64/int64(step) {
		return nil, fmt.Errorf("count %d at interval %vs overflows the simulated clock", count, interval)
	}

	arrivals := make([]time.Duration, count)
	for i := range arrivals {
		arrivals[i] = time.Duration(i) * step
	}
	return arrivals, nil
}

// offsetDuration converts non-negative seconds to a Duration that fits in int64.
func offsetDuration(seconds float64) (time.Duration, error) {
	if math.IsNaN(seconds) || math.IsInf(seconds, 0) || seconds < 0 {
		return 0, fmt.Errorf("offset must be a non-negative number, got %v", seconds)
	}
	ns := math.Round(seconds * float64(time.Second))
	if ns >= math.MaxInt64 {
		return 0, fmt.Errorf("offset %vs is too large", seconds)
	}
	return time.Duration(ns), nil
}

// simulate feeds arrivals through a fresh keeper.
func simulate(service string, requests int, period time.Duration, arrivals []time.Duration) (*output.Report, error) {
	keeper, err := window.NewKeeper(requests, period)
	if err != nil {
		return nil, err
	}

	start := time.Unix(0, 0).UTC()
	decisions := make([]window.Decision, 0, len(arrivals))
	for _, offset := range arrivals {
		decisions = append(decisions, keeper.RecordAndDecide(start.Add(offset)))
	}
	return output.NewReport(service, keeper.Snapshot(), arrivals, decisions), nil
}

func summaryLines(report *output.Report) string {
	lines := []string{
		"Simulation Summary",
		"",
		fmt.Sprintf("Arrivals:  %d", report.Summary.Total),
		fmt.Sprintf("Immediate: %d", report.Summary.Immediate),
		fmt.Sprintf("Delayed:   %d", report.Summary.Delayed),
		fmt.Sprintf("Max delay: %s s", report.Summary.MaxDelay),
		fmt.Sprintf("Overflow:  %d", report.Summary.FinalOverflow),
	}
	return strings.Join(lines, "\n")
}
