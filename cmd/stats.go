package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ds2os-caching/cachetrace/sim/analysis"
	"github.com/ds2os-caching/cachetrace/sim/freshness"
	"github.com/ds2os-caching/cachetrace/sim/trace"
)

var (
	statsTracePath    string
	statsSource       string
	statsRooms        bool
	statsFreshness    bool
	statsInvalidation int64
	statsTTL          int64
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print trace statistics as JSON",
	Run: func(cmd *cobra.Command, args []string) {
		opts := statsOptions{source: statsSource, rooms: statsRooms}
		if statsFreshness {
			opts.freshness = &freshness.Config{InvalidationDelayMs: statsInvalidation, TTLMs: statsTTL}
		}
		if err := runStats(os.Stdout, statsTracePath, opts); err != nil {
			logrus.Fatalf("Statistics failed: %v", err)
		}
	},
}

type statsOptions struct {
	source string
	rooms  bool
	// freshness replays the trace against every strategy when non-nil; its
	// Strategy is ignored.
	freshness *freshness.Config
}

// statsReport is the JSON document printed by stats.
type statsReport struct {
	Trace     *trace.Summary      `json:"trace"`
	Source    string              `json:"source,omitempty"`
	Writes    *analysis.Stats     `json:"write_interarrival_ms,omitempty"`
	Rooms     map[string][]string `json:"rooms,omitempty"`
	Freshness []freshness.Report  `json:"freshness,omitempty"`
}

func runStats(w io.Writer, path string, opts statsOptions) error {
	t, err := trace.LoadFile(path)
	if err != nil {
		return err
	}
	if err := trace.Annotate(t); err != nil {
		return err
	}

	report := statsReport{Trace: trace.Summarize(t)}
	normal := analysis.NormalOnly(t.Records)
	if opts.source != "" {
		report.Source = opts.source
		gaps := analysis.WriteInterarrivals(normal, opts.source)
		if s, err := analysis.Summarize(gaps); err != nil {
			logrus.Warnf("Source %q has fewer than two writes; no inter-arrival statistics", opts.source)
		} else {
			report.Writes = &s
		}
	}
	if opts.rooms {
		report.Rooms = analysis.Rooms(normal)
	}
	if opts.freshness != nil {
		reports, err := freshness.ReplayAll(*opts.freshness, t.Records)
		if err != nil {
			return err
		}
		report.Freshness = reports
	}

	data, err := sonic.ConfigStd.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding statistics: %w", err)
	}
	if _, err := fmt.Fprintln(w, string(data)); err != nil {
		return fmt.Errorf("writing statistics: %w", err)
	}
	return nil
}

func init() {
	statsCmd.Flags().StringVar(&statsTracePath, "trace", "", "Input trace CSV")
	statsCmd.Flags().StringVar(&statsSource, "source", "", "sourceID whose write inter-arrival times are summarized")
	statsCmd.Flags().BoolVar(&statsRooms, "rooms", false, "List the sources of every location")
	statsCmd.Flags().BoolVar(&statsFreshness, "freshness", false, "Replay reads and subscribes against every freshness strategy")
	statsCmd.Flags().Int64Var(&statsInvalidation, "invalidation-delay", 0, "Invalidation message delay (ms) used by --freshness")
	statsCmd.Flags().Int64Var(&statsTTL, "ttl", 0, "Fixed TTL (ms) used by --freshness; 0 derives one per object from its write gaps")
	_ = statsCmd.MarkFlagRequired("trace")
}
