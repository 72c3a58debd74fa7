package cmd

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ds2os-caching/cachetrace/sim/store"
	"github.com/ds2os-caching/cachetrace/sim/topology"
	"github.com/ds2os-caching/cachetrace/sim/trace"
)

var (
	annotateTracePath  string
	annotateOutPath    string
	annotateHeaderPath string
	annotateSQLitePath string
	annotateName       string
	annotateNormalOnly bool
	annotatePolicy     string
)

var annotateCmd = &cobra.Command{
	Use:   "annotate",
	Short: "Stamp version, lastWrite and nextWrite on every request of a trace",
	Run: func(cmd *cobra.Command, args []string) {
		if !trace.IsValidHorizonPolicy(annotatePolicy) {
			logrus.Fatalf("Unknown horizon policy %q; valid: open, observed", annotatePolicy)
		}
		opts := annotateOptions{
			in:         annotateTracePath,
			out:        annotateOutPath,
			sqlitePath: annotateSQLitePath,
			name:       annotateName,
			AnnotateOptions: trace.AnnotateOptions{
				HeaderPath:    annotateHeaderPath,
				NormalOnly:    annotateNormalOnly,
				HorizonPolicy: trace.HorizonPolicy(annotatePolicy),
			},
		}
		if err := runAnnotate(cmd.Context(), opts); err != nil {
			logrus.Fatalf("Annotation failed: %v", err)
		}
	},
}

type annotateOptions struct {
	trace.AnnotateOptions
	in, out    string
	sqlitePath string
	name       string
}

func runAnnotate(ctx context.Context, opts annotateOptions) error {
	t, err := trace.AnnotateFile(opts.in, opts.out, opts.AnnotateOptions)
	if err != nil {
		var ord *trace.OrderingViolation
		if errors.As(err, &ord) {
			logrus.Errorf("Trace %s is not sorted by timestamp; sort it before annotating", opts.in)
		}
		return err
	}

	s := trace.Summarize(t)
	logrus.Infof("Annotated %d requests on %d objects (%d writes, %d never written) -> %s",
		s.Records, s.Objects, s.Writes, s.NeverWritten, opts.out)

	if opts.sqlitePath == "" {
		return nil
	}
	if ctx == nil {
		ctx = context.Background()
	}
	db, err := store.Open(ctx, opts.sqlitePath)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // read-after-write not needed

	edges, err := topology.ExtractEdges(t.Records)
	if err != nil {
		logrus.Warnf("Storing trace without agent graph: %v", err)
		edges = nil
	}
	name := opts.name
	if name == "" {
		name = strings.TrimSuffix(filepath.Base(opts.in), filepath.Ext(opts.in))
	}
	id, err := db.SaveTrace(ctx, name, t, opts.HorizonPolicy, edges)
	if err != nil {
		return fmt.Errorf("saving trace to %s: %w", opts.sqlitePath, err)
	}
	logrus.Infof("Stored trace %q (id %d) in %s", name, id, opts.sqlitePath)
	return nil
}

func init() {
	annotateCmd.Flags().StringVar(&annotateTracePath, "trace", "", "Input trace CSV")
	annotateCmd.Flags().StringVar(&annotateOutPath, "out", "", "Annotated output CSV")
	annotateCmd.Flags().StringVar(&annotateHeaderPath, "header", "", "Optional YAML header sidecar")
	annotateCmd.Flags().StringVar(&annotateSQLitePath, "sqlite", "", "Optional SQLite database receiving the annotated trace")
	annotateCmd.Flags().StringVar(&annotateName, "name", "", "Trace name in the SQLite database (default: input file name)")
	annotateCmd.Flags().BoolVar(&annotateNormalOnly, "normal-only", false, "Drop requests not labelled normal")
	annotateCmd.Flags().StringVar(&annotatePolicy, "horizon-policy", string(trace.HorizonOpen), "Meaning of a missing next write: open or observed")
	_ = annotateCmd.MarkFlagRequired("trace")
	_ = annotateCmd.MarkFlagRequired("out")
}
