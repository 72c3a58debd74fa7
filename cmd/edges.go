package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ds2os-caching/cachetrace/sim/topology"
	"github.com/ds2os-caching/cachetrace/sim/trace"
)

var (
	edgesTracePath  string
	edgesNormalOnly bool
	edgesFormat     string
)

var edgesCmd = &cobra.Command{
	Use:   "edges",
	Short: "Print the agent communication graph of a trace",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runEdges(os.Stdout, edgesTracePath, edgesNormalOnly, edgesFormat); err != nil {
			logrus.Fatalf("Edge extraction failed: %v", err)
		}
	},
}

func runEdges(w io.Writer, path string, normalOnly bool, format string) error {
	t, err := trace.LoadFile(path)
	if err != nil {
		return err
	}
	if normalOnly {
		t = t.Filter((*trace.Record).IsNormal)
	}
	edges, err := topology.ExtractEdges(t.Records)
	if err != nil {
		return err
	}
	logrus.Infof("%d agents, %d edges", len(edges.Nodes()), edges.Len())

	switch format {
	case "json":
		return edges.WriteJSON(w)
	case "dot":
		return edges.WriteDOT(w)
	case "csv":
		return edges.WriteCSV(w)
	default:
		return fmt.Errorf("unknown format %q; valid: json, dot, csv", format)
	}
}

func init() {
	edgesCmd.Flags().StringVar(&edgesTracePath, "trace", "", "Input trace CSV")
	edgesCmd.Flags().BoolVar(&edgesNormalOnly, "normal-only", false, "Ignore requests not labelled normal")
	edgesCmd.Flags().StringVar(&edgesFormat, "format", "json", "Output format: json, dot or csv")
	_ = edgesCmd.MarkFlagRequired("trace")
}
