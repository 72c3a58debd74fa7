package cmd

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ds2os-caching/cachetrace/sim/trace"
)

var (
	contentsTracePath  string
	contentsNormalOnly bool
	contentsNoVersions bool
)

var contentsCmd = &cobra.Command{
	Use:   "contents",
	Short: "Print the content catalogue of a trace (contents.txt, or contentsNoVersions.txt with --no-versions)",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runContents(os.Stdout, contentsTracePath, contentsNormalOnly, !contentsNoVersions); err != nil {
			logrus.Fatalf("Content export failed: %v", err)
		}
	},
}

func runContents(w io.Writer, path string, normalOnly, withVersions bool) error {
	t, err := trace.LoadFile(path)
	if err != nil {
		return err
	}
	if normalOnly {
		t = t.Filter((*trace.Record).IsNormal)
	}
	if err := trace.Annotate(t); err != nil {
		return err
	}
	logrus.Infof("%d objects in catalogue", len(t.Objects()))
	return trace.ExportContents(w, t, withVersions)
}

func init() {
	contentsCmd.Flags().StringVar(&contentsTracePath, "trace", "", "Input trace CSV")
	contentsCmd.Flags().BoolVar(&contentsNormalOnly, "normal-only", false, "Drop requests not labelled normal before versioning")
	contentsCmd.Flags().BoolVar(&contentsNoVersions, "no-versions", false, "One address per line without versions")
	_ = contentsCmd.MarkFlagRequired("trace")
}
