package cmd

import (
	"context"
	"fmt"
	"io"
	"os"

	"github.com/bytedance/sonic"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/ds2os-caching/cachetrace/sim/store"
	"github.com/ds2os-caching/cachetrace/sim/trace"
)

var (
	lookupSQLitePath string
	lookupName       string
	lookupObject     string
	lookupAt         int64
)

var lookupCmd = &cobra.Command{
	Use:   "lookup",
	Short: "Print the version of an object current at an instant of a stored trace",
	Run: func(cmd *cobra.Command, args []string) {
		if err := runLookup(cmd.Context(), os.Stdout, lookupSQLitePath, lookupName, lookupObject, lookupAt); err != nil {
			logrus.Fatalf("Lookup failed: %v", err)
		}
	},
}

// lookupResult is the JSON document printed by lookup. Version is absent when
// the stored trace does not determine it; Unwritten is set for instants
// before the first write.
type lookupResult struct {
	Trace     string `json:"trace"`
	Object    string `json:"object"`
	At        int64  `json:"at"`
	Version   *int   `json:"version,omitempty"`
	Unwritten bool   `json:"unwritten,omitempty"`
}

func runLookup(ctx context.Context, w io.Writer, dbPath, name, object string, at int64) error {
	db, err := store.Open(ctx, dbPath)
	if err != nil {
		return err
	}
	defer db.Close() //nolint:errcheck // read-only

	id, err := db.TraceID(ctx, name)
	if err != nil {
		return err
	}
	generation, ok, err := db.VersionAt(ctx, id, object, at)
	if err != nil {
		return err
	}

	res := lookupResult{Trace: name, Object: object, At: at}
	switch {
	case !ok:
		logrus.Warnf("No version of %s is determined at %d", object, at)
	case generation == trace.Unwritten:
		v := 0
		res.Version, res.Unwritten = &v, true
	default:
		res.Version = &generation
	}

	data, err := sonic.ConfigStd.Marshal(res)
	if err != nil {
		return fmt.Errorf("encoding lookup: %w", err)
	}
	if _, err := fmt.Fprintln(w, string(data)); err != nil {
		return fmt.Errorf("writing lookup: %w", err)
	}
	return nil
}

func init() {
	lookupCmd.Flags().StringVar(&lookupSQLitePath, "sqlite", "", "SQLite database written by annotate --sqlite")
	lookupCmd.Flags().StringVar(&lookupName, "name", "", "Stored trace name")
	lookupCmd.Flags().StringVar(&lookupObject, "object", "", "accessedNodeAddress of the object")
	lookupCmd.Flags().Int64Var(&lookupAt, "at", 0, "Instant (ms)")
	for _, f := range []string{"sqlite", "name", "object", "at"} {
		_ = lookupCmd.MarkFlagRequired(f)
	}
}
