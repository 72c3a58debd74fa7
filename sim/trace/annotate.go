package trace

import (
	"fmt"

	"github.com/sirupsen/logrus"
)

// Annotate stamps Version, LastWrite and NextWrite on every record of t.
// Previously derived values are overwritten, so annotating twice yields the
// same result.
func Annotate(t *Trace) error {
	if err := AssignVersions(t.Records); err != nil {
		return fmt.Errorf("assigning versions: %w", err)
	}
	if err := ComputeWindows(t.Records); err != nil {
		return fmt.Errorf("computing freshness windows: %w", err)
	}
	return nil
}

// AnnotateOptions configures AnnotateFile.
type AnnotateOptions struct {
	// HeaderPath, when set, receives a YAML header describing the output.
	HeaderPath string
	// NormalOnly drops anomalous requests before annotation.
	NormalOnly    bool
	HorizonPolicy HorizonPolicy
}

// AnnotateFile loads inPath, annotates it and exports it to outPath.
//
// The input is loaded and annotated completely before outPath is created, so
// a *ParseError or *OrderingViolation never leaves partial output behind. On
// a *WriteError the annotated trace is still returned so the caller can retry
// the export without recomputing.
func AnnotateFile(inPath, outPath string, opts AnnotateOptions) (*Trace, error) {
	t, err := LoadFile(inPath)
	if err != nil {
		return nil, err
	}
	if opts.NormalOnly {
		before := len(t.Records)
		t = t.Filter((*Record).IsNormal)
		logrus.Infof("kept %d of %d requests labelled %q", len(t.Records), before, NormalityNormal)
	}
	if err := Annotate(t); err != nil {
		return nil, err
	}

	s := Summarize(t)
	logrus.Debugf("annotated %d records: %d objects, %d writes, max version %d, %d open-ended windows",
		s.Records, s.Objects, s.Writes, s.MaxVersion, s.OpenEnded)

	if err := ExportFile(outPath, t); err != nil {
		return t, err
	}
	if opts.HeaderPath != "" {
		h := NewHeader(t, inPath, opts.HorizonPolicy)
		h.NormalOnly = opts.NormalOnly
		if err := ExportHeader(opts.HeaderPath, h); err != nil {
			return t, err
		}
	}
	return t, nil
}
