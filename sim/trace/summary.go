package trace

// Summary aggregates statistics from an annotated Trace.
type Summary struct {
	Records         int            `json:"records"`
	Reads           int            `json:"reads"`
	Writes          int            `json:"writes"`
	Subscribes      int            `json:"subscribes"`
	Objects         int            `json:"objects"`           // distinct object addresses
	NeverWritten    int            `json:"never_written"`     // objects accessed but never written
	MaxVersion      int            `json:"max_version"`
	OpenEnded       int            `json:"open_ended"`        // records whose window has no closing write
	WritesPerObject map[string]int `json:"writes_per_object"` // object address → write count
}

// Summarize computes aggregate statistics from a Trace.
// Safe for nil or empty traces (returns zero-value fields).
func Summarize(t *Trace) *Summary {
	summary := &Summary{
		WritesPerObject: make(map[string]int),
	}
	if t == nil {
		return summary
	}

	seen := make(map[string]bool)
	for i := range t.Records {
		r := &t.Records[i]
		summary.Records++
		switch r.Operation {
		case OpRead:
			summary.Reads++
		case OpWrite:
			summary.Writes++
			summary.WritesPerObject[r.ObjectAddress]++
		case OpSubscribe:
			summary.Subscribes++
		}
		seen[r.ObjectAddress] = true
		if r.Version > summary.MaxVersion {
			summary.MaxVersion = r.Version
		}
		if r.NextWrite == NoWrite {
			summary.OpenEnded++
		}
	}

	summary.Objects = len(seen)
	summary.NeverWritten = summary.Objects - len(summary.WritesPerObject)
	return summary
}
