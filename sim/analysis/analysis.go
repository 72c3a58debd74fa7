// Package analysis computes descriptive statistics over loaded traces: update
// inter-arrival times of producers and the room layout of the smart space.
package analysis

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"github.com/ds2os-caching/cachetrace/sim/trace"
)

// NormalOnly returns the records labelled normal, preserving order.
func NormalOnly(records []trace.Record) []trace.Record {
	out := make([]trace.Record, 0, len(records))
	for i := range records {
		if records[i].IsNormal() {
			out = append(out, records[i])
		}
	}
	return out
}

// WriteInterarrivals returns the gaps in milliseconds between successive
// writes issued by sourceID.
func WriteInterarrivals(records []trace.Record, sourceID string) []float64 {
	var gaps []float64
	prev, seen := int64(0), false
	for i := range records {
		r := &records[i]
		if r.SourceID != sourceID || !r.IsWrite() {
			continue
		}
		if seen {
			gaps = append(gaps, float64(r.Timestamp-prev))
		}
		prev, seen = r.Timestamp, true
	}
	return gaps
}

// WriteInterarrivalsByObject returns, per object address, the gaps in
// milliseconds between successive writes. Objects with fewer than two writes
// are omitted.
func WriteInterarrivalsByObject(records []trace.Record) map[string][]float64 {
	last := make(map[string]int64)
	gaps := make(map[string][]float64)
	for i := range records {
		r := &records[i]
		if !r.IsWrite() {
			continue
		}
		if prev, ok := last[r.ObjectAddress]; ok {
			gaps[r.ObjectAddress] = append(gaps[r.ObjectAddress], float64(r.Timestamp-prev))
		}
		last[r.ObjectAddress] = r.Timestamp
	}
	return gaps
}

// Stats is a five-number summary plus moments of a sample.
type Stats struct {
	Count  int     `json:"count"`
	Min    float64 `json:"min"`
	Q1     float64 `json:"q1"`
	Median float64 `json:"median"`
	Q3     float64 `json:"q3"`
	Max    float64 `json:"max"`
	Mean   float64 `json:"mean"`
	StdDev float64 `json:"stddev"`
}

// Summarize computes Stats for xs. The input is not modified.
// Returns an error for an empty sample.
func Summarize(xs []float64) (Stats, error) {
	if len(xs) == 0 {
		return Stats{}, fmt.Errorf("empty sample")
	}
	sorted := append([]float64(nil), xs...)
	sort.Float64s(sorted)

	s := Stats{
		Count:  len(sorted),
		Min:    floats.Min(sorted),
		Max:    floats.Max(sorted),
		Q1:     stat.Quantile(0.25, stat.Empirical, sorted, nil),
		Median: stat.Quantile(0.5, stat.Empirical, sorted, nil),
		Q3:     stat.Quantile(0.75, stat.Empirical, sorted, nil),
		Mean:   stat.Mean(sorted, nil),
	}
	if len(sorted) > 1 {
		s.StdDev = stat.StdDev(sorted, nil)
	}
	return s, nil
}

// Rooms groups the distinct source addresses of the trace by source location.
// Addresses within a room are sorted.
func Rooms(records []trace.Record) map[string][]string {
	sets := make(map[string]map[string]bool)
	for i := range records {
		r := &records[i]
		if sets[r.SourceLocation] == nil {
			sets[r.SourceLocation] = make(map[string]bool)
		}
		sets[r.SourceLocation][r.SourceAddress] = true
	}
	rooms := make(map[string][]string, len(sets))
	for loc, addrs := range sets {
		list := make([]string, 0, len(addrs))
		for a := range addrs {
			list = append(list, a)
		}
		sort.Strings(list)
		rooms[loc] = list
	}
	return rooms
}
