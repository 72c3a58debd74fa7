// Package trace loads DS2OS access traces and annotates every request with the
// version of the accessed object and the window during which that version was
// current. This package has no dependencies on the other sim/ packages.
package trace

import (
	"fmt"
	"strings"
)

// Operation is the access type of a request.
type Operation string

const (
	OpRead      Operation = "read"
	OpWrite     Operation = "write"
	OpSubscribe Operation = "subscribe"
)

// validOperations maps accepted operation strings.
var validOperations = map[Operation]bool{
	OpRead:      true,
	OpWrite:     true,
	OpSubscribe: true,
}

// ParseOperation normalizes s (surrounding whitespace, case) and reports
// whether it names a known operation.
func ParseOperation(s string) (Operation, bool) {
	op := Operation(strings.ToLower(strings.TrimSpace(s)))
	return op, validOperations[op]
}

// NoWrite is the sentinel stored in LastWrite or NextWrite when no such write
// exists in the trace.
const NoWrite int64 = -1

// Unwritten is the generation observed by reads and subscribes that precede
// the first write to their object. Such records carry Version 0, the number
// the first write also creates, so Generation tells the two apart.
const Unwritten = -1

// NormalityNormal marks a request that is not part of an injected anomaly.
const NormalityNormal = "normal"

// Record is one request of the trace. The typed fields are parsed from Fields,
// which keeps the raw row so export reproduces the original columns verbatim.
type Record struct {
	SourceID            string
	SourceAddress       string
	SourceType          string
	SourceLocation      string
	DestinationAddress  string
	DestinationType     string
	DestinationLocation string
	ObjectAddress       string
	ObjectType          string
	Operation           Operation
	Value               string
	Timestamp           int64 // milliseconds
	Normality           string

	Fields []string

	// Derived by Annotate.
	Version   int
	LastWrite int64
	NextWrite int64
}

// IsWrite reports whether the record creates a new version of its object.
func (r *Record) IsWrite() bool { return r.Operation == OpWrite }

// IsNormal reports whether the record belongs to regular (non-anomalous) traffic.
func (r *Record) IsNormal() bool {
	return strings.TrimSpace(r.Normality) == NormalityNormal
}

// Generation identifies the state of the object the record observed: the
// version created by the closest preceding write, or Unwritten when no write
// precedes it. A write observes the version it creates. Requires Annotate.
func (r *Record) Generation() int {
	if !r.IsWrite() && r.LastWrite == NoWrite {
		return Unwritten
	}
	return r.Version
}

// Window returns the freshness window stamped on the record.
func (r *Record) Window() Window {
	return Window{LastWrite: r.LastWrite, NextWrite: r.NextWrite}
}

func (r Record) String() string {
	return fmt.Sprintf("Record{object=%s op=%s t=%d v=%d window=%s}",
		r.ObjectAddress, r.Operation, r.Timestamp, r.Version, r.Window())
}

// Window is the half-open interval [LastWrite, NextWrite) during which the
// version a record refers to was current. NoWrite on the left reads as -inf,
// on the right as +inf.
type Window struct {
	LastWrite int64
	NextWrite int64
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t int64) bool {
	if w.LastWrite != NoWrite && t < w.LastWrite {
		return false
	}
	if w.NextWrite != NoWrite && t >= w.NextWrite {
		return false
	}
	return true
}

// OpenEnded reports whether no later write bounds the window.
func (w Window) OpenEnded() bool { return w.NextWrite == NoWrite }

func (w Window) String() string {
	left, right := "-inf", "+inf"
	if w.LastWrite != NoWrite {
		left = fmt.Sprintf("%d", w.LastWrite)
	}
	if w.NextWrite != NoWrite {
		right = fmt.Sprintf("%d", w.NextWrite)
	}
	return "[" + left + ", " + right + ")"
}
