package trace

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// HeaderVersion is the current header sidecar format version.
const HeaderVersion = 1

// HorizonPolicy states how a NextWrite sentinel is read: the trace is a
// finite sample, so "no later write" is either "current forever" or "current
// until the end of what was observed".
type HorizonPolicy string

const (
	// HorizonOpen treats the final version of an object as current indefinitely.
	HorizonOpen HorizonPolicy = "open"
	// HorizonObserved only vouches for the final version up to the last
	// timestamp of the trace; later instants are unknown.
	HorizonObserved HorizonPolicy = "observed"
)

// validHorizonPolicies maps accepted policy strings.
var validHorizonPolicies = map[HorizonPolicy]bool{
	HorizonOpen:     true,
	HorizonObserved: true,
	"":              true, // empty defaults to open
}

// IsValidHorizonPolicy returns true if s names a recognized horizon policy.
func IsValidHorizonPolicy(s string) bool {
	return validHorizonPolicies[HorizonPolicy(s)]
}

// OrDefault returns HorizonOpen for the empty policy.
func (p HorizonPolicy) OrDefault() HorizonPolicy {
	if p == "" {
		return HorizonOpen
	}
	return p
}

// Header captures metadata written next to an annotated trace.
type Header struct {
	Version          int           `yaml:"trace_version"`
	TimeUnit         string        `yaml:"time_unit"`
	CreatedAt        string        `yaml:"created_at,omitempty"`
	Source           string        `yaml:"source,omitempty"`
	HorizonPolicy    HorizonPolicy `yaml:"horizon_policy"`
	NormalOnly       bool          `yaml:"normal_only,omitempty"`
	FirstTimestampMs int64         `yaml:"first_timestamp_ms"`
	LastTimestampMs  int64         `yaml:"last_timestamp_ms"`
	Records          int           `yaml:"records"`
	Objects          int           `yaml:"objects"`
	Writes           int           `yaml:"writes"`
}

// NewHeader describes an annotated trace.
func NewHeader(t *Trace, source string, policy HorizonPolicy) *Header {
	s := Summarize(t)
	first, last := t.Horizon()
	return &Header{
		Version:          HeaderVersion,
		TimeUnit:         "milliseconds",
		CreatedAt:        time.Now().UTC().Format(time.RFC3339),
		Source:           source,
		HorizonPolicy:    policy.OrDefault(),
		FirstTimestampMs: first,
		LastTimestampMs:  last,
		Records:          s.Records,
		Objects:          s.Objects,
		Writes:           s.Writes,
	}
}

// ExportHeader writes the header as YAML.
func ExportHeader(path string, h *Header) error {
	data, err := yaml.Marshal(h)
	if err != nil {
		return fmt.Errorf("marshaling trace header: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &WriteError{Path: path, Err: err}
	}
	return nil
}

// LoadHeader reads a header sidecar. Unknown keys are rejected.
func LoadHeader(path string) (*Header, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading trace header: %w", err)
	}
	var h Header
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&h); err != nil {
		return nil, fmt.Errorf("parsing trace header: %w", err)
	}
	if !validHorizonPolicies[h.HorizonPolicy] {
		return nil, fmt.Errorf("unknown horizon_policy %q; valid: open, observed", h.HorizonPolicy)
	}
	h.HorizonPolicy = h.HorizonPolicy.OrDefault()
	return &h, nil
}
