// Package experiment builds the queue of experiments run by the external cache
// network simulator over an annotated trace.
//
// A Sweep lists the values to explore per dimension; Build expands it into one
// Descriptor per combination, in a fixed order so that queues are reproducible.
package experiment

import (
	"bytes"
	"fmt"
	"math"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/ds2os-caching/cachetrace/sim/freshness"
)

// Defaults applied by LoadSweep to omitted fields.
const (
	DefaultTopology         = "DS2OS"
	DefaultWorkload         = "DS2OS"
	DefaultCachePlacement   = "UNIFORM"
	DefaultContentPlacement = "DS2OS"
)

// Sweep is the YAML experiment sweep configuration.
type Sweep struct {
	Topology         string       `yaml:"topology"`
	Workload         WorkloadSpec `yaml:"workload"`
	CachePlacement   string       `yaml:"cache_placement"`
	ContentPlacement string       `yaml:"content_placement"`

	Strategies          []string  `yaml:"strategies"`
	ReplacementPolicies []string  `yaml:"replacement_policies"`
	NetworkCache        []float64 `yaml:"network_cache"` // fraction of contents cached network-wide
	// Freshness strategies to compare. Empty runs every combination once
	// without a freshness tag.
	Freshness []freshness.Strategy `yaml:"freshness,omitempty"`

	BernoulliP          float64 `yaml:"bernoulli_p,omitempty"` // RAND_BERNOULLI caching probability
	InvalidationDelayMs int64   `yaml:"invalidation_delay_ms,omitempty"`
	TTLMs               int64   `yaml:"ttl_ms,omitempty"`
	Replications        int     `yaml:"replications"`
}

// WorkloadSpec points the simulator at the trace to replay.
type WorkloadSpec struct {
	Name         string `yaml:"name"`
	ReqsFile     string `yaml:"reqs_file"`
	ContentsFile string `yaml:"contents_file"`
}

// Valid value registries.
var (
	validStrategies = map[string]bool{
		"NO_CACHE": true, "LCE": true, "LCD": true, "EDGE": true, "CL4M": true,
		"PROB_CACHE": true, "RAND_BERNOULLI": true, "PCASTING": true,
	}
	validReplacementPolicies = map[string]bool{
		"NULL": true, "MIN": true, "FIFO": true, "LRU": true, "SLRU": true, "MDMR": true,
		"LFF": true, "PERFECT_LFU": true, "IN_CACHE_LFU": true, "IN_CACHE_LFU_EVICT_FIRST": true,
		"DS2OS_PERFECT_LFU": true, "RAND": true,
	}
)

// IsValidStrategy reports whether name is a known placement strategy.
func IsValidStrategy(name string) bool { return validStrategies[name] }

// IsValidReplacementPolicy reports whether name is a known replacement policy.
func IsValidReplacementPolicy(name string) bool { return validReplacementPolicies[name] }

// LoadSweep reads and parses a YAML sweep file and applies defaults.
// Uses strict parsing: unrecognized keys are rejected.
func LoadSweep(path string) (*Sweep, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading sweep config: %w", err)
	}
	var s Sweep
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&s); err != nil {
		return nil, fmt.Errorf("parsing sweep config: %w", err)
	}
	s.applyDefaults()
	return &s, nil
}

func (s *Sweep) applyDefaults() {
	if s.Topology == "" {
		s.Topology = DefaultTopology
	}
	if s.Workload.Name == "" {
		s.Workload.Name = DefaultWorkload
	}
	if s.CachePlacement == "" {
		s.CachePlacement = DefaultCachePlacement
	}
	if s.ContentPlacement == "" {
		s.ContentPlacement = DefaultContentPlacement
	}
	if s.Replications == 0 {
		s.Replications = 1
	}
}

// Validate checks every dimension of the sweep.
func (s *Sweep) Validate() error {
	if len(s.Strategies) == 0 || len(s.ReplacementPolicies) == 0 || len(s.NetworkCache) == 0 {
		return fmt.Errorf("strategies, replacement_policies and network_cache must each list at least one value")
	}
	if s.Workload.ReqsFile == "" {
		return fmt.Errorf("workload.reqs_file is required")
	}
	for _, name := range s.Strategies {
		if !validStrategies[name] {
			return fmt.Errorf("unknown strategy %q; valid: NO_CACHE, LCE, LCD, EDGE, CL4M, PROB_CACHE, RAND_BERNOULLI, PCASTING", name)
		}
		if name == "RAND_BERNOULLI" && (math.IsNaN(s.BernoulliP) || s.BernoulliP <= 0 || s.BernoulliP > 1) {
			return fmt.Errorf("RAND_BERNOULLI requires bernoulli_p in (0, 1], got %g", s.BernoulliP)
		}
	}
	for _, name := range s.ReplacementPolicies {
		if !validReplacementPolicies[name] {
			return fmt.Errorf("unknown replacement policy %q", name)
		}
	}
	for i, c := range s.NetworkCache {
		if math.IsNaN(c) || c <= 0 || c > 1 {
			return fmt.Errorf("network_cache[%d] must be in (0, 1], got %g", i, c)
		}
	}
	for _, f := range s.Freshness {
		if err := s.freshnessConfig(f).Validate(); err != nil {
			return err
		}
	}
	if s.Replications < 1 {
		return fmt.Errorf("replications must be positive, got %d", s.Replications)
	}
	return nil
}

func (s *Sweep) freshnessConfig(f freshness.Strategy) freshness.Config {
	return freshness.Config{
		Strategy:            f,
		InvalidationDelayMs: s.InvalidationDelayMs,
		TTLMs:               s.TTLMs,
	}
}

// Descriptor is one experiment of the queue.
type Descriptor struct {
	Topology         string             `yaml:"topology"`
	Workload         WorkloadSpec       `yaml:"workload"`
	CachePlacement   string             `yaml:"cache_placement"`
	ContentPlacement string             `yaml:"content_placement"`
	Strategy         string             `yaml:"strategy"`
	StrategyParams   map[string]float64 `yaml:"strategy_params,omitempty"`
	CachePolicy      string             `yaml:"cache_policy"`
	NetworkCache     float64            `yaml:"network_cache"`
	Freshness        *freshness.Config  `yaml:"freshness,omitempty"`
	Replication      int                `yaml:"replication"`
	Desc             string             `yaml:"desc"`
}

// Build validates the sweep and expands it into descriptors. The order is
// strategy, replacement policy, network cache, freshness strategy, then
// replication, each following the order of the configuration.
func (s *Sweep) Build() ([]Descriptor, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	freshnessAxis := []*freshness.Config{nil}
	if len(s.Freshness) > 0 {
		freshnessAxis = freshnessAxis[:0]
		for _, f := range s.Freshness {
			cfg := s.freshnessConfig(f)
			freshnessAxis = append(freshnessAxis, &cfg)
		}
	}

	var out []Descriptor
	for _, strategy := range s.Strategies {
		for _, policy := range s.ReplacementPolicies {
			for _, cache := range s.NetworkCache {
				for _, fc := range freshnessAxis {
					for rep := 0; rep < s.Replications; rep++ {
						d := Descriptor{
							Topology:         s.Topology,
							Workload:         s.Workload,
							CachePlacement:   s.CachePlacement,
							ContentPlacement: s.ContentPlacement,
							Strategy:         strategy,
							CachePolicy:      policy,
							NetworkCache:     cache,
							Freshness:        fc,
							Replication:      rep,
						}
						if strategy == "RAND_BERNOULLI" {
							d.StrategyParams = map[string]float64{"p": s.BernoulliP}
						}
						d.Desc = d.describe(s.Replications > 1)
						out = append(out, d)
					}
				}
			}
		}
	}
	return out, nil
}

func (d *Descriptor) describe(withReplication bool) string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s topology, %s placement strategy, %s replacement, %s network cache",
		d.Topology, d.Strategy, d.CachePolicy, strconv.FormatFloat(d.NetworkCache, 'f', -1, 64))
	if d.Freshness != nil {
		fmt.Fprintf(&b, ", %s freshness", d.Freshness.Strategy)
	}
	if withReplication {
		fmt.Fprintf(&b, ", replication %d", d.Replication)
	}
	return b.String()
}
