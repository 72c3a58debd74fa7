// Package freshness defines how the freshness strategies studied with the
// external simulator treat a cached copy, given an annotated trace.
//
// A strategy is evaluated per request: the request carries the version that is
// current at its timestamp (see trace.Annotate) and the cache holds a copy
// fetched earlier. The Outcome says which version is served, whether the
// producer had to be contacted, and whether the answer was stale.
package freshness

import (
	"fmt"

	"gonum.org/v1/gonum/floats"

	"github.com/ds2os-caching/cachetrace/sim/analysis"
	"github.com/ds2os-caching/cachetrace/sim/trace"
)

// Strategy names a freshness strategy.
type Strategy string

const (
	// StrategyPush: producers push every update, caches always hold the
	// current version.
	StrategyPush Strategy = "producer-push"
	// StrategyInvalidation: producers invalidate cached copies on update; the
	// next request refetches at an extra messaging delay.
	StrategyInvalidation Strategy = "invalidation"
	// StrategyTTL: a copy is trusted until its TTL deadline.
	StrategyTTL Strategy = "ttl"
	// StrategyPoll: the cache is never trusted, every request revalidates.
	StrategyPoll Strategy = "poll-every-time"
)

// validStrategies maps accepted strategy names.
var validStrategies = map[Strategy]bool{
	StrategyPush:         true,
	StrategyInvalidation: true,
	StrategyTTL:          true,
	StrategyPoll:         true,
}

// IsValidStrategy returns true if s names a known strategy.
func IsValidStrategy(s string) bool {
	return validStrategies[Strategy(s)]
}

// Strategies lists every strategy in a stable order.
func Strategies() []Strategy {
	return []Strategy{StrategyPush, StrategyInvalidation, StrategyTTL, StrategyPoll}
}

// Validity is the state of a version at a given instant.
type Validity int

const (
	Current Validity = iota
	NotCurrent
	Unknown
)

func (v Validity) String() string {
	switch v {
	case Current:
		return "current"
	case NotCurrent:
		return "not-current"
	default:
		return "unknown"
	}
}

// ValidAt reports whether the version bounded by w is current at instant at.
// horizon is the last observed timestamp of the trace. Under
// trace.HorizonObserved an open-ended window is only vouched for up to the
// horizon; later instants are Unknown.
func ValidAt(w trace.Window, at int64, policy trace.HorizonPolicy, horizon int64) Validity {
	if !w.Contains(at) {
		return NotCurrent
	}
	if w.OpenEnded() && policy.OrDefault() == trace.HorizonObserved && at > horizon {
		return Unknown
	}
	return Current
}

// CachedCopy is a copy of an object held by a cache. Generation is the
// trace.Record.Generation of the request that fetched it.
type CachedCopy struct {
	Generation int
	FetchedAt  int64 // ms
}

// NewCachedCopy returns the copy a cache holds after fetching for req.
func NewCachedCopy(req *trace.Record) *CachedCopy {
	return &CachedCopy{Generation: req.Generation(), FetchedAt: req.Timestamp}
}

// Outcome describes how a request was answered.
type Outcome struct {
	// ServedGeneration is trace.Unwritten when the initial value was served.
	ServedGeneration int
	FromCache        bool  // answered without contacting the producer
	Revalidated      bool  // the producer was contacted
	Stale            bool  // ServedGeneration is older than the current one
	ExtraDelayMs     int64 // messaging overhead on top of the fetch
}

// Config parameterizes an Evaluator.
type Config struct {
	Strategy            Strategy `yaml:"strategy"`
	InvalidationDelayMs int64    `yaml:"invalidation_delay_ms,omitempty"`
	// TTLMs is a fixed TTL. 0 derives a TTL per object from the shortest
	// observed gap between its writes.
	TTLMs int64 `yaml:"ttl_ms,omitempty"`
	// FallbackTTLMs applies to objects without two observed writes when TTLMs
	// is 0. The default 0 makes such copies revalidate on every request.
	FallbackTTLMs int64 `yaml:"fallback_ttl_ms,omitempty"`
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if !validStrategies[c.Strategy] {
		return fmt.Errorf("unknown freshness strategy %q; valid: producer-push, invalidation, ttl, poll-every-time", c.Strategy)
	}
	if c.InvalidationDelayMs < 0 {
		return fmt.Errorf("invalidation delay must be non-negative, got %d", c.InvalidationDelayMs)
	}
	if c.TTLMs < 0 || c.FallbackTTLMs < 0 {
		return fmt.Errorf("TTL must be non-negative, got ttl=%d fallback=%d", c.TTLMs, c.FallbackTTLMs)
	}
	return nil
}

// Evaluator applies one strategy to the requests of an annotated trace.
type Evaluator struct {
	cfg  Config
	ttls map[string]int64
}

// NewEvaluator validates cfg and, for TTL without a fixed value, derives the
// per-object TTLs from records.
func NewEvaluator(cfg Config, records []trace.Record) (*Evaluator, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	e := &Evaluator{cfg: cfg}
	if cfg.Strategy == StrategyTTL && cfg.TTLMs == 0 {
		e.ttls = ConservativeTTLs(records)
	}
	return e, nil
}

// ConservativeTTLs returns, per object, the shortest gap between two of its
// writes: a copy fetched right after an update is never older than one
// update period when its TTL expires.
func ConservativeTTLs(records []trace.Record) map[string]int64 {
	ttls := make(map[string]int64)
	for obj, gaps := range analysis.WriteInterarrivalsByObject(records) {
		ttls[obj] = int64(floats.Min(gaps))
	}
	return ttls
}

// TTL returns the TTL applied to object.
func (e *Evaluator) TTL(object string) int64 {
	if e.cfg.TTLMs > 0 {
		return e.cfg.TTLMs
	}
	if ttl, ok := e.ttls[object]; ok {
		return ttl
	}
	return e.cfg.FallbackTTLMs
}

// Evaluate answers req from cached, which is nil on a cache miss. req must be
// annotated. Writes always go to the producer and are never stale.
//
// Copies are compared by generation, not by version number: a copy fetched
// before the first write of its object is superseded by that write even
// though both carry version 0.
func (e *Evaluator) Evaluate(req *trace.Record, cached *CachedCopy) Outcome {
	current := req.Generation()
	fetch := Outcome{ServedGeneration: current, Revalidated: true}
	if cached == nil || req.IsWrite() {
		return fetch
	}

	switch e.cfg.Strategy {
	case StrategyPush:
		return Outcome{ServedGeneration: current, FromCache: true}
	case StrategyInvalidation:
		if cached.Generation == current {
			return Outcome{ServedGeneration: current, FromCache: true}
		}
		fetch.ExtraDelayMs = e.cfg.InvalidationDelayMs
		return fetch
	case StrategyTTL:
		if req.Timestamp < cached.FetchedAt+e.TTL(req.ObjectAddress) {
			return Outcome{
				ServedGeneration: cached.Generation,
				FromCache:        true,
				Stale:            cached.Generation != current,
			}
		}
		return fetch
	default: // StrategyPoll
		return fetch
	}
}

// Report counts the outcomes of replaying a trace against one strategy.
type Report struct {
	Strategy     Strategy `json:"strategy"`
	Requests     int      `json:"requests"` // reads and subscribes
	FromCache    int      `json:"from_cache"`
	Revalidated  int      `json:"revalidated"`
	Stale        int      `json:"stale"`
	ExtraDelayMs int64    `json:"extra_delay_ms"`
}

// Replay answers every read and subscribe of an annotated trace from a single
// cache holding one copy per object. A copy is stored on each fetch; writes
// go to the producer and are not counted.
func (e *Evaluator) Replay(records []trace.Record) Report {
	r := Report{Strategy: e.cfg.Strategy}
	cache := make(map[string]*CachedCopy)
	for i := range records {
		req := &records[i]
		if req.IsWrite() {
			continue
		}
		out := e.Evaluate(req, cache[req.ObjectAddress])
		r.Requests++
		if out.FromCache {
			r.FromCache++
		}
		if out.Revalidated {
			r.Revalidated++
			cache[req.ObjectAddress] = NewCachedCopy(req)
		}
		if out.Stale {
			r.Stale++
		}
		r.ExtraDelayMs += out.ExtraDelayMs
	}
	return r
}

// ReplayAll replays records against every strategy, sharing the delay and TTL
// settings of base.
func ReplayAll(base Config, records []trace.Record) ([]Report, error) {
	reports := make([]Report, 0, len(validStrategies))
	for _, s := range Strategies() {
		cfg := base
		cfg.Strategy = s
		e, err := NewEvaluator(cfg, records)
		if err != nil {
			return nil, err
		}
		reports = append(reports, e.Replay(records))
	}
	return reports, nil
}
