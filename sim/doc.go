// Package sim groups the packages that prepare DS2OS access traces for the
// cache network simulator.
//
// # Reading Guide
//
// Start with these three files to understand the annotation:
//   - trace/record.go: Request records, operations and freshness windows
//   - trace/version.go: per-object version assignment (forward pass)
//   - trace/window.go: lastWrite/nextWrite stamping (forward and backward pass)
//
// # Architecture
//
// Everything is built on sim/trace; the other packages consume annotated
// records:
//   - sim/trace/: loading, annotation, CSV export, content catalogues and the
//     YAML header sidecar
//   - sim/topology/: agent communication graph (JSON, DOT, CSV)
//   - sim/freshness/: how producer-push, invalidation, TTL and polling treat
//     a cached copy of an annotated request, and replays of a whole trace
//   - sim/analysis/: write inter-arrival statistics and rooms
//   - sim/store/: SQLite database of annotated traces
//   - sim/experiment/: experiment queue for the simulator
//
// Versions and windows are recomputed from scratch on every annotation, so an
// annotated trace can be fed back in and produces identical output.
package sim
