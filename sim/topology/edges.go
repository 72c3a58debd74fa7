// Package topology derives the agent communication graph of a trace. The
// graph is only used for visualisation; the simulator builds its own topology.
package topology

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/bytedance/sonic"

	"github.com/ds2os-caching/cachetrace/sim/trace"
)

const agentPrefix = "agent"

// AgentID extracts N from an address of the form /agent<N>/...
func AgentID(address string) (int, error) {
	parts := strings.SplitN(strings.TrimSpace(address), "/", 3)
	if len(parts) < 2 || parts[0] != "" || !strings.HasPrefix(parts[1], agentPrefix) {
		return 0, fmt.Errorf("address %q does not start with /%s<N>", address, agentPrefix)
	}
	id, err := strconv.Atoi(parts[1][len(agentPrefix):])
	if err != nil || id < 0 {
		return 0, fmt.Errorf("address %q: invalid agent id %q", address, parts[1][len(agentPrefix):])
	}
	return id, nil
}

// Edge is an unordered pair of agents, stored with A < B.
type Edge struct {
	A, B int
}

// NewEdge canonicalizes the pair so the smaller id comes first.
func NewEdge(a, b int) Edge {
	if a > b {
		a, b = b, a
	}
	return Edge{A: a, B: b}
}

// EdgeSet is a deduplicated set of edges.
type EdgeSet struct {
	edges map[Edge]struct{}
}

// NewEdgeSet creates an empty EdgeSet.
func NewEdgeSet() *EdgeSet {
	return &EdgeSet{edges: make(map[Edge]struct{})}
}

// Add inserts the edge between a and b. Self-loops are ignored.
func (s *EdgeSet) Add(a, b int) {
	if a == b {
		return
	}
	s.edges[NewEdge(a, b)] = struct{}{}
}

// Has reports whether a and b are connected.
func (s *EdgeSet) Has(a, b int) bool {
	_, ok := s.edges[NewEdge(a, b)]
	return ok
}

// Len returns the number of distinct edges.
func (s *EdgeSet) Len() int { return len(s.edges) }

// Edges returns the edges sorted by (A, B).
func (s *EdgeSet) Edges() []Edge {
	out := make([]Edge, 0, len(s.edges))
	for e := range s.edges {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].A != out[j].A {
			return out[i].A < out[j].A
		}
		return out[i].B < out[j].B
	})
	return out
}

// Nodes returns the agents touched by at least one edge, ascending.
func (s *EdgeSet) Nodes() []int {
	seen := make(map[int]bool)
	for e := range s.edges {
		seen[e.A] = true
		seen[e.B] = true
	}
	out := make([]int, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Ints(out)
	return out
}

// ExtractEdges connects the source and destination agents of every record
// whose agents differ.
func ExtractEdges(records []trace.Record) (*EdgeSet, error) {
	set := NewEdgeSet()
	for i := range records {
		r := &records[i]
		src, err := AgentID(r.SourceAddress)
		if err != nil {
			return nil, fmt.Errorf("record %d source: %w", i, err)
		}
		dst, err := AgentID(r.DestinationAddress)
		if err != nil {
			return nil, fmt.Errorf("record %d destination: %w", i, err)
		}
		set.Add(src, dst)
	}
	return set, nil
}

// graphJSON is the serialized form of an EdgeSet.
type graphJSON struct {
	Nodes []int    `json:"nodes"`
	Edges [][2]int `json:"edges"`
}

// MarshalJSON encodes the set as {"nodes": [...], "edges": [[a, b], ...]}.
func (s *EdgeSet) MarshalJSON() ([]byte, error) {
	g := graphJSON{Nodes: s.Nodes(), Edges: make([][2]int, 0, s.Len())}
	for _, e := range s.Edges() {
		g.Edges = append(g.Edges, [2]int{e.A, e.B})
	}
	return sonic.Marshal(g)
}

// WriteJSON writes the JSON encoding of the set followed by a newline.
func (s *EdgeSet) WriteJSON(w io.Writer) error {
	data, err := s.MarshalJSON()
	if err != nil {
		return fmt.Errorf("encoding edge graph: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("writing edge graph: %w", err)
	}
	return nil
}

// WriteDOT writes the set as an undirected Graphviz graph.
func (s *EdgeSet) WriteDOT(w io.Writer) error {
	var b strings.Builder
	b.WriteString("graph agents {\n")
	for _, n := range s.Nodes() {
		fmt.Fprintf(&b, "  agent%d;\n", n)
	}
	for _, e := range s.Edges() {
		fmt.Fprintf(&b, "  agent%d -- agent%d;\n", e.A, e.B)
	}
	b.WriteString("}\n")
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("writing DOT graph: %w", err)
	}
	return nil
}

// WriteCSV writes one agent_a,agent_b row per edge after a header row.
func (s *EdgeSet) WriteCSV(w io.Writer) error {
	writer := csv.NewWriter(w)
	if err := writer.Write([]string{"agent_a", "agent_b"}); err != nil {
		return fmt.Errorf("writing CSV header: %w", err)
	}
	for _, e := range s.Edges() {
		if err := writer.Write([]string{strconv.Itoa(e.A), strconv.Itoa(e.B)}); err != nil {
			return fmt.Errorf("writing CSV row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}
