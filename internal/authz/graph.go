// Package authz implements the in-memory authorization graph (C6) and
// the permission checker (C7) built on top of it, grounded on
// original_source's zanzibar graph_builder/graph_cache/checker trio.
package authz

import (
	"time"

	"github.com/suleymanmyradov/authcore/shared/models"
)

// Edge is one relationship tuple projected onto the graph: relation
// plus the validity fields needed to re-evaluate IsValid during
// traversal without going back to the tuple store.
type Edge struct {
	Relation       string
	ValidFrom      time.Time
	ExpiresAt      *time.Time
	IsActive       bool
	RelationshipID string
	Target         string
}

func timeNow() time.Time {
	return time.Now().UTC()
}

func (e Edge) isValid(now time.Time) bool {
	if !e.IsActive {
		return false
	}
	if e.ValidFrom.After(now) {
		return false
	}
	if e.ExpiresAt != nil && !now.Before(*e.ExpiresAt) {
		return false
	}
	return true
}

// Graph is a directed multigraph: nodes are interned subject strings
// (spec §9's "interned string ids" design note — no generic graph
// library appears anywhere in the retrieved pack), edges carry the
// relation and validity window.
type Graph struct {
	adjacency map[string][]Edge
}

// NewGraph builds a Graph from every (already-valid-filtered) tuple
// the caller hands it; typically Store.ListAllValid's output.
func NewGraph(relationships []models.Relationship) *Graph {
	g := &Graph{adjacency: make(map[string][]Edge)}
	for _, r := range relationships {
		g.AddRelationship(&r)
	}
	return g
}

// AddRelationship inserts one edge per tuple; parallel edges between
// the same pair of nodes are permitted, one per distinct relation
// (or even the same relation re-granted).
func (g *Graph) AddRelationship(r *models.Relationship) {
	g.adjacency[r.User] = append(g.adjacency[r.User], Edge{
		Relation:       r.Relation,
		ValidFrom:      r.ValidFrom,
		ExpiresAt:      r.ExpiresAt,
		IsActive:       r.IsActive,
		RelationshipID: r.ID.String(),
		Target:         r.Object,
	})
}

// Edges returns the outgoing edges for subject, or nil if absent.
func (g *Graph) Edges(subject string) []Edge {
	return g.adjacency[subject]
}

// HasNode reports whether subject appears as a source anywhere in the graph.
func (g *Graph) HasNode(subject string) bool {
	_, ok := g.adjacency[subject]
	return ok
}

// NodeCount and EdgeCount back simple graph statistics, grounded on
// original_source's GraphStats.
func (g *Graph) NodeCount() int {
	seen := make(map[string]struct{}, len(g.adjacency))
	for src, edges := range g.adjacency {
		seen[src] = struct{}{}
		for _, e := range edges {
			seen[e.Target] = struct{}{}
		}
	}
	return len(seen)
}

func (g *Graph) EdgeCount() int {
	n := 0
	for _, edges := range g.adjacency {
		n += len(edges)
	}
	return n
}

// DetectCycles reports every strongly-connected subject set of size
// > 1, via a plain DFS-based Tarjan implementation — the presence of
// cycles (groups-of-groups) is expected and not an error, per spec §4.5.
func (g *Graph) DetectCycles() [][]string {
	t := &tarjan{
		graph:   g,
		index:   make(map[string]int),
		lowlink: make(map[string]int),
		onStack: make(map[string]bool),
	}
	for node := range g.adjacency {
		if _, visited := t.index[node]; !visited {
			t.strongConnect(node)
		}
	}
	return t.sccs
}

type tarjan struct {
	graph   *Graph
	index   map[string]int
	lowlink map[string]int
	onStack map[string]bool
	stack   []string
	counter int
	sccs    [][]string
}

func (t *tarjan) strongConnect(v string) {
	t.index[v] = t.counter
	t.lowlink[v] = t.counter
	t.counter++
	t.stack = append(t.stack, v)
	t.onStack[v] = true

	for _, e := range t.graph.adjacency[v] {
		w := e.Target
		if _, visited := t.index[w]; !visited {
			t.strongConnect(w)
			if t.lowlink[w] < t.lowlink[v] {
				t.lowlink[v] = t.lowlink[w]
			}
		} else if t.onStack[w] {
			if t.index[w] < t.lowlink[v] {
				t.lowlink[v] = t.index[w]
			}
		}
	}

	if t.lowlink[v] == t.index[v] {
		var scc []string
		for {
			n := len(t.stack) - 1
			w := t.stack[n]
			t.stack = t.stack[:n]
			t.onStack[w] = false
			scc = append(scc, w)
			if w == v {
				break
			}
		}
		if len(scc) > 1 {
			t.sccs = append(t.sccs, scc)
		}
	}
}
