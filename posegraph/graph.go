// Package posegraph keeps a bounded history of session poses for neighborhood
// queries.
package posegraph

import (
	"time"

	"github.com/golang/geo/r3"
	"go.viam.com/rdk/spatialmath"
)

// A Node is one recorded session pose.
type Node struct {
	ID    int
	Pose  spatialmath.Pose
	Stamp time.Time
}

// A Graph is a ring-buffered pose history. It is not safe for concurrent use;
// the owning session serializes access to it.
type Graph struct {
	nodes []Node
	next  int
	full  bool
}

// New returns a graph holding at most capacity nodes; older nodes are evicted
// as new ones arrive.
func New(capacity int) *Graph {
	if capacity <= 0 {
		capacity = 1
	}
	return &Graph{nodes: make([]Node, capacity)}
}

// Add records a node, evicting the oldest when the graph is full.
func (g *Graph) Add(n Node) {
	g.nodes[g.next] = n
	g.next = (g.next + 1) % len(g.nodes)
	if g.next == 0 {
		g.full = true
	}
}

// Len returns the number of recorded nodes.
func (g *Graph) Len() int {
	if g.full {
		return len(g.nodes)
	}
	return g.next
}

// Node returns the node with the given id.
func (g *Graph) Node(id int) (Node, bool) {
	for i := 0; i < g.Len(); i++ {
		if g.nodes[i].ID == id {
			return g.nodes[i], true
		}
	}
	return Node{}, false
}

// Latest returns the most recently added node.
func (g *Graph) Latest() (Node, bool) {
	if g.Len() == 0 {
		return Node{}, false
	}
	idx := (g.next - 1 + len(g.nodes)) % len(g.nodes)
	return g.nodes[idx], true
}

// Near returns up to limit nodes within radius meters of center, most recent
// first. A nonpositive limit returns all matches.
func (g *Graph) Near(center r3.Vector, radius float64, limit int) []Node {
	var out []Node
	n := g.Len()
	for i := 0; i < n; i++ {
		idx := (g.next - 1 - i + 2*len(g.nodes)) % len(g.nodes)
		node := g.nodes[idx]
		if node.Pose.Point().Sub(center).Norm() > radius {
			continue
		}
		out = append(out, node)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Clear drops all recorded nodes.
func (g *Graph) Clear() {
	g.next = 0
	g.full = false
}
