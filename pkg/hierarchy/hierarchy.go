package hierarchy

import (
	"slices"

	"github.com/charmbracelet/log"
)

// Metadata stores arbitrary key-value pairs attached to nodes or links.
// The manager never reads it; it is carried through for the presentation
// layer (tooltips, formatting hints and the like).
type Metadata map[string]any

// Node is a vertex of the dataset. Only ID, ParentID, Expandable and
// Expanded take part in visibility; the rest is opaque payload.
type Node struct {
	ID         string   // Unique identifier, stable for the dataset's lifetime
	ParentID   string   // Parent node ID; empty means top-level
	Expandable bool     // Whether the node may be expanded or collapsed
	Expanded   bool     // Current state; always false right after New
	Label      string   // Display label (defaults to ID)
	Color      string   // Display color
	Meta       Metadata // Arbitrary payload
}

// IsTopLevel reports whether the node has no parent.
func (n Node) IsTopLevel() bool { return n.ParentID == "" }

// DisplayLabel returns the label if set, otherwise the ID.
func (n Node) DisplayLabel() string {
	if n.Label != "" {
		return n.Label
	}
	return n.ID
}

// Link is a weighted directed flow between two nodes. Value is never
// inspected by the manager.
type Link struct {
	Source string   // Source node ID
	Target string   // Target node ID
	Value  float64  // Flow weight
	Meta   Metadata // Arbitrary payload
}

// LinkKind classifies a link relative to its source node.
type LinkKind int

const (
	// LinkPlain is a link that is shown whenever both endpoints are visible.
	LinkPlain LinkKind = iota
	// LinkDetail is a link from an expandable node to one of its own
	// children. It is shown only while the source is expanded.
	LinkDetail
	// LinkAggregate is a link from an expandable node to a target that one
	// of its children also links to. It stands in for the per-child links
	// and is shown only while the source is collapsed.
	LinkAggregate
)

// String returns "plain", "detail" or "aggregate".
func (k LinkKind) String() string {
	switch k {
	case LinkDetail:
		return "detail"
	case LinkAggregate:
		return "aggregate"
	default:
		return "plain"
	}
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger makes the manager report ignored mutations and recomputations
// at debug level.
func WithLogger(l *log.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

type linkKey struct{ source, target string }

// Manager owns a dataset and the expanded flag of each expandable node, and
// publishes the currently visible nodes and links.
//
// The zero value is not usable - use New.
// Manager is not safe for concurrent use without external synchronization.
type Manager struct {
	nodes    []Node
	links    []Link
	index    map[string]int      // node ID -> position in nodes
	children map[string][]string // parent ID -> child IDs, insertion order
	pairs    map[linkKey]struct{}
	logger   *log.Logger

	visible      map[string]bool
	visibleNodes []Node
	visibleLinks []Link
}

// New builds a manager from caller-supplied nodes and links.
//
// Nodes are copied and every copy starts collapsed regardless of the
// Expanded value passed in. Nodes with an empty ID are dropped, and when an
// ID repeats only its first occurrence is kept. Links are kept as given, in
// order, including links whose endpoints do not exist (they simply never
// become visible).
func New(nodes []Node, links []Link, opts ...Option) *Manager {
	m := &Manager{
		nodes:    make([]Node, 0, len(nodes)),
		links:    slices.Clone(links),
		index:    make(map[string]int, len(nodes)),
		children: make(map[string][]string),
		pairs:    make(map[linkKey]struct{}, len(links)),
	}
	for _, opt := range opts {
		opt(m)
	}

	for _, n := range nodes {
		if n.ID == "" {
			m.debug("dropping node without id", "label", n.Label)
			continue
		}
		if _, dup := m.index[n.ID]; dup {
			m.debug("dropping duplicate node", "id", n.ID)
			continue
		}
		n.Expanded = false
		m.index[n.ID] = len(m.nodes)
		m.nodes = append(m.nodes, n)
		if n.ParentID != "" {
			m.children[n.ParentID] = append(m.children[n.ParentID], n.ID)
		}
	}
	for _, l := range m.links {
		m.pairs[linkKey{l.Source, l.Target}] = struct{}{}
	}

	m.publish()
	return m
}

// VisibleNodes returns the visible nodes in dataset order.
// The returned slice is a copy.
func (m *Manager) VisibleNodes() []Node { return slices.Clone(m.visibleNodes) }

// VisibleLinks returns the visible links in dataset order.
// The returned slice is a copy.
func (m *Manager) VisibleLinks() []Link { return slices.Clone(m.visibleLinks) }

// Expand marks the node expanded and republishes the visible projections.
// It does nothing if the node does not exist or is not expandable.
// Descendants keep their own state.
func (m *Manager) Expand(id string) {
	n, ok := m.mutable(id, "expand")
	if !ok {
		return
	}
	n.Expanded = true
	m.publish()
}

// Collapse marks the node and all of its expandable descendants collapsed,
// then republishes the visible projections. It does nothing if the node
// does not exist or is not expandable.
func (m *Manager) Collapse(id string) {
	n, ok := m.mutable(id, "collapse")
	if !ok {
		return
	}
	n.Expanded = false
	m.collapseDescendants(id)
	m.publish()
}

// Toggle collapses the node if it is expanded and expands it otherwise.
func (m *Manager) Toggle(id string) {
	if m.IsExpanded(id) {
		m.Collapse(id)
		return
	}
	m.Expand(id)
}

// ExpandAll expands every expandable node.
func (m *Manager) ExpandAll() {
	for i := range m.nodes {
		if m.nodes[i].Expandable {
			m.nodes[i].Expanded = true
		}
	}
	m.publish()
}

// CollapseAll collapses every node, restoring the initial state.
func (m *Manager) CollapseAll() {
	for i := range m.nodes {
		m.nodes[i].Expanded = false
	}
	m.publish()
}

// Restore collapses everything and then expands the given nodes in order.
// IDs that are unknown or not expandable are ignored, so state saved
// against an older version of the dataset can be applied safely.
func (m *Manager) Restore(expanded []string) {
	for i := range m.nodes {
		m.nodes[i].Expanded = false
	}
	for _, id := range expanded {
		if n, ok := m.mutable(id, "restore"); ok {
			n.Expanded = true
		}
	}
	m.publish()
}

// ExpandedIDs returns the IDs of all expanded nodes in dataset order.
// Passing the result to Restore reproduces the current state.
func (m *Manager) ExpandedIDs() []string {
	var ids []string
	for _, n := range m.nodes {
		if n.Expanded {
			ids = append(ids, n.ID)
		}
	}
	return ids
}

// Node returns a copy of the node with the given ID.
func (m *Manager) Node(id string) (Node, bool) {
	i, ok := m.index[id]
	if !ok {
		return Node{}, false
	}
	return m.nodes[i], true
}

// Nodes returns a copy of all stored nodes in dataset order.
func (m *Manager) Nodes() []Node { return slices.Clone(m.nodes) }

// Links returns a copy of all stored links in dataset order.
func (m *Manager) Links() []Link { return slices.Clone(m.links) }

// NodeCount returns the number of stored nodes.
func (m *Manager) NodeCount() int { return len(m.nodes) }

// LinkCount returns the number of stored links.
func (m *Manager) LinkCount() int { return len(m.links) }

// Children returns the IDs of the direct children of id, in dataset order.
// The returned slice should not be modified.
func (m *Manager) Children(id string) []string { return m.children[id] }

// IsVisible reports whether the node is part of the visible projection.
func (m *Manager) IsVisible(id string) bool { return m.visible[id] }

// IsExpanded reports whether the node exists and is expanded.
func (m *Manager) IsExpanded(id string) bool {
	i, ok := m.index[id]
	return ok && m.nodes[i].Expanded
}

// LinkKind classifies l against the stored dataset. Links whose source is
// unknown or not expandable are LinkPlain.
func (m *Manager) LinkKind(l Link) LinkKind {
	si, ok := m.index[l.Source]
	if !ok || !m.nodes[si].Expandable {
		return LinkPlain
	}
	if ti, ok := m.index[l.Target]; ok && m.nodes[ti].ParentID == l.Source {
		return LinkDetail
	}
	for _, child := range m.children[l.Source] {
		if _, ok := m.pairs[linkKey{child, l.Target}]; ok {
			return LinkAggregate
		}
	}
	return LinkPlain
}

// mutable returns the stored node if it exists and is expandable.
func (m *Manager) mutable(id, op string) (*Node, bool) {
	i, ok := m.index[id]
	if !ok {
		m.debug("ignoring "+op, "id", id, "reason", "unknown node")
		return nil, false
	}
	n := &m.nodes[i]
	if !n.Expandable {
		m.debug("ignoring "+op, "id", id, "reason", "not expandable")
		return nil, false
	}
	return n, true
}

// collapseDescendants walks the subtree below id and clears every expanded
// flag, whether or not the descendant is currently visible.
func (m *Manager) collapseDescendants(id string) {
	seen := map[string]bool{id: true}
	queue := slices.Clone(m.children[id])
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		if i, ok := m.index[cur]; ok && m.nodes[i].Expandable {
			m.nodes[i].Expanded = false
		}
		queue = append(queue, m.children[cur]...)
	}
}

func (m *Manager) debug(msg string, keyvals ...any) {
	if m.logger != nil {
		m.logger.Debug(msg, keyvals...)
	}
}
