package hierarchy

import "time"

// visit states used while resolving node visibility.
const (
	unresolved = iota
	resolving
	shown
	hidden
)

// publish recomputes both projections from the current expanded flags.
func (m *Manager) publish() {
	start := time.Now()

	m.visible = m.resolveVisibility()

	m.visibleNodes = m.visibleNodes[:0:0]
	for _, n := range m.nodes {
		if m.visible[n.ID] {
			m.visibleNodes = append(m.visibleNodes, n)
		}
	}

	m.visibleLinks = m.visibleLinks[:0:0]
	for _, l := range m.links {
		if m.linkVisible(l) {
			m.visibleLinks = append(m.visibleLinks, l)
		}
	}

	m.debug("recomputed visibility",
		"nodes", len(m.visibleNodes),
		"links", len(m.visibleLinks),
		"took", time.Since(start))
}

// resolveVisibility returns the set of visible node IDs. A node is visible
// if it is top-level, or its parent exists, is expanded and is itself
// visible. Nodes whose ancestor chain loops back on itself never reach a
// top-level node and are hidden.
func (m *Manager) resolveVisibility() map[string]bool {
	state := make(map[string]int, len(m.nodes))

	var resolve func(i int) bool
	resolve = func(i int) bool {
		n := &m.nodes[i]
		switch state[n.ID] {
		case shown:
			return true
		case hidden, resolving:
			return false
		}
		if n.IsTopLevel() {
			state[n.ID] = shown
			return true
		}

		state[n.ID] = resolving
		vis := false
		if pi, ok := m.index[n.ParentID]; ok && m.nodes[pi].Expanded {
			vis = resolve(pi)
		}
		if vis {
			state[n.ID] = shown
		} else {
			state[n.ID] = hidden
		}
		return vis
	}

	visible := make(map[string]bool, len(m.nodes))
	for i := range m.nodes {
		if resolve(i) {
			visible[m.nodes[i].ID] = true
		}
	}
	return visible
}

// linkVisible applies the endpoint check and then the aggregate/detail rule.
func (m *Manager) linkVisible(l Link) bool {
	if !m.visible[l.Source] || !m.visible[l.Target] {
		return false
	}
	src := m.nodes[m.index[l.Source]]
	switch m.LinkKind(l) {
	case LinkDetail:
		return src.Expanded
	case LinkAggregate:
		return !src.Expanded
	default:
		return true
	}
}
