package hierarchy

import (
	"fmt"
	"slices"
	"testing"

	"pgregory.net/rapid"
)

// genDataset draws a random forest. Parents always precede their children
// so the hierarchy is acyclic; a few nodes get a dangling parent. Links are
// drawn between random node pairs, plus explicit aggregate/detail pairs so
// the disambiguation rule is exercised on every run.
func genDataset(t *rapid.T) ([]Node, []Link) {
	count := rapid.IntRange(1, 24).Draw(t, "nodes")
	nodes := make([]Node, count)
	for i := range nodes {
		n := Node{
			ID:         fmt.Sprintf("n%d", i),
			Expandable: rapid.Bool().Draw(t, fmt.Sprintf("expandable%d", i)),
			Expanded:   rapid.Bool().Draw(t, fmt.Sprintf("expanded%d", i)),
		}
		if i > 0 {
			switch rapid.IntRange(0, 9).Draw(t, fmt.Sprintf("parentKind%d", i)) {
			case 0, 1, 2:
				// top-level
			case 3:
				n.ParentID = "dangling"
			default:
				n.ParentID = fmt.Sprintf("n%d", rapid.IntRange(0, i-1).Draw(t, fmt.Sprintf("parent%d", i)))
			}
		}
		nodes[i] = n
	}

	var links []Link
	pick := func(label string) string {
		return fmt.Sprintf("n%d", rapid.IntRange(0, count-1).Draw(t, label))
	}
	for i := range rapid.IntRange(0, 30).Draw(t, "links") {
		links = append(links, Link{Source: pick(fmt.Sprintf("src%d", i)), Target: pick(fmt.Sprintf("dst%d", i)), Value: 1})
	}
	for i, n := range nodes {
		if n.ParentID == "" || n.ParentID == "dangling" || !rapid.Bool().Draw(t, fmt.Sprintf("agg%d", i)) {
			continue
		}
		target := pick(fmt.Sprintf("aggTarget%d", i))
		links = append(links,
			Link{Source: n.ParentID, Target: n.ID, Value: 1},
			Link{Source: n.ID, Target: target, Value: 1},
			Link{Source: n.ParentID, Target: target, Value: 1},
		)
	}
	return nodes, links
}

// checkInvariants verifies the visibility rules against the manager's own
// node state, independent of how the projections were computed.
func checkInvariants(t *rapid.T, m *Manager) {
	nodes := m.Nodes()
	byID := make(map[string]Node, len(nodes))
	for _, n := range nodes {
		byID[n.ID] = n
	}

	for _, n := range nodes {
		want := n.IsTopLevel()
		if p, ok := byID[n.ParentID]; ok && !want {
			want = p.Expanded && m.IsVisible(p.ID)
		}
		if got := m.IsVisible(n.ID); got != want {
			t.Fatalf("node %s visible = %v, want %v", n.ID, got, want)
		}
	}

	visible := make(map[string]bool)
	for _, n := range m.VisibleNodes() {
		visible[n.ID] = true
	}
	shown := make(map[[2]string]bool)
	for _, l := range m.VisibleLinks() {
		shown[[2]string{l.Source, l.Target}] = true
		if !visible[l.Source] || !visible[l.Target] {
			t.Fatalf("link %s->%s visible with a hidden endpoint", l.Source, l.Target)
		}
	}

	// Duplicate source/target pairs share a kind, so keying by pair is exact.
	for _, l := range m.Links() {
		if !visible[l.Source] || !visible[l.Target] {
			continue
		}
		src := byID[l.Source]
		want := true
		switch m.LinkKind(l) {
		case LinkDetail:
			want = src.Expanded
		case LinkAggregate:
			want = !src.Expanded
		}
		if got := shown[[2]string{l.Source, l.Target}]; got != want {
			t.Fatalf("link %s->%s (%v) visible = %v, want %v", l.Source, l.Target, m.LinkKind(l), got, want)
		}
	}
}

func TestPropertyInitialCollapse(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nodes, links := genDataset(t)
		m := New(nodes, links)

		var want []string
		for _, n := range nodes {
			if n.IsTopLevel() {
				want = append(want, n.ID)
			}
		}
		if got := nodeIDs(m.VisibleNodes()); !slices.Equal(got, want) {
			t.Fatalf("VisibleNodes() = %v, want top-level %v", got, want)
		}
		for _, n := range m.Nodes() {
			if n.Expanded {
				t.Fatalf("node %s expanded after New", n.ID)
			}
		}
		checkInvariants(t, m)
	})
}

func TestPropertyRandomMutations(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nodes, links := genDataset(t)
		m := New(nodes, links)

		ids := append(nodeIDs(nodes), "ghost")
		for i := range rapid.IntRange(1, 40).Draw(t, "steps") {
			id := rapid.SampledFrom(ids).Draw(t, fmt.Sprintf("id%d", i))
			switch rapid.IntRange(0, 2).Draw(t, fmt.Sprintf("op%d", i)) {
			case 0:
				m.Expand(id)
			case 1:
				m.Collapse(id)
			default:
				m.Toggle(id)
			}
			checkInvariants(t, m)
		}
	})
}

func TestPropertyExpandRevealsChildrenOnly(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nodes, links := genDataset(t)
		m := New(nodes, links)
		m.Restore(rapid.SliceOf(rapid.SampledFrom(nodeIDs(nodes))).Draw(t, "state"))

		var candidates []string
		for _, n := range m.Nodes() {
			if n.Expandable && m.IsVisible(n.ID) {
				candidates = append(candidates, n.ID)
			}
		}
		if len(candidates) == 0 {
			return
		}
		target := rapid.SampledFrom(candidates).Draw(t, "target")

		m.Expand(target)

		for _, child := range m.Children(target) {
			if !m.IsVisible(child) {
				t.Fatalf("child %s of expanded %s not visible", child, target)
			}
			for _, grandchild := range m.Children(child) {
				if m.IsVisible(grandchild) != m.IsExpanded(child) {
					t.Fatalf("grandchild %s visible = %v but parent %s expanded = %v",
						grandchild, m.IsVisible(grandchild), child, m.IsExpanded(child))
				}
			}
		}
	})
}

func TestPropertyCollapseHidesSubtree(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nodes, links := genDataset(t)
		m := New(nodes, links)
		m.ExpandAll()

		var pairs [][2]string
		for _, n := range m.Nodes() {
			if !n.Expandable || !m.IsVisible(n.ID) {
				continue
			}
			for _, c := range m.Children(n.ID) {
				if child, _ := m.Node(c); child.Expandable {
					pairs = append(pairs, [2]string{n.ID, c})
				}
			}
		}
		if len(pairs) == 0 {
			return
		}
		pair := rapid.SampledFrom(pairs).Draw(t, "pair")
		parent, child := pair[0], pair[1]

		m.Collapse(parent)
		if m.IsVisible(child) {
			t.Fatalf("child %s visible after collapsing %s", child, parent)
		}
		for _, gc := range m.Children(child) {
			if m.IsVisible(gc) {
				t.Fatalf("grandchild %s visible after collapsing %s", gc, parent)
			}
		}

		m.Expand(parent)
		if m.IsExpanded(child) {
			t.Fatalf("child %s kept expanded state through collapse of %s", child, parent)
		}
		for _, gc := range m.Children(child) {
			if m.IsVisible(gc) {
				t.Fatalf("grandchild %s reappeared after re-expanding %s", gc, parent)
			}
		}
	})
}

func TestPropertyAggregateExclusive(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nodes, links := genDataset(t)
		m := New(nodes, links)
		m.Restore(rapid.SliceOf(rapid.SampledFrom(nodeIDs(nodes))).Draw(t, "state"))

		shown := make(map[[2]string]bool)
		for _, l := range m.VisibleLinks() {
			shown[[2]string{l.Source, l.Target}] = true
		}

		for _, l := range m.Links() {
			if m.LinkKind(l) != LinkAggregate || !m.IsVisible(l.Source) || !m.IsVisible(l.Target) {
				continue
			}
			aggregate := shown[[2]string{l.Source, l.Target}]
			detail := false
			for _, d := range descendants(m, l.Source) {
				if shown[[2]string{d, l.Target}] {
					detail = true
					break
				}
			}
			if aggregate == detail {
				t.Fatalf("%s->%s: aggregate shown = %v, detail shown = %v; want exactly one",
					l.Source, l.Target, aggregate, detail)
			}
		}
	})
}

func TestPropertyNoOpSafety(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nodes, links := genDataset(t)
		m := New(nodes, links)
		m.Restore(rapid.SliceOf(rapid.SampledFrom(nodeIDs(nodes))).Draw(t, "state"))

		var inert []string
		for _, n := range m.Nodes() {
			if !n.Expandable {
				inert = append(inert, n.ID)
			}
		}
		inert = append(inert, "ghost", "dangling", "")
		id := rapid.SampledFrom(inert).Draw(t, "id")

		wantNodes, wantLinks := nodeIDs(m.VisibleNodes()), linkIDs(m.VisibleLinks())
		if rapid.Bool().Draw(t, "expand") {
			m.Expand(id)
		} else {
			m.Collapse(id)
		}

		if got := nodeIDs(m.VisibleNodes()); !slices.Equal(got, wantNodes) {
			t.Fatalf("VisibleNodes() changed by no-op on %q", id)
		}
		if got := linkIDs(m.VisibleLinks()); !slices.Equal(got, wantLinks) {
			t.Fatalf("VisibleLinks() changed by no-op on %q", id)
		}
	})
}

func TestPropertyCollapseIdempotent(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		nodes, links := genDataset(t)
		m := New(nodes, links)
		m.Restore(rapid.SliceOf(rapid.SampledFrom(nodeIDs(nodes))).Draw(t, "state"))
		id := rapid.SampledFrom(nodeIDs(nodes)).Draw(t, "id")

		m.Collapse(id)
		onceNodes, onceLinks := nodeIDs(m.VisibleNodes()), linkIDs(m.VisibleLinks())
		onceState := m.ExpandedIDs()
		m.Collapse(id)

		if !slices.Equal(nodeIDs(m.VisibleNodes()), onceNodes) ||
			!slices.Equal(linkIDs(m.VisibleLinks()), onceLinks) ||
			!slices.Equal(m.ExpandedIDs(), onceState) {
			t.Fatalf("second Collapse(%s) changed the result", id)
		}
	})
}

func descendants(m *Manager, id string) []string {
	var out []string
	seen := map[string]bool{id: true}
	queue := slices.Clone(m.Children(id))
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if seen[cur] {
			continue
		}
		seen[cur] = true
		out = append(out, cur)
		queue = append(queue, m.Children(cur)...)
	}
	return out
}
