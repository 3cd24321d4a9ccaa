package hierarchy

import (
	"errors"

	ferrors "github.com/matzehuels/flowview/pkg/errors"
)

// Validate checks a dataset for the problems New silently tolerates and
// returns all of them joined into one error, or nil if the dataset is
// clean. Each problem is an *errors.Error with one of these codes:
//
//   - INVALID_NODE: a node has an empty ID
//   - DUPLICATE_NODE: an ID is used by more than one node
//   - UNKNOWN_PARENT: a ParentID names no node
//   - PARENT_CYCLE: following ParentID from a node loops back to it
//   - UNKNOWN_ENDPOINT: a link source or target names no node
//
// Problems are reported in dataset order: nodes first, then links.
func Validate(nodes []Node, links []Link) error {
	var errs []error

	byID := make(map[string]Node, len(nodes))
	first := make(map[int]bool, len(nodes))
	for i, n := range nodes {
		if n.ID == "" {
			errs = append(errs, ferrors.New(ferrors.ErrCodeInvalidNode, "node #%d: empty id", i))
			continue
		}
		if _, dup := byID[n.ID]; dup {
			errs = append(errs, ferrors.New(ferrors.ErrCodeDuplicateNode, "node %q: duplicate id", n.ID))
			continue
		}
		byID[n.ID] = n
		first[i] = true
	}

	for i, n := range nodes {
		if !first[i] || n.ParentID == "" {
			continue
		}
		if _, ok := byID[n.ParentID]; !ok {
			errs = append(errs, ferrors.New(ferrors.ErrCodeUnknownParent, "node %q: unknown parent %q", n.ID, n.ParentID))
		}
	}

	for _, id := range cycleMembers(nodes, byID) {
		errs = append(errs, ferrors.New(ferrors.ErrCodeParentCycle, "node %q: parent chain forms a cycle", id))
	}

	for _, l := range links {
		if _, ok := byID[l.Source]; !ok {
			errs = append(errs, ferrors.New(ferrors.ErrCodeUnknownEndpoint, "link %s->%s: unknown source", l.Source, l.Target))
		}
		if _, ok := byID[l.Target]; !ok {
			errs = append(errs, ferrors.New(ferrors.ErrCodeUnknownEndpoint, "link %s->%s: unknown target", l.Source, l.Target))
		}
	}

	return errors.Join(errs...)
}

// cycleMembers returns, in dataset order, the IDs of nodes that lie on a
// parent cycle. Nodes that merely lead into a cycle are not included.
func cycleMembers(nodes []Node, byID map[string]Node) []string {
	onCycle := make(map[string]bool)
	done := make(map[string]bool)

	for _, n := range nodes {
		if n.ID == "" || done[n.ID] {
			continue
		}
		pos := make(map[string]int)
		var path []string
		cur := n.ID
		for cur != "" && !done[cur] {
			if at, seen := pos[cur]; seen {
				for _, id := range path[at:] {
					onCycle[id] = true
				}
				break
			}
			pos[cur] = len(path)
			path = append(path, cur)
			next, ok := byID[cur]
			if !ok {
				break
			}
			cur = next.ParentID
		}
		for _, id := range path {
			done[id] = true
		}
	}

	var ids []string
	for _, n := range nodes {
		if onCycle[n.ID] {
			ids = append(ids, n.ID)
			delete(onCycle, n.ID)
		}
	}
	return ids
}
