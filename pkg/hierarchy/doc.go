// Package hierarchy tracks parent-gated visibility over a static node/link
// dataset, the data model behind expandable Sankey diagrams.
//
// # Overview
//
// A dataset is a flat list of nodes, each optionally naming a parent, plus a
// flat list of weighted links. Some nodes are expandable: while collapsed,
// their children are hidden and flows through them are drawn with a single
// pre-summed aggregate link; once expanded, the children appear and the
// per-child detail links replace the aggregate.
//
// The structure of the dataset never changes after [New]. Only the expanded
// flag of expandable nodes mutates, through [Manager.Expand],
// [Manager.Collapse] and friends, and every mutation recomputes the visible
// projections from scratch.
//
// # Basic Usage
//
//	m := hierarchy.New(nodes, links)
//	m.Expand("parent")
//	for _, n := range m.VisibleNodes() {
//	    fmt.Println(n.ID)
//	}
//
// # Visibility
//
// A node is visible if it has no parent, or if its parent is visible and
// expanded. A node whose parent does not exist is hidden, never an error.
//
// A link is visible when both endpoints are visible and, if its source is
// expandable, it passes the aggregate/detail rule:
//
//   - detail link (target is a direct child of source): shown while the
//     source is expanded
//   - aggregate link (some child of source links to the same target):
//     shown while the source is collapsed
//   - any other link: shown
//
// # Collapse Cascade
//
// Collapsing a node forces every expandable descendant collapsed too, so
// re-expanding an ancestor later only reveals one level.
//
// # Errors
//
// The manager never fails. Unknown parents, unknown link endpoints and
// mutations that target a missing or non-expandable node are silently
// ignored. Use [Validate] to find such problems up front, and
// [WithLogger] to see ignored mutations at debug level.
//
// # Concurrency
//
// A Manager is not safe for concurrent use. Callers that share one across
// goroutines must serialize access; see pkg/api for an example.
package hierarchy
