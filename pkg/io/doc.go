// Package io reads and writes flowview datasets and visible-view snapshots.
//
// # Overview
//
// A dataset is the static input of a [hierarchy.Manager]: a flat list of
// nodes, each optionally naming a parent, and a flat list of weighted
// links. This package decodes datasets from JSON, YAML or TOML, encodes
// them back, fingerprints them, and exports the manager's visible
// projections for a front-end to draw.
//
// # Dataset Format
//
// JSON is the canonical form:
//
//	{
//	  "nodes": [
//	    {"id": "income"},
//	    {"id": "expenses", "expandable": true},
//	    {"id": "rent", "parentId": "expenses"}
//	  ],
//	  "links": [
//	    {"source": "income", "target": "expenses", "value": 10},
//	    {"source": "expenses", "target": "rent", "value": 6}
//	  ]
//	}
//
// YAML uses the same keys. TOML uses arrays of tables:
//
//	[[nodes]]
//	id = "expenses"
//	expandable = true
//
//	[[links]]
//	source = "income"
//	target = "expenses"
//	value = 10.0
//
// Node fields: id (required), parentId, expandable, label, color, meta.
// Link fields: source, target, value, meta. Decoding never checks
// references; use [hierarchy.Validate] for that.
//
// # Views
//
// [NewView] snapshots the visible nodes and links of a manager, tagging each
// node with its expanded flag and each link with its kind (plain, detail or
// aggregate). The JSON shape mirrors the nodes/links layout D3 Sankey
// front-ends consume.
//
// # Fingerprints
//
// [Fingerprint] hashes a dataset's canonical JSON so that persisted
// expansion state can be tied to the exact dataset it was recorded against.
//
// # Watching
//
// [Watch] calls a function whenever a dataset file is rewritten, which the
// serve command uses to hot-reload.
//
// [hierarchy.Manager]: github.com/matzehuels/flowview/pkg/hierarchy.Manager
// [hierarchy.Validate]: github.com/matzehuels/flowview/pkg/hierarchy.Validate
package io
