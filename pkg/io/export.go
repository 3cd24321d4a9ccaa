package io

import (
	"bytes"
	"fmt"
	"io"
	"os"

	"github.com/BurntSushi/toml"
	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	ferrors "github.com/matzehuels/flowview/pkg/errors"
	"github.com/matzehuels/flowview/pkg/hierarchy"
)

// Encode writes d to w in the given format. JSON output is indented.
func Encode(w io.Writer, d Dataset, format Format) error {
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(d)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(d); err != nil {
			return err
		}
		return enc.Close()
	case FormatTOML:
		return toml.NewEncoder(w).Encode(d)
	}
	return ferrors.New(ferrors.ErrCodeUnsupported, "unsupported format %q", format)
}

// WriteFile encodes d to path, inferring the format from the extension.
// The file is written in full before it replaces any existing file.
func WriteFile(path string, d Dataset) error {
	format, err := FormatFromPath(path)
	if err != nil {
		return err
	}
	var buf bytes.Buffer
	if err := Encode(&buf, d, format); err != nil {
		return fmt.Errorf("encode %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// View is a snapshot of a manager's visible projections.
type View struct {
	Nodes []ViewNode `json:"nodes" yaml:"nodes"`
	Links []ViewLink `json:"links" yaml:"links"`
}

// ViewNode is a visible node as a front-end draws it.
type ViewNode struct {
	ID         string         `json:"id" yaml:"id"`
	Label      string         `json:"label" yaml:"label"`
	ParentID   string         `json:"parentId,omitempty" yaml:"parentId,omitempty"`
	Expandable bool           `json:"expandable" yaml:"expandable"`
	Expanded   bool           `json:"expanded" yaml:"expanded"`
	Color      string         `json:"color,omitempty" yaml:"color,omitempty"`
	Meta       map[string]any `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// ViewLink is a visible link tagged with its kind.
type ViewLink struct {
	Source string         `json:"source" yaml:"source"`
	Target string         `json:"target" yaml:"target"`
	Value  float64        `json:"value" yaml:"value"`
	Kind   string         `json:"kind" yaml:"kind"`
	Meta   map[string]any `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// NewView snapshots m's visible nodes and links. Empty projections are
// emitted as empty arrays, never null.
func NewView(m *hierarchy.Manager) View {
	nodes := m.VisibleNodes()
	links := m.VisibleLinks()
	v := View{
		Nodes: make([]ViewNode, 0, len(nodes)),
		Links: make([]ViewLink, 0, len(links)),
	}
	for _, n := range nodes {
		v.Nodes = append(v.Nodes, ViewNode{
			ID:         n.ID,
			Label:      n.DisplayLabel(),
			ParentID:   n.ParentID,
			Expandable: n.Expandable,
			Expanded:   n.Expanded,
			Color:      n.Color,
			Meta:       n.Meta,
		})
	}
	for _, l := range links {
		v.Links = append(v.Links, ViewLink{
			Source: l.Source,
			Target: l.Target,
			Value:  l.Value,
			Kind:   m.LinkKind(l).String(),
			Meta:   l.Meta,
		})
	}
	return v
}

// WriteView writes the visible projections of m to w as indented JSON
// (FormatJSON) or YAML (FormatYAML).
func WriteView(w io.Writer, m *hierarchy.Manager, format Format) error {
	v := NewView(m)
	switch format {
	case FormatJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(v)
	case FormatYAML:
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return err
		}
		return enc.Close()
	}
	return ferrors.New(ferrors.ErrCodeUnsupported, "views cannot be written as %q", format)
}
