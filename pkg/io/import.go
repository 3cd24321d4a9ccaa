package io

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	json "github.com/goccy/go-json"
	"gopkg.in/yaml.v3"

	ferrors "github.com/matzehuels/flowview/pkg/errors"
	"github.com/matzehuels/flowview/pkg/hierarchy"
)

// Format names a dataset encoding.
type Format string

// Supported formats.
const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
	FormatTOML Format = "toml"
)

// Formats lists every supported format.
var Formats = []Format{FormatJSON, FormatYAML, FormatTOML}

// ParseFormat parses a format name. "yml" is accepted as YAML.
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "json":
		return FormatJSON, nil
	case "yaml", "yml":
		return FormatYAML, nil
	case "toml":
		return FormatTOML, nil
	}
	return "", ferrors.New(ferrors.ErrCodeUnsupported, "unsupported format %q (want json, yaml or toml)", s)
}

// FormatFromPath infers the format from a file extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", ferrors.New(ferrors.ErrCodeUnsupported, "cannot infer format of %s: no extension", path)
	}
	return ParseFormat(ext)
}

// Dataset is the serialized form of a hierarchy.
type Dataset struct {
	Nodes []Node `json:"nodes" yaml:"nodes" toml:"nodes"`
	Links []Link `json:"links" yaml:"links" toml:"links"`
}

// Node is the serialized form of [hierarchy.Node]. The expanded flag is not
// part of a dataset; every node starts collapsed.
type Node struct {
	ID         string         `json:"id" yaml:"id" toml:"id"`
	ParentID   string         `json:"parentId,omitempty" yaml:"parentId,omitempty" toml:"parentId,omitempty"`
	Expandable bool           `json:"expandable,omitempty" yaml:"expandable,omitempty" toml:"expandable,omitempty"`
	Label      string         `json:"label,omitempty" yaml:"label,omitempty" toml:"label,omitempty"`
	Color      string         `json:"color,omitempty" yaml:"color,omitempty" toml:"color,omitempty"`
	Meta       map[string]any `json:"meta,omitempty" yaml:"meta,omitempty" toml:"meta,omitempty"`
}

// Link is the serialized form of [hierarchy.Link].
type Link struct {
	Source string         `json:"source" yaml:"source" toml:"source"`
	Target string         `json:"target" yaml:"target" toml:"target"`
	Value  float64        `json:"value" yaml:"value" toml:"value"`
	Meta   map[string]any `json:"meta,omitempty" yaml:"meta,omitempty" toml:"meta,omitempty"`
}

// Hierarchy converts the dataset to the manager's input types.
func (d Dataset) Hierarchy() ([]hierarchy.Node, []hierarchy.Link) {
	nodes := make([]hierarchy.Node, len(d.Nodes))
	for i, n := range d.Nodes {
		nodes[i] = hierarchy.Node{
			ID:         n.ID,
			ParentID:   n.ParentID,
			Expandable: n.Expandable,
			Label:      n.Label,
			Color:      n.Color,
			Meta:       hierarchy.Metadata(n.Meta),
		}
	}
	links := make([]hierarchy.Link, len(d.Links))
	for i, l := range d.Links {
		links[i] = hierarchy.Link{
			Source: l.Source,
			Target: l.Target,
			Value:  l.Value,
			Meta:   hierarchy.Metadata(l.Meta),
		}
	}
	return nodes, links
}

// Manager builds a manager over the dataset.
func (d Dataset) Manager(opts ...hierarchy.Option) *hierarchy.Manager {
	nodes, links := d.Hierarchy()
	return hierarchy.New(nodes, links, opts...)
}

// Validate runs [hierarchy.Validate] over the dataset.
func (d Dataset) Validate() error {
	nodes, links := d.Hierarchy()
	return hierarchy.Validate(nodes, links)
}

// FromHierarchy converts manager input types back to a dataset.
// Expanded flags are dropped.
func FromHierarchy(nodes []hierarchy.Node, links []hierarchy.Link) Dataset {
	d := Dataset{
		Nodes: make([]Node, len(nodes)),
		Links: make([]Link, len(links)),
	}
	for i, n := range nodes {
		d.Nodes[i] = Node{
			ID:         n.ID,
			ParentID:   n.ParentID,
			Expandable: n.Expandable,
			Label:      n.Label,
			Color:      n.Color,
			Meta:       n.Meta,
		}
	}
	for i, l := range links {
		d.Links[i] = Link{Source: l.Source, Target: l.Target, Value: l.Value, Meta: l.Meta}
	}
	return d
}

// Decode reads a dataset in the given format from r.
//
// Decode returns an INVALID_FORMAT error if the input is malformed and an
// UNSUPPORTED error for an unknown format. It does not validate references.
// Decode does not close r.
func Decode(r io.Reader, format Format) (Dataset, error) {
	var d Dataset
	var err error
	switch format {
	case FormatJSON:
		err = json.NewDecoder(r).Decode(&d)
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(&d)
		if err == io.EOF {
			err = nil
		}
	case FormatTOML:
		_, err = toml.NewDecoder(r).Decode(&d)
	default:
		return Dataset{}, ferrors.New(ferrors.ErrCodeUnsupported, "unsupported format %q", format)
	}
	if err != nil {
		return Dataset{}, ferrors.Wrap(ferrors.ErrCodeInvalidFormat, err, "decode %s", format)
	}
	if d.Nodes == nil {
		d.Nodes = []Node{}
	}
	if d.Links == nil {
		d.Links = []Link{}
	}
	return d, nil
}

// ReadFile decodes the dataset at path, inferring the format from the
// extension.
func ReadFile(path string) (Dataset, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return Dataset{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Dataset{}, ferrors.Wrap(ferrors.ErrCodeFileNotFound, err, "open %s", path)
		}
		return Dataset{}, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	d, err := Decode(f, format)
	if err != nil {
		return Dataset{}, fmt.Errorf("%s: %w", path, err)
	}
	return d, nil
}

// Fingerprint returns the hex SHA-256 of the dataset's canonical JSON.
// Datasets that differ only in file format share a fingerprint.
func Fingerprint(d Dataset) string {
	data, err := json.Marshal(d)
	if err != nil {
		// Meta values come from a decoder, so they always re-encode.
		data = []byte(fmt.Sprintf("%#v", d))
	}
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
