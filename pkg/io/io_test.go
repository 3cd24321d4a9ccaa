package io

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	json "github.com/goccy/go-json"

	ferrors "github.com/matzehuels/flowview/pkg/errors"
	"github.com/matzehuels/flowview/pkg/hierarchy"
)

const budgetJSON = `{
  "nodes": [
    {"id": "income"},
    {"id": "expenses", "expandable": true, "label": "Expenses", "color": "#c33"},
    {"id": "rent", "parentId": "expenses"},
    {"id": "food", "parentId": "expenses", "meta": {"category": "daily"}},
    {"id": "spent"}
  ],
  "links": [
    {"source": "income", "target": "expenses", "value": 10},
    {"source": "expenses", "target": "spent", "value": 10},
    {"source": "expenses", "target": "rent", "value": 6},
    {"source": "expenses", "target": "food", "value": 4},
    {"source": "rent", "target": "spent", "value": 6},
    {"source": "food", "target": "spent", "value": 4}
  ]
}`

const budgetYAML = `nodes:
  - id: income
  - id: expenses
    expandable: true
    label: Expenses
    color: "#c33"
  - id: rent
    parentId: expenses
  - id: food
    parentId: expenses
    meta:
      category: daily
  - id: spent
links:
  - {source: income, target: expenses, value: 10}
  - {source: expenses, target: spent, value: 10}
  - {source: expenses, target: rent, value: 6}
  - {source: expenses, target: food, value: 4}
  - {source: rent, target: spent, value: 6}
  - {source: food, target: spent, value: 4}
`

const budgetTOML = `[[nodes]]
id = "income"

[[nodes]]
id = "expenses"
expandable = true
label = "Expenses"
color = "#c33"

[[nodes]]
id = "rent"
parentId = "expenses"

[[nodes]]
id = "food"
parentId = "expenses"
[nodes.meta]
category = "daily"

[[nodes]]
id = "spent"

[[links]]
source = "income"
target = "expenses"
value = 10.0

[[links]]
source = "expenses"
target = "spent"
value = 10.0

[[links]]
source = "expenses"
target = "rent"
value = 6.0

[[links]]
source = "expenses"
target = "food"
value = 4.0

[[links]]
source = "rent"
target = "spent"
value = 6.0

[[links]]
source = "food"
target = "spent"
value = 4.0
`

func TestDecodeFormats(t *testing.T) {
	tests := []struct {
		format Format
		input  string
	}{
		{FormatJSON, budgetJSON},
		{FormatYAML, budgetYAML},
		{FormatTOML, budgetTOML},
	}
	for _, tt := range tests {
		t.Run(string(tt.format), func(t *testing.T) {
			d, err := Decode(strings.NewReader(tt.input), tt.format)
			if err != nil {
				t.Fatalf("Decode: %v", err)
			}
			if len(d.Nodes) != 5 || len(d.Links) != 6 {
				t.Fatalf("got %d nodes, %d links; want 5, 6", len(d.Nodes), len(d.Links))
			}
			exp := d.Nodes[1]
			if exp.ID != "expenses" || !exp.Expandable || exp.Label != "Expenses" || exp.Color != "#c33" {
				t.Errorf("expenses node = %+v", exp)
			}
			if d.Nodes[2].ParentID != "expenses" {
				t.Errorf("rent parent = %q", d.Nodes[2].ParentID)
			}
			if got := d.Nodes[3].Meta["category"]; got != "daily" {
				t.Errorf("food meta category = %v", got)
			}
			if d.Links[2].Value != 6 {
				t.Errorf("link value = %g, want 6", d.Links[2].Value)
			}
			if err := d.Validate(); err != nil {
				t.Errorf("Validate: %v", err)
			}
		})
	}
}

func TestDecodeEmpty(t *testing.T) {
	for _, format := range []Format{FormatJSON, FormatYAML} {
		input := "{}"
		if format == FormatYAML {
			input = ""
		}
		d, err := Decode(strings.NewReader(input), format)
		if err != nil {
			t.Fatalf("%s: Decode: %v", format, err)
		}
		if d.Nodes == nil || d.Links == nil {
			t.Errorf("%s: empty dataset has nil slices", format)
		}
	}
}

func TestDecodeErrors(t *testing.T) {
	_, err := Decode(strings.NewReader("{not json"), FormatJSON)
	if !ferrors.Is(err, ferrors.ErrCodeInvalidFormat) {
		t.Errorf("malformed JSON: code = %s, want INVALID_FORMAT", ferrors.GetCode(err))
	}
	_, err = Decode(strings.NewReader("nodes = ["), FormatTOML)
	if !ferrors.Is(err, ferrors.ErrCodeInvalidFormat) {
		t.Errorf("malformed TOML: code = %s, want INVALID_FORMAT", ferrors.GetCode(err))
	}
	_, err = Decode(strings.NewReader(""), Format("xml"))
	if !ferrors.Is(err, ferrors.ErrCodeUnsupported) {
		t.Errorf("xml: code = %s, want UNSUPPORTED", ferrors.GetCode(err))
	}
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in      string
		want    Format
		wantErr bool
	}{
		{"json", FormatJSON, false},
		{"JSON", FormatJSON, false},
		{"yml", FormatYAML, false},
		{" yaml ", FormatYAML, false},
		{"toml", FormatTOML, false},
		{"csv", "", true},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if (err != nil) != tt.wantErr || got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, %v", tt.in, got, err)
		}
	}

	if _, err := FormatFromPath("data"); err == nil {
		t.Error("FormatFromPath without extension should fail")
	}
	if f, _ := FormatFromPath("a/b/flows.YML"); f != FormatYAML {
		t.Errorf("FormatFromPath(.YML) = %q", f)
	}
}

func TestRoundTripAcrossFormats(t *testing.T) {
	src, err := Decode(strings.NewReader(budgetJSON), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	want := Fingerprint(src)

	dir := t.TempDir()
	for _, name := range []string{"out.json", "out.yaml", "out.toml"} {
		path := filepath.Join(dir, name)
		if err := WriteFile(path, src); err != nil {
			t.Fatalf("WriteFile(%s): %v", name, err)
		}
		got, err := ReadFile(path)
		if err != nil {
			t.Fatalf("ReadFile(%s): %v", name, err)
		}
		if fp := Fingerprint(got); fp != want {
			t.Errorf("%s: fingerprint changed across round trip", name)
		}
	}
	if _, err := os.Stat(filepath.Join(dir, "out.json.tmp")); !os.IsNotExist(err) {
		t.Error("temporary file left behind")
	}
}

func TestReadFileMissing(t *testing.T) {
	_, err := ReadFile(filepath.Join(t.TempDir(), "nope.json"))
	if !ferrors.Is(err, ferrors.ErrCodeFileNotFound) {
		t.Errorf("code = %s, want FILE_NOT_FOUND", ferrors.GetCode(err))
	}
}

func TestFingerprint(t *testing.T) {
	a := Dataset{Nodes: []Node{{ID: "a"}}, Links: []Link{}}
	b := Dataset{Nodes: []Node{{ID: "b"}}, Links: []Link{}}
	if Fingerprint(a) == Fingerprint(b) {
		t.Error("different datasets share a fingerprint")
	}
	if Fingerprint(a) != Fingerprint(a) {
		t.Error("fingerprint is not stable")
	}
	if len(Fingerprint(a)) != 64 {
		t.Errorf("fingerprint length = %d, want 64", len(Fingerprint(a)))
	}
}

func TestHierarchyConversion(t *testing.T) {
	d, err := Decode(strings.NewReader(budgetJSON), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	nodes, links := d.Hierarchy()
	back := FromHierarchy(nodes, links)
	if Fingerprint(back) != Fingerprint(d) {
		t.Error("FromHierarchy(Hierarchy()) changed the dataset")
	}
}

func TestNewView(t *testing.T) {
	d, err := Decode(strings.NewReader(budgetJSON), FormatJSON)
	if err != nil {
		t.Fatal(err)
	}
	m := d.Manager()

	v := NewView(m)
	if len(v.Nodes) != 3 || len(v.Links) != 2 {
		t.Fatalf("collapsed view: %d nodes, %d links; want 3, 2", len(v.Nodes), len(v.Links))
	}
	if v.Nodes[1].Label != "Expenses" || v.Nodes[0].Label != "income" {
		t.Errorf("labels = %q, %q", v.Nodes[0].Label, v.Nodes[1].Label)
	}
	if v.Links[1].Kind != "aggregate" {
		t.Errorf("expenses->spent kind = %q, want aggregate", v.Links[1].Kind)
	}

	m.Expand("expenses")
	v = NewView(m)
	if !v.Nodes[1].Expanded {
		t.Error("expenses not marked expanded")
	}
	kinds := map[string]string{}
	for _, l := range v.Links {
		kinds[l.Source+"->"+l.Target] = l.Kind
	}
	if kinds["expenses->rent"] != "detail" || kinds["rent->spent"] != "plain" {
		t.Errorf("kinds = %v", kinds)
	}
}

func TestWriteViewEmptyArrays(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteView(&buf, hierarchy.New(nil, nil), FormatJSON); err != nil {
		t.Fatal(err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(buf.Bytes(), &raw); err != nil {
		t.Fatal(err)
	}
	if string(raw["nodes"]) != "[]" || string(raw["links"]) != "[]" {
		t.Errorf("empty view = %s", buf.String())
	}

	if err := WriteView(&buf, hierarchy.New(nil, nil), FormatTOML); !ferrors.Is(err, ferrors.ErrCodeUnsupported) {
		t.Errorf("TOML view error = %v, want UNSUPPORTED", err)
	}
}

func TestWatch(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "flows.json")
	if err := os.WriteFile(path, []byte(`{"nodes":[{"id":"a"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	got := make(chan Dataset, 4)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, 20*time.Millisecond, func(d Dataset, err error) {
			if err == nil {
				got <- d
			}
		})
	}()

	// Give the watcher time to register before writing.
	time.Sleep(100 * time.Millisecond)
	if err := os.WriteFile(filepath.Join(dir, "other.json"), []byte(`{}`), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(`{"nodes":[{"id":"a"},{"id":"b"}]}`), 0o644); err != nil {
		t.Fatal(err)
	}

	select {
	case d := <-got:
		if len(d.Nodes) != 2 {
			t.Errorf("reloaded %d nodes, want 2", len(d.Nodes))
		}
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Watch returned %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Watch did not stop after cancel")
	}
}
