package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/matzehuels/flowview/pkg/hierarchy"
	pkgio "github.com/matzehuels/flowview/pkg/io"
)

// step is one occurrence of a mutation flag.
type step struct {
	op string
	id string
}

// stepFlag records flag occurrences into a shared list so that --expand
// and --collapse are applied in the order given on the command line.
type stepFlag struct {
	op    string
	steps *[]step
}

func (f *stepFlag) String() string { return "" }
func (f *stepFlag) Type() string   { return "id" }
func (f *stepFlag) Set(id string) error {
	for _, part := range strings.Split(id, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*f.steps = append(*f.steps, step{op: f.op, id: part})
		}
	}
	return nil
}

// applySteps runs the recorded mutations against m in order.
func applySteps(m *hierarchy.Manager, steps []step) {
	for _, s := range steps {
		switch s.op {
		case "expand":
			m.Expand(s.id)
		case "collapse":
			m.Collapse(s.id)
		case "toggle":
			m.Toggle(s.id)
		}
	}
}

// showOptions holds options for the show command.
type showOptions struct {
	steps     []step
	expandAll bool
	format    string
	strict    bool
}

// showCommand creates the show command for printing visible projections.
func (c *CLI) showCommand() *cobra.Command {
	opts := showOptions{}

	cmd := &cobra.Command{
		Use:   "show <dataset>",
		Short: "Print the visible nodes and links of a dataset",
		Long: `Print the nodes and links that are visible after applying a series of
expand, collapse and toggle steps. Steps run in the order they are given.

Output format:
  text   Indented tree and link table (default)
  json   View object as consumed by the HTTP API
  yaml   Same as json, in YAML`,
		Example: `  # Top level only
  flowview show examples/budget.json

  # Expand a node, then one of its children
  flowview show examples/budget.json --expand expenses --expand housing

  # Expand everything and export the view
  flowview show examples/budget.yaml --all --format json`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runShow(cmd.OutOrStdout(), args[0], opts)
		},
	}

	cmd.Flags().Var(&stepFlag{op: "expand", steps: &opts.steps}, "expand", "expand a node (repeatable, comma-separated)")
	cmd.Flags().Var(&stepFlag{op: "collapse", steps: &opts.steps}, "collapse", "collapse a node (repeatable, comma-separated)")
	cmd.Flags().Var(&stepFlag{op: "toggle", steps: &opts.steps}, "toggle", "toggle a node (repeatable, comma-separated)")
	cmd.Flags().BoolVarP(&opts.expandAll, "all", "a", false, "expand every expandable node before applying steps")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "text", "output format: text, json, yaml")
	cmd.Flags().BoolVar(&opts.strict, "strict", false, "fail if the dataset does not validate")

	return cmd
}

// runShow loads the dataset, applies the steps and prints the result.
func (c *CLI) runShow(w io.Writer, path string, opts showOptions) error {
	ds, err := c.loadDataset(path, opts.strict)
	if err != nil {
		return err
	}

	m := c.newManager(ds)
	if opts.expandAll {
		m.ExpandAll()
	}
	applySteps(m, opts.steps)

	switch strings.ToLower(opts.format) {
	case "", "text":
		renderText(w, m)
		return nil
	default:
		format, err := pkgio.ParseFormat(opts.format)
		if err != nil {
			return err
		}
		return pkgio.WriteView(w, m, format)
	}
}

// renderText prints the visible hierarchy as an indented tree followed by
// a table of visible links.
func renderText(w io.Writer, m *hierarchy.Manager) {
	nodes := m.VisibleNodes()
	links := m.VisibleLinks()

	printSection(w, "Nodes")
	if len(nodes) == 0 {
		printDetail(w, "(none)")
	}
	for _, r := range visibleRows(m) {
		n, _ := m.Node(r.ID)
		fmt.Fprintln(w, strings.Repeat("  ", r.Depth)+nodeLine(n))
	}
	fmt.Fprintln(w)

	printSection(w, "Links")
	if len(links) == 0 {
		printDetail(w, "(none)")
	} else {
		fmt.Fprintln(w, linkTable(m, links))
	}
	fmt.Fprintln(w)

	printStats(w, len(nodes), m.NodeCount(), len(links), m.LinkCount())
}

// nodeIcon marks a node as expanded, collapsed or a leaf.
func nodeIcon(n hierarchy.Node) string {
	switch {
	case n.Expandable && n.Expanded:
		return iconExpanded
	case n.Expandable:
		return iconCollapsed
	}
	return iconLeaf
}

func nodeLine(n hierarchy.Node) string {
	line := StyleHighlight.Render(nodeIcon(n)) + " " + StyleValue.Render(n.DisplayLabel())
	if n.Label != "" && n.Label != n.ID {
		line += " " + StyleDim.Render("("+n.ID+")")
	}
	return line
}

func linkTable(m *hierarchy.Manager, links []hierarchy.Link) string {
	rows := make([][]string, 0, len(links))
	kinds := make([]hierarchy.LinkKind, 0, len(links))
	for _, l := range links {
		kind := m.LinkKind(l)
		kinds = append(kinds, kind)
		rows = append(rows, []string{l.Source, l.Target, formatValue(l.Value), kind.String()})
	}

	headerStyle := lipgloss.NewStyle().Foreground(colorGray).Bold(true)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(lipgloss.NewStyle().Foreground(colorDim)).
		Headers("Source", "Target", "Value", "Kind").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == -1 {
				return headerStyle
			}
			base := lipgloss.NewStyle().Padding(0, 1)
			if col == 2 {
				base = base.Align(lipgloss.Right)
			}
			if row >= 0 && row < len(kinds) && kinds[row] == hierarchy.LinkAggregate {
				return base.Inherit(styleAggregate)
			}
			return base
		}).
		Render()
}

func formatValue(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
