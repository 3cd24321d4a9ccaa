package cli

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/matzehuels/flowview/pkg/hierarchy"
	pkgio "github.com/matzehuels/flowview/pkg/io"
	"github.com/matzehuels/flowview/pkg/observability"
	"github.com/matzehuels/flowview/pkg/session"
)

// List styles
var (
	listSelectedStyle = lipgloss.NewStyle().Bold(true).Foreground(colorCyan)
	listNormalStyle   = lipgloss.NewStyle().Foreground(colorWhite)
	listDimStyle      = lipgloss.NewStyle().Foreground(colorDim)
)

// treeRow is one line of the visible hierarchy.
type treeRow struct {
	ID    string
	Depth int
}

// visibleRows flattens the visible hierarchy depth-first, children in
// dataset order under their parent.
func visibleRows(m *hierarchy.Manager) []treeRow {
	var rows []treeRow
	var walk func(id string, depth int)
	walk = func(id string, depth int) {
		rows = append(rows, treeRow{ID: id, Depth: depth})
		for _, child := range m.Children(id) {
			if m.IsVisible(child) {
				walk(child, depth+1)
			}
		}
	}
	for _, n := range m.VisibleNodes() {
		if n.IsTopLevel() || !m.IsVisible(n.ParentID) {
			walk(n.ID, 0)
		}
	}
	return rows
}

// =============================================================================
// ExploreModel - Interactive expand/collapse
// =============================================================================

// ExploreModel is the bubbletea model for interactive exploration.
type ExploreModel struct {
	Manager *hierarchy.Manager
	Title   string
	Rows    []treeRow
	Cursor  int
	Height  int
	Offset  int

	ctx context.Context
}

// NewExploreModel creates an explore model over m.
func NewExploreModel(ctx context.Context, title string, m *hierarchy.Manager) ExploreModel {
	return ExploreModel{
		Manager: m,
		Title:   title,
		Rows:    visibleRows(m),
		Height:  15,
		ctx:     ctx,
	}
}

func (m ExploreModel) Init() tea.Cmd {
	return nil
}

func (m ExploreModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c", "esc":
			return m, tea.Quit
		case "up", "k":
			if m.Cursor > 0 {
				m.Cursor--
			}
		case "down", "j":
			if m.Cursor < len(m.Rows)-1 {
				m.Cursor++
			}
		case "home", "g":
			m.Cursor = 0
		case "end", "G":
			m.Cursor = max(len(m.Rows)-1, 0)
		case "enter", " ":
			m = m.mutate("toggle", m.Manager.Toggle)
		case "right", "l":
			m = m.mutate("expand", m.Manager.Expand)
		case "left", "h":
			m = m.mutate("collapse", m.Manager.Collapse)
		case "e":
			m = m.mutateAll("expand_all", m.Manager.ExpandAll)
		case "c":
			m = m.mutateAll("collapse_all", m.Manager.CollapseAll)
		}
	case tea.WindowSizeMsg:
		m.Height = msg.Height - 8
		if m.Height < 5 {
			m.Height = 5
		}
	}
	m.scroll()
	return m, nil
}

// selected returns the ID under the cursor, or "" when nothing is visible.
func (m ExploreModel) selected() string {
	if m.Cursor < 0 || m.Cursor >= len(m.Rows) {
		return ""
	}
	return m.Rows[m.Cursor].ID
}

// mutate applies fn to the selected node and keeps the cursor on it.
func (m ExploreModel) mutate(op string, fn func(string)) ExploreModel {
	id := m.selected()
	if id == "" {
		return m
	}
	n, _ := m.Manager.Node(id)
	start := time.Now()
	fn(id)
	m.refresh(op, id, n.Expandable, start)
	m.follow(id, m.Cursor)
	return m
}

func (m ExploreModel) mutateAll(op string, fn func()) ExploreModel {
	id := m.selected()
	start := time.Now()
	fn()
	m.refresh(op, "", true, start)
	m.follow(id, 0)
	return m
}

// follow moves the cursor to the row showing id, or to fallback when id is
// no longer visible.
func (m *ExploreModel) follow(id string, fallback int) {
	for i, r := range m.Rows {
		if r.ID == id {
			m.Cursor = i
			return
		}
	}
	m.Cursor = fallback
}

// refresh rebuilds the rows from the manager's visible nodes and reports
// the mutation.
func (m *ExploreModel) refresh(op, id string, applied bool, start time.Time) {
	m.Rows = visibleRows(m.Manager)
	hooks := observability.Visibility()
	hooks.OnMutation(m.ctx, op, id, applied)
	hooks.OnRecompute(m.ctx, len(m.Rows), len(m.Manager.VisibleLinks()), time.Since(start))
	if m.Cursor >= len(m.Rows) {
		m.Cursor = max(len(m.Rows)-1, 0)
	}
}

func (m *ExploreModel) scroll() {
	if m.Cursor < m.Offset {
		m.Offset = m.Cursor
	}
	if m.Cursor >= m.Offset+m.Height {
		m.Offset = m.Cursor - m.Height + 1
	}
}

func (m ExploreModel) View() string {
	var b strings.Builder

	b.WriteString(StyleTitle.Render(m.Title))
	b.WriteString("\n")
	b.WriteString(listDimStyle.Render("↑/↓ navigate  ⏎ toggle  →/← expand/collapse  e/c all  q quit"))
	b.WriteString("\n\n")

	if len(m.Rows) == 0 {
		b.WriteString(listDimStyle.Render("  (no visible nodes)"))
		b.WriteString("\n")
	}

	end := min(m.Offset+m.Height, len(m.Rows))
	for i := m.Offset; i < end; i++ {
		r := m.Rows[i]
		n, _ := m.Manager.Node(r.ID)

		cursor := "  "
		if i == m.Cursor {
			cursor = "▸ "
		}
		line := fmt.Sprintf("%s%s%s %s", cursor, strings.Repeat("  ", r.Depth), nodeIcon(n), n.DisplayLabel())

		switch {
		case i == m.Cursor:
			b.WriteString(listSelectedStyle.Render(line))
		case n.Expandable:
			b.WriteString(listNormalStyle.Render(line))
		default:
			b.WriteString(listDimStyle.Render(line))
		}
		b.WriteString("\n")
	}

	b.WriteString("\n")
	b.WriteString(listDimStyle.Render(fmt.Sprintf("  [%d/%d]  %d/%d nodes · %d/%d links",
		min(m.Cursor+1, len(m.Rows)), len(m.Rows),
		len(m.Rows), m.Manager.NodeCount(),
		len(m.Manager.VisibleLinks()), m.Manager.LinkCount())))

	return b.String()
}

// =============================================================================
// Command
// =============================================================================

// exploreCommand creates the explore command.
func (c *CLI) exploreCommand() *cobra.Command {
	var (
		fresh  bool
		strict bool
	)

	cmd := &cobra.Command{
		Use:   "explore <dataset>",
		Short: "Expand and collapse a dataset interactively",
		Long: `Browse the visible hierarchy of a dataset in the terminal. The expanded
nodes are remembered per dataset and restored the next time the same file
content is explored.

Keys:
  ↑/k ↓/j     move
  enter/space toggle the selected node
  →/l ←/h     expand / collapse the selected node
  e / c       expand / collapse everything
  q           quit`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runExplore(cmd.Context(), args[0], fresh, strict)
		},
	}

	cmd.Flags().BoolVar(&fresh, "fresh", false, "ignore the saved state and start collapsed")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail if the dataset does not validate")

	return cmd
}

func (c *CLI) runExplore(ctx context.Context, path string, fresh, strict bool) error {
	ds, err := c.loadDataset(path, strict)
	if err != nil {
		return err
	}

	store, err := c.exploreStore()
	if err != nil {
		return err
	}
	fp := pkgio.Fingerprint(ds)
	m := c.newManager(ds)
	if !fresh {
		c.restoreState(ctx, store, fp, m)
	}

	p := tea.NewProgram(NewExploreModel(ctx, filepath.Base(path), m), tea.WithAltScreen())
	if _, err := p.Run(); err != nil {
		return err
	}

	return c.saveState(ctx, store, fp, m)
}

// exploreStore opens the file store that keeps explore state. It shares
// the directory with the file session backend; explore entries are keyed by
// dataset fingerprint.
func (c *CLI) exploreStore() (*session.FileStore, error) {
	return session.NewFileStore(c.Config.StateDir)
}

// restoreState applies the state saved for fingerprint fp, if any.
func (c *CLI) restoreState(ctx context.Context, store session.Store, fp string, m *hierarchy.Manager) {
	sess, err := store.Get(ctx, fp)
	observability.Store().OnStateLoad(ctx, fp, sess != nil, err)
	if err != nil {
		c.Logger.Warn("Could not read saved state", "err", err)
		return
	}
	if sess != nil && sess.State.Apply(m, fp) {
		c.Logger.Info("Restored saved state", "expanded", len(sess.State.Expanded))
	}
}

// saveState records m's expanded nodes under fingerprint fp. Explore state
// does not expire.
func (c *CLI) saveState(ctx context.Context, store session.Store, fp string, m *hierarchy.Manager) error {
	sess := session.NewWithID(fp, fp, 0)
	sess.State = session.Capture(m, fp)
	err := store.Set(ctx, sess)
	observability.Store().OnStateSave(ctx, fp, len(sess.State.Expanded), err)
	if err != nil {
		return fmt.Errorf("save state: %w", err)
	}
	return nil
}
