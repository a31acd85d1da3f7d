package cli

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/matzehuels/lanegraph/pkg/cache"
	"github.com/matzehuels/lanegraph/pkg/dag"
	"github.com/matzehuels/lanegraph/pkg/delta"
	"github.com/matzehuels/lanegraph/pkg/details"
	"github.com/matzehuels/lanegraph/pkg/errors"
	"github.com/matzehuels/lanegraph/pkg/render"
	"github.com/matzehuels/lanegraph/pkg/render/text"
	"github.com/matzehuels/lanegraph/pkg/session"
)

// browseOpts holds the command-line flags for the browse command.
type browseOpts struct {
	input    string   // commit file instead of a repository
	refs     []string // ref patterns to start from
	collapse bool     // start with every linear run folded
	palette  string   // lane colors
	noColor  bool     // plain glyphs
	noCache  bool     // bypass the details cache
}

// browseCommand creates the browse command, an interactive graph viewer.
func (c *CLI) browseCommand() *cobra.Command {
	var opts browseOpts

	cmd := &cobra.Command{
		Use:   "browse [repository]",
		Short: "Scroll through the commit graph in the terminal",
		Long: `Scroll through the commit graph, loading older history as you reach the
bottom. Enter folds the linear run through the selected commit or unfolds
the run it borders.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.palette == "" {
				opts.palette = c.config.Palette
			}
			repo := "."
			if len(args) == 1 {
				repo = args[0]
			}
			return c.runBrowse(cmd.Context(), repo, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "read commits from a JSON file instead of a repository")
	cmd.Flags().StringSliceVar(&opts.refs, "refs", nil, "ref patterns to start from (default all refs)")
	cmd.Flags().BoolVar(&opts.collapse, "collapse", false, "start with every linear run folded")
	cmd.Flags().StringVar(&opts.palette, "palette", "", "lane colors: "+strings.Join(render.PaletteNames(), ", "))
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "disable lane colors")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "bypass the details cache")

	return cmd
}

func (c *CLI) runBrowse(ctx context.Context, repo string, opts *browseOpts) error {
	logger := loggerFromContext(ctx)
	if !render.ValidPalette(opts.palette) {
		return errors.New(errors.ErrCodeInvalidInput, "unknown palette %q", opts.palette)
	}

	src, scope, err := openSource(repo, opts.input, opts.refs)
	if err != nil {
		return err
	}
	backend, err := c.newCache(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer backend.Close()

	sopts := c.config.sessionOptions()
	sopts.Logger = logger
	if loader, ok := src.(details.Loader); ok {
		sopts.Details = details.NewCache(backend, loader, details.Options{
			Keyer:  cache.NewScopedKeyer(nil, cache.RepoScope(scope)),
			TTL:    c.config.Cache.TTL,
			Logger: logger,
		})
	}

	sess, err := loadSession(ctx, src, sopts, sopts.PageSize)
	if err != nil {
		return err
	}
	if opts.collapse {
		if _, err := sess.CollapseAll(); err != nil {
			return err
		}
	}

	m := newBrowseModel(ctx, sess, text.Options{
		Color:   !opts.noColor,
		Palette: render.PaletteByName(opts.palette),
		Refs:    sess.Refs(),
	})
	_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(ctx)).Run()
	return err
}

// =============================================================================
// browseModel - Interactive graph viewer
// =============================================================================

// Messages delivered by browse commands.
type (
	// changedMsg reports a finished session mutation.
	changedMsg struct {
		r    delta.Replace
		more bool // result of a page load
		err  error
	}
	// rowMsg carries the snapshot of the selected row.
	rowMsg struct {
		view session.RowView
		err  error
	}
)

// browseModel is the bubbletea model of the browse command. Rendered lines
// live in a row cache that the session keeps in sync with every change.
type browseModel struct {
	ctx   context.Context
	sess  *session.Session
	lines *delta.RowCache[string]

	cursor  int
	top     int
	height  int // rows shown
	loading bool
	done    bool // source exhausted
	current *session.RowView
	status  string
}

// newBrowseModel renders the rows of sess with opts.
func newBrowseModel(ctx context.Context, sess *session.Session, opts text.Options) browseModel {
	var r *text.Renderer
	sess.Do(func(g *dag.Graph) { r = text.New(g, opts) })
	lines := session.Watch(sess, func(_ *dag.Graph, row int) string { return r.Row(row) })
	return browseModel{
		ctx:    ctx,
		sess:   sess,
		lines:  lines,
		height: 20,
		done:   sess.Summary().Exhausted,
	}
}

func (m browseModel) Init() tea.Cmd {
	return tea.Batch(m.describe(), m.prefetch())
}

func (m browseModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.height = max(msg.Height-3, 3)
		m.scroll()
		cmd := tea.Batch(m.prefetch(), m.maybeLoad())
		return m, cmd

	case tea.KeyMsg:
		return m.key(msg.String())

	case changedMsg:
		if msg.more {
			m.loading = false
			m.done = m.sess.Summary().Exhausted
		}
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		m.status = ""
		m.clamp()
		cmd := tea.Batch(m.describe(), m.prefetch(), m.maybeLoad())
		return m, cmd

	case rowMsg:
		if msg.err != nil {
			m.status = msg.err.Error()
			return m, nil
		}
		if msg.view.Index == m.cursor {
			v := msg.view
			m.current = &v
		}
	}
	return m, nil
}

func (m browseModel) key(k string) (tea.Model, tea.Cmd) {
	last := m.rowCount() - 1
	switch k {
	case "q", "ctrl+c", "esc":
		return m, tea.Quit
	case "up", "k":
		m.cursor--
	case "down", "j":
		m.cursor++
	case "pgup", "b":
		m.cursor -= m.height
	case "pgdown", "f":
		m.cursor += m.height
	case "home", "g":
		m.cursor = 0
	case "end", "G":
		m.cursor = last
	case "enter", " ":
		return m, m.toggle()
	case "c":
		return m, m.change(m.sess.CollapseAll)
	case "e":
		return m, m.change(m.sess.ExpandAll)
	default:
		return m, nil
	}
	top := m.top
	m.clamp()
	cmds := []tea.Cmd{m.describe(), m.maybeLoad()}
	if m.top != top {
		cmds = append(cmds, m.prefetch())
	}
	return m, tea.Batch(cmds...)
}

// clamp keeps the cursor on a row and the viewport around the cursor.
func (m *browseModel) clamp() {
	m.cursor = max(min(m.cursor, m.rowCount()-1), 0)
	m.scroll()
}

func (m *browseModel) scroll() {
	if m.cursor < m.top {
		m.top = m.cursor
	}
	if m.cursor >= m.top+m.height {
		m.top = m.cursor - m.height + 1
	}
}

func (m browseModel) rowCount() int {
	var n int
	m.sess.Do(func(*dag.Graph) { n = m.lines.Len() })
	return n
}

// describe fetches the selected row with its commit details.
func (m browseModel) describe() tea.Cmd {
	row := m.cursor
	return func() tea.Msg {
		rows, err := m.sess.Snapshot(m.ctx, row, row+1)
		if err != nil || len(rows) == 0 {
			return rowMsg{err: err}
		}
		return rowMsg{view: rows[0]}
	}
}

// prefetch warms the details of the rows around the viewport. It only
// reports failures.
func (m browseModel) prefetch() tea.Cmd {
	from, to := m.top, m.top+m.height
	return func() tea.Msg {
		if _, err := m.sess.Prefetch(m.ctx, from, to); err != nil {
			return rowMsg{err: err}
		}
		return nil
	}
}

// maybeLoad pages in more history once the viewport nears the last row.
func (m *browseModel) maybeLoad() tea.Cmd {
	if m.done || m.loading || m.top+2*m.height < m.rowCount() {
		return nil
	}
	m.loading = true
	ctx, sess := m.ctx, m.sess
	return func() tea.Msg {
		r, err := sess.LoadMore(ctx)
		return changedMsg{r: r, more: true, err: err}
	}
}

// toggle folds or unfolds at the commit of the selected row, or at its
// first node when the row has no commit.
func (m browseModel) toggle() tea.Cmd {
	row := m.cursor
	return func() tea.Msg {
		col := 0
		rows, err := m.sess.Snapshot(m.ctx, row, row+1)
		if err != nil || len(rows) == 0 {
			return changedMsg{err: err}
		}
		for i, n := range rows[0].Nodes {
			if n.Type == dag.NodeCommit.String() {
				col = i
				break
			}
		}
		r, err := m.sess.Toggle(row, col)
		return changedMsg{r: r, err: err}
	}
}

func (m browseModel) change(fn func() (delta.Replace, error)) tea.Cmd {
	return func() tea.Msg {
		r, err := fn()
		return changedMsg{r: r, err: err}
	}
}

func (m browseModel) View() string {
	var b strings.Builder
	var total int
	m.sess.Do(func(*dag.Graph) {
		total = m.lines.Len()
		end := min(m.top+m.height, total)
		for i := m.top; i < end; i++ {
			if i == m.cursor {
				b.WriteString(StyleHighlight.Render("▸ "))
			} else {
				b.WriteString("  ")
			}
			b.WriteString(m.lines.Get(i))
			b.WriteByte('\n')
		}
	})

	b.WriteByte('\n')
	b.WriteString(m.statusLine(total))
	b.WriteByte('\n')
	b.WriteString(StyleDim.Render("↑/↓ move  ⏎ fold  c collapse all  e expand all  q quit"))
	return b.String()
}

func (m browseModel) statusLine(total int) string {
	parts := []string{fmt.Sprintf("[%d/%d]", m.cursor+1, total)}
	if v := m.current; v != nil && v.Index == m.cursor {
		if d := v.Details; d != nil {
			parts = append(parts, d.Author, formatRelativeTime(d.When), d.Subject)
		} else if v.Commit != "" {
			parts = append(parts, v.Commit)
		}
	}
	if m.loading {
		parts = append(parts, "loading...")
	} else if !m.done {
		parts = append(parts, "more below")
	}
	line := StyleDim.Render(strings.Join(parts, " · "))
	if m.status != "" {
		line += "  " + StyleWarning.Render(m.status)
	}
	return line
}

// formatRelativeTime formats t relative to now for recent times and as a
// date otherwise.
func formatRelativeTime(t time.Time) string {
	diff := time.Since(t)
	switch {
	case diff < time.Hour:
		return fmt.Sprintf("%dm ago", int(diff.Minutes()))
	case diff < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(diff.Hours()))
	case diff < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(diff.Hours()/24))
	default:
		return t.Format("Jan 2, 2006")
	}
}
