// Package session keeps interactive views over commit graphs.
//
// A [Session] owns one graph together with everything needed to grow and fold
// it: the builder that appends further pages from a [source.Source], the
// fragment manager that collapses linear runs, and the derived per-row
// structures that must follow every change. Each mutation returns the
// [delta.Replace] describing it, after the session has forwarded that Replace
// to every registered [Listener] in registration order.
//
// # Concurrency
//
// A session serializes all of its operations on one mutex, so the graph has a
// single writer at any time. Sessions of a [Manager] are independent.
//
// # Usage
//
//	src, err := gitrepo.Open(".", gitrepo.Options{})
//	sess, err := session.New(ctx, src, session.Options{PageSize: 500})
//
//	r, err := sess.LoadMore(ctx)      // next page
//	r, err = sess.Toggle(row, col)    // fold or unfold at a node
//	rows, err := sess.Snapshot(ctx, 0, 50)
package session

import (
	"context"
	"io"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/matzehuels/lanegraph/pkg/dag"
	"github.com/matzehuels/lanegraph/pkg/dag/fragment"
	"github.com/matzehuels/lanegraph/pkg/delta"
	"github.com/matzehuels/lanegraph/pkg/details"
	"github.com/matzehuels/lanegraph/pkg/errors"
	"github.com/matzehuels/lanegraph/pkg/source"
)

// Default values for [Options].
const (
	DefaultPageSize  = 1000
	DefaultRowHeight = 20
	DefaultTTL       = 30 * time.Minute
)

// Options configures a [Session].
type Options struct {
	// PageSize is the number of commits read per LoadMore.
	PageSize int
	// FirstLane is passed to the builder.
	FirstLane int
	// Unconcealable lists ref patterns (path.Match syntax) whose commits are
	// never folded into a fragment. Empty folds every eligible commit.
	Unconcealable []string
	// RowHeight is the pixel height of a row in the offset table.
	RowHeight int
	// OffsetStep is the checkpoint distance of the offset table.
	OffsetStep int
	// TTL is the idle time after which a [Manager] drops the session.
	TTL time.Duration
	// Details, when set, fills commit metadata into snapshots.
	Details *details.Cache
	Logger  *log.Logger
}

// SetDefaults fills zero fields with their defaults.
func (o *Options) SetDefaults() {
	if o.PageSize <= 0 {
		o.PageSize = DefaultPageSize
	}
	if o.RowHeight <= 0 {
		o.RowHeight = DefaultRowHeight
	}
	if o.OffsetStep <= 0 {
		o.OffsetStep = delta.DefaultStep
	}
	if o.TTL <= 0 {
		o.TTL = DefaultTTL
	}
	if o.Logger == nil {
		o.Logger = log.New(io.Discard)
	}
}

// Listener follows structural changes of a session's graph. Recalculate is
// called with every non-empty Replace, after the graph changed.
type Listener interface {
	Recalculate(r delta.Replace) error
}

// ListenerFunc adapts a function to [Listener].
type ListenerFunc func(r delta.Replace) error

// Recalculate calls f.
func (f ListenerFunc) Recalculate(r delta.Replace) error { return f(r) }

// Session is one interactive view over a commit graph.
type Session struct {
	ID      string
	Created time.Time

	mu        sync.Mutex
	opts      Options
	src       source.Source
	refs      map[string][]string
	builder   *dag.Builder
	g         *dag.Graph
	frags     *fragment.Manager
	offsets   *delta.CompressedList[int]
	listeners []Listener
	exhausted bool
	lastUsed  time.Time
}

// New creates a session over src and loads the first page.
func New(ctx context.Context, src source.Source, opts Options) (*Session, error) {
	opts.SetDefaults()
	refs, err := src.Refs(ctx)
	if err != nil {
		return nil, err
	}

	b := dag.NewBuilder(dag.Options{FirstLane: opts.FirstLane})
	var pred fragment.Predicate
	if len(opts.Unconcealable) > 0 {
		pred = fragment.ByHashes(source.Tips(refs, opts.Unconcealable))
	}

	now := time.Now()
	s := &Session{
		ID:       uuid.NewString(),
		Created:  now,
		opts:     opts,
		src:      src,
		refs:     refs,
		builder:  b,
		g:        b.Graph(),
		frags:    fragment.NewManager(b.Graph(), pred),
		lastUsed: now,
	}
	s.offsets = delta.NewCompressedList[int](delta.GeneratorFuncs[int]{
		FirstFunc: func() int { return 0 },
		NextFunc:  func(prev, row int) int { return prev + s.rowHeight(row-1) },
	}, 0, opts.OffsetStep)
	s.listeners = []Listener{s.offsets}

	if _, err := s.LoadMore(ctx); err != nil {
		return nil, err
	}
	opts.Logger.Debug("session created", "id", s.ID, "source", src.Name(), "rows", s.g.RowCount())
	return s, nil
}

// Register adds l to the listeners notified after every change. Listeners
// run in registration order, after the session's own offset table.
func (s *Session) Register(l Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.listeners = append(s.listeners, l)
}

// Watch registers a per-row cache derived by fn and keeps it in sync with
// the graph. The rows bordering each change are derived again too, since a
// fold adds or removes edges of its boundary nodes. fn runs with the session
// lock held and must not call back into the session.
func Watch[T any](s *Session, fn func(g *dag.Graph, row int) T) *delta.RowCache[T] {
	s.mu.Lock()
	defer s.mu.Unlock()
	derive := func(row int) T { return fn(s.g, row) }
	c := delta.NewRowCache(s.g.RowCount(), derive)
	s.listeners = append(s.listeners, ListenerFunc(func(r delta.Replace) error {
		return c.Recalculate(r.Widen(1, c.Len()), derive)
	}))
	return c
}

// LoadMore appends the next page of commits. It returns [delta.Empty] once
// the source is exhausted.
func (s *Session) LoadMore(ctx context.Context) (delta.Replace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	if s.exhausted {
		return delta.Empty, nil
	}

	commits, err := source.Read(ctx, s.src, s.opts.PageSize)
	if err != nil {
		return delta.Empty, errors.Wrap(errors.ErrCodeInternal, err, "read %s", s.src.Name())
	}
	if len(commits) < s.opts.PageSize {
		s.exhausted = true
	}
	r := s.builder.Append(commits)
	if err := s.propagate(r); err != nil {
		return delta.Empty, err
	}
	s.opts.Logger.Debug("page loaded", "id", s.ID, "commits", len(commits), "replace", r)
	return r, nil
}

// Toggle flips the fragment related to the node at (row, col): a visible
// fragment is collapsed, a collapsed one is restored.
func (s *Session) Toggle(row, col int) (delta.Replace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()

	n, ok := s.g.NodeAt(row, col)
	if !ok {
		return delta.Empty, errors.New(errors.ErrCodeInvalidInput, "no node at row %d column %d", row, col)
	}
	f, ok := s.frags.RelateFragment(n.ID)
	if !ok {
		// Boundaries that never fold, such as ref tips, still unfold what
		// they border.
		if f, ok = s.borderingHidden(n.ID); !ok {
			return delta.Empty, errors.New(errors.ErrCodeNotFound, "no fragment at row %d column %d", row, col)
		}
	}
	r, err := s.frags.SetVisible(f, s.frags.IsHidden(f))
	if err != nil {
		return delta.Empty, err
	}
	return r, s.propagate(r)
}

// borderingHidden returns the most recently collapsed fragment that starts
// or ends at id.
func (s *Session) borderingHidden(id dag.NodeID) (fragment.Fragment, bool) {
	hidden := s.frags.Hidden()
	for i := len(hidden) - 1; i >= 0; i-- {
		if hidden[i].Start == id || hidden[i].End == id {
			return hidden[i], true
		}
	}
	return fragment.Fragment{}, false
}

// CollapseAll collapses every fragment of the graph.
func (s *Session) CollapseAll() (delta.Replace, error) {
	return s.all(s.frags.HideAll)
}

// ExpandAll restores every collapsed fragment.
func (s *Session) ExpandAll() (delta.Replace, error) {
	return s.all(s.frags.ShowAll)
}

func (s *Session) all(fn func() (delta.Replace, error)) (delta.Replace, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	r, err := fn()
	if err != nil {
		return delta.Empty, err
	}
	return r, s.propagate(r)
}

func (s *Session) propagate(r delta.Replace) error {
	if r.IsEmpty() {
		return nil
	}
	for _, l := range s.listeners {
		if err := l.Recalculate(r); err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "propagate %s", r)
		}
	}
	return nil
}

// rowHeight is the pixel height of row i. Rows joined to a collapsed
// fragment get extra room for the fold marker.
func (s *Session) rowHeight(i int) int {
	h := s.opts.RowHeight
	for _, id := range s.g.Row(i) {
		for _, e := range s.g.Node(id).Down {
			if e.Type == dag.EdgeHideFragment {
				return h + h/2
			}
		}
	}
	return h
}

func (s *Session) touch() { s.lastUsed = time.Now() }

// Expired reports whether the session has been idle longer than its TTL.
func (s *Session) Expired(now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return now.Sub(s.lastUsed) > s.opts.TTL
}

// Summary describes a session.
type Summary struct {
	ID        string    `json:"id"`
	Source    string    `json:"source"`
	Created   time.Time `json:"created"`
	Rows      int       `json:"rows"`
	Commits   int       `json:"commits"`
	Collapsed int       `json:"collapsed"`
	Pending   int       `json:"pending"`
	Lanes     int       `json:"lanes"`
	Exhausted bool      `json:"exhausted"`
	Height    int       `json:"height"`
}

// Summary returns the current state of the session.
func (s *Session) Summary() Summary {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Summary{
		ID:        s.ID,
		Source:    s.src.Name(),
		Created:   s.Created,
		Rows:      s.g.RowCount(),
		Commits:   s.builder.Commits(),
		Collapsed: s.frags.HiddenLen(),
		Pending:   s.builder.PendingCount(),
		Lanes:     s.builder.NextLane() - s.opts.FirstLane,
		Exhausted: s.exhausted,
		Height:    s.height(),
	}
}

// RowOffset returns the pixel offset of the top of row i.
func (s *Session) RowOffset(i int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := errors.ValidateRange(i, i+1, s.offsets.Size()); err != nil {
		return 0, err
	}
	return s.offsets.Get(i), nil
}

func (s *Session) height() int {
	n := s.offsets.Size()
	if n == 0 {
		return 0
	}
	return s.offsets.Get(n-1) + s.rowHeight(n-1)
}

// Refs returns the ref names of the session's source, keyed by hash.
func (s *Session) Refs() map[string][]string { return s.refs }

// Do runs fn with exclusive access to the graph. fn must not retain g or
// call back into the session.
func (s *Session) Do(fn func(g *dag.Graph)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	fn(s.g)
}
