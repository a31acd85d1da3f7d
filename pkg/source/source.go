// Package source defines paginated commit sources for the graph builder.
//
// A [Source] hands out commits newest first, children before parents, one
// page at a time. The builder never asks for the next page itself; sessions
// call [Read] once per page and append the result.
package source

import (
	"context"
	"path"
	"slices"
	"sync"
	"time"

	"github.com/matzehuels/lanegraph/pkg/dag"
	"github.com/matzehuels/lanegraph/pkg/observability"
)

// Source is a paginated commit stream.
type Source interface {
	// Name identifies the source in logs and hook events.
	Name() string

	// Next returns up to limit further commits. An empty slice means the
	// stream is exhausted.
	Next(ctx context.Context, limit int) ([]dag.Commit, error)

	// Refs maps commit hashes to the names of the refs pointing at them.
	Refs(ctx context.Context) (map[string][]string, error)
}

// Read fetches one page from src and reports it to the source hooks.
func Read(ctx context.Context, src Source, limit int) ([]dag.Commit, error) {
	start := time.Now()
	commits, err := src.Next(ctx, limit)
	observability.Source().OnLoad(ctx, src.Name(), len(commits), time.Since(start), err)
	return commits, err
}

// Tips returns the set of hashes carrying at least one ref whose name matches
// one of patterns (path.Match syntax). No patterns selects every ref.
func Tips(refs map[string][]string, patterns []string) map[string]bool {
	tips := make(map[string]bool)
	for hash, names := range refs {
		if slices.ContainsFunc(names, func(n string) bool { return matchAny(n, patterns) }) {
			tips[hash] = true
		}
	}
	return tips
}

func matchAny(name string, patterns []string) bool {
	if len(patterns) == 0 {
		return true
	}
	for _, p := range patterns {
		if ok, _ := path.Match(p, name); ok {
			return true
		}
	}
	return false
}

// SliceSource serves a fixed commit list, for tests and JSON input.
type SliceSource struct {
	name    string
	commits []dag.Commit
	refs    map[string][]string

	mu  sync.Mutex
	pos int
}

// NewSlice returns a source over commits. refs may be nil.
func NewSlice(name string, commits []dag.Commit, refs map[string][]string) *SliceSource {
	if refs == nil {
		refs = map[string][]string{}
	}
	return &SliceSource{name: name, commits: commits, refs: refs}
}

// Name returns the name given to [NewSlice].
func (s *SliceSource) Name() string { return s.name }

// Next returns the next page of the list.
func (s *SliceSource) Next(ctx context.Context, limit int) ([]dag.Commit, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if limit <= 0 {
		limit = len(s.commits)
	}
	end := min(s.pos+limit, len(s.commits))
	page := s.commits[s.pos:end]
	s.pos = end
	return page, nil
}

// Refs returns the refs given to [NewSlice].
func (s *SliceSource) Refs(context.Context) (map[string][]string, error) {
	return s.refs, nil
}

// Remaining returns the number of commits not yet handed out.
func (s *SliceSource) Remaining() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.commits) - s.pos
}
