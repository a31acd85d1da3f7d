// Package gitrepo reads commit history from a git repository with go-git.
package gitrepo

import (
	"container/heap"
	"context"
	stderrors "errors"
	"slices"
	"strings"
	"sync"
	"time"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/matzehuels/lanegraph/pkg/dag"
	"github.com/matzehuels/lanegraph/pkg/details"
	"github.com/matzehuels/lanegraph/pkg/errors"
	"github.com/matzehuels/lanegraph/pkg/source"
)

// Options configures a [Repo].
type Options struct {
	// Refs restricts the walk to refs matching these patterns, in
	// path.Match syntax against short names. Empty walks every ref and HEAD.
	Refs []string
}

// Repo is a [source.Source] over a go-git repository. Commits come newest
// first by committer date, never before any of their loaded children.
type Repo struct {
	repo *gogit.Repository
	name string
	opts Options

	mu      sync.Mutex
	started bool
	queue   commitQueue
	entries map[plumbing.Hash]*entry
}

var (
	_ source.Source  = (*Repo)(nil)
	_ details.Loader = (*Repo)(nil)
)

// Open opens the repository containing path.
func Open(path string, opts Options) (*Repo, error) {
	r, err := gogit.PlainOpenWithOptions(path, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidPath, err, "open repository %s", path)
	}
	return New(r, path, opts), nil
}

// New wraps an already opened repository.
func New(repo *gogit.Repository, name string, opts Options) *Repo {
	return &Repo{repo: repo, name: name, opts: opts}
}

// Name returns the name given to [New], usually the repository path.
func (r *Repo) Name() string { return r.name }

// Refs maps commit hashes to the short names of the refs pointing at them.
// Annotated tags are peeled to their commit. "HEAD" is listed when the
// repository has one.
func (r *Repo) Refs(ctx context.Context) (map[string][]string, error) {
	refs := make(map[string][]string)
	iter, err := r.repo.References()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "list references")
	}
	err = iter.ForEach(func(ref *plumbing.Reference) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if ref.Type() != plumbing.HashReference {
			return nil
		}
		hash := ref.Hash()
		if ref.Name().IsTag() {
			if tag, err := r.repo.TagObject(hash); err == nil {
				hash = tag.Target
			}
		}
		refs[hash.String()] = append(refs[hash.String()], ref.Name().Short())
		return nil
	})
	if err != nil {
		return nil, err
	}

	head, err := r.repo.Head()
	switch {
	case err == nil:
		refs[head.Hash().String()] = append(refs[head.Hash().String()], "HEAD")
	case !stderrors.Is(err, plumbing.ErrReferenceNotFound):
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "resolve HEAD")
	}
	for _, names := range refs {
		slices.Sort(names)
	}
	return refs, nil
}

// Next returns up to limit further commits. The first call walks the history
// reachable from the selected refs; parents missing from the object store,
// as in shallow clones, are left for the graph to end.
func (r *Repo) Next(ctx context.Context, limit int) ([]dag.Commit, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.started {
		if err := r.walk(ctx); err != nil {
			return nil, err
		}
		r.started = true
	}
	if limit <= 0 {
		limit = r.queue.Len() + len(r.entries)
	}

	var page []dag.Commit
	for len(page) < limit && r.queue.Len() > 0 {
		if err := ctx.Err(); err != nil {
			return page, err
		}
		e := heap.Pop(&r.queue).(*entry)
		page = append(page, dag.Commit{Hash: e.hash.String(), Parents: hashStrings(e.parents)})
		for _, p := range e.parents {
			pe, ok := r.entries[p]
			if !ok {
				continue
			}
			if pe.children--; pe.children == 0 {
				heap.Push(&r.queue, pe)
			}
		}
		delete(r.entries, e.hash)
	}
	return page, nil
}

// walk collects every reachable commit and queues the ones without children.
func (r *Repo) walk(ctx context.Context) error {
	refs, err := r.Refs(ctx)
	if err != nil {
		return err
	}
	var stack []plumbing.Hash
	for h := range source.Tips(refs, r.opts.Refs) {
		stack = append(stack, plumbing.NewHash(h))
	}
	// Map iteration order must not leak into the result.
	slices.SortFunc(stack, func(a, b plumbing.Hash) int { return strings.Compare(a.String(), b.String()) })

	r.entries = make(map[plumbing.Hash]*entry)
	for len(stack) > 0 {
		if err := ctx.Err(); err != nil {
			return err
		}
		h := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if _, seen := r.entries[h]; seen {
			continue
		}
		c, err := r.repo.CommitObject(h)
		if stderrors.Is(err, plumbing.ErrObjectNotFound) {
			continue
		}
		if err != nil {
			return errors.Wrap(errors.ErrCodeInternal, err, "read commit %s", h)
		}
		r.entries[h] = &entry{hash: h, when: c.Committer.When, parents: c.ParentHashes}
		stack = append(stack, c.ParentHashes...)
	}

	for _, e := range r.entries {
		for _, p := range uniqueHashes(e.parents) {
			if pe, ok := r.entries[p]; ok {
				pe.children++
			}
		}
	}
	for _, e := range r.entries {
		if e.children == 0 {
			r.queue = append(r.queue, e)
		}
	}
	heap.Init(&r.queue)
	return nil
}

// Load reads the metadata of the given commits. Unknown hashes are skipped.
func (r *Repo) Load(ctx context.Context, hashes []string) (map[string]details.Details, error) {
	out := make(map[string]details.Details, len(hashes))
	for _, h := range hashes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if errors.ValidateHash(h) != nil {
			continue
		}
		c, err := r.repo.CommitObject(plumbing.NewHash(h))
		if stderrors.Is(err, plumbing.ErrObjectNotFound) {
			continue
		}
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeInternal, err, "read commit %s", h)
		}
		out[h] = commitDetails(c)
	}
	return out, nil
}

func commitDetails(c *object.Commit) details.Details {
	subject, _, _ := strings.Cut(strings.TrimSpace(c.Message), "\n")
	return details.Details{
		Hash:    c.Hash.String(),
		Author:  c.Author.Name,
		Email:   c.Author.Email,
		When:    c.Author.When,
		Subject: strings.TrimSpace(subject),
	}
}

type entry struct {
	hash     plumbing.Hash
	when     time.Time
	parents  []plumbing.Hash
	children int // loaded children not yet handed out
}

// commitQueue is a max-heap on committer date, ties broken by hash.
type commitQueue []*entry

func (q commitQueue) Len() int { return len(q) }
func (q commitQueue) Less(i, j int) bool {
	if !q[i].when.Equal(q[j].when) {
		return q[i].when.After(q[j].when)
	}
	return q[i].hash.String() < q[j].hash.String()
}
func (q commitQueue) Swap(i, j int) { q[i], q[j] = q[j], q[i] }
func (q *commitQueue) Push(x any)   { *q = append(*q, x.(*entry)) }
func (q *commitQueue) Pop() any {
	old := *q
	e := old[len(old)-1]
	*q = old[:len(old)-1]
	return e
}

func hashStrings(hs []plumbing.Hash) []string {
	out := make([]string, len(hs))
	for i, h := range hs {
		out[i] = h.String()
	}
	return out
}

func uniqueHashes(hs []plumbing.Hash) []plumbing.Hash {
	out := make([]plumbing.Hash, 0, len(hs))
	for _, h := range hs {
		if !slices.Contains(out, h) {
			out = append(out, h)
		}
	}
	return out
}
