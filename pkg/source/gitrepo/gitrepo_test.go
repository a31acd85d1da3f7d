package gitrepo

import (
	"context"
	"testing"
	"time"

	"github.com/go-git/go-billy/v5/memfs"
	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/object"
	"github.com/go-git/go-git/v5/storage/memory"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matzehuels/lanegraph/pkg/dag"
	"github.com/matzehuels/lanegraph/pkg/errors"
)

type history struct {
	repo              *gogit.Repository
	c1, c2, f1, c3, m plumbing.Hash
}

// newHistory creates
//
//	m   (master, HEAD)
//	|\
//	c3 | (v2, annotated)
//	| f1 (feature)
//	|/
//	c2  (v1)
//	c1
func newHistory(t *testing.T) history {
	t.Helper()
	r, err := gogit.Init(memory.NewStorage(), memfs.New())
	require.NoError(t, err)
	w, err := r.Worktree()
	require.NoError(t, err)

	base := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)
	n := 0
	commit := func(msg string, parents ...plumbing.Hash) plumbing.Hash {
		n++
		sig := &object.Signature{Name: "Ada", Email: "ada@example.com", When: base.Add(time.Duration(n) * time.Hour)}
		h, err := w.Commit(msg, &gogit.CommitOptions{
			Author:            sig,
			Committer:         sig,
			Parents:           parents,
			AllowEmptyCommits: true,
		})
		require.NoError(t, err)
		return h
	}

	var h history
	h.repo = r
	h.c1 = commit("first\n\nbody")
	h.c2 = commit("second", h.c1)
	h.f1 = commit("feature work", h.c2)
	h.c3 = commit("third", h.c2)
	h.m = commit("merge feature", h.c3, h.f1)

	require.NoError(t, r.Storer.SetReference(plumbing.NewHashReference("refs/heads/feature", h.f1)))
	require.NoError(t, r.Storer.SetReference(plumbing.NewHashReference("refs/heads/master", h.m)))
	_, err = r.CreateTag("v1", h.c2, nil)
	require.NoError(t, err)
	_, err = r.CreateTag("v2", h.c3, &gogit.CreateTagOptions{
		Tagger:  &object.Signature{Name: "Ada", Email: "ada@example.com", When: base},
		Message: "release v2",
	})
	require.NoError(t, err)
	return h
}

func hashes(commits []dag.Commit) []string {
	out := make([]string, len(commits))
	for i, c := range commits {
		out[i] = c.Hash
	}
	return out
}

func TestRefs(t *testing.T) {
	h := newHistory(t)
	refs, err := New(h.repo, "mem", Options{}).Refs(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []string{"HEAD", "master"}, refs[h.m.String()])
	assert.Equal(t, []string{"feature"}, refs[h.f1.String()])
	assert.Equal(t, []string{"v1"}, refs[h.c2.String()])
	assert.Equal(t, []string{"v2"}, refs[h.c3.String()], "annotated tag must be peeled")
	assert.NotContains(t, refs, h.c1.String())
}

func TestNextOrder(t *testing.T) {
	h := newHistory(t)
	src := New(h.repo, "mem", Options{})
	ctx := context.Background()

	first, err := src.Next(ctx, 2)
	require.NoError(t, err)
	rest, err := src.Next(ctx, 10)
	require.NoError(t, err)
	done, err := src.Next(ctx, 10)
	require.NoError(t, err)

	assert.Equal(t, []string{h.m.String(), h.c3.String()}, hashes(first))
	assert.Equal(t, []string{h.f1.String(), h.c2.String(), h.c1.String()}, hashes(rest))
	assert.Empty(t, done)
	assert.Equal(t, []string{h.c3.String(), h.f1.String()}, first[0].Parents)
}

func TestNextBuildsGraph(t *testing.T) {
	h := newHistory(t)
	commits, err := New(h.repo, "mem", Options{}).Next(context.Background(), 0)
	require.NoError(t, err)
	require.Len(t, commits, 5)

	g, b := dag.Build(commits, dag.Options{})
	assert.NoError(t, g.Validate())
	assert.Equal(t, 5, g.RowCount())
	assert.Zero(t, b.PendingCount())
}

func TestNextRefPatterns(t *testing.T) {
	h := newHistory(t)
	commits, err := New(h.repo, "mem", Options{Refs: []string{"feature"}}).Next(context.Background(), 0)
	require.NoError(t, err)
	assert.Equal(t, []string{h.f1.String(), h.c2.String(), h.c1.String()}, hashes(commits))
}

func TestNextCanceled(t *testing.T) {
	h := newHistory(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New(h.repo, "mem", Options{}).Next(ctx, 10)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestEmptyRepository(t *testing.T) {
	r, err := gogit.Init(memory.NewStorage(), memfs.New())
	require.NoError(t, err)
	src := New(r, "empty", Options{})

	refs, err := src.Refs(context.Background())
	require.NoError(t, err)
	assert.Empty(t, refs)

	commits, err := src.Next(context.Background(), 10)
	require.NoError(t, err)
	assert.Empty(t, commits)
}

func TestLoad(t *testing.T) {
	h := newHistory(t)
	src := New(h.repo, "mem", Options{})
	got, err := src.Load(context.Background(), []string{h.c1.String(), "not-a-hash", plumbing.ZeroHash.String()})
	require.NoError(t, err)

	require.Len(t, got, 1)
	d := got[h.c1.String()]
	assert.Equal(t, "Ada", d.Author)
	assert.Equal(t, "ada@example.com", d.Email)
	assert.Equal(t, "first", d.Subject)
}

func TestOpenInvalidPath(t *testing.T) {
	_, err := Open(t.TempDir(), Options{})
	assert.True(t, errors.Is(err, errors.ErrCodeInvalidPath), "got %v", err)
}
