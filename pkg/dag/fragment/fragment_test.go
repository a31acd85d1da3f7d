package fragment

import (
	"math/rand/v2"
	"slices"
	"strings"
	"testing"

	"github.com/matzehuels/lanegraph/pkg/dag"
	"github.com/matzehuels/lanegraph/pkg/delta"
	"github.com/matzehuels/lanegraph/pkg/errors"
)

// history parses "hash:parent1,parent2" records into commits.
func history(records ...string) []dag.Commit {
	out := make([]dag.Commit, 0, len(records))
	for _, r := range records {
		hash, parents, _ := strings.Cut(r, ":")
		c := dag.Commit{Hash: hash}
		if parents != "" {
			c.Parents = strings.Split(parents, ",")
		}
		out = append(out, c)
	}
	return out
}

// twoBranchPoints lays out a six node run between the merge t and the fork c4,
// with an unrelated side branch s -> q interleaved:
//
//	r0  u
//	r1  e(t) v
//	r2  t
//	r3  c0
//	r4  c1
//	r5  e(c2) s
//	r6  c2 e(q)
//	r7  e(c3) q
//	r8  c3
//	r9  c4
//	r10 END(m) END(z)
var twoBranchPoints = history(
	"u:t", "v:t", "t:c0", "c0:c1", "c1:c2", "s:q", "c2:c3", "q:", "c3:c4", "c4:m,z",
)

type fixture struct {
	g *dag.Graph
	b *dag.Builder
	m *Manager
}

func newFixture(t *testing.T, commits []dag.Commit, pred Predicate) *fixture {
	t.Helper()
	g, b := dag.Build(commits, dag.Options{})
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	return &fixture{g: g, b: b, m: NewManager(g, pred)}
}

func (f *fixture) commit(t *testing.T, hash string) dag.NodeID {
	t.Helper()
	n, ok := f.g.CommitNode(hash)
	if !ok {
		t.Fatalf("commit %s missing", hash)
	}
	return n.ID
}

func (f *fixture) at(t *testing.T, row, col int) dag.NodeID {
	t.Helper()
	n, ok := f.g.NodeAt(row, col)
	if !ok {
		t.Fatalf("no node at %d:%d", row, col)
	}
	return n.ID
}

type nodeState struct {
	hash     string
	typ      dag.NodeType
	lane     int
	row      int
	up, down []dag.Edge
}

func snapshot(g *dag.Graph) ([][]dag.NodeID, []nodeState) {
	nodes := make([]nodeState, g.NodeCount())
	for i := range nodes {
		n := g.Node(dag.NodeID(i))
		nodes[i] = nodeState{n.Hash, n.Type, n.Lane, n.Row, slices.Clone(n.Up), slices.Clone(n.Down)}
	}
	return g.Rows(), nodes
}

func assertSameGraph(t *testing.T, g *dag.Graph, rows [][]dag.NodeID, nodes []nodeState) {
	t.Helper()
	gotRows, gotNodes := snapshot(g)
	if !slices.EqualFunc(gotRows, rows, slices.Equal) {
		t.Errorf("rows = %v, want %v", gotRows, rows)
	}
	if len(gotNodes) != len(nodes) {
		t.Fatalf("%d nodes, want %d", len(gotNodes), len(nodes))
	}
	for i := range nodes {
		a, b := gotNodes[i], nodes[i]
		if a.hash != b.hash || a.typ != b.typ || a.lane != b.lane || a.row != b.row ||
			!slices.Equal(a.up, b.up) || !slices.Equal(a.down, b.down) {
			t.Errorf("node %d = %+v, want %+v", i, a, b)
		}
	}
}

// assertCovers checks that r turns before into the current rows.
func assertCovers(t *testing.T, g *dag.Graph, before [][]dag.NodeID, r delta.Replace) {
	t.Helper()
	after := g.Rows()
	got, err := delta.Apply(before, r, after[r.From:r.From+r.AddElementsCount])
	if err != nil {
		t.Fatalf("Apply(%s): %v", r, err)
	}
	if !slices.EqualFunc(got, after, slices.Equal) {
		t.Errorf("replace %s does not reproduce rows: got %v, want %v", r, got, after)
	}
}

func TestRelateFragment(t *testing.T) {
	f := newFixture(t, twoBranchPoints, nil)
	main := Fragment{
		Start: f.commit(t, "t"),
		End:   f.commit(t, "c4"),
		Interior: []dag.NodeID{
			f.commit(t, "c0"), f.commit(t, "c1"), f.at(t, 5, 0),
			f.commit(t, "c2"), f.at(t, 7, 0), f.commit(t, "c3"),
		},
	}

	tests := []struct {
		name string
		seed dag.NodeID
		want Fragment
		ok   bool
	}{
		{"interior seed", f.commit(t, "c2"), main, true},
		{"first interior", f.commit(t, "c0"), main, true},
		{"edge node seed", f.at(t, 5, 0), main, true},
		{"start boundary", f.commit(t, "t"), main, true},
		{"merge placeholder", f.at(t, 1, 0), Fragment{
			Start: f.commit(t, "u"), End: f.commit(t, "t"), Interior: []dag.NodeID{f.at(t, 1, 0)},
		}, true},
		{"side branch", f.at(t, 6, 1), Fragment{
			Start: f.commit(t, "s"), End: f.commit(t, "q"), Interior: []dag.NodeID{f.at(t, 6, 1)},
		}, true},
		{"root", f.commit(t, "u"), Fragment{}, false},
		{"childless", f.commit(t, "q"), Fragment{}, false},
		{"fork above end commits", f.commit(t, "c4"), Fragment{}, false},
		{"end commit", f.at(t, 10, 0), Fragment{}, false},
		{"unknown node", dag.NodeID(500), Fragment{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := f.m.RelateFragment(tt.seed)
			if ok != tt.ok {
				t.Fatalf("RelateFragment ok = %v, want %v", ok, tt.ok)
			}
			if got.Start != tt.want.Start || got.End != tt.want.End || !slices.Equal(got.Interior, tt.want.Interior) {
				t.Errorf("RelateFragment = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestRelateFragmentRespectsPredicate(t *testing.T) {
	f := newFixture(t, twoBranchPoints, Any(nil, ByHashes(map[string]bool{"c2": true})))

	got, ok := f.m.RelateFragment(f.commit(t, "c1"))
	if !ok {
		t.Fatal("RelateFragment(c1) found nothing")
	}
	want := []dag.NodeID{f.commit(t, "c0"), f.commit(t, "c1"), f.at(t, 5, 0)}
	if got.End != f.commit(t, "c2") || !slices.Equal(got.Interior, want) {
		t.Errorf("RelateFragment(c1) = %+v, want end c2 and interior %v", got, want)
	}
	if _, ok := f.m.RelateFragment(f.commit(t, "c2")); ok {
		t.Error("flagged commit must not relate to a fragment")
	}
	if !f.m.Unconcealable(f.commit(t, "c2")) || f.m.Unconcealable(f.at(t, 5, 0)) {
		t.Error("predicate must flag the commit but not its placeholder")
	}
}

func TestHideShowSixNodeFragment(t *testing.T) {
	f := newFixture(t, twoBranchPoints, nil)
	rows, nodes := snapshot(f.g)
	frag, ok := f.m.RelateFragment(f.commit(t, "c1"))
	if !ok || frag.Len() != 6 {
		t.Fatalf("RelateFragment = %+v, %v; want six interior nodes", frag, ok)
	}

	r, err := f.m.SetVisible(frag, false)
	if err != nil {
		t.Fatalf("hide: %v", err)
	}
	if r != delta.NewReplace(3, 9, 3) {
		t.Errorf("hide replace = %s, want [3, 9) -> 3", r)
	}
	assertCovers(t, f.g, rows, r)
	if err := f.g.Validate(); err != nil {
		t.Fatalf("Validate after hide: %v", err)
	}
	if !f.m.IsHidden(frag) || f.m.HiddenLen() != 1 {
		t.Error("fragment should be hidden")
	}

	start := f.g.Node(frag.Start)
	end := f.g.Node(frag.End)
	hide := dag.Edge{From: frag.Start, To: frag.End, Type: dag.EdgeHideFragment, Lane: start.Lane}
	if !slices.Equal(start.Down, []dag.Edge{hide}) || !slices.Equal(end.Up, []dag.Edge{hide}) {
		t.Errorf("boundary edges = %v / %v, want %v", start.Down, end.Up, hide)
	}
	for _, id := range frag.Interior {
		if f.g.Visible(id) {
			t.Errorf("interior node %d still visible", id)
		}
	}

	again, ok := f.m.RelateFragment(frag.Start)
	if !ok || !slices.Equal(again.Interior, frag.Interior) {
		t.Errorf("RelateFragment(start) after hide = %+v, %v", again, ok)
	}

	hidden := f.g.Rows()
	r2, err := f.m.SetVisible(frag, true)
	if err != nil {
		t.Fatalf("show: %v", err)
	}
	if r2 != delta.NewReplace(3, 6, 6) {
		t.Errorf("show replace = %s, want [3, 6) -> 6", r2)
	}
	assertCovers(t, f.g, hidden, r2)
	assertSameGraph(t, f.g, rows, nodes)
	if f.m.IsHidden(frag) || f.m.HiddenLen() != 0 {
		t.Error("fragment should be visible")
	}
}

func TestSetVisibleNoOps(t *testing.T) {
	f := newFixture(t, twoBranchPoints, nil)
	frag, _ := f.m.RelateFragment(f.commit(t, "c1"))

	r, err := f.m.SetVisible(frag, true)
	if err != nil || !r.IsEmpty() {
		t.Errorf("show visible fragment = %s, %v; want empty", r, err)
	}
	if _, err := f.m.SetVisible(frag, false); err != nil {
		t.Fatal(err)
	}
	r, err = f.m.SetVisible(frag, false)
	if err != nil || !r.IsEmpty() {
		t.Errorf("hide hidden fragment = %s, %v; want empty", r, err)
	}
}

func TestSetVisiblePreconditions(t *testing.T) {
	f := newFixture(t, twoBranchPoints, nil)
	tt := f.commit(t, "t")
	c0, c1, c2 := f.commit(t, "c0"), f.commit(t, "c1"), f.commit(t, "c2")
	c4 := f.commit(t, "c4")

	tests := []struct {
		name string
		frag Fragment
	}{
		{"unknown start", Fragment{Start: 999, End: c4, Interior: []dag.NodeID{c0}}},
		{"no interior", Fragment{Start: tt, End: c4}},
		{"not joined", Fragment{Start: tt, End: c4, Interior: []dag.NodeID{c1, c0}}},
		{"wrong end", Fragment{Start: tt, End: c2, Interior: []dag.NodeID{c0}}},
		{"boundary as interior", Fragment{Start: f.commit(t, "u"), End: c0, Interior: []dag.NodeID{f.at(t, 1, 0), tt}}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := f.m.SetVisible(tc.frag, false)
			if !errors.Is(err, errors.ErrCodePrecondition) {
				t.Errorf("SetVisible err = %v, want PRECONDITION_FAILED", err)
			}
		})
	}

	main, _ := f.m.RelateFragment(c1)
	if _, err := f.m.SetVisible(main, false); err != nil {
		t.Fatal(err)
	}
	inner := Fragment{Start: c0, End: c2, Interior: []dag.NodeID{c1, f.at(t, 5, 0)}}
	if _, err := f.m.SetVisible(inner, false); !errors.Is(err, errors.ErrCodePrecondition) {
		t.Errorf("hiding hidden nodes: err = %v, want PRECONDITION_FAILED", err)
	}
	if _, err := f.m.SetVisible(Fragment{Start: tt, End: c4}, true); !errors.Is(err, errors.ErrCodePrecondition) {
		t.Errorf("show without interior: err = %v, want PRECONDITION_FAILED", err)
	}
}

func TestHideAllShowAll(t *testing.T) {
	f := newFixture(t, twoBranchPoints, nil)
	rows, nodes := snapshot(f.g)

	if got := len(f.m.Fragments()); got != 3 {
		t.Fatalf("Fragments() = %d, want 3", got)
	}
	r, err := f.m.HideAll()
	if err != nil {
		t.Fatal(err)
	}
	if r != delta.NewReplace(1, 9, 4) {
		t.Errorf("HideAll = %s, want [1, 9) -> 4", r)
	}
	if err := f.g.Validate(); err != nil {
		t.Fatalf("Validate after HideAll: %v", err)
	}
	if len(f.m.Fragments()) != 0 || len(f.m.Hidden()) != 3 {
		t.Errorf("after HideAll: %d visible, %d hidden fragments", len(f.m.Fragments()), len(f.m.Hidden()))
	}
	if r, _ := f.m.HideAll(); !r.IsEmpty() {
		t.Errorf("second HideAll = %s, want empty", r)
	}

	r, err = f.m.ShowAll()
	if err != nil {
		t.Fatal(err)
	}
	if r != delta.NewReplace(1, 5, 8) {
		t.Errorf("ShowAll = %s, want [1, 5) -> 8", r)
	}
	assertSameGraph(t, f.g, rows, nodes)
}

func TestOverlappingHidesRestoreInAnyOrder(t *testing.T) {
	f := newFixture(t, twoBranchPoints, nil)
	rows, nodes := snapshot(f.g)

	main, _ := f.m.RelateFragment(f.commit(t, "c1"))
	side, ok := f.m.RelateFragment(f.at(t, 6, 1))
	if !ok || side.Start != f.commit(t, "s") {
		t.Fatalf("side fragment = %+v, %v; want the run below s", side, ok)
	}
	for _, frag := range []Fragment{main, side} {
		if _, err := f.m.SetVisible(frag, false); err != nil {
			t.Fatal(err)
		}
	}
	// Show in hide order rather than reverse.
	for _, frag := range []Fragment{main, side} {
		before := f.g.Rows()
		r, err := f.m.SetVisible(frag, true)
		if err != nil {
			t.Fatal(err)
		}
		assertCovers(t, f.g, before, r)
		if err := f.g.Validate(); err != nil {
			t.Fatalf("Validate: %v", err)
		}
	}

	assertSameGraph(t, f.g, rows, nodes)
}

// sharedRows lays out two runs from a to e that share every row between them:
//
//	r0  a
//	r1  b e(x)
//	r2  e(c) x
//	r3  c e(y)
//	r4  e(d) y
//	r5  d e(z)
//	r6  e(e) z
//	r7  e
var sharedRows = history("a:b,x", "b:c", "x:y", "c:d", "y:z", "d:e", "z:e", "e:")

// interleaved has five runs over three lanes that cross each other's rows,
// two of them bounded by the extra child t of b1.
var interleaved = history(
	"m:a0,b0,c0", "a0:a1", "t:b1", "b0:b1", "c0:c1", "a1:a2",
	"b1:b2", "c1:c2", "a2:base", "b2:base", "c2:base", "base:root",
)

// hiddenLayout builds commits from scratch and collapses the fragments
// flagged in hidden, in the order Fragments lists them.
func hiddenLayout(t *testing.T, commits []dag.Commit, hidden []bool) [][]dag.NodeID {
	t.Helper()
	f := newFixture(t, commits, nil)
	for i, frag := range f.m.Fragments() {
		if !hidden[i] {
			continue
		}
		if _, err := f.m.SetVisible(frag, false); err != nil {
			t.Fatalf("hide %d: %v", i, err)
		}
	}
	return f.g.Rows()
}

func TestSharedRowsRestoreInAnyOrder(t *testing.T) {
	tests := []struct {
		name string
		show []int
	}{
		{"hide order", []int{0, 1}},
		{"reverse order", []int{1, 0}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, sharedRows, nil)
			rows, nodes := snapshot(f.g)
			frags := f.m.Fragments()
			if len(frags) != 2 {
				t.Fatalf("Fragments() = %d, want 2", len(frags))
			}
			for _, frag := range frags {
				if _, err := f.m.SetVisible(frag, false); err != nil {
					t.Fatal(err)
				}
			}
			if got := f.g.RowCount(); got != 2 {
				t.Fatalf("rows after hiding both = %d, want 2", got)
			}

			hidden := []bool{true, true}
			for _, i := range tt.show {
				before := f.g.Rows()
				r, err := f.m.SetVisible(frags[i], true)
				if err != nil {
					t.Fatal(err)
				}
				hidden[i] = false
				assertCovers(t, f.g, before, r)
				if err := f.g.Validate(); err != nil {
					t.Fatalf("Validate: %v", err)
				}
				if want := hiddenLayout(t, sharedRows, hidden); !slices.EqualFunc(f.g.Rows(), want, slices.Equal) {
					t.Errorf("after showing %d rows = %v, want %v", i, f.g.Rows(), want)
				}
			}
			assertSameGraph(t, f.g, rows, nodes)
		})
	}
}

func TestShowOrderPermutations(t *testing.T) {
	f := newFixture(t, interleaved, nil)
	n := len(f.m.Fragments())
	if n < 4 {
		t.Fatalf("Fragments() = %d, want at least 4", n)
	}

	for _, order := range permutations(n) {
		f := newFixture(t, interleaved, nil)
		rows, nodes := snapshot(f.g)
		frags := f.m.Fragments()
		if _, err := f.m.HideAll(); err != nil {
			t.Fatal(err)
		}
		for _, i := range order {
			if _, err := f.m.SetVisible(frags[i], true); err != nil {
				t.Fatalf("order %v: show %d: %v", order, i, err)
			}
		}
		if !slices.EqualFunc(f.g.Rows(), rows, slices.Equal) {
			t.Fatalf("order %v: rows = %v, want %v", order, f.g.Rows(), rows)
		}
		assertSameGraph(t, f.g, rows, nodes)
	}
}

func permutations(n int) [][]int {
	if n == 0 {
		return [][]int{{}}
	}
	var out [][]int
	for _, p := range permutations(n - 1) {
		for i := 0; i <= len(p); i++ {
			out = append(out, slices.Insert(slices.Clone(p), i, n-1))
		}
	}
	return out
}

func TestRowsDependOnlyOnHiddenSet(t *testing.T) {
	for _, commits := range [][]dag.Commit{sharedRows, interleaved, twoBranchPoints} {
		for seed := range uint64(20) {
			rng := rand.New(rand.NewPCG(seed, 1))
			f := newFixture(t, commits, nil)
			frags := f.m.Fragments()
			hidden := make([]bool, len(frags))

			for step := 0; step < 30; step++ {
				i := rng.IntN(len(frags))
				before := f.g.Rows()
				r, err := f.m.SetVisible(frags[i], hidden[i])
				if err != nil {
					t.Fatalf("seed %d step %d: %v", seed, step, err)
				}
				hidden[i] = !hidden[i]
				assertCovers(t, f.g, before, r)
				if err := f.g.Validate(); err != nil {
					t.Fatalf("seed %d step %d: Validate: %v", seed, step, err)
				}
				if want := hiddenLayout(t, commits, hidden); !slices.EqualFunc(f.g.Rows(), want, slices.Equal) {
					t.Fatalf("seed %d step %d: rows = %v, want %v", seed, step, f.g.Rows(), want)
				}
			}
		}
	}
}

func TestAppendWhileHidden(t *testing.T) {
	full, _ := dag.Build(twoBranchPoints, dag.Options{})
	rows, nodes := snapshot(full)

	f := newFixture(t, twoBranchPoints[:9], nil)
	frag, ok := f.m.RelateFragment(f.commit(t, "c1"))
	if !ok || frag.End != f.commit(t, "c3") {
		t.Fatalf("RelateFragment = %+v, %v; want chain ending above END_COMMIT at c3", frag, ok)
	}
	if _, err := f.m.SetVisible(frag, false); err != nil {
		t.Fatal(err)
	}

	before := f.g.Rows()
	r := f.b.Append(twoBranchPoints[9:])
	assertCovers(t, f.g, before, r)
	if err := f.g.Validate(); err != nil {
		t.Fatalf("Validate after Append: %v", err)
	}
	if !f.m.IsHidden(frag) {
		t.Error("Append must keep the fragment hidden")
	}

	if _, err := f.m.SetVisible(frag, true); err != nil {
		t.Fatal(err)
	}
	assertSameGraph(t, f.g, rows, nodes)
}
