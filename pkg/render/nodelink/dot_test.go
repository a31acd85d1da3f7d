package nodelink

import (
	"bytes"
	"strings"
	"testing"

	"github.com/matzehuels/lanegraph/pkg/dag"
	"github.com/matzehuels/lanegraph/pkg/dag/fragment"
	"github.com/matzehuels/lanegraph/pkg/render"
)

func testGraph() *dag.Graph {
	g, _ := dag.Build([]dag.Commit{
		{Hash: "d4d4d4d4d4", Parents: []string{"c3"}},
		{Hash: "c3", Parents: []string{"b2"}},
		{Hash: "b2", Parents: []string{"a1"}},
	}, dag.Options{})
	return g
}

func TestToDOT(t *testing.T) {
	dot := ToDOT(testGraph(), Options{
		Palette: render.Palette{"#111111"},
		Refs:    map[string][]string{"d4d4d4d4d4": {"main"}},
	})

	for _, want := range []string{
		"digraph G {",
		"{ rank=same; n0; }",
		`xlabel="d4d4d4d (main)"`,
		`tooltip="d4d4d4d4d4"`,
		`n0 -> n1 [color="#111111"];`,
		`n3 [style=dashed, color="#111111", xlabel="a1"];`,
	} {
		if !strings.Contains(dot, want) {
			t.Errorf("DOT output missing %q\n%s", want, dot)
		}
	}
}

func TestToDOTDetailed(t *testing.T) {
	dot := ToDOT(testGraph(), Options{Detailed: true})
	if !strings.Contains(dot, `row: 1 lane: 0`) {
		t.Errorf("detailed label missing row and lane\n%s", dot)
	}
}

func TestToDOTHiddenFragment(t *testing.T) {
	g := testGraph()
	m := fragment.NewManager(g, nil)
	f, ok := m.RelateFragment(1)
	if !ok {
		t.Fatal("no fragment at c3")
	}
	if _, err := m.SetVisible(f, false); err != nil {
		t.Fatal(err)
	}

	dot := ToDOT(g, Options{Palette: render.Palette{"#222222"}})
	// b2 stays visible: its only parent is outside the loaded range.
	if !strings.Contains(dot, `n0 -> n2 [color="#222222", style=dashed];`) {
		t.Errorf("collapsed fragment not drawn as dashed edge\n%s", dot)
	}
	if strings.Contains(dot, "n1 ") {
		t.Errorf("hidden node rendered\n%s", dot)
	}
}

func TestToDOTRowOrder(t *testing.T) {
	g, _ := dag.Build([]dag.Commit{
		{Hash: "m", Parents: []string{"a", "b"}},
		{Hash: "a", Parents: []string{"r"}},
		{Hash: "b", Parents: []string{"r"}},
		{Hash: "r"},
	}, dag.Options{})
	dot := ToDOT(g, Options{})
	// Row 1 holds commit a and the edge node awaiting b.
	if !strings.Contains(dot, "{ rank=same; n1; n2; }") || !strings.Contains(dot, "n1 -> n2 [style=invis];") {
		t.Errorf("row order not preserved\n%s", dot)
	}
	if !strings.Contains(dot, "n2 [shape=point") {
		t.Errorf("edge node not drawn as point\n%s", dot)
	}
}

func TestRenderSVG(t *testing.T) {
	svg, err := RenderSVG(ToDOT(testGraph(), Options{}))
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Contains(svg, []byte("<svg")) || !bytes.Contains(svg, []byte(`viewBox="0 0 `)) {
		t.Errorf("unexpected SVG output: %.200s", svg)
	}
}

func TestNormalizeViewBox(t *testing.T) {
	in := []byte(`<svg width="10pt" height="20pt" viewBox="0.00 0.00 10.00 20.00"><g/></svg>`)
	got := string(normalizeViewBox(in))
	want := `<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 10.00 20.00" width="10" height="20"><g/></svg>`
	if got != want {
		t.Errorf("normalizeViewBox = %s, want %s", got, want)
	}
	if got := normalizeViewBox([]byte("<svg>")); string(got) != "<svg>" {
		t.Errorf("input without viewBox changed: %s", got)
	}
}
