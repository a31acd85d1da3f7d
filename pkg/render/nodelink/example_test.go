package nodelink_test

import (
	"fmt"
	"strings"

	"github.com/matzehuels/lanegraph/pkg/dag"
	"github.com/matzehuels/lanegraph/pkg/render/nodelink"
)

func ExampleToDOT() {
	g, _ := dag.Build([]dag.Commit{
		{Hash: "merge", Parents: []string{"left", "right"}},
		{Hash: "left", Parents: []string{"base"}},
		{Hash: "right", Parents: []string{"base"}},
		{Hash: "base"},
	}, dag.Options{})

	dot := nodelink.ToDOT(g, nodelink.Options{})

	// One rank per row keeps the lanes in place.
	fmt.Println("Ranks:", strings.Count(dot, "rank=same"))
	// Output:
	// Ranks: 4
}
