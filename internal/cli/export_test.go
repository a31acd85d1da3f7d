package cli

import (
	"path/filepath"
	"testing"

	"github.com/matzehuels/lanegraph/pkg/errors"
	graphio "github.com/matzehuels/lanegraph/pkg/io"
)

func TestExportCommandRoundTrip(t *testing.T) {
	input := writeInput(t, diamondCommits)
	out := filepath.Join(t.TempDir(), "export.json")

	if err := runCLI(t, "export", "--input", input, "-o", out); err != nil {
		t.Fatalf("export: %v", err)
	}
	f, err := graphio.ImportCommits(out)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{"m", "a", "b", "base"}
	if len(f.Commits) != len(want) {
		t.Fatalf("exported %d commits, want %d", len(f.Commits), len(want))
	}
	for i, h := range want {
		if f.Commits[i].Hash != h {
			t.Errorf("commit %d = %s, want %s", i, f.Commits[i].Hash, h)
		}
	}
	if len(f.Commits[0].Parents) != 2 || f.Refs["m"][0] != "main" {
		t.Errorf("merge or refs lost: %+v", f)
	}

	again := filepath.Join(t.TempDir(), "graph.txt")
	if err := runCLI(t, "graph", "--input", out, "-o", again); err != nil {
		t.Fatalf("graph of exported file: %v", err)
	}
}

func TestExportCommandLimit(t *testing.T) {
	input := writeInput(t, diamondCommits)
	out := filepath.Join(t.TempDir(), "export.json")

	if err := runCLI(t, "export", "--input", input, "--limit", "2", "-o", out); err != nil {
		t.Fatalf("export: %v", err)
	}
	f, err := graphio.ImportCommits(out)
	if err != nil {
		t.Fatal(err)
	}
	if len(f.Commits) != 2 || f.Commits[1].Hash != "a" {
		t.Errorf("commits = %+v, want m and a", f.Commits)
	}
}

func TestExportCommandNegativeLimit(t *testing.T) {
	err := runCLI(t, "export", "--input", writeInput(t, diamondCommits), "--limit", "-1")
	if !errors.Is(err, errors.ErrCodeInvalidInput) {
		t.Errorf("err = %v, want INVALID_INPUT", err)
	}
}
