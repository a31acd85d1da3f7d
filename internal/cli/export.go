package cli

import (
	"bytes"
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/matzehuels/lanegraph/pkg/errors"
	graphio "github.com/matzehuels/lanegraph/pkg/io"
	"github.com/matzehuels/lanegraph/pkg/source"
)

// exportOpts holds the command-line flags for the export command.
type exportOpts struct {
	input  string
	output string
	limit  int
	refs   []string
}

// exportCommand creates the export command, which writes history as a commit
// file that graph, browse and serve read back with --input.
func (c *CLI) exportCommand() *cobra.Command {
	var opts exportOpts

	cmd := &cobra.Command{
		Use:   "export [repository]",
		Short: "Write commit history as a JSON commit file",
		Example: `  lanegraph export -o commits.json
  lanegraph export ~/src/project --refs 'main' --limit 1000 -o main.json`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.limit < 0 {
				return errors.New(errors.ErrCodeInvalidInput, "--limit must not be negative")
			}
			repo := "."
			if len(args) == 1 {
				repo = args[0]
			}
			return c.runExport(cmd.Context(), repo, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "read commits from a JSON file instead of a repository")
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "stop after this many commits (0 reads all)")
	cmd.Flags().StringSliceVar(&opts.refs, "refs", nil, "ref patterns to start from (default all refs)")

	return cmd
}

func (c *CLI) runExport(ctx context.Context, repo string, opts *exportOpts) error {
	src, _, err := openSource(repo, opts.input, opts.refs)
	if err != nil {
		return err
	}
	refs, err := src.Refs(ctx)
	if err != nil {
		return err
	}

	spinner := newSpinnerWithContext(ctx, "Reading "+src.Name()+"...")
	spinner.Start()
	f := &graphio.CommitFile{Refs: refs}
	for opts.limit == 0 || len(f.Commits) < opts.limit {
		n := c.config.PageSize
		if opts.limit > 0 {
			n = min(n, opts.limit-len(f.Commits))
		}
		page, err := source.Read(ctx, src, n)
		if err != nil {
			spinner.Stop()
			return err
		}
		f.Commits = append(f.Commits, page...)
		if len(page) == 0 {
			break
		}
		spinner.SetMessage(fmt.Sprintf("Reading %s... %d commits", src.Name(), len(f.Commits)))
	}
	spinner.Stop()

	if opts.output != "" {
		if err := graphio.ExportCommits(f, opts.output); err != nil {
			return err
		}
		printSuccess("Exported %d commits", len(f.Commits))
		printFile(opts.output)
		return nil
	}
	var buf bytes.Buffer
	if err := graphio.WriteCommits(f, &buf); err != nil {
		return err
	}
	return writeOutput("", buf.Bytes())
}
