package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matzehuels/lanegraph/pkg/cache"
	"github.com/matzehuels/lanegraph/pkg/dag"
	"github.com/matzehuels/lanegraph/pkg/details"
	"github.com/matzehuels/lanegraph/pkg/errors"
	graphio "github.com/matzehuels/lanegraph/pkg/io"
	"github.com/matzehuels/lanegraph/pkg/render"
	"github.com/matzehuels/lanegraph/pkg/render/nodelink"
	"github.com/matzehuels/lanegraph/pkg/render/text"
	"github.com/matzehuels/lanegraph/pkg/session"
	"github.com/matzehuels/lanegraph/pkg/source"
	"github.com/matzehuels/lanegraph/pkg/source/gitrepo"
)

// Output formats of the graph command.
const (
	formatText = "text"
	formatJSON = "json"
	formatDOT  = "dot"
	formatSVG  = "svg"
	formatPDF  = "pdf"
	formatPNG  = "png"
)

var graphFormats = []string{formatText, formatJSON, formatDOT, formatSVG, formatPDF, formatPNG}

// graphOpts holds the command-line flags for the graph command.
type graphOpts struct {
	input    string   // commit file instead of a repository
	format   string   // output format
	output   string   // output file, stdout when empty
	collapse bool     // fold every linear run
	limit    int      // stop after this many commits, 0 reads everything
	refs     []string // ref patterns to start from
	palette  string   // lane colors
	detailed bool     // row and lane numbers in DOT labels
	stats    bool     // print layout statistics
	subjects bool     // append commit subjects in text output
	noColor  bool     // plain text output
	noCache  bool     // bypass the details and artifact cache
}

// graphCommand creates the graph command for laying out and exporting history.
func (c *CLI) graphCommand() *cobra.Command {
	opts := graphOpts{format: formatText}

	cmd := &cobra.Command{
		Use:   "graph [repository]",
		Short: "Lay out commit history and print or export it",
		Long: `Lay out the history of a git repository, or of a JSON commit file given
with --input, and write it as text, JSON, DOT, SVG, PDF or PNG.`,
		Example: `  lanegraph graph
  lanegraph graph ~/src/project --refs 'main' --limit 500
  lanegraph graph --input commits.json --collapse -f svg -o history.svg`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.palette == "" {
				opts.palette = c.config.Palette
			}
			if err := validateGraphOpts(&opts); err != nil {
				return err
			}
			repo := "."
			if len(args) == 1 {
				repo = args[0]
			}
			return c.runGraph(cmd.Context(), repo, &opts)
		},
	}

	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "read commits from a JSON file instead of a repository")
	cmd.Flags().StringVarP(&opts.format, "format", "f", opts.format, "output format: "+strings.Join(graphFormats, ", "))
	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (default stdout)")
	cmd.Flags().BoolVar(&opts.collapse, "collapse", false, "fold every linear run of commits")
	cmd.Flags().IntVarP(&opts.limit, "limit", "n", 0, "stop after this many commits (0 reads all)")
	cmd.Flags().StringSliceVar(&opts.refs, "refs", nil, "ref patterns to start from (default all refs)")
	cmd.Flags().StringVar(&opts.palette, "palette", "", "lane colors: "+strings.Join(render.PaletteNames(), ", "))
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show row and lane numbers (dot, svg, pdf, png)")
	cmd.Flags().BoolVar(&opts.stats, "stats", false, "print layout statistics")
	cmd.Flags().BoolVar(&opts.subjects, "subjects", false, "show commit subjects (text)")
	cmd.Flags().BoolVar(&opts.noColor, "no-color", false, "disable lane colors (text)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "bypass the cache")

	return cmd
}

func validateGraphOpts(opts *graphOpts) error {
	opts.format = strings.ToLower(opts.format)
	if !slices.Contains(graphFormats, opts.format) {
		return errors.New(errors.ErrCodeInvalidInput, "unknown format %q (have %s)", opts.format, strings.Join(graphFormats, ", "))
	}
	if !render.ValidPalette(opts.palette) {
		return errors.New(errors.ErrCodeInvalidInput, "unknown palette %q (have %s)", opts.palette, strings.Join(render.PaletteNames(), ", "))
	}
	if opts.limit < 0 {
		return errors.New(errors.ErrCodeInvalidInput, "--limit must not be negative")
	}
	return nil
}

func (c *CLI) runGraph(ctx context.Context, repo string, opts *graphOpts) error {
	logger := loggerFromContext(ctx)
	prog := newProgress(logger)

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
	if opts.limit > 0 {
		sopts.PageSize = min(sopts.PageSize, opts.limit)
	}
	var dc *details.Cache
	if loader, ok := src.(details.Loader); ok && opts.subjects {
		dc = details.NewCache(backend, loader, details.Options{
			Keyer:  cache.NewScopedKeyer(nil, cache.RepoScope(scope)),
			TTL:    c.config.Cache.TTL,
			Logger: logger,
		})
		sopts.Details = dc
	}

	sess, err := loadSession(ctx, src, sopts, opts.limit)
	if err != nil {
		return err
	}
	if opts.collapse {
		if _, err := sess.CollapseAll(); err != nil {
			return err
		}
	}
	sum := sess.Summary()
	prog.done(fmt.Sprintf("Laid out %d commits in %d rows", sum.Commits, sum.Rows))

	var subjects map[string]details.Details
	if dc != nil {
		subjects, err = loadSubjects(ctx, sess, dc)
		if err != nil {
			logger.Warn("commit subjects unavailable", "err", err)
		}
	}

	data, err := c.renderSession(ctx, sess, backend, scope, subjects, opts)
	if err != nil {
		return err
	}
	if err := writeOutput(opts.output, data); err != nil {
		return err
	}
	if opts.output != "" {
		printSuccess("Wrote %s", opts.format)
		printFile(opts.output)
	}
	if opts.stats {
		printGraphStats(sess)
	}
	return nil
}

// openSource opens the commit file when input is set and the repository at
// repo otherwise. The returned scope identifies the source in cache keys.
func openSource(repo, input string, refs []string) (source.Source, string, error) {
	if input != "" {
		f, err := graphio.ImportCommits(input)
		if err != nil {
			return nil, "", err
		}
		src := source.NewSlice(filepath.Base(input), f.Commits, f.Refs)
		abs, _ := filepath.Abs(input)
		return src, abs, nil
	}
	abs, err := filepath.Abs(repo)
	if err != nil {
		return nil, "", errors.Wrap(errors.ErrCodeInvalidPath, err, "resolve %s", repo)
	}
	src, err := gitrepo.Open(abs, gitrepo.Options{Refs: refs})
	if err != nil {
		return nil, "", err
	}
	return src, abs, nil
}

// loadSession creates a session and pages in commits until the source is
// exhausted or limit commits are laid out.
func loadSession(ctx context.Context, src source.Source, opts session.Options, limit int) (*session.Session, error) {
	spinner := newSpinnerWithContext(ctx, "Reading "+src.Name()+"...")
	spinner.Start()
	defer spinner.Stop()

	sess, err := session.New(ctx, src, opts)
	if err != nil {
		return nil, err
	}
	for {
		sum := sess.Summary()
		if sum.Exhausted || (limit > 0 && sum.Commits >= limit) {
			return sess, nil
		}
		spinner.SetMessage(fmt.Sprintf("Reading %s... %d commits", src.Name(), sum.Commits))
		if _, err := sess.LoadMore(ctx); err != nil {
			return nil, err
		}
	}
}

func loadSubjects(ctx context.Context, sess *session.Session, dc *details.Cache) (map[string]details.Details, error) {
	var hashes []string
	sess.Do(func(g *dag.Graph) {
		for i := 0; i < g.RowCount(); i++ {
			if n, ok := g.RowCommit(i); ok {
				hashes = append(hashes, n.Hash)
			}
		}
	})
	return dc.GetMany(ctx, hashes)
}

// renderSession renders the session's graph in opts.format. Graphviz output
// is cached by the DOT source and the render options.
func (c *CLI) renderSession(ctx context.Context, sess *session.Session, backend cache.Cache, scope string, subjects map[string]details.Details, opts *graphOpts) ([]byte, error) {
	logger := loggerFromContext(ctx)
	palette := render.PaletteByName(opts.palette)

	var (
		buf bytes.Buffer
		dot string
		err error
	)
	sess.Do(func(g *dag.Graph) {
		switch opts.format {
		case formatText:
			topts := text.Options{
				Color:   !opts.noColor && opts.output == "",
				Palette: palette,
				Refs:    sess.Refs(),
			}
			if subjects != nil {
				topts.Describe = func(hash string) string { return subjects[hash].Subject }
			}
			err = text.New(g, topts).Write(&buf, 0, g.RowCount())
		case formatJSON:
			err = graphio.WriteGraph(g, &buf)
		default:
			dot = nodelink.ToDOT(g, nodelink.Options{
				Detailed: opts.detailed,
				Palette:  palette,
				Refs:     sess.Refs(),
			})
		}
	})
	if err != nil || dot == "" {
		return buf.Bytes(), err
	}
	if opts.format == formatDOT {
		return []byte(dot), nil
	}

	keyer := cache.NewScopedKeyer(nil, cache.RepoScope(scope))
	key := keyer.ArtifactKey(cache.Hash([]byte(dot)), cache.ArtifactKeyOpts{
		Format:    opts.format,
		Collapsed: opts.collapse,
		Palette:   opts.palette,
	})
	if data, ok, err := backend.Get(ctx, key); err == nil && ok {
		logger.Debug("artifact cache hit", "format", opts.format)
		return data, nil
	}

	logger.Infof("Rendering %s", strings.ToUpper(opts.format))
	var data []byte
	switch opts.format {
	case formatSVG:
		data, err = nodelink.RenderSVG(dot)
	case formatPDF:
		data, err = nodelink.RenderPDF(dot)
	case formatPNG:
		data, err = nodelink.RenderPNG(dot, 2.0)
	}
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeInternal, err, "render %s", opts.format)
	}
	if err := backend.Set(ctx, key, data, c.config.Cache.TTL); err != nil {
		logger.Warn("caching artifact failed", "err", err)
	}
	return data, nil
}

func writeOutput(path string, data []byte) error {
	out, err := openOutput(path)
	if err != nil {
		return err
	}
	defer out.Close()
	_, err = out.Write(data)
	return err
}

// openOutput opens path for writing, or stdout when path is empty.
func openOutput(path string) (io.WriteCloser, error) {
	if path == "" {
		return nopCloser{os.Stdout}, nil
	}
	return os.Create(path)
}

type nopCloser struct{ io.Writer }

func (nopCloser) Close() error { return nil }

func printGraphStats(sess *session.Session) {
	sum := sess.Summary()
	var crossings, width, nodes, edges int
	sess.Do(func(g *dag.Graph) {
		crossings = dag.CountCrossings(g)
		width = dag.MaxWidth(g)
		nodes = g.VisibleNodeCount()
		edges = g.EdgeCount()
	})
	printNewline()
	printKeyValue("Commits", strconv.Itoa(sum.Commits))
	printKeyValue("Rows", strconv.Itoa(sum.Rows))
	printKeyValue("Nodes", strconv.Itoa(nodes))
	printKeyValue("Edges", strconv.Itoa(edges))
	printKeyValue("Lanes", strconv.Itoa(sum.Lanes))
	printKeyValue("Width", strconv.Itoa(width))
	printKeyValue("Crossings", strconv.Itoa(crossings))
	printKeyValue("Collapsed", strconv.Itoa(sum.Collapsed))
	printKeyValue("Pending", strconv.Itoa(sum.Pending))
}
