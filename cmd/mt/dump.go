package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/vanderheijden86/modeltree/pkg/config"
	"github.com/vanderheijden86/modeltree/pkg/document"
	"github.com/vanderheijden86/modeltree/pkg/modelpath"
	"github.com/vanderheijden86/modeltree/pkg/snapshot"
	"github.com/vanderheijden86/modeltree/pkg/tree"
	"github.com/vanderheijden86/modeltree/pkg/watcher"
)

type dumpOptions struct {
	path   string
	depth  int
	all    bool
	json   bool
	follow bool
}

func newDumpCommand(g *globalOptions) *cobra.Command {
	opts := &dumpOptions{}
	cmd := &cobra.Command{
		Use:   "dump <file>",
		Short: "Print a document as an outline or JSON",
		Long: `Print the tree of a JSON or YAML document.

The outline honours the expansion depth and any saved expand/collapse
state. --path limits output to one subtree, for example servers[0].tls.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDump(cmd.Context(), g.cfg, args[0], opts, cmd.OutOrStdout())
		},
	}
	cmd.Flags().StringVar(&opts.path, "path", "", "Print only the subtree at this path")
	cmd.Flags().IntVar(&opts.depth, "depth", -1, "Levels expanded (default from config)")
	cmd.Flags().BoolVar(&opts.all, "all", false, "Expand every container")
	cmd.Flags().BoolVar(&opts.json, "json", false, "Print the subtree as JSON instead of an outline")
	cmd.Flags().BoolVar(&opts.follow, "follow", false, "Print again whenever the file changes")
	return cmd
}

func runDump(ctx context.Context, cfg config.Config, path string, opts *dumpOptions, out io.Writer) error {
	if ctx == nil {
		ctx = context.Background()
	}
	doc, m, err := openReadOnlyTree(cfg, path, opts.depth, opts.all)
	if err != nil {
		return err
	}
	defer m.Close()

	at, err := modelpath.Parse(opts.path)
	if err != nil {
		return err
	}
	emit := func() error {
		if opts.json {
			return writeJSON(out, doc, at)
		}
		return writeOutline(out, m, at)
	}
	if err := emit(); err != nil {
		return err
	}
	if !opts.follow {
		return nil
	}
	return follow(ctx, cfg.Watch, path, doc, m, out, emit)
}

// follow applies file reloads and prints after each change that reached
// the tree.
func follow(ctx context.Context, cfg config.WatchConfig, path string, doc *document.Document, m *tree.Model, out io.Writer, emit func() error) error {
	w, err := newWatcher(cfg, path)
	if err != nil {
		return err
	}
	if err := w.Start(ctx); err != nil {
		return fmt.Errorf("watch %s: %w", path, err)
	}
	defer w.Stop()

	events := m.Events()
	defer events.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case r := <-w.Reloads():
			if _, err := watcher.Apply(doc, r); err != nil {
				fmt.Fprintf(out, "# reload failed: %v\n", err)
			}
		case <-events.C():
			fmt.Fprintln(out, "---")
			if err := emit(); err != nil {
				return err
			}
		}
	}
}

func writeJSON(out io.Writer, doc *document.Document, at modelpath.Path) error {
	elem, err := doc.Lookup(at)
	if err != nil {
		return err
	}
	data, err := document.EncodeJSON(elem, "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "%s\n", data)
	return err
}

// writeOutline prints the expanded part of the subtree at path, one node
// per line.
func writeOutline(out io.Writer, m *tree.Model, at modelpath.Path) error {
	rows, err := snapshot.Outline(m, at)
	if err != nil {
		return err
	}
	bw := bufio.NewWriter(out)
	for _, r := range rows {
		bw.WriteString(strings.Repeat("  ", r.Depth))
		bw.WriteString(r.Label)
		if r.Collapsed {
			bw.WriteString(" …")
		}
		bw.WriteByte('\n')
	}
	return bw.Flush()
}
