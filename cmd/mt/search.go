package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/vanderheijden86/modeltree/pkg/config"
	"github.com/vanderheijden86/modeltree/pkg/search"
	"github.com/vanderheijden86/modeltree/pkg/tree"
)

type searchOptions struct {
	caseSensitive bool
	format        string
}

// searchMatch is one result as printed by mt search.
type searchMatch struct {
	Path  string `json:"path" yaml:"path"`
	Kind  string `json:"kind" yaml:"kind"`
	Start int    `json:"start" yaml:"start"`
	End   int    `json:"end" yaml:"end"`
	Text  string `json:"text" yaml:"text"`
}

type searchOutput struct {
	File    string        `json:"file" yaml:"file"`
	Query   string        `json:"query" yaml:"query"`
	Count   int           `json:"count" yaml:"count"`
	Matches []searchMatch `json:"matches" yaml:"matches"`
}

func newSearchCommand(g *globalOptions) *cobra.Command {
	opts := &searchOptions{}
	cmd := &cobra.Command{
		Use:   "search <file> <query>",
		Short: "List the values of a document that match a query",
		Long: `Search the values of a JSON or YAML document.

Strings, numbers and dates match on any substring. Booleans and null match
only the whole literal, so "true" finds true but "tru" does not. Matches are
listed depth-first in document order with rune offsets into the value.`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg := g.cfg
			if opts.caseSensitive {
				cfg.Search.CaseSensitive = true
			}
			out, err := runSearch(cfg, args[0], args[1])
			if err != nil {
				return err
			}
			return writeSearchOutput(cmd.OutOrStdout(), out, opts.format)
		},
	}
	cmd.Flags().BoolVarP(&opts.caseSensitive, "case-sensitive", "c", false, "Match case exactly")
	cmd.Flags().StringVarP(&opts.format, "output", "o", "text", "Output format: text, json or yaml")
	return cmd
}

func runSearch(cfg config.Config, path, query string) (searchOutput, error) {
	doc, err := loadDocument(path)
	if err != nil {
		return searchOutput{}, err
	}
	m := tree.New(doc)
	defer m.Close()
	e := search.New(m, search.WithCaseSensitive(cfg.Search.CaseSensitive))
	defer e.Close()

	e.Search(query)
	out := searchOutput{File: path, Query: query, Matches: []searchMatch{}}
	for _, r := range e.Results() {
		out.Matches = append(out.Matches, searchMatch{
			Path:  e.Path(r).String(),
			Kind:  r.Kind.String(),
			Start: r.Start,
			End:   r.End,
			Text:  m.Text(r.Node),
		})
	}
	out.Count = len(out.Matches)
	return out, nil
}

func writeSearchOutput(w io.Writer, out searchOutput, format string) error {
	switch strings.ToLower(format) {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(out); err != nil {
			return err
		}
		return enc.Close()
	case "text", "":
		tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
		for _, m := range out.Matches {
			fmt.Fprintf(tw, "%s\t%s\t%d-%d\t%s\n", m.Path, m.Kind, m.Start, m.End, markMatch(m.Text, m.Start, m.End))
		}
		if err := tw.Flush(); err != nil {
			return err
		}
		_, err := fmt.Fprintf(w, "%d matches for %q\n", out.Count, out.Query)
		return err
	}
	return fmt.Errorf("unknown output format %q", format)
}

// markMatch brackets the matched runes of text.
func markMatch(text string, start, end int) string {
	rs := []rune(strings.ReplaceAll(text, "\n", "↵"))
	if start < 0 || end > len(rs) || start > end {
		return string(rs)
	}
	return string(rs[:start]) + "[" + string(rs[start:end]) + "]" + string(rs[end:])
}
