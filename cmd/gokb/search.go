package main

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dshills/gokb/internal/searcher"
	"github.com/dshills/gokb/pkg/types"
)

// snippetRunes bounds the content shown per result in table output
const snippetRunes = 200

func (c *cli) searchCmd() *cobra.Command {
	var (
		limit     int
		mode      string
		highlight bool
		asJSON    bool
	)

	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Search the knowledge base",
		Long: `Performs hybrid search: semantic (vector) and keyword (BM25) results are
merged and de-duplicated. Use --mode to run one path only.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			searchMode, err := searcher.ParseMode(mode)
			if err != nil {
				return err
			}

			if err := c.open(cmd); err != nil {
				return err
			}
			defer c.close()

			resp, err := c.kb.Search(cmd.Context(), searcher.SearchRequest{
				Query:     strings.Join(args, " "),
				Limit:     limit,
				Mode:      searchMode,
				Highlight: highlight,
			})
			if err != nil {
				return err
			}

			if asJSON {
				return outputSearchJSON(cmd, resp)
			}
			outputSearchTable(cmd, resp)
			return nil
		},
	}

	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum number of results (default from config)")
	cmd.Flags().StringVarP(&mode, "mode", "m", "hybrid", "search mode: hybrid, semantic, keyword")
	cmd.Flags().BoolVar(&highlight, "highlight", false, "mark matched keywords with **")
	cmd.Flags().BoolVar(&asJSON, "json", false, "output results as JSON")
	return cmd
}

func outputSearchJSON(cmd *cobra.Command, resp *searcher.SearchResponse) error {
	out := struct {
		Results  []types.SearchResult `json:"results"`
		Mode     searcher.SearchMode  `json:"search_mode"`
		Total    int                  `json:"total_results"`
		Degraded bool                 `json:"degraded,omitempty"`
		Failures []string             `json:"failures,omitempty"`
	}{resp.Results, resp.SearchMode, resp.TotalResults, resp.Degraded, resp.Failures}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal results: %w", err)
	}
	cmd.Println(string(data))
	return nil
}

func outputSearchTable(cmd *cobra.Command, resp *searcher.SearchResponse) {
	if resp.Degraded {
		cmd.Printf("warning: degraded search (%s)\n\n", strings.Join(resp.Failures, "; "))
	}
	if len(resp.Results) == 0 {
		cmd.Println("No results found.")
		return
	}

	for i, r := range resp.Results {
		title := r.Metadata.GetString(types.MetaTitle)
		if title == "" {
			title = r.Source
		}
		cmd.Printf("  [%d] %s (%s %.4f)\n", i+1, title, r.Origin, r.Score)
		if title != r.Source {
			cmd.Printf("      Source: %s\n", r.Source)
		}
		cmd.Printf("      %s\n\n", snippet(r.Content))
	}
	cmd.Printf("%d results (%s, %s)\n", resp.TotalResults, resp.SearchMode, resp.Duration.Round(time.Millisecond))
}

func snippet(content string) string {
	content = strings.Join(strings.Fields(content), " ")
	r := []rune(content)
	if len(r) > snippetRunes {
		return string(r[:snippetRunes]) + "..."
	}
	return content
}
