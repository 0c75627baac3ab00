package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func (c *cli) statsCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Show knowledge base statistics",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := c.open(cmd); err != nil {
				return err
			}
			defer c.close()

			stats, err := c.kb.Stats(cmd.Context())
			if err != nil {
				return err
			}

			if asJSON {
				data, err := json.MarshalIndent(stats, "", "  ")
				if err != nil {
					return fmt.Errorf("failed to marshal stats: %w", err)
				}
				cmd.Println(string(data))
				return nil
			}

			cmd.Println("Knowledge base")
			cmd.Printf("  Vector index:   %d documents (%s, %s)%s\n", stats.VectorDocumentCount, stats.VectorEngine, stats.VectorPath, availability(stats.VectorAvailable))
			cmd.Printf("  Keyword index:  %d documents in %d sources (%s, %s)%s\n", stats.KeywordDocumentCount, stats.KeywordSources, stats.KeywordEngine, stats.KeywordPath, availability(stats.KeywordAvailable))
			cmd.Printf("  Hybrid search:  %v\n", stats.HybridAvailable)
			cmd.Printf("  Embeddings:     %s / %s (dim %d)\n", stats.EmbeddingProvider, stats.EmbeddingModel, stats.EmbeddingDimension)
			cmd.Printf("  Cache:          %d entries, %d failed this run (%s)\n", stats.CacheEntries, stats.FailedEmbeddings, stats.CachePath)
			cmd.Printf("  Links:          %d links between %d sources (avg %.2f)\n", stats.Links.Links, stats.Links.Documents, stats.Links.AvgLinksPerDoc)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "output statistics as JSON")
	return cmd
}

func availability(ok bool) string {
	if ok {
		return ""
	}
	return " [unavailable]"
}

func (c *cli) deleteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "delete [source]",
		Short: "Remove a source from both indexes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.open(cmd); err != nil {
				return err
			}
			defer c.close()

			stats, err := c.kb.Delete(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if stats.KeywordDeleted == 0 && stats.VectorDeleted == 0 {
				cmd.Printf("Source %s not found\n", stats.Source)
				return nil
			}
			cmd.Printf("Deleted %s: %d keyword, %d vector chunks\n", stats.Source, stats.KeywordDeleted, stats.VectorDeleted)
			return nil
		},
	}
}

func (c *cli) relatedCmd() *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "related [source]",
		Short: "List sources related by shared tags or manual links",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.open(cmd); err != nil {
				return err
			}
			defer c.close()

			related, err := c.kb.Related(args[0], limit)
			if err != nil {
				return err
			}
			if len(related) == 0 {
				cmd.Println("No related sources.")
				return nil
			}
			for _, r := range related {
				cmd.Printf("  %-40s %.1f\n", r.Source, r.Weight)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 10, "maximum number of related sources")
	return cmd
}

func (c *cli) linkCmd() *cobra.Command {
	var weight float64

	cmd := &cobra.Command{
		Use:   "link [source] [target]",
		Short: "Record a manual link between two sources",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			if weight < 0 {
				return errors.New("--weight must not be negative")
			}
			if err := c.open(cmd); err != nil {
				return err
			}
			defer c.close()

			if err := c.kb.Link(cmd.Context(), args[0], args[1], weight); err != nil {
				return err
			}
			cmd.Printf("Linked %s <-> %s\n", args[0], args[1])
			return nil
		},
	}
	cmd.Flags().Float64Var(&weight, "weight", 1, "link weight")
	return cmd
}
