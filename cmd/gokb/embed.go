package main

import (
	"strings"

	"github.com/spf13/cobra"
)

// previewValues is how many vector components embed prints
const previewValues = 5

func (c *cli) embedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "embed [text]",
		Short: "Embed text and show the vector summary",
		Long: `Embeds text through the configured provider and cache. Useful to check
that the embedding service is reachable.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.open(cmd); err != nil {
				return err
			}
			defer c.close()

			emb, err := c.kb.Embed(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}

			n := min(previewValues, len(emb.Vector))
			cmd.Printf("Dimension:  %d\n", len(emb.Vector))
			cmd.Printf("Cache hit:  %v\n", emb.CacheHit)
			cmd.Printf("Hash:       %s\n", emb.Hash)
			cmd.Printf("First %d:    %v\n", n, emb.Vector[:n])
			if emb.Degraded {
				cmd.Printf("warning: embedding service failed, zero vector returned: %v\n", emb.Cause)
			}
			return nil
		},
	}
}
