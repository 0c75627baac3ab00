package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/dshills/gokb/internal/app"
	"github.com/dshills/gokb/internal/indexer"
	"github.com/dshills/gokb/internal/logging"
	"github.com/dshills/gokb/pkg/types"
)

type ingestOptions struct {
	text   string
	source string
	title  string
	tags   []string
	meta   []string
}

func (c *cli) ingestCmd() *cobra.Command {
	opts := &ingestOptions{}
	cmd := &cobra.Command{
		Use:   "ingest [file|dir|glob ...]",
		Short: "Add documents or raw text to the knowledge base",
		Long: `Ingests .md, .markdown and .txt files. Directories are walked and
"**" glob patterns are expanded. Use --text to ingest raw text instead.
Re-ingesting a source replaces its previous content.`,
		Example: `  gokb ingest notes/guide.md
  gokb ingest "docs/**/*.md" --tag cultivation
  gokb ingest --text "Qi flows through the meridians" --source notes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.text == "" && len(args) == 0 {
				return errors.New("nothing to ingest: pass files or --text")
			}
			if opts.text != "" && len(args) > 0 {
				return errors.New("--text cannot be combined with files")
			}
			md, err := opts.metadata()
			if err != nil {
				return err
			}

			if err := c.open(cmd); err != nil {
				return err
			}
			defer c.close()

			if opts.text != "" {
				stats, err := c.kb.Ingest(cmd.Context(), app.IngestRequest{Text: opts.text, Source: opts.source, Metadata: md})
				if err != nil {
					return err
				}
				printIngest(cmd, stats)
				return nil
			}

			files, err := expandPaths(args)
			if err != nil {
				return err
			}
			if len(files) == 0 {
				return errors.New("no supported files matched")
			}
			if opts.source != "" && len(files) > 1 {
				return errors.New("--source needs exactly one file")
			}
			return c.ingestFiles(cmd, files, opts.source, md)
		},
	}

	cmd.Flags().StringVar(&opts.text, "text", "", "raw text to ingest")
	cmd.Flags().StringVar(&opts.source, "source", "", "source identifier (default: file path, or text_input)")
	cmd.Flags().StringVar(&opts.title, "title", "", "document title (default: first markdown heading)")
	cmd.Flags().StringSliceVar(&opts.tags, "tag", nil, "tag, repeatable; shared tags link sources")
	cmd.Flags().StringArrayVar(&opts.meta, "meta", nil, "extra metadata as key=value, repeatable")
	return cmd
}

func (o *ingestOptions) metadata() (types.Metadata, error) {
	md := types.Metadata{}
	for _, kv := range o.meta {
		key, value, ok := strings.Cut(kv, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid --meta %q: want key=value", kv)
		}
		md[key] = types.StringValue(value)
	}
	if o.title != "" {
		md[types.MetaTitle] = types.StringValue(o.title)
	}
	if len(o.tags) > 0 {
		md[types.MetaTags] = types.ListValue(o.tags...)
	}
	return md, nil
}

// ingestFiles ingests every file, keeps going past failures and reports
// how many failed
func (c *cli) ingestFiles(cmd *cobra.Command, files []string, source string, md types.Metadata) error {
	var bar *progressbar.ProgressBar
	if len(files) > 1 && logging.IsTerminal(cmd.ErrOrStderr()) {
		bar = progressbar.NewOptions(len(files),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
			progressbar.OptionSetDescription("ingesting"),
			progressbar.OptionSetWidth(32),
			progressbar.OptionShowCount(),
			progressbar.OptionClearOnFinish(),
		)
	}

	failed := 0
	for _, path := range files {
		stats, err := c.kb.Ingest(cmd.Context(), app.IngestRequest{Path: path, Source: source, Metadata: md})
		if bar != nil {
			_ = bar.Add(1)
		}
		if err != nil {
			failed++
			c.logger.Error().Err(err).Str("path", path).Msg("ingestion failed")
			continue
		}
		if bar == nil {
			printIngest(cmd, stats)
		}
	}
	if bar != nil {
		_ = bar.Finish()
	}

	cmd.Printf("Ingested %d of %d files\n", len(files)-failed, len(files))
	if failed > 0 {
		return fmt.Errorf("%d of %d files failed", failed, len(files))
	}
	return nil
}

func printIngest(cmd *cobra.Command, stats *indexer.Statistics) {
	verb := "Ingested"
	if stats.Replaced {
		verb = "Replaced"
	}
	cmd.Printf("%s %s: %d chunks (%s)\n", verb, stats.Source, stats.ChunkCount, stats.Duration.Round(time.Millisecond))
	if stats.Degraded > 0 {
		cmd.Printf("  warning: %d chunks stored without embeddings; semantic search will not find them\n", stats.Degraded)
	}
}

// expandPaths resolves files, directories and "**" globs into a sorted,
// de-duplicated file list. Explicit files are kept as given so validation
// can report them; directory and glob matches are filtered by extension.
func expandPaths(args []string) ([]string, error) {
	seen := make(map[string]bool)
	var files []string
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			files = append(files, p)
		}
	}

	for _, arg := range args {
		info, err := os.Stat(arg)
		switch {
		case err == nil && info.IsDir():
			matches, err := doublestar.FilepathGlob(filepath.Join(arg, "**", "*"), doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("failed to walk %s: %w", arg, err)
			}
			for _, m := range matches {
				if supported(m) {
					add(m)
				}
			}
		case err == nil:
			add(arg)
		default:
			if !strings.ContainsAny(arg, "*?[{") {
				// not a pattern: let ingestion report the missing file
				add(arg)
				continue
			}
			matches, err := doublestar.FilepathGlob(arg, doublestar.WithFilesOnly())
			if err != nil {
				return nil, fmt.Errorf("invalid pattern %q: %w", arg, err)
			}
			if len(matches) == 0 {
				add(arg)
				continue
			}
			for _, m := range matches {
				if supported(m) {
					add(m)
				}
			}
		}
	}

	sort.Strings(files)
	return files, nil
}

func supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range indexer.SupportedExtensions {
		if ext == e {
			return true
		}
	}
	return false
}
