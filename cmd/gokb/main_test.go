package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dshills/gokb/internal/config"
	"github.com/dshills/gokb/pkg/types"
)

// run executes the root command against a private data directory
func run(t *testing.T, dataDir string, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(append([]string{"--data-dir", dataDir}, args...))
	err := root.Execute()
	return out.String(), err
}

func setupEnv(t *testing.T) string {
	t.Helper()
	t.Chdir(t.TempDir())
	t.Setenv(config.EnvDataDir, "")
	t.Setenv(config.EnvEmbeddingProvider, "local")
	t.Setenv(config.EnvEmbeddingDim, "32")
	t.Setenv(config.EnvLogLevel, "error")
	t.Setenv(config.EnvLogFormat, "json")
	return t.TempDir()
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

func TestVersion(t *testing.T) {
	out, err := run(t, t.TempDir(), "version")
	require.NoError(t, err)
	assert.Contains(t, out, "gokb version dev")
	assert.Contains(t, out, "SQLite Driver:")
}

func TestIngestTextThenSearch(t *testing.T) {
	dir := setupEnv(t)

	out, err := run(t, dir, "ingest", "--text", "Qi flows through the meridians", "--source", "notes")
	require.NoError(t, err)
	assert.Contains(t, out, "Ingested notes: 1 chunks")

	out, err = run(t, dir, "search", "meridians", "--mode", "keyword")
	require.NoError(t, err)
	assert.Contains(t, out, "notes")
	assert.Contains(t, out, "meridians")
	assert.Contains(t, out, "1 results (keyword")

	out, err = run(t, dir, "search", "--json", "meridians")
	require.NoError(t, err)
	var resp struct {
		Results []types.SearchResult `json:"results"`
		Mode    string               `json:"search_mode"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "hybrid", resp.Mode)
	require.NotEmpty(t, resp.Results)
	assert.Equal(t, "notes", resp.Results[0].Source)
}

func TestIngestDirectory(t *testing.T) {
	dir := setupEnv(t)
	docs := t.TempDir()
	writeFile(t, filepath.Join(docs, "a.md"), "# Alpha\n\nfirst document")
	writeFile(t, filepath.Join(docs, "nested", "b.txt"), "second document")
	writeFile(t, filepath.Join(docs, "nested", "c.pdf"), "ignored")

	out, err := run(t, dir, "ingest", docs)
	require.NoError(t, err)
	assert.Contains(t, out, "Ingested 2 of 2 files")

	out, err = run(t, dir, "stats", "--json")
	require.NoError(t, err)
	var stats map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &stats))
	assert.EqualValues(t, 2, stats["keyword_document_count"])
	assert.EqualValues(t, 2, stats["vector_document_count"])
	assert.EqualValues(t, 2, stats["keyword_sources"])
}

func TestIngestFailureReturnsError(t *testing.T) {
	dir := setupEnv(t)

	out, err := run(t, dir, "ingest", filepath.Join(t.TempDir(), "missing.md"))
	require.Error(t, err)
	assert.Contains(t, out, "Ingested 0 of 1 files")

	_, err = run(t, dir, "ingest")
	assert.Error(t, err)

	_, err = run(t, dir, "ingest", "--text", "x", "file.md")
	assert.Error(t, err)
}

func TestDeleteAndRelated(t *testing.T) {
	dir := setupEnv(t)

	_, err := run(t, dir, "ingest", "--text", "sword manual", "--source", "sword", "--tag", "combat", "--tag", "qi")
	require.NoError(t, err)
	_, err = run(t, dir, "ingest", "--text", "spear manual", "--source", "spear", "--tag", "combat")
	require.NoError(t, err)

	out, err := run(t, dir, "related", "sword")
	require.NoError(t, err)
	assert.Contains(t, out, "spear")

	_, err = run(t, dir, "link", "sword", "breathing")
	require.NoError(t, err)
	out, err = run(t, dir, "related", "sword")
	require.NoError(t, err)
	assert.Contains(t, out, "breathing")

	out, err = run(t, dir, "delete", "sword")
	require.NoError(t, err)
	assert.Contains(t, out, "Deleted sword: 1 keyword, 1 vector chunks")

	out, err = run(t, dir, "delete", "sword")
	require.NoError(t, err)
	assert.Contains(t, out, "not found")
}

func TestEmbed(t *testing.T) {
	dir := setupEnv(t)

	out, err := run(t, dir, "embed", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "Dimension:  32")
	assert.Contains(t, out, "Cache hit:  false")

	out, err = run(t, dir, "embed", "hello")
	require.NoError(t, err)
	assert.Contains(t, out, "Cache hit:  true")
}

func TestSearchInvalidMode(t *testing.T) {
	dir := setupEnv(t)
	_, err := run(t, dir, "search", "x", "--mode", "fuzzy")
	assert.Error(t, err)
}

func TestExpandPaths(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "a.md"), "a")
	writeFile(t, filepath.Join(root, "docs", "b.markdown"), "b")
	writeFile(t, filepath.Join(root, "docs", "deep", "c.txt"), "c")
	writeFile(t, filepath.Join(root, "docs", "deep", "d.go"), "d")

	files, err := expandPaths([]string{filepath.Join(root, "**", "*.txt")})
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(root, "docs", "deep", "c.txt")}, files)

	files, err = expandPaths([]string{filepath.Join(root, "docs"), filepath.Join(root, "docs", "b.markdown")})
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "docs", "b.markdown"),
		filepath.Join(root, "docs", "deep", "c.txt"),
	}, files)

	// explicit paths pass through so ingestion can report them
	missing := filepath.Join(root, "missing.md")
	files, err = expandPaths([]string{missing})
	require.NoError(t, err)
	assert.Equal(t, []string{missing}, files)
}

func TestIngestMetadata(t *testing.T) {
	opts := &ingestOptions{title: "T", tags: []string{"a"}, meta: []string{"author=Li", "note=x=y"}}
	md, err := opts.metadata()
	require.NoError(t, err)
	assert.Equal(t, "T", md.GetString(types.MetaTitle))
	assert.Equal(t, []string{"a"}, md.GetList(types.MetaTags))
	assert.Equal(t, "Li", md.GetString("author"))
	assert.Equal(t, "x=y", md.GetString("note"))

	_, err = (&ingestOptions{meta: []string{"novalue"}}).metadata()
	assert.Error(t, err)
}
