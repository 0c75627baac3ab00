package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKnowledgeChunkValidate(t *testing.T) {
	tests := []struct {
		name    string
		chunk   KnowledgeChunk
		wantErr error
	}{
		{
			name:  "valid chunk",
			chunk: KnowledgeChunk{Content: "x", Source: "a.md", ChunkIndex: 0, TotalChunks: 1},
		},
		{
			name:    "empty content",
			chunk:   KnowledgeChunk{Source: "a.md", TotalChunks: 1},
			wantErr: ErrEmptyContent,
		},
		{
			name:    "missing source",
			chunk:   KnowledgeChunk{Content: "x", TotalChunks: 1},
			wantErr: ErrMissingSource,
		},
		{
			name:    "index past total",
			chunk:   KnowledgeChunk{Content: "x", Source: "a.md", ChunkIndex: 2, TotalChunks: 2},
			wantErr: ErrInvalidPosition,
		},
		{
			name:    "negative index",
			chunk:   KnowledgeChunk{Content: "x", Source: "a.md", ChunkIndex: -1, TotalChunks: 2},
			wantErr: ErrInvalidPosition,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.chunk.Validate()
			if tt.wantErr == nil {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, tt.wantErr)
			assert.ErrorIs(t, err, ErrValidation)
		})
	}
}

func TestFullMetadata(t *testing.T) {
	chunk := KnowledgeChunk{
		Content:     "text",
		Source:      "notes.md",
		ChunkIndex:  1,
		TotalChunks: 3,
		Metadata: Metadata{
			"author": StringValue("li"),
			"source": StringValue("overridden"),
		},
	}

	md := chunk.FullMetadata()
	assert.Equal(t, "notes.md", md.GetString(MetaSource))
	idx, ok := md.GetInt(MetaChunkIndex)
	require.True(t, ok)
	assert.Equal(t, 1, idx)
	total, ok := md.GetInt(MetaTotalChunks)
	require.True(t, ok)
	assert.Equal(t, 3, total)
	assert.Equal(t, "li", md.GetString("author"))

	// Original metadata is untouched
	assert.Equal(t, "overridden", chunk.Metadata.GetString("source"))
}

func TestMetadataJSON(t *testing.T) {
	md := Metadata{
		"title":  StringValue("筑基"),
		"weight": NumberValue(1.5),
		"draft":  BoolValue(true),
		"tags":   ListValue("a", "b"),
	}

	data, err := json.Marshal(md)
	require.NoError(t, err)
	assert.JSONEq(t, `{"title":"筑基","weight":1.5,"draft":true,"tags":["a","b"]}`, string(data))

	var decoded Metadata
	require.NoError(t, json.Unmarshal(data, &decoded))
	for k, v := range md {
		assert.True(t, v.Equal(decoded[k]), "key %s", k)
	}
}

func TestMetadataJSONRejectsUnsupportedShapes(t *testing.T) {
	inputs := []string{
		`{"nested":{"a":1}}`,
		`{"mixed":["a",1]}`,
	}
	for _, in := range inputs {
		var md Metadata
		err := json.Unmarshal([]byte(in), &md)
		assert.Error(t, err, in)
	}
}

func TestMetadataFromMap(t *testing.T) {
	md, err := MetadataFromMap(map[string]any{
		"tags":  []any{"x", "y"},
		"count": 3,
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "y"}, md.GetList("tags"))
	n, ok := md.GetInt("count")
	assert.True(t, ok)
	assert.Equal(t, 3, n)

	_, err = MetadataFromMap(map[string]any{"bad": map[string]any{}})
	assert.True(t, errors.Is(err, ErrValidation))
}

func TestGetListSplitsStrings(t *testing.T) {
	md := Metadata{"tags": StringValue("修仙, 境界,,功法")}
	assert.Equal(t, []string{"修仙", "境界", "功法"}, md.GetList("tags"))
}

func TestCloneIsDeep(t *testing.T) {
	md := Metadata{"tags": ListValue("a")}
	clone := md.Clone()
	list, _ := clone["tags"].AsList()
	list[0] = "changed"
	orig, _ := md["tags"].AsList()
	assert.Equal(t, "a", orig[0])
}

func TestDedupKey(t *testing.T) {
	long := ""
	for i := 0; i < 60; i++ {
		long += "字"
	}

	a := SearchResult{Content: "**筑基**" + long, Plain: "筑基" + long, Source: "s"}
	b := SearchResult{Content: "筑基" + long, Source: "s"}
	c := SearchResult{Content: "筑基" + long, Source: "other"}

	assert.Equal(t, a.DedupKey(), b.DedupKey())
	assert.NotEqual(t, b.DedupKey(), c.DedupKey())

	// Only the first 50 runes participate
	d := SearchResult{Content: "筑基" + long + "tail", Source: "s"}
	assert.Equal(t, b.DedupKey(), d.DedupKey())
}
