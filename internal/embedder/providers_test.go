package embedder

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddingServer(t *testing.T, handler func(w http.ResponseWriter, body map[string]interface{})) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/embeddings", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var body map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		handler(w, body)
	}))
	t.Cleanup(server.Close)
	return server
}

func writeEmbedding(w http.ResponseWriter, vec []float32) {
	resp := map[string]interface{}{
		"object": "list",
		"model":  "test-model",
		"data": []map[string]interface{}{
			{"object": "embedding", "index": 0, "embedding": vec},
		},
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func TestSiliconFlowProvider(t *testing.T) {
	t.Run("request format and response", func(t *testing.T) {
		server := embeddingServer(t, func(w http.ResponseWriter, body map[string]interface{}) {
			assert.Equal(t, "BAAI/bge-large-zh-v1.5", body["model"])
			assert.Equal(t, "筑基", body["input"])
			assert.Equal(t, "float", body["encoding_format"])
			writeEmbedding(w, []float32{0.1, 0.2, 0.3})
		})

		p, err := NewSiliconFlowProvider(Config{BaseURL: server.URL + "/v1/", APIKey: "test-key", Dimension: 3})
		require.NoError(t, err)

		vec, err := p.Embed(context.Background(), "筑基")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.1, 0.2, 0.3}, vec)
	})

	t.Run("non-200 status", func(t *testing.T) {
		server := embeddingServer(t, func(w http.ResponseWriter, _ map[string]interface{}) {
			http.Error(w, "quota exceeded", http.StatusTooManyRequests)
		})
		p, err := NewSiliconFlowProvider(Config{BaseURL: server.URL + "/v1", APIKey: "test-key"})
		require.NoError(t, err)

		_, err = p.Embed(context.Background(), "x")
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrProviderFailed)
		assert.Contains(t, err.Error(), "429")
	})

	t.Run("malformed body", func(t *testing.T) {
		server := embeddingServer(t, func(w http.ResponseWriter, _ map[string]interface{}) {
			_, _ = w.Write([]byte("<html>"))
		})
		p, err := NewSiliconFlowProvider(Config{BaseURL: server.URL + "/v1", APIKey: "test-key"})
		require.NoError(t, err)

		_, err = p.Embed(context.Background(), "x")
		assert.ErrorIs(t, err, ErrProviderFailed)
	})

	t.Run("empty data", func(t *testing.T) {
		server := embeddingServer(t, func(w http.ResponseWriter, _ map[string]interface{}) {
			_, _ = w.Write([]byte(`{"data":[]}`))
		})
		p, err := NewSiliconFlowProvider(Config{BaseURL: server.URL + "/v1", APIKey: "test-key"})
		require.NoError(t, err)

		_, err = p.Embed(context.Background(), "x")
		assert.ErrorIs(t, err, ErrProviderFailed)
	})

	t.Run("timeout", func(t *testing.T) {
		server := embeddingServer(t, func(w http.ResponseWriter, _ map[string]interface{}) {
			time.Sleep(200 * time.Millisecond)
			writeEmbedding(w, []float32{1})
		})
		p, err := NewSiliconFlowProvider(Config{BaseURL: server.URL + "/v1", APIKey: "test-key", Timeout: 20 * time.Millisecond})
		require.NoError(t, err)

		_, err = p.Embed(context.Background(), "x")
		assert.Error(t, err)
	})

	t.Run("missing key", func(t *testing.T) {
		t.Setenv(EnvSiliconFlowAPIKey, "")
		_, err := NewSiliconFlowProvider(Config{})
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})

	t.Run("defaults", func(t *testing.T) {
		p, err := NewSiliconFlowProvider(Config{APIKey: "k"})
		require.NoError(t, err)
		assert.Equal(t, DefaultSiliconFlowModel, p.Model())
		assert.Equal(t, SiliconFlowDimension, p.Dimension())
		assert.Equal(t, ProviderSiliconFlow, p.Name())
		assert.Equal(t, DefaultTimeout, p.httpClient.Timeout)
	})
}

func TestOpenAIProvider(t *testing.T) {
	t.Run("embeds through langchaingo", func(t *testing.T) {
		server := embeddingServer(t, func(w http.ResponseWriter, body map[string]interface{}) {
			assert.Equal(t, "text-embedding-3-small", body["model"])
			assert.Equal(t, []interface{}{"hello\nworld"}, body["input"])
			writeEmbedding(w, []float32{0.5, 0.5})
		})

		p, err := NewOpenAIProvider(Config{BaseURL: server.URL + "/v1", APIKey: "test-key", Dimension: 2})
		require.NoError(t, err)

		vec, err := p.Embed(context.Background(), "hello\nworld")
		require.NoError(t, err)
		assert.Equal(t, []float32{0.5, 0.5}, vec)
		assert.Equal(t, 2, p.Dimension())
		assert.Equal(t, ProviderOpenAI, p.Name())
	})

	t.Run("server error", func(t *testing.T) {
		server := embeddingServer(t, func(w http.ResponseWriter, _ map[string]interface{}) {
			w.WriteHeader(http.StatusInternalServerError)
			_, _ = w.Write([]byte(`{"error":{"message":"boom"}}`))
		})

		p, err := NewOpenAIProvider(Config{BaseURL: server.URL + "/v1", APIKey: "test-key"})
		require.NoError(t, err)

		_, err = p.Embed(context.Background(), "x")
		assert.ErrorIs(t, err, ErrProviderFailed)
	})

	t.Run("missing key", func(t *testing.T) {
		t.Setenv(EnvOpenAIAPIKey, "")
		_, err := NewOpenAIProvider(Config{})
		assert.ErrorIs(t, err, ErrNoProviderEnabled)
	})
}

func TestClientWithHTTPProvider_DegradesOnServerError(t *testing.T) {
	server := embeddingServer(t, func(w http.ResponseWriter, _ map[string]interface{}) {
		w.WriteHeader(http.StatusBadGateway)
	})
	p, err := NewSiliconFlowProvider(Config{BaseURL: server.URL + "/v1", APIKey: "test-key", Dimension: 1024})
	require.NoError(t, err)

	client, err := NewClient(p, nil)
	require.NoError(t, err)

	emb, err := client.Embed(context.Background(), "查询")
	require.NoError(t, err)
	assert.True(t, emb.Degraded)
	assert.Len(t, emb.Vector, 1024)
	assert.True(t, IsZero(emb.Vector))
}
