package embedder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"io"
	"net/http"
	"os"
	"strings"
	"time"
	"unicode"
)

// Provider configuration
const (
	ProviderSiliconFlow = "siliconflow"
	ProviderOpenAI      = "openai"
	ProviderLocal       = "local"

	// Default endpoints and models
	DefaultSiliconFlowBaseURL = "https://api.siliconflow.cn/v1"
	DefaultSiliconFlowModel   = "BAAI/bge-large-zh-v1.5"
	DefaultOpenAIModel        = "text-embedding-3-small"
	DefaultLocalModel         = "local-ngram"

	// Dimensions
	SiliconFlowDimension = 1024
	OpenAIDimension      = 1536
	LocalDimension       = 1024

	// DefaultTimeout bounds one remote embedding call
	DefaultTimeout = 30 * time.Second
)

// Environment variables consulted when no API key is configured
const (
	EnvSiliconFlowAPIKey = "SILICONFLOW_API_KEY"
	EnvOpenAIAPIKey      = "OPENAI_API_KEY"
)

// SiliconFlowProvider calls an OpenAI-compatible /embeddings endpoint
// (SiliconFlow by default) with float encoding.
type SiliconFlowProvider struct {
	baseURL    string
	apiKey     string
	model      string
	dimension  int
	httpClient *http.Client
}

// NewSiliconFlowProvider creates a provider from cfg. The API key falls back
// to SILICONFLOW_API_KEY.
func NewSiliconFlowProvider(cfg Config) (*SiliconFlowProvider, error) {
	apiKey := cfg.APIKey
	if apiKey == "" {
		apiKey = os.Getenv(EnvSiliconFlowAPIKey)
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: %s not set", ErrNoProviderEnabled, EnvSiliconFlowAPIKey)
	}

	p := &SiliconFlowProvider{
		baseURL:   strings.TrimRight(valueOr(cfg.BaseURL, DefaultSiliconFlowBaseURL), "/"),
		apiKey:    apiKey,
		model:     valueOr(cfg.Model, DefaultSiliconFlowModel),
		dimension: cfg.Dimension,
		httpClient: &http.Client{
			Timeout: durationOr(cfg.Timeout, DefaultTimeout),
		},
	}
	if p.dimension <= 0 {
		p.dimension = SiliconFlowDimension
	}
	return p, nil
}

func (p *SiliconFlowProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	reqBody := map[string]interface{}{
		"model":           p.model,
		"input":           text,
		"encoding_format": "float",
	}

	body, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.apiKey)

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("api call: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("%w: api error %d: %s", ErrProviderFailed, resp.StatusCode, string(bodyBytes))
	}

	var apiResp struct {
		Data []struct {
			Embedding []float32 `json:"embedding"`
			Index     int       `json:"index"`
		} `json:"data"`
		Model string `json:"model"`
	}

	if err := json.NewDecoder(resp.Body).Decode(&apiResp); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrProviderFailed, err)
	}
	if len(apiResp.Data) == 0 || len(apiResp.Data[0].Embedding) == 0 {
		return nil, fmt.Errorf("%w: no embeddings returned", ErrProviderFailed)
	}

	return apiResp.Data[0].Embedding, nil
}

func (p *SiliconFlowProvider) Dimension() int {
	return p.dimension
}

func (p *SiliconFlowProvider) Name() string {
	return ProviderSiliconFlow
}

func (p *SiliconFlowProvider) Model() string {
	return p.model
}

// LocalProvider derives deterministic vectors from character n-grams. It
// needs no network and gives texts that share characters a positive cosine
// similarity, which is enough for offline use and tests.
type LocalProvider struct {
	dimension int
}

// NewLocalProvider creates a local provider. dimension <= 0 selects LocalDimension.
func NewLocalProvider(dimension int) *LocalProvider {
	if dimension <= 0 {
		dimension = LocalDimension
	}
	return &LocalProvider{dimension: dimension}
}

func (l *LocalProvider) Embed(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vector := make([]float32, l.dimension)
	var prev rune = -1
	for _, r := range strings.ToLower(text) {
		if unicode.IsSpace(r) || unicode.IsPunct(r) {
			prev = -1
			continue
		}
		vector[l.bucket(string(r))] += 1
		if prev >= 0 {
			vector[l.bucket(string([]rune{prev, r}))] += 2
		}
		prev = r
	}

	if IsZero(vector) {
		// Punctuation-only input still gets a stable non-zero vector
		vector[l.bucket(text)] = 1
	}
	return NormalizeVector(vector), nil
}

func (l *LocalProvider) bucket(s string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(s))
	return int(h.Sum32() % uint32(l.dimension))
}

func (l *LocalProvider) Dimension() int {
	return l.dimension
}

func (l *LocalProvider) Name() string {
	return ProviderLocal
}

func (l *LocalProvider) Model() string {
	return DefaultLocalModel
}

func valueOr(v, def string) string {
	if v == "" {
		return def
	}
	return v
}

func durationOr(v, def time.Duration) time.Duration {
	if v <= 0 {
		return def
	}
	return v
}
