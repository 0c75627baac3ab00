package embedder

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetectProvider(t *testing.T) {
	tests := []struct {
		name           string
		apiKey         string
		siliconKey     string
		openaiKey      string
		expectedResult string
	}{
		{
			name:           "explicit key",
			apiKey:         "k",
			expectedResult: ProviderSiliconFlow,
		},
		{
			name:           "siliconflow key present",
			siliconKey:     "test-key",
			expectedResult: ProviderSiliconFlow,
		},
		{
			name:           "siliconflow wins over openai",
			siliconKey:     "test-key",
			openaiKey:      "test-key",
			expectedResult: ProviderSiliconFlow,
		},
		{
			name:           "openai key present",
			openaiKey:      "test-key",
			expectedResult: ProviderOpenAI,
		},
		{
			name:           "no keys",
			expectedResult: ProviderLocal,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(EnvSiliconFlowAPIKey, tt.siliconKey)
			t.Setenv(EnvOpenAIAPIKey, tt.openaiKey)

			assert.Equal(t, tt.expectedResult, DetectProvider(tt.apiKey))
		})
	}
}

func TestNew(t *testing.T) {
	t.Setenv(EnvSiliconFlowAPIKey, "")
	t.Setenv(EnvOpenAIAPIKey, "")

	tests := []struct {
		name     string
		cfg      Config
		wantName string
		wantErr  error
	}{
		{"auto detects local", Config{}, ProviderLocal, nil},
		{"explicit local", Config{Provider: "LOCAL", Dimension: 32}, ProviderLocal, nil},
		{"siliconflow with key", Config{Provider: "siliconflow", APIKey: "k"}, ProviderSiliconFlow, nil},
		{"openai with key", Config{Provider: "openai", APIKey: "k"}, ProviderOpenAI, nil},
		{"siliconflow without key", Config{Provider: "siliconflow"}, "", ErrNoProviderEnabled},
		{"unknown", Config{Provider: "jina"}, "", ErrUnsupportedModel},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := New(tt.cfg)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantName, p.Name())
		})
	}
}
