package llm

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCleanJSONBlock(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", `{"a":1}`, `{"a":1}`},
		{"json fence", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"bare fence", "```\n{\"a\":1}\n```", `{"a":1}`},
		{"surrounding space", "  {\"a\":1}\n", `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CleanJSONBlock(tt.in))
		})
	}
}

func TestConfig_ModelFallback(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, "gemini-2.5-flash-lite", cfg.Model(TierLite))
	assert.Equal(t, "gemini-2.5-flash", cfg.Model(TierStandard))

	partial := &Config{Models: map[ModelTier]string{TierLite: "only-lite"}}
	assert.Equal(t, "only-lite", partial.Model(TierStandard))
}

func TestNewGeminiClient_RequiresKey(t *testing.T) {
	_, err := NewGeminiClient(context.Background(), nil, "")
	assert.Error(t, err)
}
