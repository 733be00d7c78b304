package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("EVAL_API_KEY", "k")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 0.93, cfg.Dedupe.TitleSimilarityThreshold)
	assert.Equal(t, []string{"utm_", "spm", "fbclid", "gclid", "ref"}, cfg.Dedupe.TrackingParamPrefixes)
	assert.Equal(t, 60, cfg.Fetch.TotalBudget)
	assert.Equal(t, 3, cfg.Fetch.MinPerSource)
	assert.Equal(t, 0.15, cfg.Fetch.ExplorationRatio)
	assert.Equal(t, 60, cfg.Fetch.MaxEvalArticles)
	assert.Equal(t, 0.45, cfg.Highlight.SelectionRatio)
	assert.Equal(t, 4, cfg.Highlight.MinCount)
	assert.Equal(t, 16, cfg.Highlight.TopN)
	assert.Equal(t, 2, cfg.Highlight.MaxDuplicatesPerDigest)
	assert.True(t, cfg.Highlight.RepeatGuardEnabled)
	assert.Equal(t, 0.85, cfg.Personalization.Source.MinMultiplier)
	assert.Equal(t, 1.15, cfg.Personalization.Type.MaxMultiplier)
	assert.Equal(t, "gemini", cfg.Evaluator.Provider)
	assert.Equal(t, "gemini-1.5-flash", cfg.Evaluator.Model)
	assert.Equal(t, "file", cfg.Store.Driver)
	assert.Equal(t, 30*24*time.Hour, cfg.Store.RepeatWindow)
	assert.Equal(t, "none", cfg.ClickStats.Backend)
}

func TestLoad_ExpandedDiscovery(t *testing.T) {
	t.Setenv("EVAL_API_KEY", "k")
	t.Setenv("EXPANDED_DISCOVERY", "true")

	cfg, err := Load()
	require.NoError(t, err)

	assert.True(t, cfg.App.ExpandedDiscovery)
	assert.Equal(t, 1.0, cfg.Highlight.SelectionRatio)
	assert.Equal(t, 8, cfg.Highlight.MinCount)
	assert.Equal(t, 32, cfg.Highlight.TopN)
	assert.Equal(t, 120, cfg.Fetch.MaxEvalArticles)
}

func TestLoad_ExplicitOverridesExpanded(t *testing.T) {
	t.Setenv("EVAL_API_KEY", "k")
	t.Setenv("EXPANDED_DISCOVERY", "1")
	t.Setenv("HIGHLIGHT_TOP_N", "10")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Highlight.TopN)
}

func TestLoad_ProviderKeyFallback(t *testing.T) {
	t.Setenv("EVAL_API_KEY", "")
	t.Setenv("EVAL_PROVIDER", "OpenAI")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "openai", cfg.Evaluator.Provider)
	assert.Equal(t, "sk-test", cfg.Evaluator.APIKey)
	assert.Equal(t, "gpt-4o-mini", cfg.Evaluator.Model)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
		want string
	}{
		{"unparseable int", map[string]string{"SOURCE_FETCH_BUDGET": "lots"}, "SOURCE_FETCH_BUDGET"},
		{"unparseable duration", map[string]string{"FETCH_TIMEOUT": "soon"}, "FETCH_TIMEOUT"},
		{"unparseable bool", map[string]string{"EXPANDED_DISCOVERY": "maybe"}, "EXPANDED_DISCOVERY"},
		{"similarity out of range", map[string]string{"DEDUPE_TITLE_SIMILARITY": "1.5"}, "DEDUPE_TITLE_SIMILARITY"},
		{"exploration out of range", map[string]string{"EXPLORATION_RATIO": "2"}, "EXPLORATION_RATIO"},
		{"inverted multiplier bounds", map[string]string{"PERSONALIZATION_MIN_MULTIPLIER": "1.5"}, "multiplier bounds"},
		{"unknown provider", map[string]string{"EVAL_PROVIDER": "llama"}, "EVAL_PROVIDER"},
		{"unknown store", map[string]string{"STORE_DRIVER": "mongo"}, "STORE_DRIVER"},
		{"postgres without dsn", map[string]string{"STORE_DRIVER": "postgres"}, "DATABASE_URL"},
		{"redis without url", map[string]string{"CLICKSTATS_BACKEND": "redis"}, "REDIS_URL"},
		{"token without chat", map[string]string{"TELEGRAM_TOKEN": "t"}, "TELEGRAM_CHAT_ID"},
		{"bad timezone", map[string]string{"TIMEZONE": "Mars/Olympus"}, "TIMEZONE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv("EVAL_API_KEY", "k")
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoad_MissingAPIKey(t *testing.T) {
	t.Setenv("EVAL_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "EVAL_API_KEY")
}
