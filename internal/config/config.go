// Package config assembles the run configuration from the environment once at start-up.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is immutable after Load; components receive the section they need.
type Config struct {
	App             App
	Dedupe          Dedupe
	Fetch           Fetch
	Personalization Personalization
	Quality         Quality
	Highlight       Highlight
	Evaluator       Evaluator
	Store           Store
	ClickStats      ClickStats
	Alert           Alert
}

type App struct {
	SourcesPath       string
	OutputDir         string
	Timezone          string
	Schedule          string
	LogLevel          string
	LogFormat         string
	EnableMonitoring  bool
	MonitoringPort    string
	ExpandedDiscovery bool
	RunTimeout        time.Duration
}

type Dedupe struct {
	TitleSimilarityThreshold float64
	TrackingParamPrefixes    []string
}

type Fetch struct {
	HighCap          int
	MediumCap        int
	LowCap           int
	TotalBudget      int
	MinPerSource     int
	ExplorationRatio float64
	MaxEvalArticles  int
	RequestTimeout   time.Duration
	RetryAttempts    int
	RetryDelay       time.Duration
	UserAgent        string
}

// Multiplier is the decay and bounds setup for one personalization signal.
type Multiplier struct {
	Enabled       bool
	LookbackDays  int
	HalfLifeDays  float64
	MinMultiplier float64
	MaxMultiplier float64
}

type Personalization struct {
	Source               Multiplier
	Type                 Multiplier
	PreferredMinClicks   int
	PreferredTopQuantile float64
	TypeBlend            float64
	QualityGapGuard      float64
}

type Quality struct {
	LookbackDays int
	MinSamples   int
}

type Highlight struct {
	MinScore               float64
	MinWorthReadingScore   float64
	MinConfidence          float64
	DynamicPercentile      float64
	SelectionRatio         float64
	MinCount               int
	TopN                   int
	MaxDuplicatesPerDigest int
	RepeatGuardEnabled     bool
}

type Evaluator struct {
	Provider          string // gemini | openai
	APIKey            string
	Model             string
	BaseURL           string
	PromptVersion     string
	ArticleTypesPath  string
	MaxRequests       int // per run, 0 = unlimited
	RequestsPerMinute int
	RetryAttempts     int
	RetryDelay        time.Duration
	RequestTimeout    time.Duration
	CacheTTL          time.Duration
	CacheMaxRows      int
}

type Store struct {
	Driver       string // file | sqlite | postgres
	Path         string
	DSN          string
	RepeatWindow time.Duration // 0 keeps counters forever
}

type ClickStats struct {
	Backend      string // none | redis | http
	RedisURL     string
	TrackerURL   string
	TrackerToken string
	Timeout      time.Duration
}

type Alert struct {
	TelegramToken  string
	TelegramChatID int64
	APIEndpoint    string
}

// Load reads the environment, applies defaults and validates. Any value that is set but
// cannot be parsed is an error.
func Load() (*Config, error) {
	expanded, err := envBool("EXPANDED_DISCOVERY", false)
	if err != nil {
		return nil, err
	}
	ratio, minCount, topN, maxEval := 0.45, 4, 16, 60
	if expanded {
		ratio, minCount, topN, maxEval = 1.0, 8, 32, 120
	}

	p := &parser{}
	cfg := &Config{
		App: App{
			SourcesPath:       getEnvOrDefault("SOURCES_CONFIG", "configs/sources.yaml"),
			OutputDir:         getEnvOrDefault("OUTPUT_DIR", "reports"),
			Timezone:          getEnvOrDefault("TIMEZONE", "UTC"),
			Schedule:          getEnvOrDefault("SCHEDULE", "0 8 * * *"),
			LogLevel:          getEnvOrDefault("LOG_LEVEL", "info"),
			LogFormat:         getEnvOrDefault("LOG_FORMAT", "text"),
			EnableMonitoring:  p.boolean("ENABLE_HTTP_MONITORING", false),
			MonitoringPort:    getEnvOrDefault("MONITORING_PORT", "8080"),
			ExpandedDiscovery: expanded,
			RunTimeout:        p.duration("RUN_TIMEOUT", 30*time.Minute),
		},
		Dedupe: Dedupe{
			TitleSimilarityThreshold: p.float("DEDUPE_TITLE_SIMILARITY", 0.93),
			TrackingParamPrefixes:    getEnvList("DEDUPE_TRACKING_PREFIXES", []string{"utm_", "spm", "fbclid", "gclid", "ref"}),
		},
		Fetch: Fetch{
			HighCap:          p.integer("FETCH_HIGH_CAP", 30),
			MediumCap:        p.integer("FETCH_MEDIUM_CAP", 22),
			LowCap:           p.integer("FETCH_LOW_CAP", 12),
			TotalBudget:      p.integer("SOURCE_FETCH_BUDGET", 60),
			MinPerSource:     p.integer("MIN_FETCH_PER_SOURCE", 3),
			ExplorationRatio: p.float("EXPLORATION_RATIO", 0.15),
			MaxEvalArticles:  p.integer("MAX_EVAL_ARTICLES", maxEval),
			RequestTimeout:   p.duration("FETCH_TIMEOUT", 20*time.Second),
			RetryAttempts:    p.integer("FETCH_RETRY_ATTEMPTS", 2),
			RetryDelay:       p.duration("FETCH_RETRY_DELAY", 2*time.Second),
			UserAgent:        getEnvOrDefault("FETCH_USER_AGENT", "newsdigest/1.0"),
		},
		Personalization: Personalization{
			Source: Multiplier{
				Enabled:       p.boolean("SOURCE_PERSONALIZATION_ENABLED", true),
				LookbackDays:  p.integer("PERSONALIZATION_LOOKBACK_DAYS", 90),
				HalfLifeDays:  p.float("PERSONALIZATION_HALF_LIFE_DAYS", 21),
				MinMultiplier: p.float("PERSONALIZATION_MIN_MULTIPLIER", 0.85),
				MaxMultiplier: p.float("PERSONALIZATION_MAX_MULTIPLIER", 1.2),
			},
			Type: Multiplier{
				Enabled:       p.boolean("TYPE_PERSONALIZATION_ENABLED", true),
				LookbackDays:  p.integer("TYPE_PERSONALIZATION_LOOKBACK_DAYS", 90),
				HalfLifeDays:  p.float("TYPE_PERSONALIZATION_HALF_LIFE_DAYS", 21),
				MinMultiplier: p.float("TYPE_PERSONALIZATION_MIN_MULTIPLIER", 0.9),
				MaxMultiplier: p.float("TYPE_PERSONALIZATION_MAX_MULTIPLIER", 1.15),
			},
			PreferredMinClicks:   p.integer("PREFERRED_SOURCE_MIN_CLICKS", 2),
			PreferredTopQuantile: p.float("PREFERRED_SOURCE_TOP_QUANTILE", 0.3),
			TypeBlend:            p.float("TYPE_PERSONALIZATION_BLEND", 0.2),
			QualityGapGuard:      p.float("TYPE_PERSONALIZATION_QUALITY_GAP_GUARD", 8),
		},
		Quality: Quality{
			LookbackDays: p.integer("SOURCE_QUALITY_LOOKBACK_DAYS", 30),
			MinSamples:   p.integer("SOURCE_QUALITY_MIN_SAMPLES", 8),
		},
		Highlight: Highlight{
			MinScore:               p.float("MIN_HIGHLIGHT_SCORE", 62),
			MinWorthReadingScore:   p.float("MIN_WORTH_READING_SCORE", 58),
			MinConfidence:          p.float("MIN_HIGHLIGHT_CONFIDENCE", 0.55),
			DynamicPercentile:      p.float("HIGHLIGHT_DYNAMIC_PERCENTILE", 70),
			SelectionRatio:         p.float("HIGHLIGHT_SELECTION_RATIO", ratio),
			MinCount:               p.integer("HIGHLIGHT_MIN_COUNT", minCount),
			TopN:                   p.integer("HIGHLIGHT_TOP_N", topN),
			MaxDuplicatesPerDigest: p.integer("MAX_INFO_DUP_PER_DIGEST", 2),
			RepeatGuardEnabled:     p.boolean("REPEAT_GUARD_ENABLED", true),
		},
		Evaluator: Evaluator{
			Provider:          strings.ToLower(getEnvOrDefault("EVAL_PROVIDER", "gemini")),
			Model:             os.Getenv("EVAL_MODEL"),
			BaseURL:           os.Getenv("EVAL_BASE_URL"),
			PromptVersion:     getEnvOrDefault("EVAL_PROMPT_VERSION", "v3"),
			ArticleTypesPath:  os.Getenv("ARTICLE_TYPES_CONFIG"),
			MaxRequests:       p.integer("EVAL_MAX_REQUESTS", 0),
			RequestsPerMinute: p.integer("EVAL_REQUESTS_PER_MINUTE", 30),
			RetryAttempts:     p.integer("EVAL_RETRY_ATTEMPTS", 3),
			RetryDelay:        p.duration("EVAL_RETRY_DELAY", 2*time.Second),
			RequestTimeout:    p.duration("EVAL_TIMEOUT", 60*time.Second),
			CacheTTL:          p.duration("EVAL_CACHE_TTL", 24*time.Hour),
			CacheMaxRows:      p.integer("EVAL_CACHE_MAX_ROWS", 5000),
		},
		Store: Store{
			Driver:       strings.ToLower(getEnvOrDefault("STORE_DRIVER", "file")),
			Path:         getEnvOrDefault("STORE_PATH", "history.json"),
			DSN:          os.Getenv("DATABASE_URL"),
			RepeatWindow: time.Duration(p.integer("REPEAT_WINDOW_DAYS", 30)) * 24 * time.Hour,
		},
		ClickStats: ClickStats{
			Backend:      strings.ToLower(getEnvOrDefault("CLICKSTATS_BACKEND", "none")),
			RedisURL:     os.Getenv("REDIS_URL"),
			TrackerURL:   os.Getenv("TRACKER_BASE_URL"),
			TrackerToken: os.Getenv("TRACKER_STATS_TOKEN"),
			Timeout:      p.duration("CLICKSTATS_TIMEOUT", 10*time.Second),
		},
		Alert: Alert{
			TelegramToken:  os.Getenv("TELEGRAM_TOKEN"),
			TelegramChatID: p.int64("TELEGRAM_CHAT_ID", 0),
			APIEndpoint:    os.Getenv("TELEGRAM_API_ENDPOINT"),
		},
	}
	if p.err != nil {
		return nil, p.err
	}

	cfg.Evaluator.APIKey = os.Getenv("EVAL_API_KEY")
	if cfg.Evaluator.APIKey == "" {
		switch cfg.Evaluator.Provider {
		case "gemini":
			cfg.Evaluator.APIKey = os.Getenv("GEMINI_API_KEY")
		case "openai":
			cfg.Evaluator.APIKey = os.Getenv("OPENAI_API_KEY")
		}
	}
	if cfg.Evaluator.Model == "" {
		cfg.Evaluator.Model = defaultModel(cfg.Evaluator.Provider)
	}

	return cfg, cfg.Validate()
}

func defaultModel(provider string) string {
	if provider == "openai" {
		return "gpt-4o-mini"
	}
	return "gemini-1.5-flash"
}

// Validate checks ranges and required settings.
func (c *Config) Validate() error {
	if c.Dedupe.TitleSimilarityThreshold <= 0 || c.Dedupe.TitleSimilarityThreshold > 1 {
		return fmt.Errorf("DEDUPE_TITLE_SIMILARITY must be in (0, 1]")
	}
	if c.Fetch.TotalBudget < 0 || c.Fetch.MinPerSource < 0 {
		return fmt.Errorf("SOURCE_FETCH_BUDGET and MIN_FETCH_PER_SOURCE must not be negative")
	}
	if c.Fetch.HighCap < 0 || c.Fetch.MediumCap < 0 || c.Fetch.LowCap < 0 {
		return fmt.Errorf("fetch tier caps must not be negative")
	}
	if c.Fetch.ExplorationRatio < 0 || c.Fetch.ExplorationRatio > 1 {
		return fmt.Errorf("EXPLORATION_RATIO must be in [0, 1]")
	}
	if c.Fetch.MaxEvalArticles < 1 {
		return fmt.Errorf("MAX_EVAL_ARTICLES must be at least 1")
	}
	for name, m := range map[string]Multiplier{"PERSONALIZATION": c.Personalization.Source, "TYPE_PERSONALIZATION": c.Personalization.Type} {
		if m.LookbackDays < 1 {
			return fmt.Errorf("%s_LOOKBACK_DAYS must be at least 1", name)
		}
		if m.MinMultiplier <= 0 || m.MaxMultiplier < m.MinMultiplier {
			return fmt.Errorf("%s multiplier bounds must satisfy 0 < min <= max", name)
		}
	}
	if c.Personalization.TypeBlend < 0 || c.Personalization.TypeBlend > 1 {
		return fmt.Errorf("TYPE_PERSONALIZATION_BLEND must be in [0, 1]")
	}
	if c.Personalization.QualityGapGuard < 0 {
		return fmt.Errorf("TYPE_PERSONALIZATION_QUALITY_GAP_GUARD must not be negative")
	}
	if c.Highlight.MinConfidence < 0 || c.Highlight.MinConfidence > 1 {
		return fmt.Errorf("MIN_HIGHLIGHT_CONFIDENCE must be in [0, 1]")
	}
	if c.Highlight.DynamicPercentile < 0 || c.Highlight.DynamicPercentile > 100 {
		return fmt.Errorf("HIGHLIGHT_DYNAMIC_PERCENTILE must be in [0, 100]")
	}
	if c.Highlight.TopN < 1 {
		return fmt.Errorf("HIGHLIGHT_TOP_N must be at least 1")
	}
	if c.Highlight.MaxDuplicatesPerDigest < 1 {
		return fmt.Errorf("MAX_INFO_DUP_PER_DIGEST must be at least 1")
	}
	if c.Quality.MinSamples < 1 || c.Quality.LookbackDays < 1 {
		return fmt.Errorf("SOURCE_QUALITY_MIN_SAMPLES and SOURCE_QUALITY_LOOKBACK_DAYS must be at least 1")
	}

	switch c.Evaluator.Provider {
	case "gemini", "openai":
	default:
		return fmt.Errorf("EVAL_PROVIDER must be 'gemini' or 'openai'")
	}
	if c.Evaluator.APIKey == "" {
		return fmt.Errorf("EVAL_API_KEY is required")
	}

	switch c.Store.Driver {
	case "file", "sqlite":
	case "postgres":
		if c.Store.DSN == "" {
			return fmt.Errorf("DATABASE_URL is required for the postgres store")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be 'file', 'sqlite' or 'postgres'")
	}

	switch c.ClickStats.Backend {
	case "none":
	case "redis":
		if c.ClickStats.RedisURL == "" {
			return fmt.Errorf("REDIS_URL is required for the redis click stats backend")
		}
	case "http":
		if c.ClickStats.TrackerURL == "" || c.ClickStats.TrackerToken == "" {
			return fmt.Errorf("TRACKER_BASE_URL and TRACKER_STATS_TOKEN are required for the http click stats backend")
		}
	default:
		return fmt.Errorf("CLICKSTATS_BACKEND must be 'none', 'redis' or 'http'")
	}

	if c.Alert.TelegramToken != "" && c.Alert.TelegramChatID == 0 {
		return fmt.Errorf("TELEGRAM_CHAT_ID is required when TELEGRAM_TOKEN is set")
	}
	if _, err := time.LoadLocation(c.App.Timezone); err != nil {
		return fmt.Errorf("TIMEZONE: %w", err)
	}
	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvList(key string, defaultValue []string) []string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser keeps the first parse error so Load can report it after reading everything.
type parser struct {
	err error
}

func (p *parser) fail(key, value string, err error) {
	if p.err == nil {
		p.err = fmt.Errorf("invalid %s=%q: %w", key, value, err)
	}
}

func (p *parser) integer(key string, defaultValue int) int {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	v, err := strconv.Atoi(strings.TrimSpace(value))
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return v
}

func (p *parser) int64(key string, defaultValue int64) int64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return v
}

func (p *parser) float(key string, defaultValue float64) float64 {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return v
}

func (p *parser) boolean(key string, defaultValue bool) bool {
	v, err := envBool(key, defaultValue)
	if err != nil && p.err == nil {
		p.err = err
	}
	return v
}

func (p *parser) duration(key string, defaultValue time.Duration) time.Duration {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	v, err := time.ParseDuration(strings.TrimSpace(value))
	if err != nil {
		p.fail(key, value, err)
		return defaultValue
	}
	return v
}

func envBool(key string, defaultValue bool) (bool, error) {
	value := strings.ToLower(strings.TrimSpace(os.Getenv(key)))
	switch value {
	case "":
		return defaultValue, nil
	case "1", "true", "yes", "on":
		return true, nil
	case "0", "false", "no", "off":
		return false, nil
	}
	return defaultValue, fmt.Errorf("invalid %s=%q: expected a boolean", key, os.Getenv(key))
}
