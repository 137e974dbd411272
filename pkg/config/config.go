package config

import "github.com/kelseyhightower/envconfig"

type Config struct {
	DatabaseURL  string `envconfig:"DATABASE_URL" required:"true"`
	DatabaseName string `envconfig:"DATABASE_NAME" required:"true"`
	// RedisURL is optional; empty disables the hot cache.
	RedisURL string `envconfig:"REDIS_URL"`

	SearchAPIURL   string `envconfig:"SEARCH_API_URL" required:"true"`
	SearchAPIKey   string `envconfig:"SEARCH_API_KEY" required:"true"`
	InterpreterURL string `envconfig:"INTERPRETER_URL" required:"true"`
	GuardrailURL   string `envconfig:"GUARDRAIL_URL" required:"true"`

	BindAddr string `envconfig:"BIND_ADDR" default:":8080"`

	// Ranking weight profile. The defaults are the canonical profile; all
	// four can be overridden together to switch profiles.
	WeightRelevance  float64 `envconfig:"WEIGHT_RELEVANCE" default:"0.40"`
	WeightReputation float64 `envconfig:"WEIGHT_REPUTATION" default:"0.25"`
	WeightPopularity float64 `envconfig:"WEIGHT_POPULARITY" default:"0.20"`
	WeightFreshness  float64 `envconfig:"WEIGHT_FRESHNESS" default:"0.15"`

	// Channel reputation tiers, comma-separated channel ids.
	OfficialChannels []string `envconfig:"OFFICIAL_CHANNELS"`
	MediaChannels    []string `envconfig:"MEDIA_CHANNELS"`
	FlaggedChannels  []string `envconfig:"FLAGGED_CHANNELS"`

	DurationTolerancePct float64 `envconfig:"DURATION_TOLERANCE_PCT" default:"0.10"`
	MaxPlaylistItems     int     `envconfig:"MAX_PLAYLIST_ITEMS" default:"50"`
	DurationStepMinutes  int     `envconfig:"DURATION_STEP_MINUTES" default:"15"`

	MaxParallelSearches int64 `envconfig:"MAX_PARALLEL_SEARCHES" default:"3"`
	SearchAttempts      int   `envconfig:"SEARCH_ATTEMPTS" default:"3"`
	BuildTimeoutSeconds int   `envconfig:"BUILD_TIMEOUT_SECONDS" default:"30"`
}

func NewConfig() (*Config, error) {
	cfg := new(Config)
	err := envconfig.Process("", cfg)
	if err != nil {
		return nil, err
	}

	return cfg, nil
}
