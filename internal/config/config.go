// internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"repo-growth-tracker/internal/model"
	"repo-growth-tracker/internal/ranking"
	"repo-growth-tracker/internal/retry"
)

// Config holds all configuration for the application.
type Config struct {
	LogLevel string `mapstructure:"LOG_LEVEL"`

	GithubToken         string `mapstructure:"GITHUB_TOKEN"`
	GithubAPIURL        string `mapstructure:"GITHUB_API_URL"`
	SearchQuery         string `mapstructure:"SEARCH_QUERY"`
	MaxResults          int    `mapstructure:"MAX_RESULTS"`
	PageSize            int    `mapstructure:"PAGE_SIZE"`
	SearchRatePerMinute int    `mapstructure:"SEARCH_RATE_PER_MINUTE"`
	EnrichActivity      bool   `mapstructure:"ENRICH_ACTIVITY"`
	EnrichConcurrency   int    `mapstructure:"ENRICH_CONCURRENCY"`

	StoreDriver string `mapstructure:"STORE_DRIVER"`
	DBURL       string `mapstructure:"DB_URL"`
	SQLitePath  string `mapstructure:"SQLITE_PATH"`

	DailyWindowTarget  time.Duration `mapstructure:"DAILY_WINDOW_TARGET"`
	DailyWindowMin     time.Duration `mapstructure:"DAILY_WINDOW_MIN"`
	DailyWindowMax     time.Duration `mapstructure:"DAILY_WINDOW_MAX"`
	WeeklyWindowTarget time.Duration `mapstructure:"WEEKLY_WINDOW_TARGET"`
	WeeklyWindowMin    time.Duration `mapstructure:"WEEKLY_WINDOW_MIN"`
	WeeklyWindowMax    time.Duration `mapstructure:"WEEKLY_WINDOW_MAX"`

	MirrorDriver    string `mapstructure:"MIRROR_DRIVER"`
	AirtableToken   string `mapstructure:"AIRTABLE_TOKEN"`
	AirtableBaseID  string `mapstructure:"AIRTABLE_BASE_ID"`
	AirtableTable   string `mapstructure:"AIRTABLE_TABLE"`
	AirtableAPIURL  string `mapstructure:"AIRTABLE_API_URL"`
	MirrorBatchSize int    `mapstructure:"MIRROR_BATCH_SIZE"`

	RetryMaxAttempts     int           `mapstructure:"RETRY_MAX_ATTEMPTS"`
	RetryBaseDelay       time.Duration `mapstructure:"RETRY_BASE_DELAY"`
	RetryMaxDelay        time.Duration `mapstructure:"RETRY_MAX_DELAY"`
	TransientMaxAttempts int           `mapstructure:"TRANSIENT_MAX_ATTEMPTS"`

	RunTimeout       time.Duration `mapstructure:"RUN_TIMEOUT"`
	ScheduleInterval time.Duration `mapstructure:"SCHEDULE_INTERVAL"`
	HTTPAddr         string        `mapstructure:"HTTP_ADDR"`
	TopN             int           `mapstructure:"TOP_N"`
	ExcludedOwners   []string      `mapstructure:"EXCLUDED_OWNERS"`
}

// Every key needs a default: viper only unmarshals environment variables for keys it knows.
func setDefaults(v *viper.Viper) {
	v.SetDefault("LOG_LEVEL", "info")

	v.SetDefault("GITHUB_TOKEN", "")
	v.SetDefault("GITHUB_API_URL", "")
	v.SetDefault("SEARCH_QUERY", "topic:ai")
	v.SetDefault("MAX_RESULTS", 1000)
	v.SetDefault("PAGE_SIZE", 100)
	v.SetDefault("SEARCH_RATE_PER_MINUTE", 30)
	v.SetDefault("ENRICH_ACTIVITY", false)
	v.SetDefault("ENRICH_CONCURRENCY", 4)

	v.SetDefault("STORE_DRIVER", "sqlite")
	v.SetDefault("DB_URL", "")
	v.SetDefault("SQLITE_PATH", "data/snapshots.db")

	v.SetDefault("DAILY_WINDOW_TARGET", model.DailyWindow.Target.String())
	v.SetDefault("DAILY_WINDOW_MIN", model.DailyWindow.Min.String())
	v.SetDefault("DAILY_WINDOW_MAX", model.DailyWindow.Max.String())
	v.SetDefault("WEEKLY_WINDOW_TARGET", model.WeeklyWindow.Target.String())
	v.SetDefault("WEEKLY_WINDOW_MIN", model.WeeklyWindow.Min.String())
	v.SetDefault("WEEKLY_WINDOW_MAX", model.WeeklyWindow.Max.String())

	v.SetDefault("MIRROR_DRIVER", "none")
	v.SetDefault("AIRTABLE_TOKEN", "")
	v.SetDefault("AIRTABLE_BASE_ID", "")
	v.SetDefault("AIRTABLE_TABLE", "")
	v.SetDefault("AIRTABLE_API_URL", "https://api.airtable.com")
	v.SetDefault("MIRROR_BATCH_SIZE", 10)

	v.SetDefault("RETRY_MAX_ATTEMPTS", 5)
	v.SetDefault("RETRY_BASE_DELAY", "2s")
	v.SetDefault("RETRY_MAX_DELAY", "60s")
	v.SetDefault("TRANSIENT_MAX_ATTEMPTS", 3)

	v.SetDefault("RUN_TIMEOUT", "2h")
	v.SetDefault("SCHEDULE_INTERVAL", "24h")
	v.SetDefault("HTTP_ADDR", ":8080")
	v.SetDefault("TOP_N", 10)
	v.SetDefault("EXCLUDED_OWNERS", ranking.DefaultExcludedOwners)
}

// LoadConfig reads configuration from file and/or environment variables.
func LoadConfig() (*Config, error) {
	v := viper.New()
	setDefaults(v)

	// Load from .env file if it exists
	v.SetConfigName(".env")
	v.SetConfigType("env")
	v.AddConfigPath(".")
	_ = v.ReadInConfig() // Ignore error if file not found

	// Bind environment variables
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings every command relies on.
func (c *Config) Validate() error {
	switch c.StoreDriver {
	case "postgres":
		if c.DBURL == "" {
			return errors.New("DB_URL is a required configuration field when STORE_DRIVER=postgres")
		}
	case "sqlite":
		if c.SQLitePath == "" {
			return errors.New("SQLITE_PATH is a required configuration field when STORE_DRIVER=sqlite")
		}
	default:
		return fmt.Errorf("STORE_DRIVER must be postgres or sqlite, got %q", c.StoreDriver)
	}

	switch c.MirrorDriver {
	case "none":
	case "airtable":
		if c.AirtableToken == "" || c.AirtableBaseID == "" || c.AirtableTable == "" {
			return errors.New("AIRTABLE_TOKEN, AIRTABLE_BASE_ID and AIRTABLE_TABLE are required when MIRROR_DRIVER=airtable")
		}
	case "postgres":
		if c.DBURL == "" {
			return errors.New("DB_URL is a required configuration field when MIRROR_DRIVER=postgres")
		}
	default:
		return fmt.Errorf("MIRROR_DRIVER must be none, airtable or postgres, got %q", c.MirrorDriver)
	}

	if err := c.DailyWindow().Validate(); err != nil {
		return fmt.Errorf("DAILY_WINDOW_*: %w", err)
	}
	if err := c.WeeklyWindow().Validate(); err != nil {
		return fmt.Errorf("WEEKLY_WINDOW_*: %w", err)
	}
	if c.MaxResults <= 0 {
		return errors.New("MAX_RESULTS must be positive")
	}
	if c.RetryMaxAttempts <= 0 || c.TransientMaxAttempts <= 0 {
		return errors.New("RETRY_MAX_ATTEMPTS and TRANSIENT_MAX_ATTEMPTS must be positive")
	}
	if c.RetryBaseDelay <= 0 || c.RetryMaxDelay < c.RetryBaseDelay {
		return errors.New("RETRY_BASE_DELAY must be positive and not exceed RETRY_MAX_DELAY")
	}
	if c.RunTimeout <= 0 {
		return errors.New("RUN_TIMEOUT must be positive")
	}
	if c.ScheduleInterval <= 0 {
		return errors.New("SCHEDULE_INTERVAL must be positive")
	}
	return nil
}

// RequireGithubToken is checked by the commands that talk to GitHub.
func (c *Config) RequireGithubToken() error {
	if c.GithubToken == "" {
		return errors.New("GITHUB_TOKEN is a required configuration field")
	}
	return nil
}

func (c *Config) DailyWindow() model.Window {
	return model.Window{Target: c.DailyWindowTarget, Min: c.DailyWindowMin, Max: c.DailyWindowMax}
}

func (c *Config) WeeklyWindow() model.Window {
	return model.Window{Target: c.WeeklyWindowTarget, Min: c.WeeklyWindowMin, Max: c.WeeklyWindowMax}
}

// RetryPolicy is shared by rate-limit handling and mirror sync.
func (c *Config) RetryPolicy() retry.Policy {
	return retry.Policy{
		MaxAttempts: c.RetryMaxAttempts,
		BaseDelay:   c.RetryBaseDelay,
		MaxDelay:    c.RetryMaxDelay,
		Jitter:      0.1,
	}
}

// TransientPolicy retries a single failed request a few times.
func (c *Config) TransientPolicy() retry.Policy {
	p := c.RetryPolicy()
	p.MaxAttempts = c.TransientMaxAttempts
	return p
}
