package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Addr               string        `yaml:"addr"`
	DBPath             string        `yaml:"db_path"`
	AdminSecret        string        `yaml:"admin_secret"`
	AccessTTL          time.Duration `yaml:"access_ttl"`
	RefreshTTL         time.Duration `yaml:"refresh_ttl"`
	PageSize           int           `yaml:"page_size"`
	MaxPageSize        int           `yaml:"max_page_size"`
	TaxonomyAdminOnly  bool          `yaml:"taxonomy_admin_only"`
	TokenPurgeSchedule string        `yaml:"token_purge_schedule"`
	LogLevel           string        `yaml:"log_level"`
	LogFormat          string        `yaml:"log_format"`
	RateLimits         RateLimits    `yaml:"rate_limits"`

	// Build metadata, stamped at link time.
	Version   string `yaml:"-"`
	Commit    string `yaml:"-"`
	BuildTime string `yaml:"-"`
}

type RateLimits struct {
	AuthPerMinute    int `yaml:"auth_per_minute"`
	BlogPerMinute    int `yaml:"blog_per_minute"`
	CommentPerMinute int `yaml:"comment_per_minute"`
}

func Default() Config {
	return Config{
		Addr:               ":8080",
		DBPath:             "inkwell.db",
		AdminSecret:        "dev-admin-secret",
		AccessTTL:          5 * time.Minute,
		RefreshTTL:         24 * time.Hour,
		PageSize:           10,
		MaxPageSize:        100,
		TokenPurgeSchedule: "@every 1h",
		LogLevel:           "info",
		LogFormat:          "console",
		RateLimits: RateLimits{
			AuthPerMinute:    20,
			BlogPerMinute:    10,
			CommentPerMinute: 30,
		},
	}
}

// Load starts from the defaults, applies the YAML file named by
// INKWELL_CONFIG when set, then lets environment variables override.
func Load() (Config, error) {
	cfg := Default()
	if path := os.Getenv("INKWELL_CONFIG"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}

	addr := envString("INKWELL_ADDR", "")
	if addr == "" {
		if port := os.Getenv("PORT"); port != "" {
			addr = ":" + port
		}
	}
	if addr != "" {
		cfg.Addr = addr
	}
	cfg.DBPath = envString("INKWELL_DB", cfg.DBPath)
	cfg.AdminSecret = envString("INKWELL_ADMIN_SECRET", cfg.AdminSecret)
	cfg.AccessTTL = envDuration("INKWELL_ACCESS_TTL", cfg.AccessTTL)
	cfg.RefreshTTL = envDuration("INKWELL_REFRESH_TTL", cfg.RefreshTTL)
	cfg.PageSize = envInt("INKWELL_PAGE_SIZE", cfg.PageSize)
	cfg.MaxPageSize = envInt("INKWELL_MAX_PAGE_SIZE", cfg.MaxPageSize)
	cfg.TaxonomyAdminOnly = envBool("INKWELL_TAXONOMY_ADMIN_ONLY", cfg.TaxonomyAdminOnly)
	cfg.TokenPurgeSchedule = envString("INKWELL_TOKEN_PURGE", cfg.TokenPurgeSchedule)
	cfg.LogLevel = envString("INKWELL_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = envString("INKWELL_LOG_FORMAT", cfg.LogFormat)
	cfg.RateLimits.AuthPerMinute = envInt("INKWELL_RL_AUTH_PER_MIN", cfg.RateLimits.AuthPerMinute)
	cfg.RateLimits.BlogPerMinute = envInt("INKWELL_RL_BLOG_PER_MIN", cfg.RateLimits.BlogPerMinute)
	cfg.RateLimits.CommentPerMinute = envInt("INKWELL_RL_COMMENT_PER_MIN", cfg.RateLimits.CommentPerMinute)

	if cfg.PageSize <= 0 {
		cfg.PageSize = 10
	}
	if cfg.MaxPageSize < cfg.PageSize {
		cfg.MaxPageSize = cfg.PageSize
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config: %w", err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	return nil
}

func envString(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func envInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func envBool(key string, def bool) bool {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}

func envDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}
