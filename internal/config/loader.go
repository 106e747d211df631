package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/opencorp/clientsync/internal/db"
	"github.com/opencorp/clientsync/internal/feed"
)

// Config is the full runtime configuration.
type Config struct {
	Env      string
	HTTPAddr string
	Database db.Config
	Feeds    map[string]feed.Config
	Sync     SyncConfig
}

// SyncConfig covers the trigger secret, rate limiting, and scheduling knobs.
type SyncConfig struct {
	Secret          string
	RateLimitWindow time.Duration
	Schedule        string
	SessionHeader   string
}

// Load reads config.yaml from the given path with environment overrides
// (prefix SYNC, e.g. SYNC_DATABASE_HOST).
func Load(configPath string) (Config, error) {
	cfg := Config{
		Env:      "development",
		HTTPAddr: ":8080",
		Database: db.DefaultConfig(),
		Feeds:    map[string]feed.Config{},
		Sync: SyncConfig{
			RateLimitWindow: time.Minute,
		},
	}

	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(configPath)
	v.AutomaticEnv()
	v.SetEnvPrefix("SYNC")

	v.BindEnv("env")
	v.BindEnv("http.addr")
	v.BindEnv("database.host")
	v.BindEnv("database.port")
	v.BindEnv("database.user")
	v.BindEnv("database.password")
	v.BindEnv("database.dbname")
	v.BindEnv("database.sslmode")
	v.BindEnv("sync.secret")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return cfg, fmt.Errorf("failed to read config: %w", err)
		}
		// No config.yaml; defaults plus env vars still apply.
	}

	if v.IsSet("env") {
		cfg.Env = v.GetString("env")
	}
	if v.IsSet("http.addr") {
		cfg.HTTPAddr = v.GetString("http.addr")
	}
	if v.IsSet("database.host") {
		cfg.Database.Host = v.GetString("database.host")
	}
	if v.IsSet("database.port") {
		cfg.Database.Port = v.GetInt("database.port")
	}
	if v.IsSet("database.user") {
		cfg.Database.User = v.GetString("database.user")
	}
	if v.IsSet("database.password") {
		cfg.Database.Password = v.GetString("database.password")
	}
	if v.IsSet("database.dbname") {
		cfg.Database.DBName = v.GetString("database.dbname")
	}
	if v.IsSet("database.sslmode") {
		cfg.Database.SSLMode = v.GetString("database.sslmode")
	}
	if v.IsSet("sync.secret") {
		cfg.Sync.Secret = v.GetString("sync.secret")
	}
	if v.IsSet("sync.rate_limit_window") {
		cfg.Sync.RateLimitWindow = v.GetDuration("sync.rate_limit_window")
	}
	if v.IsSet("sync.schedule") {
		cfg.Sync.Schedule = v.GetString("sync.schedule")
	}
	if v.IsSet("sync.session_header") {
		cfg.Sync.SessionHeader = v.GetString("sync.session_header")
	}

	for key := range v.GetStringMap("feeds") {
		sub := v.Sub("feeds." + key)
		if sub == nil {
			continue
		}
		feedCfg := feed.Config{
			Key:      key,
			Location: sub.GetString("location"),
			Sheet:    sub.GetString("sheet"),
			Variant:  feed.Variant(sub.GetString("variant")),
		}
		if feedCfg.Location == "" {
			return cfg, fmt.Errorf("feed %s has no location", key)
		}
		if !feed.KnownVariant(feedCfg.Variant) {
			return cfg, fmt.Errorf("feed %s has unknown variant %q", key, feedCfg.Variant)
		}
		cfg.Feeds[key] = feedCfg
	}

	return cfg, nil
}
