// File: internal/config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type RuntimeConfig struct {
	Dev bool
}

type BotConfig struct {
	Token    string  `yaml:"token"`
	Username string  `yaml:"username"` // bot username, used for the referral deep link
	Channel  string  `yaml:"channel"`  // required channel, e.g. "@mychannel"
	Workers  int     `yaml:"workers"`  // update workers
	AdminIDs []int64 `yaml:"admin_ids"`
}

type RelayConfig struct {
	BaseURL string        `yaml:"base_url"`
	Timeout time.Duration `yaml:"timeout"`
}

type QuotaConfig struct {
	DailyCap      int `yaml:"daily_cap"`
	PerNumberCap  int `yaml:"per_number_cap"`
	ReferralBonus int `yaml:"referral_bonus"`
}

type LogConfig struct {
	Level    string `yaml:"level"`    // trace|debug|info|warn|error
	Format   string `yaml:"format"`   // json|console
	Sampling bool   `yaml:"sampling"` // enable sampling in prod
}

type DatabaseConfig struct {
	URL string `yaml:"url"`
}

type RedisConfig struct {
	URL      string `yaml:"url"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

type WebConfig struct {
	Port       int           `yaml:"port"`
	APIKey     string        `yaml:"api_key"`
	JWTSecret  string        `yaml:"jwt_secret"`
	SessionTTL time.Duration `yaml:"session_ttl"`
}

type Config struct {
	Bot      BotConfig      `yaml:"bot"`
	Relay    RelayConfig    `yaml:"relay"`
	Quota    QuotaConfig    `yaml:"quota"`
	Log      LogConfig      `yaml:"log"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Web      WebConfig      `yaml:"web"`

	Runtime RuntimeConfig `yaml:"-"`
}

func LoadConfig(path string, dev bool) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	// defaults
	if cfg.Bot.Workers <= 0 {
		cfg.Bot.Workers = 8
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "json"
	}
	if cfg.Relay.Timeout <= 0 {
		cfg.Relay.Timeout = 15 * time.Second
	}
	if cfg.Quota.DailyCap <= 0 {
		cfg.Quota.DailyCap = 10
	}
	if cfg.Quota.PerNumberCap <= 0 {
		cfg.Quota.PerNumberCap = 4
	}
	if cfg.Quota.ReferralBonus <= 0 {
		cfg.Quota.ReferralBonus = 3
	}
	if cfg.Web.SessionTTL <= 0 {
		cfg.Web.SessionTTL = 30 * time.Minute
	}
	if cfg.Web.Port <= 0 {
		cfg.Web.Port = 8080
	}

	// A partially configured process must not start.
	if cfg.Bot.Token == "" {
		return nil, errors.New("bot.token is required")
	}
	if cfg.Bot.Channel == "" {
		return nil, errors.New("bot.channel is required")
	}
	if !strings.HasPrefix(cfg.Bot.Channel, "@") {
		cfg.Bot.Channel = "@" + cfg.Bot.Channel
	}
	if len(cfg.Bot.AdminIDs) == 0 {
		return nil, errors.New("bot.admin_ids is required")
	}
	if cfg.Relay.BaseURL == "" {
		return nil, errors.New("relay.base_url is required")
	}
	if cfg.Database.URL == "" {
		return nil, errors.New("database.url is required")
	}
	if cfg.Redis.URL == "" {
		return nil, errors.New("redis.url is required")
	}
	// The admin API always runs. An unset JWT secret would let anyone mint
	// a valid session token signed with the empty key.
	if cfg.Web.APIKey == "" {
		return nil, errors.New("web.api_key is required")
	}
	if cfg.Web.JWTSecret == "" {
		return nil, errors.New("web.jwt_secret is required")
	}

	cfg.Runtime.Dev = dev
	return &cfg, nil
}
