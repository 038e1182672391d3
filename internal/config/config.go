package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/xxxsen/common/logger"
)

type Config struct {
	Port        int              `json:"port"`
	JWTSecret   string           `json:"jwt_secret"`
	Community   string           `json:"community"`
	AppUsername string           `json:"app_username"`
	CORSOrigins []string         `json:"cors_origins"`
	LogConfig   logger.LogConfig `json:"log_config"`
	Database    DatabaseConfig   `json:"database"`
	KVStore     KVStoreConfig    `json:"kv_store"`
	Wiki        WikiConfig       `json:"wiki"`
	Native      NativeConfig     `json:"native"`
	Notifier    NotifierConfig   `json:"notifier"`
	Transfer    TransferConfig   `json:"transfer"`
	Cache       CacheConfig      `json:"cache"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

func (c DatabaseConfig) Enabled() bool {
	return c.DSN != "" || c.Host != ""
}

type KVStoreConfig struct {
	Type string `json:"type"`
}

type WikiConfig struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

type NativeConfig struct {
	BaseURL      string `json:"base_url"`
	Token        string `json:"token"`
	TimeoutSec   int    `json:"timeout_sec"`
	MaxRetries   int    `json:"max_retries"`
	MaxElapsedMs int    `json:"max_elapsed_ms"`
}

type NotifierConfig struct {
	Type       string   `json:"type"`
	Host       string   `json:"host"`
	Port       int      `json:"port"`
	Username   string   `json:"username"`
	Password   string   `json:"password"`
	From       string   `json:"from"`
	Recipients []string `json:"recipients"`
}

type TransferConfig struct {
	BatchSize        int    `json:"batch_size"`
	Cron             string `json:"cron"`
	WikiFlushCron    string `json:"wiki_flush_cron"`
	StalenessSeconds int    `json:"staleness_seconds"`
	DedupTTLHours    int    `json:"dedup_ttl_hours"`
	Timezone         string `json:"timezone"`
}

type CacheConfig struct {
	Size       int `json:"size"`
	TTLSeconds int `json:"ttl_seconds"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) normalize() error {
	cfg.Community = strings.TrimSpace(cfg.Community)
	if cfg.Community == "" {
		return fmt.Errorf("community is required")
	}
	if cfg.AppUsername == "" {
		return fmt.Errorf("app_username is required")
	}
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.KVStore.Type == "" {
		cfg.KVStore.Type = "postgres"
	}
	switch cfg.KVStore.Type {
	case "postgres":
		if !cfg.Database.Enabled() {
			return fmt.Errorf("database is required for postgres kv_store")
		}
	case "memory":
	default:
		return fmt.Errorf("kv_store.type must be postgres or memory")
	}
	if cfg.Wiki.Type == "" {
		cfg.Wiki.Type = "db"
	}
	if cfg.Wiki.Type == "db" && !cfg.Database.Enabled() {
		return fmt.Errorf("database is required for db wiki store")
	}
	if cfg.Native.BaseURL == "" {
		return fmt.Errorf("native.base_url is required")
	}
	if cfg.Native.TimeoutSec <= 0 {
		cfg.Native.TimeoutSec = 10
	}
	if cfg.Native.MaxRetries <= 0 {
		cfg.Native.MaxRetries = 3
	}
	if cfg.Native.MaxElapsedMs <= 0 {
		cfg.Native.MaxElapsedMs = 15000
	}
	if cfg.Notifier.Type == "" {
		cfg.Notifier.Type = "log"
	}
	if cfg.Notifier.Type == "smtp" {
		if cfg.Notifier.Host == "" || cfg.Notifier.Port == 0 || cfg.Notifier.From == "" || len(cfg.Notifier.Recipients) == 0 {
			return fmt.Errorf("notifier host/port/from/recipients are required for smtp notifier")
		}
	}
	if cfg.Transfer.BatchSize <= 0 {
		cfg.Transfer.BatchSize = 75
	}
	if cfg.Transfer.Cron == "" {
		cfg.Transfer.Cron = "* * * * *"
	}
	if cfg.Transfer.WikiFlushCron == "" {
		cfg.Transfer.WikiFlushCron = "0 0 * * *"
	}
	if cfg.Transfer.StalenessSeconds <= 0 {
		cfg.Transfer.StalenessSeconds = 30
	}
	if cfg.Transfer.DedupTTLHours <= 0 {
		cfg.Transfer.DedupTTLHours = 6
	}
	if cfg.Transfer.Timezone == "" {
		cfg.Transfer.Timezone = "UTC"
	}
	if cfg.Cache.Size <= 0 {
		cfg.Cache.Size = 16
	}
	if cfg.Cache.TTLSeconds <= 0 {
		cfg.Cache.TTLSeconds = 600
	}
	return nil
}
