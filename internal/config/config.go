package config

import (
	"os"
	"strconv"
)

type Config struct {
	Port              string
	DatabaseDSN       string
	Env               string
	TTLMinSeconds     int
	TTLMaxSeconds     int
	TTLDefaultSeconds int
	MaxFileKB         int
}

func getenv(key, def string) string {
	v := os.Getenv(key)
	if v == "" {
		return def
	}
	return v
}

func getint(key string, def int) int {
	v, err := strconv.Atoi(getenv(key, strconv.Itoa(def)))
	if err != nil || v <= 0 {
		return def
	}
	return v
}

// Load 从环境变量读取配置，数值非法时回退到默认值。
func Load() Config {
	cfg := Config{
		Port:              getenv("APP_PORT", "8080"),
		DatabaseDSN:       getenv("DATABASE_DSN", "host=localhost user=postgres password=postgres dbname=clip port=5432 sslmode=disable TimeZone=UTC"),
		Env:               getenv("APP_ENV", "dev"),
		TTLMinSeconds:     getint("SESSION_TTL_MIN_SECONDS", 60),
		TTLMaxSeconds:     getint("SESSION_TTL_MAX_SECONDS", 3600),
		TTLDefaultSeconds: getint("SESSION_TTL_DEFAULT_SECONDS", 900),
		MaxFileKB:         getint("MAX_FILE_KB", 200),
	}
	// TTL 区间必须满足 min <= default <= max，否则整体回退。
	if cfg.TTLMinSeconds > cfg.TTLMaxSeconds {
		cfg.TTLMinSeconds, cfg.TTLMaxSeconds = 60, 3600
	}
	if cfg.TTLDefaultSeconds < cfg.TTLMinSeconds || cfg.TTLDefaultSeconds > cfg.TTLMaxSeconds {
		cfg.TTLDefaultSeconds = cfg.TTLMinSeconds
	}
	return cfg
}

// ClampTTL 把调用方给出的 TTL 压到策略区间内；非正数使用默认值。
func (c Config) ClampTTL(ttlSeconds int) int {
	if ttlSeconds <= 0 {
		ttlSeconds = c.TTLDefaultSeconds
	}
	if ttlSeconds < c.TTLMinSeconds {
		return c.TTLMinSeconds
	}
	if ttlSeconds > c.TTLMaxSeconds {
		return c.TTLMaxSeconds
	}
	return ttlSeconds
}
