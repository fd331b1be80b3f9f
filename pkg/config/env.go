package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/joho/godotenv"
)

// Environment variables read by ApplyEnv.
const (
	EnvLLMURL        = "LLM_FALLBACK_URL"
	EnvRedisAddr     = "REDIS_ADDR"
	EnvRedisPassword = "REDIS_PASSWORD"
	EnvHTTPAddr      = "TRIPSERVE_HTTP_ADDR"
	EnvDataDir       = "TRIPSERVE_DATA_DIR"
)

// ApplyEnv loads the given .env files (".env" when none are named) without
// overriding variables already set, then overlays the environment onto c.
// Setting REDIS_ADDR switches the cache backend to redis.
func (c *Config) ApplyEnv(files ...string) {
	if err := godotenv.Load(files...); err != nil && !errors.Is(err, fs.ErrNotExist) {
		log.Warnf("Failed to read env file: %v", err)
	}

	if v, ok := lookup(EnvLLMURL); ok {
		c.LLM.URL = v
	}
	if v, ok := lookup(EnvRedisAddr); ok {
		c.Cache.RedisAddr = v
		c.Cache.Backend = CacheRedis
	}
	if v, ok := lookup(EnvRedisPassword); ok {
		c.Cache.RedisPassword = v
	}
	if v, ok := lookup(EnvHTTPAddr); ok {
		c.HTTP.Addr = v
	}
	if v, ok := lookup(EnvDataDir); ok {
		c.Gazetteer.DataDir = v
	}
}

func lookup(key string) (string, bool) {
	v, ok := os.LookupEnv(key)
	v = strings.TrimSpace(v)
	return v, ok && v != ""
}
