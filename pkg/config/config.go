/*
Package config manages the TOML config for tripserve services.

The file lives at [UserConfigDir]/tripserve/tripserve.toml unless a path is
given with --config. Missing files are created with defaults; files that do not
fully parse are recovered section by section. Environment variables, optionally
read from a .env file, override the file (see ApplyEnv).
*/
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"

	"github.com/bastiangx/tripserve/internal/utils"
)

// FileName is the config file name inside the config directory.
const FileName = "tripserve.toml"

// Cache backends.
const (
	CacheMemory = "memory"
	CacheRedis  = "redis"
	CacheNone   = "none"
)

// Config holds the entire config structure
type Config struct {
	Engine    EngineConfig    `toml:"engine"`
	Gazetteer GazetteerConfig `toml:"gazetteer"`
	Cache     CacheConfig     `toml:"cache"`
	LLM       LLMConfig       `toml:"llm"`
	Server    ServerConfig    `toml:"server"`
	HTTP      HTTPConfig      `toml:"http"`
	CLI       CliConfig       `toml:"cli"`
}

// EngineConfig holds suggestion defaults shared by every front end.
type EngineConfig struct {
	MaxSuggestions int  `toml:"max_suggestions"`
	Placeholder    bool `toml:"placeholder"`
}

// GazetteerConfig locates the place data. An empty DataDir is resolved
// relative to the executable.
type GazetteerConfig struct {
	DataDir     string `toml:"data_dir"`
	CitiesFile  string `toml:"cities_file"`
	AliasesFile string `toml:"aliases_file"`
}

// CacheConfig selects and sizes the result cache.
type CacheConfig struct {
	Backend       string `toml:"backend"`
	MaxEntries    int    `toml:"max_entries"`
	TTLSeconds    int    `toml:"ttl_seconds"`
	RedisAddr     string `toml:"redis_addr"`
	RedisUsername string `toml:"redis_username"`
	RedisPassword string `toml:"redis_password"`
	RedisDB       int    `toml:"redis_db"`
}

// LLMConfig points at the remote fallback. An empty URL disables it.
type LLMConfig struct {
	URL       string `toml:"url"`
	TimeoutMs int    `toml:"timeout_ms"`
	Retries   int    `toml:"retries"`
	BackoffMs int    `toml:"backoff_ms"`
}

// ServerConfig has IPC server options.
type ServerConfig struct {
	MaxLimit    int  `toml:"max_limit"`
	MaxQueryLen int  `toml:"max_query_len"`
	WatchConfig bool `toml:"watch_config"`
}

// HTTPConfig has HTTP API options.
type HTTPConfig struct {
	Addr            string `toml:"addr"`
	AllowAllOrigins bool   `toml:"allow_all_origins"`
	ReleaseMode     bool   `toml:"release_mode"`
}

// CliConfig holds cli interface options.
type CliConfig struct {
	DefaultLimit int  `toml:"default_limit"`
	ShowGhost    bool `toml:"show_ghost"`
}

func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLSeconds) * time.Second
}

func (c LLMConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutMs) * time.Millisecond
}

func (c LLMConfig) Backoff() time.Duration {
	return time.Duration(c.BackoffMs) * time.Millisecond
}

// DefaultConfig returns a Config with default values.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			MaxSuggestions: 8,
			Placeholder:    true,
		},
		Gazetteer: GazetteerConfig{
			DataDir:     "data",
			CitiesFile:  "cities.csv",
			AliasesFile: "aliases.toml",
		},
		Cache: CacheConfig{
			Backend:    CacheMemory,
			MaxEntries: 10000,
			TTLSeconds: 300,
			RedisAddr:  "localhost:6379",
		},
		LLM: LLMConfig{
			TimeoutMs: 5000,
			Retries:   1,
			BackoffMs: 100,
		},
		Server: ServerConfig{
			MaxLimit:    64,
			MaxQueryLen: 512,
			WatchConfig: true,
		},
		HTTP: HTTPConfig{
			Addr:            ":8080",
			AllowAllOrigins: true,
			ReleaseMode:     true,
		},
		CLI: CliConfig{
			DefaultLimit: 6,
			ShowGhost:    true,
		},
	}
}

// Sanitize replaces out of range values with their defaults.
func (c *Config) Sanitize() {
	d := DefaultConfig()
	if c.Engine.MaxSuggestions < 1 {
		c.Engine.MaxSuggestions = d.Engine.MaxSuggestions
	}
	if c.Server.MaxLimit < 1 {
		c.Server.MaxLimit = d.Server.MaxLimit
	}
	if c.Engine.MaxSuggestions > c.Server.MaxLimit {
		c.Engine.MaxSuggestions = c.Server.MaxLimit
	}
	if c.Server.MaxQueryLen < 1 {
		c.Server.MaxQueryLen = d.Server.MaxQueryLen
	}
	switch c.Cache.Backend {
	case CacheMemory, CacheRedis, CacheNone:
	default:
		log.Warnf("Unknown cache backend %q, using %q", c.Cache.Backend, d.Cache.Backend)
		c.Cache.Backend = d.Cache.Backend
	}
	if c.Cache.MaxEntries < 1 {
		c.Cache.MaxEntries = d.Cache.MaxEntries
	}
	if c.Cache.TTLSeconds < 1 {
		c.Cache.TTLSeconds = d.Cache.TTLSeconds
	}
	if c.LLM.TimeoutMs < 1 {
		c.LLM.TimeoutMs = d.LLM.TimeoutMs
	}
	if c.LLM.Retries < 0 {
		c.LLM.Retries = 0
	}
	if c.LLM.BackoffMs < 1 {
		c.LLM.BackoffMs = d.LLM.BackoffMs
	}
	if c.CLI.DefaultLimit < 1 {
		c.CLI.DefaultLimit = d.CLI.DefaultLimit
	}
	if c.Gazetteer.CitiesFile == "" {
		c.Gazetteer.CitiesFile = d.Gazetteer.CitiesFile
	}
	if c.Gazetteer.AliasesFile == "" {
		c.Gazetteer.AliasesFile = d.Gazetteer.AliasesFile
	}
}

// GetConfigDir returns the config directory with fallback priority:
// 1. ~/.config/tripserve
// 2. ~/Library/Application Support/tripserve (macOS)
// 3. Current executable dir
func GetConfigDir() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		log.Errorf("Failed to get home directory: %v", err)
		return utils.GetExecutableDir()
	}
	primaryPath := filepath.Join(homeDir, ".config", "tripserve")
	if result := utils.CheckDirStatus(primaryPath); result.Writable {
		return primaryPath, nil
	}
	macOSPath := filepath.Join(homeDir, "Library", "Application Support", "tripserve")
	if result := utils.CheckDirStatus(macOSPath); result.Writable {
		return macOSPath, nil
	}
	execDir, err := utils.GetExecutableDir()
	if err != nil {
		log.Errorf("Failed to get executable directory: %v", err)
		return "", err
	}
	return execDir, nil
}

// GetDefaultConfigPath returns the default path for tripserve.toml
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, FileName), nil
}

// LoadConfigWithPriority loads config with priority:
// 1. Custom path from --config flag
// 2. Default path: [UserConfigDir]/tripserve/tripserve.toml
// 3. Builtin defaults
//
// The returned path is empty when builtin defaults are in use.
func LoadConfigWithPriority(customConfigPath string) (*Config, string, error) {
	if customConfigPath != "" {
		if _, statErr := os.Stat(customConfigPath); statErr == nil {
			config, err := LoadConfig(customConfigPath)
			if err == nil {
				log.Debugf("Loaded config from custom path: %s", customConfigPath)
				return config, customConfigPath, nil
			}
			log.Warnf("Failed to load custom config from %s: %v. Trying default path...", customConfigPath, err)
		} else {
			log.Warnf("Custom config file not found at %s: %v. Trying default path...", customConfigPath, statErr)
		}
	}
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		log.Warnf("Failed to determine default config path: %v. Using built-in defaults...", err)
		return DefaultConfig(), "", nil
	}

	config, err := InitConfig(defaultPath)
	if err != nil {
		log.Warnf("Failed to load/create config at default path %s: %v. Using builtin defaults...", defaultPath, err)
		return DefaultConfig(), "", nil
	}
	log.Debugf("Loaded config from default path: %s", defaultPath)
	return config, defaultPath, nil
}

// InitConfig loads config from file or creates default if missing
func InitConfig(configPath string) (*Config, error) {
	configDir := filepath.Dir(configPath)

	if err := utils.EnsureDir(configDir); err != nil {
		log.Warnf("Failed to create config directory %s: %v. Using built-in defaults...", configDir, err)
		return DefaultConfig(), nil
	}

	if !utils.FileExists(configPath) {
		config := DefaultConfig()
		if err := SaveConfig(config, configPath); err != nil {
			log.Warnf("Failed to create default config file at %s: %v. Using built-in defaults...", configPath, err)
			return DefaultConfig(), nil
		}
		log.Debugf("Created default config file at: %s", configPath)
		return config, nil
	}
	return LoadConfig(configPath)
}

// LoadConfig loads from a TOML file
func LoadConfig(configPath string) (*Config, error) {
	config := DefaultConfig()

	if err := utils.LoadTOMLFile(configPath, config); err != nil {
		return tryPartialParse(configPath)
	}
	config.Sanitize()
	return config, nil
}

// tryPartialParse keeps every section that still parses and defaults the rest.
func tryPartialParse(configPath string) (*Config, error) {
	config := DefaultConfig()

	tempConfig, err := utils.ParseTOMLWithRecovery(configPath)
	if err != nil {
		log.Warnf("Could not parse any valid configuration from %s: %v. Using all defaults.", configPath, err)
		return config, nil
	}

	if section, ok := utils.ExtractSection(tempConfig, "engine"); ok {
		extractEngineConfig(section, &config.Engine)
	}
	if section, ok := utils.ExtractSection(tempConfig, "gazetteer"); ok {
		extractGazetteerConfig(section, &config.Gazetteer)
	}
	if section, ok := utils.ExtractSection(tempConfig, "cache"); ok {
		extractCacheConfig(section, &config.Cache)
	}
	if section, ok := utils.ExtractSection(tempConfig, "llm"); ok {
		extractLLMConfig(section, &config.LLM)
	}
	if section, ok := utils.ExtractSection(tempConfig, "server"); ok {
		extractServerConfig(section, &config.Server)
	}
	if section, ok := utils.ExtractSection(tempConfig, "http"); ok {
		extractHTTPConfig(section, &config.HTTP)
	}
	if section, ok := utils.ExtractSection(tempConfig, "cli"); ok {
		extractCliConfig(section, &config.CLI)
	}
	config.Sanitize()
	return config, nil
}

func extractEngineConfig(data map[string]any, engine *EngineConfig) {
	if val, ok := utils.ExtractInt64(data, "max_suggestions"); ok {
		engine.MaxSuggestions = val
	}
	if val, ok := utils.ExtractBool(data, "placeholder"); ok {
		engine.Placeholder = val
	}
}

func extractGazetteerConfig(data map[string]any, gaz *GazetteerConfig) {
	if val, ok := utils.ExtractString(data, "data_dir"); ok {
		gaz.DataDir = val
	}
	if val, ok := utils.ExtractString(data, "cities_file"); ok {
		gaz.CitiesFile = val
	}
	if val, ok := utils.ExtractString(data, "aliases_file"); ok {
		gaz.AliasesFile = val
	}
}

func extractCacheConfig(data map[string]any, c *CacheConfig) {
	if val, ok := utils.ExtractString(data, "backend"); ok {
		c.Backend = val
	}
	if val, ok := utils.ExtractInt64(data, "max_entries"); ok {
		c.MaxEntries = val
	}
	if val, ok := utils.ExtractInt64(data, "ttl_seconds"); ok {
		c.TTLSeconds = val
	}
	if val, ok := utils.ExtractString(data, "redis_addr"); ok {
		c.RedisAddr = val
	}
	if val, ok := utils.ExtractString(data, "redis_username"); ok {
		c.RedisUsername = val
	}
	if val, ok := utils.ExtractString(data, "redis_password"); ok {
		c.RedisPassword = val
	}
	if val, ok := utils.ExtractInt64(data, "redis_db"); ok {
		c.RedisDB = val
	}
}

func extractLLMConfig(data map[string]any, l *LLMConfig) {
	if val, ok := utils.ExtractString(data, "url"); ok {
		l.URL = val
	}
	if val, ok := utils.ExtractInt64(data, "timeout_ms"); ok {
		l.TimeoutMs = val
	}
	if val, ok := utils.ExtractInt64(data, "retries"); ok {
		l.Retries = val
	}
	if val, ok := utils.ExtractInt64(data, "backoff_ms"); ok {
		l.BackoffMs = val
	}
}

// extractServerConfig extracts server configuration from a map
func extractServerConfig(data map[string]any, server *ServerConfig) {
	if val, ok := utils.ExtractInt64(data, "max_limit"); ok {
		server.MaxLimit = val
	}
	if val, ok := utils.ExtractInt64(data, "max_query_len"); ok {
		server.MaxQueryLen = val
	}
	if val, ok := utils.ExtractBool(data, "watch_config"); ok {
		server.WatchConfig = val
	}
}

func extractHTTPConfig(data map[string]any, h *HTTPConfig) {
	if val, ok := utils.ExtractString(data, "addr"); ok {
		h.Addr = val
	}
	if val, ok := utils.ExtractBool(data, "allow_all_origins"); ok {
		h.AllowAllOrigins = val
	}
	if val, ok := utils.ExtractBool(data, "release_mode"); ok {
		h.ReleaseMode = val
	}
}

// extractCliConfig extracts CLI config from a map
func extractCliConfig(data map[string]any, cli *CliConfig) {
	if val, ok := utils.ExtractInt64(data, "default_limit"); ok {
		cli.DefaultLimit = val
	}
	if val, ok := utils.ExtractBool(data, "show_ghost"); ok {
		cli.ShowGhost = val
	}
}

// RebuildConfigFile force creates a new tripserve.toml at default
func RebuildConfigFile() error {
	defaultPath, err := GetDefaultConfigPath()
	if err != nil {
		return err
	}
	if err := utils.EnsureDir(filepath.Dir(defaultPath)); err != nil {
		return err
	}
	return utils.SaveTOMLFile(DefaultConfig(), defaultPath)
}

// GetActiveConfigPath returns the absolute path of loaded config file
func GetActiveConfigPath(configPath string) string {
	if configPath == "" {
		return "built-in defaults"
	}
	return utils.GetAbsolutePath(configPath)
}

// SaveConfig saves into a TOML file
func SaveConfig(config *Config, configPath string) error {
	return utils.SaveTOMLFile(config, configPath)
}

// Update changes the suggestion limits and saves to file. A nil pointer
// leaves the value alone; an empty configPath skips saving.
func (c *Config) Update(configPath string, maxSuggestions, maxLimit *int, placeholder *bool) error {
	if maxLimit != nil {
		c.Server.MaxLimit = *maxLimit
	}
	if maxSuggestions != nil {
		c.Engine.MaxSuggestions = *maxSuggestions
	}
	if placeholder != nil {
		c.Engine.Placeholder = *placeholder
	}
	c.Sanitize()
	if configPath == "" {
		return nil
	}
	return SaveConfig(c, configPath)
}
