// Copyright 2025 The WordServe Authors. All rights reserved.
// Use of this source code is governed by an MIT-style
// license that can be found in the LICENSE file.

/*
Package main runs the tripserve next-field suggestion engine.

tripserve reads a partially typed travel query ("flight from mum") and answers
with the detected intent, the next slot the user should fill and ranked
suggestions for it. Rules are tried first; queries no rule understands can be
sent to a remote language model when LLM_FALLBACK_URL is set.

# Usage

Start the MessagePack IPC server on stdin/stdout (default mode):

	tripserve

Serve the HTTP API instead:

	tripserve -http -addr :8080

Try queries interactively:

	tripserve -c

# Configuration

Settings live in tripserve.toml (see pkg/config). The file is created with
defaults on first run and reloaded on change in IPC mode. A .env file and the
environment override it:

	LLM_FALLBACK_URL     remote fallback endpoint
	REDIS_ADDR           share the result cache through redis
	REDIS_PASSWORD
	TRIPSERVE_HTTP_ADDR  listen address for -http
	TRIPSERVE_DATA_DIR   directory with cities.csv and aliases.toml

# Command Line Flags

	-config string   path to tripserve.toml
	-env string      path to a .env file (default ".env")
	-data string     directory with the gazetteer files
	-d               debug logging
	-c               interactive CLI
	-http            serve the HTTP API
	-addr string     HTTP listen address
	-limit int       suggestions per answer in CLI mode
	-no-cache        disable the result cache
	-reset-config    rewrite the default config file and exit
	-version         show version
*/
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/log"
	"github.com/gin-gonic/gin"

	"github.com/bastiangx/tripserve/internal/cli"
	"github.com/bastiangx/tripserve/internal/logger"
	"github.com/bastiangx/tripserve/internal/utils"
	"github.com/bastiangx/tripserve/pkg/cache"
	"github.com/bastiangx/tripserve/pkg/config"
	"github.com/bastiangx/tripserve/pkg/engine"
	"github.com/bastiangx/tripserve/pkg/gazetteer"
	"github.com/bastiangx/tripserve/pkg/httpapi"
	"github.com/bastiangx/tripserve/pkg/llm"
	"github.com/bastiangx/tripserve/pkg/server"
)

const (
	Version = "0.3.0-beta"
	AppName = "tripserve"
	gh      = "https://github.com/bastiangx/tripserve"
)

// sigHandler is a simple handler for OS signals to exit normally.
// stdin reads cannot be interrupted, so IPC and CLI modes exit directly.
func sigHandler() {
	c := make(chan os.Signal, 1)
	signal.Notify(c, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-c
		fmt.Fprintf(os.Stderr, "\nExiting...\n")
		os.Exit(0)
	}()
}

// main wires config, gazetteer, cache and fallback into the engine and
// hands it to the selected front end.
func main() {
	defaultConfig := config.DefaultConfig()

	showVersion := flag.Bool("version", false, "Show current version")
	configPath := flag.String("config", "", "Path to tripserve.toml")
	envFile := flag.String("env", "", "Path to a .env file (default .env)")
	dataDir := flag.String("data", "", "Directory containing cities.csv and aliases.toml")
	debugMode := flag.Bool("d", false, "Toggle debug mode")
	cliMode := flag.Bool("c", false, "Run CLI -- useful for testing and debugging")
	httpMode := flag.Bool("http", false, "Serve the HTTP API instead of IPC")
	addr := flag.String("addr", "", "HTTP listen address (overrides config)")
	limit := flag.Int("limit", defaultConfig.CLI.DefaultLimit, "Number of suggestions to show in CLI mode")
	noCache := flag.Bool("no-cache", false, "Disable the result cache")
	resetConfig := flag.Bool("reset-config", false, "Rewrite the default config file with built-in defaults and exit")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	logger.Setup(*debugMode)

	if *resetConfig {
		if err := config.RebuildConfigFile(); err != nil {
			log.Fatalf("Failed to rebuild config: %v", err)
		}
		path, _ := config.GetDefaultConfigPath()
		log.Printf("Wrote default config to %s", path)
		os.Exit(0)
	}

	cfg, usedPath, err := config.LoadConfigWithPriority(*configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}
	if *envFile != "" {
		cfg.ApplyEnv(*envFile)
	} else {
		cfg.ApplyEnv()
	}
	log.Debugf("Using config: %s", config.GetActiveConfigPath(usedPath))

	pathResolver, err := utils.NewPathResolver()
	if err != nil {
		log.Fatalf("Failed to initialize path resolver: %v", err)
	}
	dir := cfg.Gazetteer.DataDir
	if *dataDir != "" {
		dir = *dataDir
	}
	resolvedDataDir := pathResolver.GetDataDir(dir)
	log.Debugf("Using data dir at: %s", resolvedDataDir)

	gaz := gazetteer.Load(
		filepath.Join(resolvedDataDir, cfg.Gazetteer.CitiesFile),
		filepath.Join(resolvedDataDir, cfg.Gazetteer.AliasesFile),
	)

	ctx := context.Background()
	if *noCache {
		cfg.Cache.Backend = config.CacheNone
	}
	resultCache, closeCache := buildCache(ctx, cfg.Cache)
	defer closeCache()

	eng, err := engine.New(engine.Options{Gazetteer: gaz, Cache: resultCache})
	if err != nil {
		log.Fatalf("Failed to init engine: %v", err)
	}
	fallback := llm.NewClient(llm.Config{
		URL:     cfg.LLM.URL,
		Timeout: cfg.LLM.Timeout(),
		Retries: cfg.LLM.Retries,
		Backoff: cfg.LLM.Backoff(),
	})
	if !fallback.IsEnabled() {
		log.Debug("LLM fallback disabled, set LLM_FALLBACK_URL to enable it")
	}
	svc := engine.NewService(eng, fallback)

	switch {
	case *cliMode:
		sigHandler()
		h := cli.NewInputHandler(svc, *limit, cfg.CLI.ShowGhost, os.Stdin, os.Stdout)
		if err := h.Start(ctx); err != nil {
			log.Fatalf("CLI error: %v", err)
		}

	case *httpMode:
		if *addr != "" {
			cfg.HTTP.Addr = *addr
		}
		if cfg.HTTP.ReleaseMode && !*debugMode {
			gin.SetMode(gin.ReleaseMode)
		}
		httpCtx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
		defer stop()
		if err := httpapi.Serve(httpCtx, cfg.HTTP.Addr, httpapi.NewRouter(svc, cfg)); err != nil {
			log.Fatalf("HTTP server error: %v", err)
		}

	default:
		sigHandler()
		srv := server.NewServer(svc, cfg, usedPath)
		showStartupInfo(resolvedDataDir, gaz.Len())
		if err := srv.Start(ctx); err != nil {
			log.Fatalf("Failed to start server: %v", err)
		}
	}
}

// buildCache picks the configured backend. An unreachable redis falls back to memory.
func buildCache(ctx context.Context, c config.CacheConfig) (cache.Cache, func()) {
	noop := func() {}
	switch c.Backend {
	case config.CacheNone:
		return cache.Nop{}, noop
	case config.CacheRedis:
		r, err := cache.NewRedis(ctx, cache.RedisOptions{
			Addr:     c.RedisAddr,
			Username: c.RedisUsername,
			Password: c.RedisPassword,
			DB:       c.RedisDB,
			TTL:      c.TTL(),
		})
		if err == nil {
			log.Debugf("Using redis cache at %s", c.RedisAddr)
			return r, func() { _ = r.Close() }
		}
		log.Warnf("Redis cache unavailable (%v). Using in-memory cache.", err)
	}
	return cache.NewMemory(c.MaxEntries, c.TTL()), noop
}

func printVersion() {
	l := log.NewWithOptions(os.Stderr, log.Options{
		ReportCaller:    false,
		ReportTimestamp: false,
		Prefix:          "",
	})

	styles := log.DefaultStyles()
	styles.Values["version"] = lipgloss.NewStyle().Bold(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	styles.Values["gh"] = lipgloss.NewStyle().Italic(true).
		Foreground(lipgloss.AdaptiveColor{Light: "#575279", Dark: "#e0def4"})
	l.SetStyles(styles)

	l.Print("")
	l.Print("[ tripserve ] Suggests what to type next in a travel search box")
	l.Print("", "version", Version)
	l.Print("")
	l.Print("use -h or --help to see available options")
	l.Print("Github Repo", "gh", gh)
}

// showStartupInfo displays some basic info about the init process on stderr.
func showStartupInfo(dataDir string, places int) {
	currentLevel := log.GetLevel()
	log.SetLevel(log.InfoLevel)
	defer log.SetLevel(currentLevel)

	log.Info("===========")
	log.Infof(" %s %s", AppName, Version)
	log.Info("===========")
	log.Infof("Process ID: [ %d ]", os.Getpid())
	log.Infof("data dir: ( %s ), %d places", dataDir, places)
	log.Info("status: ready")
}
