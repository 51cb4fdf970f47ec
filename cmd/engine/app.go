package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"jobaudit-engine/internal/browser"
	"jobaudit-engine/internal/config"
	"jobaudit-engine/internal/llm"
	"jobaudit-engine/internal/scrape"
	"jobaudit-engine/internal/scrape/util"
	"jobaudit-engine/internal/secrets"
	"jobaudit-engine/internal/store"
	"jobaudit-engine/internal/store/postgres"
)

const storeConnectTimeout = 30 * time.Second

// loadConfig resolves the data dir, bootstraps config.yml there and layers
// .env, the process environment and the keychain on top.
func loadConfig(cmd *cli.Command) (config.Config, string, error) {
	if err := config.LoadEnvFile(cmd.String("env")); err != nil {
		return config.Config{}, "", err
	}

	dataDir := strings.TrimSpace(cmd.String("data-dir"))
	if dataDir == "" {
		dataDir = "."
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return config.Config{}, "", fmt.Errorf("create data dir: %w", err)
	}

	userCfgPath, err := config.EnsureUserConfig(dataDir)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("config bootstrap failed: %w", err)
	}

	cfg, err := config.Load(userCfgPath)
	if err != nil {
		return config.Config{}, "", fmt.Errorf("config load failed (%s): %w", userCfgPath, err)
	}
	cfg.App.DataDir = dataDir

	config.ApplyEnv(&cfg)
	secrets.FillFromKeyring(&cfg)
	if p := cmd.Int("port"); p > 0 {
		cfg.App.Port = int(p)
	}

	cfg, vr := config.NormalizeAndValidate(cfg)
	for _, w := range vr.Warnings {
		log.Warnf("[config] %s", w)
	}
	if !vr.OK() {
		return config.Config{}, "", fmt.Errorf("invalid config:\n- %s", strings.Join(vr.Errors, "\n- "))
	}
	return cfg, userCfgPath, nil
}

func newEngine(cfg config.Config) *scrape.Engine {
	opts := scrape.Options{
		Browser:          browser.New(cfg.Browser.APIKey, cfg.PageTimeout(), cfg.PingTimeout()),
		Limiter:          util.NewHostLimiter(cfg.Scrape.ReqPerSec, cfg.Scrape.Burst),
		UserAgent:        cfg.Scrape.UserAgent,
		MaxConcurrency:   cfg.Audit.MaxConcurrency,
		DefaultRemoteURL: cfg.Browser.RemoteURL,
	}

	if cfg.LLM.APIKey != "" {
		c, err := llm.NewClassifier(cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			log.Warnf("[engine] role classifier disabled: %v", err)
		} else {
			opts.Classifier = c
			log.Infof("[engine] role classifier model=%s", c.ModelName())
		}
	}

	return scrape.NewEngine(opts)
}

func openStore(ctx context.Context, cfg config.Config) (store.Store, error) {
	switch cfg.Store.Driver {
	case "postgres":
		s, err := postgres.Open(ctx, cfg.Store.URL, cfg.Store.Key, storeConnectTimeout)
		if err != nil {
			return nil, err
		}
		log.Infof("[store] postgres ready")
		return s, nil
	default:
		path := cfg.Store.Path
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.App.DataDir, path)
		}
		s, err := store.Open(path)
		if err != nil {
			return nil, fmt.Errorf("open sqlite %s: %w", path, err)
		}
		log.Infof("[store] sqlite ready path=%s", path)
		return s, nil
	}
}
