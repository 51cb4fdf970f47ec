package config

import (
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	App struct {
		Host    string `yaml:"host"`
		Port    int    `yaml:"port"`
		DataDir string `yaml:"data_dir"`
	} `yaml:"app"`

	Audit struct {
		TimeoutSeconds   int `yaml:"timeout_seconds"`
		ResultTTLSeconds int `yaml:"result_ttl_seconds"`
		SweepSeconds     int `yaml:"sweep_seconds"`
		MaxConcurrency   int `yaml:"max_concurrency"`
	} `yaml:"audit"`

	Browser struct {
		RemoteURL          string `yaml:"remote_url"`
		APIKey             string `yaml:"-" json:"-"`
		PageTimeoutSeconds int    `yaml:"page_timeout_seconds"`
		PingTimeoutSeconds int    `yaml:"ping_timeout_seconds"`
	} `yaml:"browser"`

	Scrape struct {
		ReqPerSec float64 `yaml:"req_per_sec"`
		Burst     int     `yaml:"burst"`
		UserAgent string  `yaml:"user_agent"`
	} `yaml:"scrape"`

	LLM struct {
		APIKey string `yaml:"-" json:"-"`
		Model  string `yaml:"model"`
	} `yaml:"llm"`

	Store struct {
		Driver string `yaml:"driver"` // sqlite | postgres
		Path   string `yaml:"path"`
		URL    string `yaml:"-" json:"-"`
		Key    string `yaml:"-" json:"-"`
	} `yaml:"store"`

	// ShutdownToken guards POST /shutdown. Never written to disk.
	ShutdownToken string `yaml:"-" json:"-"`
}

func Default() Config {
	var cfg Config
	cfg.App.Host = "127.0.0.1"
	cfg.App.Port = 38471
	cfg.App.DataDir = "."

	cfg.Audit.TimeoutSeconds = 600
	cfg.Audit.ResultTTLSeconds = 3600
	cfg.Audit.SweepSeconds = 60
	cfg.Audit.MaxConcurrency = 4

	cfg.Browser.PageTimeoutSeconds = 30
	cfg.Browser.PingTimeoutSeconds = 10

	cfg.Scrape.ReqPerSec = 1.0
	cfg.Scrape.Burst = 2
	cfg.Scrape.UserAgent = "JobAudit/1.0 (+local)"

	cfg.LLM.Model = "gpt-4o-mini"

	cfg.Store.Driver = "sqlite"
	cfg.Store.Path = "jobaudit.db"
	return cfg
}

// Load reads the YAML file at path on top of Default().
func Load(path string) (Config, error) {
	cfg := Default()
	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}
	err = yaml.Unmarshal(b, &cfg)
	return cfg, err
}

func (c Config) AuditTimeout() time.Duration {
	return time.Duration(c.Audit.TimeoutSeconds) * time.Second
}

func (c Config) ResultTTL() time.Duration {
	return time.Duration(c.Audit.ResultTTLSeconds) * time.Second
}

func (c Config) SweepInterval() time.Duration {
	return time.Duration(c.Audit.SweepSeconds) * time.Second
}

func (c Config) PageTimeout() time.Duration {
	return time.Duration(c.Browser.PageTimeoutSeconds) * time.Second
}

// PingTimeout bounds a connectivity check, discovery and handshake included.
func (c Config) PingTimeout() time.Duration {
	return time.Duration(c.Browser.PingTimeoutSeconds) * time.Second
}
