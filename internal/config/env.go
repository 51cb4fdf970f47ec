package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// LoadEnvFile loads a .env file into the process environment. Variables that
// are already set win. A missing file is not an error.
func LoadEnvFile(path string) error {
	if strings.TrimSpace(path) == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("load env file %s: %w", path, err)
	}
	return nil
}

// ApplyEnv overlays environment variables onto cfg. Secrets only ever come
// from here (or the keychain), never from the YAML file.
func ApplyEnv(cfg *Config) {
	if v := getEnvAsInt("PORT", 0); v > 0 {
		cfg.App.Port = v
	}
	if v := getEnv("JOBAUDIT_HOST", ""); v != "" {
		cfg.App.Host = v
	}
	if v := getEnv("CDP_URL", ""); v != "" {
		cfg.Browser.RemoteURL = v
	}
	cfg.Browser.APIKey = getEnv("SCRAPER_API_KEY", cfg.Browser.APIKey)
	cfg.LLM.APIKey = getEnv("OPENAI_API_KEY", cfg.LLM.APIKey)
	cfg.LLM.Model = getEnv("OPENAI_MODEL", cfg.LLM.Model)

	cfg.Store.URL = getEnv("STORE_URL", getEnv("DATABASE_URL", cfg.Store.URL))
	cfg.Store.Key = getEnv("STORE_KEY", cfg.Store.Key)
	if cfg.Store.URL != "" && isPostgresURL(cfg.Store.URL) {
		cfg.Store.Driver = "postgres"
	}
	if v := getEnvAsInt("AUDIT_TIMEOUT_SECONDS", 0); v > 0 {
		cfg.Audit.TimeoutSeconds = v
	}

	cfg.ShutdownToken = getEnv("JOBAUDIT_SHUTDOWN_TOKEN", cfg.ShutdownToken)
}

func isPostgresURL(u string) bool {
	l := strings.ToLower(u)
	return strings.HasPrefix(l, "postgres://") || strings.HasPrefix(l, "postgresql://")
}

func getEnv(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	value, err := strconv.Atoi(valueStr)
	if err != nil {
		return defaultValue
	}
	return value
}
