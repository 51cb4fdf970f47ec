package httpapi

import (
	"net/http"
	"os"
	"path/filepath"
	"sync/atomic"

	"jobaudit-engine/internal/config"
)

// ConfigHandler exposes the running configuration. Secrets are tagged
// json:"-" and never leave the process.
type ConfigHandler struct {
	CfgVal      *atomic.Value // stores config.Config
	UserCfgPath string
}

func (h ConfigHandler) current() config.Config {
	cfg, _ := h.CfgVal.Load().(config.Config)
	return cfg
}

func (h ConfigHandler) Get(w http.ResponseWriter, r *http.Request) {
	WriteJSON(w, http.StatusOK, h.current())
}

// Path reports where config.yml lives and whether it is on disk.
func (h ConfigHandler) Path(w http.ResponseWriter, r *http.Request) {
	abs, err := filepath.Abs(h.UserCfgPath)
	if err != nil {
		abs = h.UserCfgPath
	}
	_, statErr := os.Stat(abs)
	WriteJSON(w, http.StatusOK, map[string]any{
		"path":    abs,
		"exists":  statErr == nil,
		"dataDir": h.current().App.DataDir,
	})
}

// Validate re-runs validation on the live config. Keys filled from the
// environment or keychain count toward it.
func (h ConfigHandler) Validate(w http.ResponseWriter, r *http.Request) {
	_, vr := config.NormalizeAndValidate(h.current())
	WriteJSON(w, http.StatusOK, map[string]any{
		"ok":       vr.OK(),
		"errors":   vr.Errors,
		"warnings": vr.Warnings,
	})
}
