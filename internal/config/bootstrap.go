package config

import (
	"errors"
	"os"
	"path/filepath"

	log "github.com/sirupsen/logrus"
)

// FileName is the config file kept in the data dir.
const FileName = "config.yml"

// EnsureUserConfig returns the path of config.yml inside dataDir. A missing
// or empty file is (re)written with the defaults.
func EnsureUserConfig(dataDir string) (string, error) {
	path := filepath.Join(dataDir, FileName)

	fi, err := os.Stat(path)
	switch {
	case err == nil && fi.Size() > 0:
		return path, nil
	case err != nil && !errors.Is(err, os.ErrNotExist):
		return "", err
	}

	cfg := Default()
	cfg.App.DataDir = dataDir
	if err := SaveAtomic(path, cfg); err != nil {
		return "", err
	}
	log.Infof("[config] wrote defaults path=%s", path)
	return path, nil
}
