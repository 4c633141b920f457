// Package settings reads process settings from the environment.
package settings

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Settings configure the server process. User rules live in heels.yaml
// under ConfigDir.
type Settings struct {
	HTTPAddr      string        `env:"HEELS_HTTP_ADDR" envDefault:":8080"`
	GRPCAddr      string        `env:"HEELS_GRPC_ADDR" envDefault:"127.0.0.1:7070"`
	ConfigDir     string        `env:"HEELS_CONFIG_DIR" envDefault:"./config"`
	WatchInterval time.Duration `env:"HEELS_WATCH_INTERVAL" envDefault:"2s"`
	BackupOnSave  bool          `env:"HEELS_BACKUP_ON_SAVE" envDefault:"true"`
}

// Load parses the environment into Settings.
func Load() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	if strings.TrimSpace(s.ConfigDir) == "" {
		return Settings{}, fmt.Errorf("parse env: HEELS_CONFIG_DIR must not be empty")
	}
	if s.WatchInterval < 0 {
		return Settings{}, fmt.Errorf("parse env: HEELS_WATCH_INTERVAL must not be negative")
	}
	return s, nil
}
