package config

import (
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ProfileInfo describes one selectable *.toml file in the config directory.
type ProfileInfo struct {
	Name       string `json:"name"`
	Path       string `json:"path"`
	SensorKind string `json:"sensor_kind,omitempty"`
	ModifiedAt string `json:"modified_at"`
	Valid      bool   `json:"valid"`
	Error      string `json:"error,omitempty"`
}

// DefaultConfigDir is where profiles live. POTHOLE_CONFIG_DIR overrides it.
func DefaultConfigDir() string {
	if dir := os.Getenv("POTHOLE_CONFIG_DIR"); dir != "" {
		return dir
	}
	return "/etc/pothole"
}

// ProfilePath resolves a profile name to its file inside dir.
func ProfilePath(dir, name string) string {
	return filepath.Join(dir, name+".toml")
}

// ListProfiles loads every *.toml in dir so callers can see which ones would
// pass validation. A missing directory yields no profiles and no error.
func ListProfiles(dir string) ([]ProfileInfo, error) {
	matches, err := filepath.Glob(filepath.Join(dir, "*.toml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(matches)

	var out []ProfileInfo
	for _, m := range matches {
		info, err := os.Stat(m)
		if err != nil {
			continue
		}
		p := ProfileInfo{
			Name:       strings.TrimSuffix(filepath.Base(m), ".toml"),
			Path:       m,
			ModifiedAt: info.ModTime().UTC().Format(time.RFC3339),
		}
		cfg, err := Load(m)
		if err != nil {
			p.Error = err.Error()
		} else {
			p.Valid = true
			p.SensorKind = cfg.Sensor.Kind
		}
		out = append(out, p)
	}
	return out, nil
}
