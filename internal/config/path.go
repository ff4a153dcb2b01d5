package config

import (
	"os"
	"path/filepath"
)

// DataDirEnv names the variable that overrides the default data directory.
const DataDirEnv = "PEERCHAN_DATA_DIR"

const fallbackDataDir = "./data"

// hostDirs is the view of the host DefaultDataDir consults.
type hostDirs struct {
	getenv func(string) string
	home   func() (string, error)
	isDir  func(string) bool
}

var systemDirs = hostDirs{getenv: os.Getenv, home: os.UserHomeDir, isDir: isDir}

// DefaultDataDir picks where the broker keeps its store when --data-dir is
// not given: $PEERCHAN_DATA_DIR, then $XDG_DATA_HOME/peerchan, then the
// first per-OS location whose parent exists, then ~/.peerchan. Without a
// home directory it returns ./data.
func DefaultDataDir() string { return systemDirs.dataDir() }

func (h hostDirs) dataDir() string {
	if d := h.getenv(DataDirEnv); d != "" {
		return d
	}
	if xdg := h.getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "peerchan")
	}
	home, err := h.home()
	if err != nil || home == "" {
		return fallbackDataDir
	}
	candidates := []struct{ parent, dir string }{
		{"/var/lib", "/var/lib/peerchan"},
		{filepath.Join(home, "Library"), filepath.Join(home, "Library", "Application Support", "Peerchan")},
		{filepath.Join(home, "AppData"), filepath.Join(home, "AppData", "Local", "Peerchan")},
	}
	for _, c := range candidates {
		if h.isDir(c.parent) {
			return c.dir
		}
	}
	return filepath.Join(home, ".peerchan")
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
