package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func fakeHost(env map[string]string, home string, dirs ...string) hostDirs {
	existing := make(map[string]bool, len(dirs))
	for _, d := range dirs {
		existing[d] = true
	}
	return hostDirs{
		getenv: func(k string) string { return env[k] },
		home: func() (string, error) {
			if home == "" {
				return "", errors.New("no home")
			}
			return home, nil
		},
		isDir: func(p string) bool { return existing[p] },
	}
}

func TestDataDirResolution(t *testing.T) {
	tests := []struct {
		name string
		host hostDirs
		want string
	}{
		{"explicit override", fakeHost(map[string]string{DataDirEnv: "/srv/pc", "XDG_DATA_HOME": "/x"}, "/home/u", "/var/lib"), "/srv/pc"},
		{"xdg", fakeHost(map[string]string{"XDG_DATA_HOME": "/custom/data"}, "/home/u", "/var/lib"), "/custom/data/peerchan"},
		{"xdg without home", fakeHost(map[string]string{"XDG_DATA_HOME": "/custom/data"}, ""), "/custom/data/peerchan"},
		{"no home", fakeHost(nil, ""), fallbackDataDir},
		{"linux", fakeHost(nil, "/home/u", "/var/lib"), "/var/lib/peerchan"},
		{"macos", fakeHost(nil, "/Users/u", "/Users/u/Library"), "/Users/u/Library/Application Support/Peerchan"},
		{"windows", fakeHost(nil, "/Users/u", "/Users/u/AppData"), "/Users/u/AppData/Local/Peerchan"},
		{"dotdir", fakeHost(nil, "/home/u"), "/home/u/.peerchan"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.host.dataDir(); got != filepath.FromSlash(tt.want) {
				t.Fatalf("dataDir() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestDefaultDataDirHonoursEnv(t *testing.T) {
	t.Setenv(DataDirEnv, "/tmp/peerchan-test")
	if got := DefaultDataDir(); got != "/tmp/peerchan-test" {
		t.Fatalf("DefaultDataDir() = %q", got)
	}
}

func TestIsDir(t *testing.T) {
	dir := t.TempDir()
	file := filepath.Join(dir, "f")
	if err := os.WriteFile(file, []byte("x"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}
	if !isDir(dir) || isDir(file) || isDir(filepath.Join(dir, "missing")) {
		t.Fatalf("isDir misreported %s", dir)
	}
}
