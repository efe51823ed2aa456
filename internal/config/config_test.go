package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/greatstep93/client-app/internal/dispatch"
	"github.com/greatstep93/client-app/internal/httpclient"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), FilePermissions); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestDefault(t *testing.T) {
	s := Default()

	if err := s.Validate(); err != nil {
		t.Fatalf("Default settings should be valid: %v", err)
	}
	if s.Count != 1 || s.Virtual || s.Target != DefaultTarget {
		t.Errorf("Unexpected run defaults: %+v", s)
	}
	if s.ExitCode != dispatch.DefaultExitCode {
		t.Errorf("Expected exit code %d, got: %d", dispatch.DefaultExitCode, s.ExitCode)
	}
	if got := s.ClientConfig(); got != httpclient.DefaultConfig() {
		t.Errorf("Expected client defaults %+v, got: %+v", httpclient.DefaultConfig(), got)
	}
}

func TestLoad_YAMLOverridesDefaults(t *testing.T) {
	path := writeFile(t, "client-app.yaml", `
count: 50
virtual: true
target: http://localhost:9000/ping
measure: dispatch
log:
  level: trace
client:
  maxConnections: 10
  readTimeout: 250ms
  maxInMemorySize: 1024
`)

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	if s.Count != 50 || !s.Virtual || s.Target != "http://localhost:9000/ping" {
		t.Errorf("Unexpected run settings: %+v", s)
	}
	if s.Measure != "dispatch" || s.Log.Level != "trace" {
		t.Errorf("Unexpected measure/log: %s/%s", s.Measure, s.Log.Level)
	}
	// Untouched keys keep their defaults
	if s.Log.Format != "text" || s.ExitCode != dispatch.DefaultExitCode {
		t.Errorf("Expected defaults for unset keys, got format=%q exit=%d", s.Log.Format, s.ExitCode)
	}

	c := s.ClientConfig()
	if c.MaxConnections != 10 || c.ReadTimeout != 250*time.Millisecond || c.MaxInMemorySize != 1024 {
		t.Errorf("Unexpected client config: %+v", c)
	}
	if c.Name != httpclient.DefaultPoolName || c.ConnectTimeout != httpclient.DefaultConnectTimeout {
		t.Errorf("Expected client defaults for unset keys, got: %+v", c)
	}

	opts := s.Options()
	if opts.Count != 50 || opts.Measure != dispatch.MeasureDispatch || opts.Target != s.Target {
		t.Errorf("Unexpected dispatcher options: %+v", opts)
	}
}

func TestLoad_JSON(t *testing.T) {
	path := writeFile(t, "settings.json", `{"count": 3, "client": {"connectTimeout": "2s"}}`)

	s, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if s.Count != 3 || s.ClientConfig().ConnectTimeout != 2*time.Second {
		t.Errorf("Unexpected settings: %+v", s)
	}
}

func TestLoad_Errors(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
		want    string
	}{
		{"bad duration", "a.yaml", "client:\n  readTimeout: soon\n", "invalid duration"},
		{"numeric duration", "b.yaml", "client:\n  readTimeout: [1]\n", "duration must be a string"},
		{"bad yaml", "c.yml", "count: [\n", "failed to parse YAML"},
		{"unsupported", "d.toml", "count = 1", "unsupported config file format"},
		{"invalid values", "e.yaml", "count: 0\n", "count must be greater than 0"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeFile(t, tt.file, tt.content))
			if err == nil {
				t.Fatal("Expected error")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("Expected error containing %q, got: %v", tt.want, err)
			}
		})
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("Expected error for missing file")
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Settings)
	}{
		{"zero count", func(s *Settings) { s.Count = 0 }},
		{"empty target", func(s *Settings) { s.Target = "" }},
		{"unknown measure", func(s *Settings) { s.Measure = "total" }},
		{"unknown level", func(s *Settings) { s.Log.Level = "loud" }},
		{"unknown format", func(s *Settings) { s.Log.Format = "xml" }},
		{"zero pool", func(s *Settings) { s.Client.MaxConnections = 0 }},
		{"negative pending", func(s *Settings) { s.Client.PendingAcquireMaxCount = -1 }},
		{"negative timeout", func(s *Settings) { s.Client.ReadTimeout = Duration(-time.Second) }},
		{"zero body cap", func(s *Settings) { s.Client.MaxInMemorySize = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := Default()
			tt.mutate(s)
			err := s.Validate()
			if !errors.Is(err, ErrInvalid) {
				t.Errorf("Expected ErrInvalid, got: %v", err)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	for _, name := range []string{"out.yaml", "out.json"} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), name)
			s := Default()
			s.Count = 7
			s.Client.PendingAcquireTimeout = Duration(3 * time.Second)

			if err := Save(s, path); err != nil {
				t.Fatalf("Save failed: %v", err)
			}
			got, err := Load(path)
			if err != nil {
				t.Fatalf("Load failed: %v", err)
			}
			if got.Count != 7 || got.ClientConfig().PendingAcquireTimeout != 3*time.Second {
				t.Errorf("Unexpected settings after reload: %+v", got)
			}
		})
	}
}

func TestSave_WritesDurationStrings(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out.yaml")
	if err := Save(Default(), path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	if !strings.Contains(string(data), "pendingAcquireTimeout: 45s") {
		t.Errorf("Expected duration string in output, got:\n%s", data)
	}
}

func TestInitialize(t *testing.T) {
	home := t.TempDir()
	t.Setenv("HOME", home)

	s := Default()
	if err := Initialize(s); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	want := filepath.Join(home, ".client-app", "history.db")
	if s.History.Path != want || DatabasePath != want {
		t.Errorf("Expected history path %s, got: %s", want, s.History.Path)
	}
	if _, err := os.Stat(ConfigDir); !os.IsNotExist(err) {
		t.Errorf("Config directory should not exist while history is disabled")
	}

	s = Default()
	s.History.Enabled = true
	s.History.Path = "~/runs/journal.db"
	if err := Initialize(s); err != nil {
		t.Fatalf("Initialize failed: %v", err)
	}
	if s.History.Path != filepath.Join(home, "runs", "journal.db") {
		t.Errorf("Expected tilde expansion, got: %s", s.History.Path)
	}
	if _, err := os.Stat(filepath.Join(home, "runs")); err != nil {
		t.Errorf("Expected journal directory to be created: %v", err)
	}
}
