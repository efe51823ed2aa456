package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/greatstep93/client-app/internal/dispatch"
	"github.com/greatstep93/client-app/internal/httpclient"
	"github.com/greatstep93/client-app/internal/logger"
	"gopkg.in/yaml.v3"
)

const (
	// FilePermissions is the default permission mode for regular files (read/write for owner, read for others)
	FilePermissions = 0644
	// DirPermissions is the default permission mode for directories (rwxr-xr-x)
	DirPermissions = 0755

	// DefaultTarget is the load target used when none is configured
	DefaultTarget = "http://192.168.1.200:8080"
	// DefaultFile is picked up from the working directory when --config is not given
	DefaultFile = "client-app.yaml"
)

// ErrInvalid wraps every validation failure
var ErrInvalid = errors.New("invalid configuration")

var (
	// ConfigDir is the global configuration directory (~/.client-app)
	ConfigDir string

	// DatabasePath is the SQLite run journal
	DatabasePath string
)

// Duration is a time.Duration that reads and writes Go duration strings ("45s", "1000s")
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalYAML() (any, error) {
	return time.Duration(d).String(), nil
}

func (d *Duration) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("duration must be a string like \"30s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) MarshalJSON() ([]byte, error) {
	return json.Marshal(time.Duration(d).String())
}

// LogSettings controls the process logger
type LogSettings struct {
	Level  string `yaml:"level" json:"level"`
	Format string `yaml:"format" json:"format"`
}

// HistorySettings controls the run journal
type HistorySettings struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
}

// ClientSettings mirrors httpclient.Config in file form
type ClientSettings struct {
	Name                   string   `yaml:"name" json:"name"`
	MaxConnections         int      `yaml:"maxConnections" json:"maxConnections"`
	PendingAcquireMaxCount int      `yaml:"pendingAcquireMaxCount" json:"pendingAcquireMaxCount"`
	PendingAcquireTimeout  Duration `yaml:"pendingAcquireTimeout" json:"pendingAcquireTimeout"`
	ConnectTimeout         Duration `yaml:"connectTimeout" json:"connectTimeout"`
	ReadTimeout            Duration `yaml:"readTimeout" json:"readTimeout"`
	WriteTimeout           Duration `yaml:"writeTimeout" json:"writeTimeout"`
	MaxInMemorySize        int64    `yaml:"maxInMemorySize" json:"maxInMemorySize"`
}

// Settings is everything a run needs
type Settings struct {
	Count    int             `yaml:"count" json:"count"`
	Virtual  bool            `yaml:"virtual" json:"virtual"`
	Target   string          `yaml:"target" json:"target"`
	Measure  string          `yaml:"measure" json:"measure"`
	ExitCode int             `yaml:"exitCode" json:"exitCode"`
	Log      LogSettings     `yaml:"log" json:"log"`
	History  HistorySettings `yaml:"history" json:"history"`
	Client   ClientSettings  `yaml:"client" json:"client"`
}

// Default returns the built-in settings
func Default() *Settings {
	c := httpclient.DefaultConfig()
	return &Settings{
		Count:    1,
		Target:   DefaultTarget,
		Measure:  string(dispatch.MeasureCompletion),
		ExitCode: dispatch.DefaultExitCode,
		Log:      LogSettings{Level: "info", Format: "text"},
		Client: ClientSettings{
			Name:                   c.Name,
			MaxConnections:         c.MaxConnections,
			PendingAcquireMaxCount: c.PendingAcquireMaxCount,
			PendingAcquireTimeout:  Duration(c.PendingAcquireTimeout),
			ConnectTimeout:         Duration(c.ConnectTimeout),
			ReadTimeout:            Duration(c.ReadTimeout),
			WriteTimeout:           Duration(c.WriteTimeout),
			MaxInMemorySize:        c.MaxInMemorySize,
		},
	}
}

// Load reads settings from a YAML or JSON file on top of the defaults.
// Keys missing from the file keep their default value.
func Load(path string) (*Settings, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	settings := Default()

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("failed to parse YAML config: %w", err)
		}
	case ".json":
		if err := json.Unmarshal(data, settings); err != nil {
			return nil, fmt.Errorf("failed to parse JSON config: %w", err)
		}
	default:
		return nil, fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, or .json)", ext)
	}

	if err := settings.Validate(); err != nil {
		return nil, err
	}
	return settings, nil
}

// Save writes settings to path, YAML or JSON by extension
func Save(s *Settings, path string) error {
	var data []byte
	var err error

	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(s)
		if err != nil {
			return fmt.Errorf("failed to marshal YAML: %w", err)
		}
	case ".json":
		data, err = json.MarshalIndent(s, "", "  ")
		if err != nil {
			return fmt.Errorf("failed to marshal JSON: %w", err)
		}
	default:
		return fmt.Errorf("unsupported config file format: %s (use .yaml, .yml, or .json)", ext)
	}

	if err := os.WriteFile(path, data, FilePermissions); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Initialize resolves the global paths and fills in the journal location.
// ~/.client-app/ is only created when the journal is enabled.
func Initialize(s *Settings) error {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return fmt.Errorf("failed to get home directory: %w", err)
	}

	ConfigDir = filepath.Join(homeDir, ".client-app")
	DatabasePath = filepath.Join(ConfigDir, "history.db")

	if s.History.Path == "" {
		s.History.Path = DatabasePath
	} else if strings.HasPrefix(s.History.Path, "~/") {
		s.History.Path = filepath.Join(homeDir, s.History.Path[2:])
	}

	if s.History.Enabled {
		if err := os.MkdirAll(filepath.Dir(s.History.Path), DirPermissions); err != nil {
			return fmt.Errorf("failed to create directory %s: %w", filepath.Dir(s.History.Path), err)
		}
	}
	return nil
}

// Validate checks the settings for a run
func (s *Settings) Validate() error {
	if s.Count <= 0 {
		return fmt.Errorf("%w: count must be greater than 0", ErrInvalid)
	}
	if s.Target == "" {
		return fmt.Errorf("%w: target is required", ErrInvalid)
	}
	if _, err := dispatch.ParseMeasure(s.Measure); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if _, err := logger.ParseLevel(s.Log.Level); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalid, err)
	}
	if s.Log.Format != "" && s.Log.Format != "text" && s.Log.Format != "json" {
		return fmt.Errorf("%w: log format must be 'text' or 'json'", ErrInvalid)
	}
	if err := s.ClientConfig().Validate(); err != nil {
		return fmt.Errorf("%w: client: %v", ErrInvalid, err)
	}
	return nil
}

// ClientConfig converts the client section into an httpclient.Config
func (s *Settings) ClientConfig() httpclient.Config {
	c := s.Client
	return httpclient.Config{
		Name:                   c.Name,
		MaxConnections:         c.MaxConnections,
		PendingAcquireMaxCount: c.PendingAcquireMaxCount,
		PendingAcquireTimeout:  time.Duration(c.PendingAcquireTimeout),
		ConnectTimeout:         time.Duration(c.ConnectTimeout),
		ReadTimeout:            time.Duration(c.ReadTimeout),
		WriteTimeout:           time.Duration(c.WriteTimeout),
		MaxInMemorySize:        c.MaxInMemorySize,
	}
}

// Options converts the run section into dispatcher options
func (s *Settings) Options() dispatch.Options {
	return dispatch.Options{
		Count:    s.Count,
		Target:   s.Target,
		Measure:  dispatch.Measure(s.Measure),
		ExitCode: s.ExitCode,
	}
}
