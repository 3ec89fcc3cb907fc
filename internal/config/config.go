package config

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

//go:embed sample_config.toml
var sampleConfig string

// ErrInvalid marks configuration schema and value violations.
var ErrInvalid = errors.New("invalid configuration")

// Paths contains directory configuration.
type Paths struct {
	StateDir string `toml:"state_dir" yaml:"state_dir"`
	LogDir   string `toml:"log_dir" yaml:"log_dir"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format         string            `toml:"format" yaml:"format"`
	Level          string            `toml:"level" yaml:"level"`
	StageOverrides map[string]string `toml:"stage_overrides" yaml:"stage_overrides"`
}

// Qiime contains settings for invoking the qiime command-line interface.
type Qiime struct {
	Binary        string `toml:"binary" yaml:"binary"`
	ActionTimeout int    `toml:"action_timeout" yaml:"action_timeout"`
	TmpDir        string `toml:"tmp_dir" yaml:"tmp_dir"`
}

// Notifications contains configuration for ntfy push notifications.
type Notifications struct {
	NtfyTopic      string `toml:"ntfy_topic" yaml:"ntfy_topic"`
	RequestTimeout int    `toml:"request_timeout" yaml:"request_timeout"`
	RunStarted     bool   `toml:"run_started" yaml:"run_started"`
	RunCompleted   bool   `toml:"run_completed" yaml:"run_completed"`
	Errors         bool   `toml:"errors" yaml:"errors"`
}

// Data describes where an action finds and fetches its input files.
type Data struct {
	DataSource     string `toml:"data_source" yaml:"data_source"`
	DataPath       string `toml:"data_path" yaml:"data_path"`
	DataURL        string `toml:"data_url" yaml:"data_url"`
	MetadataURL    string `toml:"metadata_url" yaml:"metadata_url"`
	MetadataPath   string `toml:"metadata_path" yaml:"metadata_path"`
	ClassifierURL  string `toml:"classifier_url" yaml:"classifier_url"`
	ClassifierPath string `toml:"classifier_path" yaml:"classifier_path"`
	QzaSequences   string `toml:"qza_sequences" yaml:"qza_sequences"`
	Metadata       string `toml:"metadata" yaml:"metadata"`
	Classifier     string `toml:"classifier" yaml:"classifier"`
	OutputDir      string `toml:"output_dir" yaml:"output_dir"`
	BarcodeColumn  string `toml:"barcode_column" yaml:"barcode_column"`
	GroupingField  string `toml:"grouping_field" yaml:"grouping_field"`
	CollapseLevel  int    `toml:"collapse_level" yaml:"collapse_level"`
}

// SequencesPath returns the multiplexed sequences artifact under the data source.
func (d Data) SequencesPath() string { return joinSource(d.DataSource, d.QzaSequences) }

// SampleMetadataPath returns the sample metadata file under the data source.
func (d Data) SampleMetadataPath() string { return joinSource(d.DataSource, d.Metadata) }

// ClassifierArtifactPath returns the pre-trained classifier under the data source.
func (d Data) ClassifierArtifactPath() string { return joinSource(d.DataSource, d.Classifier) }

func joinSource(base, name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		return ""
	}
	if filepath.IsAbs(name) || base == "" {
		return name
	}
	return filepath.Join(base, name)
}

// Action toggles the phases a named action performs.
type Action struct {
	CheckInstallation bool `toml:"check_installation" yaml:"check_installation"`
	DownloadData      bool `toml:"download_data" yaml:"download_data"`
	CheckEnvironment  bool `toml:"check_environment" yaml:"check_environment"`
	RunBasicPipeline  bool `toml:"run_basic_pipeline" yaml:"run_basic_pipeline"`
	Data              Data `toml:"data" yaml:"data"`
}

// Config encapsulates all configuration values for ampliflow.
//
// Configuration sections:
//   - Paths: state (run database, locks) and log directories
//   - Logging: log format, level, and per-stage overrides
//   - Qiime: qiime binary and per-action timeout
//   - Notifications: ntfy push notification settings
//   - Actions: named actions with their data sources
//   - QiimeParams: parameters for every pipeline stage
type Config struct {
	Paths         Paths             `toml:"paths" yaml:"paths"`
	Logging       Logging           `toml:"logging" yaml:"logging"`
	Qiime         Qiime             `toml:"qiime" yaml:"qiime"`
	Notifications Notifications     `toml:"notifications" yaml:"notifications"`
	Actions       map[string]Action `toml:"actions" yaml:"actions"`
	QiimeParams   QiimeParams       `toml:"qiime_params" yaml:"qiime_params"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath("~/.config/ampliflow/config.toml")
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		data, err := os.ReadFile(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		if err := decode(resolvedPath, data, &cfg); err != nil {
			return nil, "", false, err
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

// Parse decodes and validates configuration content without touching the
// filesystem. The name selects the decoder by extension.
func Parse(name string, data []byte) (*Config, error) {
	cfg := Default()
	if err := decode(name, data, &cfg); err != nil {
		return nil, err
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func decode(name string, data []byte, cfg *Config) error {
	var doc map[string]any
	switch strings.ToLower(filepath.Ext(name)) {
	case ".yml", ".yaml":
		decoder := yaml.NewDecoder(bytes.NewReader(data))
		decoder.KnownFields(true)
		if err := decoder.Decode(cfg); err != nil {
			if errors.Is(err, io.EOF) {
				return nil
			}
			return fmt.Errorf("%w: parse config: %w", ErrInvalid, err)
		}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("%w: parse config: %w", ErrInvalid, err)
		}
	default:
		decoder := toml.NewDecoder(bytes.NewReader(data))
		decoder.DisallowUnknownFields()
		if err := decoder.Decode(cfg); err != nil {
			var strict *toml.StrictMissingError
			if errors.As(err, &strict) {
				return fmt.Errorf("%w: parse config: %s", ErrInvalid, strings.TrimSpace(strict.String()))
			}
			return fmt.Errorf("%w: parse config: %w", ErrInvalid, err)
		}
		if err := toml.Unmarshal(data, &doc); err != nil {
			return fmt.Errorf("%w: parse config: %w", ErrInvalid, err)
		}
	}
	if err := checkRequiredParams(doc); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	return nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := DefaultConfigPath()
	if err != nil {
		return "", false, err
	}
	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}

	for _, name := range []string{"ampliflow.toml", "ampliflow.yml", "ampliflow.yaml"} {
		projectPath, err := filepath.Abs(name)
		if err != nil {
			return "", false, err
		}
		if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
			return projectPath, true, nil
		}
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the state and log directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.StateDir, c.Paths.LogDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// Action returns the named action or an error listing the configured names.
func (c *Config) Action(name string) (Action, error) {
	name = strings.TrimSpace(name)
	if action, ok := c.Actions[name]; ok {
		return action, nil
	}
	names := c.ActionNames()
	if len(names) == 0 {
		return Action{}, fmt.Errorf("%w: action %q not found: no actions configured", ErrInvalid, name)
	}
	return Action{}, fmt.Errorf("%w: action %q not found (configured: %s)", ErrInvalid, name, strings.Join(names, ", "))
}

// ActionNames returns configured action names in sorted order.
func (c *Config) ActionNames() []string {
	names := make([]string, 0, len(c.Actions))
	for name := range c.Actions {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// QiimeBinary returns the qiime executable name.
func (c *Config) QiimeBinary() string {
	if bin := strings.TrimSpace(c.Qiime.Binary); bin != "" {
		return bin
	}
	return defaultQiimeBinary
}

// RunDatabasePath returns the SQLite run history location.
func (c *Config) RunDatabasePath() string {
	return filepath.Join(c.Paths.StateDir, "runs.db")
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o644); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}
