// Package config handles loading and persisting user configuration
// for mimir. Configuration is stored in ~/.mimir/config.json and can be
// overridden by MIMIR_* environment variables and command-line flags.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"math"
	"path/filepath"
	"slices"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	dirName  = ".mimir"
	fileName = "config.json"

	DefaultModel           = "tinyllama"
	DefaultHost            = "http://localhost:11434"
	DefaultMaxContextBytes = 64 << 10

	envPrefix = "MIMIR"

	MinTemperature = 0.0
	MaxTemperature = 1.0
)

// Keys understood by the config file, the environment (MIMIR_<KEY>) and
// the flags bound in LoadWithFlags.
const (
	KeyModel           = "model"
	KeyHost            = "host"
	KeyTemperature     = "temperature"
	KeyMaxContextBytes = "max_context_bytes"
	KeyTrailingLine    = "trailing_line"
	KeySpinner         = "spinner"
	KeyProfile         = "profile"
	KeyProfiles        = "profiles"
	KeyFavorites       = "favorite_models"
)

// flagNames maps config keys to the flag that overrides them.
var flagNames = map[string]string{
	KeyModel:        "model",
	KeyHost:         "host",
	KeyTemperature:  "temperature",
	KeyTrailingLine: "trailing-line",
	KeyProfile:      "profile",
}

// Profile is a named model and temperature pair.
type Profile struct {
	Model       string   `json:"model" mapstructure:"model"`
	Temperature *float64 `json:"temperature,omitempty" mapstructure:"temperature"`
}

// DefaultProfiles returns the built-in profiles. Profiles of the same name in
// the config file replace them.
func DefaultProfiles() map[string]Profile {
	temp := func(t float64) *float64 { return &t }
	return map[string]Profile{
		"lightweight": {Model: "tinyllama:latest", Temperature: temp(0.1)},
		"balanced":    {Model: "llama3.2:1b", Temperature: temp(0.2)},
		"powerful":    {Model: "llama3.2:3b", Temperature: temp(0.1)},
	}
}

// DefaultFavorites is the favorites list used until the user saves one.
func DefaultFavorites() []string {
	return []string{"tinyllama:latest", "llama3.2:1b", "llama3.2:3b", "codellama:latest", "mistral:latest"}
}

// Config holds the effective configuration for one run.
type Config struct {
	Model string
	Host  string
	// Temperature is nil unless configured, leaving the model default.
	Temperature     *float64
	MaxContextBytes int
	TrailingLine    bool
	Spinner         bool

	// Profile is the active profile name, empty when none is selected.
	Profile   string
	Profiles  map[string]Profile
	Favorites []string
}

// fileConfig is the on-disk representation.
type fileConfig struct {
	Model           string   `json:"model,omitempty"`
	Host            string   `json:"host,omitempty"`
	Temperature     *float64 `json:"temperature,omitempty"`
	MaxContextBytes int      `json:"max_context_bytes,omitempty"`
	TrailingLine    bool     `json:"trailing_line,omitempty"`
	Spinner         *bool    `json:"spinner,omitempty"`

	Profile        string             `json:"profile,omitempty"`
	Profiles       map[string]Profile `json:"profiles,omitempty"`
	FavoriteModels []string           `json:"favorite_models,omitempty"`
}

// Dir returns the configuration directory path.
func Dir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, dirName)
}

// Path returns the configuration file path.
func Path() string {
	return filepath.Join(Dir(), fileName)
}

// Load reads the configuration from disk and environment variables.
func Load() (*Config, error) {
	return LoadWithFlags(nil)
}

// LoadWithFlags is Load with flags from fs taking precedence over
// everything else. Only flags the user actually set override lower layers.
//
// A selected profile replaces the model and temperature from the file and
// the environment; an explicit --model or --temperature still wins over it.
func LoadWithFlags(fs *pflag.FlagSet) (*Config, error) {
	v, err := newViper()
	if err != nil {
		return nil, err
	}

	if fs != nil {
		for key, name := range flagNames {
			if f := fs.Lookup(name); f != nil {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("binding flag --%s: %w", name, err)
				}
			}
		}
	}

	cfg := &Config{
		Model:           strings.TrimSpace(v.GetString(KeyModel)),
		Host:            NormalizeHost(v.GetString(KeyHost)),
		MaxContextBytes: v.GetInt(KeyMaxContextBytes),
		TrailingLine:    v.GetBool(KeyTrailingLine),
		Spinner:         v.GetBool(KeySpinner),
		Profile:         strings.TrimSpace(v.GetString(KeyProfile)),
		Profiles:        DefaultProfiles(),
		Favorites:       v.GetStringSlice(KeyFavorites),
	}
	if v.IsSet(KeyTemperature) {
		t := v.GetFloat64(KeyTemperature)
		cfg.Temperature = &t
	}

	var profiles map[string]Profile
	if err := v.UnmarshalKey(KeyProfiles, &profiles); err != nil {
		return nil, fmt.Errorf("reading profiles: %w", err)
	}
	for name, p := range profiles {
		cfg.Profiles[strings.ToLower(name)] = p
	}

	if cfg.Profile != "" {
		p, ok := cfg.Profiles[strings.ToLower(cfg.Profile)]
		if !ok {
			return nil, fmt.Errorf("unknown profile %q (available: %s)", cfg.Profile, strings.Join(ProfileNames(cfg.Profiles), ", "))
		}
		if !flagChanged(fs, flagNames[KeyModel]) && p.Model != "" {
			cfg.Model = p.Model
		}
		if !flagChanged(fs, flagNames[KeyTemperature]) && p.Temperature != nil {
			t := *p.Temperature
			cfg.Temperature = &t
		}
	}

	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	if cfg.Host == "" {
		cfg.Host = DefaultHost
	}
	if cfg.Temperature != nil {
		if err := ValidateTemperature(*cfg.Temperature); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}

func flagChanged(fs *pflag.FlagSet, name string) bool {
	if fs == nil {
		return false
	}
	f := fs.Lookup(name)
	return f != nil && f.Changed
}

// ValidateTemperature reports an error unless t is within
// [MinTemperature, MaxTemperature].
func ValidateTemperature(t float64) error {
	if math.IsNaN(t) || t < MinTemperature || t > MaxTemperature {
		return fmt.Errorf("temperature must be between %.1f and %.1f, got %g", MinTemperature, MaxTemperature, t)
	}
	return nil
}

// ProfileNames returns the profile names in sorted order.
func ProfileNames(profiles map[string]Profile) []string {
	names := make([]string, 0, len(profiles))
	for name := range profiles {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// newViper layers defaults, the config file and the environment.
// A .env file in the working directory is loaded into the environment first;
// it never overrides variables that are already set.
func newViper() (*viper.Viper, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetDefault(KeyModel, DefaultModel)
	v.SetDefault(KeyHost, DefaultHost)
	v.SetDefault(KeyMaxContextBytes, DefaultMaxContextBytes)
	v.SetDefault(KeyTrailingLine, false)
	v.SetDefault(KeySpinner, true)
	v.SetDefault(KeyFavorites, DefaultFavorites())

	v.SetConfigFile(Path())
	v.SetConfigType("json")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("reading %s: %w", Path(), err)
		}
	}

	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	// Ollama's own variable is honoured after ours.
	if err := v.BindEnv(KeyHost, envPrefix+"_HOST", "OLLAMA_HOST"); err != nil {
		return nil, err
	}
	if err := v.BindEnv(KeyTemperature); err != nil {
		return nil, err
	}

	return v, nil
}

// NormalizeHost turns OLLAMA_HOST style values ("0.0.0.0:11434",
// "localhost") into a base URL without a trailing slash.
func NormalizeHost(host string) string {
	host = strings.TrimSpace(host)
	if host == "" {
		return ""
	}
	if !strings.Contains(host, "://") {
		host = "http://" + host
	}
	return strings.TrimRight(host, "/")
}

func readFile() *fileConfig {
	cfg := &fileConfig{}
	data, err := os.ReadFile(Path())
	if err == nil {
		_ = json.Unmarshal(data, cfg)
	}
	return cfg
}

// save persists the config to disk.
func save(cfg *fileConfig) error {
	if err := os.MkdirAll(Dir(), 0o700); err != nil {
		return err
	}

	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(Path(), data, 0o600)
}

// SetModel saves the model preference to the config file.
func SetModel(model string) error {
	model = strings.TrimSpace(model)
	if model == "" {
		return errors.New("model name must not be empty")
	}
	cfg := readFile()
	cfg.Model = model
	return save(cfg)
}

// SetHost saves the Ollama base URL to the config file.
func SetHost(host string) error {
	host = NormalizeHost(host)
	if host == "" {
		return errors.New("host must not be empty")
	}
	cfg := readFile()
	cfg.Host = host
	return save(cfg)
}

// SetTemperature saves the sampling temperature to the config file.
func SetTemperature(t float64) error {
	if err := ValidateTemperature(t); err != nil {
		return err
	}
	cfg := readFile()
	cfg.Temperature = &t
	return save(cfg)
}

// UseProfile saves the model and temperature of the named profile as the
// defaults and returns the profile.
func UseProfile(name string) (Profile, error) {
	loaded, err := Load()
	if err != nil {
		return Profile{}, err
	}
	name = strings.ToLower(strings.TrimSpace(name))
	p, ok := loaded.Profiles[name]
	if !ok {
		return Profile{}, fmt.Errorf("unknown profile %q (available: %s)", name, strings.Join(ProfileNames(loaded.Profiles), ", "))
	}
	if p.Temperature != nil {
		if err := ValidateTemperature(*p.Temperature); err != nil {
			return Profile{}, fmt.Errorf("profile %s: %w", name, err)
		}
	}

	cfg := readFile()
	if p.Model != "" {
		cfg.Model = p.Model
	}
	cfg.Temperature = p.Temperature
	return p, save(cfg)
}

// AddFavorite appends model to the saved favorites. added is false when the
// model was already a favorite.
func AddFavorite(model string) (added bool, err error) {
	model = strings.TrimSpace(model)
	if model == "" {
		return false, errors.New("model name must not be empty")
	}
	cfg := readFile()
	if cfg.FavoriteModels == nil {
		cfg.FavoriteModels = DefaultFavorites()
	}
	if slices.Contains(cfg.FavoriteModels, model) {
		return false, nil
	}
	cfg.FavoriteModels = append(cfg.FavoriteModels, model)
	return true, save(cfg)
}
