package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

const (
	dirName   = ".crashlens"
	envPrefix = "CRASHLENS"
)

// Global configuration structure.
type Global struct {
	ProjectsDir string `mapstructure:"projects_dir" yaml:"projects_dir"`

	// Source columns
	DateColumn    string `mapstructure:"date_column" yaml:"date_column"`
	TimeColumn    string `mapstructure:"time_column" yaml:"time_column"`
	BoroughColumn string `mapstructure:"borough_column" yaml:"borough_column"`
	MaxRows       int    `mapstructure:"max_rows" yaml:"max_rows"`

	// Model
	TopN              int      `mapstructure:"top_n" yaml:"top_n"`
	ConfidenceLevel   float64  `mapstructure:"confidence_level" yaml:"confidence_level"`
	SignificanceLevel float64  `mapstructure:"significance_level" yaml:"significance_level"`
	DenseGrid         bool     `mapstructure:"dense_grid" yaml:"dense_grid"`
	ModelTerms        []string `mapstructure:"model_terms" yaml:"model_terms"`

	// Logging
	LogLevel  string `mapstructure:"log_level" yaml:"log_level"`
	LogFormat string `mapstructure:"log_format" yaml:"log_format"`
}

// Defaults returns the built-in configuration. ProjectsDir is left empty and
// resolved against the home directory by Load.
func Defaults() *Global {
	return &Global{
		DateColumn:        "CRASH DATE",
		TimeColumn:        "CRASH TIME",
		BoroughColumn:     "BOROUGH",
		TopN:              10,
		ConfidenceLevel:   0.95,
		SignificanceLevel: 0.05,
		ModelTerms:        []string{},
		LogLevel:          "warn",
		LogFormat:         "console",
	}
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("projects_dir", d.ProjectsDir)
	v.SetDefault("date_column", d.DateColumn)
	v.SetDefault("time_column", d.TimeColumn)
	v.SetDefault("borough_column", d.BoroughColumn)
	v.SetDefault("max_rows", d.MaxRows)
	v.SetDefault("top_n", d.TopN)
	v.SetDefault("confidence_level", d.ConfidenceLevel)
	v.SetDefault("significance_level", d.SignificanceLevel)
	v.SetDefault("dense_grid", d.DenseGrid)
	v.SetDefault("model_terms", d.ModelTerms)
	v.SetDefault("log_level", d.LogLevel)
	v.SetDefault("log_format", d.LogFormat)
}

// Dir returns ~/.crashlens.
func Dir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve home dir: %w", err)
	}
	return filepath.Join(home, dirName), nil
}

// Save writes the given configuration to the cfgFile path. If cfgFile is empty,
// it writes to ~/.crashlens/config.yaml, creating the directory if necessary.
func Save(c *Global, cfgFile string) error {
	path := cfgFile
	if path == "" {
		dir, err := Dir()
		if err != nil {
			return err
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("mkdir config dir: %w", err)
		}
		path = filepath.Join(dir, "config.yaml")
	}
	b, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal yaml: %w", err)
	}
	if err := os.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("write config: %w", err)
	}
	return nil
}

// Load loads configuration from file, env, and defaults.
// Precedence: env > config file > defaults. CLI flags are applied by callers.
func Load(cfgFile string) (*Global, error) {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.AutomaticEnv()
	setDefaults(v)

	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", cfgFile, err)
		}
	} else {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		v.AddConfigPath(dir)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		// optional read
		_ = v.ReadInConfig()
	}

	var c Global
	if err := v.Unmarshal(&c); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if c.ProjectsDir == "" {
		dir, err := Dir()
		if err != nil {
			return nil, err
		}
		c.ProjectsDir = filepath.Join(dir, "projects")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return &c, nil
}

// Validate rejects values the analysis cannot use.
func (c *Global) Validate() error {
	if c.TopN < 0 {
		return fmt.Errorf("top_n must be >= 0, got %d", c.TopN)
	}
	if c.MaxRows < 0 {
		return fmt.Errorf("max_rows must be >= 0, got %d", c.MaxRows)
	}
	if c.ConfidenceLevel <= 0 || c.ConfidenceLevel >= 1 {
		return fmt.Errorf("confidence_level must be in (0,1), got %g", c.ConfidenceLevel)
	}
	if c.SignificanceLevel <= 0 || c.SignificanceLevel >= 1 {
		return fmt.Errorf("significance_level must be in (0,1), got %g", c.SignificanceLevel)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return fmt.Errorf("log_format must be console or json, got %q", c.LogFormat)
	}
	return nil
}
