// Package config provides configuration loading for ctlesion. Values come
// from a YAML file layered over defaults; binaries then apply flag overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/carbocation/ctlesion"
	"gopkg.in/yaml.v3"
)

const (
	ProviderNone   = "none"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
)

// Config represents the application configuration loaded from YAML
type Config struct {
	Server struct {
		Port int `yaml:"port"`

		// SessionIdle is how long an unused browser session is kept.
		SessionIdle time.Duration `yaml:"sessionIdle"`
		Debug       bool          `yaml:"debug"`
	} `yaml:"server"`

	Data struct {
		// DatasetDir holds ct_scans/ and the metadata CSVs. May be gs://.
		DatasetDir string `yaml:"datasetDir"`

		// DefaultImage is used when the dataset has no scans.
		DefaultImage string `yaml:"defaultImage"`

		Demographics string `yaml:"demographics"`
		Diagnosis    string `yaml:"diagnosis"`
	} `yaml:"data"`

	Processing struct {
		NumCores int `yaml:"numCores"`

		// SmoothingFootprint is the (depth, height, width) median window.
		SmoothingFootprint [3]int `yaml:"smoothingFootprint"`

		WindowLevel float64 `yaml:"windowLevel"`
		WindowWidth float64 `yaml:"windowWidth"`

		HistogramBins int `yaml:"histogramBins"`
	} `yaml:"processing"`

	Mesh struct {
		OverviewLevel float64 `yaml:"overviewLevel"`
		OverviewStep  int     `yaml:"overviewStep"`
		LesionStep    int     `yaml:"lesionStep"`

		// LesionSmoothing is the median window applied to the mask before
		// surface extraction.
		LesionSmoothing [3]int `yaml:"lesionSmoothing"`
	} `yaml:"mesh"`

	Chat struct {
		Provider string `yaml:"provider"`

		// Model empty means the provider's default model.
		Model       string        `yaml:"model"`
		BaseURL     string        `yaml:"baseURL"`
		MaxTokens   int           `yaml:"maxTokens"`
		Temperature float64       `yaml:"temperature"`
		Timeout     time.Duration `yaml:"timeout"`
		HistoryTurn int           `yaml:"historyTurns"`

		// APIKeyEnv names the environment variable holding the key; empty
		// means OPENAI_API_KEY or GEMINI_API_KEY by provider. Keys are never
		// read from the YAML file.
		APIKeyEnv string `yaml:"apiKeyEnv"`
	} `yaml:"chat"`

	Findings struct {
		// Path of the SQLite database; empty disables the findings log.
		Path string `yaml:"path"`
	} `yaml:"findings"`
}

// Default returns a configuration with default values
func Default() *Config {
	cfg := &Config{}

	cfg.Server.Port = 8050
	cfg.Server.SessionIdle = 2 * time.Hour

	cfg.Data.DatasetDir = "../dash-brain-ct-data"
	cfg.Data.DefaultImage = "assets/sample_brain_ct.nii"
	cfg.Data.Demographics = "Patient_demographics.csv"
	cfg.Data.Diagnosis = "hemorrhage_diagnosis_raw_ct.csv"

	cfg.Processing.NumCores = runtime.NumCPU()
	cfg.Processing.SmoothingFootprint = [3]int{1, 3, 3}
	cfg.Processing.WindowLevel = 40
	cfg.Processing.WindowWidth = 80
	cfg.Processing.HistogramBins = 256

	cfg.Mesh.OverviewLevel = 200
	cfg.Mesh.OverviewStep = 5
	cfg.Mesh.LesionStep = 3
	cfg.Mesh.LesionSmoothing = [3]int{1, 7, 7}

	cfg.Chat.Provider = ProviderOpenAI
	cfg.Chat.MaxTokens = 1000
	cfg.Chat.Temperature = 0.7
	cfg.Chat.Timeout = 60 * time.Second
	cfg.Chat.HistoryTurn = 5

	cfg.Findings.Path = "findings.sqlite"

	return cfg
}

// Load reads configuration from a YAML file. If the file doesn't exist, it
// returns the default configuration.
func Load(configPath string) (*Config, error) {
	cfg := Default()

	if configPath == "" {
		return cfg, nil
	}
	configPath = ctlesion.ExpandHome(configPath)

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("error parsing config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", configPath, err)
	}

	return cfg, nil
}

// Save writes the configuration to a YAML file
func Save(cfg *Config, configPath string) error {
	configPath = ctlesion.ExpandHome(configPath)

	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("error creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("error marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("error writing config file: %w", err)
	}

	return nil
}

// Validate checks values that would otherwise fail deep inside processing.
func (c *Config) Validate() error {
	for i, v := range c.Processing.SmoothingFootprint {
		if v < 1 || v%2 == 0 {
			return fmt.Errorf("smoothingFootprint[%d]=%d must be a positive odd number", i, v)
		}
	}
	for i, v := range c.Mesh.LesionSmoothing {
		if v < 1 || v%2 == 0 {
			return fmt.Errorf("lesionSmoothing[%d]=%d must be a positive odd number", i, v)
		}
	}
	if c.Mesh.OverviewStep < 1 || c.Mesh.LesionStep < 1 {
		return fmt.Errorf("mesh steps must be at least 1")
	}
	if c.Processing.HistogramBins < 2 {
		return fmt.Errorf("histogramBins must be at least 2")
	}
	if c.Processing.WindowWidth <= 0 {
		return fmt.Errorf("windowWidth must be positive")
	}

	switch c.Chat.Provider {
	case ProviderNone, ProviderOpenAI, ProviderGemini:
	default:
		return fmt.Errorf("unknown chat provider %q", c.Chat.Provider)
	}

	return nil
}

// APIKey returns the chat backend key from the environment.
func (c *Config) APIKey() string {
	env := c.Chat.APIKeyEnv
	if env == "" {
		switch c.Chat.Provider {
		case ProviderOpenAI:
			env = "OPENAI_API_KEY"
		case ProviderGemini:
			env = "GEMINI_API_KEY"
		default:
			return ""
		}
	}

	return os.Getenv(env)
}
