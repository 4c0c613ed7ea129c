package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Research Research `yaml:"research"`
	LLM      LLM      `yaml:"llm"`
	Search   Search   `yaml:"search"`
	Output   Output   `yaml:"output"`
	Server   Server   `yaml:"server"`
	Logging  Logging  `yaml:"logging"`
}

// Research holds the knobs for the research loop.
type Research struct {
	Budget       int     `yaml:"budget"`        // max cycles per run
	MaxQueries   int     `yaml:"max_queries"`   // queries per cycle
	MaxSources   int     `yaml:"max_sources"`   // retained source cap
	MaxTokens    int     `yaml:"max_tokens"`    // report length cap
	QualityFloor float64 `yaml:"quality_floor"` // 0 disables the full-pool early stop
	FetchContent bool    `yaml:"fetch_content"` // fetch full pages behind thin snippets
}

type LLM struct {
	Provider    string `yaml:"provider"`
	Model       string `yaml:"model"`
	OllamaURL   string `yaml:"ollama_url"`
	OpenAIModel string `yaml:"openai_model"`
	APIKeyEnv   string `yaml:"api_key_env"`
}

type Search struct {
	Provider   string `yaml:"provider"`
	APIKeyEnv  string `yaml:"api_key_env"`
	Depth      string `yaml:"depth"`
	MaxResults int    `yaml:"max_results"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port int `yaml:"port"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for deepsearch.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "deepsearch")
}

// DataDir returns the XDG data directory for deepsearch.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "deepsearch")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/deepsearch/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'deepsearch init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Research: Research{
			Budget:       2,
			MaxQueries:   2,
			MaxSources:   10,
			MaxTokens:    8192,
			QualityFloor: 0,
			FetchContent: false,
		},
		LLM: LLM{
			Provider:    "openai",
			Model:       "qwen2.5:7b",
			OllamaURL:   "http://localhost:11434",
			OpenAIModel: "gpt-4o",
			APIKeyEnv:   "OPENAI_API_KEY",
		},
		Search: Search{
			Provider:   "tavily",
			APIKeyEnv:  "TAVILY_API_KEY",
			Depth:      "advanced",
			MaxResults: 5,
		},
		Server:  Server{Port: 8000},
		Logging: Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
