// Package config loads application configuration from JSON files and
// environment variables.
package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"
)

const (
	ConfigFileName = "aiko.json"
	ConfigDirName  = ".aiko"
)

// Memory holds retrieval limits consumed by the memory coordinator.
type Memory struct {
	TopKCandidates  int      `json:"topKCandidates"`
	MaxItems        int      `json:"maxItems"`
	MinSimilarity   float64  `json:"minSimilarity"`
	HalfLifeDays    float64  `json:"halfLifeDays"`
	ExcludeRounds   int      `json:"excludeRounds"`
	HistoryLimit    int      `json:"historyLimit"`
	IncludeAIOutput bool     `json:"includeAiOutput"`
	TagPatterns     []string `json:"tagPatterns,omitempty"` // doublestar globs; empty = allow all
	FastPath        bool     `json:"fastPath"`
	WarmupTurns     int      `json:"warmupTurns"` // suppress degradation warnings this long
}

// Notify configures crisis notification delivery.
type Notify struct {
	Command      string `json:"command,omitempty"` // shell template, e.g. "notify-send aiko '{{.Keyword}}'"
	SlackWebhook string `json:"slackWebhook,omitempty"`
}

// Config holds the application configuration.
type Config struct {
	Provider            string `json:"provider"`
	Model               string `json:"model"`
	VisionModel         string `json:"visionModel"`
	APIKey              string `json:"apiKey,omitempty"`
	BaseURL             string `json:"baseURL,omitempty"`
	PersonaPath         string `json:"personaPath,omitempty"`
	VisionDetail        string `json:"visionDetail,omitempty"` // "auto", "low", "high"
	HandsFree           bool   `json:"handsFree"`              // auto-stop ASR on silence
	SequentialRetrieval bool   `json:"sequentialRetrieval"`    // retrieve then history instead of concurrently
	MaxVideoFrames      int    `json:"maxVideoFrames"`

	RedisAddr     string `json:"redisAddr,omitempty"`
	GraphURI      string `json:"graphURI,omitempty"`
	GraphUser     string `json:"graphUser,omitempty"`
	GraphPassword string `json:"graphPassword,omitempty"`

	Memory Memory `json:"memory"`
	Notify Notify `json:"notify"`
}

// Default returns the default configuration.
func Default() *Config {
	return &Config{
		Provider:       "openai",
		Model:          "gpt-4o-mini",
		VisionModel:    "gpt-4o",
		VisionDetail:   "auto",
		MaxVideoFrames: 5,
		Memory: Memory{
			TopKCandidates:  20,
			MaxItems:        5,
			MinSimilarity:   0.55,
			HalfLifeDays:    30,
			ExcludeRounds:   3,
			HistoryLimit:    20,
			IncludeAIOutput: true,
			FastPath:        true,
			WarmupTurns:     3,
		},
	}
}

// Load loads configuration: defaults, then global file, then project file,
// then environment overrides.
func Load(workDir string) (*Config, error) {
	cfg := Default()

	if data, err := os.ReadFile(GlobalConfigPath()); err == nil {
		json.Unmarshal(data, cfg)
	}

	if projectPath := filepath.Join(workDir, ConfigFileName); projectPath != "" {
		if data, err := os.ReadFile(projectPath); err == nil {
			json.Unmarshal(data, cfg)
		}
	}

	applyEnv(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" && cfg.APIKey == "" {
		cfg.APIKey = key
	}
	if v := os.Getenv("AIKO_API_KEY"); v != "" {
		cfg.APIKey = v
	}
	if v := os.Getenv("AIKO_BASE_URL"); v != "" {
		cfg.BaseURL = v
	}
	if v := os.Getenv("AIKO_MODEL"); v != "" {
		cfg.Model = v
	}
	if v := os.Getenv("AIKO_VISION_MODEL"); v != "" {
		cfg.VisionModel = v
	}
	if v := os.Getenv("AIKO_PERSONA"); v != "" {
		cfg.PersonaPath = v
	}
	if v := os.Getenv("AIKO_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("AIKO_GRAPH_URI"); v != "" {
		cfg.GraphURI = v
	}
	if v := os.Getenv("AIKO_SLACK_WEBHOOK"); v != "" {
		cfg.Notify.SlackWebhook = v
	}
	if v := os.Getenv("AIKO_HISTORY_LIMIT"); v != "" {
		if n, err := strconv.Atoi(v); err == nil && n > 0 {
			cfg.Memory.HistoryLimit = n
		}
	}
	if v := os.Getenv("AIKO_SEQUENTIAL_RETRIEVAL"); v != "" {
		cfg.SequentialRetrieval = v == "1" || v == "true"
	}
	if v := os.Getenv("AIKO_FAST_PATH"); v != "" {
		cfg.Memory.FastPath = v == "1" || v == "true"
	}
}

// Save writes the configuration to the global config file.
func (c *Config) Save() error {
	path := GlobalConfigPath()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// GlobalConfigPath returns the path to the global config file.
func GlobalConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ConfigDirName, ConfigFileName)
}

// DataDir returns the path to the data directory.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "aiko")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ConfigDirName, "data")
}
