// Package config holds the application configuration for the annotator CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// Config holds the application configuration.
type Config struct {
	Detector DetectorConfig `json:"detector"`
	Ingest   IngestConfig   `json:"ingest"`
	Editor   EditorConfig   `json:"editor"`
	Export   ExportConfig   `json:"export"`
}

// DetectorConfig holds configuration for the vision detection backend.
type DetectorConfig struct {
	Backend       string `json:"backend"`
	ServerURL     string `json:"server_url"`
	Model         string `json:"model"`
	FallbackModel string `json:"fallback_model"`
	MaxRetries    int    `json:"max_retries"`
	BaseDelayMS   int    `json:"base_delay_ms"`
	SendMaxDim    int    `json:"send_max_dim"`
	SendQuality   int    `json:"send_quality"`
}

// IngestConfig holds configuration for detection ingestion.
type IngestConfig struct {
	MinConfidence      float64 `json:"min_confidence"`
	IncludeDescription bool    `json:"include_description"`
}

// EditorConfig holds configuration for interactive editing.
type EditorConfig struct {
	MinBoxPx float64 `json:"min_box_px"`
}

// ExportConfig holds configuration for dataset export.
type ExportConfig struct {
	TrainPath string `json:"train_path"`
	ValPath   string `json:"val_path"`
}

// Default returns a configuration with default values.
func Default() *Config {
	return &Config{
		Detector: DetectorConfig{
			Backend:       "ollama",
			ServerURL:     "http://localhost:11434",
			Model:         "qwen2.5vl:7b",
			FallbackModel: "qwen2.5vl:7b",
			MaxRetries:    3,
			BaseDelayMS:   500,
			SendMaxDim:    1536,
			SendQuality:   85,
		},
		Ingest: IngestConfig{
			MinConfidence:      0.3,
			IncludeDescription: false,
		},
		Editor: EditorConfig{
			MinBoxPx: 5,
		},
		Export: ExportConfig{
			TrainPath: "./train/images",
			ValPath:   "./val/images",
		},
	}
}

// LoadFromFile loads configuration from a JSON file.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return &config, nil
}

// SaveToFile saves configuration to a JSON file.
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid.
func (c *Config) Validate() error {
	if c.Detector.Backend != "ollama" && c.Detector.Backend != "llamacpp" {
		return fmt.Errorf("detector.backend must be ollama or llamacpp")
	}

	if c.Detector.Model == "" {
		return fmt.Errorf("detector.model cannot be empty")
	}

	if c.Detector.MaxRetries < 1 {
		return fmt.Errorf("detector.max_retries must be at least 1")
	}

	if c.Ingest.MinConfidence < 0 || c.Ingest.MinConfidence > 1 {
		return fmt.Errorf("ingest.min_confidence must be between 0 and 1")
	}

	if c.Editor.MinBoxPx <= 0 {
		return fmt.Errorf("editor.min_box_px must be positive")
	}

	return nil
}

// GetConfigPath returns the default configuration file path.
func GetConfigPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "./config.json"
	}
	return filepath.Join(home, ".config", "yolo-annotator", "config.json")
}
