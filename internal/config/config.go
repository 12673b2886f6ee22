// Package config loads server configuration from defaults, an optional YAML
// file, and environment variable overrides, in that order.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// Environment variables recognised by ApplyEnv.
const (
	EnvConfigPath    = "DIAGRAM_MCP_CONFIG"
	EnvLogLevel      = "DIAGRAM_MCP_LOG_LEVEL"
	EnvGenerationURL = "DIAGRAM_MCP_GENERATION_URL"
	EnvGenerationKey = "DIAGRAM_MCP_GENERATION_KEY"
	EnvVisionEnabled = "DIAGRAM_MCP_VISION_ENABLED"
	EnvVisionURL     = "DIAGRAM_MCP_OLLAMA_URL"
	EnvVisionModel   = "DIAGRAM_MCP_VISION_MODEL"
	EnvWorkers       = "DIAGRAM_MCP_WORKERS"
	EnvOCREnabled    = "DIAGRAM_MCP_OCR_ENABLED"
)

// Config holds the application configuration
type Config struct {
	LogLevel   string           `yaml:"log_level"`
	Generation GenerationConfig `yaml:"generation"`
	Vision     VisionConfig     `yaml:"vision"`
	Annotation AnnotationConfig `yaml:"annotation"`
	Pipeline   PipelineConfig   `yaml:"pipeline"`
	OCR        OCRConfig        `yaml:"ocr"`
}

// GenerationConfig configures the sketch-to-diagram rendering service.
type GenerationConfig struct {
	Endpoint       string `yaml:"endpoint"`
	APIKey         string `yaml:"api_key"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	OutputFormat   string `yaml:"output_format"`
}

// VisionConfig configures the segmentation model served through Ollama.
type VisionConfig struct {
	Enabled        bool   `yaml:"enabled"`
	URL            string `yaml:"url"`
	Model          string `yaml:"model"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	MaxDimension   int    `yaml:"max_dimension"`
}

// AnnotationConfig holds the visual style of reference numerals.
type AnnotationConfig struct {
	FontFamily  string `yaml:"font_family"`
	FontSize    int    `yaml:"font_size"`
	LabelFill   string `yaml:"label_fill"`
	LabelStroke string `yaml:"label_stroke"`
	LineColor   string `yaml:"line_color"`
}

// PipelineConfig holds pipeline tuning parameters.
type PipelineConfig struct {
	Workers            int `yaml:"workers"`
	VectorizeThreshold int `yaml:"vectorize_threshold"`
	MinComponentArea   int `yaml:"min_component_area"`
	MaxComponents      int `yaml:"max_components"`
	SketchMaxDimension int `yaml:"sketch_max_dimension"`
}

// OCRConfig controls text obstacle detection for re-annotation.
type OCRConfig struct {
	Enabled       bool    `yaml:"enabled"`
	Language      string  `yaml:"language"`
	MinConfidence float64 `yaml:"min_confidence"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		LogLevel: "info",
		Generation: GenerationConfig{
			Endpoint:       "https://api.stability.ai/v2beta/stable-image/control/sketch",
			TimeoutSeconds: 60,
			OutputFormat:   "png",
		},
		Vision: VisionConfig{
			Enabled:        false,
			URL:            "http://localhost:11434",
			Model:          "qwen2.5vl:7b",
			TimeoutSeconds: 120,
			MaxDimension:   1024,
		},
		Annotation: AnnotationConfig{
			FontFamily:  "Arial, sans-serif",
			FontSize:    14,
			LabelFill:   "#ffffff",
			LabelStroke: "#000000",
			LineColor:   "#000000",
		},
		Pipeline: PipelineConfig{
			Workers:            4,
			VectorizeThreshold: 128,
			MinComponentArea:   100,
			MaxComponents:      50,
			SketchMaxDimension: 1024,
		},
		OCR: OCRConfig{
			Enabled:       false,
			Language:      "eng",
			MinConfidence: 0.5,
		},
	}
}

// LoadFromFile loads configuration from a YAML file on top of Default.
// Keys missing from the file keep their default values.
func LoadFromFile(filename string) (*Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	return cfg, nil
}

// Load builds the effective configuration: defaults, then the YAML file named
// by DIAGRAM_MCP_CONFIG (if set), then environment overrides.
func Load() (*Config, error) {
	cfg := Default()
	if path := os.Getenv(EnvConfigPath); path != "" {
		loaded, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables. lookup has the
// signature of os.LookupEnv so tests can supply their own environment.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	if v, ok := lookup(EnvLogLevel); ok && v != "" {
		c.LogLevel = v
	}
	if v, ok := lookup(EnvGenerationURL); ok && v != "" {
		c.Generation.Endpoint = v
	}
	if v, ok := lookup(EnvGenerationKey); ok {
		c.Generation.APIKey = v
	}
	if v, ok := lookup(EnvVisionURL); ok && v != "" {
		c.Vision.URL = v
	}
	if v, ok := lookup(EnvVisionModel); ok && v != "" {
		c.Vision.Model = v
	}
	if v, ok := lookup(EnvVisionEnabled); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvVisionEnabled, err)
		}
		c.Vision.Enabled = b
	}
	if v, ok := lookup(EnvOCREnabled); ok && v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %w", EnvOCREnabled, err)
		}
		c.OCR.Enabled = b
	}
	if v, ok := lookup(EnvWorkers); ok && v != "" {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("%s: %w", EnvWorkers, err)
		}
		c.Pipeline.Workers = n
	}
	return nil
}

// SaveToFile saves configuration to a YAML file
func (c *Config) SaveToFile(filename string) error {
	dir := filepath.Dir(filename)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(filename, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Generation.TimeoutSeconds < 1 {
		return fmt.Errorf("generation.timeout_seconds must be positive")
	}
	if c.Vision.Enabled && c.Vision.Model == "" {
		return fmt.Errorf("vision.model is required when vision is enabled")
	}
	if c.Vision.TimeoutSeconds < 1 {
		return fmt.Errorf("vision.timeout_seconds must be positive")
	}
	if c.Annotation.FontSize < 1 {
		return fmt.Errorf("annotation.font_size must be positive")
	}
	if c.Pipeline.Workers < 1 {
		return fmt.Errorf("pipeline.workers must be at least 1")
	}
	if c.Pipeline.VectorizeThreshold < 0 || c.Pipeline.VectorizeThreshold > 255 {
		return fmt.Errorf("pipeline.vectorize_threshold must be between 0 and 255")
	}
	if c.Pipeline.MinComponentArea < 0 {
		return fmt.Errorf("pipeline.min_component_area must not be negative")
	}
	if c.Pipeline.MaxComponents < 1 {
		return fmt.Errorf("pipeline.max_components must be at least 1")
	}
	if c.Pipeline.SketchMaxDimension < 64 {
		return fmt.Errorf("pipeline.sketch_max_dimension must be at least 64")
	}
	if c.OCR.MinConfidence < 0 || c.OCR.MinConfidence > 1 {
		return fmt.Errorf("ocr.min_confidence must be between 0 and 1")
	}
	return nil
}
