package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Normalization is the affine transform applied to 8-bit pixel values:
// normalized = value/Scale + Offset.
type Normalization struct {
	Scale  float32 `yaml:"scale"`
	Offset float32 `yaml:"offset"`
}

// Keras-style [-1, 1] scaling used by the shipped eye model.
const (
	DefaultNormScale  float32 = 127.5
	DefaultNormOffset float32 = -1
)

type Config struct {
	Port           string        `yaml:"port"`
	ModelPath      string        `yaml:"model_path"`
	MetadataPath   string        `yaml:"metadata_path"`
	LabelsPath     string        `yaml:"labels_path"`
	OnnxLibrary    string        `yaml:"onnx_library"`
	LogLevel       string        `yaml:"log_level"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
	MaxImagePixels int           `yaml:"max_image_pixels"`
	ImageSize      int           `yaml:"image_size"`
	Normalization  Normalization `yaml:"normalization"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

func Default() Config {
	return Config{
		Port:           "8080",
		ModelPath:      "models/eye_model.onnx",
		MetadataPath:   "models/model_metadata.json",
		LabelsPath:     "models/labels.txt",
		LogLevel:       "info",
		MaxUploadBytes: 10 << 20,
		MaxImagePixels: 40_000_000,
		ImageSize:      224,
		Normalization: Normalization{
			Scale:  DefaultNormScale,
			Offset: DefaultNormOffset,
		},
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
	}
}

// Load reads the YAML file at path on top of the defaults. A missing file is
// not an error. PORT and LOG_LEVEL from the environment win over the file.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("failed to read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if port := os.Getenv("PORT"); port != "" {
		cfg.Port = port
	}
	if level := os.Getenv("LOG_LEVEL"); level != "" {
		cfg.LogLevel = level
	}

	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func (c Config) Validate() error {
	if c.ImageSize <= 0 {
		return fmt.Errorf("image_size must be positive, got %d", c.ImageSize)
	}
	if c.Normalization.Scale == 0 {
		return errors.New("normalization.scale must not be zero")
	}
	if c.MaxUploadBytes <= 0 {
		return fmt.Errorf("max_upload_bytes must be positive, got %d", c.MaxUploadBytes)
	}
	if c.MaxImagePixels <= 0 {
		return fmt.Errorf("max_image_pixels must be positive, got %d", c.MaxImagePixels)
	}
	if c.ModelPath == "" || c.MetadataPath == "" || c.LabelsPath == "" {
		return errors.New("model_path, metadata_path and labels_path are required")
	}
	return nil
}
