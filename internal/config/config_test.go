package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, 224, cfg.ImageSize)
	assert.Equal(t, DefaultNormScale, cfg.Normalization.Scale)
	assert.Equal(t, DefaultNormOffset, cfg.Normalization.Offset)
	assert.Equal(t, 40_000_000, cfg.MaxImagePixels)
}

func TestLoadFileAndEnvOverride(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	body := `
port: "9000"
model_path: /srv/eye.onnx
log_level: debug
max_upload_bytes: 1024
max_image_pixels: 1000000
read_timeout: 5s
`
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	t.Setenv("PORT", "7000")
	t.Setenv("LOG_LEVEL", "")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "7000", cfg.Port)
	assert.Equal(t, "/srv/eye.onnx", cfg.ModelPath)
	assert.Equal(t, "debug", cfg.LogLevel)
	assert.Equal(t, int64(1024), cfg.MaxUploadBytes)
	assert.Equal(t, 1_000_000, cfg.MaxImagePixels)
	assert.Equal(t, 5*time.Second, cfg.ReadTimeout)
	assert.Equal(t, "models/labels.txt", cfg.LabelsPath)
}

func TestLoadRejectsBadValues(t *testing.T) {
	t.Setenv("PORT", "")
	t.Setenv("LOG_LEVEL", "")
	dir := t.TempDir()

	cases := map[string]string{
		"malformed":  "port: [",
		"zero size":  "image_size: 0",
		"no pixels":  "max_image_pixels: 0",
		"zero scale": "normalization:\n  scale: 0\n  offset: -1",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}
