package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigDefaults(t *testing.T) {
	chdir(t, t.TempDir())

	cfg, err := LoadConfig("")
	require.NoError(t, err)

	assert.Equal(t, "http://127.0.0.1:8000/api/extract/", cfg.ExtractURL)
	assert.Equal(t, 2000*time.Millisecond, cfg.CopiedReset)
	assert.Equal(t, int64(10<<20), cfg.MaxUploadBytes)
	assert.Equal(t, []string{"eng"}, cfg.ExtractdLanguages)
	assert.Zero(t, cfg.RequestTimeout)
}

func TestLoadConfigFileThenEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)

	path := filepath.Join(dir, "textscan.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
extract_url: http://ocr.internal:9000/api/extract/
addr: 0.0.0.0:8080
request_timeout: 45s
extractd_languages: [eng, deu]
`), 0o600))

	t.Setenv("TEXTSCAN_ADDR", "127.0.0.1:4000")
	t.Setenv("EXTRACTD_LANGUAGES", "eng, fra")

	cfg, err := LoadConfig(path)
	require.NoError(t, err)

	assert.Equal(t, "http://ocr.internal:9000/api/extract/", cfg.ExtractURL)
	assert.Equal(t, "127.0.0.1:4000", cfg.Addr)
	assert.Equal(t, 45*time.Second, cfg.RequestTimeout)
	assert.Equal(t, []string{"eng", "fra"}, cfg.ExtractdLanguages)
}

func TestLoadConfigDotEnv(t *testing.T) {
	dir := t.TempDir()
	chdir(t, dir)
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".env"), []byte("TEXTSCAN_DOWNLOAD_DIR=/tmp/scans\n"), 0o600))
	t.Cleanup(func() { os.Unsetenv("TEXTSCAN_DOWNLOAD_DIR") })

	cfg, err := LoadConfig("")
	require.NoError(t, err)
	assert.Equal(t, "/tmp/scans", cfg.DownloadDir)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"non-http extract url", func(c *Config) { c.ExtractURL = "ftp://x/api/extract/" }},
		{"upload limit too small", func(c *Config) { c.MaxUploadBytes = 10 }},
		{"negative timeout", func(c *Config) { c.RequestTimeout = -time.Second }},
		{"unknown clipboard", func(c *Config) { c.ClipboardKey = "x11" }},
		{"no languages", func(c *Config) { c.ExtractdLanguages = nil }},
		{"zero concurrency", func(c *Config) { c.ExtractdMaxConcurrent = 0 }},
	}

	require.NoError(t, Defaults().Validate())

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

// chdir changes the working directory for the duration of the test
// (stand-in for testing.T.Chdir, which needs Go 1.24).
func chdir(t *testing.T, dir string) {
	t.Helper()
	prev, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(prev) })
}
