package configutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

type testConfig struct {
	Url   string `json:"url"`
	Token string `json:"token"`
}

func TestReadConfigMergesLocalOverride(t *testing.T) {
	dir := t.TempDir()
	name := filepath.Join(dir, "sync.json5")

	err := os.WriteFile(name, []byte(`{url: "https://example.test", token: "default"}`), 0o644)
	require.NoError(t, err)
	err = os.WriteFile(filepath.Join(dir, "sync.local.json5"), []byte(`{token: "secret"}`), 0o644)
	require.NoError(t, err)

	cfg, err := ReadConfig[testConfig](name)
	require.NoError(t, err)
	require.Equal(t, "https://example.test", cfg.Url)
	require.Equal(t, "secret", cfg.Token)
}

func TestReadConfigMissing(t *testing.T) {
	dir := t.TempDir()
	_, err := ReadConfig[testConfig](filepath.Join(dir, "nope.json5"))
	require.ErrorIs(t, err, os.ErrNotExist)
}
