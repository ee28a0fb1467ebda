package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfigCreatesDefault(t *testing.T) {
	home := t.TempDir()
	t.Setenv("POLARIS_HOME", home)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.Equal(t, "default", cfg.ActiveProfile)
	assert.Equal(t, defaultBaseURL, cfg.GetBaseURL())
	assert.False(t, cfg.IsValid(), "default profile has no user id")

	_, err = os.Stat(filepath.Join(home, ".polaris", "config.json"))
	require.NoError(t, err)
}

func TestLoadConfigReadsExistingProfile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("POLARIS_HOME", home)

	dir := filepath.Join(home, ".polaris")
	require.NoError(t, os.MkdirAll(dir, 0755))
	raw := map[string]any{
		"active_profile": "work",
		"profiles": map[string]Profile{
			"work": {BaseURL: "https://polaris.example.com", UserID: "u-42", Email: "me@example.com"},
		},
	}
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), data, 0600))

	cfg, err := LoadConfig()
	require.NoError(t, err)

	assert.True(t, cfg.IsValid())
	assert.Equal(t, "https://polaris.example.com", cfg.GetBaseURL())
	assert.Equal(t, "u-42", cfg.GetUserID())
}

func TestLoadConfigFallsBackToAnyProfile(t *testing.T) {
	home := t.TempDir()
	t.Setenv("POLARIS_HOME", home)

	dir := filepath.Join(home, ".polaris")
	require.NoError(t, os.MkdirAll(dir, 0755))
	raw := map[string]any{
		"active_profile": "gone",
		"profiles": map[string]Profile{
			"only": {BaseURL: "https://polaris.example.com", UserID: "u-1"},
		},
	}
	data, err := json.Marshal(raw)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.json"), data, 0600))

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "only", cfg.ActiveProfile)
	assert.Equal(t, "u-1", cfg.GetUserID())
}

func TestSaveRoundTrip(t *testing.T) {
	home := t.TempDir()
	t.Setenv("POLARIS_HOME", home)

	cfg, err := LoadConfig()
	require.NoError(t, err)

	cfg.Profiles["staging"] = Profile{BaseURL: "https://staging.example.com", UserID: "u-7"}
	cfg.ActiveProfile = "staging"
	require.NoError(t, cfg.Save())

	reloaded, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "staging", reloaded.ActiveProfile)
	assert.Equal(t, "https://staging.example.com", reloaded.GetBaseURL())
}

func TestDirHonorsPolarisHome(t *testing.T) {
	home := t.TempDir()
	t.Setenv("POLARIS_HOME", home)

	dir, err := Dir()
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(home, ".polaris"), dir)
}
