package config

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func env(values map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		value, ok := values[key]
		return value, ok
	}
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoad_EnvOnly(t *testing.T) {
	cfg, err := Load("", env(map[string]string{
		EnvAPIURL:         "https://api.example.org/v1",
		EnvCommitSHA:      "abc123",
		EnvSessionRefresh: "90s",
		EnvSessionIdle:    "30m",
	}))
	require.NoError(t, err)

	assert.Equal(t, "https://api.example.org/v1", cfg.APIURL)
	assert.Equal(t, "simforms", cfg.AppName)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, 90*time.Second, cfg.SessionRefresh.Std())
	assert.Equal(t, 30*time.Minute, cfg.SessionIdle.Std())
	assert.Equal(t, map[string]string{
		"API_URL":     "https://api.example.org/v1",
		"APP_NAME":    "simforms",
		"APP_VERSION": "dev",
		"COMMIT_SHA":  "abc123",
	}, cfg.PublicSettings())
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	path := writeFile(t, "simforms.yaml", `
api_url: https://file.example.org
addr: ":9000"
session_refresh: 10m
theme: simforms
theme_variant: dark
`)
	cfg, err := Load(path, env(map[string]string{EnvAddr: ":9100"}))
	require.NoError(t, err)

	assert.Equal(t, "https://file.example.org", cfg.APIURL)
	assert.Equal(t, ":9100", cfg.Addr, "environment overrides the file")
	assert.Equal(t, 10*time.Minute, cfg.SessionRefresh.Std())
	assert.Equal(t, "dark", cfg.ThemeVariant)
}

func TestLoad_TOML(t *testing.T) {
	path := writeFile(t, "simforms.toml", `
api_url = "http://localhost:8000"
primary_hostname = "forms.example.org"
request_timeout = "5s"
`)
	cfg, err := Load(path, env(nil))
	require.NoError(t, err)

	assert.Equal(t, "forms.example.org", cfg.PrimaryHostname)
	assert.Equal(t, 5*time.Second, cfg.RequestTimeout.Std())
}

func TestLoad_Errors(t *testing.T) {
	_, err := Load("", env(nil))
	require.Error(t, err)
	var cfgErr *ConfigError
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, EnvAPIURL, cfgErr.Field)
	assert.True(t, errors.Is(err, ErrRequired))

	_, err = Load("", env(map[string]string{
		EnvAPIURL:  "ftp://api.example.org",
		EnvAuthURL: "not a url",
		EnvAddr:    "",
	}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "scheme must be http or https")
	assert.Contains(t, err.Error(), EnvAuthURL)

	_, err = Load("", env(map[string]string{
		EnvAPIURL:         "https://api.example.org",
		EnvSessionRefresh: "soon",
	}))
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, EnvSessionRefresh, cfgErr.Field)

	_, err = Load("", env(map[string]string{
		EnvAPIURL:      "https://api.example.org",
		EnvSessionIdle: "0s",
	}))
	require.ErrorAs(t, err, &cfgErr)
	assert.Equal(t, EnvSessionIdle, cfgErr.Field)

	_, err = Load(writeFile(t, "simforms.ini", "x=1"), env(nil))
	require.ErrorContains(t, err, "unsupported extension")
}

func TestSchema(t *testing.T) {
	raw, err := json.Marshal(Schema())
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))
	props, ok := decoded["properties"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, props, "api_url")
	refresh, ok := props["session_refresh"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "string", refresh["type"])
}
