// Package config loads the server and CLI settings from defaults, an
// optional YAML or TOML file, and the environment, in that order.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/invopop/jsonschema"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

// Environment variables read by Load.
const (
	EnvAPIURL          = "ENTITYCORE_API_URL"
	EnvAppName         = "APP_NAME"
	EnvAppVersion      = "APP_VERSION"
	EnvCommitSHA       = "COMMIT_SHA"
	EnvPrimaryHostname = "PRIMARY_HOSTNAME"
	EnvAddr            = "SIMFORMS_ADDR"
	EnvAuthURL         = "SIMFORMS_AUTH_URL"
	EnvSessionRefresh  = "SIMFORMS_SESSION_REFRESH"
	EnvSessionIdle     = "SIMFORMS_SESSION_IDLE"
)

// Config holds every setting of the simforms server.
type Config struct {
	// APIURL is the base URL of the remote modeling API.
	APIURL     string `json:"api_url" yaml:"api_url" toml:"api_url" jsonschema:"format=uri,description=Base URL of the remote modeling API"`
	AppName    string `json:"app_name,omitempty" yaml:"app_name" toml:"app_name"`
	AppVersion string `json:"app_version,omitempty" yaml:"app_version" toml:"app_version"`
	CommitSHA  string `json:"commit_sha,omitempty" yaml:"commit_sha" toml:"commit_sha"`

	// PrimaryHostname enables the canonical host redirect when set.
	PrimaryHostname string `json:"primary_hostname,omitempty" yaml:"primary_hostname" toml:"primary_hostname"`
	Addr            string `json:"addr" yaml:"addr" toml:"addr" jsonschema:"default=:8080"`

	// AuthURL is the identity provider login page. Authentication is
	// disabled when empty.
	AuthURL        string   `json:"auth_url,omitempty" yaml:"auth_url" toml:"auth_url" jsonschema:"format=uri"`
	SessionRefresh Duration `json:"session_refresh" yaml:"session_refresh" toml:"session_refresh"`
	// SessionIdle drops browser sessions unused for this long.
	SessionIdle    Duration `json:"session_idle" yaml:"session_idle" toml:"session_idle"`
	RequestTimeout Duration `json:"request_timeout" yaml:"request_timeout" toml:"request_timeout"`

	ThemeName    string `json:"theme,omitempty" yaml:"theme" toml:"theme"`
	ThemeVariant string `json:"theme_variant,omitempty" yaml:"theme_variant" toml:"theme_variant"`
}

// Default returns the settings used before any file or environment variable
// is applied.
func Default() Config {
	return Config{
		AppName:        "simforms",
		AppVersion:     "dev",
		Addr:           ":8080",
		SessionRefresh: Duration(5 * time.Minute),
		SessionIdle:    Duration(2 * time.Hour),
		RequestTimeout: Duration(30 * time.Second),
	}
}

// LookupFunc resolves an environment variable.
type LookupFunc func(key string) (string, bool)

// Load builds the configuration. path may be empty; lookup defaults to
// os.LookupEnv.
func Load(path string, lookup LookupFunc) (Config, error) {
	if lookup == nil {
		lookup = os.LookupEnv
	}
	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return Config{}, err
		}
	}
	if err := cfg.applyEnv(lookup); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return &ConfigError{Field: "config", Err: err}
	}
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, c)
	case ".toml":
		err = toml.Unmarshal(data, c)
	case ".json":
		err = json.Unmarshal(data, c)
	default:
		err = fmt.Errorf("unsupported extension %q", ext)
	}
	if err != nil {
		return &ConfigError{Field: "config", Err: fmt.Errorf("%s: %w", path, err)}
	}
	return nil
}

func (c *Config) applyEnv(lookup LookupFunc) error {
	strs := map[string]*string{
		EnvAPIURL:          &c.APIURL,
		EnvAppName:         &c.AppName,
		EnvAppVersion:      &c.AppVersion,
		EnvCommitSHA:       &c.CommitSHA,
		EnvPrimaryHostname: &c.PrimaryHostname,
		EnvAddr:            &c.Addr,
		EnvAuthURL:         &c.AuthURL,
	}
	for key, dst := range strs {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			*dst = strings.TrimSpace(value)
		}
	}
	durations := map[string]*Duration{
		EnvSessionRefresh: &c.SessionRefresh,
		EnvSessionIdle:    &c.SessionIdle,
	}
	for key, dst := range durations {
		if value, ok := lookup(key); ok && strings.TrimSpace(value) != "" {
			if err := dst.UnmarshalText([]byte(value)); err != nil {
				return &ConfigError{Field: key, Err: err}
			}
		}
	}
	return nil
}

// Validate reports every invalid setting at once.
func (c Config) Validate() error {
	var merr *multierror.Error
	if c.APIURL == "" {
		merr = multierror.Append(merr, &ConfigError{Field: EnvAPIURL, Err: ErrRequired})
	} else if err := checkURL(c.APIURL); err != nil {
		merr = multierror.Append(merr, &ConfigError{Field: EnvAPIURL, Err: err})
	}
	if c.AuthURL != "" {
		if err := checkURL(c.AuthURL); err != nil {
			merr = multierror.Append(merr, &ConfigError{Field: EnvAuthURL, Err: err})
		}
	}
	if c.Addr == "" {
		merr = multierror.Append(merr, &ConfigError{Field: EnvAddr, Err: ErrRequired})
	}
	if c.SessionRefresh <= 0 {
		merr = multierror.Append(merr, &ConfigError{Field: EnvSessionRefresh, Err: errors.New("must be positive")})
	}
	if c.SessionIdle <= 0 {
		merr = multierror.Append(merr, &ConfigError{Field: EnvSessionIdle, Err: errors.New("must be positive")})
	}
	if c.RequestTimeout < 0 {
		merr = multierror.Append(merr, &ConfigError{Field: "request_timeout", Err: errors.New("must not be negative")})
	}
	return merr.ErrorOrNil()
}

// PublicSettings is the subset exposed to browsers as /config.json.
func (c Config) PublicSettings() map[string]string {
	return map[string]string{
		"API_URL":     c.APIURL,
		"APP_NAME":    c.AppName,
		"APP_VERSION": c.AppVersion,
		"COMMIT_SHA":  c.CommitSHA,
	}
}

// Schema returns the JSON schema of the configuration file.
func Schema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		ExpandedStruct:            true,
	}
	s := reflector.Reflect(&Config{})
	s.Title = "simforms configuration"
	return s
}

func checkURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return err
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("scheme must be http or https, got %q", u.Scheme)
	}
	if u.Host == "" {
		return errors.New("host is required")
	}
	return nil
}
