package cds

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// ErrNoCredentials is returned when no API URL or key is configured.
var ErrNoCredentials = errors.New("no CDS API credentials")

// Config holds the CDS endpoint and credentials.
type Config struct {
	URL string `envconfig:"CDSAPI_URL" yaml:"url"`
	// Key is "<uid>:<api-key>".
	Key string `envconfig:"CDSAPI_KEY" yaml:"key"`
	RC  string `envconfig:"CDSAPI_RC" yaml:"-"`
}

// LoadConfig resolves the endpoint and key. Explicit values win over the
// CDSAPI_URL and CDSAPI_KEY environment variables, which win over the rc
// file named by CDSAPI_RC (default ~/.cdsapirc).
func LoadConfig(url, key string) (*Config, error) {
	cfg := &Config{}
	if err := envconfig.Process("", cfg); err != nil {
		return nil, err
	}
	if url != "" {
		cfg.URL = url
	}
	if key != "" {
		cfg.Key = key
	}
	if cfg.URL != "" && cfg.Key != "" {
		return cfg, nil
	}

	rc := cfg.RC
	if rc == "" {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrNoCredentials, err)
		}
		rc = filepath.Join(home, ".cdsapirc")
	}
	fileCfg, err := readRC(rc)
	if err != nil {
		return nil, err
	}
	if cfg.URL == "" {
		cfg.URL = fileCfg.URL
	}
	if cfg.Key == "" {
		cfg.Key = fileCfg.Key
	}
	if cfg.URL == "" || cfg.Key == "" {
		return nil, fmt.Errorf("%w: set CDSAPI_URL and CDSAPI_KEY or write %s", ErrNoCredentials, rc)
	}
	return cfg, nil
}

// readRC reads a .cdsapirc file of "url: ..." and "key: ..." lines. A
// missing file yields an empty config.
func readRC(path string) (*Config, error) {
	cfg := &Config{}
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(b, cfg); err != nil {
		return nil, fmt.Errorf("cannot parse %s: %w", path, err)
	}
	return cfg, nil
}
