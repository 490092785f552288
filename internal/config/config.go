// Package config provides configuration handling for the correlated HTTP
// client and its commands.
package config

import (
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	yaml "gopkg.in/yaml.v3"

	"gitlab.com/gitlab-org/correlated-http/client"
)

const (
	configFile            = "config.yml"
	defaultSecretFileName = ".api_secret"

	// EnvironmentDevelopment enables development-mode behavior such as the
	// per-request correlation diagnostic line.
	EnvironmentDevelopment = "development"
)

// HTTPSettingsConfig contains the settings of the underlying HTTP transport.
type HTTPSettingsConfig struct {
	User                string `yaml:"user" env:"API_HTTP_USER"`
	Password            string `yaml:"password" env:"API_HTTP_PASSWORD"`
	ReadTimeoutSeconds  uint64 `yaml:"read_timeout" env:"API_HTTP_READ_TIMEOUT"`
	CaFile              string `yaml:"ca_file"`
	CaPath              string `yaml:"ca_path"`
	SelfSignedCert      bool   `yaml:"self_signed_cert"`
	RetryableHTTP       bool   `yaml:"retryable_http" env:"API_HTTP_RETRYABLE"`
	RetryWaitMinSeconds uint64 `yaml:"retry_wait_min"`
	RetryWaitMaxSeconds uint64 `yaml:"retry_wait_max"`
	RetryMax            int    `yaml:"retry_max"`
}

// Config represents the configuration of the client.
type Config struct {
	RootDir string

	ServerURL       string `yaml:"server_url" env:"API_SERVER_URL"`
	RelativeURLRoot string `yaml:"relative_url_root"`
	Environment     string `yaml:"environment" env:"APP_ENV"`
	LogFile         string `yaml:"log_file" env:"API_LOG_FILE"`
	LogFormat       string `yaml:"log_format" env:"API_LOG_FORMAT"`
	LogLevel        string `yaml:"log_level" env:"API_LOG_LEVEL"`
	// SecretFilePath is only for parsing. Application code should always use Secret.
	SecretFilePath string             `yaml:"secret_file"`
	Secret         string             `yaml:"secret"`
	HTTPSettings   HTTPSettingsConfig `yaml:"http_settings"`

	httpClient *client.HTTPClient
}

// DiagnosticsEnabled reports whether the per-request correlation diagnostic
// line should be emitted. Only development-mode configurations enable it.
func (c *Config) DiagnosticsEnabled() bool {
	return c.Environment == EnvironmentDevelopment
}

// HTTPClient returns the HTTP client built from this configuration, building
// it on first use.
func (c *Config) HTTPClient() (*client.HTTPClient, error) {
	if c.httpClient != nil {
		return c.httpClient, nil
	}

	opts := []client.HTTPClientOpt{}
	if c.HTTPSettings.RetryMax > 0 {
		opts = append(opts, client.WithHTTPRetryOpts(
			time.Duration(c.HTTPSettings.RetryWaitMinSeconds)*time.Second,
			time.Duration(c.HTTPSettings.RetryWaitMaxSeconds)*time.Second,
			c.HTTPSettings.RetryMax,
		))
	}
	if c.DiagnosticsEnabled() {
		opts = append(opts, client.WithTransportOptions(client.WithDiagnostics()))
	}

	httpClient, err := client.NewHTTPClientWithOpts(
		c.ServerURL,
		c.RelativeURLRoot,
		c.HTTPSettings.CaFile,
		c.HTTPSettings.CaPath,
		c.HTTPSettings.SelfSignedCert,
		c.HTTPSettings.ReadTimeoutSeconds,
		opts,
	)
	if err != nil {
		return nil, err
	}

	c.httpClient = httpClient

	return httpClient, nil
}

// Client returns an API client built from this configuration.
func (c *Config) Client() (*client.Client, error) {
	httpClient, err := c.HTTPClient()
	if err != nil {
		return nil, err
	}

	var opts []client.ClientOpt
	if c.HTTPSettings.RetryableHTTP {
		opts = append(opts, client.WithRetryableHTTP())
	}

	return client.NewClient(c.HTTPSettings.User, c.HTTPSettings.Password, c.Secret, httpClient, opts...)
}

// NewFromDir returns a new config read from config.yml in the given
// directory, with environment variable overrides applied.
func NewFromDir(dir string) (*Config, error) {
	return newFromFile(filepath.Join(dir, configFile))
}

func newFromFile(path string) (*Config, error) {
	cfg := &Config{RootDir: filepath.Dir(path)}

	configBytes, err := os.ReadFile(filepath.Clean(path))
	if err != nil {
		return nil, err
	}

	if err := yaml.Unmarshal(configBytes, cfg); err != nil {
		return nil, err
	}

	if err := env.Parse(cfg); err != nil {
		return nil, err
	}

	if err := parseSecret(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

func parseSecret(cfg *Config) error {
	// The secret was parsed from yaml no need to read another file
	if cfg.Secret != "" {
		return nil
	}

	if cfg.SecretFilePath == "" {
		cfg.SecretFilePath = defaultSecretFileName
	}

	if !filepath.IsAbs(cfg.SecretFilePath) {
		cfg.SecretFilePath = filepath.Join(cfg.RootDir, cfg.SecretFilePath)
	}

	secretFileContent, err := os.ReadFile(filepath.Clean(cfg.SecretFilePath))
	if err != nil {
		return err
	}
	cfg.Secret = string(secretFileContent)

	return nil
}
