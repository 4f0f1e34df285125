package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Environment keys understood by Load.
const (
	EnvConfigFile            = "EVENTRSVP_CONFIG_FILE"
	EnvHTTPPort              = "EVENTRSVP_HTTP_PORT"
	EnvSQLiteDSN             = "EVENTRSVP_SQLITE_DSN"
	EnvDeploymentHost        = "EVENTRSVP_DEPLOYMENT_HOST"
	EnvGoogleClientID        = "EVENTRSVP_GOOGLE_CLIENT_ID"
	EnvGoogleClientSecret    = "EVENTRSVP_GOOGLE_CLIENT_SECRET"
	EnvGoogleRedirectURL     = "EVENTRSVP_GOOGLE_REDIRECT_URL"
	EnvGoogleCalendarID      = "EVENTRSVP_GOOGLE_CALENDAR_ID"
	EnvGoogleCredentialOwner = "EVENTRSVP_GOOGLE_CREDENTIAL_OWNER"
	EnvCalendarQPS           = "EVENTRSVP_CALENDAR_QPS"
	EnvCredentialsSecret     = "EVENTRSVP_CREDENTIALS_SECRET"
	EnvLogLevel              = "EVENTRSVP_LOG_LEVEL"
)

// Config captures configuration values for the event RSVP service.
type Config struct {
	HTTPPort       int
	SQLiteDSN      string
	DeploymentHost string
	Google         GoogleConfig
	// CredentialsSecret seals stored provider tokens. Empty disables sealing.
	CredentialsSecret string
	LogLevel          string
}

// GoogleConfig holds the OAuth client and calendar settings for Google Calendar.
type GoogleConfig struct {
	ClientID        string
	ClientSecret    string
	RedirectURL     string
	CalendarID      string
	CredentialOwner string
	QPS             float64
}

// Enabled reports whether an OAuth client has been configured.
func (g GoogleConfig) Enabled() bool {
	return g.ClientID != "" && g.ClientSecret != ""
}

type fileConfig struct {
	HTTP struct {
		Port int `yaml:"port"`
	} `yaml:"http"`
	SQLite struct {
		DSN string `yaml:"dsn"`
	} `yaml:"sqlite"`
	DeploymentHost string `yaml:"deployment_host"`
	Google         struct {
		ClientID        string  `yaml:"client_id"`
		ClientSecret    string  `yaml:"client_secret"`
		RedirectURL     string  `yaml:"redirect_url"`
		CalendarID      string  `yaml:"calendar_id"`
		CredentialOwner string  `yaml:"credential_owner"`
		QPS             float64 `yaml:"qps"`
	} `yaml:"google"`
	CredentialsSecret string `yaml:"credentials_secret"`
	LogLevel          string `yaml:"log_level"`
}

// Default returns the configuration used when nothing is overridden.
func Default() Config {
	return Config{
		HTTPPort:  8080,
		SQLiteDSN: "eventrsvp.db",
		Google: GoogleConfig{
			RedirectURL:     "urn:ietf:wg:oauth:2.0:oob",
			CalendarID:      "primary",
			CredentialOwner: "service",
			QPS:             5,
		},
		LogLevel: "info",
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// EVENTRSVP_CONFIG_FILE, and finally the process environment. A .env file in
// the working directory seeds variables that are not already set.
//
// Invalid values are collected and reported together.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load .env: %w", err)
	}

	cfg := Default()

	if path := strings.TrimSpace(os.Getenv(EnvConfigFile)); path != "" {
		if err := applyFile(&cfg, path); err != nil {
			return Config{}, err
		}
	}

	missing := make([]string, 0, 2)
	invalid := make([]string, 0, 2)

	if portValue := strings.TrimSpace(os.Getenv(EnvHTTPPort)); portValue != "" {
		port, err := strconv.Atoi(portValue)
		if err != nil || port <= 0 || port > 65535 {
			invalid = append(invalid, EnvHTTPPort)
		} else {
			cfg.HTTPPort = port
		}
	}

	overrideString(&cfg.SQLiteDSN, EnvSQLiteDSN)
	overrideString(&cfg.DeploymentHost, EnvDeploymentHost)
	overrideString(&cfg.Google.ClientID, EnvGoogleClientID)
	overrideString(&cfg.Google.ClientSecret, EnvGoogleClientSecret)
	overrideString(&cfg.Google.RedirectURL, EnvGoogleRedirectURL)
	overrideString(&cfg.Google.CalendarID, EnvGoogleCalendarID)
	overrideString(&cfg.Google.CredentialOwner, EnvGoogleCredentialOwner)
	overrideString(&cfg.CredentialsSecret, EnvCredentialsSecret)
	overrideString(&cfg.LogLevel, EnvLogLevel)

	if qpsValue := strings.TrimSpace(os.Getenv(EnvCalendarQPS)); qpsValue != "" {
		qps, err := strconv.ParseFloat(qpsValue, 64)
		if err != nil || qps <= 0 {
			invalid = append(invalid, EnvCalendarQPS)
		} else {
			cfg.Google.QPS = qps
		}
	}

	if cfg.HTTPPort <= 0 || cfg.HTTPPort > 65535 {
		invalid = append(invalid, EnvHTTPPort)
	}
	if cfg.Google.QPS <= 0 {
		invalid = append(invalid, EnvCalendarQPS)
	}
	if cfg.SQLiteDSN == "" {
		missing = append(missing, EnvSQLiteDSN)
	}
	// A half configured OAuth client is almost always a typo.
	if cfg.Google.ClientID != "" && cfg.Google.ClientSecret == "" {
		missing = append(missing, EnvGoogleClientSecret)
	}
	if cfg.Google.ClientSecret != "" && cfg.Google.ClientID == "" {
		missing = append(missing, EnvGoogleClientID)
	}

	cfg.DeploymentHost = strings.TrimSuffix(cfg.DeploymentHost, "/")

	if len(missing) > 0 {
		return Config{}, fmt.Errorf("missing required configuration: %s", strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		return Config{}, fmt.Errorf("invalid configuration values: %s", strings.Join(invalid, ", "))
	}

	return cfg, nil
}

func applyFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("parse config file %s: %w", path, err)
	}

	if fc.HTTP.Port != 0 {
		cfg.HTTPPort = fc.HTTP.Port
	}
	setIfNotEmpty(&cfg.SQLiteDSN, fc.SQLite.DSN)
	setIfNotEmpty(&cfg.DeploymentHost, fc.DeploymentHost)
	setIfNotEmpty(&cfg.Google.ClientID, fc.Google.ClientID)
	setIfNotEmpty(&cfg.Google.ClientSecret, fc.Google.ClientSecret)
	setIfNotEmpty(&cfg.Google.RedirectURL, fc.Google.RedirectURL)
	setIfNotEmpty(&cfg.Google.CalendarID, fc.Google.CalendarID)
	setIfNotEmpty(&cfg.Google.CredentialOwner, fc.Google.CredentialOwner)
	if fc.Google.QPS != 0 {
		cfg.Google.QPS = fc.Google.QPS
	}
	setIfNotEmpty(&cfg.CredentialsSecret, fc.CredentialsSecret)
	setIfNotEmpty(&cfg.LogLevel, fc.LogLevel)
	return nil
}

func overrideString(target *string, key string) {
	setIfNotEmpty(target, os.Getenv(key))
}

func setIfNotEmpty(target *string, value string) {
	if value = strings.TrimSpace(value); value != "" {
		*target = value
	}
}

// ErrMissingDeploymentHost is returned by RequireDeploymentHost when no host is configured.
var ErrMissingDeploymentHost = errors.New("config: deployment host is not configured")

// RequireDeploymentHost returns the configured host or ErrMissingDeploymentHost.
func (c Config) RequireDeploymentHost() (string, error) {
	if c.DeploymentHost == "" {
		return "", ErrMissingDeploymentHost
	}
	return c.DeploymentHost, nil
}
