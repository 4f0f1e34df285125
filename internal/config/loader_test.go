package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

var allKeys = []string{
	EnvConfigFile,
	EnvHTTPPort,
	EnvSQLiteDSN,
	EnvDeploymentHost,
	EnvGoogleClientID,
	EnvGoogleClientSecret,
	EnvGoogleRedirectURL,
	EnvGoogleCalendarID,
	EnvGoogleCredentialOwner,
	EnvCalendarQPS,
	EnvCredentialsSecret,
	EnvLogLevel,
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range allKeys {
		// Setenv registers restoration; Unsetenv then removes the key for this test.
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("failed to unset %s: %v", key, err)
		}
	}
}

func TestLoader_ParseEnvironment(t *testing.T) {
	t.Run("applies defaults when variables are missing", func(t *testing.T) {
		clearEnv(t)

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 8080 {
			t.Fatalf("expected default HTTP port 8080, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "eventrsvp.db" {
			t.Fatalf("unexpected default DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.Google.CalendarID != "primary" {
			t.Fatalf("expected primary calendar by default, got %q", cfg.Google.CalendarID)
		}
		if cfg.Google.QPS != 5 {
			t.Fatalf("expected default QPS 5, got %v", cfg.Google.QPS)
		}
		if cfg.Google.Enabled() {
			t.Fatalf("expected google integration to be disabled without credentials")
		}
		if _, err := cfg.RequireDeploymentHost(); !errors.Is(err, ErrMissingDeploymentHost) {
			t.Fatalf("expected ErrMissingDeploymentHost, got %v", err)
		}
	})

	t.Run("parses numeric fields and trims host", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvHTTPPort, "9090")
		t.Setenv(EnvSQLiteDSN, "/tmp/eventrsvp.db")
		t.Setenv(EnvDeploymentHost, "rsvp.example.com/")
		t.Setenv(EnvCalendarQPS, "2.5")
		t.Setenv(EnvGoogleClientID, "client-id")
		t.Setenv(EnvGoogleClientSecret, "client-secret")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 9090 {
			t.Fatalf("expected HTTP port 9090, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "/tmp/eventrsvp.db" {
			t.Fatalf("unexpected DSN: %q", cfg.SQLiteDSN)
		}
		if cfg.Google.QPS != 2.5 {
			t.Fatalf("expected QPS 2.5, got %v", cfg.Google.QPS)
		}
		host, err := cfg.RequireDeploymentHost()
		if err != nil || host != "rsvp.example.com" {
			t.Fatalf("expected trimmed host, got %q (%v)", host, err)
		}
		if !cfg.Google.Enabled() {
			t.Fatalf("expected google integration to be enabled")
		}
	})

	t.Run("reports invalid values together", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvHTTPPort, "not-a-port")
		t.Setenv(EnvCalendarQPS, "-1")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for invalid values")
		}
		expected := "invalid configuration values: EVENTRSVP_HTTP_PORT, EVENTRSVP_CALENDAR_QPS"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})

	t.Run("requires both halves of the oauth client", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvGoogleClientID, "client-id")

		_, err := Load()
		if err == nil {
			t.Fatalf("expected error for missing client secret")
		}
		expected := "missing required configuration: EVENTRSVP_GOOGLE_CLIENT_SECRET"
		if err.Error() != expected {
			t.Fatalf("unexpected error message: %q", err.Error())
		}
	})
}

func TestLoader_ConfigFile(t *testing.T) {
	t.Run("file values apply and environment wins", func(t *testing.T) {
		clearEnv(t)

		path := filepath.Join(t.TempDir(), "eventrsvp.yaml")
		content := `
http:
  port: 7070
sqlite:
  dsn: /var/lib/eventrsvp/data.db
deployment_host: localhost:3000
google:
  client_id: file-client
  client_secret: file-secret
  calendar_id: team@group.calendar.google.com
  qps: 1
log_level: debug
`
		if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}
		t.Setenv(EnvConfigFile, path)
		t.Setenv(EnvHTTPPort, "6060")

		cfg, err := Load()
		if err != nil {
			t.Fatalf("Load returned error: %v", err)
		}

		if cfg.HTTPPort != 6060 {
			t.Fatalf("expected environment port to win, got %d", cfg.HTTPPort)
		}
		if cfg.SQLiteDSN != "/var/lib/eventrsvp/data.db" {
			t.Fatalf("unexpected DSN from file: %q", cfg.SQLiteDSN)
		}
		if cfg.DeploymentHost != "localhost:3000" {
			t.Fatalf("unexpected host from file: %q", cfg.DeploymentHost)
		}
		if cfg.Google.CalendarID != "team@group.calendar.google.com" {
			t.Fatalf("unexpected calendar id: %q", cfg.Google.CalendarID)
		}
		if cfg.Google.QPS != 1 {
			t.Fatalf("expected QPS from file, got %v", cfg.Google.QPS)
		}
		if cfg.LogLevel != "debug" {
			t.Fatalf("expected debug log level, got %q", cfg.LogLevel)
		}
		if cfg.Google.CredentialOwner != "service" {
			t.Fatalf("expected default credential owner to survive, got %q", cfg.Google.CredentialOwner)
		}
	})

	t.Run("missing file is an error", func(t *testing.T) {
		clearEnv(t)
		t.Setenv(EnvConfigFile, filepath.Join(t.TempDir(), "absent.yaml"))

		if _, err := Load(); err == nil {
			t.Fatalf("expected error for missing config file")
		}
	})

	t.Run("malformed yaml is an error", func(t *testing.T) {
		clearEnv(t)
		path := filepath.Join(t.TempDir(), "broken.yaml")
		if err := os.WriteFile(path, []byte("http: [unterminated"), 0o600); err != nil {
			t.Fatalf("failed to write config file: %v", err)
		}
		t.Setenv(EnvConfigFile, path)

		if _, err := Load(); err == nil {
			t.Fatalf("expected parse error")
		}
	})
}

func TestLoader_Dotenv(t *testing.T) {
	clearEnv(t)
	dir := t.TempDir()
	content := "EVENTRSVP_DEPLOYMENT_HOST=rsvp.example.com/\nEVENTRSVP_HTTP_PORT=9090\n"
	if err := os.WriteFile(filepath.Join(dir, ".env"), []byte(content), 0o600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("failed to get working directory: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("failed to change directory: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	t.Setenv(EnvHTTPPort, "7070")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.DeploymentHost != "rsvp.example.com" {
		t.Fatalf("expected host from .env, got %q", cfg.DeploymentHost)
	}
	if cfg.HTTPPort != 7070 {
		t.Fatalf("expected process environment to win over .env, got %d", cfg.HTTPPort)
	}
}
