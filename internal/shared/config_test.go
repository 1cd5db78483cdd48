package shared

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestConfig(t *testing.T) {
	t.Run("DefaultConfig", func(t *testing.T) {
		config := DefaultConfig()

		if config.Database.Path != "./skyanki.db" {
			t.Errorf("expected database path ./skyanki.db, got %s", config.Database.Path)
		}

		if config.Database.Driver != DriverSQLite {
			t.Errorf("expected sqlite3 driver, got %s", config.Database.Driver)
		}

		if config.Skyeng.PageSize != 100 {
			t.Errorf("expected page size 100, got %d", config.Skyeng.PageSize)
		}

		if config.Anki.URL != "http://127.0.0.1:8765" {
			t.Errorf("expected anki URL http://127.0.0.1:8765, got %s", config.Anki.URL)
		}

		if len(config.Anki.Tags) != 1 || config.Anki.Tags[0] != "skyeng" {
			t.Errorf("expected default tag skyeng, got %v", config.Anki.Tags)
		}
	})

	t.Run("CreateConfigFile", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		if err := CreateConfigFile(configPath); err != nil {
			t.Fatalf("failed to create config file: %v", err)
		}

		if _, err := os.Stat(configPath); err != nil {
			t.Fatalf("config file should exist: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load created config: %v", err)
		}

		defaultConfig := DefaultConfig()
		if config.Database.Path != defaultConfig.Database.Path {
			t.Errorf("created config database path doesn't match default")
		}

		if err := CreateConfigFile(configPath); err == nil {
			t.Error("creating config file again should fail")
		}
	})

	t.Run("LoadConfig", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")

		testConfig := `[skyeng]
username = "student@example.com"
password = "secret"
student_id = 42
page_size = 50

[anki]
url = "http://localhost:9999"
deck = "English"
tags = ["skyeng", "vocab"]

[database]
driver = "postgres"
dsn = "postgres://localhost/skyanki"
`
		if err := os.WriteFile(configPath, []byte(testConfig), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := LoadConfig(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Skyeng.StudentID != 42 {
			t.Errorf("expected student id 42, got %d", config.Skyeng.StudentID)
		}

		if config.Database.DataSource() != "postgres://localhost/skyanki" {
			t.Errorf("expected postgres dsn, got %s", config.Database.DataSource())
		}

		if len(config.Anki.Tags) != 2 {
			t.Errorf("expected 2 tags, got %v", config.Anki.Tags)
		}

		if config.Anki.Model != "Basic" || config.Log.Level != "info" {
			t.Errorf("expected unset fields to keep defaults, got model %q level %q", config.Anki.Model, config.Log.Level)
		}
	})

	t.Run("Load Reports Malformed File", func(t *testing.T) {
		configPath := filepath.Join(t.TempDir(), "config.toml")
		if err := os.WriteFile(configPath, []byte("[anki\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		if _, err := Load(configPath); err == nil || !strings.Contains(err.Error(), "failed to parse config") {
			t.Errorf("expected parse error, got %v", err)
		}
	})

	t.Run("LoadConfig Missing File", func(t *testing.T) {
		if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.toml")); err == nil {
			t.Error("expected error for missing file")
		}
	})

	t.Run("Load Overlays File On Defaults", func(t *testing.T) {
		tmpDir := t.TempDir()
		configPath := filepath.Join(tmpDir, "config.toml")
		if err := os.WriteFile(configPath, []byte("[anki]\ndeck = \"Words\"\n"), 0644); err != nil {
			t.Fatalf("failed to write test config: %v", err)
		}

		config, err := Load(configPath)
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Anki.Deck != "Words" {
			t.Errorf("expected deck from file, got %s", config.Anki.Deck)
		}
		if config.Anki.URL != "http://127.0.0.1:8765" {
			t.Errorf("expected default anki url to survive, got %s", config.Anki.URL)
		}
	})

	t.Run("Load Applies Environment", func(t *testing.T) {
		t.Setenv("SKYENG_USERNAME", "env-user")
		t.Setenv("SKYENG_PASSWORD", "env-pass")
		t.Setenv("SKYENG_STUDENT", "7")
		t.Setenv("ANKI_URL", "http://anki:8765")

		config, err := Load("")
		if err != nil {
			t.Fatalf("failed to load config: %v", err)
		}

		if config.Skyeng.Username != "env-user" || config.Skyeng.Password != "env-pass" {
			t.Errorf("expected credentials from env, got %q", config.Skyeng.Username)
		}
		if config.Skyeng.StudentID != 7 {
			t.Errorf("expected student id 7, got %d", config.Skyeng.StudentID)
		}
		if config.Anki.URL != "http://anki:8765" {
			t.Errorf("expected anki url from env, got %s", config.Anki.URL)
		}
		if err := config.ValidateSync(); err != nil {
			t.Errorf("expected valid sync config, got %v", err)
		}
	})

	t.Run("ValidateSync", func(t *testing.T) {
		tc := []struct {
			name   string
			mutate func(*Config)
			want   error
		}{
			{name: "missing credentials", mutate: func(c *Config) { c.Skyeng.Password = "" }, want: ErrMissingCredentials},
			{name: "missing student", mutate: func(c *Config) { c.Skyeng.StudentID = 0 }, want: ErrInvalidConfig},
			{name: "missing deck", mutate: func(c *Config) { c.Anki.Deck = "" }, want: ErrInvalidConfig},
			{name: "unknown driver", mutate: func(c *Config) { c.Database.Driver = "mysql" }, want: ErrInvalidConfig},
			{name: "postgres without dsn", mutate: func(c *Config) { c.Database.Driver = DriverPostgres }, want: ErrInvalidConfig},
		}

		for _, tt := range tc {
			t.Run(tt.name, func(t *testing.T) {
				config := DefaultConfig()
				config.Skyeng.Username = "user"
				config.Skyeng.Password = "pass"
				config.Skyeng.StudentID = 1
				tt.mutate(config)

				if err := config.ValidateSync(); !errors.Is(err, tt.want) {
					t.Errorf("ValidateSync() = %v, want %v", err, tt.want)
				}
			})
		}
	})
}
