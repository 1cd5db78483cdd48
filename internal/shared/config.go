package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file and the environment.
type Config struct {
	Skyeng   SkyengConfig   `toml:"skyeng"`
	Anki     AnkiConfig     `toml:"anki"`
	Database DatabaseConfig `toml:"database"`
	Metrics  MetricsConfig  `toml:"metrics"`
	Log      LogConfig      `toml:"log"`
}

// SkyengConfig contains the vocabulary service login and listing settings.
type SkyengConfig struct {
	Username       string  `toml:"username" env:"SKYENG_USERNAME"`
	Password       string  `toml:"password" env:"SKYENG_PASSWORD"`
	StudentID      int64   `toml:"student_id" env:"SKYENG_STUDENT"`
	PageSize       int     `toml:"page_size" env:"SKYENG_PAGE_SIZE"`
	RateLimit      float64 `toml:"rate_limit" env:"SKYENG_RATE_LIMIT"` // requests per second, 0 disables pacing
	AcceptLanguage string  `toml:"accept_language" env:"SKYENG_ACCEPT_LANGUAGE"`
}

// AnkiConfig contains the AnkiConnect endpoint and note settings.
type AnkiConfig struct {
	URL   string   `toml:"url" env:"ANKI_URL"`
	Deck  string   `toml:"deck" env:"ANKI_DECK"`
	Model string   `toml:"model" env:"ANKI_MODEL"`
	Tags  []string `toml:"tags" env:"ANKI_TAGS" env-separator:","`
	Sync  bool     `toml:"sync" env:"ANKI_SYNC"`
}

// DatabaseConfig contains database connection settings.
//
// Driver is "sqlite3" (Path is used) or "postgres" (DSN is used).
type DatabaseConfig struct {
	Driver       string `toml:"driver" env:"DATABASE_DRIVER"`
	Path         string `toml:"path" env:"DATABASE_PATH"`
	DSN          string `toml:"dsn" env:"DATABASE_URL"`
	MaxOpenConns int    `toml:"max_open_conns"`
	MaxIdleConns int    `toml:"max_idle_conns"`
}

// MetricsConfig contains the Prometheus Pushgateway settings. An empty URL disables pushing.
type MetricsConfig struct {
	PushgatewayURL string `toml:"pushgateway_url" env:"PUSHGATEWAY_URL"`
	Job            string `toml:"job" env:"PUSHGATEWAY_JOB"`
}

// LogConfig contains logging settings.
type LogConfig struct {
	Level string `toml:"level" env:"LOG_LEVEL"`
}

// DataSource returns the driver specific data source name.
func (d DatabaseConfig) DataSource() string {
	if d.Driver == DriverPostgres {
		return d.DSN
	}
	return d.Path
}

// LoadConfig reads the TOML file at path over the embedded defaults.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := DefaultConfig()
	if err := toml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	return config, nil
}

// Load builds the effective configuration: embedded defaults, then the TOML file at path when it exists,
// then a .env file in the working directory, then environment variables.
func Load(path string) (*Config, error) {
	config := DefaultConfig()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if config, err = LoadConfig(path); err != nil {
				return nil, err
			}
		}
	}

	if err := ApplyEnv(config); err != nil {
		return nil, err
	}

	return config, nil
}

// ApplyEnv loads a .env file when present and overrides config fields from the environment.
func ApplyEnv(config *Config) error {
	// Missing .env is fine.
	_ = godotenv.Load()

	if err := cleanenv.ReadEnv(config); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	return nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s: %w", path, err)
	}

	if err := os.WriteFile(path, exampleConf, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// ValidateSync checks the settings a sync pass cannot run without.
func (c *Config) ValidateSync() error {
	if c.Skyeng.Username == "" || c.Skyeng.Password == "" {
		return fmt.Errorf("%w: skyeng username and password are required", ErrMissingCredentials)
	}
	if c.Skyeng.StudentID <= 0 {
		return fmt.Errorf("%w: skyeng student_id is required", ErrInvalidConfig)
	}
	if c.Anki.URL == "" || c.Anki.Deck == "" {
		return fmt.Errorf("%w: anki url and deck are required", ErrInvalidConfig)
	}
	return c.Database.Validate()
}

// Validate checks the database settings.
func (d DatabaseConfig) Validate() error {
	switch d.Driver {
	case DriverSQLite:
		if d.Path == "" {
			return fmt.Errorf("%w: database path is required for sqlite3", ErrInvalidConfig)
		}
	case DriverPostgres:
		if d.DSN == "" {
			return fmt.Errorf("%w: database dsn is required for postgres", ErrInvalidConfig)
		}
	default:
		return fmt.Errorf("%w: unsupported database driver %q", ErrInvalidConfig, d.Driver)
	}
	return nil
}
