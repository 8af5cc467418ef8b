// Package config loads the daemon configuration by layering defaults, an
// optional YAML file and environment variable overrides.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// For mocking in tests
var osReadFile = os.ReadFile

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		HTTP: HTTPConfig{Port: 8080},
		Log:  LogConfig{Level: "info", Format: "text"},
		Database: DatabaseConfig{
			Port: "5432",
			User: "dply",
			Name: "dply",
		},
		Secrets: SecretsConfig{
			Dir:          "/var/lib/dply/secrets",
			MasterKeyEnv: "DPLY_MASTER_KEY",
		},
		Auth: AuthConfig{
			TokenTTL: Duration(time.Hour),
		},
		Provisioning: ProvisioningConfig{
			Binary:            "k3d",
			Attempts:          3,
			CreateTimeout:     Duration(5 * time.Minute),
			KubeconfigTimeout: Duration(2 * time.Minute),
		},
	}
}

// Load builds the effective configuration: defaults, then the YAML file at
// path (skipped when path is empty), then environment variables. A .env
// file in the working directory is loaded
// first so local development can keep everything in one place.
func Load(path string) (Config, error) {
	if _, err := os.Stat(".env"); err == nil {
		if err := godotenv.Load(".env"); err != nil {
			return Config{}, fmt.Errorf("error loading .env: %w", err)
		}
	}

	cfg := Default()

	if path != "" {
		data, err := osReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("error reading config file %s: %w", path, err)
		}
		// Unmarshalling over the defaults: keys absent from the file keep
		// their default values.
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("error parsing config file %s: %w", path, err)
		}
	}

	applyEnvOverrides(&cfg)
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	setString(&cfg.Log.Level, "DPLY_LOG_LEVEL")
	setString(&cfg.Log.Format, "DPLY_LOG_FORMAT")
	setInt(&cfg.HTTP.Port, "DPLY_HTTP_PORT")
	setString(&cfg.Database.Host, "DPLY_DB_HOST")
	setString(&cfg.Database.Port, "DPLY_DB_PORT")
	setString(&cfg.Database.User, "DPLY_DB_USER")
	setString(&cfg.Database.Password, "DPLY_DB_PASSWORD")
	setString(&cfg.Database.Name, "DPLY_DB_NAME")
	setString(&cfg.Secrets.Dir, "DPLY_SECRETS_DIR")
	setString(&cfg.Auth.JWTSecret, "DPLY_JWT_SECRET")
	setString(&cfg.Provisioning.Binary, "DPLY_K3D_BINARY")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		var parsed int
		if _, err := fmt.Sscanf(v, "%d", &parsed); err == nil {
			*dst = parsed
		}
	}
}
