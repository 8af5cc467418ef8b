package config

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so YAML values like "5m" parse naturally.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := time.ParseDuration(value.Value)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", value.Value, err)
	}
	*d = Duration(parsed)
	return nil
}

func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

// Config aggregates all daemon configuration.
type Config struct {
	HTTP         HTTPConfig         `yaml:"http"`
	Log          LogConfig          `yaml:"log"`
	Database     DatabaseConfig     `yaml:"database"`
	Secrets      SecretsConfig      `yaml:"secrets"`
	Auth         AuthConfig         `yaml:"auth"`
	Provisioning ProvisioningConfig `yaml:"provisioning"`
}

type HTTPConfig struct {
	Port int `yaml:"port"`
}

type LogConfig struct {
	// Level is one of debug, info, warn, error.
	Level string `yaml:"level"`
	// Format is text or json.
	Format string `yaml:"format"`
}

// DatabaseConfig describes the Postgres connection. An empty Host selects
// the in-memory store (development mode).
type DatabaseConfig struct {
	Host     string `yaml:"host"`
	Port     string `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
}

// Enabled reports whether a Postgres connection is configured.
func (c DatabaseConfig) Enabled() bool {
	return c.Host != ""
}

// DSN renders the connection string for the postgres driver.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%s user=%s password=%s dbname=%s sslmode=disable",
		c.Host, c.Port, c.User, c.Password, c.Name,
	)
}

type SecretsConfig struct {
	// Dir is where encrypted credential blobs are written.
	Dir string `yaml:"dir"`
	// MasterKeyEnv names the environment variable holding the AES master
	// key. The key itself never appears in config files.
	MasterKeyEnv string `yaml:"masterKeyEnv"`
}

type AuthConfig struct {
	JWTSecret string   `yaml:"jwtSecret"`
	TokenTTL  Duration `yaml:"tokenTTL"`
}

type ProvisioningConfig struct {
	// Binary is the cluster-lifecycle CLI, k3d by default.
	Binary string `yaml:"binary"`
	// Attempts is the provisioning retry budget.
	Attempts int `yaml:"attempts"`
	// CreateTimeout bounds cluster creation, KubeconfigTimeout bounds
	// credential retrieval.
	CreateTimeout     Duration `yaml:"createTimeout"`
	KubeconfigTimeout Duration `yaml:"kubeconfigTimeout"`
}
