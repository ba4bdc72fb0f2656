package app

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"

	"github.com/shrimpsizemoose/trekker/logger"

	"github.com/sqlroom/sqlroom/internal/engine"
	"github.com/sqlroom/sqlroom/internal/schema"
)

type HeaderConfig struct {
	Name  string `toml:"name"`
	Value string `toml:"value"`
}

type Config struct {
	Server struct {
		Port string `toml:"port"`
	} `toml:"server"`

	API struct {
		UserIDHeader    string         `toml:"user_id_header"`
		RequiredHeaders []HeaderConfig `toml:"required_headers"`
	} `toml:"api"`

	Database struct {
		DSN           string `toml:"dsn"`
		MigrationsDir string `toml:"migrations_dir"`
	} `toml:"database"`

	MySQL engine.MySQLConfig `toml:"mysql"`

	Execution struct {
		// QueryTimeoutSeconds bounds every student query on both
		// backends. Zero disables the deadline.
		QueryTimeoutSeconds int `toml:"query_timeout_seconds"`
		// DBPrefixes are the provisioning prefixes tried when resolving
		// a course database name against SHOW DATABASES.
		DBPrefixes []string `toml:"db_prefixes"`
	} `toml:"execution"`

	Deploy struct {
		Grants schema.GrantConfig `toml:"grants"`
		// RedisURL enables a redis-backed advisory lock per namespace;
		// empty falls back to an in-process lock.
		RedisURL       string `toml:"redis_url"`
		LockTTLSeconds int    `toml:"lock_ttl_seconds"`
	} `toml:"deploy"`

	Grading struct {
		MySQLOrderSensitive  bool `toml:"mysql_order_sensitive"`
		SQLiteOrderSensitive bool `toml:"sqlite_order_sensitive"`
	} `toml:"grading"`

	Janitor struct {
		Enabled  bool   `toml:"enabled"`
		Schedule string `toml:"schedule"`
	} `toml:"janitor"`
}

func (c *Config) QueryTimeout() time.Duration {
	return time.Duration(c.Execution.QueryTimeoutSeconds) * time.Second
}

func (c *Config) LockTTL() time.Duration {
	if c.Deploy.LockTTLSeconds <= 0 {
		return 2 * time.Minute
	}
	return time.Duration(c.Deploy.LockTTLSeconds) * time.Second
}

func LoadConfig(path string) (*Config, error) {
	// Credentials come from the environment; .env is a convenience for
	// local runs and is allowed to be absent.
	if err := godotenv.Load(); err == nil {
		logger.Debug.Println("Loaded environment from .env")
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("error parsing config file %s: %w", path, err)
	}

	if config.Server.Port == "" {
		return nil, fmt.Errorf("server port is not specified in config, use a value like :9999")
	}

	applyEnvOverrides(&config)

	if config.MySQL.SharedDatabase == "" {
		config.MySQL.SharedDatabase = "sql_classroom"
	}
	return &config, nil
}

// applyEnvOverrides lets the environment win over the config file for the
// MySQL connection, which is how deployments supply credentials.
func applyEnvOverrides(config *Config) {
	if host := os.Getenv("MYSQL_HOST"); host != "" {
		config.MySQL.Host = host
	}
	if user := os.Getenv("MYSQL_USER"); user != "" {
		config.MySQL.User = user
	}
	if password := os.Getenv("MYSQL_PASSWORD"); password != "" {
		config.MySQL.Password = password
	}
	if port := os.Getenv("MYSQL_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			config.MySQL.Port = p
		}
	}
	if config.MySQL.Port == 0 {
		config.MySQL.Port = 3306
	}
}
