package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	BackendSQL    = "sql"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	HTTPAddr         string        `yaml:"http_addr"`
	GRPCAddr         string        `yaml:"grpc_addr"`
	LogLevel         string        `yaml:"log_level"`
	OperationTimeout time.Duration `yaml:"operation_timeout"`
	ShutdownTimeout  time.Duration `yaml:"shutdown_timeout"`
	Database         Database      `yaml:"database"`
	Redis            Redis         `yaml:"redis"`
	Inventory        Inventory     `yaml:"inventory"`
}

type Database struct {
	Driver          string        `yaml:"driver"`
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
}

type Redis struct {
	Addr     string `yaml:"addr"`
	PoolSize int    `yaml:"pool_size"`
}

type Inventory struct {
	// Backend selects where stock lives: sql, redis or memory.
	Backend string `yaml:"backend"`
}

func Default() Config {
	return Config{
		HTTPAddr:         ":8080",
		GRPCAddr:         ":50051",
		LogLevel:         "info",
		OperationTimeout: 5 * time.Second,
		ShutdownTimeout:  5 * time.Second,
		Database: Database{
			Driver:          "mysql",
			DSN:             "root:root@tcp(localhost:3306)/pos?parseTime=true",
			MaxOpenConns:    50,
			MaxIdleConns:    25,
			ConnMaxLifetime: 5 * time.Minute,
		},
		Redis: Redis{
			Addr:     "localhost:6379",
			PoolSize: 100,
		},
		Inventory: Inventory{Backend: BackendSQL},
	}
}

// Load reads the YAML file at path on top of the defaults, then applies
// environment overrides. An empty path skips the file.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("POS_HTTP_ADDR"); v != "" {
		cfg.HTTPAddr = v
	}
	if v := os.Getenv("POS_GRPC_ADDR"); v != "" {
		cfg.GRPCAddr = v
	}
	if v := os.Getenv("POS_DB_DRIVER"); v != "" {
		cfg.Database.Driver = v
	}
	if v := os.Getenv("MYSQL_DSN"); v != "" {
		cfg.Database.DSN = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("POS_INVENTORY_BACKEND"); v != "" {
		cfg.Inventory.Backend = v
	}
}

func (c Config) Validate() error {
	var errs []error

	switch c.Inventory.Backend {
	case BackendSQL, BackendRedis, BackendMemory:
	default:
		errs = append(errs, fmt.Errorf("inventory.backend: unknown backend %q", c.Inventory.Backend))
	}
	if c.Inventory.Backend != BackendMemory {
		switch c.Database.Driver {
		case "mysql", "sqlite3":
		default:
			errs = append(errs, fmt.Errorf("database.driver: unsupported driver %q", c.Database.Driver))
		}
		if c.Database.DSN == "" {
			errs = append(errs, errors.New("database.dsn: required"))
		}
	}
	if c.Inventory.Backend == BackendRedis && c.Redis.Addr == "" {
		errs = append(errs, errors.New("redis.addr: required for the redis backend"))
	}
	if c.OperationTimeout <= 0 {
		errs = append(errs, errors.New("operation_timeout: must be positive"))
	}

	return errors.Join(errs...)
}
