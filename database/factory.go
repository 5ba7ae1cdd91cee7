/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package database

import (
	"context"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/uptrace/bun"
)

// BaseDatabaseFactory builds the manager the mapper explores tables through
// and keeps it for the package level helpers in conn.go.
type BaseDatabaseFactory struct {
	manager AbstractDatabaseManager
	logger  Logger
}

func NewDatabaseFactory() *BaseDatabaseFactory {
	return &BaseDatabaseFactory{logger: GetLogger()}
}

var supportedTypes = []string{"mysql", "postgres", "postgresql", "pgx", "sqlite", "sqlite3"}

// envBinding applies one environment variable to a connection config.
type envBinding struct {
	name  string
	apply func(cfg *ConnectionConfig, value string) error
}

func stringEnv(name string, field func(*ConnectionConfig) *string) envBinding {
	return envBinding{name: name, apply: func(cfg *ConnectionConfig, v string) error {
		*field(cfg) = v
		return nil
	}}
}

func intEnv(name string, field func(*ConnectionConfig) *int) envBinding {
	return envBinding{name: name, apply: func(cfg *ConnectionConfig, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(cfg) = n
		return nil
	}}
}

// secondsEnv reads a whole number of seconds.
func secondsEnv(name string, field func(*ConnectionConfig) *time.Duration) envBinding {
	return envBinding{name: name, apply: func(cfg *ConnectionConfig, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return err
		}
		*field(cfg) = time.Duration(n) * time.Second
		return nil
	}}
}

func boolEnv(name string, field func(*ConnectionConfig) *bool) envBinding {
	return envBinding{name: name, apply: func(cfg *ConnectionConfig, v string) error {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return err
		}
		*field(cfg) = b
		return nil
	}}
}

var connectionEnv = []envBinding{
	stringEnv("DB_TYPE", func(c *ConnectionConfig) *string { return &c.Type }),
	stringEnv("DB_HOST", func(c *ConnectionConfig) *string { return &c.Host }),
	intEnv("DB_PORT", func(c *ConnectionConfig) *int { return &c.Port }),
	stringEnv("DB_USERNAME", func(c *ConnectionConfig) *string { return &c.Username }),
	stringEnv("DB_PASSWORD", func(c *ConnectionConfig) *string { return &c.Password }),
	stringEnv("DB_NAME", func(c *ConnectionConfig) *string { return &c.DBName }),
	stringEnv("DB_SSLMODE", func(c *ConnectionConfig) *string { return &c.SSLMode }),
	intEnv("DB_MAX_IDLE_CONNS", func(c *ConnectionConfig) *int { return &c.MaxIdleConns }),
	intEnv("DB_MAX_OPEN_CONNS", func(c *ConnectionConfig) *int { return &c.MaxOpenConns }),
	secondsEnv("DB_CONN_MAX_LIFETIME", func(c *ConnectionConfig) *time.Duration { return &c.ConnMaxLifetime }),
	boolEnv("DB_ENABLE_RECONNECT", func(c *ConnectionConfig) *bool { return &c.EnableReconnect }),
	secondsEnv("DB_RECONNECT_INTERVAL", func(c *ConnectionConfig) *time.Duration { return &c.ReconnectInterval }),
	boolEnv("DB_ENABLE_QUERY_LOG", func(c *ConnectionConfig) *bool { return &c.EnableQueryLog }),
}

// CreateFromFile loads a YAML file and creates a manager from its connection
// section. DB_FOREIGN_KEY_FILE overrides the conventions foreign key file.
func (f *BaseDatabaseFactory) CreateFromFile(path string) (AbstractDatabaseManager, *Config, error) {
	cfg, err := LoadConfig(path)
	if err != nil {
		return nil, nil, err
	}
	if file := os.Getenv("DB_FOREIGN_KEY_FILE"); file != "" {
		cfg.ConventionsConfig.ForeignKeyFile = file
	}
	manager, err := f.CreateFromConfig(&cfg.ConnectionConfig)
	if err != nil {
		return nil, nil, err
	}
	return manager, cfg, nil
}

// CreateFromConfig applies the DB_* environment on top of cfg, which wins
// over file and code values, and creates a manager using the factory logger.
func (f *BaseDatabaseFactory) CreateFromConfig(cfg *ConnectionConfig) (AbstractDatabaseManager, error) {
	if cfg == nil {
		return nil, fmt.Errorf("database configuration cannot be empty")
	}
	f.overrideFromEnv(cfg)

	cfg.Type = strings.ToLower(cfg.Type)
	if !slices.Contains(supportedTypes, cfg.Type) {
		return nil, fmt.Errorf("unsupported database type: %s, supported types: %v", cfg.Type, supportedTypes)
	}

	manager := NewDatabaseManager(cfg)
	manager.SetLogger(f.logger)
	f.manager = manager
	return manager, nil
}

// overrideFromEnv skips malformed values with a warning instead of failing.
func (f *BaseDatabaseFactory) overrideFromEnv(cfg *ConnectionConfig) {
	for _, b := range connectionEnv {
		v, ok := os.LookupEnv(b.name)
		if !ok || v == "" {
			continue
		}
		if err := b.apply(cfg, v); err != nil {
			f.logger.Warn("Ignoring invalid database environment value", "name", b.name, "error", err)
		}
	}
}

// InitializeDatabase connects the manager created last.
func (f *BaseDatabaseFactory) InitializeDatabase(ctx context.Context) error {
	if f.manager == nil {
		return fmt.Errorf("database manager not created")
	}
	if err := f.manager.Connect(ctx); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	f.logger.Info("Database initialization completed")
	return nil
}

func (f *BaseDatabaseFactory) GetManager() AbstractDatabaseManager {
	return f.manager
}

// GetDB returns nil before a manager is created.
func (f *BaseDatabaseFactory) GetDB() *bun.DB {
	if f.manager == nil {
		return nil
	}
	return f.manager.GetDB()
}

// SetLogger also replaces the logger of the current manager.
func (f *BaseDatabaseFactory) SetLogger(logger Logger) {
	f.logger = logger
	if f.manager != nil {
		f.manager.SetLogger(logger)
	}
}

func (f *BaseDatabaseFactory) Close() error {
	if f.manager == nil {
		return nil
	}
	return f.manager.Close()
}

func (f *BaseDatabaseFactory) GetHealthStatus(ctx context.Context) *HealthStatus {
	if f.manager == nil {
		return &HealthStatus{LastError: "Database manager not initialized", LastCheckTime: time.Now()}
	}
	return f.manager.HealthCheck(ctx)
}

func (f *BaseDatabaseFactory) GetStats() *DBStats {
	if f.manager == nil {
		return &DBStats{}
	}
	return f.manager.GetStats()
}
