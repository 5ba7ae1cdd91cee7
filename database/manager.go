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
	"database/sql"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/jackc/pgx/v5/stdlib"
	_ "github.com/lib/pq"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/dialect/mysqldialect"
	"github.com/uptrace/bun/dialect/pgdialect"
	"github.com/uptrace/bun/dialect/sqlitedialect"
	"github.com/uptrace/bun/driver/sqliteshim"
	"github.com/uptrace/bun/extra/bundebug"
	"github.com/uptrace/bun/schema"
)

// opener resolves the database/sql driver, DSN and Bun dialect of a
// connection type.
type opener func(cfg *ConnectionConfig) (driverName, dsn string, dialect schema.Dialect)

var openers = map[string]opener{
	"mysql":      openMySQL,
	"postgres":   openPostgres("postgres"),
	"postgresql": openPostgres("postgres"),
	"pgx":        openPostgres("pgx"),
	"sqlite":     openSQLite,
	"sqlite3":    openSQLite,
}

func openMySQL(cfg *ConnectionConfig) (string, string, schema.Dialect) {
	dsn := fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local&timeout=%s&readTimeout=%s&writeTimeout=%s",
		cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.DBName,
		cfg.ConnectTimeout, cfg.ReadTimeout, cfg.WriteTimeout)
	return "mysql", dsn, mysqldialect.New()
}

// openPostgres serves lib/pq ("postgres") and the pgx stdlib driver ("pgx");
// both accept the URL form.
func openPostgres(driverName string) opener {
	return func(cfg *ConnectionConfig) (string, string, schema.Dialect) {
		sslMode := cfg.SSLMode
		if sslMode == "" {
			sslMode = "disable"
		}
		dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s&connect_timeout=%d",
			cfg.Username, cfg.Password, cfg.Host, cfg.Port, cfg.DBName,
			sslMode, int(cfg.ConnectTimeout.Seconds()))
		return driverName, dsn, pgdialect.New()
	}
}

func openSQLite(cfg *ConnectionConfig) (string, string, schema.Dialect) {
	return sqliteshim.ShimName, sqliteDSN(cfg.DBName), sqlitedialect.New()
}

// sqliteDSN keeps in-memory and URI names as they are and maps a bare name to
// a "<name>.db" file.
func sqliteDSN(name string) string {
	switch {
	case name == "" || name == ":memory:":
		return "file::memory:?cache=shared"
	case strings.HasPrefix(name, "file:"), strings.HasSuffix(name, ".db"), strings.HasSuffix(name, ".sqlite"):
		return name
	default:
		return name + ".db"
	}
}

// defaultDatabaseManager owns one Bun handle. Every table explorer built on
// it reads the handle through GetDB, so a reconnect is picked up by the next
// query.
type defaultDatabaseManager struct {
	config *ConnectionConfig
	logger Logger

	mu             sync.RWMutex
	db             *bun.DB
	sqlDB          *sql.DB
	reconnectTries int
	stopHealth     context.CancelFunc
}

// NewDatabaseManager uses DefaultConnectionConfig when config is nil.
func NewDatabaseManager(config *ConnectionConfig) AbstractDatabaseManager {
	if config == nil {
		config = DefaultConnectionConfig()
	}
	return &defaultDatabaseManager{config: config, logger: GetLogger()}
}

func (dm *defaultDatabaseManager) Connect(ctx context.Context) error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.db != nil {
		return nil
	}

	db, err := dm.open()
	if err != nil {
		return fmt.Errorf("failed to create database connection: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, dm.config.ConnectTimeout)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return fmt.Errorf("database connection test failed: %w", err)
	}

	dm.db, dm.sqlDB = db, db.DB
	if dm.config.HealthCheckInterval > 0 && dm.stopHealth == nil {
		dm.startHealthCheck()
	}
	dm.logger.Info("Database connected successfully", "type", dm.config.Type, "host", dm.config.Host, "dbname", dm.config.DBName)
	return nil
}

// open creates the pooled handle with the configured query hooks.
func (dm *defaultDatabaseManager) open() (*bun.DB, error) {
	if dm.config.ConnectTimeout <= 0 {
		dm.config.ConnectTimeout = 30 * time.Second
	}
	open, ok := openers[dm.config.Type]
	if !ok {
		return nil, fmt.Errorf("unsupported database type: %s", dm.config.Type)
	}
	driverName, dsn, dialect := open(dm.config)
	sqlDB, err := sql.Open(driverName, dsn)
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxIdleConns(dm.config.MaxIdleConns)
	sqlDB.SetMaxOpenConns(dm.config.MaxOpenConns)
	sqlDB.SetConnMaxLifetime(dm.config.ConnMaxLifetime)
	sqlDB.SetConnMaxIdleTime(dm.config.ConnMaxIdleTime)

	db := bun.NewDB(sqlDB, dialect)
	if dm.config.EnableQueryLog {
		db.AddQueryHook(bundebug.NewQueryHook(bundebug.WithVerbose(true), bundebug.FromEnv("BUNDEBUG")))
	} else {
		db.AddQueryHook(NewErrorQueryHook(os.Stderr))
	}
	if dm.config.SlowQueryTime > 0 {
		db.AddQueryHook(NewSlowQueryHook(dm.config.SlowQueryTime, dm.logger))
	}
	return db, nil
}

// Disconnect closes the handle. The health check loop keeps running so that
// it can bring the connection back when reconnect is enabled; Close stops it.
func (dm *defaultDatabaseManager) Disconnect() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	return dm.closeLocked()
}

func (dm *defaultDatabaseManager) closeLocked() error {
	if dm.db == nil {
		return nil
	}
	err := dm.db.Close()
	dm.db, dm.sqlDB = nil, nil
	if err != nil {
		dm.logger.Error("Failed to close database connection", "error", err)
		return err
	}
	dm.logger.Info("Database connection closed")
	return nil
}

// Close disconnects and stops the health check loop.
func (dm *defaultDatabaseManager) Close() error {
	dm.mu.Lock()
	defer dm.mu.Unlock()
	if dm.stopHealth != nil {
		dm.stopHealth()
		dm.stopHealth = nil
	}
	return dm.closeLocked()
}

func (dm *defaultDatabaseManager) Reconnect(ctx context.Context) error {
	dm.logger.Info("Attempting to reconnect to the database")
	if err := dm.Disconnect(); err != nil {
		dm.logger.Warn("Error disconnecting existing connection", "error", err)
	}
	return dm.Connect(ctx)
}

func (dm *defaultDatabaseManager) Ping(ctx context.Context) error {
	db := dm.GetDB()
	if db == nil {
		return fmt.Errorf("database not connected")
	}
	return db.PingContext(ctx)
}

func (dm *defaultDatabaseManager) GetDB() *bun.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.db
}

func (dm *defaultDatabaseManager) GetSQLDB() *sql.DB {
	dm.mu.RLock()
	defer dm.mu.RUnlock()
	return dm.sqlDB
}

func (dm *defaultDatabaseManager) HealthCheck(ctx context.Context) *HealthStatus {
	dm.mu.RLock()
	db, sqlDB := dm.db, dm.sqlDB
	dm.mu.RUnlock()

	start := time.Now()
	status := &HealthStatus{LastCheckTime: start}
	if db == nil {
		status.LastError = "Database not initialized"
		return status
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	err := db.PingContext(pingCtx)
	status.ResponseTime = time.Since(start)
	if err != nil {
		status.LastError = err.Error()
	} else {
		status.Healthy, status.Connected = true, true
	}

	stats := sqlDB.Stats()
	status.ActiveConns = stats.InUse
	status.IdleConns = stats.Idle
	status.MaxOpenConns = stats.MaxOpenConnections
	return status
}

// startHealthCheck must be called with dm.mu held.
func (dm *defaultDatabaseManager) startHealthCheck() {
	ctx, cancel := context.WithCancel(context.Background())
	dm.stopHealth = cancel
	go func() {
		ticker := time.NewTicker(dm.config.HealthCheckInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				checkCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
				status := dm.HealthCheck(checkCtx)
				cancel()
				if !status.Healthy && dm.config.EnableReconnect {
					dm.handleReconnect(ctx)
				}
			}
		}
	}()
}

func (dm *defaultDatabaseManager) handleReconnect(ctx context.Context) {
	dm.mu.Lock()
	if dm.reconnectTries >= dm.config.MaxReconnectTries {
		dm.mu.Unlock()
		dm.logger.Error("Max reconnect attempts reached, stopping", "tries", dm.config.MaxReconnectTries)
		return
	}
	dm.reconnectTries++
	try := dm.reconnectTries
	dm.mu.Unlock()

	dm.logger.Info("Starting database reconnect", "try", try)
	select {
	case <-ctx.Done():
		return
	case <-time.After(dm.config.ReconnectInterval):
	}

	reconnectCtx, cancel := context.WithTimeout(ctx, dm.config.ConnectTimeout)
	defer cancel()
	if err := dm.Reconnect(reconnectCtx); err != nil {
		dm.logger.Error("Reconnect failed", "error", err, "try", try)
		return
	}
	dm.mu.Lock()
	dm.reconnectTries = 0
	dm.mu.Unlock()
	dm.logger.Info("Reconnect succeeded")
}

func (dm *defaultDatabaseManager) GetStats() *DBStats {
	sqlDB := dm.GetSQLDB()
	if sqlDB == nil {
		return &DBStats{}
	}
	stats := sqlDB.Stats()
	return &DBStats{
		MaxOpenConns:      stats.MaxOpenConnections,
		OpenConns:         stats.OpenConnections,
		InUse:             stats.InUse,
		Idle:              stats.Idle,
		WaitCount:         stats.WaitCount,
		WaitDuration:      stats.WaitDuration,
		MaxIdleClosed:     stats.MaxIdleClosed,
		MaxIdleTimeClosed: stats.MaxIdleTimeClosed,
		MaxLifetimeClosed: stats.MaxLifetimeClosed,
	}
}

func (dm *defaultDatabaseManager) SetLogger(logger Logger) {
	if logger == nil {
		logger = NopLogger{}
	}
	dm.mu.Lock()
	defer dm.mu.Unlock()
	dm.logger = logger
}
