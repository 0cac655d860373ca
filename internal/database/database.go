package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
)

// NewDatabase opens the database selected by driver and dsn.
func NewDatabase(driver, dsn string, logger *logrus.Logger) (*gorm.DB, error) {
	cfg := &gorm.Config{
		Logger: gormlogger.New(logger, gormlogger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  gormlogger.Warn,
			IgnoreRecordNotFoundError: true,
		}),
	}

	switch driver {
	case DriverPostgres:
		return gorm.Open(postgres.Open(dsn), cfg)
	case DriverSQLite, "":
		var params []string
		if !strings.HasPrefix(dsn, "file:") && dsn != ":memory:" {
			if err := os.MkdirAll(filepath.Dir(dsn), 0755); err != nil {
				return nil, fmt.Errorf("failed to create database directory: %w", err)
			}
			// readers keep going while a writer holds the lock
			params = append(params, "_journal_mode=WAL")
		}
		sqlDB, err := openSQLite(dsn, params...)
		if err != nil {
			return nil, err
		}
		return gorm.Open(sqlite.New(sqlite.Config{Conn: sqlDB}), cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", driver)
	}
}

// NewTestDB returns an isolated in-memory sqlite database. Its single
// connection serializes transactions like a single-writer store.
func NewTestDB() (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	sqlDB, err := openSQLite(dsn)
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)
	sqlDB.SetMaxIdleConns(1)
	sqlDB.SetConnMaxLifetime(0)

	return gorm.Open(sqlite.New(sqlite.Config{Conn: sqlDB}), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
}

// openSQLite opens dsn with foreign keys on. Transactions begin IMMEDIATE so
// a second writer waits for the busy timeout instead of failing when it
// tries to upgrade its read lock.
func openSQLite(dsn string, params ...string) (*sql.DB, error) {
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	params = append([]string{"_foreign_keys=1", "_busy_timeout=5000", "_txlock=immediate"}, params...)
	sqlDB, err := sql.Open("sqlite3", dsn+sep+strings.Join(params, "&"))
	if err != nil {
		return nil, err
	}
	if err := sqlDB.Ping(); err != nil {
		sqlDB.Close()
		return nil, err
	}
	return sqlDB, nil
}

// Close releases the underlying connection pool.
func Close(db *gorm.DB) error {
	sqlDB, err := db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
