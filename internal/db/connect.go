package db

import (
	"fmt"
	"regexp"

	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/zulandar/drydock/internal/config"
)

// DSN builds a MySQL DSN from its parts.
func DSN(user, password, host string, port int, database string) string {
	cred := user
	if password != "" {
		cred += ":" + password
	}
	return fmt.Sprintf("%s@tcp(%s:%d)/%s?parseTime=true", cred, host, port, database)
}

// Connect opens a GORM connection for the configured backend.
func Connect(cfg config.DatabaseConfig) (*gorm.DB, error) {
	switch cfg.Driver {
	case "mysql":
		dsn := cfg.DSN
		if dsn == "" {
			dsn = DSN(cfg.User, cfg.Password, cfg.Host, cfg.Port, cfg.Name)
		}
		db, err := gorm.Open(mysql.Open(dsn), gormConfig())
		if err != nil {
			return nil, fmt.Errorf("db: connect to %s:%d/%s: %w", cfg.Host, cfg.Port, cfg.Name, err)
		}
		return db, nil
	case "sqlite", "":
		return ConnectSQLite(cfg.Path)
	}
	return nil, fmt.Errorf("db: unsupported driver %q", cfg.Driver)
}

// ConnectSQLite opens a SQLite database file.
func ConnectSQLite(path string) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(path+"?_busy_timeout=5000"), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("db: open sqlite %s: %w", path, err)
	}
	return db, nil
}

var unsafeName = regexp.MustCompile(`[^A-Za-z0-9_]`)

// ConnectMemory opens a private in-memory SQLite database. All access goes
// through a single connection so the database lives as long as the handle.
func ConnectMemory(name string) (*gorm.DB, error) {
	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", unsafeName.ReplaceAllString(name, "_"))
	db, err := gorm.Open(sqlite.Open(dsn), gormConfig())
	if err != nil {
		return nil, fmt.Errorf("db: open memory %s: %w", name, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("db: memory handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func gormConfig() *gorm.Config {
	return &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	}
}
