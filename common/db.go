package common

import (
	"fmt"
	"log"
	"strings"
	"time"

	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

const maxOpenConns = 5

// ConnectDb opens the pool described by databaseURL. postgres:// and
// postgresql:// URLs use PostgreSQL; sqlite://<path>, sqlite:<path> or a bare
// path use SQLite.
func ConnectDb(databaseURL string) (*gorm.DB, error) {
	dialector, err := Dialector(databaseURL)
	if err != nil {
		return nil, err
	}

	db, err := gorm.Open(dialector, GormConfig())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("database handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(maxOpenConns)
	sqlDB.SetConnMaxIdleTime(5 * time.Minute)

	log.Println("opened", dialector.Name(), "database")
	return db, nil
}

func GormConfig() *gorm.Config {
	return &gorm.Config{
		TranslateError: true,
		NowFunc:        func() time.Time { return time.Now().UTC() },
		Logger:         logger.Default.LogMode(logger.Warn),
	}
}

func Dialector(databaseURL string) (gorm.Dialector, error) {
	switch {
	case databaseURL == "":
		return nil, fmt.Errorf("empty database url")
	case strings.HasPrefix(databaseURL, "postgres://"), strings.HasPrefix(databaseURL, "postgresql://"):
		return postgres.Open(databaseURL), nil
	case strings.HasPrefix(databaseURL, "sqlite://"):
		return sqlite.Open(SQLiteDSN(strings.TrimPrefix(databaseURL, "sqlite://"))), nil
	case strings.HasPrefix(databaseURL, "sqlite:"):
		return sqlite.Open(SQLiteDSN(strings.TrimPrefix(databaseURL, "sqlite:"))), nil
	case strings.Contains(databaseURL, "://"):
		return nil, fmt.Errorf("unsupported database url scheme: %s", strings.SplitN(databaseURL, "://", 2)[0])
	default:
		return sqlite.Open(SQLiteDSN(databaseURL)), nil
	}
}

// SQLiteDSN appends the connection options every SQLite connection in the
// pool needs: case-sensitive LIKE, enforced foreign keys and a busy timeout.
func SQLiteDSN(path string) string {
	opts := "_case_sensitive_like=1&_foreign_keys=1&_busy_timeout=5000"
	if strings.Contains(path, "?") {
		return path + "&" + opts
	}
	return path + "?" + opts
}
