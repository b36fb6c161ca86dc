// Package dbtest opens migrated throwaway databases for tests.
package dbtest

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"quill/common"
	"quill/database"
	"quill/models"
)

// Open returns a migrated SQLite database stored under t.TempDir().
func Open(t testing.TB) *gorm.DB {
	t.Helper()

	path := filepath.Join(t.TempDir(), "test.db")
	db, err := gorm.Open(sqlite.Open(common.SQLiteDSN(path)), common.GormConfig())
	require.NoError(t, err, "failed to connect database")
	require.NoError(t, database.RunMigrations(db))

	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// CreateUser inserts a user with a fixed, non-verifiable password hash.
func CreateUser(t testing.TB, db *gorm.DB, id, username string) *models.User {
	t.Helper()

	user := &models.User{
		ID:           id,
		Username:     username,
		PasswordHash: "hashedpassword",
		CreatedAt:    time.Now().UTC(),
	}
	require.NoError(t, db.Create(user).Error)
	return user
}
