package database

import (
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	mysqlerr "github.com/go-sql-driver/mysql"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type uniqueRow struct {
	ID   string `gorm:"primaryKey"`
	Code string `gorm:"uniqueIndex"`
}

func TestIsDuplicateKey_DriverErrors(t *testing.T) {
	assert.False(t, IsDuplicateKey(nil))
	assert.False(t, IsDuplicateKey(errors.New("boom")))
	assert.True(t, IsDuplicateKey(&mysqlerr.MySQLError{Number: 1062}))
	assert.False(t, IsDuplicateKey(&mysqlerr.MySQLError{Number: 1045}))
	assert.True(t, IsDuplicateKey(fmt.Errorf("create: %w", &pgconn.PgError{Code: "23505"})))
	assert.False(t, IsDuplicateKey(&pgconn.PgError{Code: "40001"}))
}

func TestIsDuplicateKey_SQLite(t *testing.T) {
	db, err := Open(Options{Driver: DriverSQLite, DSN: filepath.Join(t.TempDir(), "dup.db")})
	require.NoError(t, err)
	require.NoError(t, db.AutoMigrate(&uniqueRow{}))

	require.NoError(t, db.Create(&uniqueRow{ID: "1", Code: "A"}).Error)
	err = db.Create(&uniqueRow{ID: "2", Code: "A"}).Error
	require.Error(t, err)
	assert.True(t, IsDuplicateKey(err))
}

func TestOpen_UnknownDriver(t *testing.T) {
	_, err := Open(Options{Driver: "oracle", DSN: "x"})
	require.Error(t, err)
}
