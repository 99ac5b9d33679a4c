package migration

import (
	"io"
	"os"
	"strings"
	"testing"

	"github.com/glebarez/sqlite"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestEmbeddedMigrationsPairUpAndDown(t *testing.T) {
	src, err := Source()
	require.NoError(t, err)
	defer src.Close()

	version, err := src.First()
	require.NoError(t, err)
	var versions []uint
	for {
		versions = append(versions, version)

		up, _, err := src.ReadUp(version)
		require.NoError(t, err)
		body, err := io.ReadAll(up)
		require.NoError(t, err)
		up.Close()
		assert.NotEmpty(t, strings.TrimSpace(string(body)))

		down, _, err := src.ReadDown(version)
		require.NoError(t, err, "version %d has no down migration", version)
		down.Close()

		version, err = src.Next(version)
		if err != nil {
			require.ErrorIs(t, err, os.ErrNotExist)
			break
		}
	}
	assert.Equal(t, []uint{1, 2, 3}, versions)
}

func TestEmbeddedMigrationsCreateEveryModelTable(t *testing.T) {
	src, err := Source()
	require.NoError(t, err)
	defer src.Close()

	var schema strings.Builder
	for version, err := src.First(); err == nil; version, err = src.Next(version) {
		up, _, readErr := src.ReadUp(version)
		require.NoError(t, readErr)
		body, readErr := io.ReadAll(up)
		require.NoError(t, readErr)
		up.Close()
		schema.Write(body)
	}

	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	for _, model := range Models() {
		stmt := &gorm.Statement{DB: conn}
		require.NoError(t, stmt.Parse(model))
		assert.Contains(t, schema.String(), "CREATE TABLE IF NOT EXISTS "+stmt.Schema.Table+" (", stmt.Schema.Table)
	}
}

func TestAutoMigrateCreatesTables(t *testing.T) {
	conn, err := gorm.Open(sqlite.Open("file::memory:"), &gorm.Config{})
	require.NoError(t, err)
	sqlDB, err := conn.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, AutoMigrate(conn))
	for _, table := range []string{"claims", "claim_items", "claim_charges", "claim_attachments", "claim_adjustments", "gap_payments", "claim_audit_logs"} {
		assert.True(t, conn.Migrator().HasTable(table), table)
	}
	require.NoError(t, AutoMigrate(conn))
}
