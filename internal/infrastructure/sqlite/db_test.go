package sqlite

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

// TestNewDB_CreatesDirectory verifies that NewDB creates the parent directory if missing.
func TestNewDB_CreatesDirectory(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "subdir", "nested", DefaultFileName)

	db, err := NewDB(dbPath)
	require.NoError(t, err, "NewDB should succeed even with nested non-existent directories")
	defer db.Close()

	info, err := os.Stat(filepath.Dir(dbPath))
	require.NoError(t, err, "Directory should exist after NewDB")
	require.True(t, info.IsDir())

	if runtime.GOOS != "windows" {
		require.Equal(t, os.FileMode(0o700), info.Mode().Perm(), "Directory should have 0700 permissions")
	}
}

func TestNewDB_RunsMigrations(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), DefaultFileName))
	require.NoError(t, err)
	defer db.Close()

	for _, table := range []string{"connections", "contexts", "selection", migrationsTable} {
		var name string
		err = db.conn.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?", table,
		).Scan(&name)
		require.NoError(t, err, "%s table should exist after migrations", table)
	}

	var version int
	var dirty bool
	require.NoError(t, db.conn.QueryRow("SELECT version, dirty FROM "+migrationsTable).Scan(&version, &dirty))
	require.Equal(t, 1, version)
	require.False(t, dirty)
}

// TestNewDB_BackupOnlyBeforePendingMigrations verifies that reopening an
// up-to-date database does not write a backup, while a database with pending
// migrations is backed up first.
func TestNewDB_BackupOnlyBeforePendingMigrations(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), DefaultFileName)

	db1, err := NewDB(dbPath)
	require.NoError(t, err)
	require.NoError(t, db1.Close())

	db2, err := NewDB(dbPath)
	require.NoError(t, err)
	require.NoError(t, db2.Close())
	_, err = os.Stat(dbPath + ".bak")
	require.ErrorIs(t, err, os.ErrNotExist, "no backup when nothing is pending")

	// Roll the schema back so the next open has a migration to run.
	db3, err := NewDB(dbPath)
	require.NoError(t, err)
	_, err = db3.conn.Exec("DELETE FROM " + migrationsTable)
	require.NoError(t, err)
	_, err = db3.conn.Exec("DROP TABLE selection; DROP TABLE contexts; DROP TABLE connections;")
	require.NoError(t, err)
	require.NoError(t, db3.Close())

	db4, err := NewDB(dbPath)
	require.NoError(t, err)
	defer db4.Close()
	_, err = os.Stat(dbPath + ".bak")
	require.NoError(t, err, "backup should exist before pending migrations run")
}

func TestNewDB_Pragmas(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), DefaultFileName))
	require.NoError(t, err)
	defer db.Close()

	var journalMode string
	require.NoError(t, db.conn.QueryRow("PRAGMA journal_mode").Scan(&journalMode))
	require.Equal(t, "wal", journalMode)

	var foreignKeys int
	require.NoError(t, db.conn.QueryRow("PRAGMA foreign_keys").Scan(&foreignKeys))
	require.Equal(t, 1, foreignKeys)

	var busyTimeout int
	require.NoError(t, db.conn.QueryRow("PRAGMA busy_timeout").Scan(&busyTimeout))
	require.Equal(t, 5000, busyTimeout)
}

func TestDB_Close(t *testing.T) {
	db, err := NewDB(filepath.Join(t.TempDir(), DefaultFileName))
	require.NoError(t, err)

	require.NoError(t, db.Close())
	require.Error(t, db.conn.Ping(), "Ping should fail after Close")
}

func TestNewDB_MultipleHandles(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), DefaultFileName)

	db1, err := NewDB(dbPath)
	require.NoError(t, err)
	defer db1.Close()

	db2, err := NewDB(dbPath)
	require.NoError(t, err, "Second NewDB should succeed (WAL mode allows concurrent access)")
	defer db2.Close()
}

func TestMigrationDriver_Lock(t *testing.T) {
	d := newMigrationDriver(nil)
	require.NoError(t, d.Lock())
	require.Error(t, d.Lock())
	require.NoError(t, d.Unlock())
	require.Error(t, d.Unlock())
}
