package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"sync/atomic"

	"github.com/golang-migrate/migrate/v4/database"
)

const migrationsTable = "schema_migrations"

// migrationDriver runs golang-migrate migrations against an already open
// *sql.DB, whatever driver opened it.
type migrationDriver struct {
	conn   *sql.DB
	locked atomic.Bool
}

var _ database.Driver = (*migrationDriver)(nil)

func newMigrationDriver(conn *sql.DB) *migrationDriver {
	return &migrationDriver{conn: conn}
}

func (d *migrationDriver) Open(string) (database.Driver, error) {
	return nil, errors.New("open by URL is not supported; use an existing connection")
}

// Close leaves the connection open; DB owns it.
func (d *migrationDriver) Close() error {
	return nil
}

func (d *migrationDriver) Lock() error {
	if !d.locked.CompareAndSwap(false, true) {
		return database.ErrLocked
	}
	return nil
}

func (d *migrationDriver) Unlock() error {
	if !d.locked.CompareAndSwap(true, false) {
		return database.ErrNotLocked
	}
	return nil
}

func (d *migrationDriver) Run(migration io.Reader) error {
	query, err := io.ReadAll(migration)
	if err != nil {
		return err
	}
	if _, err := d.conn.ExecContext(context.Background(), string(query)); err != nil {
		return database.Error{OrigErr: err, Err: "migration failed", Query: query}
	}
	return nil
}

func (d *migrationDriver) ensureVersionTable(ctx context.Context) error {
	_, err := d.conn.ExecContext(ctx,
		`CREATE TABLE IF NOT EXISTS `+migrationsTable+` (version INTEGER NOT NULL, dirty INTEGER NOT NULL)`)
	return err
}

func (d *migrationDriver) SetVersion(version int, dirty bool) error {
	ctx := context.Background()
	if err := d.ensureVersionTable(ctx); err != nil {
		return err
	}
	tx, err := d.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM `+migrationsTable); err != nil {
		return err
	}
	if version >= 0 || (version == database.NilVersion && dirty) {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO `+migrationsTable+` (version, dirty) VALUES (?, ?)`, version, dirty); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (d *migrationDriver) Version() (int, bool, error) {
	ctx := context.Background()
	if err := d.ensureVersionTable(ctx); err != nil {
		return database.NilVersion, false, err
	}
	var version int
	var dirty bool
	err := d.conn.QueryRowContext(ctx, `SELECT version, dirty FROM `+migrationsTable+` LIMIT 1`).
		Scan(&version, &dirty)
	if errors.Is(err, sql.ErrNoRows) {
		return database.NilVersion, false, nil
	}
	if err != nil {
		return database.NilVersion, false, err
	}
	return version, dirty, nil
}

func (d *migrationDriver) Drop() error {
	ctx := context.Background()
	rows, err := d.conn.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%'`)
	if err != nil {
		return err
	}
	var tables []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			_ = rows.Close()
			return err
		}
		tables = append(tables, name)
	}
	_ = rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}
	for _, name := range tables {
		if _, err := d.conn.ExecContext(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %q", name)); err != nil {
			return err
		}
	}
	return nil
}
