package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/zjrosen/cqlconn/internal/connections/domain"
	"github.com/zjrosen/cqlconn/internal/log"
	"github.com/zjrosen/cqlconn/internal/watcher"
)

// DefaultFileName is the database file name used under a config directory.
const DefaultFileName = "connections.db"

// Store implements domain.StateStore over the connections, contexts, and
// selection tables. Each Save replaces all rows in one transaction and
// stamps a new revision GUID.
type Store struct {
	db  *DB
	now func() time.Time
}

var _ domain.StateStore = (*Store)(nil)

// Open opens the database at path and returns a store over it.
func Open(path string) (*Store, error) {
	db, err := NewDB(path)
	if err != nil {
		return nil, err
	}
	return NewStore(db), nil
}

// NewStore returns a store over an open database. Closing the store closes db.
func NewStore(db *DB) *Store {
	return &Store{db: db, now: time.Now}
}

// Load reads all rows. A database that has never been saved to yields a
// nil state.
func (s *Store) Load(ctx context.Context) (*domain.State, error) {
	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	sel, err := scanSelection(tx.QueryRowContext(ctx,
		`SELECT current_connection, revision, updated_at FROM selection WHERE id = 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query selection: %w", err)
	}

	conns, err := queryConnections(ctx, tx)
	if err != nil {
		return nil, err
	}
	contexts, err := queryContexts(ctx, tx)
	if err != nil {
		return nil, err
	}
	log.Debug(log.CatStore, "Loaded state rows", "connections", len(conns),
		"contexts", len(contexts), "revision", sel.Revision)
	return toState(conns, contexts, sel), nil
}

// Save replaces the stored state.
func (s *Store) Save(ctx context.Context, state *domain.State) error {
	if state == nil {
		state = domain.NewState()
	}
	conns, contexts := toModels(state)
	sel := SelectionModel{
		CurrentConnection: nullableString(state.CurrentConnection),
		Revision:          uuid.New().String(),
		UpdatedAt:         s.now().Unix(),
	}

	tx, err := s.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Contexts go with their connections via ON DELETE CASCADE.
	if _, err := tx.ExecContext(ctx, `DELETE FROM connections`); err != nil {
		return fmt.Errorf("failed to clear connections: %w", err)
	}
	for _, m := range conns {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO connections (name, endpoint, position) VALUES (?, ?, ?)`,
			m.Name, m.Endpoint, m.Position,
		); err != nil {
			return fmt.Errorf("failed to insert connection %q: %w", m.Name, err)
		}
	}
	for _, m := range contexts {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO contexts (connection_name, context_key, resource_type, resource_id, resource_display)
			 VALUES (?, ?, ?, ?, ?)`,
			m.ConnectionName, m.ContextKey, m.ResourceType, m.ResourceID, m.ResourceDisplay,
		); err != nil {
			return fmt.Errorf("failed to insert context %q: %w", m.ContextKey, err)
		}
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO selection (id, current_connection, revision, updated_at) VALUES (1, ?, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET
			current_connection = excluded.current_connection,
			revision = excluded.revision,
			updated_at = excluded.updated_at`,
		sel.CurrentConnection, sel.Revision, sel.UpdatedAt,
	); err != nil {
		return fmt.Errorf("failed to update selection: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	log.Debug(log.CatStore, "Saved state rows", "connections", len(conns), "revision", sel.Revision)
	return nil
}

// Revision returns the GUID stamped by the latest Save, or "" if the
// database has never been saved to.
func (s *Store) Revision(ctx context.Context) (string, error) {
	sel, err := scanSelection(s.db.conn.QueryRowContext(ctx,
		`SELECT current_connection, revision, updated_at FROM selection WHERE id = 1`))
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to query selection: %w", err)
	}
	return sel.Revision, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Watch reports the stored state each time another connection commits to
// the database file. The channel is closed when ctx is done.
func (s *Store) Watch(ctx context.Context) (<-chan *domain.State, error) {
	cfg := watcher.DefaultConfig(s.db.path)
	cfg.Companions = []string{filepath.Base(s.db.path) + "-wal"}
	w, err := watcher.New(cfg)
	if err != nil {
		return nil, err
	}
	changes, err := w.Start()
	if err != nil {
		_ = w.Stop()
		return nil, err
	}

	out := make(chan *domain.State)
	go func() {
		defer close(out)
		defer func() { _ = w.Stop() }()
		var last string
		for {
			select {
			case <-ctx.Done():
				return
			case <-changes:
				rev, err := s.Revision(ctx)
				if err != nil || rev == last {
					continue
				}
				state, err := s.Load(ctx)
				if err != nil {
					log.Warn(log.CatWatcher, "Reload failed", "path", s.db.path, "error", err)
					continue
				}
				last = rev
				if state == nil {
					state = domain.NewState()
				}
				log.Info(log.CatWatcher, "State reloaded", "path", s.db.path, "revision", rev)
				select {
				case out <- state:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func scanSelection(row *sql.Row) (SelectionModel, error) {
	var m SelectionModel
	err := row.Scan(&m.CurrentConnection, &m.Revision, &m.UpdatedAt)
	return m, err
}

func queryConnections(ctx context.Context, tx *sql.Tx) ([]ConnectionModel, error) {
	rows, err := tx.QueryContext(ctx, `SELECT name, endpoint, position FROM connections ORDER BY position, name`)
	if err != nil {
		return nil, fmt.Errorf("failed to query connections: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ConnectionModel
	for rows.Next() {
		var m ConnectionModel
		if err := rows.Scan(&m.Name, &m.Endpoint, &m.Position); err != nil {
			return nil, fmt.Errorf("failed to scan connection: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func queryContexts(ctx context.Context, tx *sql.Tx) ([]ContextModel, error) {
	rows, err := tx.QueryContext(ctx,
		`SELECT connection_name, context_key, resource_type, resource_id, resource_display FROM contexts`)
	if err != nil {
		return nil, fmt.Errorf("failed to query contexts: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []ContextModel
	for rows.Next() {
		var m ContextModel
		if err := rows.Scan(&m.ConnectionName, &m.ContextKey, &m.ResourceType, &m.ResourceID, &m.ResourceDisplay); err != nil {
			return nil, fmt.Errorf("failed to scan context: %w", err)
		}
		out = append(out, m)
	}
	return out, rows.Err()
}
