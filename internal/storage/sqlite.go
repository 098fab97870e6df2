package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"
)

var (
	// ErrConstraintViolation is returned when a write would duplicate a unique key
	ErrConstraintViolation = errors.New("unique constraint violation")
	// ErrConstraintExists is returned when creating a constraint that is already defined
	ErrConstraintExists = errors.New("constraint already exists")
	// ErrIndexExists is returned when creating an index that is already defined
	ErrIndexExists = errors.New("index already exists")
	// ErrRollback can be returned from a transaction function to roll back
	// without reporting an error to the caller
	ErrRollback = errors.New("rollback requested")
)

// Storage is the transactional property-graph store backed by SQLite.
// It owns the database handle; Close releases it.
type Storage struct {
	db            *sql.DB
	retryAttempts int
	retryDelay    time.Duration
}

// NewStorage creates a new Storage instance, opening/creating the DB and initializing schema
func NewStorage(dbPath string) (*Storage, error) {
	dsn := dbPath + "?_journal_mode=WAL&_synchronous=NORMAL&_txlock=immediate&_busy_timeout=5000&_foreign_keys=on"
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Test connection
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	storage := &Storage{
		db:            db,
		retryAttempts: 3,
		retryDelay:    100 * time.Millisecond,
	}

	// Initialize schema
	if err := storage.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	return storage, nil
}

// SetRetryPolicy configures how often transient failures (busy/locked) are retried
func (s *Storage) SetRetryPolicy(attempts int, delay time.Duration) {
	if attempts < 1 {
		attempts = 1
	}
	s.retryAttempts = attempts
	s.retryDelay = delay
}

// initSchema creates tables and indices if they don't exist
func (s *Storage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS nodes (
		node_id INTEGER PRIMARY KEY AUTOINCREMENT,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS node_labels (
		node_id INTEGER NOT NULL,
		label TEXT NOT NULL,
		PRIMARY KEY (node_id, label),
		FOREIGN KEY (node_id) REFERENCES nodes(node_id)
	);

	CREATE TABLE IF NOT EXISTS node_properties (
		node_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		value TEXT,
		PRIMARY KEY (node_id, name),
		FOREIGN KEY (node_id) REFERENCES nodes(node_id)
	);

	CREATE TABLE IF NOT EXISTS relationships (
		rel_id INTEGER PRIMARY KEY AUTOINCREMENT,
		rel_type TEXT NOT NULL,
		from_node_id INTEGER NOT NULL,
		to_node_id INTEGER NOT NULL,
		created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (from_node_id) REFERENCES nodes(node_id),
		FOREIGN KEY (to_node_id) REFERENCES nodes(node_id)
	);

	CREATE TABLE IF NOT EXISTS relationship_properties (
		rel_id INTEGER NOT NULL,
		name TEXT NOT NULL,
		kind TEXT NOT NULL,
		value TEXT,
		PRIMARY KEY (rel_id, name),
		FOREIGN KEY (rel_id) REFERENCES relationships(rel_id)
	);

	CREATE TABLE IF NOT EXISTS relationship_index (
		index_name TEXT NOT NULL,
		key TEXT NOT NULL,
		value TEXT NOT NULL,
		rel_id INTEGER NOT NULL,
		from_node_id INTEGER NOT NULL,
		to_node_id INTEGER NOT NULL,
		PRIMARY KEY (index_name, key, value, rel_id),
		FOREIGN KEY (rel_id) REFERENCES relationships(rel_id)
	);

	CREATE TABLE IF NOT EXISTS schema_constraints (
		label TEXT NOT NULL,
		property TEXT NOT NULL,
		PRIMARY KEY (label, property)
	);

	CREATE TABLE IF NOT EXISTS schema_indexes (
		label TEXT NOT NULL,
		property TEXT NOT NULL,
		PRIMARY KEY (label, property)
	);

	CREATE TABLE IF NOT EXISTS unique_keys (
		label TEXT NOT NULL,
		property TEXT NOT NULL,
		value TEXT NOT NULL,
		node_id INTEGER NOT NULL,
		PRIMARY KEY (label, property, value),
		FOREIGN KEY (node_id) REFERENCES nodes(node_id)
	);

	CREATE INDEX IF NOT EXISTS idx_labels_label ON node_labels(label);
	CREATE INDEX IF NOT EXISTS idx_properties_lookup ON node_properties(name, value);
	CREATE INDEX IF NOT EXISTS idx_relationships_from ON relationships(from_node_id, rel_type);
	CREATE INDEX IF NOT EXISTS idx_relationships_to ON relationships(to_node_id, rel_type);
	CREATE INDEX IF NOT EXISTS idx_relationship_index_pair ON relationship_index(index_name, key, value, from_node_id, to_node_id);
	CREATE INDEX IF NOT EXISTS idx_unique_keys_node ON unique_keys(node_id, property);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Update runs fn inside a write transaction. The transaction commits when fn
// returns nil and rolls back otherwise. Transient busy/locked failures are
// retried, so fn must be safe to run more than once.
func (s *Storage) Update(ctx context.Context, fn func(tx *Tx) error) error {
	for attempt := 1; ; attempt++ {
		err := s.runTx(ctx, fn, true)
		if errors.Is(err, ErrRollback) {
			return nil
		}
		if err == nil || !isTransient(err) || attempt >= s.retryAttempts {
			return err
		}

		logrus.Debugf("Transient store failure (attempt %d/%d): %v", attempt, s.retryAttempts, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(s.retryDelay):
		}
	}
}

// View runs fn inside a transaction that is always rolled back
func (s *Storage) View(ctx context.Context, fn func(tx *Tx) error) error {
	return s.runTx(ctx, fn, false)
}

func (s *Storage) runTx(ctx context.Context, fn func(tx *Tx) error, commit bool) error {
	sqlTx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer sqlTx.Rollback()

	if err := fn(&Tx{tx: sqlTx, ctx: ctx}); err != nil {
		return err
	}
	if !commit {
		return nil
	}
	if err := sqlTx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	return nil
}

// CreateUniqueConstraint declares property unique among nodes carrying label.
// Nodes already holding the label are checked; duplicates fail with ErrConstraintViolation.
func (s *Storage) CreateUniqueConstraint(ctx context.Context, label, property string) error {
	return s.Update(ctx, func(tx *Tx) error {
		res, err := tx.tx.ExecContext(ctx, `
			INSERT INTO schema_constraints (label, property) VALUES (?, ?)
			ON CONFLICT(label, property) DO NOTHING
		`, label, property)
		if err != nil {
			return fmt.Errorf("failed to create constraint on :%s(%s): %w", label, property, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: :%s(%s)", ErrConstraintExists, label, property)
		}

		_, err = tx.tx.ExecContext(ctx, `
			INSERT INTO unique_keys (label, property, value, node_id)
			SELECT l.label, p.name, p.kind || ':' || COALESCE(p.value, ''), p.node_id
			FROM node_properties p
			JOIN node_labels l ON l.node_id = p.node_id
			WHERE l.label = ? AND p.name = ? AND p.kind != 'null'
		`, label, property)
		return mapConstraintError(err, fmt.Sprintf("constraint on :%s(%s)", label, property))
	})
}

var safeIdentifier = regexp.MustCompile(`[^A-Za-z0-9_]`)

// CreateIndex declares a lookup index on property for nodes carrying label
func (s *Storage) CreateIndex(ctx context.Context, label, property string) error {
	return s.Update(ctx, func(tx *Tx) error {
		res, err := tx.tx.ExecContext(ctx, `
			INSERT INTO schema_indexes (label, property) VALUES (?, ?)
			ON CONFLICT(label, property) DO NOTHING
		`, label, property)
		if err != nil {
			return fmt.Errorf("failed to create index on :%s(%s): %w", label, property, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("%w: :%s(%s)", ErrIndexExists, label, property)
		}

		// Lookups filter by property name first; one partial index per property serves every label
		name := safeIdentifier.ReplaceAllString(property, "_")
		ddl := fmt.Sprintf(
			`CREATE INDEX IF NOT EXISTS idx_property_%s ON node_properties(value, node_id) WHERE name = '%s'`,
			name, name)
		if _, err := tx.tx.ExecContext(ctx, ddl); err != nil {
			return fmt.Errorf("failed to create property index for %s: %w", property, err)
		}
		return nil
	})
}

// Labels returns every label known to the store: labels in use plus labels
// that only appear in schema definitions
func (s *Storage) Labels(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT label FROM node_labels
		UNION SELECT label FROM schema_constraints
		UNION SELECT label FROM schema_indexes
		ORDER BY label
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list labels: %w", err)
	}
	defer rows.Close()

	return scanStrings(rows)
}

// CountNodes returns the number of nodes carrying label
func (s *Storage) CountNodes(ctx context.Context, label string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM node_labels WHERE label = ?", label).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count nodes: %w", err)
	}
	return n, nil
}

// CountRelationships returns the number of relationships of the given type
func (s *Storage) CountRelationships(ctx context.Context, relType string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM relationships WHERE rel_type = ?", relType).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to count relationships: %w", err)
	}
	return n, nil
}

// Close closes the database connection
func (s *Storage) Close() error {
	return s.db.Close()
}

func isTransient(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.Code == sqlite3.ErrBusy || sqliteErr.Code == sqlite3.ErrLocked
	}
	return false
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique ||
			sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey
	}
	return false
}

// mapConstraintError converts SQLite unique failures into ErrConstraintViolation
func mapConstraintError(err error, what string) error {
	if err == nil {
		return nil
	}
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: %s", ErrConstraintViolation, what)
	}
	return fmt.Errorf("failed to write %s: %w", what, err)
}

func scanStrings(rows *sql.Rows) ([]string, error) {
	var out []string
	for rows.Next() {
		var s string
		if err := rows.Scan(&s); err != nil {
			return nil, fmt.Errorf("failed to scan row: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating rows: %w", err)
	}
	return out, nil
}
