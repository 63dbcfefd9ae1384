package credentials

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"

	"github.com/pressly/goose/v3"
	_ "modernc.org/sqlite"
)

// OpenSQLite opens the credential database file with WAL mode and a busy timeout.
// A single connection avoids "database is locked" errors between the CLI's reads and writes.
func OpenSQLite(path string) (*sql.DB, error) {
	if path == "" {
		return nil, errors.New("sqlite credential store requires a database path")
	}

	dsn := sqliteDSN(path)

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	return db, nil
}

// sqliteDSN escapes path so '?', '#' and '%' in a file name are not read as URI syntax.
func sqliteDSN(path string) string {
	q := url.Values{}
	q.Add("_pragma", "journal_mode(WAL)")
	q.Add("_pragma", "busy_timeout(5000)")
	q.Add("_pragma", "synchronous(NORMAL)")
	u := url.URL{Scheme: "file", Opaque: (&url.URL{Path: path}).EscapedPath(), RawQuery: q.Encode()}
	return u.String()
}

// SQLiteStore keeps the credential in a local SQLite file, one row per slot.
// When a passphrase is configured values are sealed before they are written.
type SQLiteStore struct {
	db     *sql.DB
	slot   string
	sealer *sealer
	ownsDB bool
}

var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore migrates db and returns a store for slot. passphrase may be empty to store values in clear.
func NewSQLiteStore(ctx context.Context, db *sql.DB, slot, passphrase string) (*SQLiteStore, error) {
	if err := runMigrations(ctx, goose.DialectSQLite3, db, "migrations/sqlite"); err != nil {
		return nil, err
	}
	return &SQLiteStore{
		db:     db,
		slot:   slot,
		sealer: newSealer(passphrase),
	}, nil
}

func (s *SQLiteStore) Get(ctx context.Context) (string, error) {
	const query = `SELECT value, sealed FROM credentials WHERE slot = ?`

	var value string
	var sealed bool
	err := s.db.QueryRowContext(ctx, query, s.slot).Scan(&value, &sealed)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get credential %q: %w", s.slot, err)
	}

	if !sealed {
		return value, nil
	}
	if s.sealer == nil {
		return "", ErrKeyRequired
	}

	token, err := s.sealer.open(value)
	if err != nil {
		return "", fmt.Errorf("unseal credential %q: %w", s.slot, err)
	}
	return token, nil
}

func (s *SQLiteStore) Set(ctx context.Context, token string) error {
	if token == "" {
		return s.Clear(ctx)
	}

	value, sealed := token, false
	if s.sealer != nil {
		var err error
		value, err = s.sealer.seal(token)
		if err != nil {
			return fmt.Errorf("seal credential %q: %w", s.slot, err)
		}
		sealed = true
	}

	const query = `INSERT OR REPLACE INTO credentials (slot, value, sealed, updated_at) VALUES (?, ?, ?, CURRENT_TIMESTAMP)`
	if _, err := s.db.ExecContext(ctx, query, s.slot, value, sealed); err != nil {
		return fmt.Errorf("set credential %q: %w", s.slot, err)
	}
	return nil
}

func (s *SQLiteStore) Clear(ctx context.Context) error {
	const query = `DELETE FROM credentials WHERE slot = ?`
	if _, err := s.db.ExecContext(ctx, query, s.slot); err != nil {
		return fmt.Errorf("clear credential %q: %w", s.slot, err)
	}
	return nil
}

// Close closes the database when the store opened it.
func (s *SQLiteStore) Close() error {
	if !s.ownsDB {
		return nil
	}
	return s.db.Close()
}
