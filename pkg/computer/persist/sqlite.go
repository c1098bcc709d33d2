package persist

import (
	"context"
	"fmt"
	"runtime"

	"github.com/rs/zerolog"
	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS labels (
	computer INTEGER PRIMARY KEY,
	value    TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS contents (
	computer INTEGER NOT NULL,
	path     TEXT NOT NULL,
	data     BLOB,
	codec    INTEGER NOT NULL DEFAULT 0,
	PRIMARY KEY (computer, path)
);
CREATE TABLE IF NOT EXISTS directories (
	computer INTEGER NOT NULL,
	path     TEXT NOT NULL,
	PRIMARY KEY (computer, path)
);
CREATE TABLE IF NOT EXISTS children (
	computer INTEGER NOT NULL,
	path     TEXT NOT NULL,
	position INTEGER NOT NULL,
	name     TEXT NOT NULL,
	PRIMARY KEY (computer, path, position)
);
`

// SQLiteStore is a SQLite database holding any number of computers, each
// addressed by its numeric id.
type SQLiteStore struct {
	pool   *sqlitex.Pool
	path   string
	logger zerolog.Logger
}

// OpenSQLite opens (creating if needed) the database at path and ensures the
// schema exists. The caller must Close the store.
func OpenSQLite(path string, logger zerolog.Logger) (*SQLiteStore, error) {
	if path == "" {
		return nil, fmt.Errorf("sqlite: path is required")
	}

	poolSize := runtime.NumCPU()
	if poolSize < 4 {
		poolSize = 4
	}

	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    poolSize,
		PrepareConn: prepareConn,
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: opening %s: %w", path, err)
	}

	logger.Debug().
		Str("path", path).
		Int("pool_size", poolSize).
		Msg("sqlite store opened")

	return &SQLiteStore{pool: pool, path: path, logger: logger}, nil
}

func prepareConn(conn *sqlite.Conn) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA busy_timeout=5000",
	}
	for _, pragma := range pragmas {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return fmt.Errorf("sqlite: %s: %w", pragma, err)
		}
	}
	if err := sqlitex.ExecuteScript(conn, sqliteSchema, nil); err != nil {
		return fmt.Errorf("sqlite: creating schema: %w", err)
	}
	return nil
}

// Close closes every pooled connection.
func (s *SQLiteStore) Close() error {
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("sqlite: closing %s: %w", s.path, err)
	}
	s.logger.Debug().Str("path", s.path).Msg("sqlite store closed")
	return nil
}

// Computer returns the Backend for one computer in the store.
func (s *SQLiteStore) Computer(id int) *SQLite {
	return &SQLite{store: s, id: id}
}

// withConn borrows a connection for the duration of fn.
func (s *SQLiteStore) withConn(fn func(conn *sqlite.Conn) error) error {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return fmt.Errorf("sqlite: take: %w", err)
	}
	defer s.pool.Put(conn)
	return fn(conn)
}

// SQLite is the Backend for a single computer inside a SQLiteStore.
type SQLite struct {
	store *SQLiteStore
	id    int
}

var _ Backend = (*SQLite)(nil)

// ID returns the computer id this backend is scoped to.
func (b *SQLite) ID() int {
	return b.id
}

func (b *SQLite) Label() (*string, error) {
	var label *string
	err := b.store.withConn(func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT value FROM labels WHERE computer = ?", &sqlitex.ExecOptions{
			Args: []any{b.id},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				value := stmt.ColumnText(0)
				label = &value
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading label: %w", err)
	}
	return label, nil
}

func (b *SQLite) SetLabel(label *string) error {
	err := b.store.withConn(func(conn *sqlite.Conn) error {
		if label == nil {
			return sqlitex.Execute(conn, "DELETE FROM labels WHERE computer = ?", &sqlitex.ExecOptions{
				Args: []any{b.id},
			})
		}
		return sqlitex.Execute(conn,
			"INSERT INTO labels (computer, value) VALUES (?, ?) ON CONFLICT (computer) DO UPDATE SET value = excluded.value",
			&sqlitex.ExecOptions{Args: []any{b.id, *label}})
	})
	if err != nil {
		return fmt.Errorf("sqlite: writing label: %w", err)
	}
	return nil
}

// Content returns the stored bytes for path, decompressing them if they
// were saved compressed.
func (b *SQLite) Content(path string) ([]byte, error) {
	content := []byte{}
	err := b.store.withConn(func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "SELECT data, codec FROM contents WHERE computer = ? AND path = ?", &sqlitex.ExecOptions{
			Args: []any{b.id, path},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				blob := make([]byte, stmt.ColumnLen(0))
				stmt.ColumnBytes(0, blob)

				decoded, err := decodeBlob(blob, blobCodec(stmt.ColumnInt(1)))
				if err != nil {
					return err
				}
				content = decoded
				return nil
			},
		})
	})
	if err != nil {
		return nil, fmt.Errorf("sqlite: reading %q: %w", path, err)
	}
	return content, nil
}

// SetContent saves content for path. Large, compressible files are stored
// zstd-compressed.
func (b *SQLite) SetContent(path string, content []byte) error {
	blob, codec := encodeBlob(content)
	err := b.store.withConn(func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn,
			"INSERT INTO contents (computer, path, data, codec) VALUES (?, ?, ?, ?) ON CONFLICT (computer, path) DO UPDATE SET data = excluded.data, codec = excluded.codec",
			&sqlitex.ExecOptions{Args: []any{b.id, path, blob, int(codec)}})
	})
	if err != nil {
		return fmt.Errorf("sqlite: writing %q: %w", path, err)
	}
	return nil
}

func (b *SQLite) RemoveContent(path string) error {
	err := b.store.withConn(func(conn *sqlite.Conn) error {
		return sqlitex.Execute(conn, "DELETE FROM contents WHERE computer = ? AND path = ?", &sqlitex.ExecOptions{
			Args: []any{b.id, path},
		})
	})
	if err != nil {
		return fmt.Errorf("sqlite: removing %q: %w", path, err)
	}
	return nil
}

func (b *SQLite) Children(path string) ([]string, bool, error) {
	known := false
	children := []string{}
	err := b.store.withConn(func(conn *sqlite.Conn) error {
		err := sqlitex.Execute(conn, "SELECT 1 FROM directories WHERE computer = ? AND path = ?", &sqlitex.ExecOptions{
			Args: []any{b.id, path},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				known = true
				return nil
			},
		})
		if err != nil || !known {
			return err
		}

		return sqlitex.Execute(conn, "SELECT name FROM children WHERE computer = ? AND path = ? ORDER BY position", &sqlitex.ExecOptions{
			Args: []any{b.id, path},
			ResultFunc: func(stmt *sqlite.Stmt) error {
				children = append(children, stmt.ColumnText(0))
				return nil
			},
		})
	})
	if err != nil {
		return nil, false, fmt.Errorf("sqlite: listing %q: %w", path, err)
	}
	if !known {
		return nil, false, nil
	}
	return children, true, nil
}

func (b *SQLite) SetChildren(path string, children []string) error {
	err := b.store.withConn(func(conn *sqlite.Conn) (err error) {
		endTransaction, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return err
		}
		defer endTransaction(&err)

		err = sqlitex.Execute(conn, "INSERT OR IGNORE INTO directories (computer, path) VALUES (?, ?)", &sqlitex.ExecOptions{
			Args: []any{b.id, path},
		})
		if err != nil {
			return err
		}
		err = sqlitex.Execute(conn, "DELETE FROM children WHERE computer = ? AND path = ?", &sqlitex.ExecOptions{
			Args: []any{b.id, path},
		})
		if err != nil {
			return err
		}
		for position, name := range children {
			err = sqlitex.Execute(conn, "INSERT INTO children (computer, path, position, name) VALUES (?, ?, ?, ?)", &sqlitex.ExecOptions{
				Args: []any{b.id, path, position, name},
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("sqlite: writing children of %q: %w", path, err)
	}
	return nil
}

func (b *SQLite) RemoveChildren(path string) error {
	err := b.store.withConn(func(conn *sqlite.Conn) (err error) {
		endTransaction, err := sqlitex.ImmediateTransaction(conn)
		if err != nil {
			return err
		}
		defer endTransaction(&err)

		err = sqlitex.Execute(conn, "DELETE FROM children WHERE computer = ? AND path = ?", &sqlitex.ExecOptions{
			Args: []any{b.id, path},
		})
		if err != nil {
			return err
		}
		return sqlitex.Execute(conn, "DELETE FROM directories WHERE computer = ? AND path = ?", &sqlitex.ExecOptions{
			Args: []any{b.id, path},
		})
	})
	if err != nil {
		return fmt.Errorf("sqlite: removing children of %q: %w", path, err)
	}
	return nil
}
