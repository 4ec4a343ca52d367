package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib" // Postgres driver
	"github.com/mattn/go-sqlite3"       // SQLite driver
	"github.com/pressly/goose/v3"
)

//go:embed migrations
var migrations embed.FS

type dialect struct {
	driver        string
	goose         goose.Dialect
	migrationsDir string
	numbered      bool // $1, $2 placeholders instead of ?
	isUnique      func(error) bool
}

var (
	sqliteDialect = dialect{
		driver:        "sqlite3",
		goose:         goose.DialectSQLite3,
		migrationsDir: "migrations/sqlite",
		isUnique: func(err error) bool {
			var se sqlite3.Error
			return errors.As(err, &se) &&
				(se.ExtendedCode == sqlite3.ErrConstraintUnique || se.ExtendedCode == sqlite3.ErrConstraintPrimaryKey)
		},
	}

	postgresDialect = dialect{
		driver:        "pgx",
		goose:         goose.DialectPostgres,
		migrationsDir: "migrations/postgres",
		numbered:      true,
		isUnique: func(err error) bool {
			var pgErr *pgconn.PgError
			return errors.As(err, &pgErr) && pgErr.Code == "23505"
		},
	}
)

// rebind rewrites ? placeholders for dialects that number them.
func (d dialect) rebind(query string) string {
	if !d.numbered {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteByte('$')
			b.WriteString(strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// SQLStore keeps credentials and logs in a database/sql backend.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

func NewSQLiteStore(ctx context.Context, dataSourceName string) (*SQLStore, error) {
	return openSQL(ctx, sqliteDialect, dataSourceName)
}

func NewPostgresStore(ctx context.Context, dataSourceName string) (*SQLStore, error) {
	return openSQL(ctx, postgresDialect, dataSourceName)
}

func openSQL(ctx context.Context, d dialect, dataSourceName string) (*SQLStore, error) {
	db, err := sql.Open(d.driver, dataSourceName)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open database: %w", ErrUnavailable, err)
	}
	if err = db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to ping database: %w", ErrUnavailable, err)
	}

	s := &SQLStore{db: db, dialect: d}
	if err = s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	if d.driver == sqliteDialect.driver {
		// sqlite allows one writer; a single connection avoids SQLITE_BUSY.
		db.SetMaxOpenConns(1)
	}
	return s, nil
}

func (s *SQLStore) migrate(ctx context.Context) error {
	fsys, err := fs.Sub(migrations, s.dialect.migrationsDir)
	if err != nil {
		return err
	}
	provider, err := goose.NewProvider(s.dialect.goose, s.db, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	if _, err := provider.Up(ctx); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

func (s *SQLStore) Close() error {
	return s.db.Close()
}

// User methods
func (s *SQLStore) LoadUsers(ctx context.Context) (map[string]string, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT email, password_hash FROM users ORDER BY created_at ASC")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query users: %w", ErrUnavailable, err)
	}
	defer rows.Close()

	users := make(map[string]string)
	for rows.Next() {
		var email, hash string
		if err := rows.Scan(&email, &hash); err != nil {
			return nil, fmt.Errorf("%w: failed to scan user row: %w", ErrUnavailable, err)
		}
		email = NormalizeEmail(email)
		if _, seen := users[email]; !seen {
			users[email] = hash
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate user rows: %w", ErrUnavailable, err)
	}
	return users, nil
}

func (s *SQLStore) AppendUser(ctx context.Context, email, passwordHash string) error {
	query := s.dialect.rebind("INSERT INTO users (email, password_hash) VALUES (?, ?)")
	if _, err := s.db.ExecContext(ctx, query, NormalizeEmail(email), passwordHash); err != nil {
		if s.dialect.isUnique(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("%w: failed to insert user: %w", ErrWriteFailed, err)
	}
	return nil
}

// Log methods
func (s *SQLStore) AppendChatLog(ctx context.Context, entry ChatLogEntry) error {
	query := s.dialect.rebind("INSERT INTO chat_logs (email, timestamp, question, answer) VALUES (?, ?, ?, ?)")
	if _, err := s.db.ExecContext(ctx, query, entry.Email, entry.Timestamp.UTC(), entry.Question, entry.Answer); err != nil {
		return fmt.Errorf("%w: failed to insert chat log: %w", ErrWriteFailed, err)
	}
	return nil
}

func (s *SQLStore) AppendFeedback(ctx context.Context, event FeedbackEvent) error {
	query := s.dialect.rebind("INSERT INTO feedback_logs (email, timestamp, question, verdict) VALUES (?, ?, ?, ?)")
	if _, err := s.db.ExecContext(ctx, query, event.Email, event.Timestamp.UTC(), event.Question, string(event.Verdict)); err != nil {
		return fmt.Errorf("%w: failed to insert feedback: %w", ErrWriteFailed, err)
	}
	return nil
}

func (s *SQLStore) ChatLogs(ctx context.Context, email string) ([]ChatLogEntry, error) {
	query := s.dialect.rebind("SELECT email, timestamp, question, answer FROM chat_logs WHERE email = ? ORDER BY id ASC")
	rows, err := s.db.QueryContext(ctx, query, NormalizeEmail(email))
	if err != nil {
		return nil, fmt.Errorf("%w: failed to query chat logs: %w", ErrUnavailable, err)
	}
	defer rows.Close()

	var entries []ChatLogEntry
	for rows.Next() {
		var e ChatLogEntry
		if err := rows.Scan(&e.Email, &e.Timestamp, &e.Question, &e.Answer); err != nil {
			return nil, fmt.Errorf("%w: failed to scan chat log row: %w", ErrUnavailable, err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: failed to iterate chat log rows: %w", ErrUnavailable, err)
	}
	return entries, nil
}
