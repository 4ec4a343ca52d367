package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newPostgresWithMock(t *testing.T) (*SQLStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return &SQLStore{db: db, dialect: postgresDialect}, mock
}

func TestDialect_Rebind(t *testing.T) {
	q := "INSERT INTO users (email, password_hash) VALUES (?, ?)"
	assert.Equal(t, q, sqliteDialect.rebind(q))
	assert.Equal(t, "INSERT INTO users (email, password_hash) VALUES ($1, $2)", postgresDialect.rebind(q))
}

func TestPostgres_AppendUser_UniqueViolationIsDuplicate(t *testing.T) {
	s, mock := newPostgresWithMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users (email, password_hash) VALUES ($1, $2)")).
		WithArgs("a@x.com", "hash").
		WillReturnError(&pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"})

	err := s.AppendUser(context.Background(), "A@x.com", "hash")
	require.ErrorIs(t, err, ErrDuplicate)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgres_AppendUser_OtherErrorIsWriteFailed(t *testing.T) {
	s, mock := newPostgresWithMock(t)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO users")).
		WillReturnError(errors.New("connection reset"))

	err := s.AppendUser(context.Background(), "a@x.com", "hash")
	require.ErrorIs(t, err, ErrWriteFailed)
	assert.NotErrorIs(t, err, ErrDuplicate)
}

func TestPostgres_LoadUsers_QueryErrorIsUnavailable(t *testing.T) {
	s, mock := newPostgresWithMock(t)

	mock.ExpectQuery(regexp.QuoteMeta("SELECT email, password_hash FROM users")).
		WillReturnError(errors.New("db down"))

	_, err := s.LoadUsers(context.Background())
	require.ErrorIs(t, err, ErrUnavailable)
	assert.Contains(t, err.Error(), "db down")
}

func TestPostgres_LoadUsers_FirstRowWins(t *testing.T) {
	s, mock := newPostgresWithMock(t)

	rows := sqlmock.NewRows([]string{"email", "password_hash"}).
		AddRow("A@x.com", "first").
		AddRow("a@x.com", "second")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT email, password_hash FROM users")).WillReturnRows(rows)

	users, err := s.LoadUsers(context.Background())
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"a@x.com": "first"}, users)
}

func TestPostgres_ChatLogs(t *testing.T) {
	s, mock := newPostgresWithMock(t)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	rows := sqlmock.NewRows([]string{"email", "timestamp", "question", "answer"}).
		AddRow("a@x.com", ts, "q", "a")
	mock.ExpectQuery(regexp.QuoteMeta("SELECT email, timestamp, question, answer FROM chat_logs WHERE email = $1 ORDER BY id ASC")).
		WithArgs("a@x.com").
		WillReturnRows(rows)

	entries, err := s.ChatLogs(context.Background(), "a@x.com")
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, ChatLogEntry{Email: "a@x.com", Timestamp: ts, Question: "q", Answer: "a"}, entries[0])
}

func TestPostgres_AppendFeedback(t *testing.T) {
	s, mock := newPostgresWithMock(t)
	ts := time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO feedback_logs (email, timestamp, question, verdict) VALUES ($1, $2, $3, $4)")).
		WithArgs("a@x.com", ts, "q", "Helpful").
		WillReturnResult(sqlmock.NewResult(1, 1))

	err := s.AppendFeedback(context.Background(), FeedbackEvent{Email: "a@x.com", Timestamp: ts, Question: "q", Verdict: VerdictHelpful})
	require.NoError(t, err)
	require.NoError(t, mock.ExpectationsWereMet())
}
