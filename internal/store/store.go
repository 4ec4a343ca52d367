// Package store holds the external row stores the assistant depends on:
// the credential table and the two append-only log tables. Every backend
// (SQLite, Postgres, CSV files, Google Sheets) satisfies the same interfaces
// so auth and the chat pipeline never know which one is in use.
package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

var (
	// ErrUnavailable means the store could not be read or opened.
	ErrUnavailable = errors.New("store unavailable")
	// ErrWriteFailed means a row could not be written.
	ErrWriteFailed = errors.New("store write failed")
	// ErrDuplicate means a credential row for the email already exists.
	ErrDuplicate = errors.New("email already registered")
)

// CredentialStore is a full-scan, append-only table of (email, password hash).
type CredentialStore interface {
	// LoadUsers returns every stored email mapped to its hash. When an email
	// appears more than once, the first row wins.
	LoadUsers(ctx context.Context) (map[string]string, error)
	// AppendUser writes one row and returns ErrDuplicate if the email is taken.
	AppendUser(ctx context.Context, email, passwordHash string) error
}

// LogStore receives the best-effort mirror rows.
type LogStore interface {
	AppendChatLog(ctx context.Context, entry ChatLogEntry) error
	AppendFeedback(ctx context.Context, event FeedbackEvent) error
}

// LogReader reads back the durable chat log of one identity, oldest first.
type LogReader interface {
	ChatLogs(ctx context.Context, email string) ([]ChatLogEntry, error)
}

// Store is what every backend implements.
type Store interface {
	CredentialStore
	LogStore
	LogReader
	Close() error
}

// NormalizeEmail is the canonical form used for every compare and write.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

const timestampLayout = time.RFC3339Nano

func formatTimestamp(t time.Time) string {
	return t.UTC().Format(timestampLayout)
}

func parseTimestamp(s string) time.Time {
	t, err := time.Parse(timestampLayout, s)
	if err != nil {
		return time.Time{}
	}
	return t
}
