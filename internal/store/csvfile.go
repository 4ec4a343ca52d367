package store

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
)

const (
	usersFile        = "users.csv"
	chatLogsFile     = "chat_logs.csv"
	feedbackLogsFile = "feedback_logs.csv"
)

var (
	usersHeader        = []string{"email", "password"}
	chatLogsHeader     = []string{"email", "timestamp", "question", "answer"}
	feedbackLogsHeader = []string{"email", "timestamp", "question", "verdict"}
)

// CSVStore keeps every table as a CSV file in one directory. users.csv keeps
// the legacy email,password layout, so existing account files can be dropped
// in as-is.
//
// Appends are serialized by an in-process mutex plus an advisory file lock,
// and each row is written with a single write call.
type CSVStore struct {
	dir string
	mu  sync.Mutex
}

func NewCSVStore(dir string) (*CSVStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("%w: failed to create data dir %s: %w", ErrUnavailable, dir, err)
	}
	return &CSVStore{dir: dir}, nil
}

func (s *CSVStore) Close() error { return nil }

func (s *CSVStore) path(name string) string {
	return filepath.Join(s.dir, name)
}

func (s *CSVStore) LoadUsers(ctx context.Context) (map[string]string, error) {
	records, err := s.readAll(usersFile, usersHeader)
	if err != nil {
		return nil, err
	}
	users := make(map[string]string, len(records))
	for _, rec := range records {
		if len(rec) < 2 {
			continue
		}
		email := NormalizeEmail(rec[0])
		if email == "" {
			continue
		}
		if _, seen := users[email]; !seen {
			users[email] = rec[1]
		}
	}
	return users, nil
}

func (s *CSVStore) AppendUser(ctx context.Context, email, passwordHash string) error {
	email = NormalizeEmail(email)
	return s.appendRow(usersFile, usersHeader, []string{email, passwordHash}, func(existing [][]string) error {
		for _, rec := range existing {
			if len(rec) > 0 && NormalizeEmail(rec[0]) == email {
				return ErrDuplicate
			}
		}
		return nil
	})
}

func (s *CSVStore) AppendChatLog(ctx context.Context, entry ChatLogEntry) error {
	row := []string{entry.Email, formatTimestamp(entry.Timestamp), entry.Question, entry.Answer}
	return s.appendRow(chatLogsFile, chatLogsHeader, row, nil)
}

func (s *CSVStore) AppendFeedback(ctx context.Context, event FeedbackEvent) error {
	row := []string{event.Email, formatTimestamp(event.Timestamp), event.Question, string(event.Verdict)}
	return s.appendRow(feedbackLogsFile, feedbackLogsHeader, row, nil)
}

func (s *CSVStore) ChatLogs(ctx context.Context, email string) ([]ChatLogEntry, error) {
	records, err := s.readAll(chatLogsFile, chatLogsHeader)
	if err != nil {
		return nil, err
	}
	email = NormalizeEmail(email)
	var entries []ChatLogEntry
	for _, rec := range records {
		if len(rec) < 4 || NormalizeEmail(rec[0]) != email {
			continue
		}
		entries = append(entries, ChatLogEntry{
			Email:     rec[0],
			Timestamp: parseTimestamp(rec[1]),
			Question:  rec[2],
			Answer:    rec[3],
		})
	}
	return entries, nil
}

// readAll returns the data rows of a table, creating it with its header on
// first access.
func (s *CSVStore) readAll(name string, header []string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path(name), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %w", ErrUnavailable, name, err)
	}
	defer f.Close()

	unlock, err := lockFile(f)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to lock %s: %w", ErrUnavailable, name, err)
	}
	defer unlock()

	records, err := readRecords(f)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read %s: %w", ErrUnavailable, name, err)
	}
	if len(records) == 0 {
		if err := writeRecords(f, header); err != nil {
			return nil, fmt.Errorf("%w: failed to create %s: %w", ErrUnavailable, name, err)
		}
		return nil, nil
	}
	return records[1:], nil
}

// appendRow writes one row under lock. check, when set, sees the existing
// data rows and may veto the write.
func (s *CSVStore) appendRow(name string, header, row []string, check func([][]string) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	f, err := os.OpenFile(s.path(name), os.O_RDWR|os.O_CREATE|os.O_APPEND, 0o600)
	if err != nil {
		return fmt.Errorf("%w: failed to open %s: %w", ErrWriteFailed, name, err)
	}
	defer f.Close()

	unlock, err := lockFile(f)
	if err != nil {
		return fmt.Errorf("%w: failed to lock %s: %w", ErrWriteFailed, name, err)
	}
	defer unlock()

	records, err := readRecords(f)
	if err != nil {
		return fmt.Errorf("%w: failed to read %s: %w", ErrWriteFailed, name, err)
	}

	var toWrite [][]string
	if len(records) == 0 {
		toWrite = append(toWrite, header)
	} else if check != nil {
		if err := check(records[1:]); err != nil {
			return err
		}
	}
	toWrite = append(toWrite, row)

	if err := writeRecords(f, toWrite...); err != nil {
		return fmt.Errorf("%w: failed to append to %s: %w", ErrWriteFailed, name, err)
	}
	return nil
}

func readRecords(f *os.File) ([][]string, error) {
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	records, err := r.ReadAll()
	if err != nil && !errors.Is(err, io.EOF) {
		return nil, err
	}
	return records, nil
}

// writeRecords encodes the rows up front so they reach the file in one write.
func writeRecords(f *os.File, records ...[]string) error {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.WriteAll(records); err != nil {
		return err
	}
	_, err := f.Write(buf.Bytes())
	return err
}
