package store

import (
	"context"
	"fmt"
	"sync"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

const (
	usersSheet        = "users"
	chatLogsSheet     = "chat_logs"
	feedbackLogsSheet = "feedback_logs"
)

// SheetsStore keeps each table as a worksheet of one Google spreadsheet.
// Missing worksheets are created with their header row on first access.
//
// Sheets has no row locks, so AppendUser checks and appends under a process
// mutex; LoadUsers keeps the first row per email, which means a duplicate
// appended concurrently by another process can never replace an existing
// hash.
type SheetsStore struct {
	svc           *sheets.Service
	spreadsheetID string

	mu    sync.Mutex
	ready map[string]bool
}

func NewSheetsStore(ctx context.Context, spreadsheetID string, opts ...option.ClientOption) (*SheetsStore, error) {
	svc, err := sheets.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to create sheets client: %w", ErrUnavailable, err)
	}
	return &SheetsStore{
		svc:           svc,
		spreadsheetID: spreadsheetID,
		ready:         make(map[string]bool),
	}, nil
}

func (s *SheetsStore) Close() error { return nil }

func (s *SheetsStore) LoadUsers(ctx context.Context) (map[string]string, error) {
	rows, err := s.rows(ctx, usersSheet, usersHeader)
	if err != nil {
		return nil, err
	}
	users := make(map[string]string, len(rows))
	for _, row := range rows {
		if len(row) < 2 {
			continue
		}
		email := NormalizeEmail(row[0])
		if email == "" {
			continue
		}
		if _, seen := users[email]; !seen {
			users[email] = row[1]
		}
	}
	return users, nil
}

func (s *SheetsStore) AppendUser(ctx context.Context, email, passwordHash string) error {
	email = NormalizeEmail(email)

	s.mu.Lock()
	defer s.mu.Unlock()

	rows, err := s.rowsLocked(ctx, usersSheet, usersHeader)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	for _, row := range rows {
		if len(row) > 0 && NormalizeEmail(row[0]) == email {
			return ErrDuplicate
		}
	}
	return s.appendLocked(ctx, usersSheet, []string{email, passwordHash})
}

func (s *SheetsStore) AppendChatLog(ctx context.Context, entry ChatLogEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureSheet(ctx, chatLogsSheet, chatLogsHeader); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return s.appendLocked(ctx, chatLogsSheet, []string{entry.Email, formatTimestamp(entry.Timestamp), entry.Question, entry.Answer})
}

func (s *SheetsStore) AppendFeedback(ctx context.Context, event FeedbackEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ensureSheet(ctx, feedbackLogsSheet, feedbackLogsHeader); err != nil {
		return fmt.Errorf("%w: %w", ErrWriteFailed, err)
	}
	return s.appendLocked(ctx, feedbackLogsSheet, []string{event.Email, formatTimestamp(event.Timestamp), event.Question, string(event.Verdict)})
}

func (s *SheetsStore) ChatLogs(ctx context.Context, email string) ([]ChatLogEntry, error) {
	rows, err := s.rows(ctx, chatLogsSheet, chatLogsHeader)
	if err != nil {
		return nil, err
	}
	email = NormalizeEmail(email)
	var entries []ChatLogEntry
	for _, row := range rows {
		if len(row) < 4 || NormalizeEmail(row[0]) != email {
			continue
		}
		entries = append(entries, ChatLogEntry{
			Email:     row[0],
			Timestamp: parseTimestamp(row[1]),
			Question:  row[2],
			Answer:    row[3],
		})
	}
	return entries, nil
}

func (s *SheetsStore) rows(ctx context.Context, sheet string, header []string) ([][]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rowsLocked(ctx, sheet, header)
}

// rowsLocked returns the data rows below the header.
func (s *SheetsStore) rowsLocked(ctx context.Context, sheet string, header []string) ([][]string, error) {
	if err := s.ensureSheet(ctx, sheet, header); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnavailable, err)
	}
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, columnRange(sheet, len(header))).Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("%w: failed to read sheet %s: %w", ErrUnavailable, sheet, err)
	}
	if len(resp.Values) <= 1 {
		return nil, nil
	}
	rows := make([][]string, 0, len(resp.Values)-1)
	for _, raw := range resp.Values[1:] {
		row := make([]string, len(raw))
		for i, v := range raw {
			row[i] = fmt.Sprint(v)
		}
		rows = append(rows, row)
	}
	return rows, nil
}

func (s *SheetsStore) appendLocked(ctx context.Context, sheet string, row []string) error {
	values := make([]interface{}, len(row))
	for i, v := range row {
		values[i] = v
	}
	_, err := s.svc.Spreadsheets.Values.Append(s.spreadsheetID, columnRange(sheet, len(row)), &sheets.ValueRange{
		Values: [][]interface{}{values},
	}).ValueInputOption("RAW").InsertDataOption("INSERT_ROWS").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("%w: failed to append to sheet %s: %w", ErrWriteFailed, sheet, err)
	}
	return nil
}

// ensureSheet creates the worksheet and its header row if either is missing.
// Callers hold s.mu.
func (s *SheetsStore) ensureSheet(ctx context.Context, sheet string, header []string) error {
	if s.ready[sheet] {
		return nil
	}

	spreadsheet, err := s.svc.Spreadsheets.Get(s.spreadsheetID).Fields("sheets.properties.title").Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read spreadsheet: %w", err)
	}
	exists := false
	for _, sh := range spreadsheet.Sheets {
		if sh.Properties != nil && sh.Properties.Title == sheet {
			exists = true
			break
		}
	}
	if !exists {
		_, err := s.svc.Spreadsheets.BatchUpdate(s.spreadsheetID, &sheets.BatchUpdateSpreadsheetRequest{
			Requests: []*sheets.Request{{
				AddSheet: &sheets.AddSheetRequest{Properties: &sheets.SheetProperties{Title: sheet}},
			}},
		}).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", sheet, err)
		}
	}

	headerRange := fmt.Sprintf("%s!A1:%s1", sheet, columnLetter(len(header)))
	resp, err := s.svc.Spreadsheets.Values.Get(s.spreadsheetID, headerRange).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("failed to read header of %s: %w", sheet, err)
	}
	if len(resp.Values) == 0 {
		values := make([]interface{}, len(header))
		for i, h := range header {
			values[i] = h
		}
		_, err := s.svc.Spreadsheets.Values.Update(s.spreadsheetID, headerRange, &sheets.ValueRange{
			Values: [][]interface{}{values},
		}).ValueInputOption("RAW").Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to write header of %s: %w", sheet, err)
		}
	}

	s.ready[sheet] = true
	return nil
}

func columnRange(sheet string, width int) string {
	return fmt.Sprintf("%s!A:%s", sheet, columnLetter(width))
}

// columnLetter maps 1..26 to A..Z; every table here is narrower than that.
func columnLetter(n int) string {
	return string(rune('A' + n - 1))
}
