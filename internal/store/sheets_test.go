package store

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/option"
)

// fakeSheets serves the handful of Sheets v4 endpoints SheetsStore uses.
type fakeSheets struct {
	mu     sync.Mutex
	sheets map[string][][]string
	calls  []string
}

func newFakeSheets(t *testing.T) (*fakeSheets, *httptest.Server) {
	t.Helper()
	f := &fakeSheets{sheets: make(map[string][][]string)}
	srv := httptest.NewServer(http.HandlerFunc(f.serve))
	t.Cleanup(srv.Close)
	return f, srv
}

func (f *fakeSheets) serve(w http.ResponseWriter, r *http.Request) {
	f.mu.Lock()
	defer f.mu.Unlock()

	path := strings.TrimPrefix(r.URL.Path, "/v4/spreadsheets/")
	f.calls = append(f.calls, r.Method+" "+path)
	w.Header().Set("Content-Type", "application/json")

	id, rest, _ := strings.Cut(path, "/")
	switch {
	case r.Method == http.MethodGet && rest == "" && !strings.Contains(id, ":"):
		var list []map[string]any
		for title := range f.sheets {
			list = append(list, map[string]any{"properties": map[string]any{"title": title}})
		}
		json.NewEncoder(w).Encode(map[string]any{"sheets": list})

	case r.Method == http.MethodPost && strings.HasSuffix(id, ":batchUpdate"):
		var req struct {
			Requests []struct {
				AddSheet struct {
					Properties struct {
						Title string `json:"title"`
					} `json:"properties"`
				} `json:"addSheet"`
			} `json:"requests"`
		}
		json.NewDecoder(r.Body).Decode(&req)
		for _, rq := range req.Requests {
			f.sheets[rq.AddSheet.Properties.Title] = nil
		}
		json.NewEncoder(w).Encode(map[string]any{"spreadsheetId": strings.TrimSuffix(id, ":batchUpdate")})

	case strings.HasPrefix(rest, "values/"):
		rng := strings.TrimPrefix(rest, "values/")
		appendCall := strings.HasSuffix(rng, ":append")
		rng = strings.TrimSuffix(rng, ":append")
		sheet, cells, _ := strings.Cut(rng, "!")
		headerOnly := strings.HasSuffix(cells, "1") && strings.Contains(cells, "A1")

		switch {
		case r.Method == http.MethodGet:
			rows := f.sheets[sheet]
			if headerOnly && len(rows) > 1 {
				rows = rows[:1]
			}
			json.NewEncoder(w).Encode(map[string]any{"range": rng, "values": rows})
		case r.Method == http.MethodPut || appendCall:
			var body struct {
				Values [][]string `json:"values"`
			}
			json.NewDecoder(r.Body).Decode(&body)
			if appendCall {
				f.sheets[sheet] = append(f.sheets[sheet], body.Values...)
			} else if len(f.sheets[sheet]) == 0 {
				f.sheets[sheet] = body.Values
			} else {
				f.sheets[sheet][0] = body.Values[0]
			}
			json.NewEncoder(w).Encode(map[string]any{})
		}

	default:
		http.Error(w, `{"error":{"code":404,"message":"not found"}}`, http.StatusNotFound)
	}
}

func newTestSheetsStore(t *testing.T, srv *httptest.Server) *SheetsStore {
	t.Helper()
	s, err := NewSheetsStore(context.Background(), "sheet-id",
		option.WithEndpoint(srv.URL+"/"),
		option.WithoutAuthentication(),
	)
	require.NoError(t, err)
	return s
}

func TestSheetsStore(t *testing.T) {
	testStoreContract(t, func(t *testing.T) Store {
		_, srv := newFakeSheets(t)
		return newTestSheetsStore(t, srv)
	})
}

func TestSheetsStore_CreatesWorksheetWithHeader(t *testing.T) {
	fake, srv := newFakeSheets(t)
	s := newTestSheetsStore(t, srv)

	require.NoError(t, s.AppendUser(context.Background(), "a@x.com", "h"))

	fake.mu.Lock()
	defer fake.mu.Unlock()
	require.Contains(t, fake.sheets, "users")
	assert.Equal(t, [][]string{{"email", "password"}, {"a@x.com", "h"}}, fake.sheets["users"])
}

func TestSheetsStore_EnsuresSheetOnce(t *testing.T) {
	fake, srv := newFakeSheets(t)
	s := newTestSheetsStore(t, srv)
	ctx := context.Background()

	_, err := s.LoadUsers(ctx)
	require.NoError(t, err)
	_, err = s.LoadUsers(ctx)
	require.NoError(t, err)

	fake.mu.Lock()
	defer fake.mu.Unlock()
	batchUpdates := 0
	for _, c := range fake.calls {
		if strings.Contains(c, ":batchUpdate") {
			batchUpdates++
		}
	}
	assert.Equal(t, 1, batchUpdates)
}

func TestColumnLetter(t *testing.T) {
	assert.Equal(t, "A", columnLetter(1))
	assert.Equal(t, "D", columnLetter(4))
	assert.Equal(t, "users!A:B", columnRange("users", 2))
}
