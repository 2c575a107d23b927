package news

import (
	"context"
	"net/http"
	"net/http/httptest"
	"slices"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
	"github.com/tidwall/gjson"

	"github.com/ternarybob/setwatch/internal/httpclient"
	"github.com/ternarybob/setwatch/internal/models"
)

const listingJSON = `{
	"symbol": "KBANK",
	"meta": {"tags": ["buyback", "report"]},
	"newsInfoList": [
		{"id": 9001, "headline": "  รายงานผลการซื้อหุ้นคืน  ", "datetime": "2026-10-15T17:31:00+07:00", "url": "/th/market/news-and-alert/newsdetails?id=9001&symbol=KBANK"},
		{"newsId": "9000", "title": "Financial Statement Q3", "publishDate": "2026-10-14 08:00:00"},
		{"id": 9001, "headline": "duplicate"},
		{"subject": "", "detailUrl": "https://example.com/detail/1"},
		{"foo": "bar", "n": 12345678901234567890}
	]
}`

func newTestProvider(t *testing.T, handler http.Handler) (*SETProvider, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := httpclient.New(httpclient.WithRequestInterval(0))
	require.NoError(t, err)

	p := NewSETProvider(arbor.NewNoOpLogger(), client, server.URL, true)
	p.now = func() time.Time { return time.Date(2026, 10, 16, 3, 0, 0, 0, time.UTC) }
	return p, server
}

func TestListWarmsUpAndParses(t *testing.T) {
	var gotQuery map[string]string
	mux := http.NewServeMux()
	mux.HandleFunc("/th/market/product/stock/quote/KBANK/news", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "incap_ses", Value: "warm", Path: "/"})
		w.Write([]byte("<html></html>"))
	})
	mux.HandleFunc("/api/set/news/search", func(w http.ResponseWriter, r *http.Request) {
		if c, err := r.Cookie("incap_ses"); err != nil || c.Value != "warm" {
			w.WriteHeader(http.StatusForbidden)
			return
		}
		assert.Equal(t, "XMLHttpRequest", r.Header.Get("X-Requested-With"))
		assert.Contains(t, r.Header.Get("Referer"), "/th/market/product/stock/quote/KBANK/news")
		assert.NotEmpty(t, r.Header.Get("Origin"))
		gotQuery = map[string]string{
			"symbol":   r.URL.Query().Get("symbol"),
			"fromDate": r.URL.Query().Get("fromDate"),
			"toDate":   r.URL.Query().Get("toDate"),
			"lang":     r.URL.Query().Get("lang"),
		}
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(listingJSON))
	})

	p, server := newTestProvider(t, mux)

	seq, err := p.List(context.Background(), "kbank", "th", 14)
	require.NoError(t, err)

	items := slices.Collect(seq)
	require.Len(t, items, 4)

	assert.Equal(t, map[string]string{
		"symbol":   "KBANK",
		"fromDate": "02/10/2026",
		"toDate":   "16/10/2026",
		"lang":     "th",
	}, gotQuery)

	assert.Equal(t, "9001", items[0].ID)
	assert.Equal(t, "รายงานผลการซื้อหุ้นคืน", items[0].Headline)
	assert.Equal(t, server.URL+"/th/market/news-and-alert/newsdetails?id=9001&symbol=KBANK", items[0].DetailURL)
	assert.True(t, items[0].PublishedAt.Equal(time.Date(2026, 10, 15, 10, 31, 0, 0, time.UTC)))
	assert.Equal(t, "KBANK", items[0].Symbol)

	assert.Equal(t, "9000", items[1].ID)
	assert.Equal(t, "Financial Statement Q3", items[1].Headline)
	assert.Equal(t, server.URL+"/th/market/news-and-alert/newsdetails?id=9000&symbol=KBANK", items[1].DetailURL)
	assert.Equal(t, 2026, items[1].PublishedAt.Year())

	assert.Equal(t, "https://example.com/detail/1", items[2].ID)
	assert.Equal(t, NoTitle, items[2].Headline)
	assert.True(t, items[2].PublishedAt.IsZero())

	assert.Equal(t, `{"foo":"bar","n":12345678901234567890}`, items[3].ID)
}

func TestListStopsEarly(t *testing.T) {
	p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(listingJSON))
	}))

	seq, err := p.List(context.Background(), "KBANK", "en", 1)
	require.NoError(t, err)

	var first []models.NewsItem
	for item := range seq {
		first = append(first, item)
		break
	}
	require.Len(t, first, 1)
	assert.Contains(t, first[0].DetailURL, "id=9001")
}

func TestListErrors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind error
		contains string
	}{
		{"forbidden", http.StatusForbidden, "Access denied by edge firewall", models.ErrTransport, "Access denied"},
		{"server error", http.StatusBadGateway, "bad gateway", models.ErrTransport, "502"},
		{"not json", http.StatusOK, "<html>maintenance</html>", models.ErrFormat, "not valid JSON"},
		{"no arrays", http.StatusOK, `{"status":"ok"}`, models.ErrFormat, "no item array"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != searchPath {
					return
				}
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))

			_, err := p.List(context.Background(), "KBANK", "th", 14)
			require.Error(t, err)
			assert.ErrorIs(t, err, tt.wantKind)
			assert.Contains(t, err.Error(), tt.contains)
			assert.Contains(t, err.Error(), "phase=list")
		})
	}
}

func TestListEmptyListing(t *testing.T) {
	p, _ := newTestProvider(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"newsInfoList": []}`))
	}))

	seq, err := p.List(context.Background(), "KBANK", "th", 14)
	require.NoError(t, err)
	assert.Empty(t, slices.Collect(seq))
}

func TestListPreconditions(t *testing.T) {
	p, _ := newTestProvider(t, http.NotFoundHandler())

	_, err := p.List(context.Background(), " ", "th", 14)
	assert.ErrorIs(t, err, models.ErrConfig)

	_, err = p.List(context.Background(), "KBANK", "th", 0)
	assert.ErrorIs(t, err, models.ErrConfig)
}

func TestFindItemList(t *testing.T) {
	tests := []struct {
		name      string
		doc       string
		wantLen   int
		wantFound bool
	}{
		{"top level array", `[{"id":1},{"id":2}]`, 2, true},
		{"nested after scalar array", `{"a":[1,2],"b":{"c":[{"id":1}]}}`, 1, true},
		{"mixed array is skipped", `{"a":[{"id":1},2]}`, 0, true},
		{"no arrays", `{"a":{"b":1}}`, 0, false},
		{"scalar", `42`, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			items, found := findItemList(gjson.Parse(tt.doc))
			assert.Len(t, items, tt.wantLen)
			assert.Equal(t, tt.wantFound, found)
		})
	}
}

func TestParseTimestamp(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Time
	}{
		{"2026-10-15T17:31:00+07:00", time.Date(2026, 10, 15, 17, 31, 0, 0, Bangkok)},
		{"2026-10-15T17:31:00", time.Date(2026, 10, 15, 17, 31, 0, 0, Bangkok)},
		{"15/10/2026 17:31", time.Date(2026, 10, 15, 17, 31, 0, 0, Bangkok)},
		{"15/10/2026", time.Date(2026, 10, 15, 0, 0, 0, 0, Bangkok)},
	}
	for _, tt := range tests {
		assert.True(t, tt.want.Equal(ParseTimestamp(tt.raw)), tt.raw)
	}
	assert.True(t, ParseTimestamp("yesterday").IsZero())
}
