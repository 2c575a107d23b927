package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"

	"github.com/ternarybob/setwatch/internal/common"
	"github.com/ternarybob/setwatch/internal/models"
)

const detailPage = `<html><body><table>
<tr><td>จำนวนหุ้นที่ซื้อคืนรวม</td><td>1,234,500 หุ้น</td></tr>
<tr><td>ราคาสูงสุด</td><td>152.50</td></tr>
</table></body></html>`

func newSETServer(t *testing.T) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/th/market/product/stock/quote/KBANK/news", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("<html></html>"))
	})
	mux.HandleFunc("/api/set/news/search", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"newsInfoList": [
			{"id": "101", "headline": "รายงานผลการซื้อหุ้นคืน", "datetime": "2026-10-15T17:31:00+07:00", "url": "/detail/101"},
			{"id": "100", "headline": "งบการเงินไตรมาส 3", "datetime": "2026-10-14T08:00:00+07:00", "url": "/detail/100"}
		]}`))
	})
	mux.HandleFunc("/detail/101", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(detailPage))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func testConfig(t *testing.T, baseURL string) *common.Config {
	t.Helper()
	cfg := common.NewDefaultConfig()
	cfg.Source.BaseURL = baseURL
	cfg.Source.RequestInterval = "0s"
	cfg.State.File.Path = filepath.Join(t.TempDir(), "state.json")
	cfg.Watch.DryRun = true
	require.NoError(t, cfg.Validate())
	return cfg
}

func TestRunDryRunEndToEnd(t *testing.T) {
	server := newSETServer(t)
	cfg := testConfig(t, server.URL)

	application, err := New(cfg, arbor.NewNoOpLogger())
	require.NoError(t, err)
	defer application.Close()

	summary, err := application.Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, summary.Listed)
	assert.Equal(t, 1, summary.Matched)
	assert.Equal(t, []string{"101"}, summary.Notified)
	assert.False(t, summary.Committed)

	state, err := application.StateStorage.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestRunCommitsWithBadgerState(t *testing.T) {
	server := newSETServer(t)
	cfg := testConfig(t, server.URL)
	cfg.State.Type = "badger"
	cfg.State.Badger.Path = filepath.Join(t.TempDir(), "db")
	cfg.Watch.DryRun = false
	cfg.SMTP.Host = "127.0.0.1"
	cfg.SMTP.Port = 1
	cfg.SMTP.Security = "none"
	cfg.SMTP.From = "alerts@example.com"
	cfg.SMTP.To = []string{"ops@example.com"}
	require.NoError(t, cfg.Validate())

	application, err := New(cfg, arbor.NewNoOpLogger())
	require.NoError(t, err)
	defer application.Close()

	// Nothing listens on port 1, so delivery fails and nothing is committed
	_, err = application.Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, models.ExitDelivery, models.ExitCode(err))

	state, err := application.StateStorage.Load(context.Background())
	require.NoError(t, err)
	assert.Nil(t, state)
}

func TestNewRejectsUnknownStateType(t *testing.T) {
	cfg := common.NewDefaultConfig()
	cfg.State.Type = "sqlite"

	_, err := New(cfg, arbor.NewNoOpLogger())
	require.Error(t, err)
	assert.ErrorIs(t, err, models.ErrStorage)
}

func TestWatchStopsWhenStateTurnsCorrupt(t *testing.T) {
	server := newSETServer(t)
	cfg := testConfig(t, server.URL)
	cfg.Schedule.Cron = "@every 1s"

	application, err := New(cfg, arbor.NewNoOpLogger())
	require.NoError(t, err)
	defer application.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	done := make(chan error, 1)
	go func() { done <- application.Watch(ctx) }()

	// The first run finishes on clean state, then a later tick finds the file damaged
	require.Eventually(t, func() bool {
		last, _ := application.SchedulerService.LastRun()
		return !last.IsZero()
	}, 5*time.Second, 20*time.Millisecond)
	require.NoError(t, os.WriteFile(cfg.State.File.Path, []byte("not json"), 0644))

	select {
	case err := <-done:
		require.Error(t, err)
		assert.ErrorIs(t, err, models.ErrStateCorrupt)
		assert.Equal(t, models.ExitStateCorrupt, models.ExitCode(err))
	case <-time.After(10 * time.Second):
		t.Fatal("watch kept running on corrupt state")
	}
}

func TestWatchReturnsNilOnCancel(t *testing.T) {
	server := newSETServer(t)
	cfg := testConfig(t, server.URL)

	application, err := New(cfg, arbor.NewNoOpLogger())
	require.NoError(t, err)
	defer application.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- application.Watch(ctx) }()

	require.Eventually(t, func() bool {
		last, _ := application.SchedulerService.LastRun()
		return !last.IsZero()
	}, 5*time.Second, 20*time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("watch did not stop on cancel")
	}
}
