package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os/exec"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ternarybob/arbor"
)

func requireChrome(t *testing.T) {
	t.Helper()
	for _, name := range []string{"headless-shell", "chromium", "chromium-browser", "google-chrome", "google-chrome-stable"} {
		if _, err := exec.LookPath(name); err == nil {
			return
		}
	}
	t.Skip("no Chrome binary available")
}

func TestCloseWithoutStart(t *testing.T) {
	r := NewRenderer(arbor.NewNoOpLogger(), "", 0, 0)
	assert.NoError(t, r.Close())
	assert.Equal(t, 60*time.Second, r.timeout)
}

func TestDeadBrowserIsDropped(t *testing.T) {
	r := NewRenderer(arbor.NewNoOpLogger(), "", 0, 0)

	released := 0
	browserCtx, browserCancel := context.WithCancel(context.Background())
	r.browserCtx = browserCtx
	r.browserCancel = func() { released++; browserCancel() }
	r.allocatorCancel = func() { released++ }

	assert.False(t, r.dropDeadBrowser(), "live browser must be kept")
	assert.NotNil(t, r.browserCtx)

	// Chrome exiting ends the browser context
	browserCancel()

	assert.True(t, r.dropDeadBrowser())
	assert.Nil(t, r.browserCtx)
	assert.Equal(t, 2, released)
	assert.False(t, r.dropDeadBrowser())
	assert.NoError(t, r.Close())
}

func TestFetchPageRelaunchesAfterBrowserExit(t *testing.T) {
	requireChrome(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body>ok</body></html>`))
	}))
	defer server.Close()

	r := NewRenderer(arbor.NewNoOpLogger(), "", 0, 30*time.Second)
	defer r.Close()

	_, err := r.FetchPage(context.Background(), server.URL)
	require.NoError(t, err)

	r.mu.Lock()
	r.browserCancel()
	r.mu.Unlock()

	page, err := r.FetchPage(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, string(page), "ok")
}

func TestFetchPageRendersScript(t *testing.T) {
	requireChrome(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte(`<html><body><div id="out"></div>
<script>document.getElementById("out").textContent = "จำนวนหุ้นที่ซื้อคืนรวม 1,000";</script>
</body></html>`))
	}))
	defer server.Close()

	r := NewRenderer(arbor.NewNoOpLogger(), "setwatch-test", 200*time.Millisecond, 30*time.Second)
	defer r.Close()

	page, err := r.FetchPage(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Contains(t, string(page), "จำนวนหุ้นที่ซื้อคืนรวม 1,000")
}
