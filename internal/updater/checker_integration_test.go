package updater

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestCheckInBackground exercises the full ambient flow: fetch, cache,
// compare, notify.
func TestCheckInBackground(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "retread-cli", r.Header.Get("User-Agent"))
		_ = json.NewEncoder(w).Encode(GitHubRelease{TagName: "v2.0.0"})
	}))
	defer server.Close()

	checker := &Checker{
		currentVersion: "v1.0.0",
		cacheDir:       t.TempDir(),
		apiURL:         server.URL,
	}

	oldStderr := os.Stderr
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stderr = w

	checker.CheckInBackground()

	w.Close()
	os.Stderr = oldStderr

	var buf [1024]byte
	n, _ := r.Read(buf[:])
	assert.Contains(t, string(buf[:n]), "v2.0.0")

	// The run populated the cache, so the next one stays off the network.
	latest, fresh := checker.cachedLatest()
	assert.True(t, fresh)
	assert.Equal(t, "v2.0.0", latest)
}

// TestCheckInBackgroundSilent verifies the quiet paths: opted out, and
// up to date.
func TestCheckInBackgroundSilent(t *testing.T) {
	t.Run("opt-out skips the network entirely", func(t *testing.T) {
		t.Setenv("RETREAD_NO_UPDATE_CHECK", "1")

		calls := 0
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			calls++
		}))
		defer server.Close()

		checker := &Checker{currentVersion: "v1.0.0", cacheDir: t.TempDir(), apiURL: server.URL}
		checker.CheckInBackground()
		assert.Zero(t, calls)
	})

	t.Run("up-to-date build prints nothing", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(GitHubRelease{TagName: "v1.0.0"})
		}))
		defer server.Close()

		checker := &Checker{currentVersion: "v1.0.0", cacheDir: t.TempDir(), apiURL: server.URL}

		oldStderr := os.Stderr
		r, w, err := os.Pipe()
		require.NoError(t, err)
		os.Stderr = w

		checker.CheckInBackground()

		w.Close()
		os.Stderr = oldStderr

		var buf [256]byte
		n, _ := r.Read(buf[:])
		assert.Zero(t, n)
	})

	t.Run("api failure stays silent", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusInternalServerError)
		}))
		defer server.Close()

		checker := &Checker{currentVersion: "v1.0.0", cacheDir: t.TempDir(), apiURL: server.URL}
		checker.CheckInBackground()

		// Nothing cached on failure.
		_, fresh := checker.cachedLatest()
		assert.False(t, fresh)
	})
}
