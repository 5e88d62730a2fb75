// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

// Package updater checks the GitHub releases API for a newer retread
// build. Results are cached for a day so the check costs at most one
// request per day.
package updater

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hashicorp/go-version"
)

const (
	// GitHubAPIURL is the endpoint for fetching the latest release.
	GitHubAPIURL = "https://api.github.com/repos/retreadlabs/retread/releases/latest"
	// CheckInterval is how long a cached result stays fresh.
	CheckInterval = 24 * time.Hour
	// RequestTimeout is the maximum time to wait for the GitHub API.
	RequestTimeout = 5 * time.Second

	cacheFileName = "last_update_check"
)

// Checker handles update checking.
type Checker struct {
	currentVersion string
	cacheDir       string
	apiURL         string
}

// GitHubRelease is the slice of the GitHub release payload we care about.
type GitHubRelease struct {
	TagName string `json:"tag_name"`
}

// CacheData stores the last check timestamp and latest known version.
type CacheData struct {
	LastCheck     time.Time `json:"last_check"`
	LatestVersion string    `json:"latest_version"`
}

// Result is the outcome of an update check.
type Result struct {
	CurrentVersion  string `json:"current_version"`
	LatestVersion   string `json:"latest_version"`
	UpdateAvailable bool   `json:"update_available"`
}

// NewChecker creates an update checker for the given build version.
func NewChecker(currentVersion string) *Checker {
	return &Checker{
		currentVersion: currentVersion,
		cacheDir:       getCacheDir(),
		apiURL:         GitHubAPIURL,
	}
}

// Check returns the latest release, consulting the cache before the
// network. Used by the explicit --check-updates path.
func (c *Checker) Check(ctx context.Context) (*Result, error) {
	latest, fresh := c.cachedLatest()
	if !fresh {
		fetched, err := c.fetchLatestVersion(ctx)
		if err != nil {
			return nil, err
		}
		latest = fetched
		// A stale cache only costs an extra request next time.
		_ = c.updateCache(latest)
	}

	needsUpdate, err := c.compareVersions(c.currentVersion, latest)
	if err != nil {
		return nil, err
	}

	return &Result{
		CurrentVersion:  c.currentVersion,
		LatestVersion:   latest,
		UpdateAvailable: needsUpdate,
	}, nil
}

// CheckInBackground performs the ambient update check: silent on any
// failure, skipped when opted out or recently checked, writing a stderr
// notice when a newer release exists. Meant to run in a goroutine.
func (c *Checker) CheckInBackground() {
	if c.isDisabled() {
		return
	}
	if _, fresh := c.cachedLatest(); fresh {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), RequestTimeout)
	defer cancel()

	latest, err := c.fetchLatestVersion(ctx)
	if err != nil {
		return
	}
	if err := c.updateCache(latest); err != nil {
		return
	}

	needsUpdate, err := c.compareVersions(c.currentVersion, latest)
	if err != nil || !needsUpdate {
		return
	}
	c.displayNotification(latest)
}

// cachedLatest returns the cached version and whether it is still fresh.
func (c *Checker) cachedLatest() (string, bool) {
	data, err := os.ReadFile(filepath.Join(c.cacheDir, cacheFileName))
	if err != nil {
		return "", false
	}

	var cache CacheData
	if err := json.Unmarshal(data, &cache); err != nil {
		return "", false
	}
	if time.Since(cache.LastCheck) >= CheckInterval {
		return "", false
	}
	return cache.LatestVersion, true
}

// fetchLatestVersion calls the GitHub API for the latest release tag.
func (c *Checker) fetchLatestVersion(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", c.apiURL, nil)
	if err != nil {
		return "", err
	}

	// GitHub requires a User-Agent.
	req.Header.Set("User-Agent", "retread-cli")
	req.Header.Set("Accept", "application/vnd.github+json")

	client := &http.Client{Timeout: RequestTimeout}
	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", err
	}

	var release GitHubRelease
	if err := json.Unmarshal(body, &release); err != nil {
		return "", err
	}
	return release.TagName, nil
}

// compareVersions reports whether latest is newer than current. Dev
// builds never want an update.
func (c *Checker) compareVersions(current, latest string) (bool, error) {
	current = strings.TrimPrefix(current, "v")
	latest = strings.TrimPrefix(latest, "v")

	if current == "dev" || current == "" {
		return false, nil
	}

	currentVer, err := version.NewVersion(current)
	if err != nil {
		return false, err
	}
	latestVer, err := version.NewVersion(latest)
	if err != nil {
		return false, err
	}
	return latestVer.GreaterThan(currentVer), nil
}

// displayNotification prints the update message to stderr.
func (c *Checker) displayNotification(latestVersion string) {
	fmt.Fprintf(os.Stderr,
		"\nA new version (%s) is available. Run 'go install github.com/retreadlabs/retread/cmd/retread@latest' to update.\n\n",
		latestVersion,
	)
}

// updateCache records the latest check time and version.
func (c *Checker) updateCache(latestVersion string) error {
	if err := os.MkdirAll(c.cacheDir, 0o755); err != nil {
		return err
	}

	data, err := json.Marshal(CacheData{
		LastCheck:     time.Now(),
		LatestVersion: latestVersion,
	})
	if err != nil {
		return err
	}
	return os.WriteFile(filepath.Join(c.cacheDir, cacheFileName), data, 0o644)
}

// isDisabled reports whether the user opted out of ambient checks.
func (c *Checker) isDisabled() bool {
	return os.Getenv("RETREAD_NO_UPDATE_CHECK") != ""
}

// getCacheDir returns the platform cache directory for retread.
func getCacheDir() string {
	if cacheDir, err := os.UserCacheDir(); err == nil {
		return filepath.Join(cacheDir, "retread")
	}
	if homeDir, err := os.UserHomeDir(); err == nil {
		return filepath.Join(homeDir, ".cache", "retread")
	}
	return filepath.Join(os.TempDir(), "retread")
}
