// Copyright 2026 Retread Labs
// SPDX-License-Identifier: Apache-2.0

// Package quarantine manages the directory where modules that failed
// decoding or rewriting are parked. Quarantined files are kept for
// inspection, not forever: the directory is capped and cleaned least
// recently quarantined first.
package quarantine

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/retreadlabs/retread/internal/logger"
)

// Config holds quarantine configuration.
type Config struct {
	// MaxSizeBytes caps the quarantine directory (default 256MB).
	MaxSizeBytes int64
}

// DefaultConfig returns the default quarantine configuration.
func DefaultConfig() Config {
	return Config{
		MaxSizeBytes: 256 * 1024 * 1024,
	}
}

// Manager handles quarantine operations including cleanup.
type Manager struct {
	dir    string
	config Config
}

// NewManager creates a quarantine manager rooted at dir.
func NewManager(dir string, config Config) *Manager {
	return &Manager{dir: dir, config: config}
}

// FileInfo describes one quarantined file.
type FileInfo struct {
	Path    string
	Size    int64
	ModTime time.Time
}

// Dir returns the quarantine directory, creating it if needed.
func (m *Manager) Dir() (string, error) {
	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("create quarantine directory: %w", err)
	}
	return m.dir, nil
}

// Add moves the file at path into quarantine under a timestamped name and
// returns the destination path.
func (m *Manager) Add(path string) (string, error) {
	dir, err := m.Dir()
	if err != nil {
		return "", err
	}

	stamp := time.Now().UTC().Format("20060102-150405.000000000")
	dest := filepath.Join(dir, stamp+"_"+filepath.Base(path))

	if err := moveFile(path, dest); err != nil {
		return "", fmt.Errorf("quarantine %s: %w", path, err)
	}

	logger.Logger.Info("module quarantined", "from", path, "to", dest)
	return dest, nil
}

// moveFile renames when possible and falls back to copy+remove for
// cross-device moves.
func moveFile(src, dest string) error {
	if err := os.Rename(src, dest); err == nil {
		return nil
	}

	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dest, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		os.Remove(dest)
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(src)
}

// Size returns the current quarantine size in bytes.
func (m *Manager) Size() (int64, error) {
	var total int64
	err := filepath.Walk(m.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			total += info.Size()
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return 0, fmt.Errorf("calculate quarantine size: %w", err)
	}
	return total, nil
}

// List returns every quarantined file, oldest first.
func (m *Manager) List() ([]FileInfo, error) {
	var files []FileInfo
	err := filepath.Walk(m.dir, func(path string, info os.FileInfo, err error) error {
		if err != nil {
			return err
		}
		if !info.IsDir() {
			files = append(files, FileInfo{
				Path:    path,
				Size:    info.Size(),
				ModTime: info.ModTime(),
			})
		}
		return nil
	})
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("list quarantined files: %w", err)
	}

	sort.Slice(files, func(i, j int) bool {
		return files[i].ModTime.Before(files[j].ModTime)
	})
	return files, nil
}

// CleanupStatus contains information about a cleanup operation.
type CleanupStatus struct {
	FilesDeleted int
	SpaceFreed   int64
	OriginalSize int64
	FinalSize    int64
	DeletedFiles []string
}

// CleanLRU deletes the oldest quarantined files until the directory is at
// half the configured cap. A directory already under the cap is untouched.
func (m *Manager) CleanLRU() (*CleanupStatus, error) {
	if _, err := os.Stat(m.dir); os.IsNotExist(err) {
		return &CleanupStatus{}, nil
	}

	originalSize, err := m.Size()
	if err != nil {
		return nil, err
	}

	status := &CleanupStatus{
		OriginalSize: originalSize,
		DeletedFiles: []string{},
	}

	if originalSize <= m.config.MaxSizeBytes {
		status.FinalSize = originalSize
		return status, nil
	}

	files, err := m.List()
	if err != nil {
		return nil, err
	}

	targetSize := m.config.MaxSizeBytes / 2
	currentSize := originalSize

	for _, file := range files {
		if currentSize <= targetSize {
			break
		}

		if err := os.Remove(file.Path); err != nil {
			logger.Logger.Warn("failed to delete quarantined file", "path", file.Path, "error", err)
			continue
		}

		status.FilesDeleted++
		status.SpaceFreed += file.Size
		status.DeletedFiles = append(status.DeletedFiles, filepath.Base(file.Path))
		currentSize -= file.Size
	}

	status.FinalSize = currentSize

	logger.Logger.Info("quarantine cleanup completed",
		"files_deleted", status.FilesDeleted,
		"space_freed", status.SpaceFreed,
		"final_size", status.FinalSize)
	return status, nil
}

// FormatBytes converts bytes to human-readable form.
func FormatBytes(bytes int64) string {
	units := []string{"B", "KB", "MB", "GB", "TB"}
	size := float64(bytes)
	unitIndex := 0

	for size >= 1024 && unitIndex < len(units)-1 {
		size /= 1024
		unitIndex++
	}

	if unitIndex == 0 {
		return fmt.Sprintf("%.0f %s", size, units[unitIndex])
	}
	return fmt.Sprintf("%.2f %s", size, units[unitIndex])
}
