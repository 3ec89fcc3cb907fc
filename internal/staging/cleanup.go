package staging

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"ampliflow/internal/logging"
)

// WorkRootName is the directory inside an output directory that holds
// per-run work directories.
const WorkRootName = ".ampliflow-work"

// WorkRoot returns the work root of outputDir.
func WorkRoot(outputDir string) string {
	return filepath.Join(outputDir, WorkRootName)
}

// RunDir returns the work directory of runID inside outputDir.
func RunDir(outputDir, runID string) string {
	return filepath.Join(WorkRoot(outputDir), runID)
}

// DirInfo describes one run work directory.
type DirInfo struct {
	RunID   string
	Path    string
	ModTime time.Time
	Size    int64
}

// CleanResult contains the outcome of a cleanup.
type CleanResult struct {
	Removed []DirInfo
	Errors  []CleanupError
}

// Freed returns the bytes reclaimed by removed directories.
func (r CleanResult) Freed() int64 {
	var total int64
	for _, dir := range r.Removed {
		total += dir.Size
	}
	return total
}

// CleanupError pairs a directory path with its cleanup error.
type CleanupError struct {
	Path  string
	Error error
}

// List returns the run work directories under outputDir sorted by run ID.
// A missing work root yields no entries.
func List(outputDir string) ([]DirInfo, error) {
	outputDir = strings.TrimSpace(outputDir)
	if outputDir == "" {
		return nil, nil
	}
	root := WorkRoot(outputDir)
	entries, err := os.ReadDir(root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}

	var dirs []DirInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		dirPath := filepath.Join(root, entry.Name())
		size, _ := dirSize(dirPath)
		dirs = append(dirs, DirInfo{
			RunID:   entry.Name(),
			Path:    dirPath,
			ModTime: info.ModTime(),
			Size:    size,
		})
	}
	sort.Slice(dirs, func(i, j int) bool { return dirs[i].RunID < dirs[j].RunID })
	return dirs, nil
}

// CleanOrphaned removes work directories under outputDir whose run ID is not
// in keep, then removes the work root when it is left empty.
func CleanOrphaned(ctx context.Context, outputDir string, keep map[string]struct{}, logger *slog.Logger) CleanResult {
	result := CleanResult{}

	dirs, err := List(outputDir)
	if err != nil {
		result.Errors = append(result.Errors, CleanupError{Path: WorkRoot(outputDir), Error: err})
		return result
	}

	for _, dir := range dirs {
		if ctx.Err() != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dir.Path, Error: ctx.Err()})
			return result
		}
		if _, ok := keep[dir.RunID]; ok {
			continue
		}
		if err := os.RemoveAll(dir.Path); err != nil {
			result.Errors = append(result.Errors, CleanupError{Path: dir.Path, Error: err})
			if logger != nil {
				logger.Warn("failed to remove orphaned work directory",
					logging.String("path", dir.Path),
					logging.Error(err),
					logging.String(logging.FieldEventType, "workdir_cleanup_failed"),
					logging.String(logging.FieldErrorHint, "check output_dir permissions"),
					logging.String(logging.FieldImpact, "disk space not reclaimed"),
				)
			}
			continue
		}
		result.Removed = append(result.Removed, dir)
		if logger != nil {
			logger.Info("removed orphaned work directory",
				logging.String("path", dir.Path),
				logging.Int64("size_bytes", dir.Size),
				logging.String(logging.FieldEventType, "workdir_cleanup"),
			)
		}
	}

	// Fails harmlessly while other run directories remain.
	_ = os.Remove(WorkRoot(outputDir))
	return result
}

// dirSize calculates the total size of a directory recursively.
func dirSize(path string) (int64, error) {
	var size int64
	err := filepath.Walk(path, func(_ string, info os.FileInfo, err error) error {
		if err != nil {
			return nil
		}
		if !info.IsDir() {
			size += info.Size()
		}
		return nil
	})
	return size, err
}
