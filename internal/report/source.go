package report

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/cfarm/ccp-test/internal/errors"
)

// Source defines the interface for discovering scan reports awaiting
// processing.
type Source interface {
	// List returns report files currently present in the input directory.
	List(ctx context.Context) ([]FileInfo, error)

	// Fingerprint returns a content digest identifying one report revision.
	Fingerprint(ctx context.Context, path string) (string, error)
}

// FileInfo describes one discovered report file.
type FileInfo struct {
	Path    string
	Name    string
	Size    int64
	ModTime time.Time
}

// sourceImpl implements Source for a local input directory.
type sourceImpl struct {
	inputDir string
}

// NewSource creates a Source over the given input directory.
func NewSource(inputDir string) (Source, error) {
	if inputDir == "" {
		return nil, errors.NewPermanentf("input directory is required")
	}

	info, err := os.Stat(inputDir)
	if err != nil {
		return nil, errors.ClassifyFileError(inputDir, fmt.Errorf("failed to stat input directory: %w", err))
	}
	if !info.IsDir() {
		return nil, errors.NewPermanentf("input path is not a directory: %s", inputDir)
	}

	return &sourceImpl{inputDir: inputDir}, nil
}

// List returns report files in the input directory, sorted by name for a
// deterministic discovery order. Only files matching a known report format
// prefix are returned.
func (s *sourceImpl) List(ctx context.Context) ([]FileInfo, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	dirEntries, err := os.ReadDir(s.inputDir)
	if err != nil {
		return nil, errors.ClassifyFileError(s.inputDir, fmt.Errorf("failed to list input directory: %w", err))
	}

	var files []FileInfo
	for _, entry := range dirEntries {
		if entry.IsDir() || !IsReportFile(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// File vanished between ReadDir and Info; the next cycle picks
			// it up if it comes back.
			continue
		}
		files = append(files, FileInfo{
			Path:    filepath.Join(s.inputDir, entry.Name()),
			Name:    entry.Name(),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}

	sort.Slice(files, func(i, j int) bool { return files[i].Name < files[j].Name })
	return files, nil
}

// Fingerprint returns the hex SHA-256 of the file contents.
func (s *sourceImpl) Fingerprint(ctx context.Context, path string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	f, err := os.Open(path)
	if err != nil {
		return "", errors.ClassifyFileError(path, fmt.Errorf("failed to open report file: %w", err))
	}
	defer f.Close()

	h := sha256.New()
	if _, err := io.Copy(h, f); err != nil {
		return "", errors.NewTransientf("failed to hash report file %s: %w", path, err)
	}

	return "sha256:" + hex.EncodeToString(h.Sum(nil)), nil
}
