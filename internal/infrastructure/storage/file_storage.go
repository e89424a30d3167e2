package storage

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/garyjia/invoice-notifier/internal/application/port"
)

// LocalArtifactStore implements port.ArtifactStore on the local filesystem.
// Refs are slash-separated paths relative to baseDir.
type LocalArtifactStore struct {
	baseDir       string
	publicBaseURL string
	logger        *zap.Logger
}

// NewLocalArtifactStore creates a new LocalArtifactStore
func NewLocalArtifactStore(baseDir, publicBaseURL string, logger *zap.Logger) *LocalArtifactStore {
	return &LocalArtifactStore{
		baseDir:       baseDir,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		logger:        logger,
	}
}

// Save writes content under ref, creating parent directories
func (s *LocalArtifactStore) Save(ctx context.Context, ref string, content []byte) error {
	fullPath, err := s.resolvePath(ref)
	if err != nil {
		return err
	}

	parentDir := filepath.Dir(fullPath)
	if err := os.MkdirAll(parentDir, 0755); err != nil {
		s.logger.Error("Failed to create parent directories",
			zap.String("path", parentDir),
			zap.Error(err))
		return fmt.Errorf("failed to create directories: %w", err)
	}

	if err := os.WriteFile(fullPath, content, 0644); err != nil {
		s.logger.Error("Failed to write artifact",
			zap.String("path", fullPath),
			zap.Error(err))
		return fmt.Errorf("failed to write artifact: %w", err)
	}

	s.logger.Debug("Artifact saved",
		zap.String("ref", ref),
		zap.Int("size", len(content)))

	return nil
}

// Resolve reads the content behind ref. Missing files wrap port.ErrArtifactNotFound.
func (s *LocalArtifactStore) Resolve(ctx context.Context, ref string) ([]byte, error) {
	fullPath, err := s.resolvePath(ref)
	if err != nil {
		return nil, err
	}

	content, err := os.ReadFile(fullPath)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: %s", port.ErrArtifactNotFound, ref)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read artifact: %w", err)
	}

	return content, nil
}

// URL returns the public link for ref, or ref itself when no base URL is set
func (s *LocalArtifactStore) URL(ref string) string {
	if s.publicBaseURL == "" {
		return ref
	}

	segments := strings.Split(path.Clean("/"+ref), "/")
	for i, seg := range segments {
		segments[i] = url.PathEscape(seg)
	}
	return s.publicBaseURL + strings.Join(segments, "/")
}

func (s *LocalArtifactStore) resolvePath(ref string) (string, error) {
	if strings.TrimSpace(ref) == "" {
		return "", fmt.Errorf("%w: empty reference", port.ErrArtifactNotFound)
	}
	fullPath := filepath.Join(s.baseDir, filepath.FromSlash(ref))
	if err := s.validatePath(fullPath); err != nil {
		return "", err
	}
	return fullPath, nil
}

// validatePath checks that the path is safe and within baseDir
func (s *LocalArtifactStore) validatePath(fullPath string) error {
	absPath, err := filepath.Abs(fullPath)
	if err != nil {
		return fmt.Errorf("failed to resolve path: %w", err)
	}

	absBase, err := filepath.Abs(s.baseDir)
	if err != nil {
		return fmt.Errorf("failed to resolve base path: %w", err)
	}

	if !strings.HasPrefix(absPath, absBase+string(filepath.Separator)) {
		return fmt.Errorf("path escapes base directory: %s", fullPath)
	}

	return nil
}

// Verify interface compliance
var _ port.ArtifactStore = (*LocalArtifactStore)(nil)
