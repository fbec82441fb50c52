package storage

import (
	"fmt"
	"os"
	"path/filepath"
)

// ArtifactStore holds assembled files under {uploadDir}/{owner}/{filename}.
// An artifact is immutable once created; only Delete removes it.
type ArtifactStore struct {
	uploadDir string
}

func NewArtifactStore(uploadDir string) *ArtifactStore {
	return &ArtifactStore{uploadDir: uploadDir}
}

func (s *ArtifactStore) Path(owner, filename string) string {
	return filepath.Join(s.uploadDir, owner, filename)
}

// Create assembles the artifact atomically: fill writes into a scratch file
// that becomes visible under the final name only after a successful sync
// and rename. A failing fill leaves no discoverable artifact behind.
func (s *ArtifactStore) Create(owner, filename string, fill func(f *os.File) error) error {
	dir := filepath.Join(s.uploadDir, owner)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create artifact dir: %w", err)
	}

	scratch, err := os.CreateTemp(dir, ".assembling-*")
	if err != nil {
		return fmt.Errorf("create scratch artifact: %w", err)
	}
	defer os.Remove(scratch.Name())

	if err := fill(scratch); err != nil {
		scratch.Close()
		return err
	}
	if err := scratch.Sync(); err != nil {
		scratch.Close()
		return fmt.Errorf("sync artifact: %w", err)
	}
	if err := scratch.Close(); err != nil {
		return fmt.Errorf("close artifact: %w", err)
	}
	return os.Rename(scratch.Name(), s.Path(owner, filename))
}

// Open returns a read handle on the artifact together with its size.
func (s *ArtifactStore) Open(owner, filename string) (*os.File, int64, error) {
	f, err := os.Open(s.Path(owner, filename))
	if err != nil {
		return nil, 0, fmt.Errorf("open artifact: %w", err)
	}
	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, 0, fmt.Errorf("stat artifact: %w", err)
	}
	return f, info.Size(), nil
}

// Delete removes the artifact. Deleting an artifact that was never
// assembled is a no-op.
func (s *ArtifactStore) Delete(owner, filename string) error {
	err := os.Remove(s.Path(owner, filename))
	if os.IsNotExist(err) {
		return nil
	}
	return err
}
