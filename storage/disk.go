package storage

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"filedrop/chunk"
	"filedrop/errors"
)

// ChunkStore is the capability surface of the chunk holding area. A second
// backend is another implementation of this interface; DiskStore is the
// only one today.
type ChunkStore interface {
	// WriteChunk persists the payload addressed by the range. The bytes are
	// durable before a nil return. Re-writing an already stored range
	// overwrites it (last writer wins).
	WriteChunk(owner, filename string, r chunk.Range, payload []byte) error
	// ReadRange returns the bytes of a range that is fully covered by
	// stored chunks, or ErrRangeUnavailable.
	ReadRange(owner, filename string, r chunk.Range) ([]byte, error)
	// Chunks enumerates the stored holdings of a session, sorted by start
	// offset. The assembler drains them in this order.
	Chunks(owner, filename string) ([]StoredChunk, error)
	// Purge releases every held chunk of a session. Irreversible.
	Purge(owner, filename string) error
}

// StoredChunk locates one held byte range on disk.
type StoredChunk struct {
	Range chunk.Range
	Path  string
}

// DiskStore keeps one file per received chunk under
// {tempDir}/{owner}/{filename}/{start}-{end}. Each session owns its
// directory, so purging one session can never touch the holdings of a
// sibling whose filename shares a prefix.
type DiskStore struct {
	tempDir string
	log     *slog.Logger
}

func NewDiskStore(tempDir string, log *slog.Logger) *DiskStore {
	return &DiskStore{tempDir: tempDir, log: log}
}

func (s *DiskStore) sessionDir(owner, filename string) string {
	return filepath.Join(s.tempDir, owner, filename)
}

func chunkName(r chunk.Range) string {
	return fmt.Sprintf("%d-%d", r.Start, r.End)
}

func (s *DiskStore) WriteChunk(owner, filename string, r chunk.Range, payload []byte) error {
	dir := s.sessionDir(owner, filename)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create chunk dir: %w", err)
	}

	// Write to a hidden scratch name first so a crash mid-write never
	// leaves a truncated chunk under its addressable name.
	final := filepath.Join(dir, chunkName(r))
	scratch := final + ".part"
	f, err := os.OpenFile(scratch, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create chunk file: %w", err)
	}
	if _, err := f.Write(payload); err != nil {
		f.Close()
		os.Remove(scratch)
		return fmt.Errorf("write chunk: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		os.Remove(scratch)
		return fmt.Errorf("sync chunk: %w", err)
	}
	if err := f.Close(); err != nil {
		os.Remove(scratch)
		return fmt.Errorf("close chunk: %w", err)
	}
	return os.Rename(scratch, final)
}

func (s *DiskStore) ReadRange(owner, filename string, r chunk.Range) ([]byte, error) {
	stored, err := s.Chunks(owner, filename)
	if err != nil {
		return nil, err
	}

	buf := make([]byte, r.Len())
	var covered []chunk.Range
	for _, c := range stored {
		if !c.Range.Overlaps(r) {
			continue
		}
		data, err := os.ReadFile(c.Path)
		if err != nil {
			return nil, fmt.Errorf("read chunk %d-%d: %w", c.Range.Start, c.Range.End, err)
		}
		overlap := chunk.Range{Start: max(r.Start, c.Range.Start), End: min(r.End, c.Range.End)}
		copy(buf[overlap.Start-r.Start:], data[overlap.Start-c.Range.Start:overlap.End-c.Range.Start+1])
		covered = chunk.Merge(covered, overlap)
	}
	if chunk.Covered(covered) != r.Len() {
		return nil, fmt.Errorf("%w: [%d,%d]", errors.ErrRangeUnavailable, r.Start, r.End)
	}
	return buf, nil
}

func (s *DiskStore) Chunks(owner, filename string) ([]StoredChunk, error) {
	dir := s.sessionDir(owner, filename)
	entries, err := os.ReadDir(dir)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan chunk dir: %w", err)
	}

	var chunks []StoredChunk
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		r, ok := parseChunkName(entry.Name())
		if !ok {
			continue
		}
		chunks = append(chunks, StoredChunk{Range: r, Path: filepath.Join(dir, entry.Name())})
	}
	sort.Slice(chunks, func(i, j int) bool {
		return chunks[i].Range.Start < chunks[j].Range.Start
	})
	return chunks, nil
}

// Purge removes the session's whole holding directory, leftover ".part"
// scratch files included.
func (s *DiskStore) Purge(owner, filename string) error {
	if err := os.RemoveAll(s.sessionDir(owner, filename)); err != nil {
		return fmt.Errorf("remove chunk dir: %w", err)
	}
	s.log.Debug("chunk holdings purged", "owner", owner, "filename", filename)
	return nil
}

// parseChunkName recovers the byte range from "{start}-{end}".
func parseChunkName(name string) (chunk.Range, bool) {
	if strings.HasSuffix(name, ".part") {
		return chunk.Range{}, false
	}
	startStr, endStr, ok := strings.Cut(name, "-")
	if !ok {
		return chunk.Range{}, false
	}
	start, err := strconv.ParseInt(startStr, 10, 64)
	if err != nil {
		return chunk.Range{}, false
	}
	end, err := strconv.ParseInt(endStr, 10, 64)
	if err != nil {
		return chunk.Range{}, false
	}
	return chunk.Range{Start: start, End: end}, true
}
