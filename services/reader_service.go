package services

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"filedrop/chunk"
	"filedrop/domain"
	"filedrop/errors"
	"filedrop/storage"

	"github.com/gabriel-vasile/mimetype"
)

type IReaderService interface {
	Read(owner, filename string, requested *chunk.Range) (*RangeContent, error)
}

// RangeContent is an open handle over a slice of an assembled artifact.
// The caller owns Body and must close it.
type RangeContent struct {
	Body        io.ReadCloser
	Range       chunk.Range
	TotalSize   int64
	ContentType string
}

// ReaderService serves byte ranges of assembled artifacts. Partial uploads
// are never exposed as downloads, only through the status operation.
type ReaderService struct {
	ledger    ILedgerService
	artifacts *storage.ArtifactStore
	log       *slog.Logger
}

func NewReaderService(ledger ILedgerService, artifacts *storage.ArtifactStore, log *slog.Logger) *ReaderService {
	return &ReaderService{ledger: ledger, artifacts: artifacts, log: log}
}

// Read opens the requested inclusive range, defaulting to the whole file.
// A requested End below zero means "through the end of the file", which is
// how open-ended HTTP ranges arrive.
func (s *ReaderService) Read(owner, filename string, requested *chunk.Range) (*RangeContent, error) {
	snap, err := s.ledger.Status(owner, filename)
	if err != nil {
		return nil, err
	}
	if snap.State != domain.StateComplete {
		return nil, fmt.Errorf("%w: session is %s", errors.ErrFileNotReady, snap.State)
	}

	want := chunk.Range{Start: 0, End: snap.TotalSize - 1}
	if requested != nil {
		want = *requested
		if want.End < 0 {
			want.End = snap.TotalSize - 1
		}
		if want.Start < 0 || want.Start > want.End || want.End > snap.TotalSize-1 {
			return nil, fmt.Errorf("%w: [%d,%d] of %d bytes",
				errors.ErrRangeNotSatisfiable, requested.Start, requested.End, snap.TotalSize)
		}
	}

	contentType := "application/octet-stream"
	if mt, err := mimetype.DetectFile(s.artifacts.Path(owner, filename)); err == nil {
		contentType = mt.String()
	}

	f, _, err := s.artifacts.Open(owner, filename)
	if err != nil {
		s.log.Error("artifact missing for complete session",
			"owner", owner, "filename", filename, "err", err)
		return nil, fmt.Errorf("%w: artifact unreadable", errors.ErrFileNotReady)
	}

	return &RangeContent{
		Body:        &sectionCloser{SectionReader: io.NewSectionReader(f, want.Start, want.Len()), f: f},
		Range:       want,
		TotalSize:   snap.TotalSize,
		ContentType: contentType,
	}, nil
}

type sectionCloser struct {
	*io.SectionReader
	f *os.File
}

func (s *sectionCloser) Close() error {
	return s.f.Close()
}
