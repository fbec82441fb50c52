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
)

type IAssemblerService interface {
	TryFinalize(owner, filename string) error
}

// AssemblerService merges a session's held chunks into the final artifact.
// It owns a finalize lock per session, separate from the ledger's lock, so
// that the long merge pass never blocks unrelated ledger reads.
type AssemblerService struct {
	ledger    ILedgerService
	store     storage.ChunkStore
	artifacts *storage.ArtifactStore
	locks     keyedMutex
	log       *slog.Logger
}

func NewAssemblerService(
	ledger ILedgerService,
	store storage.ChunkStore,
	artifacts *storage.ArtifactStore,
	log *slog.Logger,
) *AssemblerService {
	return &AssemblerService{ledger: ledger, store: store, artifacts: artifacts, log: log}
}

// TryFinalize assembles the artifact for a fully covered session at most
// once. Concurrent triggers serialize on the session's finalize lock; the
// one that loses the race observes COMPLETE and returns without touching
// anything. An I/O fault during the merge fails the session and discards
// the partial output.
func (a *AssemblerService) TryFinalize(owner, filename string) error {
	lock := a.locks.get(sessionKey(owner, filename))
	lock.Lock()
	defer lock.Unlock()

	snap, err := a.ledger.Status(owner, filename)
	if err != nil {
		return err
	}
	if snap.State == domain.StateComplete {
		return nil
	}
	if snap.State.Terminal() {
		return fmt.Errorf("%w: session is %s", errors.ErrSessionTerminal, snap.State)
	}
	if len(snap.MissingRanges) > 0 {
		return fmt.Errorf("%w: %d intervals still missing",
			errors.ErrRangeUnavailable, len(snap.MissingRanges))
	}

	if err := a.assemble(owner, filename, snap.TotalSize); err != nil {
		a.log.Error("assembly failed", "owner", owner, "filename", filename, "err", err)
		if markErr := a.ledger.MarkFailed(owner, filename); markErr != nil {
			a.log.Error("could not fail session after assembly fault",
				"owner", owner, "filename", filename, "err", markErr)
		}
		return fmt.Errorf("%w: %v", errors.ErrAssemblyFailure, err)
	}

	if err := a.ledger.MarkComplete(owner, filename); err != nil {
		return err
	}

	// The artifact is self-sufficient; the holdings are redundant now.
	if err := a.store.Purge(owner, filename); err != nil {
		a.log.Warn("chunk purge after assembly failed",
			"owner", owner, "filename", filename, "err", err)
	}
	a.log.Info("artifact assembled", "owner", owner, "filename", filename, "bytes", snap.TotalSize)
	return nil
}

// assemble concatenates the stored chunks in ascending offset order.
// Writing at each chunk's own offset makes overlapping duplicates
// harmless: later chunks simply rewrite the same bytes.
func (a *AssemblerService) assemble(owner, filename string, totalSize int64) error {
	chunks, err := a.store.Chunks(owner, filename)
	if err != nil {
		return err
	}
	// The ledger says coverage is total; the holdings must agree. A chunk
	// file lost between record and finalize would otherwise leave a
	// zero-filled hole in a COMPLETE artifact.
	var covered []chunk.Range
	for _, c := range chunks {
		covered = chunk.Merge(covered, c.Range)
	}
	if got := chunk.Covered(covered); got != totalSize {
		return fmt.Errorf("holdings cover %d of %d bytes", got, totalSize)
	}
	return a.artifacts.Create(owner, filename, func(out *os.File) error {
		for _, c := range chunks {
			in, err := os.Open(c.Path)
			if err != nil {
				return fmt.Errorf("open chunk %d-%d: %w", c.Range.Start, c.Range.End, err)
			}
			if _, err := out.Seek(c.Range.Start, io.SeekStart); err != nil {
				in.Close()
				return fmt.Errorf("seek to %d: %w", c.Range.Start, err)
			}
			if _, err := io.Copy(out, in); err != nil {
				in.Close()
				return fmt.Errorf("copy chunk %d-%d: %w", c.Range.Start, c.Range.End, err)
			}
			in.Close()
		}
		return nil
	})
}
