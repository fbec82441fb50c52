package services

import (
	stderrors "errors"
	"fmt"
	"log/slog"

	"filedrop/chunk"
	"filedrop/domain"
	"filedrop/errors"
	"filedrop/storage"
)

type ITransferService interface {
	UploadChunk(owner, filename string, totalSize int64, body []byte) (domain.Snapshot, error)
	Delete(owner, filename string) error
}

// TransferService orchestrates one inbound chunk end to end: decode and
// verify the wire format, persist the bytes, advance the ledger, and
// trigger assembly when coverage becomes total.
type TransferService struct {
	ledger    ILedgerService
	store     storage.ChunkStore
	assembler IAssemblerService
	artifacts *storage.ArtifactStore
	log       *slog.Logger
}

func NewTransferService(
	ledger ILedgerService,
	store storage.ChunkStore,
	assembler IAssemblerService,
	artifacts *storage.ArtifactStore,
	log *slog.Logger,
) *TransferService {
	return &TransferService{
		ledger:    ledger,
		store:     store,
		assembler: assembler,
		artifacts: artifacts,
		log:       log,
	}
}

// UploadChunk accepts one upload body (17-byte header + payload). A chunk
// failing integrity checks is rejected before any byte is written; the
// session is untouched and the caller retries that chunk. The bytes are
// durable on disk before the ledger counts them.
func (s *TransferService) UploadChunk(owner, filename string, totalSize int64, body []byte) (domain.Snapshot, error) {
	header, payload, err := chunk.Decode(body)
	if err != nil {
		return domain.Snapshot{}, err
	}
	if err := chunk.Verify(header, payload); err != nil {
		return domain.Snapshot{}, err
	}

	snap, err := s.ensureSession(owner, filename, totalSize)
	if err != nil {
		return domain.Snapshot{}, err
	}
	// Reject before writing so a resend against a finished session never
	// recreates a chunk holding that nothing will purge.
	if snap.State.Terminal() {
		return domain.Snapshot{}, fmt.Errorf("%w: session is %s",
			errors.ErrSessionTerminal, snap.State)
	}

	r := header.Range()
	if r.End > snap.TotalSize-1 {
		return domain.Snapshot{}, fmt.Errorf("%w: [%d,%d] outside [0,%d]",
			errors.ErrOutOfBounds, r.Start, r.End, snap.TotalSize-1)
	}

	if err := s.store.WriteChunk(owner, filename, r, payload); err != nil {
		return domain.Snapshot{}, err
	}

	delta, err := s.ledger.Record(owner, filename, r)
	if err != nil {
		// The session can turn terminal between the snapshot above and
		// Record taking the session lock (the sweeper expiring it, or a
		// concurrent finalize). The chunk written for it would outlive
		// every purge, so remove the holdings here.
		if stderrors.Is(err, errors.ErrSessionTerminal) {
			if purgeErr := s.store.Purge(owner, filename); purgeErr != nil {
				s.log.Warn("could not purge chunk written for terminal session",
					"owner", owner, "filename", filename, "err", purgeErr)
			}
		}
		return domain.Snapshot{}, err
	}
	s.log.Debug("chunk recorded", "owner", owner, "filename", filename,
		"start", r.Start, "end", r.End, "received", delta.BytesReceived, "total", delta.TotalSize)

	if delta.Complete {
		if err := s.assembler.TryFinalize(owner, filename); err != nil {
			return domain.Snapshot{}, err
		}
	}
	return s.ledger.Status(owner, filename)
}

// ensureSession opens a session when the request declares a total size and
// falls back to the existing one otherwise. The very first chunk of a file
// must declare the size; later chunks may omit it.
func (s *TransferService) ensureSession(owner, filename string, totalSize int64) (domain.Snapshot, error) {
	if totalSize > 0 {
		return s.ledger.Open(owner, filename, totalSize)
	}
	return s.ledger.Status(owner, filename)
}

// Delete cancels an upload or removes a finished file: chunk holdings,
// artifact and ledger record all go.
func (s *TransferService) Delete(owner, filename string) error {
	if _, err := s.ledger.Status(owner, filename); err != nil {
		return err
	}
	if err := s.store.Purge(owner, filename); err != nil {
		return err
	}
	if err := s.artifacts.Delete(owner, filename); err != nil {
		return err
	}
	if err := s.ledger.Remove(owner, filename); err != nil {
		return err
	}
	s.log.Info("file deleted", "owner", owner, "filename", filename)
	return nil
}
