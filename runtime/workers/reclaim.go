package workers

import (
	"context"
	"log/slog"
	"time"

	"filedrop/domain"
	"filedrop/services"
	"filedrop/storage"
)

// ReclaimWorker expires uploads that went idle mid-transfer and releases
// their held chunk bytes. It talks to the ledger only through its public
// operations; it never reaches into session locks directly.
type ReclaimWorker struct {
	ledger         services.ILedgerService
	store          storage.ChunkStore
	log            *slog.Logger
	sweepInterval  time.Duration
	staleThreshold time.Duration
}

func NewReclaimWorker(
	ledger services.ILedgerService,
	store storage.ChunkStore,
	log *slog.Logger,
	sweepInterval time.Duration,
	staleThreshold time.Duration,
) *ReclaimWorker {
	return &ReclaimWorker{
		ledger:         ledger,
		store:          store,
		log:            log,
		sweepInterval:  sweepInterval,
		staleThreshold: staleThreshold,
	}
}

// Run executes the sweep loop until the context is cancelled.
func (w *ReclaimWorker) Run(ctx context.Context) error {
	w.log.Info("starting reclamation sweeper",
		"sweepInterval", w.sweepInterval, "staleThreshold", w.staleThreshold)
	ticker := time.NewTicker(w.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			w.Sweep()
		}
	}
}

// Sweep performs one pass over the ledger. Sessions are handled
// independently: a fault purging one session is reported and the sweep
// moves on to the next. Terminal sessions are never touched.
func (w *ReclaimWorker) Sweep() {
	snapshots, err := w.ledger.Scan()
	if err != nil {
		w.log.Error("ledger scan failed", "err", err)
		return
	}

	cutoff := time.Now().UTC().Add(-w.staleThreshold)
	for _, snap := range snapshots {
		if snap.State != domain.StatePending && snap.State != domain.StateInProgress {
			continue
		}
		if snap.LastActivityAt.After(cutoff) {
			continue
		}

		w.log.Info("expiring stale upload",
			"owner", snap.Owner, "filename", snap.Filename, "lastActivity", snap.LastActivityAt)
		if err := w.ledger.MarkExpired(snap.Owner, snap.Filename); err != nil {
			w.log.Error("could not expire session",
				"owner", snap.Owner, "filename", snap.Filename, "err", err)
			continue
		}
		if err := w.store.Purge(snap.Owner, snap.Filename); err != nil {
			w.log.Error("could not purge chunks of expired session",
				"owner", snap.Owner, "filename", snap.Filename, "err", err)
		}
	}
}
