package services

import (
	stderrors "errors"
	"fmt"
	"log/slog"
	"time"

	"filedrop/chunk"
	"filedrop/domain"
	"filedrop/errors"
	"filedrop/repositories"

	"github.com/samber/lo"
)

type ILedgerService interface {
	Open(owner, filename string, totalSize int64) (domain.Snapshot, error)
	Record(owner, filename string, r chunk.Range) (domain.CoverageDelta, error)
	Status(owner, filename string) (domain.Snapshot, error)
	List(owner string) ([]domain.Snapshot, error)
	Scan() ([]domain.Snapshot, error)
	MarkComplete(owner, filename string) error
	MarkFailed(owner, filename string) error
	MarkExpired(owner, filename string) error
	Remove(owner, filename string) error
}

// LedgerService is the progress ledger: it tracks which byte ranges of
// each upload have been durably received and drives the session lifecycle.
// All mutations of one session serialize on its key lock; sessions are
// otherwise fully independent.
type LedgerService struct {
	sessions repositories.ISessionRepository
	locks    keyedMutex
	log      *slog.Logger
}

func NewLedgerService(sessions repositories.ISessionRepository, log *slog.Logger) *LedgerService {
	return &LedgerService{sessions: sessions, log: log}
}

// Open creates a PENDING session or returns the existing one. A declared
// size disagreeing with an existing non-terminal session is a conflict,
// never silently resolved.
func (s *LedgerService) Open(owner, filename string, totalSize int64) (domain.Snapshot, error) {
	if totalSize <= 0 {
		return domain.Snapshot{}, fmt.Errorf("%w: total size must be positive, got %d",
			errors.ErrOutOfBounds, totalSize)
	}

	lock := s.locks.get(sessionKey(owner, filename))
	lock.Lock()
	defer lock.Unlock()

	existing, err := s.sessions.Get(owner, filename)
	switch {
	case err == nil:
		if existing.State.Terminal() {
			return existing.Snapshot(), nil
		}
		if existing.TotalSize != totalSize {
			return domain.Snapshot{}, fmt.Errorf("%w: session declares %d bytes, request says %d",
				errors.ErrSizeConflict, existing.TotalSize, totalSize)
		}
		return existing.Snapshot(), nil
	case stderrors.Is(err, errors.ErrSessionNotFound):
		// Fall through to create.
	default:
		return domain.Snapshot{}, err
	}

	now := time.Now().UTC()
	session := domain.Session{
		Filename:       filename,
		Owner:          owner,
		TotalSize:      totalSize,
		State:          domain.StatePending,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	if err := s.sessions.Put(session); err != nil {
		return domain.Snapshot{}, err
	}
	s.log.Info("session opened", "owner", owner, "filename", filename, "totalSize", totalSize)
	return session.Snapshot(), nil
}

// Record merges a durably stored range into the session's coverage.
// Overlapping and duplicate ranges are accepted idempotently: re-sending
// an already received range succeeds without changing coverage, which is
// what makes client retries safe.
func (s *LedgerService) Record(owner, filename string, r chunk.Range) (domain.CoverageDelta, error) {
	lock := s.locks.get(sessionKey(owner, filename))
	lock.Lock()
	defer lock.Unlock()

	session, err := s.sessions.Get(owner, filename)
	if err != nil {
		return domain.CoverageDelta{}, err
	}
	if session.State.Terminal() {
		return domain.CoverageDelta{}, fmt.Errorf("%w: session is %s",
			errors.ErrSessionTerminal, session.State)
	}
	if r.Start < 0 || r.End > session.TotalSize-1 {
		return domain.CoverageDelta{}, fmt.Errorf("%w: [%d,%d] outside [0,%d]",
			errors.ErrOutOfBounds, r.Start, r.End, session.TotalSize-1)
	}

	session.ReceivedRanges = chunk.Merge(session.ReceivedRanges, r)
	if session.State == domain.StatePending {
		session.State = domain.StateInProgress
	}
	session.LastActivityAt = time.Now().UTC()
	if err := s.sessions.Put(session); err != nil {
		return domain.CoverageDelta{}, err
	}

	received := session.BytesReceived()
	return domain.CoverageDelta{
		BytesReceived: received,
		TotalSize:     session.TotalSize,
		Complete:      received == session.TotalSize,
	}, nil
}

func (s *LedgerService) Status(owner, filename string) (domain.Snapshot, error) {
	session, err := s.sessions.Get(owner, filename)
	if err != nil {
		return domain.Snapshot{}, err
	}
	return session.Snapshot(), nil
}

func (s *LedgerService) List(owner string) ([]domain.Snapshot, error) {
	sessions, err := s.sessions.ListByOwner(owner)
	if err != nil {
		return nil, err
	}
	return lo.Map(sessions, func(session domain.Session, _ int) domain.Snapshot {
		return session.Snapshot()
	}), nil
}

// Scan returns a snapshot of every session across all owners. The sweeper
// drives reclamation from this view instead of reaching into the store.
func (s *LedgerService) Scan() ([]domain.Snapshot, error) {
	sessions, err := s.sessions.All()
	if err != nil {
		return nil, err
	}
	return lo.Map(sessions, func(session domain.Session, _ int) domain.Snapshot {
		return session.Snapshot()
	}), nil
}

func (s *LedgerService) MarkComplete(owner, filename string) error {
	return s.transition(owner, filename, domain.StateComplete)
}

func (s *LedgerService) MarkFailed(owner, filename string) error {
	return s.transition(owner, filename, domain.StateFailed)
}

func (s *LedgerService) MarkExpired(owner, filename string) error {
	return s.transition(owner, filename, domain.StateExpired)
}

// transition moves a session into a terminal state. Re-marking the same
// terminal state is a no-op; crossing from one terminal state to another
// is a bug the locking should have prevented, so it is surfaced loudly.
func (s *LedgerService) transition(owner, filename string, target domain.SessionState) error {
	lock := s.locks.get(sessionKey(owner, filename))
	lock.Lock()
	defer lock.Unlock()

	session, err := s.sessions.Get(owner, filename)
	if err != nil {
		return err
	}
	if session.State == target {
		return nil
	}
	if session.State.Terminal() {
		return fmt.Errorf("%w: %s cannot become %s",
			errors.ErrInvalidTransition, session.State, target)
	}

	session.State = target
	session.LastActivityAt = time.Now().UTC()
	if err := s.sessions.Put(session); err != nil {
		return err
	}
	s.log.Info("session state changed", "owner", owner, "filename", filename, "state", target)
	return nil
}

// Remove deletes the ledger record entirely. Used by the delete/cancel
// operation, not by lifecycle transitions.
func (s *LedgerService) Remove(owner, filename string) error {
	lock := s.locks.get(sessionKey(owner, filename))
	lock.Lock()
	defer lock.Unlock()
	return s.sessions.Delete(owner, filename)
}
