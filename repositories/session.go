package repositories

import (
	"encoding/json"
	stderrors "errors"
	"fmt"
	"time"

	"filedrop/chunk"
	"filedrop/domain"
	"filedrop/errors"

	"github.com/dgraph-io/badger/v4"
)

type ISessionRepository interface {
	Get(owner, filename string) (domain.Session, error)
	Put(session domain.Session) error
	Delete(owner, filename string) error
	ListByOwner(owner string) ([]domain.Session, error)
	All() ([]domain.Session, error)
}

type SessionRepository struct {
	db *badger.DB
}

func NewSessionRepository(db *badger.DB) ISessionRepository {
	return &SessionRepository{db: db}
}

// diskSession is the JSON shape persisted in BadgerDB. Timestamps are
// stored as UTC unix nanoseconds so records sort and compare without
// timezone surprises.
type diskSession struct {
	Filename       string        `json:"filename"`
	Owner          string        `json:"owner"`
	TotalSize      int64         `json:"total_size"`
	ReceivedRanges []chunk.Range `json:"received_ranges"`
	State          string        `json:"state"`
	CreatedAt      int64         `json:"created_at"`
	LastActivityAt int64         `json:"last_activity_at"`
}

// sessionKey builds the Badger key "session:{owner}:{filename}". The owner
// is a UUID and never contains a colon, so the prefix scan per owner is
// unambiguous.
func sessionKey(owner, filename string) []byte {
	return []byte(fmt.Sprintf("session:%s:%s", owner, filename))
}

func ownerPrefix(owner string) []byte {
	return []byte(fmt.Sprintf("session:%s:", owner))
}

func (r SessionRepository) Get(owner, filename string) (domain.Session, error) {
	var data []byte
	err := r.db.View(func(txn *badger.Txn) error {
		item, err := txn.Get(sessionKey(owner, filename))
		if err != nil {
			return err
		}
		return item.Value(func(val []byte) error {
			data = append([]byte(nil), val...)
			return nil
		})
	})
	if stderrors.Is(err, badger.ErrKeyNotFound) {
		return domain.Session{}, fmt.Errorf("%w: %s", errors.ErrSessionNotFound, filename)
	}
	if err != nil {
		return domain.Session{}, err
	}
	return decodeSession(data)
}

func (r SessionRepository) Put(session domain.Session) error {
	data, err := json.Marshal(fromSession(session))
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Set(sessionKey(session.Owner, session.Filename), data)
	})
}

func (r SessionRepository) Delete(owner, filename string) error {
	return r.db.Update(func(txn *badger.Txn) error {
		return txn.Delete(sessionKey(owner, filename))
	})
}

func (r SessionRepository) ListByOwner(owner string) ([]domain.Session, error) {
	return r.scan(ownerPrefix(owner))
}

func (r SessionRepository) All() ([]domain.Session, error) {
	return r.scan([]byte("session:"))
}

func (r SessionRepository) scan(prefix []byte) ([]domain.Session, error) {
	var values [][]byte
	err := r.db.View(func(txn *badger.Txn) error {
		it := txn.NewIterator(badger.DefaultIteratorOptions)
		defer it.Close()
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			err := it.Item().Value(func(val []byte) error {
				values = append(values, append([]byte(nil), val...))
				return nil
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	sessions := make([]domain.Session, 0, len(values))
	for _, data := range values {
		session, err := decodeSession(data)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}
	return sessions, nil
}

func decodeSession(data []byte) (domain.Session, error) {
	var disk diskSession
	if err := json.Unmarshal(data, &disk); err != nil {
		return domain.Session{}, fmt.Errorf("unmarshal failed: %w", err)
	}
	return toSession(disk), nil
}

func fromSession(session domain.Session) diskSession {
	return diskSession{
		Filename:       session.Filename,
		Owner:          session.Owner,
		TotalSize:      session.TotalSize,
		ReceivedRanges: session.ReceivedRanges,
		State:          string(session.State),
		CreatedAt:      session.CreatedAt.UnixNano(),
		LastActivityAt: session.LastActivityAt.UnixNano(),
	}
}

func toSession(disk diskSession) domain.Session {
	return domain.Session{
		Filename:       disk.Filename,
		Owner:          disk.Owner,
		TotalSize:      disk.TotalSize,
		ReceivedRanges: disk.ReceivedRanges,
		State:          domain.SessionState(disk.State),
		CreatedAt:      time.Unix(0, disk.CreatedAt).UTC(),
		LastActivityAt: time.Unix(0, disk.LastActivityAt).UTC(),
	}
}
