package repositories

import (
	"testing"
	"time"

	"filedrop/chunk"
	"filedrop/domain"
	"filedrop/errors"

	"github.com/dgraph-io/badger/v4"
	"github.com/stretchr/testify/require"
)

func openTestDB(t *testing.T) *badger.DB {
	t.Helper()
	db, err := badger.Open(badger.DefaultOptions(t.TempDir()).WithLoggingLevel(badger.ERROR))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestSessionRepository_RoundTrip(t *testing.T) {
	req := require.New(t)
	repository := NewSessionRepository(openTestDB(t))

	// Round(0) strips the monotonic clock reading so the value survives
	// the persistence round trip unchanged.
	now := time.Now().UTC().Round(0)
	session := domain.Session{
		Filename:       "photo.jpg",
		Owner:          "device-a",
		TotalSize:      1000,
		ReceivedRanges: []chunk.Range{{Start: 0, End: 499}},
		State:          domain.StateInProgress,
		CreatedAt:      now,
		LastActivityAt: now,
	}
	req.NoError(repository.Put(session))

	fetched, err := repository.Get("device-a", "photo.jpg")
	req.NoError(err)
	req.Equal(session, fetched)
}

func TestSessionRepository_GetMissing(t *testing.T) {
	req := require.New(t)
	repository := NewSessionRepository(openTestDB(t))

	_, err := repository.Get("device-a", "nope.bin")
	req.ErrorIs(err, errors.ErrSessionNotFound)
}

func TestSessionRepository_ListByOwner(t *testing.T) {
	req := require.New(t)
	repository := NewSessionRepository(openTestDB(t))

	now := time.Now().UTC()
	for _, s := range []domain.Session{
		{Filename: "a.bin", Owner: "device-a", TotalSize: 10, State: domain.StatePending, CreatedAt: now, LastActivityAt: now},
		{Filename: "b.bin", Owner: "device-a", TotalSize: 20, State: domain.StatePending, CreatedAt: now, LastActivityAt: now},
		{Filename: "c.bin", Owner: "device-b", TotalSize: 30, State: domain.StatePending, CreatedAt: now, LastActivityAt: now},
	} {
		req.NoError(repository.Put(s))
	}

	mine, err := repository.ListByOwner("device-a")
	req.NoError(err)
	req.Len(mine, 2)
	for _, s := range mine {
		req.Equal("device-a", s.Owner)
	}

	all, err := repository.All()
	req.NoError(err)
	req.Len(all, 3)
}

func TestSessionRepository_Delete(t *testing.T) {
	req := require.New(t)
	repository := NewSessionRepository(openTestDB(t))

	now := time.Now().UTC()
	session := domain.Session{Filename: "gone.bin", Owner: "device-a", TotalSize: 10,
		State: domain.StatePending, CreatedAt: now, LastActivityAt: now}
	req.NoError(repository.Put(session))
	req.NoError(repository.Delete("device-a", "gone.bin"))

	_, err := repository.Get("device-a", "gone.bin")
	req.ErrorIs(err, errors.ErrSessionNotFound)
}
