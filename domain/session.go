package domain

import (
	"time"

	"filedrop/chunk"
)

type SessionState string

const (
	StatePending    SessionState = "PENDING"
	StateInProgress SessionState = "IN_PROGRESS"
	StateComplete   SessionState = "COMPLETE"
	StateFailed     SessionState = "FAILED"
	StateExpired    SessionState = "EXPIRED"
)

// Terminal reports whether the state accepts no further chunk writes.
func (s SessionState) Terminal() bool {
	return s == StateComplete || s == StateFailed || s == StateExpired
}

// Session is the progress ledger record of one (owner, filename) upload.
// ReceivedRanges is always sorted and pairwise disjoint; it is a subset of
// [0, TotalSize-1].
type Session struct {
	Filename       string
	Owner          string
	TotalSize      int64
	ReceivedRanges []chunk.Range
	State          SessionState
	CreatedAt      time.Time
	LastActivityAt time.Time
}

func (s Session) BytesReceived() int64 {
	return chunk.Covered(s.ReceivedRanges)
}

// CoverageTotal reports whether the received ranges cover [0, TotalSize-1].
func (s Session) CoverageTotal() bool {
	return s.BytesReceived() == s.TotalSize
}

// Snapshot is the read-only view of a session handed out by Status and List.
type Snapshot struct {
	Filename         string
	Owner            string
	State            SessionState
	TotalSize        int64
	BytesReceived    int64
	MissingRanges    []chunk.Range
	NextExpectedByte int64
	CreatedAt        time.Time
	LastActivityAt   time.Time
}

func (s Session) Snapshot() Snapshot {
	return Snapshot{
		Filename:         s.Filename,
		Owner:            s.Owner,
		State:            s.State,
		TotalSize:        s.TotalSize,
		BytesReceived:    s.BytesReceived(),
		MissingRanges:    chunk.Complement(s.ReceivedRanges, s.TotalSize),
		NextExpectedByte: chunk.NextMissing(s.ReceivedRanges, s.TotalSize),
		CreatedAt:        s.CreatedAt,
		LastActivityAt:   s.LastActivityAt,
	}
}

// CoverageDelta reports the effect of one recorded chunk on a session.
type CoverageDelta struct {
	BytesReceived int64
	TotalSize     int64
	Complete      bool
}
