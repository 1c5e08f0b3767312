// Package document implements the ordered, strictly-increasing sequence of
// lines that makes up one peer's view of the replicated text, along with
// the sliding-window stash validation that tolerates causal skew between
// peers.
package document

import (
	"github.com/syncordian/syncordian/pkg/docid"
	"github.com/syncordian/syncordian/pkg/vclock"
)

// Status is whether a line is still part of the alive projection.
type Status int

const (
	Alive Status = iota
	Tombstone
)

func (s Status) String() string {
	if s == Tombstone {
		return "tombstone"
	}
	return "alive"
}

// Line is immutable after creation except for Status (set once, to
// Tombstone) and CommitAt (extended as peers first observe it committed).
type Line struct {
	ID        docid.ID
	Content   string
	PeerID    int
	Signature []byte
	Status    Status
	CommitAt  map[int]vclock.Clock
}

func (l Line) isAlive() bool { return l.Status == Alive }

func (l Line) withTombstone() Line {
	l.Status = Tombstone
	return l
}

// WithCommitAt returns a copy of l recording that observer first committed
// it at clock. An observer already recorded is left untouched — commit_at
// captures the *first* moment, not the latest.
func (l Line) WithCommitAt(observer int, clock vclock.Clock) Line {
	out := l
	out.CommitAt = make(map[int]vclock.Clock, len(l.CommitAt)+1)
	for k, v := range l.CommitAt {
		out.CommitAt[k] = v
	}
	if _, ok := out.CommitAt[observer]; !ok {
		out.CommitAt[observer] = clock
	}
	return out
}

// newSentinel builds one of the two bracketing sentinel lines. Sentinels
// carry no signature and are never transmitted or tombstoned.
func newSentinel(id docid.ID) Line {
	return Line{ID: id, Status: Alive, CommitAt: map[int]vclock.Clock{}}
}
