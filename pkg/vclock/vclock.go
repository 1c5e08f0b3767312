// Package vclock implements the fixed-size per-peer vector clock used to
// order broadcasts and to size the stash window when a remote peer's view
// has drifted (see pkg/document's stash validation).
package vclock

import "fmt"

// Relation describes how two clocks relate under the happened-before
// partial order.
type Relation int

const (
	Equal Relation = iota
	Before
	After
	Concurrent
)

func (r Relation) String() string {
	switch r {
	case Equal:
		return "equal"
	case Before:
		return "before"
	case After:
		return "after"
	default:
		return "concurrent"
	}
}

// Clock is a fixed-size vector indexed by peer-id, sized to the network at
// bootstrap. It is a value type; every mutating method returns a new Clock,
// matching the peer state machine's record-with-field-update idiom.
type Clock struct {
	entries []uint64
}

// New returns a zeroed clock sized for n peers.
func New(n int) Clock {
	return Clock{entries: make([]uint64, n)}
}

// FromSlice builds a Clock from its wire representation (transport
// payloads carry clocks as []uint64).
func FromSlice(s []uint64) Clock {
	entries := make([]uint64, len(s))
	copy(entries, s)
	return Clock{entries: entries}
}

// Slice returns the clock's wire representation.
func (c Clock) Slice() []uint64 {
	out := make([]uint64, len(c.entries))
	copy(out, c.entries)
	return out
}

// Size returns the number of peers this clock is sized for.
func (c Clock) Size() int {
	return len(c.entries)
}

// At returns the logical counter for peerID, or 0 if out of range.
func (c Clock) At(peerID int) uint64 {
	if peerID < 0 || peerID >= len(c.entries) {
		return 0
	}
	return c.entries[peerID]
}

// Tick increments peerID's own entry and returns the new clock.
func (c Clock) Tick(peerID int) Clock {
	out := c.clone()
	if peerID >= 0 && peerID < len(out.entries) {
		out.entries[peerID]++
	}
	return out
}

// Merge returns the element-wise maximum of two clocks. The clocks must be
// the same size; callers within a bootstrap network always satisfy this.
func (c Clock) Merge(other Clock) Clock {
	out := c.clone()
	for i := range out.entries {
		if i < len(other.entries) && other.entries[i] > out.entries[i] {
			out.entries[i] = other.entries[i]
		}
	}
	return out
}

func (c Clock) clone() Clock {
	entries := make([]uint64, len(c.entries))
	copy(entries, c.entries)
	return Clock{entries: entries}
}

// Compare returns how a relates to b.
func (a Clock) Compare(b Clock) Relation {
	aLess, bLess := false, false
	n := max(len(a.entries), len(b.entries))
	for i := 0; i < n; i++ {
		av, bv := a.At(i), b.At(i)
		switch {
		case av < bv:
			aLess = true
		case av > bv:
			bLess = true
		}
	}
	switch {
	case !aLess && !bLess:
		return Equal
	case aLess && !bLess:
		return Before
	case bLess && !aLess:
		return After
	default:
		return Concurrent
	}
}

// ProjectionDistance returns how many broadcasts from remoteOrigin the
// local replica has not yet observed: max(0, remote[remoteOrigin] -
// local[remoteOrigin] - 1). It sizes the stash sliding window in
// pkg/document.
func ProjectionDistance(local, remote Clock, remoteOrigin int) int {
	d := int(remote.At(remoteOrigin)) - int(local.At(remoteOrigin)) - 1
	if d < 0 {
		return 0
	}
	return d
}

func (c Clock) String() string {
	return fmt.Sprintf("%v", c.entries)
}
