package document

import (
	"crypto/ed25519"
	"fmt"

	"github.com/syncordian/syncordian/pkg/byzsig"
	"github.com/syncordian/syncordian/pkg/docid"
	"github.com/syncordian/syncordian/pkg/vclock"
)

// Document is an ordered, value-typed sequence of lines, strictly
// increasing by ID. Every operation returns a new Document rather than
// mutating in place, mirroring the record-with-field-update idiom used
// throughout this codebase's reducers. Tombstones remain in the sequence
// at their original position so future inserts can still reference them
// as parents.
type Document struct {
	lines []Line
}

// New returns a fresh document holding only the infimum and supremum
// sentinels, as created when a peer starts.
func New() Document {
	return Document{lines: []Line{
		newSentinel(docid.Infimum()),
		newSentinel(docid.Supremum()),
	}}
}

// Length returns the number of lines including both sentinels (always >= 2).
func (d Document) Length() int { return len(d.lines) }

// LineAtIndex returns the line at i, or (Line{}, false) if out of range.
func (d Document) LineAtIndex(i int) (Line, bool) {
	if i < 0 || i >= len(d.lines) {
		return Line{}, false
	}
	return d.lines[i], true
}

// IndexOf returns the index of the line with the given ID. If not found it
// returns index 1 (just after the infimum) as a defensive fallback — the
// caller is expected to log this as a "position not found" condition and
// proceed with that index. IndexOf itself never mutates the document.
func (d Document) IndexOf(id docid.ID) int {
	for i, l := range d.lines {
		if docid.Compare(l.ID, id) == 0 {
			return i
		}
	}
	return 1
}

// LineByID returns the line with the given ID, if present.
func (d Document) LineByID(id docid.ID) (Line, bool) {
	for _, l := range d.lines {
		if docid.Compare(l.ID, id) == 0 {
			return l, true
		}
	}
	return Line{}, false
}

// clampInsertIndex bounds idx to [0, len-2], the valid range of positions
// at which a new line can be inserted relative to the sentinels.
func (d Document) clampInsertIndex(idx int) int {
	if idx < 0 {
		return 0
	}
	if last := len(d.lines) - 2; idx > last {
		return last
	}
	return idx
}

// ParentsOf returns the (left, right) neighbour pair an insert at idx
// should be signed against: idx==0 yields (doc[0], doc[1]); an idx at or
// past the last living position yields (doc[len-2], doc[len-1]); otherwise
// (doc[idx], doc[idx+1]).
func (d Document) ParentsOf(idx int) (left, right Line) {
	idx = d.clampInsertIndex(idx)
	return d.lines[idx], d.lines[idx+1]
}

// InsertByPosition allocates a dense ID between the neighbours at idx,
// signs the resulting line with sign, and returns it alongside the
// document with it spliced in. sign is supplied by the caller (the peer,
// which owns the signing key) — Document itself holds no secrets.
func (d Document) InsertByPosition(idx int, content string, peerID int, ownClock vclock.Clock, sign func(left, right docid.ID, lineID docid.ID, content string) ([]byte, error)) (Line, Document, error) {
	idx = d.clampInsertIndex(idx)
	left, right := d.lines[idx], d.lines[idx+1]

	id, err := docid.Between(left.ID, right.ID, peerID)
	if err != nil {
		return Line{}, d, fmt.Errorf("insert at position %d: %w", idx, err)
	}

	sig, err := sign(left.ID, right.ID, id, content)
	if err != nil {
		return Line{}, d, fmt.Errorf("insert at position %d: sign: %w", idx, err)
	}

	line := Line{
		ID:        id,
		Content:   content,
		PeerID:    peerID,
		Signature: sig,
		Status:    Alive,
		CommitAt:  map[int]vclock.Clock{},
	}
	line = line.WithCommitAt(peerID, ownClock)

	out := d.clone()
	out.lines = append(out.lines[:idx+1:idx+1], append([]Line{line}, out.lines[idx+1:]...)...)
	return line, out, nil
}

// DeleteByIndex marks the line at idx as a tombstone. Deleting a sentinel
// is rejected.
func (d Document) DeleteByIndex(idx int) (Document, error) {
	if idx <= 0 || idx >= len(d.lines)-1 {
		return d, fmt.Errorf("delete index %d: refers to a sentinel", idx)
	}
	out := d.clone()
	out.lines[idx] = out.lines[idx].withTombstone()
	return out, nil
}

// NewIndexForIncoming walks the document in ID order and returns the first
// index whose existing ID is greater than or equal to the incoming line's
// ID: the smallest i such that doc[i-1].ID < line.ID <= doc[i].ID. If the
// incoming ID would exceed every existing ID (which must-not-happen per
// the identifier contract, since the supremum bounds the space), it logs
// nothing itself and returns (1, false); ValidateIncoming reports that as
// Verification.NotFound without mutating the document.
func (d Document) NewIndexForIncoming(id docid.ID) (int, bool) {
	for i, l := range d.lines {
		if docid.Compare(id, l.ID) <= 0 {
			return i, true
		}
	}
	return 1, false
}

// HasID reports whether a line with the given ID already exists (alive or
// tombstoned). An incoming remote line whose ID collides with an existing
// one is a signature-level collision — discard and log, never mutate.
func (d Document) HasID(id docid.ID) bool {
	_, ok := d.LineByID(id)
	return ok
}

// InsertRemote splices a verified incoming line in at index c — the
// ID-order splice point produced by NewIndexForIncoming (and echoed back
// by ValidateIncoming's Verification.Index). It performs no verification
// itself; callers must only call this after ValidateIncoming reports OK.
// observer/observedAt stamp commit_at with the first moment this replica
// considered the line committed.
func (d Document) InsertRemote(line Line, c int, observer int, observedAt vclock.Clock) Document {
	line = line.WithCommitAt(observer, observedAt)
	out := d.clone()
	out.lines = append(out.lines[:c:c], append([]Line{line}, out.lines[c:]...)...)
	return out
}

func (d Document) clone() Document {
	lines := make([]Line, len(d.lines))
	copy(lines, d.lines)
	return Document{lines: lines}
}

// AliveContent concatenates the content of every alive line in order,
// excluding the sentinels, for print_content-style inspection.
func (d Document) AliveContent(sep string) string {
	var parts []string
	for _, l := range d.lines[1 : len(d.lines)-1] {
		if l.isAlive() {
			parts = append(parts, l.Content)
		}
	}
	out := ""
	for i, p := range parts {
		if i > 0 {
			out += sep
		}
		out += p
	}
	return out
}

// VerifierFunc matches byzsig.Verify's signature, so Document's stash
// validation (see stash.go) can be driven without importing byzsig
// directly into test code that wants to fake verification.
type VerifierFunc func(originPub ed25519.PublicKey, left, right docid.ID, lineID docid.ID, content string, sig []byte) bool

// DefaultVerifier is byzsig.Verify, wired as the production VerifierFunc.
var DefaultVerifier VerifierFunc = byzsig.Verify
