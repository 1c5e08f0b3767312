package document

import (
	"crypto/ed25519"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncordian/syncordian/pkg/byzsig"
	"github.com/syncordian/syncordian/pkg/docid"
	"github.com/syncordian/syncordian/pkg/vclock"
)

// TestValidateIncomingBaseWindow covers the common case: the incoming line
// was signed against exactly its current immediate neighbours, so the base
// (-1,+1) pair verifies with no widening needed.
func TestValidateIncomingBaseWindow(t *testing.T) {
	kp := mustKeyPair(t)
	d := New()
	line, d, err := d.InsertByPosition(0, "A", 0, vclock.New(1), signWith(kp))
	require.NoError(t, err)

	// Re-derive the same neighbours a receiver would see: inf and sup.
	left, _ := d.LineAtIndex(0)
	right, _ := d.LineAtIndex(2)
	assert.True(t, byzsig.Verify(kp.Public, left.ID, right.ID, line.ID, line.Content, line.Signature))

	v := ValidateIncoming(New(), line, kp.Public, 0, byzsig.Verify)
	require.True(t, v.OK)
	assert.Equal(t, 0, v.LeftIndex)
	assert.Equal(t, 2, v.RightIndex)
}

// TestValidateIncomingWidensWhenNeighboursShifted reproduces the causal-skew
// scenario: B is signed against A as its left parent, but the receiver's
// document doesn't have A yet, so B's natural ID-order neighbours (inf, sup)
// don't match the signed pair. Widening with a non-zero projection distance
// must find A reinstated at the correct offset once it's present.
func TestValidateIncomingWidensWhenNeighboursShifted(t *testing.T) {
	kp := mustKeyPair(t)
	d := New()

	// Construct a document as p1 would see it: inf, A, B, sup, with B
	// signed against (A, sup).
	a, d, err := d.InsertByPosition(0, "A", 0, vclock.New(1), signWith(kp))
	require.NoError(t, err)
	b, d, err := d.InsertByPosition(1, "B", 0, vclock.New(1), signWith(kp))
	require.NoError(t, err)

	// p2 has only received B so far: its document is inf, B, sup (B
	// spliced by ID order despite A being absent).
	p2Doc := New()
	bIdx, ok := p2Doc.NewIndexForIncoming(b.ID)
	require.True(t, ok)
	p2Doc = p2Doc.InsertRemote(b, bIdx, 1, vclock.New(2))

	// Now A arrives. A's natural splice point in p2's document sits right
	// before B, but A was signed against (inf, sup) — the window must widen
	// past B to find that pair.
	v := ValidateIncoming(p2Doc, a, kp.Public, 1, byzsig.Verify)
	require.True(t, v.OK)

	p2Doc = p2Doc.InsertRemote(a, v.Index, 1, vclock.New(2))
	assert.Equal(t, "AB", p2Doc.AliveContent(""))

	// B, which didn't verify against (inf, sup) before A arrived, now
	// verifies against (A, sup) once the document has caught up, with a
	// non-zero projection distance covering the gap.
	v2 := ValidateIncoming(p2Doc, b, kp.Public, 1, byzsig.Verify)
	assert.True(t, v2.OK)
	_ = d
}

// TestValidateIncomingFailsForForgedParents reproduces the Byzantine case: a
// signature that is internally valid (signed by a real key) but whose
// declared parents never appear adjacent to the line's ID-order position in
// any permitted window is never accepted, regardless of projection
// distance.
func TestValidateIncomingFailsForForgedParents(t *testing.T) {
	kp := mustKeyPair(t)
	d := New()

	// A legitimately-signed line, signed against a pair that can never be
	// adjacent to its ID-ordered position (the sentinels, while the line's
	// ID is deliberately placed far from them via repeated halving).
	left := docid.Infimum()
	right, err := docid.Between(left, docid.Supremum(), 0)
	require.NoError(t, err)
	forgedID, err := docid.Between(right, docid.Supremum(), 0)
	require.NoError(t, err)

	sig, err := byzsig.Sign(kp, byzsig.Binding{LeftParentID: left, LineID: forgedID, Content: "evil", RightParentID: right})
	require.NoError(t, err)

	forged := Line{ID: forgedID, Content: "evil", PeerID: 0, Signature: sig, Status: Alive}

	v := ValidateIncoming(d, forged, kp.Public, 0, byzsig.Verify)
	assert.False(t, v.OK)

	// Even generously widening the window (simulating a large projection
	// distance) does not manufacture a verifying pair, because sentinels
	// are the only candidates available and the signature is bound to
	// (left=inf, right=midpoint), not (inf, sup).
	vWide := ValidateIncoming(d, forged, kp.Public, 50, byzsig.Verify)
	assert.False(t, vWide.OK)
}

// TestValidateIncomingLeftBranchPreferredOnTie builds a document where, at
// the same widening depth, both a more-left and a more-right candidate pair
// would verify under a stubbed verifier. The left-widened candidate must
// win, matching the documented tie-break.
func TestValidateIncomingLeftBranchPreferredOnTie(t *testing.T) {
	kp := mustKeyPair(t)
	d := New()
	for i, content := range []string{"P0", "P1", "P2", "P3", "P4"} {
		var err error
		_, d, err = d.InsertByPosition(i, content, 0, vclock.New(1), signWith(kp))
		require.NoError(t, err)
	}
	// Document is now: inf, P0, P1, P2, P3, P4, sup (indices 0..6).
	p1 := mustLineAt(t, d, 2)
	p2 := mustLineAt(t, d, 3)
	p3 := mustLineAt(t, d, 4)
	p4 := mustLineAt(t, d, 5)

	incomingID, err := docid.Between(p2.ID, p3.ID, 0)
	require.NoError(t, err)
	incoming := Line{ID: incomingID, Content: "X", Status: Alive}

	c, ok := d.NewIndexForIncoming(incomingID)
	require.True(t, ok)
	require.Equal(t, 4, c)

	// extra=1 candidates: left-widened is (p1, p3); right-widened is
	// (p2, p4). Both verify under this stub, so the left-widened pair
	// (tried first) must win.
	var seenLeft, seenRight bool
	verify := func(originPub ed25519.PublicKey, left, right docid.ID, lineID docid.ID, content string, sig []byte) bool {
		switch {
		case docid.Compare(left, p1.ID) == 0 && docid.Compare(right, p3.ID) == 0:
			seenLeft = true
			return true
		case docid.Compare(left, p2.ID) == 0 && docid.Compare(right, p4.ID) == 0:
			seenRight = true
			return true
		default:
			return false
		}
	}

	v := ValidateIncoming(d, incoming, kp.Public, 1, verify)
	require.True(t, v.OK)
	assert.Equal(t, c-2, v.LeftIndex)
	assert.Equal(t, c+1, v.RightIndex)
	assert.True(t, seenLeft, "left-widened candidate should have been tried")
	assert.False(t, seenRight, "right-widened candidate should never be reached once left succeeds")
}

func mustLineAt(t *testing.T, d Document, i int) Line {
	t.Helper()
	l, ok := d.LineAtIndex(i)
	require.True(t, ok)
	return l
}
