// Package docid implements the dense line-identifier arithmetic described
// in the engine's position-allocation component: given two neighbouring
// identifiers it produces a new one strictly between them, using an
// arbitrary-precision rational so that no finite run of concurrent inserts
// at the same gap can exhaust the space.
package docid

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"strings"
)

// ErrCapacityExceeded is returned when the identifier space between two
// neighbours has been driven past the configured precision ceiling. It is
// fatal at the originating peer: the operation is dropped and must not be
// broadcast (see pkg/peer).
var ErrCapacityExceeded = errors.New("docid: identifier space exhausted between neighbours")

// maxDenominatorBits bounds how many times a gap may be halved before an
// allocation is treated as exhausted. Concurrent inserts that keep
// splitting the same gap grow the denominator by roughly one bit per
// insert; this ceiling exists so a pathological replay can fail loudly
// rather than allocate unboundedly precise rationals forever.
const maxDenominatorBits = 4096

// ID is a dense rational ordering key plus the id of the peer that
// allocated it. The rational component alone cannot guarantee distinctness
// across peers: two peers splitting the exact same gap independently and
// concurrently compute the identical midpoint, since the allocation
// formula is deterministic. origin breaks that tie deterministically (by
// peer id, lowest first) without needing coordination, the same way
// Logoot-style identifiers append a site id to a numeric position. The
// zero value is not a valid ID; use Infimum/Supremum/Between to construct
// one.
type ID struct {
	r      *big.Rat
	origin int
}

// sentinelOrigin marks the two bracketing sentinels, which are installed
// identically by every peer and must never tie-break against a real
// allocation (peer ids are always >= 0).
const sentinelOrigin = -1

// Infimum returns the smallest possible ID, installed at document index 0
// when a peer starts.
func Infimum() ID { return ID{r: big.NewRat(0, 1), origin: sentinelOrigin} }

// Supremum returns the largest possible ID, installed at the last document
// index when a peer starts.
func Supremum() ID { return ID{r: big.NewRat(1, 1), origin: sentinelOrigin} }

// Between allocates a new ID strictly between left and right, attributed
// to originPeerID. It panics if left is not strictly less than right,
// since that indicates a caller bug (the document must never present
// non-adjacent or reversed neighbours).
//
// Two peers racing to fill the same gap (spec scenario S6) independently
// compute the same rational midpoint; origin then orders them
// deterministically instead of colliding, so every correct peer converges
// on the same final order once both broadcasts are observed.
func Between(left, right ID, originPeerID int) (ID, error) {
	if left.r.Cmp(right.r) >= 0 {
		panic("docid: Between called with left >= right")
	}

	mid := new(big.Rat).Add(left.r, right.r)
	mid.Quo(mid, big.NewRat(2, 1))

	if bitLen(mid) > maxDenominatorBits {
		return ID{}, fmt.Errorf("%w: between %s and %s", ErrCapacityExceeded, left, right)
	}

	return ID{r: mid, origin: originPeerID}, nil
}

func bitLen(r *big.Rat) int {
	return r.Denom().BitLen()
}

// Compare returns -1, 0, or 1 as a is less than, equal to, or greater than
// b. Ties in the rational component (same gap, different originating
// peers) are broken by origin, lowest first; a genuine tie including
// origin is a protocol bug (the caller should log and discard rather than
// insert).
func Compare(a, b ID) int {
	if c := a.r.Cmp(b.r); c != 0 {
		return c
	}
	switch {
	case a.origin < b.origin:
		return -1
	case a.origin > b.origin:
		return 1
	default:
		return 0
	}
}

// Less reports whether a sorts strictly before b.
func Less(a, b ID) bool { return Compare(a, b) < 0 }

// String renders the ID as a reduced fraction plus its origin, e.g.
// "1/2@3".
func (id ID) String() string {
	if id.r == nil {
		return "<nil-id>"
	}
	return fmt.Sprintf("%s@%d", id.r.RatString(), id.origin)
}

// MarshalText implements encoding.TextMarshaler so IDs round-trip cleanly
// through YAML/JSON-backed wire messages and config snapshots.
func (id ID) MarshalText() ([]byte, error) {
	if id.r == nil {
		return nil, errors.New("docid: marshal of zero-value ID")
	}
	return []byte(id.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(text []byte) error {
	ratPart, originPart, ok := strings.Cut(string(text), "@")
	if !ok {
		return fmt.Errorf("docid: invalid identifier %q", text)
	}
	r, ok := new(big.Rat).SetString(ratPart)
	if !ok {
		return fmt.Errorf("docid: invalid identifier %q", text)
	}
	origin, err := strconv.Atoi(originPart)
	if err != nil {
		return fmt.Errorf("docid: invalid identifier %q: %w", text, err)
	}
	id.r = r
	id.origin = origin
	return nil
}
