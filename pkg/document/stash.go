package document

import (
	"crypto/ed25519"
)

// stashSlack is the constant offset baked into the base candidate pair
// (deltaLeft, deltaRight) = (-1, +1): evaluating that one-step window
// always happens regardless of the projection distance W, which is the
// "+2" of the permitted-window inequality (-deltaLeft)+deltaRight <= W+2.
// Widening beyond that base pair costs one unit of W per step.
const stashSlack = 2

// Verification is the outcome of sliding-window validation: whether a
// parent pair was found, and if so, the indices of that pair within the
// tentative document (the document with the incoming line spliced in at
// its ID-order position).
type Verification struct {
	OK         bool
	Index      int // splice point: where incoming belongs in ID order
	LeftIndex  int
	RightIndex int

	// NotFound marks the must-not-happen case: the incoming ID did not fall
	// before any existing ID, which the identifier contract rules out since
	// the supremum bounds the space. Callers must log this distinctly from
	// an ordinary verification failure.
	NotFound bool
}

// ValidateIncoming runs the sliding-window search for a remote insert: the
// local replica's view of the sender may lag, so the neighbours the line
// was signed against may no longer be the neighbours currently adjacent to
// it at its natural ID-order position. It widens outward, left-branch
// first, bounded by the causally-unseen gap (projectionDistance) plus the
// baseline one-step window.
//
// originPub is the sender's public key. verify lets tests inject a fake
// signature checker; production callers pass document.DefaultVerifier.
func ValidateIncoming(d Document, incoming Line, originPub ed25519.PublicKey, projectionDistance int, verify VerifierFunc) Verification {
	c, exact := d.NewIndexForIncoming(incoming.ID)
	if !exact {
		// Must-not-happen per the identifier contract (the supremum bounds
		// the space) — treat as an unverifiable, stash-worthy line rather
		// than mutate the document, but flag it so the caller logs this
		// distinctly from an ordinary signature-verification failure.
		return Verification{NotFound: true}
	}

	tentative := make([]Line, 0, len(d.lines)+1)
	tentative = append(tentative, d.lines[:c]...)
	tentative = append(tentative, incoming)
	tentative = append(tentative, d.lines[c:]...)

	maxExtra := projectionDistance + stashSlack - 2 // the base pair already costs 2
	if maxExtra < 0 {
		maxExtra = 0
	}

	for extra := 0; extra <= maxExtra; extra++ {
		// Left-widening branch first: within a given extra-step budget,
		// the candidate reached via more left steps wins ties.
		for leftSteps := extra; leftSteps >= 0; leftSteps-- {
			rightSteps := extra - leftSteps
			leftIdx := c - 1 - leftSteps
			rightIdx := c + 1 + rightSteps
			if leftIdx < 0 || rightIdx >= len(tentative) {
				continue
			}
			left, right := tentative[leftIdx], tentative[rightIdx]
			if verify(originPub, left.ID, right.ID, incoming.ID, incoming.Content, incoming.Signature) {
				return Verification{OK: true, Index: c, LeftIndex: leftIdx, RightIndex: rightIdx}
			}
		}
	}

	return Verification{}
}
