// Package transport defines the abstract reliable-broadcast interface the
// peer state machine depends on. The CRDT layer never assumes a specific
// wire protocol: the network is modeled only as reliable, per-sender-FIFO
// broadcast of opaque messages (insert/delete envelopes plus the sender's
// vector clock). Concrete implementations — in-process channels for tests
// and replay, or a real socket transport for a deployed network — live
// outside this package and satisfy Network.
package transport

import "context"

// Kind discriminates an insert broadcast from a delete broadcast.
type Kind int

const (
	KindInsert Kind = iota
	KindDelete
)

// InsertPayload mirrors Broadcast{kind: insert, line, vc}. Line fields are
// carried as opaque strings/bytes here to avoid this package depending on
// docid/document — callers marshal via docid.ID.String() and parse back
// with docid.ID.UnmarshalText.
type InsertPayload struct {
	LineID    string
	Content   string
	PeerID    int
	Signature []byte
	Clock     []uint64
}

// DeletePayload mirrors Broadcast{kind: delete, line_id, origin_peer_id, vc}.
type DeletePayload struct {
	LineID       string
	OriginPeerID int
	Clock        []uint64
}

// Message is the logical envelope exchanged between peers; exactly one of
// Insert/Delete is populated depending on Kind.
type Message struct {
	Kind   Kind
	Insert *InsertPayload
	Delete *DeletePayload
}

// Network is the reliable broadcast fabric every peer is given at
// construction. Register/Deregister bracket a peer's lifetime the way
// start/kill_all do in the peer API.
type Network interface {
	Register(peerID int) error
	Deregister(peerID int)

	// Broadcast fans out msg to every registered peer except fromPeerID.
	Broadcast(ctx context.Context, fromPeerID int, msg Message) error

	// Recv blocks until the next message addressed to toPeerID arrives.
	// Delivery is FIFO per sender; across senders there is no ordering
	// guarantee, which is why the stash exists.
	Recv(ctx context.Context, toPeerID int) (fromPeerID int, msg Message, err error)
}
