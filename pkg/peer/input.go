package peer

import (
	"github.com/syncordian/syncordian/pkg/transport"
	"github.com/syncordian/syncordian/pkg/vclock"
)

// Input is the peer state machine's tagged message type. Every input the
// mailbox can receive implements this marker interface; Peer.handle
// dispatches on the concrete type with an exhaustive switch, and anything
// outside the known set falls to the default arm (logged and ignored).
type Input interface{ isInput() }

// InsertLocal is a local edit: insert content at position idx.
type InsertLocal struct {
	Content string
	Index   int
}

func (InsertLocal) isInput() {}

// DeleteLocal is a local edit: tombstone the line at idx.
type DeleteLocal struct {
	Index int
}

func (DeleteLocal) isInput() {}

// RecvInsert is a remote insert broadcast, carrying the sender's clock at
// time of broadcast.
type RecvInsert struct {
	FromPeerID int
	Payload    transport.InsertPayload
	SenderVC   vclock.Clock
}

func (RecvInsert) isInput() {}

// RecvDelete is a remote delete broadcast.
type RecvDelete struct {
	FromPeerID int
	Payload    transport.DeletePayload
	SenderVC   vclock.Clock
}

func (RecvDelete) isInput() {}

// PrintContent requests the alive-projection snapshot be written to the
// peer's standard log.
type PrintContent struct{}

func (PrintContent) isInput() {}
