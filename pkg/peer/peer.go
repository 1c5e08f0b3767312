// Package peer implements the per-replica state machine described in the
// engine's peer-process component: a single-threaded mailbox loop that
// sequences local edits, broadcast, and remote application. All document
// and clock mutation happens inside the handler for one message at a
// time, so it runs to completion before the next is dequeued — this makes
// every mutation within a peer linearizable without any locking.
package peer

import (
	"context"
	"fmt"

	"github.com/syncordian/syncordian/internal/metrics"
	"github.com/syncordian/syncordian/pkg/byzsig"
	"github.com/syncordian/syncordian/pkg/docid"
	"github.com/syncordian/syncordian/pkg/document"
	"github.com/syncordian/syncordian/pkg/transport"
	"github.com/syncordian/syncordian/pkg/vclock"
	"go.uber.org/zap"
)

// stashedLine is a remote insert the peer could not yet verify, held
// per-sender until the local clock advances enough to retry it.
type stashedLine struct {
	from     int
	line     document.Line
	senderVC vclock.Clock
}

// Peer owns its document and clock exclusively; nothing outside this
// package ever touches them directly. It is constructed by the supervisor
// at bootstrap and driven by Run until the supervisor tears it down.
type Peer struct {
	id          int
	networkSize int
	keys        byzsig.KeyPair
	dir         Directory
	net         transport.Network
	log         *zap.SugaredLogger
	metrics     *metrics.Recorder

	clock vclock.Clock
	doc   document.Document
	stash map[int][]stashedLine

	local chan Input
}

// Config bundles everything Peer.New needs. Keys, Dir and Net are
// supplied by the supervisor; they are read-only from the peer's
// perspective once construction completes.
type Config struct {
	PeerID      int
	NetworkSize int
	Keys        byzsig.KeyPair
	Dir         Directory
	Net         transport.Network
	Log         *zap.SugaredLogger
	Metrics     *metrics.Recorder

	// LocalQueueSize bounds the local-edit mailbox; 0 selects a sane
	// default.
	LocalQueueSize int
}

const defaultLocalQueueSize = 64

// New creates a peer and registers it with the transport, mirroring the
// external start(peer_id, network_size) -> handle API.
func New(cfg Config) (*Peer, error) {
	if err := cfg.Net.Register(cfg.PeerID); err != nil {
		return nil, err
	}

	queueSize := cfg.LocalQueueSize
	if queueSize == 0 {
		queueSize = defaultLocalQueueSize
	}

	log := cfg.Log
	if log == nil {
		log = zap.S()
	}

	return &Peer{
		id:          cfg.PeerID,
		networkSize: cfg.NetworkSize,
		keys:        cfg.Keys,
		dir:         cfg.Dir,
		net:         cfg.Net,
		log:         log.Named("peer").With("peer_id", cfg.PeerID),
		metrics:     cfg.Metrics,
		clock:       vclock.New(cfg.NetworkSize),
		doc:         document.New(),
		stash:       make(map[int][]stashedLine),
		local:       make(chan Input, queueSize),
	}, nil
}

// ID returns the peer's own id.
func (p *Peer) ID() int { return p.id }

// Insert enqueues a local insert command; matches the external
// insert(handle, content, index) API.
func (p *Peer) Insert(content string, index int) {
	p.local <- InsertLocal{Content: content, Index: index}
}

// Delete enqueues a local delete command.
func (p *Peer) Delete(index int) {
	p.local <- DeleteLocal{Index: index}
}

// RequestPrintContent enqueues a print_content command.
func (p *Peer) RequestPrintContent() {
	p.local <- PrintContent{}
}

// Content snapshots the current alive projection directly, for use by the
// supervisor's convergence check without routing through the mailbox (the
// supervisor runs after all peers are torn down, so there is no
// concurrent mutation to race with).
func (p *Peer) Content() string {
	return p.doc.AliveContent("")
}

// LineContent is like Content but joins lines with "\n", so a caller that
// needs to recover a line count (e.g. a status display) can do so without
// re-deriving one from a separator that was never actually inserted.
func (p *Peer) LineContent() string {
	return p.doc.AliveContent("\n")
}

// Clock returns a copy of the peer's current vector clock.
func (p *Peer) Clock() vclock.Clock { return p.clock }

// Run drains both the local command mailbox and the network until ctx is
// canceled. It is meant to be run in its own goroutine by the supervisor.
func (p *Peer) Run(ctx context.Context) {
	netCh := make(chan netMsg, defaultLocalQueueSize)
	go p.recvLoop(ctx, netCh)

	for {
		select {
		case <-ctx.Done():
			p.net.Deregister(p.id)
			return
		case in := <-p.local:
			p.handle(ctx, in)
		case nm := <-netCh:
			p.handle(ctx, nm.input)
		}
	}
}

type netMsg struct{ input Input }

func (p *Peer) recvLoop(ctx context.Context, out chan<- netMsg) {
	for {
		from, msg, err := p.net.Recv(ctx, p.id)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Debugw("recv failed", "err", err)
			continue
		}

		in, ok := p.decodeNetMsg(from, msg)
		if !ok {
			continue
		}

		select {
		case out <- netMsg{input: in}:
		case <-ctx.Done():
			return
		}
	}
}

func (p *Peer) decodeNetMsg(from int, msg transport.Message) (Input, bool) {
	switch msg.Kind {
	case transport.KindInsert:
		if msg.Insert == nil {
			p.log.Warnw("unknown message: insert kind with nil payload", "from", from)
			return nil, false
		}
		return RecvInsert{FromPeerID: from, Payload: *msg.Insert, SenderVC: vclock.FromSlice(msg.Insert.Clock)}, true
	case transport.KindDelete:
		if msg.Delete == nil {
			p.log.Warnw("unknown message: delete kind with nil payload", "from", from)
			return nil, false
		}
		return RecvDelete{FromPeerID: from, Payload: *msg.Delete, SenderVC: vclock.FromSlice(msg.Delete.Clock)}, true
	default:
		p.log.Warnw("unknown message tag, ignoring", "from", from, "kind", msg.Kind)
		return nil, false
	}
}

// handle is the exhaustive dispatcher over Input, one message at a time.
func (p *Peer) handle(ctx context.Context, in Input) {
	switch e := in.(type) {
	case InsertLocal:
		p.handleInsertLocal(ctx, e)
	case DeleteLocal:
		p.handleDeleteLocal(ctx, e)
	case RecvInsert:
		p.handleRecvInsert(ctx, e)
	case RecvDelete:
		p.handleRecvDelete(ctx, e)
	case PrintContent:
		p.handlePrintContent()
	default:
		p.log.Warnw("unknown input, ignoring", "type", fmt.Sprintf("%T", e))
	}
}

func (p *Peer) handleInsertLocal(ctx context.Context, e InsertLocal) {
	left, right := p.doc.ParentsOf(e.Index)

	clockSnapshot := p.clock.Tick(p.id)

	line, newDoc, err := p.doc.InsertByPosition(e.Index, e.Content, p.id, clockSnapshot, func(l, r docid.ID, lineID docid.ID, content string) ([]byte, error) {
		return byzsig.Sign(p.keys, byzsig.Binding{LeftParentID: l, LineID: lineID, Content: content, RightParentID: r})
	})
	if err != nil {
		// Capacity error: fatal at the originator. The operation is
		// dropped and no partial broadcast is ever emitted, so the local
		// VC entry must not advance either.
		p.log.Errorw("local insert failed, dropping operation", "err", err, "index", e.Index, "left", left.ID, "right", right.ID)
		return
	}

	p.clock = clockSnapshot
	p.doc = newDoc

	payload := encodeInsert(line, clockSnapshot.Slice())
	if err := p.net.Broadcast(ctx, p.id, transport.Message{Kind: transport.KindInsert, Insert: &payload}); err != nil {
		p.log.Warnw("broadcast insert failed", "err", err)
	}
	p.metrics.BroadcastSent(ctx, p.id)
}

func (p *Peer) handleDeleteLocal(ctx context.Context, e DeleteLocal) {
	newDoc, err := p.doc.DeleteByIndex(e.Index)
	if err != nil {
		p.log.Warnw("local delete rejected", "err", err, "index", e.Index)
		return
	}
	line, _ := p.doc.LineAtIndex(e.Index)
	p.doc = newDoc

	p.clock = p.clock.Tick(p.id)

	payload := transport.DeletePayload{
		LineID:       line.ID.String(),
		OriginPeerID: p.id,
		Clock:        p.clock.Slice(),
	}
	if err := p.net.Broadcast(ctx, p.id, transport.Message{Kind: transport.KindDelete, Delete: &payload}); err != nil {
		p.log.Warnw("broadcast delete failed", "err", err)
	}
	p.metrics.BroadcastSent(ctx, p.id)
}

func (p *Peer) handleRecvInsert(ctx context.Context, e RecvInsert) {
	line, err := decodeInsert(e.Payload)
	if err != nil {
		p.log.Warnw("malformed insert payload, discarding", "from", e.FromPeerID, "err", err)
		return
	}

	if p.doc.HasID(line.ID) {
		p.log.Warnw("duplicate line id, discarding", "id", line.ID, "from", e.FromPeerID)
		return
	}

	if p.tryApplyInsert(ctx, e.FromPeerID, line, e.SenderVC) {
		return
	}

	p.stashInsert(ctx, e.FromPeerID, line, e.SenderVC)
}

// tryApplyInsert runs sliding-window validation and, on success, splices
// the line in and merges clocks. It returns false if the line could not
// be verified against any candidate pair in the permitted window.
func (p *Peer) tryApplyInsert(ctx context.Context, from int, line document.Line, senderVC vclock.Clock) bool {
	originPub, ok := p.dir.PublicKey(line.PeerID)
	if !ok {
		p.log.Warnw("unknown signer, discarding", "peer_id", line.PeerID)
		return true // not stash-worthy: we will never learn this key
	}

	dist := vclock.ProjectionDistance(p.clock, senderVC, from)
	v := document.ValidateIncoming(p.doc, line, originPub, dist, document.DefaultVerifier)
	if v.NotFound {
		p.log.Errorw("incoming line id exceeds every existing id, position not found",
			"id", line.ID, "from", from)
	}
	if !v.OK {
		return false
	}

	p.clock = p.clock.Merge(senderVC)
	p.doc = p.doc.InsertRemote(line, v.Index, p.id, p.clock)
	p.replayStash(ctx, from)
	return true
}

func (p *Peer) stashInsert(ctx context.Context, from int, line document.Line, senderVC vclock.Clock) {
	p.stash[from] = append(p.stash[from], stashedLine{from: from, line: line, senderVC: senderVC})
	p.metrics.StashDepthDelta(ctx, p.id, 1)
}

// replayStash re-attempts every pending line from sender, called whenever
// the local clock's entry for sender has just advanced (via a merge).
// Lines that still cannot verify once the local clock has fully caught up
// to the sender's broadcast-time clock are permanently discarded as
// Byzantine.
func (p *Peer) replayStash(ctx context.Context, from int) {
	pending := p.stash[from]
	if len(pending) == 0 {
		return
	}
	delete(p.stash, from)

	for _, sl := range pending {
		if p.doc.HasID(sl.line.ID) {
			p.metrics.StashDepthDelta(ctx, p.id, -1)
			continue
		}
		if p.tryApplyInsert(ctx, sl.from, sl.line, sl.senderVC) {
			p.metrics.StashDepthDelta(ctx, p.id, -1)
			p.metrics.StashValidated(ctx, p.id)
			continue
		}

		if p.clock.At(from) >= sl.senderVC.At(from) {
			p.log.Warnw("line unverifiable after sender caught up, discarding as Byzantine",
				"id", sl.line.ID, "from", from)
			p.metrics.StashDepthDelta(ctx, p.id, -1)
			p.metrics.ByzantineDrop(ctx, p.id)
			continue
		}

		p.stash[from] = append(p.stash[from], sl)
	}
}

func (p *Peer) handleRecvDelete(ctx context.Context, e RecvDelete) {
	id, err := decodeLineID(e.Payload.LineID)
	if err != nil {
		p.log.Warnw("malformed delete payload, discarding", "from", e.FromPeerID, "err", err)
		return
	}

	if !p.doc.HasID(id) {
		p.log.Warnw("delete target not found, falling back to index 1", "id", id, "from", e.FromPeerID)
	}

	idx := p.doc.IndexOf(id)
	newDoc, err := p.doc.DeleteByIndex(idx)
	if err != nil {
		p.log.Warnw("remote delete rejected", "err", err, "id", id)
	} else {
		p.doc = newDoc
	}

	// A delete advances the sender's clock entry exactly like an insert
	// does, so any lines of theirs still held in the stash must be
	// re-checked (or discarded as Byzantine) here too.
	p.clock = p.clock.Merge(e.SenderVC)
	p.replayStash(ctx, e.FromPeerID)
}

func (p *Peer) handlePrintContent() {
	p.log.Infow("document content", "content", p.doc.AliveContent(" "))
}
