package trace

import (
	"context"
	"crypto/ed25519"
	"fmt"
	"sync"
	"time"

	"github.com/google/renameio/v2"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/syncordian/syncordian/internal/metrics"
	"github.com/syncordian/syncordian/internal/testutil/memtransport"
	"github.com/syncordian/syncordian/pkg/byzsig"
	"github.com/syncordian/syncordian/pkg/peer"
	"github.com/syncordian/syncordian/pkg/transport"
)

// quiescenceInterval is how often the supervisor polls peer mailboxes
// while waiting for a round of broadcasts to drain, replacing the fixed
// sleeps a test-harness-style driver would otherwise use between
// operations.
const quiescenceInterval = time.Millisecond

// defaultQuiescenceTimeout bounds how long the supervisor will wait for a
// round to settle before giving up and moving on, absent an explicit
// SetQuiescenceTimeout call; a peer stuck mid-handler past this point
// indicates a bug elsewhere, not a normal stash delay.
const defaultQuiescenceTimeout = 5 * time.Second

// depther is satisfied by transports that can report per-peer queue
// depth, letting the supervisor poll for quiescence instead of sleeping
// blindly. memtransport.Network implements it.
type depther interface {
	Depth(peerID int) int
}

// Supervisor bootstraps one peer per distinct trace author, drives the
// trace sequentially, and tears every peer down. It owns no CRDT state of
// its own — it only sequences operations against the peers it created.
type Supervisor struct {
	net     transport.Network
	log     *zap.SugaredLogger
	metrics *metrics.Recorder

	peersByAuthor map[string]*peer.Peer
	authorOrder   []string

	quiescenceTimeout time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// SetQuiescenceTimeout overrides how long Drive waits for a broadcast round
// to settle before proceeding anyway, per the supervisor's configured
// driver-level quiescence timeout.
func (s *Supervisor) SetQuiescenceTimeout(d time.Duration) {
	if d > 0 {
		s.quiescenceTimeout = d
	}
}

// Bootstrap spins up one peer per distinct author in t, wired to a shared
// in-process transport and a directory built from freshly generated
// signing keys.
func Bootstrap(ctx context.Context, t Trace, log *zap.SugaredLogger) (*Supervisor, error) {
	if log == nil {
		log = zap.S()
	}

	authors := t.Authors()
	if len(authors) == 0 {
		return nil, fmt.Errorf("trace: bootstrap: no authors found")
	}

	keys := make([]byzsig.KeyPair, len(authors))
	g, _ := errgroup.WithContext(ctx)
	for i := range authors {
		i := i
		g.Go(func() error {
			kp, err := byzsig.GenerateKeyPair()
			if err != nil {
				return fmt.Errorf("generate key for %s: %w", authors[i], err)
			}
			keys[i] = kp
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	pubKeys := make(map[int]ed25519.PublicKey, len(authors))
	for i, kp := range keys {
		pubKeys[i] = kp.Public
	}
	dir := peer.NewStaticDirectory(pubKeys)

	net := memtransport.NewNetwork()
	rec, _, err := metrics.New()
	if err != nil {
		return nil, fmt.Errorf("trace: bootstrap: metrics: %w", err)
	}

	runCtx, cancel := context.WithCancel(ctx)

	s := &Supervisor{
		net:               net,
		log:               log.Named("supervisor"),
		metrics:           rec,
		peersByAuthor:     make(map[string]*peer.Peer, len(authors)),
		authorOrder:       authors,
		quiescenceTimeout: defaultQuiescenceTimeout,
		cancel:            cancel,
	}

	for i, author := range authors {
		p, err := peer.New(peer.Config{
			PeerID:      i,
			NetworkSize: len(authors),
			Keys:        keys[i],
			Dir:         dir,
			Net:         net,
			Log:         log,
			Metrics:     rec,
		})
		if err != nil {
			cancel()
			return nil, fmt.Errorf("start peer for %s: %w", author, err)
		}
		s.peersByAuthor[author] = p

		s.wg.Add(1)
		go func(p *peer.Peer) {
			defer s.wg.Done()
			p.Run(runCtx)
		}(p)
	}

	return s, nil
}

// Drive replays every commit in t sequentially: each edit is dispatched to
// its author's peer, and the supervisor waits for the resulting broadcast
// round to quiesce before moving to the next one, so causal skew in the
// trace itself doesn't compound across operations.
func (s *Supervisor) Drive(ctx context.Context, t Trace) error {
	for _, c := range t.Commits {
		p, ok := s.peersByAuthor[c.Author]
		if !ok {
			return fmt.Errorf("trace: drive: unknown author %q in commit %s", c.Author, c.Hash)
		}
		for _, e := range c.Edits {
			switch e.Op {
			case OpInsert:
				p.Insert(e.Content, e.Index)
			case OpDelete:
				p.Delete(e.Index)
			default:
				s.log.Warnw("unknown edit op, ignoring", "op", e.Op, "commit", c.Hash)
				continue
			}
			s.awaitQuiescence(ctx)
		}
	}
	return nil
}

func (s *Supervisor) awaitQuiescence(ctx context.Context) {
	deadline := time.Now().Add(s.quiescenceTimeout)
	for time.Now().Before(deadline) {
		if s.quiescent() {
			return
		}
		select {
		case <-ctx.Done():
			return
		case <-time.After(quiescenceInterval):
		}
	}
	s.log.Warnw("quiescence timed out, proceeding anyway")
}

func (s *Supervisor) quiescent() bool {
	dep, ok := s.net.(depther)
	if !ok {
		return true
	}
	for i := range s.authorOrder {
		if dep.Depth(i) != 0 {
			return false
		}
	}
	return true
}

// Snapshot returns each author's current alive-content projection, newline-
// joined so a line count can be recovered from the content alone, for
// convergence checking and for the status command's snapshot display.
func (s *Supervisor) Snapshot() map[string]string {
	out := make(map[string]string, len(s.peersByAuthor))
	for author, p := range s.peersByAuthor {
		out[author] = p.LineContent()
	}
	return out
}

// WriteSnapshot atomically writes the current snapshot to path as YAML,
// for a replay command that wants a durable record of a convergence run
// (the peers themselves remain ephemeral — nothing here is read back on a
// future bootstrap).
func (s *Supervisor) WriteSnapshot(path string) error {
	b, err := yaml.Marshal(s.Snapshot())
	if err != nil {
		return fmt.Errorf("trace: snapshot: marshal: %w", err)
	}
	if err := renameio.WriteFile(path, b, 0o644); err != nil {
		return fmt.Errorf("trace: snapshot: write %s: %w", path, err)
	}
	return nil
}

// Teardown cancels every peer's run loop and waits for them to exit,
// matching the external kill_all() API.
func (s *Supervisor) Teardown(ctx context.Context) {
	s.cancel()
	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
	}
	_ = s.metrics.Shutdown(ctx)
}

// AuthorOrder returns authors in first-appearance order (== peer id order).
func (s *Supervisor) AuthorOrder() []string {
	out := make([]string, len(s.authorOrder))
	copy(out, s.authorOrder)
	return out
}
