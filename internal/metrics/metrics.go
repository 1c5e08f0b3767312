// Package metrics wires up the handful of OpenTelemetry instruments that
// give external observers visibility into stash behaviour: how deep each
// peer's pending stash grows, how many broadcasts each peer emits, how many
// stashed lines later validate after a clock advance, and how many lines
// are eventually discarded as permanently unverifiable. None of this feeds back into the
// CRDT logic itself — it is pure observation, wired the way the mesh
// layer would wire request/connection counters.
package metrics

import (
	"context"

	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// Recorder exposes the counters a Peer updates as it processes messages.
type Recorder struct {
	provider *sdkmetric.MeterProvider

	stashDepth      metric.Int64UpDownCounter
	broadcastsSent  metric.Int64Counter
	stashValidated  metric.Int64Counter
	byzantineDrops  metric.Int64Counter
}

// New creates a Recorder backed by an in-process manual reader, so a
// status command can read current values without standing up a push
// exporter.
func New() (*Recorder, *sdkmetric.ManualReader, error) {
	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	meter := provider.Meter("syncordian/peer")

	stashDepth, err := meter.Int64UpDownCounter("syncordian.peer.stash_depth",
		metric.WithDescription("lines currently held in a peer's pending stash"))
	if err != nil {
		return nil, nil, err
	}
	broadcastsSent, err := meter.Int64Counter("syncordian.peer.broadcasts_sent",
		metric.WithDescription("insert/delete broadcasts emitted by a peer"))
	if err != nil {
		return nil, nil, err
	}
	stashValidated, err := meter.Int64Counter("syncordian.peer.stash_validated",
		metric.WithDescription("stashed lines that validated after a VC advance"))
	if err != nil {
		return nil, nil, err
	}
	byzantineDrops, err := meter.Int64Counter("syncordian.peer.byzantine_drops",
		metric.WithDescription("lines permanently discarded as unverifiable"))
	if err != nil {
		return nil, nil, err
	}

	return &Recorder{
		provider:       provider,
		stashDepth:     stashDepth,
		broadcastsSent: broadcastsSent,
		stashValidated: stashValidated,
		byzantineDrops: byzantineDrops,
	}, reader, nil
}

func (r *Recorder) StashDepthDelta(ctx context.Context, peerID int, delta int64) {
	if r == nil {
		return
	}
	r.stashDepth.Add(ctx, delta, metric.WithAttributes(peerIDAttr(peerID)))
}

func (r *Recorder) BroadcastSent(ctx context.Context, peerID int) {
	if r == nil {
		return
	}
	r.broadcastsSent.Add(ctx, 1, metric.WithAttributes(peerIDAttr(peerID)))
}

func (r *Recorder) StashValidated(ctx context.Context, peerID int) {
	if r == nil {
		return
	}
	r.stashValidated.Add(ctx, 1, metric.WithAttributes(peerIDAttr(peerID)))
}

func (r *Recorder) ByzantineDrop(ctx context.Context, peerID int) {
	if r == nil {
		return
	}
	r.byzantineDrops.Add(ctx, 1, metric.WithAttributes(peerIDAttr(peerID)))
}

func (r *Recorder) Shutdown(ctx context.Context) error {
	if r == nil {
		return nil
	}
	return r.provider.Shutdown(ctx)
}
