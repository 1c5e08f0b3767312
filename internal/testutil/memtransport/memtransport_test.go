package memtransport

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/syncordian/syncordian/pkg/transport"
)

func TestBroadcastExcludesSender(t *testing.T) {
	n := NewNetwork()
	require.NoError(t, n.Register(0))
	require.NoError(t, n.Register(1))
	require.NoError(t, n.Register(2))

	msg := transport.Message{Kind: transport.KindDelete, Delete: &transport.DeletePayload{LineID: "x", OriginPeerID: 0}}
	require.NoError(t, n.Broadcast(context.Background(), 0, msg))

	assert.Equal(t, 0, n.Depth(0), "sender never receives its own broadcast")
	assert.Equal(t, 1, n.Depth(1))
	assert.Equal(t, 1, n.Depth(2))
}

func TestRecvDeliversFromAndMessage(t *testing.T) {
	n := NewNetwork()
	require.NoError(t, n.Register(0))
	require.NoError(t, n.Register(1))

	msg := transport.Message{Kind: transport.KindDelete, Delete: &transport.DeletePayload{LineID: "x", OriginPeerID: 0}}
	require.NoError(t, n.Broadcast(context.Background(), 0, msg))

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	from, got, err := n.Recv(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, 0, from)
	assert.Equal(t, "x", got.Delete.LineID)
}

func TestBroadcastToUnknownPeerReturnsUnknownPeerButDeliversRest(t *testing.T) {
	n := NewNetwork()
	require.NoError(t, n.Register(0))
	require.NoError(t, n.Register(1))
	require.NoError(t, n.Register(2))
	n.Deregister(2)

	msg := transport.Message{Kind: transport.KindDelete, Delete: &transport.DeletePayload{LineID: "x"}}
	err := n.Broadcast(context.Background(), 0, msg)
	assert.True(t, errors.Is(err, ErrUnknownPeer))
	assert.Equal(t, 1, n.Depth(1))
}

func TestRegisterTwiceWithoutDeregisterFails(t *testing.T) {
	n := NewNetwork()
	require.NoError(t, n.Register(0))
	err := n.Register(0)
	assert.True(t, errors.Is(err, ErrAlreadyBound))
}

func TestRecvAfterDeregisterReturnsNetworkClosed(t *testing.T) {
	n := NewNetwork()
	require.NoError(t, n.Register(0))

	done := make(chan struct{})
	var recvErr error
	go func() {
		_, _, recvErr = n.Recv(context.Background(), 0)
		close(done)
	}()

	n.Deregister(0)

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Recv did not return after Deregister")
	}
	assert.True(t, errors.Is(recvErr, ErrNetworkClosed))
}

func TestRecvRespectsContextCancellation(t *testing.T) {
	n := NewNetwork()
	require.NoError(t, n.Register(0))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, _, err := n.Recv(ctx, 0)
		done <- err
	}()

	cancel()
	select {
	case err := <-done:
		assert.True(t, errors.Is(err, context.Canceled))
	case <-time.After(time.Second):
		t.Fatal("Recv did not return after context cancellation")
	}
}

func TestFullQueueReturnsErrQueueFull(t *testing.T) {
	n := NewNetwork()
	require.NoError(t, n.Register(0))
	require.NoError(t, n.Register(1))

	msg := transport.Message{Kind: transport.KindDelete, Delete: &transport.DeletePayload{LineID: "x"}}
	for i := 0; i < defaultQueueSize; i++ {
		require.NoError(t, n.Broadcast(context.Background(), 0, msg))
	}

	err := n.Broadcast(context.Background(), 0, msg)
	assert.True(t, errors.Is(err, ErrQueueFull))
}
