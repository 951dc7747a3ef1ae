// ABOUTME: Tests for the session supervisor's lifecycle state machine.
// ABOUTME: Covers idempotent starts, transport events, reconnects, and sends.

package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conversia/flow-gateway/internal/transport"
)

func newTestSupervisor(t *testing.T) (*Supervisor, *transport.FakeFactory) {
	t.Helper()

	factory := transport.NewFakeFactory()
	sup := NewSupervisor(SupervisorParams{
		Store:          NewStore(),
		Factory:        factory,
		CredentialRoot: t.TempDir(),
		RetryDelay:     20 * time.Millisecond,
	})
	return sup, factory
}

func TestSupervisorStart(t *testing.T) {
	sup, factory := newTestSupervisor(t)

	created, err := sup.Start(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.True(t, created)

	require.Len(t, factory.Created(), 1)
	tr := factory.Last()
	assert.True(t, tr.Started())
	assert.Equal(t, "tenant-a", tr.TenantID)
	assert.Equal(t, StateAwaitingPairing, sup.State("tenant-a"))
}

func TestSupervisorStart_Idempotent(t *testing.T) {
	sup, factory := newTestSupervisor(t)

	created, err := sup.Start(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.True(t, created)

	// A second start while the session is pairing must not build a second
	// transport.
	created, err = sup.Start(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, factory.Created(), 1)

	factory.Last().EmitReady()
	created, err = sup.Start(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Len(t, factory.Created(), 1)
}

func TestSupervisorStart_FailureRevertsState(t *testing.T) {
	sup, factory := newTestSupervisor(t)
	factory.FailStarts(errors.New("boom"))

	created, err := sup.Start(context.Background(), "tenant-a")
	require.Error(t, err)
	assert.False(t, created)
	assert.Equal(t, StateUnstarted, sup.State("tenant-a"))
	assert.True(t, factory.Last().Closed())

	// A later start succeeds once the transport behaves.
	factory.FailStarts(nil)
	created, err = sup.Start(context.Background(), "tenant-a")
	require.NoError(t, err)
	assert.True(t, created)
}

func TestSupervisorLifecycleEvents(t *testing.T) {
	sup, factory := newTestSupervisor(t)

	_, err := sup.Start(context.Background(), "tenant-a")
	require.NoError(t, err)
	tr := factory.Last()

	tr.EmitPairingCode("code-1")
	assert.Equal(t, StateAwaitingPairing, sup.State("tenant-a"))
	assert.Equal(t, "code-1", sup.PairingArtifact("tenant-a"))

	// The transport regenerates the code when it expires unused.
	tr.EmitPairingCode("code-2")
	assert.Equal(t, "code-2", sup.PairingArtifact("tenant-a"))

	tr.EmitAuthenticated()
	assert.Equal(t, StateAuthenticated, sup.State("tenant-a"))

	tr.EmitReady()
	assert.Equal(t, StateReady, sup.State("tenant-a"))
	assert.Empty(t, sup.PairingArtifact("tenant-a"), "ready must clear the stale pairing code")
}

func TestSupervisorState_UnknownTenant(t *testing.T) {
	sup, _ := newTestSupervisor(t)
	assert.Equal(t, StateUnstarted, sup.State("ghost"))
	assert.Empty(t, sup.PairingArtifact("ghost"))
}

func TestSupervisorStop(t *testing.T) {
	sup, factory := newTestSupervisor(t)

	_, err := sup.Start(context.Background(), "tenant-a")
	require.NoError(t, err)
	tr := factory.Last()
	tr.EmitReady()

	require.NoError(t, sup.Stop("tenant-a"))
	assert.True(t, tr.Closed())
	assert.Nil(t, sup.Store().Get("tenant-a"))

	assert.ErrorIs(t, sup.Stop("tenant-a"), ErrNoSession)
}

func TestSupervisorReconnect(t *testing.T) {
	sup, factory := newTestSupervisor(t)

	_, err := sup.Start(context.Background(), "tenant-a")
	require.NoError(t, err)

	factory.Last().EmitDisconnected("network")
	assert.Equal(t, StateDisconnected, sup.State("tenant-a"))

	// The flat-delay retry builds a fresh transport.
	assert.Eventually(t, func() bool {
		return len(factory.Created()) == 2
	}, time.Second, 5*time.Millisecond)
	assert.Equal(t, StateAwaitingPairing, sup.State("tenant-a"))
	assert.True(t, factory.Created()[0].Closed(), "stale transport must be released")
}

func TestSupervisorStop_CancelsPendingReconnect(t *testing.T) {
	sup, factory := newTestSupervisor(t)

	_, err := sup.Start(context.Background(), "tenant-a")
	require.NoError(t, err)

	factory.Last().EmitDisconnected("network")
	require.NoError(t, sup.Stop("tenant-a"))

	// Wait past the retry delay: the stopped tenant must not be resurrected.
	time.Sleep(60 * time.Millisecond)
	assert.Len(t, factory.Created(), 1)
	assert.Nil(t, sup.Store().Get("tenant-a"))
}

func TestSupervisorSend(t *testing.T) {
	sup, factory := newTestSupervisor(t)
	ctx := context.Background()
	msg := transport.OutboundMessage{Text: "hello"}

	t.Run("unknown tenant", func(t *testing.T) {
		err := sup.Send(ctx, "ghost", "123@c.us", msg)
		assert.ErrorIs(t, err, ErrNoSession)
	})

	t.Run("not ready", func(t *testing.T) {
		_, err := sup.Start(ctx, "tenant-a")
		require.NoError(t, err)

		err = sup.Send(ctx, "tenant-a", "123@c.us", msg)
		assert.ErrorIs(t, err, transport.ErrNotConnected)
		assert.Empty(t, factory.Last().Sent(), "no transport call before ready")
	})

	t.Run("ready", func(t *testing.T) {
		factory.Last().EmitReady()

		err := sup.Send(ctx, "tenant-a", "123@c.us", msg)
		require.NoError(t, err)

		sent := factory.Last().Sent()
		require.Len(t, sent, 1)
		assert.Equal(t, "123@c.us", sent[0].Recipient)
		assert.Equal(t, "hello", sent[0].Message.Text)
	})
}

type recordingHandler struct {
	calls []struct {
		tenantID string
		msg      transport.InboundMessage
	}
}

func (h *recordingHandler) HandleInbound(_ context.Context, tenantID string, msg transport.InboundMessage) {
	h.calls = append(h.calls, struct {
		tenantID string
		msg      transport.InboundMessage
	}{tenantID, msg})
}

func TestSupervisorInboundForwarding(t *testing.T) {
	sup, factory := newTestSupervisor(t)
	handler := &recordingHandler{}
	sup.SetMessageHandler(handler)

	_, err := sup.Start(context.Background(), "tenant-a")
	require.NoError(t, err)
	tr := factory.Last()

	// Messages before ready are dropped.
	tr.EmitMessage(transport.InboundMessage{ID: "m1", Sender: "555", Text: "early"})
	assert.Empty(t, handler.calls)

	tr.EmitReady()
	tr.EmitMessage(transport.InboundMessage{ID: "m2", Sender: "555", Text: "hi"})
	require.Len(t, handler.calls, 1)
	assert.Equal(t, "tenant-a", handler.calls[0].tenantID)
	assert.Equal(t, "hi", handler.calls[0].msg.Text)
}
