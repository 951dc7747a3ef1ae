// ABOUTME: Tests for the conversation engine's flow-walking behavior.
// ABOUTME: Covers anchoring, keyword advancement, option sets, forwards, and dedupe.

package engine

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/conversia/flow-gateway/internal/dedupe"
	"github.com/conversia/flow-gateway/internal/flow"
	"github.com/conversia/flow-gateway/internal/transport"
)

type recordedSend struct {
	tenantID  string
	recipient string
	msg       transport.OutboundMessage
}

type fakeSender struct {
	sends []recordedSend
	err   error
}

func (s *fakeSender) Send(_ context.Context, tenantID, recipient string, msg transport.OutboundMessage) error {
	s.sends = append(s.sends, recordedSend{tenantID, recipient, msg})
	return s.err
}

type staticFlows struct {
	flows []flow.Flow
}

func (s *staticFlows) ActiveFlows() []flow.Flow {
	return s.flows
}

type fakeNotifier struct {
	forwards []flow.Node
}

func (n *fakeNotifier) Forward(_ context.Context, _, _ string, node flow.Node) {
	n.forwards = append(n.forwards, node)
}

// supportFlow is a three-node menu: welcome offers support or sales, support
// is a terminal forward node.
func supportFlow() flow.Flow {
	return flow.Flow{
		ID:       "f1",
		IsActive: true,
		Nodes: []flow.Node{
			{ID: "welcome", DisplayText: "Welcome! How can we help?", Type: flow.NodeTypeText},
			{ID: "support", DisplayText: "Connecting you to support.", Type: flow.NodeTypeForward},
			{ID: "sales", DisplayText: "Our sales hours are 9-18.", Type: flow.NodeTypeText},
		},
		Connections: []flow.Connection{
			{FromNodeID: "welcome", ToNodeID: "support", ConditionKeywords: []string{"suporte"}, IsButtonOption: true},
			{FromNodeID: "welcome", ToNodeID: "sales", ConditionKeywords: []string{"vendas"}, IsButtonOption: true},
		},
	}
}

func newTestEngine(t *testing.T, flows ...flow.Flow) (*Engine, *fakeSender, *fakeNotifier) {
	t.Helper()

	sender := &fakeSender{}
	notifier := &fakeNotifier{}
	eng := New(Params{
		Flows:    &staticFlows{flows: flows},
		Sender:   sender,
		Notifier: notifier,
	})
	return eng, sender, notifier
}

func inbound(id, text string) transport.InboundMessage {
	return transport.InboundMessage{ID: id, Sender: "5511999990000", Text: text}
}

func TestEngineAnchorsNewConversation(t *testing.T) {
	eng, sender, _ := newTestEngine(t, supportFlow())

	eng.HandleInbound(context.Background(), "tenant-a", inbound("m1", "oi"))

	require.Len(t, sender.sends, 1)
	got := sender.sends[0]
	assert.Equal(t, "tenant-a", got.tenantID)
	assert.Equal(t, "5511999990000", got.recipient)
	assert.Equal(t, "Welcome! How can we help?", got.msg.Text)
	assert.Equal(t, []string{"suporte", "vendas"}, got.msg.Options)

	nodeID, ok := eng.States().Get("tenant-a", "5511999990000")
	require.True(t, ok)
	assert.Equal(t, "welcome", nodeID)
}

func TestEngineAdvancesOnKeyword(t *testing.T) {
	eng, sender, notifier := newTestEngine(t, supportFlow())
	ctx := context.Background()

	eng.HandleInbound(ctx, "tenant-a", inbound("m1", "oi"))
	eng.HandleInbound(ctx, "tenant-a", inbound("m2", "quero suporte, por favor"))

	require.Len(t, sender.sends, 2)
	assert.Equal(t, "Connecting you to support.", sender.sends[1].msg.Text)
	assert.Empty(t, sender.sends[1].msg.Options)

	// The forward node notifies the department router.
	require.Len(t, notifier.forwards, 1)
	assert.Equal(t, "support", notifier.forwards[0].ID)

	// The support node is terminal: state is gone and the next message
	// anchors at the entry node again.
	_, ok := eng.States().Get("tenant-a", "5511999990000")
	assert.False(t, ok)

	eng.HandleInbound(ctx, "tenant-a", inbound("m3", "obrigado"))
	require.Len(t, sender.sends, 3)
	assert.Equal(t, "Welcome! How can we help?", sender.sends[2].msg.Text)
}

func TestEngineDeclarationOrderTieBreak(t *testing.T) {
	f := supportFlow()
	// Both connections match the same text; the first declared wins.
	f.Connections[0].ConditionKeywords = []string{"ajuda"}
	f.Connections[1].ConditionKeywords = []string{"ajuda"}
	eng, sender, _ := newTestEngine(t, f)
	ctx := context.Background()

	eng.HandleInbound(ctx, "tenant-a", inbound("m1", "oi"))
	eng.HandleInbound(ctx, "tenant-a", inbound("m2", "ajuda"))

	require.Len(t, sender.sends, 2)
	assert.Equal(t, "Connecting you to support.", sender.sends[1].msg.Text)
}

func TestEngineNotUnderstood(t *testing.T) {
	eng, sender, _ := newTestEngine(t, supportFlow())
	ctx := context.Background()

	eng.HandleInbound(ctx, "tenant-a", inbound("m1", "oi"))
	eng.HandleInbound(ctx, "tenant-a", inbound("m2", "xyzzy"))

	require.Len(t, sender.sends, 2)
	assert.Equal(t, defaultNotUnderstoodReply, sender.sends[1].msg.Text)
	assert.Equal(t, []string{"suporte", "vendas"}, sender.sends[1].msg.Options)

	// The conversation stays where it was.
	nodeID, ok := eng.States().Get("tenant-a", "5511999990000")
	require.True(t, ok)
	assert.Equal(t, "welcome", nodeID)
}

func TestEngineDanglingTargetEndsConversation(t *testing.T) {
	f := supportFlow()
	f.Connections[0].ToNodeID = "deleted-node"
	eng, sender, _ := newTestEngine(t, f)
	ctx := context.Background()

	eng.HandleInbound(ctx, "tenant-a", inbound("m1", "oi"))
	eng.HandleInbound(ctx, "tenant-a", inbound("m2", "suporte"))

	require.Len(t, sender.sends, 2)
	assert.Equal(t, defaultEndOfFlowReply, sender.sends[1].msg.Text)

	_, ok := eng.States().Get("tenant-a", "5511999990000")
	assert.False(t, ok)
}

func TestEngineStaleNodeReanchors(t *testing.T) {
	eng, sender, _ := newTestEngine(t, supportFlow())
	ctx := context.Background()

	// The sender sits at a node the refreshed flow no longer has.
	eng.States().Set("tenant-a", "5511999990000", "old-node")

	eng.HandleInbound(ctx, "tenant-a", inbound("m1", "oi"))

	require.Len(t, sender.sends, 1)
	assert.Equal(t, "Welcome! How can we help?", sender.sends[0].msg.Text)
	nodeID, _ := eng.States().Get("tenant-a", "5511999990000")
	assert.Equal(t, "welcome", nodeID)
}

func TestEngineNoActiveFlow(t *testing.T) {
	eng, sender, _ := newTestEngine(t)

	eng.HandleInbound(context.Background(), "tenant-a", inbound("m1", "oi"))
	assert.Empty(t, sender.sends)
}

func TestEngineDedupesRedeliveries(t *testing.T) {
	cache := dedupe.New(time.Minute, 100)
	defer cache.Close()

	sender := &fakeSender{}
	eng := New(Params{
		Flows:  &staticFlows{flows: []flow.Flow{supportFlow()}},
		Sender: sender,
		Dedupe: cache,
	})
	ctx := context.Background()

	msg := inbound("m1", "oi")
	eng.HandleInbound(ctx, "tenant-a", msg)
	eng.HandleInbound(ctx, "tenant-a", msg)
	assert.Len(t, sender.sends, 1)

	// A missing platform id disables dedupe for that message.
	eng.HandleInbound(ctx, "tenant-a", inbound("", "xyzzy"))
	eng.HandleInbound(ctx, "tenant-a", inbound("", "xyzzy"))
	assert.Len(t, sender.sends, 3)
}

func TestEngineSendFailureIsSwallowed(t *testing.T) {
	eng, sender, _ := newTestEngine(t, supportFlow())
	sender.err = transport.ErrNotConnected

	// Must not panic or propagate; state is still advanced.
	eng.HandleInbound(context.Background(), "tenant-a", inbound("m1", "oi"))
	nodeID, ok := eng.States().Get("tenant-a", "5511999990000")
	require.True(t, ok)
	assert.Equal(t, "welcome", nodeID)
}

func TestEngineSeparateSendersSeparateState(t *testing.T) {
	eng, sender, _ := newTestEngine(t, supportFlow())
	ctx := context.Background()

	eng.HandleInbound(ctx, "tenant-a", transport.InboundMessage{ID: "a1", Sender: "111", Text: "oi"})
	eng.HandleInbound(ctx, "tenant-a", transport.InboundMessage{ID: "b1", Sender: "222", Text: "oi"})
	assert.Equal(t, 2, eng.States().Len())

	// Advancing one sender leaves the other untouched.
	eng.HandleInbound(ctx, "tenant-a", transport.InboundMessage{ID: "a2", Sender: "111", Text: "vendas"})
	require.Len(t, sender.sends, 3)
	assert.Equal(t, "Our sales hours are 9-18.", sender.sends[2].msg.Text)

	nodeID, ok := eng.States().Get("tenant-a", "222")
	require.True(t, ok)
	assert.Equal(t, "welcome", nodeID)
}
