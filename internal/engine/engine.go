// ABOUTME: Conversation engine walking the active flow graph per inbound message.
// ABOUTME: Selects the next node, builds replies and option sets, and sends them.

package engine

import (
	"context"
	"log/slog"

	"github.com/google/uuid"

	"github.com/conversia/flow-gateway/internal/dedupe"
	"github.com/conversia/flow-gateway/internal/flow"
	"github.com/conversia/flow-gateway/internal/transport"
)

// Default reply texts; overridable per deployment via Params.
const (
	defaultNotUnderstoodReply = "Desculpe, não entendi. Escolha uma das opções abaixo."
	defaultEndOfFlowReply     = "Atendimento encerrado. Obrigado pelo contato!"
)

// Sender delivers outbound messages for a tenant. Implemented by the
// session supervisor.
type Sender interface {
	Send(ctx context.Context, tenantID, recipient string, msg transport.OutboundMessage) error
}

// Flows yields the current active flow snapshot. Implemented by the flow
// registry.
type Flows interface {
	ActiveFlows() []flow.Flow
}

// ForwardNotifier is told when a conversation reaches a forward-type node
// so the exchange can be routed to a human department.
type ForwardNotifier interface {
	Forward(ctx context.Context, tenantID, senderID string, node flow.Node)
}

// LogForwardNotifier is the default ForwardNotifier: it records the routing
// request in the log and nothing else.
type LogForwardNotifier struct {
	Logger *slog.Logger
}

// Forward implements ForwardNotifier. Each routing request gets a ticket ID
// so downstream log aggregation can correlate the handoff.
func (n *LogForwardNotifier) Forward(ctx context.Context, tenantID, senderID string, node flow.Node) {
	logger := n.Logger
	if logger == nil {
		logger = slog.Default()
	}
	logger.Info("conversation forwarded to department",
		"ticket_id", uuid.NewString(),
		"tenant_id", tenantID,
		"sender", senderID,
		"node_id", node.ID,
	)
}

// Engine is the per-sender conversation state machine. One Engine serves all
// tenants; state is keyed by (tenant, sender).
type Engine struct {
	flows    Flows
	sender   Sender
	states   *States
	seen     *dedupe.Cache
	notifier ForwardNotifier
	logger   *slog.Logger

	notUnderstoodReply string
	endOfFlowReply     string
}

// Params configures an Engine.
type Params struct {
	Flows    Flows
	Sender   Sender
	Dedupe   *dedupe.Cache
	Notifier ForwardNotifier
	Logger   *slog.Logger

	// Optional reply-text overrides.
	NotUnderstoodReply string
	EndOfFlowReply     string
}

// New creates an Engine.
func New(p Params) *Engine {
	if p.Logger == nil {
		p.Logger = slog.Default()
	}
	if p.Notifier == nil {
		p.Notifier = &LogForwardNotifier{Logger: p.Logger}
	}
	if p.NotUnderstoodReply == "" {
		p.NotUnderstoodReply = defaultNotUnderstoodReply
	}
	if p.EndOfFlowReply == "" {
		p.EndOfFlowReply = defaultEndOfFlowReply
	}
	return &Engine{
		flows:              p.Flows,
		sender:             p.Sender,
		states:             NewStates(),
		seen:               p.Dedupe,
		notifier:           p.Notifier,
		logger:             p.Logger,
		notUnderstoodReply: p.NotUnderstoodReply,
		endOfFlowReply:     p.EndOfFlowReply,
	}
}

// States exposes the conversation state store, mainly for tests.
func (e *Engine) States() *States {
	return e.states
}

// HandleInbound runs one step of the conversation for an inbound message.
// All failures are logged and swallowed: an inbound message must never
// crash the handling path.
func (e *Engine) HandleInbound(ctx context.Context, tenantID string, msg transport.InboundMessage) {
	if e.seen != nil && msg.ID != "" {
		if e.seen.Seen(dedupe.MessageKey(tenantID, msg.Sender, msg.ID)) {
			e.logger.Debug("duplicate inbound message ignored",
				"tenant_id", tenantID,
				"message_id", msg.ID,
			)
			return
		}
	}

	active := e.flows.ActiveFlows()
	if len(active) == 0 {
		e.logger.Debug("no active flow, message ignored", "tenant_id", tenantID)
		return
	}
	// Only the first flow is evaluated. Per-tenant flow routing is an open
	// design question upstream; until the authoring service defines it, the
	// first active flow is authoritative.
	f := active[0]

	currentID, hasState := e.states.Get(tenantID, msg.Sender)
	if hasState {
		if _, ok := f.NodeByID(currentID); !ok {
			// The flow snapshot was replaced and the stored node is gone.
			// Restart the conversation rather than stranding the sender.
			e.states.Clear(tenantID, msg.Sender)
			hasState = false
		}
	}

	if !hasState {
		e.anchor(ctx, tenantID, msg.Sender, &f)
		return
	}

	e.advance(ctx, tenantID, msg.Sender, &f, currentID, msg.Text)
}

// anchor places a sender with no conversation state at the flow's entry
// node and replies with that node's text.
func (e *Engine) anchor(ctx context.Context, tenantID, senderID string, f *flow.Flow) {
	entry, ok := f.EntryNode()
	if !ok {
		e.logger.Warn("active flow has no nodes", "tenant_id", tenantID, "flow_id", f.ID)
		return
	}

	e.arriveAt(ctx, tenantID, senderID, f, entry, false)
}

// advance evaluates the connections leaving the sender's current node
// against the inbound text, in declaration order, first match wins.
func (e *Engine) advance(ctx context.Context, tenantID, senderID string, f *flow.Flow, currentID, text string) {
	conns := f.ConnectionsFrom(currentID)

	var matched *flow.Connection
	for i := range conns {
		if conns[i].Matches(text) {
			matched = &conns[i]
			break
		}
	}

	if matched == nil {
		// Unrecognized input: re-offer the current node's options, leave
		// the conversation where it is.
		e.send(ctx, tenantID, senderID, transport.OutboundMessage{
			Text:    e.notUnderstoodReply,
			Options: optionLabels(f, currentID),
		})
		return
	}

	target, ok := f.NodeByID(matched.ToNodeID)
	if !ok {
		// Dangling reference degrades to end-of-flow.
		e.logger.Warn("connection target missing, ending conversation",
			"tenant_id", tenantID,
			"flow_id", f.ID,
			"from", currentID,
			"to", matched.ToNodeID,
		)
		e.states.Clear(tenantID, senderID)
		e.send(ctx, tenantID, senderID, transport.OutboundMessage{Text: e.endOfFlowReply})
		return
	}

	e.arriveAt(ctx, tenantID, senderID, f, target, true)
}

// arriveAt places the sender at a node and emits the node's reply. A node
// with no outgoing connections is terminal: the reply is sent and the
// conversation state destroyed so the next message starts fresh. Forward
// nodes reached by advancing additionally notify the department router.
func (e *Engine) arriveAt(ctx context.Context, tenantID, senderID string, f *flow.Flow, node flow.Node, advanced bool) {
	if advanced && node.Type == flow.NodeTypeForward {
		e.notifier.Forward(ctx, tenantID, senderID, node)
	}

	terminal := len(f.ConnectionsFrom(node.ID)) == 0
	if terminal {
		e.states.Clear(tenantID, senderID)
	} else {
		e.states.Set(tenantID, senderID, node.ID)
	}

	e.send(ctx, tenantID, senderID, transport.OutboundMessage{
		Text:    node.DisplayText,
		Options: optionLabels(f, node.ID),
	})
}

// send delivers a reply, logging failures instead of propagating them.
func (e *Engine) send(ctx context.Context, tenantID, recipient string, msg transport.OutboundMessage) {
	if err := e.sender.Send(ctx, tenantID, recipient, msg); err != nil {
		e.logger.Error("sending reply failed",
			"tenant_id", tenantID,
			"recipient", recipient,
			"error", err,
		)
	}
}

// optionLabels renders the selectable option set for a node: the labels of
// its button-flagged outgoing connections, in declaration order.
func optionLabels(f *flow.Flow, nodeID string) []string {
	var labels []string
	for _, c := range f.ConnectionsFrom(nodeID) {
		if !c.IsButtonOption {
			continue
		}
		if label := c.OptionLabel(); label != "" {
			labels = append(labels, label)
		}
	}
	return labels
}
