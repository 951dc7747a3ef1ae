// Package engine runs the conversation automation over flow graphs.
//
// # Overview
//
// The engine consumes inbound messages from ready sessions and walks the
// active flow graph one step per message. Every sender is either anchored at
// a node or has no conversation state at all.
//
// # Message Handling
//
// For each inbound message the engine:
//
//  1. Drops transport redeliveries via the dedupe cache
//  2. Loads the first active flow from the registry snapshot
//  3. Anchors a stateless sender at the flow's entry node, or
//  4. Advances a stateful sender along the first matching connection
//
// Connection conditions are ordered keyword lists; a connection matches when
// any keyword occurs in the lowercased inbound text. Declaration order is
// the tie-break when several connections match.
//
// # Replies
//
// Arriving at a node sends that node's display text plus the labels of its
// button-flagged outgoing connections as the selectable option set. Input
// matching no connection re-offers the current options with a fallback text
// and leaves the conversation where it is.
//
// # Terminal Nodes and Forwards
//
// A node with no outgoing connections ends the conversation: the state is
// destroyed after the reply, so the sender's next message starts over at the
// entry node. Forward-type nodes additionally notify the ForwardNotifier so
// the exchange can be routed to a human department.
//
// # Failure Model
//
// A failed outbound send is logged and swallowed. An inbound message never
// errors out of the engine; the conversation state is always left in a
// well-defined position.
package engine
