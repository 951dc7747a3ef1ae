// ABOUTME: Flow graph data types: flows, nodes, and conditioned connections.
// ABOUTME: Mirrors the JSON payload served by the flow authoring service.

package flow

import "strings"

// Node types. A forward node routes the conversation to a human department
// as a side effect; it behaves like a text node otherwise.
const (
	NodeTypeText    = "text"
	NodeTypeForward = "forward"
)

// Node is one point in a flow graph.
type Node struct {
	ID          string `json:"id"`
	DisplayText string `json:"displayText"`
	Type        string `json:"type"`
}

// Connection is a directed edge between two nodes. ConditionKeywords is an
// ordered list of keywords; an empty list matches unconditionally. When
// IsButtonOption is set the connection renders as a selectable option on
// its source node.
type Connection struct {
	FromNodeID        string   `json:"fromNodeId"`
	ToNodeID          string   `json:"toNodeId"`
	ConditionKeywords []string `json:"conditionKeywords"`
	IsButtonOption    bool     `json:"isButtonOption"`
}

// Matches reports whether the inbound text satisfies this connection's
// condition. Matching is case-insensitive and substring-based: the
// connection matches if any of its trimmed keywords occurs in the text.
func (c Connection) Matches(text string) bool {
	if len(c.ConditionKeywords) == 0 {
		return true
	}
	lower := strings.ToLower(text)
	for _, kw := range c.ConditionKeywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// OptionLabel is the selectable label a button connection renders: the first
// keyword token of its condition.
func (c Connection) OptionLabel() string {
	if len(c.ConditionKeywords) == 0 {
		return ""
	}
	return strings.TrimSpace(c.ConditionKeywords[0])
}

// Flow is a directed graph of conversation nodes.
type Flow struct {
	ID          string       `json:"id"`
	IsActive    bool         `json:"isActive"`
	Nodes       []Node       `json:"nodes"`
	Connections []Connection `json:"connections"`
}

// EntryNode returns the flow's first node, where new conversations anchor.
func (f *Flow) EntryNode() (Node, bool) {
	if len(f.Nodes) == 0 {
		return Node{}, false
	}
	return f.Nodes[0], true
}

// NodeByID resolves a node id. A dangling reference resolves to false and
// degrades to end-of-flow at the engine rather than crashing.
func (f *Flow) NodeByID(id string) (Node, bool) {
	for _, n := range f.Nodes {
		if n.ID == id {
			return n, true
		}
	}
	return Node{}, false
}

// ConnectionsFrom returns the connections leaving a node, in declaration
// order. Declaration order is the tie-break when several conditions match.
func (f *Flow) ConnectionsFrom(nodeID string) []Connection {
	var out []Connection
	for _, c := range f.Connections {
		if c.FromNodeID == nodeID {
			out = append(out, c)
		}
	}
	return out
}
