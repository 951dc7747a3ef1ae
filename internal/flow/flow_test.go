// ABOUTME: Tests for flow graph types and connection condition matching.
// ABOUTME: Covers keyword substring semantics, option labels, and graph lookups.

package flow

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConnectionMatches(t *testing.T) {
	tests := []struct {
		name     string
		keywords []string
		text     string
		want     bool
	}{
		{"empty keywords match anything", nil, "whatever", true},
		{"empty keywords match empty text", nil, "", true},
		{"exact keyword", []string{"suporte"}, "suporte", true},
		{"case-insensitive", []string{"suporte"}, "SUPORTE", true},
		{"substring of longer text", []string{"sim"}, "Sim claro, pode ser", true},
		{"keyword with padding is trimmed", []string{" sim "}, "sim", true},
		{"no occurrence", []string{"vendas"}, "quero suporte", false},
		{"second keyword matches", []string{"vendas", "comprar"}, "quero comprar", true},
		{"blank keyword is skipped", []string{"  ", "ok"}, "ok", true},
		{"only blank keywords never match", []string{"  "}, "anything", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Connection{ConditionKeywords: tt.keywords}
			assert.Equal(t, tt.want, c.Matches(tt.text))
		})
	}
}

func TestConnectionOptionLabel(t *testing.T) {
	assert.Equal(t, "Suporte", Connection{ConditionKeywords: []string{"Suporte", "ajuda"}}.OptionLabel())
	assert.Equal(t, "sim", Connection{ConditionKeywords: []string{"  sim  "}}.OptionLabel())
	assert.Empty(t, Connection{}.OptionLabel())
}

func testFlow() Flow {
	return Flow{
		ID:       "f1",
		IsActive: true,
		Nodes: []Node{
			{ID: "welcome", DisplayText: "Welcome!", Type: NodeTypeText},
			{ID: "support", DisplayText: "Connecting you.", Type: NodeTypeForward},
		},
		Connections: []Connection{
			{FromNodeID: "welcome", ToNodeID: "support", ConditionKeywords: []string{"suporte"}, IsButtonOption: true},
			{FromNodeID: "welcome", ToNodeID: "welcome", ConditionKeywords: []string{"menu"}},
		},
	}
}

func TestFlowEntryNode(t *testing.T) {
	f := testFlow()
	entry, ok := f.EntryNode()
	require.True(t, ok)
	assert.Equal(t, "welcome", entry.ID)

	empty := Flow{}
	_, ok = empty.EntryNode()
	assert.False(t, ok)
}

func TestFlowNodeByID(t *testing.T) {
	f := testFlow()

	n, ok := f.NodeByID("support")
	require.True(t, ok)
	assert.Equal(t, "Connecting you.", n.DisplayText)

	_, ok = f.NodeByID("missing")
	assert.False(t, ok)
}

func TestFlowConnectionsFrom_DeclarationOrder(t *testing.T) {
	f := testFlow()

	conns := f.ConnectionsFrom("welcome")
	require.Len(t, conns, 2)
	assert.Equal(t, "support", conns[0].ToNodeID)
	assert.Equal(t, "welcome", conns[1].ToNodeID)

	assert.Empty(t, f.ConnectionsFrom("support"))
}
