package automation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestDefaultRulesMatchHelpWords(t *testing.T) {
	e := NewEngine(zap.NewNop())

	for _, body := range []string{"help", "  HELP ", "Menu", "עזרה", "תפריט"} {
		rule, ok := e.Match("text", body)
		assert.True(t, ok, body)
		assert.Equal(t, ActionSendIntro, rule.Action)
	}

	for _, body := range []string{"", "helpful", "I need help finding milk"} {
		_, ok := e.Match("text", body)
		assert.False(t, ok, body)
	}

	_, ok := e.Match("interactive", "help")
	assert.False(t, ok, "only text messages trigger keywords")
}

func TestMatchKeywordOperators(t *testing.T) {
	e := NewEngine(zap.NewNop())

	assert.True(t, e.matchKeyword("Find a deal near me", "contains", "deal"))
	assert.True(t, e.matchKeyword("find milk", "starts_with", "FIND"))
	assert.True(t, e.matchKeyword("price 12.90", "regex", `\d+\.\d+`))
	assert.False(t, e.matchKeyword("anything", "regex", `(`))
	assert.False(t, e.matchKeyword("anything", "fuzzy", "any"))
}

func TestCustomRulesAreEvaluatedInOrder(t *testing.T) {
	e := NewEngine(zap.NewNop(),
		Rule{Name: "first", Conditions: []Condition{{Type: "keyword", Operator: "contains", Value: "deal"}}, Action: "a"},
		Rule{Name: "second", Conditions: []Condition{{Type: "keyword", Operator: "equals", Value: "deal"}}, Action: "b"},
		Rule{Name: "empty", Action: "c"},
	)

	rule, ok := e.Match("text", "deal")
	assert.True(t, ok)
	assert.Equal(t, "first", rule.Name)

	_, ok = e.Match("text", "nothing")
	assert.False(t, ok)
}

func TestNilEngineNeverMatches(t *testing.T) {
	var e *Engine
	_, ok := e.Match("text", "help")
	assert.False(t, ok)
}
