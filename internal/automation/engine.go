package automation

import (
	"regexp"
	"strings"

	"go.uber.org/zap"
)

// Actions a rule can ask for.
const (
	ActionSendIntro = "send_intro"
)

// Condition represents a rule condition
type Condition struct {
	Type     string `json:"type"`     // keyword, message_type
	Operator string `json:"operator"` // equals, contains, starts_with, regex
	Value    string `json:"value"`
}

// Rule fires its Action when every condition holds.
type Rule struct {
	Name       string      `json:"name"`
	Conditions []Condition `json:"conditions"`
	Action     string      `json:"action"`
}

// DefaultRules resend the intro when a returning user asks for help or the
// menu, in either supported language.
func DefaultRules() []Rule {
	var rules []Rule
	for _, kw := range []string{"help", "menu", "עזרה", "תפריט"} {
		rules = append(rules, Rule{
			Name: "intro:" + kw,
			Conditions: []Condition{
				{Type: "message_type", Operator: "equals", Value: "text"},
				{Type: "keyword", Operator: "equals", Value: kw},
			},
			Action: ActionSendIntro,
		})
	}
	return rules
}

type Engine struct {
	rules []Rule
	log   *zap.Logger
}

// NewEngine evaluates rules in order; with none given it uses DefaultRules.
func NewEngine(log *zap.Logger, rules ...Rule) *Engine {
	if len(rules) == 0 {
		rules = DefaultRules()
	}
	return &Engine{rules: rules, log: log}
}

// Match returns the first rule whose conditions all hold for a message.
func (e *Engine) Match(msgType, body string) (Rule, bool) {
	if e == nil {
		return Rule{}, false
	}
	for _, rule := range e.rules {
		if e.evaluateConditions(rule.Conditions, msgType, body) {
			return rule, true
		}
	}
	return Rule{}, false
}

// evaluateConditions checks if all conditions are met
func (e *Engine) evaluateConditions(conditions []Condition, msgType, body string) bool {
	if len(conditions) == 0 {
		return false
	}
	for _, cond := range conditions {
		if !e.evaluateSingleCondition(cond, msgType, body) {
			return false
		}
	}
	return true
}

func (e *Engine) evaluateSingleCondition(cond Condition, msgType, body string) bool {
	switch cond.Type {
	case "keyword":
		return e.matchKeyword(body, cond.Operator, cond.Value)
	case "message_type":
		return msgType == cond.Value
	default:
		e.log.Warn("unknown condition type", zap.String("type", cond.Type))
		return false
	}
}

// matchKeyword checks if message matches keyword condition
func (e *Engine) matchKeyword(message, operator, value string) bool {
	message = strings.ToLower(strings.TrimSpace(message))
	value = strings.ToLower(value)

	switch operator {
	case "equals":
		return message == value
	case "contains":
		return strings.Contains(message, value)
	case "starts_with":
		return strings.HasPrefix(message, value)
	case "regex":
		matched, err := regexp.MatchString(value, message)
		if err != nil {
			e.log.Warn("bad keyword regex", zap.String("pattern", value), zap.Error(err))
			return false
		}
		return matched
	default:
		return false
	}
}
