// Package classification maps normalized messages to job-search labels.
//
// Two stages:
//
//	Stage 1: Rule engine  - declarative pattern table, no I/O, confidence 0.95
//	Stage 2: LLM fallback - only when no rule matched, with few-shot corrections
package classification

import (
	"fmt"
	"regexp"
	"strings"

	"jobtrack_worker/core/domain"
)

// Field names a message attribute a rule tests.
type Field string

const (
	FieldFrom       Field = "from"
	FieldSubject    Field = "subject"
	FieldSenderName Field = "senderName"
	FieldTextBody   Field = "textBody"
)

// Direction restricts a rule to inbound or outbound mail.
type Direction string

const (
	DirectionAny      Direction = ""
	DirectionInbound  Direction = "inbound"
	DirectionOutbound Direction = "outbound"
)

// Condition is a side predicate over the whole message.
type Condition struct {
	Field   Field  `yaml:"field"`
	Pattern string `yaml:"pattern"`
	Negate  bool   `yaml:"negate"`
}

// RuleSpec is one row of the rule table. Pattern is matched against the
// lower-cased value of Field.
type RuleSpec struct {
	ID         string           `yaml:"id"`
	Label      domain.EmailType `yaml:"label"`
	Field      Field            `yaml:"field"`
	Pattern    string           `yaml:"pattern"`
	Conditions []Condition      `yaml:"conditions"`
	Direction  Direction        `yaml:"direction"`
}

// RuleSet is an ordered rule table plus the label evaluation order.
type RuleSet struct {
	Priority []domain.EmailType `yaml:"priority"`
	Rules    []RuleSpec         `yaml:"rules"`
}

// DefaultPriority checks "not job related" first so job heuristics never see it.
var DefaultPriority = []domain.EmailType{
	domain.TypeOther,
	domain.TypeInterview,
	domain.TypeRejection,
	domain.TypeJobResponse,
	domain.TypeFollowUp,
}

type compiledCondition struct {
	field  Field
	re     *regexp.Regexp
	negate bool
}

type compiledRule struct {
	id         string
	label      domain.EmailType
	field      Field
	re         *regexp.Regexp
	conditions []compiledCondition
	direction  Direction
}

// RuleEngine evaluates a compiled RuleSet. It is immutable and safe for concurrent use.
type RuleEngine struct {
	order   []domain.EmailType
	byLabel map[domain.EmailType][]compiledRule
	size    int
}

// MatchResult names the rule that fired.
type MatchResult struct {
	RuleID string
	Label  domain.EmailType
}

// NewRuleEngine compiles set. Labels with rules but missing from Priority are
// evaluated after the listed ones, in declaration order.
func NewRuleEngine(set RuleSet) (*RuleEngine, error) {
	e := &RuleEngine{byLabel: make(map[domain.EmailType][]compiledRule)}

	seen := make(map[domain.EmailType]bool)
	priority := set.Priority
	if len(priority) == 0 {
		priority = DefaultPriority
	}
	for _, label := range priority {
		if !label.Valid() {
			return nil, fmt.Errorf("priority: unknown label %q", label)
		}
		if !seen[label] {
			seen[label] = true
			e.order = append(e.order, label)
		}
	}

	for i, spec := range set.Rules {
		rule, err := compile(spec)
		if err != nil {
			return nil, fmt.Errorf("rule %d (%s): %w", i, spec.ID, err)
		}
		e.byLabel[rule.label] = append(e.byLabel[rule.label], rule)
		if !seen[rule.label] {
			seen[rule.label] = true
			e.order = append(e.order, rule.label)
		}
		e.size++
	}
	return e, nil
}

// MustRuleEngine panics on an invalid set. Used for the built-in table.
func MustRuleEngine(set RuleSet) *RuleEngine {
	e, err := NewRuleEngine(set)
	if err != nil {
		panic(err)
	}
	return e
}

func compile(spec RuleSpec) (compiledRule, error) {
	if spec.ID == "" {
		return compiledRule{}, fmt.Errorf("missing id")
	}
	if !spec.Label.Valid() {
		return compiledRule{}, fmt.Errorf("unknown label %q", spec.Label)
	}
	if !validField(spec.Field) {
		return compiledRule{}, fmt.Errorf("unknown field %q", spec.Field)
	}
	switch spec.Direction {
	case DirectionAny, DirectionInbound, DirectionOutbound:
	default:
		return compiledRule{}, fmt.Errorf("unknown direction %q", spec.Direction)
	}
	re, err := regexp.Compile(spec.Pattern)
	if err != nil {
		return compiledRule{}, fmt.Errorf("pattern: %w", err)
	}
	rule := compiledRule{
		id:        spec.ID,
		label:     spec.Label,
		field:     spec.Field,
		re:        re,
		direction: spec.Direction,
	}
	for _, c := range spec.Conditions {
		if !validField(c.Field) {
			return compiledRule{}, fmt.Errorf("condition: unknown field %q", c.Field)
		}
		cre, err := regexp.Compile(c.Pattern)
		if err != nil {
			return compiledRule{}, fmt.Errorf("condition pattern: %w", err)
		}
		rule.conditions = append(rule.conditions, compiledCondition{field: c.Field, re: cre, negate: c.Negate})
	}
	return rule, nil
}

func validField(f Field) bool {
	switch f {
	case FieldFrom, FieldSubject, FieldSenderName, FieldTextBody:
		return true
	}
	return false
}

// Len returns the number of compiled rules.
func (e *RuleEngine) Len() int { return e.size }

// Order returns the label evaluation order.
func (e *RuleEngine) Order() []domain.EmailType {
	return append([]domain.EmailType(nil), e.order...)
}

// Match returns the first rule that fires, walking labels in priority order and
// rules in declared order.
func (e *RuleEngine) Match(msg *domain.NormalizedMessage) (MatchResult, bool) {
	if msg == nil {
		return MatchResult{}, false
	}
	fields := lowered(msg)
	for _, label := range e.order {
		for _, rule := range e.byLabel[label] {
			if rule.matches(msg, fields) {
				return MatchResult{RuleID: rule.id, Label: rule.label}, true
			}
		}
	}
	return MatchResult{}, false
}

// Classify returns a rule-sourced result, or false when no rule matched.
func (e *RuleEngine) Classify(msg *domain.NormalizedMessage) (*domain.ClassificationResult, bool) {
	m, ok := e.Match(msg)
	if !ok {
		return nil, false
	}
	return &domain.ClassificationResult{
		Type:       m.Label,
		Confidence: domain.RuleConfidence,
		Source:     domain.SourceRule,
		Reason:     m.RuleID,
	}, true
}

func (r compiledRule) matches(msg *domain.NormalizedMessage, fields map[Field]string) bool {
	switch r.direction {
	case DirectionInbound:
		if msg.IsOutbound {
			return false
		}
	case DirectionOutbound:
		if !msg.IsOutbound {
			return false
		}
	}
	if !r.re.MatchString(fields[r.field]) {
		return false
	}
	for _, c := range r.conditions {
		if c.re.MatchString(fields[c.field]) == c.negate {
			return false
		}
	}
	return true
}

func lowered(msg *domain.NormalizedMessage) map[Field]string {
	return map[Field]string{
		FieldFrom:       strings.ToLower(msg.From),
		FieldSubject:    strings.ToLower(msg.Subject),
		FieldSenderName: strings.ToLower(msg.FromName),
		FieldTextBody:   strings.ToLower(msg.TextBody),
	}
}
