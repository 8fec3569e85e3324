package rules

import (
	"errors"
	"fmt"
	"time"

	"github.com/dlclark/regexp2"
)

// matchTimeout bounds a single pattern match. Rule patterns come from
// user-written modules and may backtrack badly on large class bodies.
const matchTimeout = 2 * time.Second

// Sentinel errors for rule construction.
var (
	ErrBadRule       = errors.New("bad rule")
	ErrUnknownAction = errors.New("unknown action")
)

// Rule is one compiled entry of a stage: a pattern per field and a handler.
type Rule struct {
	Stage Stage
	// Index is the position of the rule within its module's stage list.
	Index int
	// Action names the handler, "function_discard".
	Action string
	Args   []string
	// Module is the rule module the rule was loaded from.
	Module   string
	Patterns []string
	Handler  Handler

	// fields maps each pattern to the field it matches.
	fields   []int
	matchers []*regexp2.Regexp
}

// NewRule compiles patterns for stage. Each pattern must match its whole
// field; "(?! const)" therefore matches only the empty string.
func NewRule(stage Stage, index int, action string, patterns []string, handler Handler) (*Rule, error) {
	if !stage.IsMatch() {
		return nil, fmt.Errorf("%w: stage %s does not take patterns", ErrBadRule, stage)
	}

	lo, hi := stage.patternRange()
	if len(patterns) < lo || len(patterns) > hi {
		return nil, fmt.Errorf("%w: %s rule %d has %d patterns, want %d..%d for %v",
			ErrBadRule, stage, index, len(patterns), lo, hi, stage.Fields())
	}

	if handler == nil {
		return nil, fmt.Errorf("%w: %s rule %d has no handler", ErrBadRule, stage, index)
	}

	r := &Rule{
		Stage:    stage,
		Index:    index,
		Action:   action,
		Patterns: patterns,
		Handler:  handler,
		fields:   make([]int, len(patterns)),
		matchers: make([]*regexp2.Regexp, len(patterns)),
	}

	for i, pat := range patterns {
		r.fields[i] = i

		// A lone sixth function pattern matches the suffix.
		if stage == StageFunction && len(patterns) == hi-1 && i == hi-2 {
			r.fields[i] = hi - 1
		}

		re, err := CompilePattern(pat)
		if err != nil {
			return nil, fmt.Errorf("%w: %s rule %d field %s: %w", ErrBadRule, stage, index, stage.Fields()[r.fields[i]], err)
		}

		r.matchers[i] = re
	}

	return r, nil
}

// CompilePattern compiles a rule pattern anchored to the whole input.
func CompilePattern(pat string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(`\A(?:`+pat+`)\z`, regexp2.Singleline)
	if err != nil {
		return nil, err
	}

	re.MatchTimeout = matchTimeout

	return re, nil
}

// SearchPattern compiles pat unanchored: it matches when it is found
// anywhere in the input. Header selectors and omitters use it, so "KFoo/"
// selects every header of that directory.
func SearchPattern(pat string) (*regexp2.Regexp, error) {
	re, err := regexp2.Compile(pat, regexp2.None)
	if err != nil {
		return nil, err
	}

	re.MatchTimeout = matchTimeout

	return re, nil
}

// String is the identity used in traces: "[index,action]".
func (r *Rule) String() string {
	return fmt.Sprintf("[%d,%s]", r.Index, r.Action)
}

// Match reports whether every pattern matches its field. A match that
// times out counts as a miss and is returned as an error.
func (r *Rule) Match(fields []string) (bool, error) {
	for i, re := range r.matchers {
		field := ""
		if idx := r.fields[i]; idx < len(fields) {
			field = fields[idx]
		}

		ok, err := re.MatchString(field)
		if err != nil {
			return false, fmt.Errorf("rule %s pattern %q: %w", r, r.Patterns[i], err)
		}

		if !ok {
			return false, nil
		}
	}

	return true, nil
}
