package rules

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/Sumatoshi-tech/sipgen/pkg/cxxast"
	"github.com/Sumatoshi-tech/sipgen/pkg/sip"
)

// SilentNoop is returned by a handler that declines a match. The database
// then tries the next rule as though this one had not matched.
var SilentNoop = errors.New("rule declined match") //nolint:errname,revive,staticcheck // mirrors filepath.SkipDir.

// Handler mutates the rendering record of a matched construct.
type Handler func(ctx *Context, rec *sip.Record) error

// Context describes the construct a handler is applied to.
type Context struct {
	Stage Stage
	// Container is the enclosing container, or the translation unit at the
	// top level.
	Container cxxast.Cursor
	// Item is the construct itself. It is nil for module code.
	Item cxxast.Cursor
	// Function owns the parameter for parameter rules.
	Function *cxxast.Function
	// Filename is the include filename of the header, "KCodecs/kcodecs.h".
	Filename string
	// Rule is the identity of the matched rule, "[3,function_discard]".
	Rule string
	// Hits collects rule usage. It may be nil.
	Hits   *Hits
	Logger *slog.Logger
}

// Describe renders the item for trace comments.
func (c *Context) Describe() string {
	if c.Item == nil {
		return c.Filename
	}

	return cxxast.Describe(c.Item)
}

// Parents is the scope of the item: "KCodecs::Codec", or the file basename
// at the top level.
func (c *Context) Parents() string {
	return cxxast.Parents(c.Container)
}

func (c *Context) logger() *slog.Logger {
	if c.Logger == nil {
		return slog.Default()
	}

	return c.Logger
}

// HandlerError wraps a failure raised by a rule handler with the rule
// identity and the construct it was applied to.
type HandlerError struct {
	Rule string
	Item string
	Err  error
}

// Error implements error.
func (e *HandlerError) Error() string {
	return fmt.Sprintf("rule %s on %s: %v", e.Rule, e.Item, e.Err)
}

// Unwrap returns the handler's error.
func (e *HandlerError) Unwrap() error {
	return e.Err
}

// Hits counts matches per rule and per code entry. The zero value is not
// usable: call NewHits.
type Hits struct {
	rules map[*Rule]int
	code  map[*CodeEntry]int
}

// NewHits returns empty counters.
func NewHits() *Hits {
	return &Hits{rules: map[*Rule]int{}, code: map[*CodeEntry]int{}}
}

func (h *Hits) rule(r *Rule) {
	if h != nil {
		h.rules[r]++
	}
}

func (h *Hits) entry(e *CodeEntry) {
	if h != nil {
		h.code[e]++
	}
}

// Rule returns the matches of r.
func (h *Hits) Rule(r *Rule) int {
	if h == nil {
		return 0
	}

	return h.rules[r]
}

// Entry returns the uses of e.
func (h *Hits) Entry(e *CodeEntry) int {
	if h == nil {
		return 0
	}

	return h.code[e]
}

// Add sums other into h.
func (h *Hits) Add(other *Hits) {
	if other == nil {
		return
	}

	for r, n := range other.rules {
		h.rules[r] += n
	}

	for e, n := range other.code {
		h.code[e] += n
	}
}

// Total is the number of matches recorded.
func (h *Hits) Total() int {
	if h == nil {
		return 0
	}

	n := 0
	for _, v := range h.rules {
		n += v
	}

	for _, v := range h.code {
		n += v
	}

	return n
}
