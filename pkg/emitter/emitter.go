// Package emitter renders the declarations of a parsed C++ header as a SIP
// file, consulting a rule database for every construct it emits.
package emitter

import (
	"context"
	"log/slog"
	"path"
	"strings"

	"github.com/Sumatoshi-tech/sipgen/pkg/cxxast"
	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
	"github.com/Sumatoshi-tech/sipgen/pkg/sip"
)

// Options tune what the emitter writes besides declarations.
type Options struct {
	// TraceDiscards writes a "// Discarded ..." comment where a rule
	// suppressed a construct. Otherwise a discard emits nothing.
	TraceDiscards bool
	// DumpItems writes a "// Processing ..." comment before every member.
	DumpItems bool
	Logger    *slog.Logger
}

// Emitter renders headers with one rule database. It holds no per-file
// state and may be shared by goroutines.
type Emitter struct {
	db     *rules.Db
	opts   Options
	logger *slog.Logger
}

// New returns an emitter applying db.
func New(db *rules.Db, opts Options) *Emitter {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	if db == nil {
		db = rules.NewDb()
	}

	return &Emitter{db: db, opts: opts, logger: logger}
}

// Result is the rendering of one header.
type Result struct {
	// Body is the SIP text, empty when the header declares nothing usable.
	Body string
	// ModuleCode holds the code the header contributes at module scope,
	// keyed by type.
	ModuleCode *sip.CodeMap
	// Includes are the #include directives of the header.
	Includes []cxxast.Include
	// Hits counts the rules and code entries used.
	Hits *rules.Hits
}

// scope collects what a subtree contributes beyond its text. A discarded
// container drops the scope of its body.
type scope struct {
	hits       *rules.Hits
	moduleCode *sip.CodeMap
}

func newScope() *scope {
	return &scope{hits: rules.NewHits(), moduleCode: sip.NewCodeMap()}
}

func (s *scope) absorb(inner *scope) {
	s.hits.Add(inner.hits)
	s.moduleCode.Update(inner.moduleCode)
}

// renderer is the state of one Emit call.
type renderer struct {
	*Emitter

	// filename is the include name of the header, "KCodecs/kcodecs.h".
	filename string
}

// Emit renders tu. includeFilename is how users include the header and is
// what the %TypeHeaderCode blocks include. A failing rule handler aborts
// the header.
func (e *Emitter) Emit(ctx context.Context, tu *cxxast.TranslationUnit, includeFilename string) (*Result, error) {
	r := &renderer{Emitter: e, filename: includeFilename}
	sc := newScope()

	members, err := r.members(ctx, sc, tu, 0)
	if err != nil {
		return nil, err
	}

	body, err := r.module(sc, tu, members.body.String())
	if err != nil {
		return nil, err
	}

	return &Result{Body: body, ModuleCode: sc.moduleCode, Includes: tu.Includes(), Hits: sc.hits}, nil
}

// module wraps the file body and applies the modulecode entry of the
// header.
func (r *renderer) module(sc *scope, tu *cxxast.TranslationUnit, body string) (string, error) {
	if body == "" {
		return "", nil
	}

	rec := sip.NewRecord(path.Base(r.filename))
	rec.Decl = body

	ctx := r.context(sc, rules.StageModuleCode, tu, nil)

	entry, err := r.db.ApplyModuleCode(ctx, rec, r.filename)
	if err != nil {
		return "", err
	}

	if rec.Discarded() {
		return r.discarded("", path.Base(r.filename), entryID(entry)), nil
	}

	out := "\n%ModuleHeaderCode\n#include <" + r.filename + ">\n%End\n" +
		modified("", r.filename, entryID(entry))

	sc.moduleCode.Update(rec.ModuleCode)

	return out + rec.Decl + rec.Code, nil
}

func (r *renderer) context(sc *scope, stage rules.Stage, container, item cxxast.Cursor) *rules.Context {
	return &rules.Context{
		Stage:     stage,
		Container: container,
		Item:      item,
		Filename:  r.filename,
		Hits:      sc.hits,
		Logger:    r.logger,
	}
}

// discarded is the trace left by a discard, or nothing.
func (r *renderer) discarded(pad, item, rule string) string {
	if !r.opts.TraceDiscards {
		return ""
	}

	return pad + sip.DiscardedBy(item, rule)
}

// modified is the trace left by a rule that kept the construct.
func modified(pad, item, rule string) string {
	if rule == "" {
		return ""
	}

	return pad + sip.ModifiedBy(item, rule)
}

// ruleID is the identity of a rule, or fallback when no rule matched.
func ruleID(rule *rules.Rule, fallback string) string {
	if rule == nil {
		return fallback
	}

	return rule.String()
}

func entryID(entry *rules.CodeEntry) string {
	if entry == nil {
		return ""
	}

	return entry.String()
}

// joinTight appends name to typ, without a space after "*" and "&".
func joinTight(typ, name string) string {
	if typ == "" {
		return name
	}

	if strings.HasSuffix(typ, "*") || strings.HasSuffix(typ, "&") {
		return typ + name
	}

	return typ + " " + name
}

// namespaceLike reports a scope where static and virtual mean nothing to
// SIP.
func namespaceLike(c cxxast.Cursor) bool {
	return c == nil || c.Kind() == cxxast.KindNamespace || c.Kind() == cxxast.KindTranslationUnit
}
