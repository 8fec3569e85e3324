package rules

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/Sumatoshi-tech/sipgen/pkg/sip"
)

// Db is the rule database used to emit one header. It is read-only once
// built and safe for concurrent use; usage is counted in the caller's Hits.
type Db struct {
	rules [numMatchStages][]*Rule
	code  CodeTables
	// digests identify the modules the database was composed from.
	digests []string
}

// NewDb returns an empty database.
func NewDb() *Db {
	return &Db{code: newCodeTables()}
}

// Compose concatenates databases. Rules keep their order, so rules of an
// earlier database shadow later ones; for code tables the earlier key wins.
func Compose(dbs ...*Db) *Db {
	out := NewDb()

	for _, db := range dbs {
		if db == nil {
			continue
		}

		for s := range numMatchStages {
			out.rules[s] = append(out.rules[s], db.rules[s]...)
		}

		out.code.merge(&db.code)
		out.digests = append(out.digests, db.digests...)
	}

	return out
}

// AddRule appends r to its stage.
func (db *Db) AddRule(r *Rule) {
	db.rules[r.Stage] = append(db.rules[r.Stage], r)
}

// AddCode stores e unless an entry with the same key exists.
func (db *Db) AddCode(e *CodeEntry) {
	db.code.add(e)
}

// Rules returns the rules of a stage in match order.
func (db *Db) Rules(stage Stage) []*Rule {
	if !stage.IsMatch() {
		return nil
	}

	return db.rules[stage]
}

// CodeEntries lists every code table entry.
func (db *Db) CodeEntries() []*CodeEntry {
	return db.code.Entries()
}

// Digest identifies the rule modules behind the database. Cached
// renderings are only valid for the same digest.
func (db *Db) Digest() string {
	h := sha256.New()
	for _, d := range db.digests {
		h.Write([]byte(d))
	}

	return hex.EncodeToString(h.Sum(nil))
}

// Apply runs the first rule of ctx.Stage whose patterns match fields. It
// returns the rule that handled the record, or nil when none did. A
// handler returning SilentNoop passes the record on to the next rule.
func (db *Db) Apply(ctx *Context, rec *sip.Record, fields ...string) (*Rule, error) {
	for _, r := range db.Rules(ctx.Stage) {
		ok, err := r.Match(fields)
		if err != nil {
			return nil, &HandlerError{Rule: r.String(), Item: ctx.Describe(), Err: err}
		}

		if !ok {
			continue
		}

		ctx.Hits.rule(r)
		ctx.Rule = r.String()

		before := rec.Clone()

		err = r.Handler(ctx, rec)
		if errors.Is(err, SilentNoop) {
			continue
		}

		if err != nil {
			return r, &HandlerError{Rule: r.String(), Item: ctx.Describe(), Err: err}
		}

		traceResult(ctx, r.String(), before, rec)

		return r, nil
	}

	return nil, nil
}

func traceResult(ctx *Context, rule string, before, after *sip.Record) {
	logger := ctx.logger()
	item := ctx.Describe()

	switch {
	case after.Discarded():
		logger.Debug("rule suppressed construct", "rule", rule, "item", item)
	case after.Equal(before):
		logger.Info("rule did not modify construct", "rule", rule, "item", item)
	default:
		logger.Debug("rule modified construct", "rule", rule, "item", item)
	}
}

// ApplyMethodCode injects the methodcode entry for method name of
// container. Literal entries may also replace the parameters and result
// and add the C++ signature. Entry code replaces any code already set.
func (db *Db) ApplyMethodCode(ctx *Context, rec *sip.Record, container, name string) (*CodeEntry, error) {
	e := db.code.methods[container][name]
	if e == nil {
		return nil, nil
	}

	ctx.Hits.entry(e)
	ctx.Rule = e.String()

	if err := e.generate(ctx, rec); err != nil {
		return e, &HandlerError{Rule: e.String(), Item: ctx.Describe(), Err: err}
	}

	if e.Generator == nil {
		if e.Decl != nil {
			rec.Parameters = splitDecl(*e.Decl)
		}

		if e.FnResult != nil {
			rec.FnResult = *e.FnResult
		}

		if e.Decl2 != nil || e.FnResult2 != nil {
			rec.CxxParameters = rec.Parameters
			if e.Decl2 != nil {
				rec.CxxParameters = splitDecl(*e.Decl2)
			}

			rec.CxxFnResult = rec.FnResult
			if e.FnResult2 != nil {
				rec.CxxFnResult = *e.FnResult2
			}
		}
	}

	rec.Code = sip.Dedent(rec.Code)

	return e, nil
}

// splitDecl turns "(int a, int b)" or "int a, int b" into one parameter
// rendering. Commas inside templates make splitting unreliable and the
// renderer joins parameters with ", " anyway.
func splitDecl(decl string) []string {
	decl = strings.TrimSpace(decl)
	decl = strings.TrimSuffix(strings.TrimPrefix(decl, "("), ")")

	if strings.TrimSpace(decl) == "" {
		return nil
	}

	return []string{strings.TrimSpace(decl)}
}

// ApplyTypeCode appends the typecode entry for the fully-qualified name
// fqn to the record's code. mapped reports whether the resulting code
// makes the construct a %MappedType.
func (db *Db) ApplyTypeCode(ctx *Context, rec *sip.Record, fqn string) (entry *CodeEntry, mapped bool, err error) {
	e := db.code.types[fqn]
	if e == nil {
		return nil, false, nil
	}

	ctx.Hits.entry(e)
	ctx.Rule = e.String()

	existing := rec.Code

	if err := e.generate(ctx, rec); err != nil {
		return e, false, &HandlerError{Rule: e.String(), Item: ctx.Describe(), Err: err}
	}

	code := sip.Dedent(rec.Code)
	rec.Code = existing + code

	return e, IsMappedType(code), nil
}

// ApplyModuleCode runs the modulecode entry whose key is a suffix of
// filename. rec carries the include basename as Name and the rendered
// file body as Decl; handlers may rewrite Decl, add Code or discard the
// whole file.
func (db *Db) ApplyModuleCode(ctx *Context, rec *sip.Record, filename string) (*CodeEntry, error) {
	e := db.code.module(filename)
	if e == nil {
		return nil, nil
	}

	ctx.Hits.entry(e)
	ctx.Rule = e.String()

	if err := e.generate(ctx, rec); err != nil {
		return e, &HandlerError{Rule: e.String(), Item: filepath.Base(filename), Err: err}
	}

	rec.Code = sip.Dedent(rec.Code)

	ctx.logger().Debug("module code applied", slog.String("rule", e.String()), slog.String("file", filename))

	return e, nil
}
