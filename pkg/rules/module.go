package rules

import (
	"crypto/sha256"
	"embed"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/dlclark/regexp2"
	"github.com/sahilm/fuzzy"
	"github.com/xeipuuv/gojsonschema"
	"gopkg.in/yaml.v3"
)

// ErrSchema reports a rule module or manifest that violates its schema.
var ErrSchema = errors.New("schema violation")

//go:embed schema/*.json
var schemaFS embed.FS

// Resolver turns an action name and its arguments into a handler.
type Resolver interface {
	// Resolve returns ErrUnknownAction for names it does not know.
	Resolve(stage Stage, action string, args []string) (Handler, error)
	// Actions lists the names valid for a stage.
	Actions(stage Stage) []string
}

// Module is one loaded rule module.
type Module struct {
	Name string
	Path string
	// Headers is the pattern selecting the headers the module applies to.
	// Modules without one apply to every header.
	Headers string
	Db      *Db
	Digest  string

	headers *regexp2.Regexp
}

// Common reports whether the module applies to every header.
func (m *Module) Common() bool {
	return m.headers == nil
}

// Matches reports whether the module claims the header at rel, a path
// relative to the source root.
func (m *Module) Matches(rel string) bool {
	if m.headers == nil {
		return true
	}

	ok, err := m.headers.MatchString(filepath.ToSlash(rel))

	return err == nil && ok
}

type ruleSpec struct {
	Match  []string `yaml:"match"`
	Action string   `yaml:"action"`
	Args   []string `yaml:"args"`
}

// UnmarshalYAML accepts the short form [pattern..., action] as well as a
// mapping with match, action and args.
func (r *ruleSpec) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.SequenceNode {
		var items []string
		if err := node.Decode(&items); err != nil {
			return err
		}

		if len(items) < 2 { //nolint:mnd // at least one pattern and the action.
			return fmt.Errorf("%w: line %d: rule needs patterns and an action", ErrBadRule, node.Line)
		}

		r.Match, r.Action = items[:len(items)-1], items[len(items)-1]

		return nil
	}

	type plain ruleSpec

	return node.Decode((*plain)(r))
}

type codeSpec struct {
	Code      string   `yaml:"code"`
	Action    string   `yaml:"action"`
	Args      []string `yaml:"args"`
	Decl      *string  `yaml:"decl"`
	FnResult  *string  `yaml:"fn_result"`
	Decl2     *string  `yaml:"decl2"`
	FnResult2 *string  `yaml:"fn_result2"`
}

type namedCode struct {
	key  string
	spec codeSpec
}

// orderedCode keeps a mapping's document order.
type orderedCode []namedCode

// UnmarshalYAML implements yaml.Unmarshaler.
func (o *orderedCode) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.MappingNode {
		return fmt.Errorf("%w: line %d: expected a mapping", ErrBadRule, node.Line)
	}

	for i := 0; i+1 < len(node.Content); i += 2 {
		var nc namedCode

		nc.key = node.Content[i].Value
		if err := node.Content[i+1].Decode(&nc.spec); err != nil {
			return err
		}

		*o = append(*o, nc)
	}

	return nil
}

type moduleFile struct {
	Module                  string                 `yaml:"module"`
	Headers                 string                 `yaml:"headers"`
	ContainerRules          []ruleSpec             `yaml:"container_rules"`
	ForwardDeclarationRules []ruleSpec             `yaml:"forward_declaration_rules"`
	FunctionRules           []ruleSpec             `yaml:"function_rules"`
	ParameterRules          []ruleSpec             `yaml:"parameter_rules"`
	TypedefRules            []ruleSpec             `yaml:"typedef_rules"`
	UnexposedRules          []ruleSpec             `yaml:"unexposed_rules"`
	VariableRules           []ruleSpec             `yaml:"variable_rules"`
	MethodCode              map[string]orderedCode `yaml:"methodcode"`
	TypeCode                orderedCode            `yaml:"typecode"`
	ModuleCode              orderedCode            `yaml:"modulecode"`
}

func (f *moduleFile) stageRules(stage Stage) []ruleSpec {
	switch stage {
	case StageContainer:
		return f.ContainerRules
	case StageForwardDeclaration:
		return f.ForwardDeclarationRules
	case StageFunction:
		return f.FunctionRules
	case StageParameter:
		return f.ParameterRules
	case StageTypedef:
		return f.TypedefRules
	case StageUnexposed:
		return f.UnexposedRules
	case StageVariable:
		return f.VariableRules
	default:
		return nil
	}
}

var loadSchemas = sync.OnceValues(func() (map[string]*gojsonschema.Schema, error) {
	out := map[string]*gojsonschema.Schema{}

	for _, name := range []string{"module", "manifest"} {
		data, err := schemaFS.ReadFile("schema/" + name + ".schema.json")
		if err != nil {
			return nil, err
		}

		schema, err := gojsonschema.NewSchema(gojsonschema.NewBytesLoader(data))
		if err != nil {
			return nil, fmt.Errorf("compile %s schema: %w", name, err)
		}

		out[name] = schema
	}

	return out, nil
})

// validate checks a YAML document against the named embedded schema.
func validate(schemaName string, data []byte) error {
	schemas, err := loadSchemas()
	if err != nil {
		return err
	}

	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("%w: %w", ErrSchema, err)
	}

	if doc == nil {
		doc = map[string]any{}
	}

	result, err := schemas[schemaName].Validate(gojsonschema.NewGoLoader(doc))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrSchema, err)
	}

	if result.Valid() {
		return nil
	}

	msgs := make([]string, 0, len(result.Errors()))
	for _, verr := range result.Errors() {
		msgs = append(msgs, verr.Field()+": "+verr.Description())
	}

	return fmt.Errorf("%w: %s", ErrSchema, strings.Join(msgs, "; "))
}

// LoadModule reads and compiles the rule module at path.
func LoadModule(path string, res Resolver) (*Module, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read rule module: %w", err)
	}

	m, err := ParseModule(path, data, res)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	return m, nil
}

// ParseModule compiles a rule module. path names it in errors and, without
// a module key, provides its name.
func ParseModule(path string, data []byte, res Resolver) (*Module, error) {
	if err := validate("module", data); err != nil {
		return nil, err
	}

	var f moduleFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrBadRule, err)
	}

	sum := sha256.Sum256(data)

	m := &Module{
		Name:    f.Module,
		Path:    path,
		Headers: f.Headers,
		Db:      NewDb(),
		Digest:  hex.EncodeToString(sum[:]),
	}

	if m.Name == "" {
		m.Name = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}

	m.Db.digests = []string{m.Digest}

	if f.Headers != "" {
		re, err := CompilePattern(f.Headers)
		if err != nil {
			return nil, fmt.Errorf("%w: headers: %w", ErrBadRule, err)
		}

		m.headers = re
	}

	var errs []error

	for _, stage := range MatchStages() {
		for i, spec := range f.stageRules(stage) {
			r, err := m.compileRule(stage, i, spec, res)
			if err != nil {
				errs = append(errs, err)

				continue
			}

			m.Db.AddRule(r)
		}
	}

	for container, methods := range f.MethodCode {
		for _, nc := range methods {
			errs = append(errs, m.addCode(StageMethodCode, container, nc.key, nc.spec, res))
		}
	}

	for _, nc := range f.TypeCode {
		errs = append(errs, m.addCode(StageTypeCode, nc.key, "", nc.spec, res))
	}

	for _, nc := range f.ModuleCode {
		errs = append(errs, m.addCode(StageModuleCode, nc.key, "", nc.spec, res))
	}

	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	return m, nil
}

func (m *Module) compileRule(stage Stage, index int, spec ruleSpec, res Resolver) (*Rule, error) {
	handler, err := resolve(res, stage, spec.Action, spec.Args)
	if err != nil {
		return nil, fmt.Errorf("%s rule %d: %w", stage, index, err)
	}

	r, err := NewRule(stage, index, spec.Action, spec.Match, handler)
	if err != nil {
		return nil, err
	}

	r.Module = m.Name
	r.Args = spec.Args

	return r, nil
}

func (m *Module) addCode(stage Stage, key, name string, spec codeSpec, res Resolver) error {
	e := &CodeEntry{
		Stage:     stage,
		Key:       key,
		Name:      name,
		Module:    m.Name,
		Code:      spec.Code,
		Action:    spec.Action,
		Args:      spec.Args,
		Decl:      spec.Decl,
		FnResult:  spec.FnResult,
		Decl2:     spec.Decl2,
		FnResult2: spec.FnResult2,
	}

	if spec.Action != "" {
		handler, err := resolve(res, stage, spec.Action, spec.Args)
		if err != nil {
			return fmt.Errorf("%s %s: %w", stage, e, err)
		}

		e.Generator = handler
	}

	m.Db.AddCode(e)

	return nil
}

// resolve asks res for a handler and suggests close names for typos.
func resolve(res Resolver, stage Stage, action string, args []string) (Handler, error) {
	if res == nil {
		return nil, fmt.Errorf("%w: %q (no actions registered)", ErrUnknownAction, action)
	}

	handler, err := res.Resolve(stage, action, args)
	if err == nil {
		return handler, nil
	}

	if !errors.Is(err, ErrUnknownAction) {
		return nil, err
	}

	if matches := fuzzy.Find(action, res.Actions(stage)); len(matches) > 0 {
		return nil, fmt.Errorf("%w (did you mean %q?)", err, matches[0].Str)
	}

	return nil, err
}
