// Package rulehelpers provides the named actions rule modules refer to:
// discards, annotations, parameter rewrites, container and module code
// helpers, and the template expanders behind the built-in rules.
package rulehelpers

import (
	_ "embed"
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/Sumatoshi-tech/sipgen/pkg/rules"
)

// Registry errors.
var (
	ErrDuplicateAction = errors.New("duplicate action")
	ErrArgs            = errors.New("bad action arguments")
	ErrStage           = errors.New("action not valid for stage")
)

// Unlimited marks a descriptor accepting any number of arguments.
const Unlimited = -1

//go:embed builtin.yaml
var builtinRules []byte

// Factory builds a handler from the args of one rule.
type Factory func(args []string) (rules.Handler, error)

// Descriptor is the stable metadata of an action.
type Descriptor struct {
	Name        string
	Description string
	Stages      []rules.Stage
	MinArgs     int
	MaxArgs     int
}

type action struct {
	Descriptor

	factory Factory
}

// Registry maps action names to handler factories. It implements
// rules.Resolver and rules.BuiltinSource.
type Registry struct {
	ordered []Descriptor
	index   map[string]action
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{index: map[string]action{}}
}

// Register adds an action.
func (r *Registry) Register(d Descriptor, factory Factory) error {
	if _, exists := r.index[d.Name]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateAction, d.Name)
	}

	r.index[d.Name] = action{Descriptor: d, factory: factory}
	r.ordered = append(r.ordered, d)

	return nil
}

// MustRegister is Register for package initialisation.
func (r *Registry) MustRegister(d Descriptor, factory Factory) {
	if err := r.Register(d, factory); err != nil {
		panic(err)
	}
}

// Resolve implements rules.Resolver.
func (r *Registry) Resolve(stage rules.Stage, name string, args []string) (rules.Handler, error) {
	a, ok := r.index[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", rules.ErrUnknownAction, name)
	}

	if !slices.Contains(a.Stages, stage) {
		return nil, fmt.Errorf("%w: %s in %s", ErrStage, name, stage.Key())
	}

	if len(args) < a.MinArgs || (a.MaxArgs != Unlimited && len(args) > a.MaxArgs) {
		return nil, fmt.Errorf("%w: %s takes %s, got %d", ErrArgs, name, a.arity(), len(args))
	}

	return a.factory(args)
}

func (a action) arity() string {
	switch {
	case a.MaxArgs == Unlimited:
		return fmt.Sprintf("at least %d", a.MinArgs)
	case a.MinArgs == a.MaxArgs:
		return fmt.Sprintf("%d", a.MinArgs)
	default:
		return fmt.Sprintf("%d to %d", a.MinArgs, a.MaxArgs)
	}
}

// Actions implements rules.Resolver.
func (r *Registry) Actions(stage rules.Stage) []string {
	var names []string

	for _, d := range r.ordered {
		if slices.Contains(d.Stages, stage) {
			names = append(names, d.Name)
		}
	}

	return names
}

// All returns every descriptor in registration order.
func (r *Registry) All() []Descriptor {
	return slices.Clone(r.ordered)
}

// Builtin implements rules.BuiltinSource.
func (r *Registry) Builtin() []byte {
	return builtinRules
}

// Default returns the registry holding every helper of this package.
var Default = sync.OnceValue(func() *Registry {
	r := NewRegistry()
	registerDiscards(r)
	registerEdits(r)
	registerContainers(r)
	registerParameters(r)
	registerModules(r)
	registerBuiltins(r)

	return r
})

// fixed wraps a handler taking no arguments.
func fixed(h rules.Handler) Factory {
	return func([]string) (rules.Handler, error) { return h, nil }
}

var (
	allStages        = rules.MatchStages()
	everyStage       = append(rules.MatchStages(), rules.StageMethodCode, rules.StageTypeCode, rules.StageModuleCode)
	containerStage   = []rules.Stage{rules.StageContainer}
	functionStage    = []rules.Stage{rules.StageFunction}
	parameterStage   = []rules.Stage{rules.StageParameter}
	typedefStage     = []rules.Stage{rules.StageTypedef}
	variableStage    = []rules.Stage{rules.StageVariable}
	forwardStage     = []rules.Stage{rules.StageForwardDeclaration}
	moduleCodeStage  = []rules.Stage{rules.StageModuleCode}
	typeCodeStage    = []rules.Stage{rules.StageTypeCode}
	methodCodeStages = []rules.Stage{rules.StageMethodCode, rules.StageFunction}
)
