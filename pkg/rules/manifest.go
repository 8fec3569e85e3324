package rules

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"sync"

	"github.com/dlclark/regexp2"
	"gopkg.in/yaml.v3"

	"github.com/Sumatoshi-tech/sipgen/pkg/cxxast"
)

// ManifestName is the file describing a rules package.
const ManifestName = "sipgen.yaml"

// ErrNoManifest is returned when a rules package has no manifest.
var ErrNoManifest = errors.New("rules package has no " + ManifestName)

// Manifest is the decoded sipgen.yaml.
type Manifest struct {
	Package        string   `yaml:"package"`
	Copying        string   `yaml:"copying"`
	SourceRoot     string   `yaml:"source_root"`
	Sources        []string `yaml:"sources"`
	Includes       []string `yaml:"includes"`
	CompileFlags   string   `yaml:"compile_flags"`
	Libraries      []string `yaml:"libraries"`
	Imports        []string `yaml:"imports"`
	Select         string   `yaml:"select"`
	Omit           string   `yaml:"omit"`
	Macros         []string `yaml:"macros"`
	FunctionMacros []string `yaml:"function_macros"`
	ModuleGlobs    []string `yaml:"modules"`
	Builtin        *bool    `yaml:"builtin"`
}

// RuleSet is a loaded rules package: its manifest and compiled modules.
type RuleSet struct {
	Manifest
	// Dir holds the manifest; relative paths resolve against it.
	Dir     string
	Modules []*Module
	// builtin rules apply after every module.
	builtin *Module
	flags   cxxast.Flags

	mu  sync.Mutex
	dbs map[*Module]*Db
}

// NewRuleSet assembles a rule set from already compiled modules. builtin
// may be nil.
func NewRuleSet(manifest Manifest, dir string, modules []*Module, builtin *Module) *RuleSet {
	rs := &RuleSet{Manifest: manifest, Dir: dir, Modules: modules, builtin: builtin}

	if args, err := cxxast.SplitFlags(manifest.CompileFlags); err == nil {
		rs.flags = cxxast.ParseFlags(args)
	}

	return rs
}

// BuiltinSource provides the YAML of the built-in rule module.
type BuiltinSource interface {
	Builtin() []byte
}

// LoadRuleSet reads the manifest at path, a sipgen.yaml or the directory
// holding one, and compiles every rule module it names.
func LoadRuleSet(path string, res Resolver) (*RuleSet, error) {
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		path = filepath.Join(path, ManifestName)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("%w: %s", ErrNoManifest, path)
		}

		return nil, fmt.Errorf("read manifest: %w", err)
	}

	if err := validate("manifest", data); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	rs := &RuleSet{Dir: filepath.Dir(path)}
	if err := yaml.Unmarshal(data, &rs.Manifest); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	if err := rs.loadModules(res); err != nil {
		return nil, err
	}

	args, err := cxxast.SplitFlags(rs.CompileFlags)
	if err != nil {
		return nil, fmt.Errorf("%s: compile_flags: %w", path, err)
	}

	rs.flags = cxxast.ParseFlags(args)

	return rs, nil
}

func (rs *RuleSet) loadModules(res Resolver) error {
	var paths []string

	for _, pattern := range rs.ModuleGlobs {
		matches, err := filepath.Glob(rs.resolve(pattern))
		if err != nil {
			return fmt.Errorf("modules %q: %w", pattern, err)
		}

		paths = append(paths, matches...)
	}

	slices.Sort(paths)
	paths = slices.Compact(paths)

	var errs []error

	loaded := make([]*Module, 0, len(paths))

	for _, p := range paths {
		m, err := LoadModule(p, res)
		if err != nil {
			errs = append(errs, err)

			continue
		}

		loaded = append(loaded, m)
	}

	if src, ok := res.(BuiltinSource); ok && (rs.Builtin == nil || *rs.Builtin) {
		m, err := ParseModule("builtin.yaml", src.Builtin(), res)
		if err != nil {
			errs = append(errs, fmt.Errorf("builtin rules: %w", err))
		} else {
			rs.builtin = m
		}
	}

	rs.Modules = nil
	if err := errors.Join(errs...); err != nil {
		return err
	}

	rs.Modules = loaded

	return nil
}

func (rs *RuleSet) resolve(p string) string {
	if filepath.IsAbs(p) {
		return p
	}

	return filepath.Join(rs.Dir, p)
}

// SourceRootDir is the absolute root of the headers.
func (rs *RuleSet) SourceRootDir() string {
	return rs.resolve(rs.SourceRoot)
}

// SourceDirs lists what to walk: the configured sources when there are
// any, else the source root. A source that is not a directory is a glob
// over the files of one directory.
func (rs *RuleSet) SourceDirs() []string {
	if len(rs.Sources) == 0 {
		return []string{rs.SourceRootDir()}
	}

	dirs := make([]string, 0, len(rs.Sources))
	for _, s := range rs.Sources {
		dirs = append(dirs, rs.resolve(s))
	}

	return dirs
}

// SipRoots are the directories of imported SIP projects.
func (rs *RuleSet) SipRoots() []string {
	roots := make([]string, 0, len(rs.Imports))
	for _, s := range rs.Imports {
		roots = append(roots, rs.resolve(s))
	}

	return roots
}

// IncludeDirs are the resolved include directories.
func (rs *RuleSet) IncludeDirs() []string {
	dirs := make([]string, 0, len(rs.Includes))
	for _, s := range rs.Includes {
		dirs = append(dirs, rs.resolve(s))
	}

	return dirs
}

// Flags are the compile flags plus the include directories.
func (rs *RuleSet) Flags() cxxast.Flags {
	flags := cxxast.Flags{
		IncludePaths: slices.Clone(rs.flags.IncludePaths),
		Defines:      map[string]string{},
	}

	for k, v := range rs.flags.Defines {
		flags.Defines[k] = v
	}

	for _, inc := range rs.Includes {
		flags.IncludePaths = append(flags.IncludePaths, rs.resolve(inc))
	}

	return flags
}

// Selector compiles the default selector; override wins when not empty.
// Selectors and omitters search the header path relative to the source
// root; they are not anchored.
func (rs *RuleSet) Selector(override string) (*regexp2.Regexp, error) {
	return pick(override, rs.Select, ".*")
}

// Omitter compiles the default omitter; override wins when not empty. A
// ruleset without one omits nothing.
func (rs *RuleSet) Omitter(override string) (*regexp2.Regexp, error) {
	return pick(override, rs.Omit, "(?!)")
}

func pick(override, configured, fallback string) (*regexp2.Regexp, error) {
	pat := override
	if pat == "" {
		pat = configured
	}

	if pat == "" {
		pat = fallback
	}

	return SearchPattern(pat)
}

// ModuleFor returns the module claiming the header at rel, a path relative
// to the source root, or nil when only the common rules apply.
func (rs *RuleSet) ModuleFor(rel string) *Module {
	for _, m := range rs.Modules {
		if !m.Common() && m.Matches(rel) {
			return m
		}
	}

	return nil
}

// DbFor composes the database used for the header at rel: the common
// modules, then the claiming module, then the built-in rules.
func (rs *RuleSet) DbFor(rel string) *Db {
	own := rs.ModuleFor(rel)

	rs.mu.Lock()
	defer rs.mu.Unlock()

	if db, ok := rs.dbs[own]; ok {
		return db
	}

	dbs := make([]*Db, 0, len(rs.Modules)+2) //nolint:mnd // own module and builtin.

	for _, m := range rs.Modules {
		if m.Common() {
			dbs = append(dbs, m.Db)
		}
	}

	if own != nil {
		dbs = append(dbs, own.Db)
	}

	if rs.builtin != nil {
		dbs = append(dbs, rs.builtin.Db)
	}

	if rs.dbs == nil {
		rs.dbs = map[*Module]*Db{}
	}

	db := Compose(dbs...)
	rs.dbs[own] = db

	return db
}

// AllModules lists the loaded modules followed by the built-in module.
func (rs *RuleSet) AllModules() []*Module {
	out := slices.Clone(rs.Modules)
	if rs.builtin != nil {
		out = append(out, rs.builtin)
	}

	return out
}
