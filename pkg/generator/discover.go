package generator

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/src-d/enry/v2"
)

// sniffSize is how much of an extensionless file is read to classify it.
const sniffSize = 4096

// moduleSuffix ends the name of every module index.
const moduleSuffix = "mod.sip"

type header struct {
	// path is the file on disk.
	path string
	// rel is the slash separated path below the source root, which is
	// also how users include the header.
	rel string
}

// directory is one module: the selected headers of a directory.
type directory struct {
	path string
	// rel is the slash separated path below the source root, "" at the
	// top.
	rel     string
	headers []header
}

// discover walks the sources in sorted order and returns the directories
// with at least one selected header.
func (g *Generator) discover(selector, omitter *regexp2.Regexp) ([]*directory, error) {
	var out []*directory

	for _, source := range g.rs.SourceDirs() {
		info, err := os.Stat(source)

		switch {
		case err == nil && info.IsDir():
			if err := g.walk(source, selector, omitter, &out); err != nil {
				return nil, err
			}
		default:
			// A glob over the files of one directory.
			matches, gerr := filepath.Glob(source)
			if gerr != nil {
				return nil, fmt.Errorf("source %q: %w", source, gerr)
			}

			if len(matches) == 0 && err != nil {
				return nil, fmt.Errorf("source %q: %w", source, err)
			}

			var names []string

			for _, m := range matches {
				if fi, serr := os.Stat(m); serr == nil && fi.Mode().IsRegular() {
					names = append(names, filepath.Base(m))
				}
			}

			sortFold(names)

			if d := g.directory(filepath.Dir(source), names, selector, omitter); d != nil {
				out = append(out, d)
			}
		}
	}

	return out, nil
}

func (g *Generator) walk(dir string, selector, omitter *regexp2.Regexp, out *[]*directory) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	var dirs, files []string

	for _, e := range entries {
		info, err := os.Stat(filepath.Join(dir, e.Name()))
		if err != nil {
			g.logger.Debug("skipping unreadable entry", "path", filepath.Join(dir, e.Name()), "error", err)

			continue
		}

		switch {
		case info.IsDir():
			dirs = append(dirs, e.Name())
		case info.Mode().IsRegular():
			files = append(files, e.Name())
		}
	}

	files = dropShadowed(files)
	dirs = dedupeLegacyNames(dirs)

	sortFold(dirs)
	sortFold(files)

	if d := g.directory(dir, files, selector, omitter); d != nil {
		*out = append(*out, d)
	}

	for _, name := range dirs {
		if err := g.walk(filepath.Join(dir, name), selector, omitter, out); err != nil {
			return err
		}
	}

	return nil
}

// directory selects the headers among names.
func (g *Generator) directory(dir string, names []string, selector, omitter *regexp2.Regexp) *directory {
	d := &directory{path: dir, rel: g.relative(dir)}

	for _, name := range names {
		full := filepath.Join(dir, name)
		rel := g.relative(full)

		if strings.HasSuffix(name, "_export.h") || strings.HasSuffix(name, "_version.h") {
			continue
		}

		if !matches(selector, rel) || matches(omitter, rel) {
			continue
		}

		if !isHeader(full) {
			g.logger.Debug("skipping non-header", "path", full)

			continue
		}

		d.headers = append(d.headers, header{path: full, rel: rel})
	}

	if len(d.headers) == 0 {
		return nil
	}

	return d
}

// relative is p below the source root with slashes, or p itself when it
// lies elsewhere.
func (g *Generator) relative(p string) string {
	rel, err := filepath.Rel(g.root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return filepath.ToSlash(p)
	}

	if rel == "." {
		return ""
	}

	return filepath.ToSlash(rel)
}

func matches(re *regexp2.Regexp, s string) bool {
	if re == nil {
		return false
	}

	ok, err := re.MatchString(s)

	return err == nil && ok
}

// dedupeLegacyNames drops "kfoo" when "KFoo" is also present.
func dedupeLegacyNames(names []string) []string {
	drop := map[string]bool{}

	for _, n := range names {
		if lower := strings.ToLower(n); lower != n && slices.Contains(names, lower) {
			drop[lower] = true
		}
	}

	return slices.DeleteFunc(names, func(n string) bool { return drop[n] })
}

// dropShadowed drops "kfoo.h" when the forwarding header "KFoo" is also
// present.
func dropShadowed(files []string) []string {
	drop := map[string]bool{}

	for _, f := range files {
		if strings.HasSuffix(f, ".h") {
			continue
		}

		if legacy := strings.ToLower(f) + ".h"; slices.Contains(files, legacy) {
			drop[legacy] = true
		}
	}

	return slices.DeleteFunc(files, func(f string) bool { return drop[f] })
}

var headerExtensions = []string{".h", ".hh", ".hpp", ".hxx", ".h++"}

var headerLanguages = []string{"C", "C++", "Objective-C", "Objective-C++"}

// isHeader accepts header extensions, and extensionless text files that
// look like C++ or forward with an #include.
func isHeader(p string) bool {
	ext := strings.ToLower(path.Ext(p))
	if slices.Contains(headerExtensions, ext) {
		return true
	}

	if ext != "" {
		return false
	}

	f, err := os.Open(p)
	if err != nil {
		return false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, sniffSize))
	if err != nil || len(data) == 0 || enry.IsBinary(data) {
		return false
	}

	if slices.Contains(headerLanguages, enry.GetLanguage(filepath.Base(p), data)) {
		return true
	}

	return bytes.Contains(data, []byte("#include"))
}

// sortFold sorts case-insensitively.
func sortFold(names []string) {
	slices.SortStableFunc(names, func(a, b string) int {
		return strings.Compare(strings.ToLower(a), strings.ToLower(b))
	})
}

// importMap maps the directory of an included header to the module index
// generated for it, "KCoreAddons" to "KCoreAddons/KCoreAddonsmod.sip".
// Keys are lower case.
type importMap struct {
	modules map[string]string
	// predicted are the indexes this project generates.
	predicted map[string]bool
}

func newImportMap(sourceRoot string, sipRoots []string) (*importMap, error) {
	m := &importMap{modules: map[string]string{}, predicted: map[string]bool{}}

	if err := m.fill(sourceRoot, sourceRoot); err != nil {
		return nil, err
	}

	for _, sip := range m.modules {
		m.predicted[sip] = true
	}

	for _, root := range sipRoots {
		// Imported projects may be absent on this machine.
		if err := m.fill(root, root); err != nil {
			continue
		}
	}

	return m, nil
}

func (m *importMap) fill(root, parent string) error {
	entries, err := os.ReadDir(parent)
	if err != nil {
		return err
	}

	var names []string

	for _, e := range entries {
		if e.IsDir() {
			names = append(names, e.Name())
		}
	}

	for _, name := range dedupeLegacyNames(names) {
		dir := filepath.Join(parent, name)

		rel, err := filepath.Rel(root, dir)
		if err != nil {
			continue
		}

		rel = filepath.ToSlash(rel)
		m.modules[strings.ToLower(rel)] = moduleFile(rel)

		if err := m.fill(root, dir); err != nil {
			return err
		}
	}

	return nil
}

// lookup returns the module index for the header dir, relative to an
// include root.
func (m *importMap) lookup(dir string) (string, bool) {
	sip, ok := m.modules[strings.ToLower(dir)]

	return sip, ok
}

// moduleFile names the index of the directory rel: "KCoreAddons" is
// "KCoreAddons/KCoreAddonsmod.sip".
func moduleFile(rel string) string {
	return strings.ReplaceAll(path.Join(rel, path.Base(rel)+moduleSuffix), "+", "_")
}
