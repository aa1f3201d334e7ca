package plugin

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"reflect"
	"strings"

	"gopkg.in/yaml.v3"
)

// Source schemes understood by the loader.
const (
	SchemeBuiltin  = "builtin"
	SchemeSO       = "so"
	SchemeManifest = "manifest"
)

// Exported symbols looked up in a loaded module, in order.
const (
	SymbolPlugin    = "Plugin"
	SymbolNewPlugin = "NewPlugin"
)

// ManifestFile is the descriptor file name looked up in plugin directories.
const ManifestFile = "plugin.yaml"

// Module is a loaded unit exposing named symbols.
type Module interface {
	Lookup(symbol string) (interface{}, error)
}

// ModuleLoader performs the module loading step for one scheme.
type ModuleLoader interface {
	Load(ctx context.Context, ref string) (Module, error)
}

// ModuleLoaderFunc adapts a function to ModuleLoader.
type ModuleLoaderFunc func(ctx context.Context, ref string) (Module, error)

func (f ModuleLoaderFunc) Load(ctx context.Context, ref string) (Module, error) { return f(ctx, ref) }

// ParsedSource is a source string split into scheme and reference.
type ParsedSource struct {
	Scheme string
	Ref    string
}

// ParseSource determines the scheme of a source. Explicit scheme prefixes win;
// otherwise .so files are shared objects, .yaml/.yml files and directories
// holding a plugin.yaml are manifests.
func ParseSource(source string) (ParsedSource, error) {
	s := strings.TrimSpace(source)
	if s == "" {
		return ParsedSource{}, fmt.Errorf("empty plugin source")
	}

	if i := strings.Index(s, ":"); i > 0 && !isWindowsDrive(s, i) {
		scheme, ref := s[:i], s[i+1:]
		if ref == "" {
			return ParsedSource{}, fmt.Errorf("source %q has no reference after %q", source, scheme+":")
		}
		return ParsedSource{Scheme: scheme, Ref: ref}, nil
	}

	switch strings.ToLower(filepath.Ext(s)) {
	case ".so":
		return ParsedSource{Scheme: SchemeSO, Ref: s}, nil
	case ".yaml", ".yml":
		return ParsedSource{Scheme: SchemeManifest, Ref: s}, nil
	}
	if fi, err := os.Stat(s); err == nil && fi.IsDir() {
		return ParsedSource{Scheme: SchemeManifest, Ref: s}, nil
	}
	return ParsedSource{}, fmt.Errorf("cannot determine how to load %q (use builtin:, so: or manifest:)", source)
}

func isWindowsDrive(s string, colon int) bool {
	return colon == 1 && len(s) > 2 && (s[2] == '\\' || s[2] == '/')
}

// symbolModule is a Module backed by a fixed symbol table.
type symbolModule map[string]interface{}

func (m symbolModule) Lookup(symbol string) (interface{}, error) {
	v, ok := m[symbol]
	if !ok {
		return nil, fmt.Errorf("symbol %s not found", symbol)
	}
	return v, nil
}

// ManifestLoader reads declarative plugin descriptors.
type ManifestLoader struct{}

// Load reads ref, a YAML file or a directory containing plugin.yaml. The
// module exposes the decoded *Descriptor as Plugin.
func (ManifestLoader) Load(_ context.Context, ref string) (Module, error) {
	path := ref
	if fi, err := os.Stat(ref); err == nil && fi.IsDir() {
		path = filepath.Join(ref, ManifestFile)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read manifest: %w", err)
	}

	raw, err := parseManifest(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse manifest: %w", err)
	}

	dir, err := filepath.Abs(filepath.Dir(path))
	if err != nil {
		dir = filepath.Dir(path)
	}
	return symbolModule{SymbolPlugin: &Descriptor{Dir: dir, Raw: raw}}, nil
}

// textFields are manifest keys read as text even when written as bare
// numbers, so "version: 1.10" stays "1.10" instead of becoming 1.1.
var textFields = map[string]bool{"name": true, "version": true, "description": true, "requires": true}

func parseManifest(data []byte) (map[string]interface{}, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	raw := map[string]interface{}{}
	if len(doc.Content) == 0 {
		return raw, nil
	}
	root := doc.Content[0]
	if err := root.Decode(&raw); err != nil {
		return nil, err
	}
	if raw == nil {
		raw = map[string]interface{}{}
	}
	if root.Kind != yaml.MappingNode {
		return raw, nil
	}
	for i := 0; i+1 < len(root.Content); i += 2 {
		key, val := root.Content[i], root.Content[i+1]
		if !textFields[key.Value] || val.Kind != yaml.ScalarNode {
			continue
		}
		if val.Tag == "!!int" || val.Tag == "!!float" {
			raw[key.Value] = val.Value
		}
	}
	return raw, nil
}

// extractCandidate pulls the plugin candidate out of a loaded module. A
// Plugin symbol is used as is (dereferenced if it is a pointer to the
// value); a NewPlugin symbol is called.
func extractCandidate(mod Module) (interface{}, error) {
	if sym, err := mod.Lookup(SymbolPlugin); err == nil {
		return derefCandidate(sym), nil
	}
	sym, err := mod.Lookup(SymbolNewPlugin)
	if err != nil {
		return nil, fmt.Errorf("module exports neither %s nor %s", SymbolPlugin, SymbolNewPlugin)
	}

	switch fn := sym.(type) {
	case Factory:
		return fn()
	case func() (Plugin, error):
		return fn()
	case func() Plugin:
		return fn(), nil
	case func() interface{}:
		return fn(), nil
	}
	return nil, fmt.Errorf("%s has unsupported type %T", SymbolNewPlugin, sym)
}

// derefCandidate unwraps the pointer the Go plugin package hands out for an
// exported variable, unless the pointer itself is the candidate.
func derefCandidate(sym interface{}) interface{} {
	switch sym.(type) {
	case Plugin, *Descriptor, map[string]interface{}:
		return sym
	}
	rv := reflect.ValueOf(sym)
	if rv.Kind() == reflect.Ptr && !rv.IsNil() {
		elem := rv.Elem()
		if elem.Kind() == reflect.Interface && elem.IsNil() {
			return nil
		}
		return elem.Interface()
	}
	return sym
}
