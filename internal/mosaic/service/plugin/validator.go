package plugin

import (
	"fmt"
	"sort"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/jinzhu/copier"

	"github.com/kiosk404/mosaic/pkg/utils/safego"
)

// APIVersion is the version of the plugin contract implemented by this host.
// Manifests may constrain it through their requires field.
const APIVersion = "1.0.0"

// ValidationError is one contract violation.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

// ValidationErrors is the complete list of violations found for a candidate.
type ValidationErrors []*ValidationError

func (errs ValidationErrors) Error() string {
	msgs := make([]string, 0, len(errs))
	for _, e := range errs {
		msgs = append(msgs, e.Message)
	}
	return strings.Join(msgs, "; ")
}

// Validated is a candidate that passed validation.
type Validated struct {
	// Manifest is a private copy of the candidate's manifest.
	Manifest Manifest
	Plugin   Plugin
}

// Validator checks loaded candidates against the plugin contract.
type Validator struct {
	apiVersion *semver.Version
}

// NewValidator creates a validator for the given host API version.
func NewValidator(apiVersion string) (*Validator, error) {
	v, err := semver.NewVersion(apiVersion)
	if err != nil {
		return nil, fmt.Errorf("invalid plugin API version %q: %w", apiVersion, err)
	}
	return &Validator{apiVersion: v}, nil
}

type collector struct {
	errs ValidationErrors
}

func (c *collector) add(field, format string, args ...interface{}) {
	c.errs = append(c.errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
}

// Validate inspects candidate and returns either a validated plugin or every
// violation found. It has no side effects beyond calling the candidate's
// accessor methods, whose panics are reported as violations.
//
// Accepted candidates are a Plugin, a *Descriptor or a raw manifest map.
func (v *Validator) Validate(candidate interface{}) (*Validated, ValidationErrors) {
	switch c := candidate.(type) {
	case nil:
		return nil, ValidationErrors{{Message: "candidate is nil"}}
	case Plugin:
		return v.validatePlugin(c)
	case *Descriptor:
		if c == nil {
			return nil, ValidationErrors{{Message: "candidate is nil"}}
		}
		return v.validateDescriptor(c)
	case map[string]interface{}:
		return v.validateDescriptor(&Descriptor{Raw: c})
	}
	return nil, ValidationErrors{{Message: fmt.Sprintf("%T does not implement the plugin contract", candidate)}}
}

func (v *Validator) validatePlugin(p Plugin) (*Validated, ValidationErrors) {
	c := &collector{}

	var m Manifest
	if err := safego.Call(func() error { m = p.Manifest(); return nil }); err != nil {
		c.add("manifest", "reading manifest failed: %v", err)
	}
	v.checkManifest(c, m)

	var cmds []CommandDefinition
	if err := safego.Call(func() error { cmds = p.Commands(); return nil }); err != nil {
		c.add("commands", "reading commands failed: %v", err)
	}
	seen := make(map[string]bool, len(cmds))
	for i, cmd := range cmds {
		field := fmt.Sprintf("commands[%d]", i)
		switch {
		case strings.TrimSpace(cmd.Name) == "":
			c.add(field+".name", "%s.name must be a non-empty string", field)
		case seen[cmd.Name]:
			c.add(field+".name", "%s.name %q is declared more than once", field, cmd.Name)
		default:
			checkName(c, field+".name", cmd.Name)
		}
		seen[cmd.Name] = true
		if cmd.Run == nil {
			c.add(field+".run", "%s.run must be a callable handler", field)
		}
		checkFlags(c, field, cmd.Flags)
	}

	if hp, ok := p.(HookProvider); ok {
		var hooks map[HookEvent]HookHandler
		if err := safego.Call(func() error { hooks = hp.Hooks(); return nil }); err != nil {
			c.add("hooks", "reading hooks failed: %v", err)
		}
		for _, event := range sortedEvents(hooks) {
			if event == "" {
				c.add("hooks", "hook event names must be non-empty")
			}
			if hooks[event] == nil {
				c.add("hooks."+string(event), "hooks.%s must be a callable handler", event)
			}
		}
	}

	if len(c.errs) > 0 {
		return nil, c.errs
	}
	return &Validated{Manifest: copyManifest(m), Plugin: p}, nil
}

func (v *Validator) validateDescriptor(d *Descriptor) (*Validated, ValidationErrors) {
	c := &collector{}
	raw := d.Raw

	m := Manifest{
		Name:        stringField(c, raw, "name", true),
		Version:     stringField(c, raw, "version", true),
		Description: stringField(c, raw, "description", false),
		Requires:    stringField(c, raw, "requires", false),
	}
	checkName(c, "name", m.Name)
	v.checkRequires(c, m.Requires)

	var cmds []declaredCommand
	items, ok := raw["commands"].([]interface{})
	if !ok {
		c.add("commands", "commands must be a sequence")
	}
	seen := make(map[string]bool, len(items))
	for i, item := range items {
		field := fmt.Sprintf("commands[%d]", i)
		entry, ok := item.(map[string]interface{})
		if !ok {
			c.add(field, "%s must be a mapping", field)
			continue
		}
		dc := declaredCommand{
			Name:        stringField(c, entry, field+".name", true, "name"),
			Description: stringField(c, entry, field+".description", false, "description"),
		}
		checkName(c, field+".name", dc.Name)
		if dc.Name != "" && seen[dc.Name] {
			c.add(field+".name", "%s.name %q is declared more than once", field, dc.Name)
		}
		seen[dc.Name] = true

		argv, ok := stringSeq(entry["exec"])
		if !ok || len(argv) == 0 {
			c.add(field+".exec", "%s.exec must be a non-empty sequence of strings", field)
		}
		dc.Exec = argv

		flags, ok := flagSeq(c, field, entry["flags"])
		if ok {
			checkFlags(c, field, flags)
		}
		dc.Flags = flags
		cmds = append(cmds, dc)
	}

	hooks := make(map[HookEvent][]string)
	if rawHooks, present := raw["hooks"]; present && rawHooks != nil {
		hm, ok := rawHooks.(map[string]interface{})
		if !ok {
			c.add("hooks", "hooks must be a mapping of event to command")
		}
		events := make([]string, 0, len(hm))
		for event := range hm {
			events = append(events, event)
		}
		sort.Strings(events)
		for _, event := range events {
			argv, ok := stringSeq(hm[event])
			if !ok || len(argv) == 0 {
				c.add("hooks."+event, "hooks.%s must be a non-empty sequence of strings", event)
				continue
			}
			hooks[HookEvent(event)] = argv
		}
	}

	if len(c.errs) > 0 {
		sort.SliceStable(c.errs, func(i, j int) bool {
			return fieldRank(c.errs[i].Field) < fieldRank(c.errs[j].Field)
		})
		return nil, c.errs
	}
	m = copyManifest(m)
	return &Validated{
		Manifest: m,
		Plugin:   newDeclarativePlugin(m, d.Dir, cmds, hooks),
	}, nil
}

func (v *Validator) checkManifest(c *collector, m Manifest) {
	if strings.TrimSpace(m.Name) == "" {
		c.add("name", "name must be a non-empty string")
	} else {
		checkName(c, "name", m.Name)
	}
	if strings.TrimSpace(m.Version) == "" {
		c.add("version", "version must be a non-empty string")
	}
	v.checkRequires(c, m.Requires)
}

// checkName applies the plugin naming rules to a plugin or command name.
func checkName(c *collector, field, name string) {
	if strings.ContainsAny(name, " \t\n/:") {
		c.add(field, "%s %q must not contain whitespace, '/' or ':'", field, name)
	}
}

func (v *Validator) checkRequires(c *collector, requires string) {
	if requires == "" {
		return
	}
	constraint, err := semver.NewConstraint(requires)
	if err != nil {
		c.add("requires", "requires %q is not a valid version constraint: %v", requires, err)
		return
	}
	if !constraint.Check(v.apiVersion) {
		c.add("requires", "requires %q is not satisfied by plugin API %s", requires, v.apiVersion)
	}
}

func checkFlags(c *collector, field string, flags []FlagDef) {
	seen := make(map[string]bool, len(flags))
	for j, f := range flags {
		ff := fmt.Sprintf("%s.flags[%d]", field, j)
		if f.Name == "" {
			c.add(ff+".name", "%s.name must be a non-empty string", ff)
		} else if seen[f.Name] {
			c.add(ff+".name", "%s.name %q is declared more than once", ff, f.Name)
		}
		seen[f.Name] = true
		if len(f.Shorthand) > 1 {
			c.add(ff+".shorthand", "%s.shorthand %q must be a single character", ff, f.Shorthand)
		}
		if !f.Type.Valid() {
			c.add(ff+".type", "%s.type %q is not one of string, bool, int, float, stringSlice", ff, f.Type)
		}
	}
}

func sortedEvents(hooks map[HookEvent]HookHandler) []HookEvent {
	events := make([]HookEvent, 0, len(hooks))
	for e := range hooks {
		events = append(events, e)
	}
	sort.Slice(events, func(i, j int) bool { return events[i] < events[j] })
	return events
}

// fieldRank keeps manifest errors ahead of command and hook errors, so the
// report reads top-down like the descriptor.
func fieldRank(field string) int {
	switch {
	case strings.HasPrefix(field, "commands"):
		return 1
	case strings.HasPrefix(field, "hooks"):
		return 2
	}
	return 0
}

func copyManifest(m Manifest) Manifest {
	var out Manifest
	if err := copier.CopyWithOption(&out, &m, copier.Option{DeepCopy: true}); err != nil {
		return m
	}
	return out
}

// stringField reads key from raw as a string. When keys are given the first
// one is the lookup key and field is only used for diagnostics.
func stringField(c *collector, raw map[string]interface{}, field string, required bool, keys ...string) string {
	key := field
	if len(keys) > 0 {
		key = keys[0]
	}
	val, present := raw[key]
	if !present || val == nil {
		if required {
			c.add(field, "%s must be a non-empty string", field)
		}
		return ""
	}
	s, ok := val.(string)
	if !ok || (required && strings.TrimSpace(s) == "") {
		c.add(field, "%s must be a non-empty string", field)
		return ""
	}
	return s
}

func stringSeq(val interface{}) ([]string, bool) {
	items, ok := val.([]interface{})
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(items))
	for _, it := range items {
		s, ok := it.(string)
		if !ok {
			return nil, false
		}
		out = append(out, s)
	}
	return out, true
}

func flagSeq(c *collector, field string, val interface{}) ([]FlagDef, bool) {
	if val == nil {
		return nil, true
	}
	items, ok := val.([]interface{})
	if !ok {
		c.add(field+".flags", "%s.flags must be a sequence", field)
		return nil, false
	}
	out := make([]FlagDef, 0, len(items))
	for j, it := range items {
		ff := fmt.Sprintf("%s.flags[%d]", field, j)
		m, ok := it.(map[string]interface{})
		if !ok {
			c.add(ff, "%s must be a mapping", ff)
			return nil, false
		}
		required, _ := m["required"].(bool)
		out = append(out, FlagDef{
			Name:      stringField(c, m, ff+".name", false, "name"),
			Shorthand: stringField(c, m, ff+".shorthand", false, "shorthand"),
			Type:      FlagType(stringField(c, m, ff+".type", false, "type")),
			Default:   m["default"],
			Usage:     stringField(c, m, ff+".usage", false, "usage"),
			Required:  required,
		})
	}
	return out, true
}
