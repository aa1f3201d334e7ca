package plugin

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"time"

	"github.com/spf13/cast"
)

// Manifest is the metadata block identifying a plugin.
type Manifest struct {
	// Name is the unique identifier of the plugin.
	Name string `json:"name" yaml:"name"`
	// Version is the plugin's own version string.
	Version string `json:"version" yaml:"version"`
	// Description is optional.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	// Requires is an optional semver constraint on the host plugin API
	// version, e.g. ">= 1.0, < 2".
	Requires string `json:"requires,omitempty" yaml:"requires,omitempty"`
}

// Plugin is the contract every loaded module must satisfy.
//
// A plugin contributes commands declaratively through Commands(). The
// optional HookProvider, Registrar, Activator and Deactivator interfaces are
// checked for after validation.
type Plugin interface {
	// Manifest returns the plugin's identity.
	Manifest() Manifest

	// Commands returns the command definitions the plugin contributes.
	// It may be empty.
	Commands() []CommandDefinition
}

// HookProvider is an optional interface for plugins that attach hooks
// declaratively. Hooks are registered in event-name order.
type HookProvider interface {
	Hooks() map[HookEvent]HookHandler
}

// Registrar is an optional interface for plugins that register additional
// capabilities imperatively through the scoped PluginAPI.
type Registrar interface {
	Register(api PluginAPI) error
}

// Activator is an optional interface called once after registration.
type Activator interface {
	Activate(ctx context.Context, api PluginAPI) error
}

// Deactivator is an optional interface called at shutdown, in load order.
type Deactivator interface {
	Deactivate(ctx context.Context) error
}

// Factory creates a plugin instance.
type Factory func() (Plugin, error)

// FlagType is the value type of a command flag.
type FlagType string

const (
	FlagString      FlagType = "string"
	FlagBool        FlagType = "bool"
	FlagInt         FlagType = "int"
	FlagFloat       FlagType = "float"
	FlagStringSlice FlagType = "stringSlice"
)

// Valid reports whether t is a known flag type. The empty type means string.
func (t FlagType) Valid() bool {
	switch t {
	case "", FlagString, FlagBool, FlagInt, FlagFloat, FlagStringSlice:
		return true
	}
	return false
}

// FlagDef is one entry of a command's flag schema.
type FlagDef struct {
	Name      string      `json:"name" yaml:"name"`
	Shorthand string      `json:"shorthand,omitempty" yaml:"shorthand,omitempty"`
	Type      FlagType    `json:"type,omitempty" yaml:"type,omitempty"`
	Default   interface{} `json:"default,omitempty" yaml:"default,omitempty"`
	Usage     string      `json:"usage,omitempty" yaml:"usage,omitempty"`
	Required  bool        `json:"required,omitempty" yaml:"required,omitempty"`
}

// CommandHandler runs a command. Returning an error (or panicking) marks the
// invocation as failed.
type CommandHandler func(ec *ExecutionContext, args Args) error

// CommandDefinition describes an invocable command.
type CommandDefinition struct {
	Name        string
	Description string
	Flags       []FlagDef
	Run         CommandHandler
}

// Args are the parsed arguments of one invocation.
type Args struct {
	Positional []string
	Flags      map[string]interface{}
}

// Has reports whether flag name was supplied.
func (a Args) Has(name string) bool {
	_, ok := a.Flags[name]
	return ok
}

// String returns flag name formatted as a string, or "" when absent.
func (a Args) String(name string) string {
	v, ok := a.Flags[name]
	if !ok || v == nil {
		return ""
	}
	if s, ok := v.(string); ok {
		return s
	}
	return fmt.Sprint(v)
}

// Bool returns flag name as a bool.
func (a Args) Bool(name string) bool {
	return cast.ToBool(a.Flags[name])
}

// Int returns flag name as an int.
func (a Args) Int(name string) int {
	return cast.ToInt(a.Flags[name])
}

// Float returns flag name as a float64.
func (a Args) Float(name string) float64 {
	return cast.ToFloat64(a.Flags[name])
}

// StringSlice returns flag name as a []string.
func (a Args) StringSlice(name string) []string {
	v, ok := a.Flags[name]
	if !ok || v == nil {
		return nil
	}
	return cast.ToStringSlice(v)
}

// Clone returns a copy that shares no mutable state with a. Slice-valued
// flags are copied too; other values are treated as immutable.
func (a Args) Clone() Args {
	out := Args{Positional: slices.Clone(a.Positional), Flags: maps.Clone(a.Flags)}
	for k, v := range out.Flags {
		switch tv := v.(type) {
		case []string:
			out.Flags[k] = slices.Clone(tv)
		case []interface{}:
			out.Flags[k] = slices.Clone(tv)
		}
	}
	return out
}

// Record is the bookkeeping entry for a successfully loaded plugin. It is
// created once and never mutated.
type Record struct {
	Manifest Manifest
	Source   string
	LoadedAt time.Time
	Commands []string

	plugin Plugin
}

// Plugin returns the loaded plugin instance.
func (r *Record) Plugin() Plugin { return r.plugin }
