package plugin

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strconv"
	"strings"
)

// Descriptor is the untyped candidate produced by the manifest loader: a
// decoded plugin.yaml and the directory it was read from.
type Descriptor struct {
	Dir string
	Raw map[string]interface{}
}

type declaredCommand struct {
	Name        string
	Description string
	Flags       []FlagDef
	Exec        []string
}

// declarativePlugin is a plugin built from a validated descriptor. Its
// commands and hooks run external executables.
type declarativePlugin struct {
	manifest Manifest
	dir      string
	commands []CommandDefinition
	hooks    map[HookEvent]HookHandler
}

var (
	_ Plugin       = (*declarativePlugin)(nil)
	_ HookProvider = (*declarativePlugin)(nil)
)

func newDeclarativePlugin(m Manifest, dir string, cmds []declaredCommand, hooks map[HookEvent][]string) *declarativePlugin {
	p := &declarativePlugin{
		manifest: m,
		dir:      dir,
		hooks:    make(map[HookEvent]HookHandler, len(hooks)),
	}
	for _, dc := range cmds {
		argv := dc.Exec
		p.commands = append(p.commands, CommandDefinition{
			Name:        dc.Name,
			Description: dc.Description,
			Flags:       dc.Flags,
			Run: func(ec *ExecutionContext, args Args) error {
				return p.run(ec, argv, args)
			},
		})
	}
	for event, argv := range hooks {
		argv := argv
		p.hooks[event] = func(ctx context.Context, payload *HookPayload) error {
			return p.runHook(ctx, argv, payload)
		}
	}
	return p
}

func (p *declarativePlugin) Manifest() Manifest { return p.manifest }

func (p *declarativePlugin) Commands() []CommandDefinition { return p.commands }

func (p *declarativePlugin) Hooks() map[HookEvent]HookHandler { return p.hooks }

func (p *declarativePlugin) run(ec *ExecutionContext, argv []string, args Args) error {
	full := append(append([]string{}, argv...), args.Positional...)
	cmd := exec.CommandContext(ec.Context(), full[0], full[1:]...)
	cmd.Dir = p.dir
	cmd.Stdout = ec.Out
	cmd.Stderr = ec.ErrOut

	env := append(os.Environ(),
		"MOSAIC_COMMAND="+ec.Command,
		"MOSAIC_INVOCATION_ID="+ec.InvocationID,
		"MOSAIC_PLUGIN="+p.manifest.Name,
	)
	cmd.Env = append(env, flagEnv(args.Flags)...)

	if ec.Logger != nil {
		ec.Logger.Debug("[Plugin] exec %s", strings.Join(full, " "))
	}
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", full[0], err)
	}
	return nil
}

func (p *declarativePlugin) runHook(ctx context.Context, argv []string, payload *HookPayload) error {
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = p.dir
	if payload.Exec != nil {
		cmd.Stdout = payload.Exec.ErrOut
		cmd.Stderr = payload.Exec.ErrOut
	}

	env := append(os.Environ(),
		"MOSAIC_EVENT="+string(payload.Event),
		"MOSAIC_COMMAND="+payload.Command,
		"MOSAIC_PLUGIN="+p.manifest.Name,
	)
	if payload.Event == HookPostRun {
		env = append(env, "MOSAIC_SUCCESS="+strconv.FormatBool(payload.Success))
	}
	if payload.Err != nil {
		env = append(env, "MOSAIC_ERROR="+payload.Err.Error())
	}
	if payload.Exec != nil {
		env = append(env, "MOSAIC_INVOCATION_ID="+payload.Exec.InvocationID)
	}
	cmd.Env = env

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w", argv[0], err)
	}
	return nil
}

// flagEnv renders flags as MOSAIC_FLAG_<NAME>=value pairs, sorted by name.
// Dashes in flag names become underscores; slices are comma-joined.
func flagEnv(flags map[string]interface{}) []string {
	names := make([]string, 0, len(flags))
	for name := range flags {
		names = append(names, name)
	}
	sort.Strings(names)

	env := make([]string, 0, len(names))
	for _, name := range names {
		key := "MOSAIC_FLAG_" + strings.ToUpper(strings.ReplaceAll(name, "-", "_"))
		var val string
		switch v := flags[name].(type) {
		case []string:
			val = strings.Join(v, ",")
		case nil:
		default:
			val = fmt.Sprint(v)
		}
		env = append(env, key+"="+val)
	}
	return env
}
