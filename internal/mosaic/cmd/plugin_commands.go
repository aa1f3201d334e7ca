package cmd

import (
	"github.com/spf13/cast"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/kiosk404/mosaic/internal/mosaic/service/plugin"
	"github.com/kiosk404/mosaic/pkg/logger"
)

const annotationPlugin = "mosaic.plugin"

// pluginCommands turns every live command into a cobra subcommand. Commands
// whose names are taken by host commands stay reachable only through the
// registry listing.
func (a *App) pluginCommands(global *pflag.FlagSet, reserved map[string]bool) []*cobra.Command {
	var cmds []*cobra.Command
	for _, info := range a.host.ListCommands() {
		if reserved[info.Name] {
			logger.Warn("[CLI] command %q from plugin %q is shadowed by a host command", info.Name, info.Plugin)
			continue
		}
		cmds = append(cmds, a.newPluginCommand(info, global))
	}
	return cmds
}

func (a *App) newPluginCommand(info plugin.CommandInfo, global *pflag.FlagSet) *cobra.Command {
	short := info.Description
	if short == "" {
		short = "Provided by plugin " + info.Plugin
	}
	cmd := &cobra.Command{
		Use:         info.Name + " [args...]",
		Short:       short,
		Annotations: map[string]string{annotationPlugin: info.Plugin},
		Args:        cobra.ArbitraryArgs,
		RunE: func(c *cobra.Command, args []string) error {
			return a.execute(c.Context(), info.Name, plugin.Args{
				Positional: args,
				Flags:      collectFlags(c.Flags(), info.Flags),
			})
		},
	}
	for _, def := range info.Flags {
		addFlag(cmd, def, global)
	}
	return cmd
}

// addFlag defines def on cmd. A shorthand already in use is dropped, since
// pflag cannot hold two flags with the same shorthand.
func addFlag(cmd *cobra.Command, def plugin.FlagDef, global *pflag.FlagSet) {
	fs := cmd.Flags()
	if fs.Lookup(def.Name) != nil {
		logger.Warn("[CLI] command %s declares --%s more than once, keeping the first", cmd.Name(), def.Name)
		return
	}
	shorthand := def.Shorthand
	if shorthand != "" && (global.ShorthandLookup(shorthand) != nil || fs.ShorthandLookup(shorthand) != nil) {
		logger.Debug("[CLI] dropping shorthand -%s of %s --%s, it is already in use", shorthand, cmd.Name(), def.Name)
		shorthand = ""
	}

	switch def.Type {
	case plugin.FlagBool:
		fs.BoolP(def.Name, shorthand, cast.ToBool(def.Default), def.Usage)
	case plugin.FlagInt:
		fs.IntP(def.Name, shorthand, cast.ToInt(def.Default), def.Usage)
	case plugin.FlagFloat:
		fs.Float64P(def.Name, shorthand, cast.ToFloat64(def.Default), def.Usage)
	case plugin.FlagStringSlice:
		fs.StringSliceP(def.Name, shorthand, cast.ToStringSlice(def.Default), def.Usage)
	default:
		fs.StringP(def.Name, shorthand, cast.ToString(def.Default), def.Usage)
	}

	if def.Required {
		_ = cmd.MarkFlagRequired(def.Name)
	}
}

// collectFlags returns the parsed values of the declared flags. A flag
// without a default that was not given on the command line is left out, so
// handlers can tell it apart with Args.Has.
func collectFlags(fs *pflag.FlagSet, defs []plugin.FlagDef) map[string]interface{} {
	out := make(map[string]interface{}, len(defs))
	for _, def := range defs {
		f := fs.Lookup(def.Name)
		if f == nil || (!f.Changed && def.Default == nil) {
			continue
		}

		var (
			v   interface{}
			err error
		)
		switch def.Type {
		case plugin.FlagBool:
			v, err = fs.GetBool(def.Name)
		case plugin.FlagInt:
			v, err = fs.GetInt(def.Name)
		case plugin.FlagFloat:
			v, err = fs.GetFloat64(def.Name)
		case plugin.FlagStringSlice:
			v, err = fs.GetStringSlice(def.Name)
		default:
			v, err = fs.GetString(def.Name)
		}
		if err != nil {
			// The name belongs to a global flag of another type.
			logger.Debug("[CLI] flag --%s: %v", def.Name, err)
			continue
		}
		out[def.Name] = v
	}
	return out
}
