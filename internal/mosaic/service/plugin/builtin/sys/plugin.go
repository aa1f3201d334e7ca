// Package sys is the in-tree plugin with small host utilities.
package sys

import (
	"fmt"
	"sort"
	"strings"

	"github.com/gosuri/uitable"

	"github.com/kiosk404/mosaic/internal/mosaic/service/plugin"
	"github.com/kiosk404/mosaic/pkg/utils/json"
)

// PluginName is the unique identifier for this plugin.
const PluginName = "sys"

type sysPlugin struct{}

// Factory creates the sys plugin.
func Factory() (plugin.Plugin, error) {
	return &sysPlugin{}, nil
}

func (p *sysPlugin) Manifest() plugin.Manifest {
	return plugin.Manifest{
		Name:        PluginName,
		Version:     "1.0.0",
		Description: "Host utilities: inspect settings and echo text",
	}
}

func (p *sysPlugin) Commands() []plugin.CommandDefinition {
	return []plugin.CommandDefinition{
		{
			Name:        "env",
			Description: "Print the resolved settings",
			Flags: []plugin.FlagDef{
				{Name: "output", Shorthand: "o", Type: plugin.FlagString, Default: "table", Usage: "Output format: table or json"},
			},
			Run: env,
		},
		{
			Name:        "echo",
			Description: "Print the arguments",
			Flags: []plugin.FlagDef{
				{Name: "upper", Shorthand: "u", Type: plugin.FlagBool, Usage: "Upper-case the output"},
				{Name: "repeat", Shorthand: "r", Type: plugin.FlagInt, Default: 1, Usage: "Print the line this many times"},
				{Name: "sep", Type: plugin.FlagString, Default: " ", Usage: "Separator between arguments"},
			},
			Run: echo,
		},
	}
}

func env(ec *plugin.ExecutionContext, args plugin.Args) error {
	settings, err := plugin.ResolveAs(ec.Services, plugin.ConfigToken)
	if err != nil {
		return err
	}
	flat := map[string]interface{}{}
	flatten("", settings.AllSettings(), flat)

	switch args.String("output") {
	case "", "table":
		keys := make([]string, 0, len(flat))
		for k := range flat {
			keys = append(keys, k)
		}
		sort.Strings(keys)

		table := uitable.New()
		table.MaxColWidth = 80
		table.AddRow("KEY", "VALUE")
		for _, k := range keys {
			table.AddRow(k, fmt.Sprint(flat[k]))
		}
		_, err = fmt.Fprintln(ec.Out, table.String())
		return err
	case "json":
		data, err := json.MarshalIndent(flat, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(ec.Out, string(data))
		return err
	}
	return fmt.Errorf("unknown output format %q (must be table or json)", args.String("output"))
}

// flatten turns nested settings into dotted keys.
func flatten(prefix string, in map[string]interface{}, out map[string]interface{}) {
	for k, v := range in {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if nested, ok := v.(map[string]interface{}); ok {
			flatten(key, nested, out)
			continue
		}
		out[key] = v
	}
}

func echo(ec *plugin.ExecutionContext, args plugin.Args) error {
	sep := " "
	if args.Has("sep") {
		sep = args.String("sep")
	}
	line := strings.Join(args.Positional, sep)
	if args.Bool("upper") {
		line = strings.ToUpper(line)
	}
	repeat := 1
	if args.Has("repeat") {
		repeat = args.Int("repeat")
	}
	if repeat < 0 {
		return fmt.Errorf("--repeat must not be negative")
	}
	for i := 0; i < repeat; i++ {
		if err := ec.Err(); err != nil {
			return err
		}
		if _, err := fmt.Fprintln(ec.Out, line); err != nil {
			return err
		}
	}
	return nil
}
