// Package history is the in-tree plugin that journals every invocation and
// lists the journal with the history command.
package history

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/gg/gptr"
	"github.com/fatih/color"
	"github.com/gosuri/uitable"

	historymod "github.com/kiosk404/mosaic/internal/mosaic/service/history"
	"github.com/kiosk404/mosaic/internal/mosaic/service/history/domain/entity"
	"github.com/kiosk404/mosaic/internal/mosaic/service/history/domain/repo"
	"github.com/kiosk404/mosaic/internal/mosaic/service/plugin"
	"github.com/kiosk404/mosaic/pkg/logger"
	"github.com/kiosk404/mosaic/pkg/utils/json"
)

// PluginName is the unique identifier for this plugin.
const PluginName = "history"

const defaultLimit = 20

type historyPlugin struct {
	repo repo.InvocationRepository
	log  logger.Logger
}

var (
	_ plugin.Plugin       = (*historyPlugin)(nil)
	_ plugin.Registrar    = (*historyPlugin)(nil)
	_ plugin.HookProvider = (*historyPlugin)(nil)
)

// Factory creates the history plugin. The journal itself is resolved from
// the service registry during registration.
func Factory() (plugin.Plugin, error) {
	return &historyPlugin{}, nil
}

func (p *historyPlugin) Manifest() plugin.Manifest {
	return plugin.Manifest{
		Name:        PluginName,
		Version:     "1.0.0",
		Description: "Journals command invocations and lists them",
	}
}

func (p *historyPlugin) Commands() []plugin.CommandDefinition {
	return []plugin.CommandDefinition{{
		Name:        "history",
		Description: "List recent command invocations",
		Flags: []plugin.FlagDef{
			{Name: "limit", Shorthand: "n", Type: plugin.FlagInt, Default: defaultLimit, Usage: "Maximum number of entries to show (0 for all)"},
			{Name: "command", Shorthand: "c", Type: plugin.FlagString, Usage: "Only show invocations of this command"},
			{Name: "failed", Type: plugin.FlagBool, Usage: "Only show failed invocations"},
			{Name: "output", Shorthand: "o", Type: plugin.FlagString, Default: "table", Usage: "Output format: table or json"},
		},
		Run: p.list,
	}}
}

// Register resolves the journal. Without it the plugin cannot work, so a
// missing service aborts its registration.
func (p *historyPlugin) Register(api plugin.PluginAPI) error {
	r, err := plugin.ResolveAs(api, historymod.HistoryToken)
	if err != nil {
		return err
	}
	p.repo = r
	p.log = api.Logger()
	return nil
}

func (p *historyPlugin) Hooks() map[plugin.HookEvent]plugin.HookHandler {
	return map[plugin.HookEvent]plugin.HookHandler{
		plugin.HookPostRun: p.record,
	}
}

func (p *historyPlugin) record(ctx context.Context, payload *plugin.HookPayload) error {
	ec := payload.Exec
	if ec == nil || p.repo == nil {
		return nil
	}
	inv := &entity.Invocation{
		ID:        ec.InvocationID,
		Command:   payload.Command,
		Plugin:    ec.Plugin,
		Success:   payload.Success,
		StartedAt: ec.StartedAt,
		Duration:  time.Since(ec.StartedAt),
	}
	if payload.Err != nil {
		inv.Error = payload.Err.Error()
	}
	// Journaling must not be cut short by a cancelled invocation.
	if err := p.repo.Append(context.WithoutCancel(ctx), inv); err != nil {
		return fmt.Errorf("append invocation: %w", err)
	}
	return nil
}

func (p *historyPlugin) list(ec *plugin.ExecutionContext, args plugin.Args) error {
	q := entity.Query{Limit: defaultLimit, FailedOnly: args.Bool("failed")}
	if args.Has("limit") {
		q.Limit = args.Int("limit")
	}
	if q.Limit < 0 {
		return fmt.Errorf("--limit must not be negative")
	}
	if c := args.String("command"); c != "" {
		q.Command = gptr.Of(c)
	}

	invs, err := p.repo.List(ec.Context(), q)
	if err != nil {
		return err
	}

	switch args.String("output") {
	case "", "table":
		return writeTable(ec, invs)
	case "json":
		data, err := json.MarshalIndent(invs, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(ec.Out, string(data))
		return err
	}
	return fmt.Errorf("unknown output format %q (must be table or json)", args.String("output"))
}

func writeTable(ec *plugin.ExecutionContext, invs []*entity.Invocation) error {
	if len(invs) == 0 {
		_, err := fmt.Fprintln(ec.Out, "No invocations recorded.")
		return err
	}
	table := uitable.New()
	table.MaxColWidth = 60
	table.AddRow("STARTED", "COMMAND", "PLUGIN", "STATUS", "DURATION", "ERROR")
	for _, inv := range invs {
		status := color.GreenString("ok")
		if !inv.Success {
			status = color.RedString("failed")
		}
		table.AddRow(
			inv.StartedAt.Local().Format(time.DateTime),
			inv.Command,
			inv.Plugin,
			status,
			inv.Duration.Round(time.Millisecond),
			inv.Error,
		)
	}
	_, err := fmt.Fprintln(ec.Out, table.String())
	return err
}
