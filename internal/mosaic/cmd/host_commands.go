package cmd

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/gosuri/uitable"
	"github.com/spf13/cobra"

	"github.com/kiosk404/mosaic/internal/mosaic/service/plugin"
	"github.com/kiosk404/mosaic/pkg/utils/cliflag"
	"github.com/kiosk404/mosaic/pkg/utils/json"
	"github.com/kiosk404/mosaic/pkg/utils/templates"
	"github.com/kiosk404/mosaic/pkg/version"
)

const (
	outputTable = "table"
	outputJSON  = "json"
)

func addOutputFlag(cmd *cobra.Command, output *string) {
	cmd.Flags().StringVarP(output, "output", "o", outputTable, "Output format: table or json")
}

func checkOutput(output string) error {
	if output != outputTable && output != outputJSON {
		return fmt.Errorf("unknown output format %q (must be table or json)", output)
	}
	return nil
}

func writeJSON(w io.Writer, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

type commandView struct {
	Name        string           `json:"name"`
	Plugin      string           `json:"plugin"`
	Description string           `json:"description,omitempty"`
	Flags       []plugin.FlagDef `json:"flags,omitempty"`
}

// NewCmdCommands lists the live commands in registration order.
func NewCmdCommands(a *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "commands",
		Short: "List the commands contributed by plugins",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			infos := a.host.ListCommands()
			if output == outputJSON {
				views := make([]commandView, 0, len(infos))
				for _, info := range infos {
					views = append(views, commandView{
						Name:        info.Name,
						Plugin:      info.Plugin,
						Description: info.Description,
						Flags:       info.Flags,
					})
				}
				return writeJSON(a.streams.Out, views)
			}

			if len(infos) == 0 {
				_, err := fmt.Fprintln(a.streams.Out, "No commands registered.")
				return err
			}
			table := uitable.New()
			table.MaxColWidth = 60
			table.AddRow("NAME", "PLUGIN", "FLAGS", "DESCRIPTION")
			for _, info := range infos {
				table.AddRow(info.Name, info.Plugin, flagSummary(info.Flags), info.Description)
			}
			_, err := fmt.Fprintln(a.streams.Out, table.String())
			return err
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}

func flagSummary(defs []plugin.FlagDef) string {
	names := make([]string, 0, len(defs))
	for _, def := range defs {
		name := "--" + def.Name
		if def.Required {
			name += "*"
		}
		names = append(names, name)
	}
	return strings.Join(names, " ")
}

type sourceView struct {
	Source  string `json:"source"`
	Plugin  string `json:"plugin,omitempty"`
	Version string `json:"version,omitempty"`
	Status  string `json:"status"`
	Error   string `json:"error,omitempty"`
}

// NewCmdPlugins prints the load report: every source, in order, with what
// became of it.
func NewCmdPlugins(a *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "plugins",
		Short: "Show the plugin load report",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			report := a.host.Report()
			versions := map[string]string{}
			for _, rec := range report.Loaded {
				versions[rec.Manifest.Name] = rec.Manifest.Version
			}
			views := make([]sourceView, 0, len(report.Results))
			for _, res := range report.Results {
				v := sourceView{Source: res.Source, Plugin: res.Plugin, Status: string(res.Status)}
				if res.Status == plugin.StatusLoaded {
					v.Version = versions[res.Plugin]
				}
				if res.Err != nil {
					v.Error = res.Err.Error()
				}
				views = append(views, v)
			}
			if output == outputJSON {
				return writeJSON(a.streams.Out, views)
			}

			table := uitable.New()
			table.MaxColWidth = 80
			table.Wrap = true
			table.AddRow("SOURCE", "PLUGIN", "VERSION", "STATUS", "ERROR")
			for _, v := range views {
				table.AddRow(v.Source, v.Plugin, v.Version, colorStatus(v.Status), v.Error)
			}
			fmt.Fprintln(a.streams.Out, table.String())
			fmt.Fprintln(a.streams.Out)
			fmt.Fprintln(a.streams.Out, report.Summary())
			for _, err := range report.Conflicts {
				fmt.Fprintf(a.streams.Out, "  conflict: %v\n", err)
			}
			return nil
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}

func colorStatus(status string) string {
	switch plugin.SourceStatus(status) {
	case plugin.StatusLoaded:
		return color.GreenString(status)
	case plugin.StatusSkipped:
		return color.YellowString(status)
	default:
		return color.RedString(status)
	}
}

// NewCmdVersion prints the build information.
func NewCmdVersion(a *App) *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print the version information",
		Args:  cobra.NoArgs,
		RunE: func(c *cobra.Command, _ []string) error {
			if err := checkOutput(output); err != nil {
				return err
			}
			info := version.Get()
			if output == outputJSON {
				_, err := fmt.Fprintln(a.streams.Out, info.ToJSON())
				return err
			}
			text, err := info.Text()
			if err != nil {
				return err
			}
			_, err = fmt.Fprintln(a.streams.Out, string(text))
			return err
		},
	}
	addOutputFlag(cmd, &output)
	return cmd
}

// NewCmdOptions prints the flags every command inherits.
func NewCmdOptions(a *App) *cobra.Command {
	return &cobra.Command{
		Use:   "options",
		Short: "Print the list of flags inherited by all commands",
		Long: templates.LongDesc(`
		Print the list of flags inherited by all commands.

		Every flag can also be set in the config file under the same dotted key,
		or through a MOSAIC_ environment variable with dots and dashes replaced by
		underscores, for example MOSAIC_HISTORY_STORE=sqlite.`),
		Args: cobra.NoArgs,
		Run: func(c *cobra.Command, _ []string) {
			cliflag.PrintSections(a.streams.Out, a.fss, templates.TerminalWidth())
		},
	}
}
