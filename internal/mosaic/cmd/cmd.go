package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kiosk404/mosaic/internal/mosaic/config"
	"github.com/kiosk404/mosaic/internal/mosaic/options"
	"github.com/kiosk404/mosaic/internal/mosaic/service/history"
	"github.com/kiosk404/mosaic/internal/mosaic/service/plugin"
	"github.com/kiosk404/mosaic/internal/mosaic/service/plugin/builtin"
	"github.com/kiosk404/mosaic/pkg/cli/genericclioptions"
	"github.com/kiosk404/mosaic/pkg/errorx"
	"github.com/kiosk404/mosaic/pkg/logger"
	"github.com/kiosk404/mosaic/pkg/utils/cliflag"
	"github.com/kiosk404/mosaic/pkg/utils/templates"
	"github.com/kiosk404/mosaic/pkg/version/verflag"
)

const (
	rootName        = "mosaic"
	envPrefix       = "MOSAIC"
	flagConfig      = "config"
	shutdownTimeout = 10 * time.Second
)

// App is one run of the mosaic front end: options resolved from flags,
// environment and config file, a loaded plugin host and the journal backing
// the history plugin.
type App struct {
	opts       *options.Options
	cfg        *config.Config
	viper      *viper.Viper
	fss        cliflag.NamedFlagSets
	configFile string
	streams    genericclioptions.IOStreams

	host    *plugin.Host
	journal *history.Module
}

// NewApp creates an App with default options. Nothing is loaded until Run.
func NewApp(streams genericclioptions.IOStreams) *App {
	a := &App{
		opts:    options.NewOptions(),
		viper:   viper.New(),
		streams: streams,
	}
	a.fss = a.opts.Flags()
	generic := a.fss.FlagSet("generic")
	generic.StringVar(&a.configFile, flagConfig, "", "Path to the config file (default $HOME/.mosaic/mosaic.yaml).")
	verflag.AddFlags(generic)
	return a
}

// Run loads the plugin host, executes the command named by args and tears
// the host down. It returns the process exit code.
func Run(ctx context.Context, args []string, streams genericclioptions.IOStreams) int {
	return NewApp(streams).Run(ctx, args)
}

func (a *App) Run(ctx context.Context, args []string) int {
	if err := a.bootstrap(ctx, args); err != nil {
		if a.host != nil {
			a.teardown(ctx)
		}
		a.printError(err)
		return int(plugin.ExitFailure)
	}
	defer logger.FlushLog()
	defer a.teardown(ctx)

	root := NewMosaicCommand(a)
	root.SetArgs(args)
	root.SetIn(a.streams.In)
	root.SetOut(a.streams.Out)
	root.SetErr(a.streams.ErrOut)

	err := root.ExecuteContext(ctx)
	if err == nil {
		return int(plugin.ExitSuccess)
	}
	a.printError(err)
	return errorx.ParseCoder(err).ExitCode()
}

// bootstrap resolves the options and runs the load phase. Global flags are
// read ahead of cobra because the command tree depends on what gets loaded.
func (a *App) bootstrap(ctx context.Context, args []string) error {
	fs := pflag.NewFlagSet(rootName, pflag.ContinueOnError)
	fs.ParseErrorsWhitelist.UnknownFlags = true
	fs.SetOutput(io.Discard)
	fs.SetNormalizeFunc(cliflag.WordSepNormalizeFunc)
	a.fss.AddTo(fs)
	if err := fs.Parse(args); err != nil && !errors.Is(err, pflag.ErrHelp) {
		return err
	}
	verflag.PrintAndExitIfRequested(a.streams.Out)

	if err := a.loadConfig(fs); err != nil {
		return err
	}
	cfg, err := config.CreateConfigFromOptions(a.opts)
	if err != nil {
		return err
	}
	if errs := a.opts.Validate(); len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	a.cfg = cfg
	if err := logger.InitLog(a.opts.Log); err != nil {
		return err
	}
	logger.Debug("[CLI] options: %s", a.opts)

	return a.loadHost(ctx)
}

// loadConfig layers the config file, MOSAIC_* environment variables and
// command-line flags, in increasing precedence, onto the options.
func (a *App) loadConfig(fs *pflag.FlagSet) error {
	v := a.viper
	if a.configFile != "" {
		v.SetConfigFile(a.configFile)
	} else if home, err := os.UserHomeDir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".mosaic"))
		v.SetConfigName(rootName)
		v.SetConfigType("yaml")
	}
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()

	if err := v.BindPFlags(fs); err != nil {
		return err
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if a.configFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("read config: %w", err)
		}
	} else {
		logger.Debug("[CLI] using config file %s", v.ConfigFileUsed())
	}
	return v.Unmarshal(a.opts)
}

func (a *App) loadHost(ctx context.Context) error {
	intree := builtin.NewInTreeRegistry()
	host, err := (&plugin.Config{
		Sources:            a.cfg.Sources(intree),
		Logger:             logger.Std(),
		Settings:           a.viper,
		IOStreams:          a.streams,
		AtomicRegistration: a.opts.Plugins.AtomicRegistration,
		Deny:               a.opts.Plugins.Deny,
		InTree:             intree,
	}).Complete().New()
	if err != nil {
		return err
	}
	a.host = host

	// A journal that cannot be opened only costs the history plugin, which
	// then fails to register and shows up in the load report.
	if hc, enabled := a.cfg.HistoryConfig(); enabled {
		journal, err := hc.New(ctx)
		if err != nil {
			logger.Warn("[CLI] invocation history disabled: %v", err)
		} else {
			a.journal = journal
			if err := host.ProvideService(history.HistoryToken.ServiceToken, journal.Repo); err != nil {
				return err
			}
		}
	}

	report, err := host.Load(ctx)
	if err != nil {
		return err
	}
	printLoadWarnings(a.streams.ErrOut, report)
	return nil
}

func (a *App) teardown(ctx context.Context) {
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()

	if err := a.host.Shutdown(shutdownCtx); err != nil {
		logger.Warn("[CLI] plugin teardown: %v", err)
	}
	if a.journal != nil {
		if err := a.journal.Close(); err != nil {
			logger.Warn("[CLI] close history journal: %v", err)
		}
	}
}

func (a *App) printError(err error) {
	fmt.Fprintf(a.streams.ErrOut, "%s %v\n", color.RedString("Error:"), err)
	if errorx.IsCode(err, plugin.CodeCommandNotFound) {
		fmt.Fprintf(a.streams.ErrOut, "Run '%s commands' to list the available commands.\n", rootName)
	}
}

// printLoadWarnings reports skipped sources and name conflicts once, after
// the load phase.
func printLoadWarnings(w io.Writer, report *plugin.LoadReport) {
	skipped := report.Skipped()
	if len(skipped) == 0 && len(report.Conflicts) == 0 {
		return
	}
	fmt.Fprintf(w, "%s %s\n", color.YellowString("Warning:"), report.Summary())
	for _, res := range skipped {
		fmt.Fprintf(w, "  %s %s: %v\n", res.Status, res.Source, res.Err)
	}
	for _, err := range report.Conflicts {
		fmt.Fprintf(w, "  conflict: %v\n", err)
	}
}

// NewMosaicCommand builds the command tree for a loaded App: one subcommand
// per live plugin command plus the host's own commands.
func NewMosaicCommand(a *App) *cobra.Command {
	cmds := &cobra.Command{
		Use:   rootName,
		Short: "mosaic runs commands contributed by plugins",
		Long: templates.LongDesc(fmt.Sprintf(`%s
		mosaic is a plugin host. Every command it runs is contributed by a plugin
		loaded from an ordered list of sources: in-tree plugins, Go shared objects
		and declarative YAML manifests.

		Plugins may also observe every invocation through lifecycle hooks and share
		capabilities with each other through the service registry.`, Banner())),
		Example: templates.Examples(`
		# List the commands contributed by the loaded plugins
		mosaic commands

		# Load an extra plugin for one run
		mosaic --plugins.sources=./plugins/deploy.so deploy --env staging

		# Show why a plugin source was skipped
		mosaic plugins`),
		// Names that match no subcommand still go through the engine so the
		// commandNotFound hook fires and the exit status is reported.
		Args:               cobra.ArbitraryArgs,
		FParseErrWhitelist: cobra.FParseErrWhitelist{UnknownFlags: true},
		SilenceErrors:      true,
		SilenceUsage:       true,
		RunE: func(c *cobra.Command, args []string) error {
			if len(args) == 0 {
				return c.Help()
			}
			return a.execute(c.Context(), args[0], plugin.Args{Positional: args[1:]})
		},
	}
	cmds.CompletionOptions.DisableDefaultCmd = true

	flags := cmds.PersistentFlags()
	flags.SetNormalizeFunc(cliflag.WordSepNormalizeFunc)
	a.fss.AddTo(flags)

	// From this point and forward we get warnings on flags that contain "_" separators
	cmds.SetGlobalNormalizationFunc(cliflag.WarnWordSepNormalizeFunc)

	hostCmds := []*cobra.Command{
		NewCmdCommands(a),
		NewCmdPlugins(a),
		NewCmdVersion(a),
		NewCmdOptions(a),
	}
	reserved := map[string]bool{"help": true}
	for _, c := range hostCmds {
		reserved[c.Name()] = true
	}

	groups := templates.CommandGroups{
		{
			ID:       "plugins",
			Message:  "Plugin Commands:",
			Commands: a.pluginCommands(flags, reserved),
		},
		{
			ID:       "host",
			Message:  "Host Commands:",
			Commands: hostCmds,
		},
	}
	groups.Add(cmds)

	return cmds
}

func (a *App) execute(ctx context.Context, name string, args plugin.Args) error {
	_, err := a.host.Execute(ctx, name, args)
	return err
}
