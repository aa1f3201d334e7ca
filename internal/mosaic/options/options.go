package options

import (
	"github.com/spf13/pflag"

	"github.com/kiosk404/mosaic/pkg/logger"
	"github.com/kiosk404/mosaic/pkg/utils/cliflag"
	"github.com/kiosk404/mosaic/pkg/utils/json"
)

// Options holds everything the mosaic front end can be configured with.
type Options struct {
	Plugins *PluginsOptions `json:"plugins" mapstructure:"plugins"`
	History *HistoryOptions `json:"history" mapstructure:"history"`
	Log     *logger.Options `json:"log"     mapstructure:"log"`
	Verbose bool            `json:"verbose" mapstructure:"verbose"`
}

func NewOptions() *Options {
	return &Options{
		Plugins: NewPluginsOptions(),
		History: NewHistoryOptions(),
		Log:     logger.NewOptions(),
	}
}

func (o *Options) Flags() (fss cliflag.NamedFlagSets) {
	o.Plugins.AddFlags(fss.FlagSet("plugins"))
	o.History.AddFlags(fss.FlagSet("history"))
	addLogFlags(o.Log, fss.FlagSet("log"))
	fss.FlagSet("generic").BoolVarP(&o.Verbose, "verbose", "v", o.Verbose, "Enable debug output.")
	return fss
}

func addLogFlags(o *logger.Options, fs *pflag.FlagSet) {
	fs.StringVar(&o.Level, "log.level", o.Level, "Minimum log level: debug, info, warn or error.")
	fs.StringVar(&o.Format, "log.format", o.Format, "Log format: text or json.")
	fs.StringVar(&o.Output, "log.output", o.Output, "Log destination: stderr, stdout or a file path.")
}

// Validate checks every option group and returns all problems found.
func (o *Options) Validate() []error {
	var errs []error
	errs = append(errs, o.Plugins.Validate()...)
	errs = append(errs, o.History.Validate()...)
	errs = append(errs, o.Log.Validate()...)
	return errs
}

// Complete fills values that depend on other options.
func (o *Options) Complete() error {
	o.Log.Verbose = o.Verbose
	return nil
}

func (o *Options) String() string {
	data, _ := json.Marshal(o)

	return string(data)
}
