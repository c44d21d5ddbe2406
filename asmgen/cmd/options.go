package cmd

import (
	"os"

	"github.com/mattn/go-isatty"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/sarchlab/asmgen/config"
	"github.com/sarchlab/asmgen/generator"
	"github.com/sarchlab/asmgen/logging"
)

// options are the flags shared by all subcommands.
type options struct {
	configPath string
	envFiles   []string
	deviceConf string
	cacheTypes string
	outputDir  string
	machine    string
	levels     []string
	verbose    bool
	quiet      bool
}

func (o *options) register(cmd *cobra.Command) {
	f := cmd.PersistentFlags()
	f.StringVarP(&o.configPath, "config", "c", "", "YAML configuration file")
	f.StringSliceVar(&o.envFiles, "env-file", []string{".env"}, "dotenv files to load if they exist")
	f.StringVar(&o.deviceConf, "device-conf", "", "device configuration header (default device_conf.h)")
	f.StringVar(&o.cacheTypes, "cache-types", "", "cache types header (default cache_types.h)")
	f.StringVarP(&o.outputDir, "out", "o", "", "output directory (default .)")
	f.StringVar(&o.machine, "machine", "", "target machine (default x86_64)")
	f.StringSliceVarP(&o.levels, "levels", "l", nil, "cache levels to generate (default L1,L2)")
	f.BoolVarP(&o.verbose, "verbose", "v", false, "log debug output")
	f.BoolVarP(&o.quiet, "quiet", "q", false, "log warnings and errors only")
}

// load merges defaults, the YAML file, the environment and the flags, in
// increasing priority.
func (o *options) load(cmd *cobra.Command) (*config.Config, error) {
	if err := config.LoadEnvFiles(o.envFiles...); err != nil {
		return nil, err
	}

	cfg := config.Default()
	if o.configPath != "" {
		var err error
		cfg, err = config.LoadConfig(o.configPath)
		if err != nil {
			return nil, err
		}
	}

	cfg.ApplyEnv(os.LookupEnv)

	flags := cmd.Flags()
	if flags.Changed("device-conf") {
		cfg.DeviceConf = o.deviceConf
	}
	if flags.Changed("cache-types") {
		cfg.CacheTypes = o.cacheTypes
	}
	if flags.Changed("out") {
		cfg.OutputDir = o.outputDir
	}
	if flags.Changed("machine") {
		cfg.Machine = o.machine
	}
	if flags.Changed("levels") {
		cfg.Levels = o.levels
	}

	cfg.AdjustConfig()

	return cfg, cfg.Validate()
}

func (o *options) logger(cmd *cobra.Command) zerolog.Logger {
	v := logging.Normal
	switch {
	case o.verbose:
		v = logging.Verbose
	case o.quiet:
		v = logging.Silent
	}

	w := cmd.ErrOrStderr()
	color := false
	if f, ok := w.(*os.File); ok {
		color = isatty.IsTerminal(f.Fd())
	}

	return logging.New(w, v, color)
}

// build loads the configuration and builds a generator from it.
func (o *options) build(cmd *cobra.Command) (*generator.Generator, *config.Config, error) {
	cfg, err := o.load(cmd)
	if err != nil {
		return nil, nil, err
	}

	g, err := generator.MakeBuilder().
		WithConfig(*cfg).
		WithLogger(o.logger(cmd)).
		Build()
	if err != nil {
		return nil, nil, err
	}

	return g, cfg, nil
}
