package main

import (
	"fmt"
	"log/slog"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// Cfg holds the run configuration.
var Cfg *viper.Viper

var logger = slog.New(slog.NewTextHandler(os.Stderr, nil))

var options []struct {
	name, usage, shorthand string
	defaultVal             interface{}
	flagsets               []*pflag.FlagSet
}

func init() {
	options = []struct {
		name, usage, shorthand string
		defaultVal             interface{}
		flagsets               []*pflag.FlagSet
	}{
		{
			name: "config",
			usage: `
              config specifies the configuration file location.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "log-level",
			usage: `
              log-level is one of debug, info, warn or error.`,
			defaultVal: "info",
			flagsets:   []*pflag.FlagSet{Root.PersistentFlags()},
		},
		{
			name: "source",
			usage: `
              source is a local directory of dive files or the URL of a
              basestation directory index page.`,
			shorthand:  "s",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{convertCmd.Flags()},
		},
		{
			name: "start",
			usage: `
              start is the first profile number to convert. All profiles
              are converted from the first one if it is not set.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{convertCmd.Flags()},
		},
		{
			name: "end",
			usage: `
              end is the last profile number to convert. All profiles are
              converted up to the last one if it is not set.`,
			defaultVal: 0,
			flagsets:   []*pflag.FlagSet{convertCmd.Flags()},
		},
		{
			name: "output",
			usage: `
              output is the path of the file to write. For convert it is
              the OG1 NetCDF file; for registry it is the registry file,
              and the registry is printed if it is not set.`,
			shorthand:  "o",
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{convertCmd.Flags(), registryCmd.Flags()},
		},
		{
			name: "registry",
			usage: `
              registry is the file listing the digest of every remote
              dive file. It is required for remote sources.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{convertCmd.Flags()},
		},
		{
			name: "cache-dir",
			usage: `
              cache-dir is where downloaded dive files are kept. The
              default is a directory in the user cache directory.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{convertCmd.Flags()},
		},
		{
			name: "timeout",
			usage: `
              timeout bounds every HTTP request. Zero means no limit.`,
			defaultVal: 2 * time.Minute,
			flagsets:   []*pflag.FlagSet{convertCmd.Flags()},
		},
		{
			name: "concurrency",
			usage: `
              concurrency is the number of dive files loaded at once.`,
			shorthand:  "c",
			defaultVal: runtime.NumCPU(),
			flagsets:   []*pflag.FlagSet{convertCmd.Flags()},
		},
		{
			name: "vocab-dir",
			usage: `
              vocab-dir is a directory holding OG1_vocab_attrs.yaml,
              OG1_sensor_attrs.yaml or OG1_global_attrs.yaml to use
              instead of the built-in documents.`,
			defaultVal: "",
			flagsets:   []*pflag.FlagSet{convertCmd.Flags()},
		},
		{
			name: "skip-malformed",
			usage: `
              skip-malformed skips dive files whose names carry no
              profile number instead of failing.`,
			defaultVal: false,
			flagsets:   []*pflag.FlagSet{convertCmd.Flags()},
		},
		{
			name: "sensor",
			usage: `
              sensor adds a sensor variable from the sensor vocabulary.
              It may be repeated.`,
			defaultVal: []string{},
			flagsets:   []*pflag.FlagSet{convertCmd.Flags()},
		},
	}

	Cfg = viper.New()
	Cfg.SetEnvPrefix("SEAGLIDEROG1")
	Cfg.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	Cfg.AutomaticEnv()

	for _, option := range options {
		for i, set := range option.flagsets {
			if i != 0 {
				set.AddFlag(option.flagsets[0].Lookup(option.name))
				continue
			}
			switch v := option.defaultVal.(type) {
			case string:
				set.StringP(option.name, option.shorthand, v, option.usage)
			case []string:
				set.StringSliceP(option.name, option.shorthand, v, option.usage)
			case bool:
				set.BoolP(option.name, option.shorthand, v, option.usage)
			case int:
				set.IntP(option.name, option.shorthand, v, option.usage)
			case time.Duration:
				set.DurationP(option.name, option.shorthand, v, option.usage)
			default:
				panic("invalid argument type")
			}
			Cfg.BindPFlag(option.name, set.Lookup(option.name))
		}
	}
}

func init() {
	Root.AddCommand(convertCmd)
	Root.AddCommand(registryCmd)
}

// Root is the main command.
var Root = &cobra.Command{
	Use:   "seagliderOG1",
	Short: "Convert Seaglider dive files to OG1.",
	Long: `seagliderOG1 converts the per-dive NetCDF files of a Seaglider basestation
into a single OceanGliders 1.0 (OG1) trajectory file.

Configuration can be changed by using a configuration file (and providing the
path to the file using the --config flag), by using command-line arguments,
or by setting environment variables in the format 'SEAGLIDEROG1_var' where 'var'
is the name of the option with dashes replaced by underscores.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	DisableAutoGenTag: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := setConfig(); err != nil {
			return err
		}
		return setLogger()
	},
}

// setConfig finds and reads in the configuration file, if there is one.
func setConfig() error {
	if cfgpath := Cfg.GetString("config"); cfgpath != "" {
		Cfg.SetConfigFile(cfgpath)
		if err := Cfg.ReadInConfig(); err != nil {
			return fmt.Errorf("seagliderOG1: problem reading configuration file: %v", err)
		}
	}
	return nil
}

func setLogger() error {
	var level slog.Level
	if err := level.UnmarshalText([]byte(Cfg.GetString("log-level"))); err != nil {
		return fmt.Errorf("seagliderOG1: %v", err)
	}
	logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	return nil
}
