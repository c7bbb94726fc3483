package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cast"
	"github.com/spf13/cobra"

	"github.com/eleanorfrajka/seagliderOG1/internal/fetch"
	"github.com/eleanorfrajka/seagliderOG1/internal/og1"
	"github.com/eleanorfrajka/seagliderOG1/internal/source"
	"github.com/eleanorfrajka/seagliderOG1/internal/trajectory"
	"github.com/eleanorfrajka/seagliderOG1/internal/vocab"
)

var convertCmd = &cobra.Command{
	Use:   "convert",
	Short: "Convert dive files to an OG1 trajectory file.",
	Long: `convert selects the dive files of a source whose profile numbers lie
between --start and --end, merges them into one trajectory and writes it
as an OG1 NetCDF file to --output.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()
		cfg, err := convertConfig()
		if err != nil {
			return err
		}
		return convert(ctx, logger, cfg)
	},
	DisableAutoGenTag: true,
}

// convertOptions are the resolved settings of a conversion.
type convertOptions struct {
	source        source.Source
	rng           source.Range
	output        string
	registry      string
	cacheDir      string
	timeout       time.Duration
	workers       int
	vocabDir      string
	skipMalformed bool
	sensors       []string
}

// convertConfig reads the conversion settings from Cfg.
func convertConfig() (convertOptions, error) {
	var o convertOptions
	var err error
	if o.source, err = source.ParseSource(Cfg.GetString("source")); err != nil {
		return o, err
	}
	if o.rng.Start, err = optionalInt("start"); err != nil {
		return o, err
	}
	if o.rng.End, err = optionalInt("end"); err != nil {
		return o, err
	}
	if o.output = Cfg.GetString("output"); o.output == "" {
		return o, errors.New("seagliderOG1: --output is required")
	}
	if o.timeout, err = cast.ToDurationE(Cfg.Get("timeout")); err != nil {
		return o, fmt.Errorf("seagliderOG1: timeout: %v", err)
	}
	if o.workers, err = cast.ToIntE(Cfg.Get("concurrency")); err != nil {
		return o, fmt.Errorf("seagliderOG1: concurrency: %v", err)
	}
	if o.workers < 1 {
		return o, fmt.Errorf("seagliderOG1: concurrency must be positive, got %d", o.workers)
	}
	if o.sensors, err = cast.ToStringSliceE(Cfg.Get("sensor")); err != nil {
		return o, fmt.Errorf("seagliderOG1: sensor: %v", err)
	}
	o.registry = Cfg.GetString("registry")
	o.cacheDir = Cfg.GetString("cache-dir")
	o.vocabDir = Cfg.GetString("vocab-dir")
	o.skipMalformed = Cfg.GetBool("skip-malformed")
	return o, nil
}

// optionalInt returns nil for an option that was not set.
func optionalInt(name string) (*int, error) {
	if !Cfg.IsSet(name) {
		return nil, nil
	}
	v, err := cast.ToIntE(Cfg.Get(name))
	if err != nil {
		return nil, fmt.Errorf("seagliderOG1: %s: %v", name, err)
	}
	return &v, nil
}

func convert(ctx context.Context, logger *slog.Logger, o convertOptions) error {
	tables, err := loadVocab(o.vocabDir)
	if err != nil {
		return err
	}

	client := fetch.NewClient(logger, o.workers, o.timeout)
	var fetcher source.Fetcher
	if remote, ok := o.source.(source.Remote); ok {
		f, err := newFetcher(logger, client, remote, o.registry, o.cacheDir)
		if err != nil {
			return err
		}
		fetcher = f
	}

	names := trajectory.SeagliderNames()
	selector := source.NewSelector(logger, client)
	selector.SkipMalformed = o.skipMalformed
	loader := source.NewLoader(logger, fetcher, names.Requirements()...)
	pipeline := trajectory.NewPipeline(logger, selector, loader, names, o.workers)

	traj, err := pipeline.Run(ctx, o.source, o.rng)
	if err != nil {
		return err
	}

	opts := og1.DefaultOptions()
	opts.Sensors = o.sensors
	ds, err := og1.Harmonize(traj, tables, opts)
	if err != nil {
		return err
	}
	if err := og1.Write(o.output, ds); err != nil {
		return fmt.Errorf("writing %s: %w", o.output, err)
	}
	logger.Info("Wrote OG1 file", "path", o.output, "dives", len(traj.Dives), "samples", traj.Len())
	return nil
}

func loadVocab(dir string) (*vocab.Tables, error) {
	if dir == "" {
		return vocab.Default()
	}
	return vocab.LoadDir(dir)
}

func newFetcher(logger *slog.Logger, client *fetch.Client, remote source.Remote, registry, cacheDir string) (*fetch.Fetcher, error) {
	if registry == "" {
		return nil, errors.New("seagliderOG1: --registry is required for remote sources")
	}
	reg, err := fetch.ReadRegistryFile(registry)
	if err != nil {
		return nil, err
	}
	if cacheDir == "" {
		if cacheDir, err = fetch.DefaultCacheDir(); err != nil {
			return nil, err
		}
	}
	return fetch.NewFetcher(logger, client, remote.URL, cacheDir, reg)
}
