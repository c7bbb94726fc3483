package trajectory

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ctessum/requestcache"

	"github.com/eleanorfrajka/seagliderOG1/internal/dive"
	"github.com/eleanorfrajka/seagliderOG1/internal/source"
)

// Pipeline selects, loads and prepares the dives of a source and assembles
// them into a trajectory.
type Pipeline struct {
	logger   *slog.Logger
	selector *source.Selector
	loader   *source.Loader
	names    Names
	workers  int
	dives    *requestcache.Cache
}

// diveRequest names one dive of a run.
type diveRequest struct {
	src  source.Source
	name string
}

func (r diveRequest) key() string {
	return r.src.String() + "\x00" + r.name
}

// NewPipeline creates a pipeline preparing up to workers dives at once. The
// workers live as long as the pipeline and are shared by its runs.
func NewPipeline(logger *slog.Logger, selector *source.Selector, loader *source.Loader, names Names, workers int) *Pipeline {
	p := &Pipeline{
		logger:   logger,
		selector: selector,
		loader:   loader,
		names:    names,
		workers:  max(workers, 1),
	}
	p.dives = requestcache.NewCache(func(ctx context.Context, payload interface{}) (interface{}, error) {
		req := payload.(diveRequest)
		return p.prepare(ctx, req.src, req.name)
	}, p.workers, requestcache.Deduplicate())
	return p
}

// Run builds the trajectory of the dives of src within rng. The first
// failing dive, in selection order, aborts the run and cancels the dives
// still being prepared.
func (p *Pipeline) Run(ctx context.Context, src source.Source, rng source.Range) (*Trajectory, error) {
	files, err := p.selector.Select(ctx, src, rng)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("%w selected from %s in %v", ErrEmptyInput, src, rng)
	}

	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	recs := make([]*dive.Record, len(files))
	errs := make([]error, len(files))
	var done atomic.Int32
	start := time.Now()
	var wg sync.WaitGroup
	for i, name := range files {
		wg.Add(1)
		go func() {
			defer wg.Done()
			req := diveRequest{src: src, name: name}
			res, err := p.dives.NewRequest(runCtx, req, req.key()).Result()
			if err != nil {
				errs[i] = err
				cancel()
				return
			}
			recs[i] = res.(*dive.Record)
			n := done.Add(1)
			p.logger.Info("Progress", "dives", fmt.Sprintf("%d/%d", n, len(files)), "in", time.Since(start).Round(time.Second))
		}()
	}
	wg.Wait()
	if err := firstError(ctx, errs); err != nil {
		return nil, err
	}

	traj, err := Assemble(recs, p.names)
	if err != nil {
		return nil, err
	}
	p.logger.Info("Assembled trajectory", "dives", len(traj.Dives), "samples", traj.Len())
	return traj, nil
}

// prepare loads one dive and brings it onto its sample axis.
func (p *Pipeline) prepare(ctx context.Context, src source.Source, name string) (*dive.Record, error) {
	rec, err := p.loader.Load(ctx, src, name)
	if err != nil {
		return nil, err
	}
	collisions, err := AlignGPS(rec, p.names)
	if err != nil {
		return nil, err
	}
	if collisions > 0 {
		p.logger.Warn("GPS fixes share a sample, keeping the later fix", "file", name, "collisions", collisions)
	}
	misplaced, err := Reconcile(rec, p.names)
	if err != nil {
		return nil, err
	}
	if len(misplaced) > 0 {
		p.logger.Warn("Dropped variables not led by the sample axis", "file", name, "vars", misplaced)
	}
	return rec, nil
}

// firstError returns the caller's cancellation if there was one, otherwise
// the first error in selection order that is not a cancellation caused by
// an earlier failure.
func firstError(ctx context.Context, errs []error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	var cancelled error
	for _, err := range errs {
		switch {
		case err == nil:
		case errors.Is(err, context.Canceled):
			if cancelled == nil {
				cancelled = err
			}
		default:
			return err
		}
	}
	return cancelled
}
