package source

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/eleanorfrajka/seagliderOG1/internal/dive"
)

// ErrDiveLoad matches every *DiveLoadError.
var ErrDiveLoad = errors.New("dive load failed")

// Stages at which loading a dive can fail.
const (
	StageFetch = "fetch"
	StageRead  = "read"
	StageCheck = "check"
	StageAlign = "align"
)

// DiveLoadError reports a dive file that could not be obtained, parsed or
// used.
type DiveLoadError struct {
	File  string
	Stage string
	Err   error
}

func (e *DiveLoadError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.File, e.Stage, e.Err)
}

func (e *DiveLoadError) Unwrap() error        { return e.Err }
func (e *DiveLoadError) Is(target error) bool { return target == ErrDiveLoad }

// Fetcher resolves a remote file name to a verified local copy.
type Fetcher interface {
	Fetch(ctx context.Context, name string) (string, error)
}

// Requirement is a variable a dive must carry. If Dim is set the variable
// must be indexed by that dimension.
type Requirement struct {
	Var string
	Dim string
}

// Loader reads dive files into records.
type Loader struct {
	logger   *slog.Logger
	fetcher  Fetcher
	required []Requirement
}

// NewLoader creates a loader. fetcher is only used for remote sources and
// may be nil otherwise.
func NewLoader(logger *slog.Logger, fetcher Fetcher, required ...Requirement) *Loader {
	return &Loader{logger: logger, fetcher: fetcher, required: required}
}

// Load obtains and parses one dive file of src.
func (l *Loader) Load(ctx context.Context, src Source, name string) (*dive.Record, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	var path string
	switch src := src.(type) {
	case Remote:
		if l.fetcher == nil {
			return nil, &DiveLoadError{File: name, Stage: StageFetch, Err: errors.New("no fetcher configured")}
		}
		p, err := l.fetcher.Fetch(ctx, name)
		if err != nil {
			return nil, &DiveLoadError{File: name, Stage: StageFetch, Err: err}
		}
		path = p
	case Local:
		path = filepath.Join(src.Dir, name)
	default:
		return nil, fmt.Errorf("%w: %v", ErrInvalidSource, src)
	}

	rec, err := dive.ReadFile(path)
	if err != nil {
		return nil, &DiveLoadError{File: name, Stage: StageRead, Err: err}
	}
	rec.Name = name
	if err := l.check(rec); err != nil {
		return nil, &DiveLoadError{File: name, Stage: StageCheck, Err: err}
	}
	l.logger.Debug("Loaded dive", "file", name, "vars", len(rec.Vars()))
	return rec, nil
}

func (l *Loader) check(rec *dive.Record) error {
	for _, req := range l.required {
		v, ok := rec.Var(req.Var)
		if !ok {
			return fmt.Errorf("missing variable %q", req.Var)
		}
		if req.Dim != "" && !v.HasDim(req.Dim) {
			return fmt.Errorf("variable %q is not indexed by %q", req.Var, req.Dim)
		}
	}
	return nil
}
