package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
)

// DiveExt is the extension of dive files.
const DiveExt = ".nc"

// RemoteLister lists the file names linked from a remote index page.
type RemoteLister interface {
	List(ctx context.Context, indexURL string) ([]string, error)
}

// Selector picks the dive files of a source that fall within a profile
// range.
type Selector struct {
	logger *slog.Logger
	remote RemoteLister

	// SkipMalformed makes Select log and skip file names without a profile
	// number instead of failing.
	SkipMalformed bool
}

// NewSelector creates a selector. remote may be nil if only local sources
// are used.
func NewSelector(logger *slog.Logger, remote RemoteLister) *Selector {
	return &Selector{logger: logger, remote: remote}
}

// Select returns the dive files of src whose profile number lies in rng, in
// listing order. Errors from the remote lister are returned unchanged.
func (s *Selector) Select(ctx context.Context, src Source, rng Range) ([]string, error) {
	names, err := s.list(ctx, src)
	if err != nil {
		return nil, err
	}
	var selected []string
	for _, name := range names {
		if !strings.HasSuffix(name, DiveExt) {
			continue
		}
		fn, err := ParseFilename(name)
		if err != nil {
			if s.SkipMalformed {
				s.logger.Warn("Skipping file", "file", name, "err", err)
				continue
			}
			return nil, err
		}
		if rng.Contains(fn.Profile) {
			selected = append(selected, name)
		}
	}
	s.logger.Info("Selected dive files", "source", src, "range", rng, "listed", len(names), "selected", len(selected))
	return selected, nil
}

func (s *Selector) list(ctx context.Context, src Source) ([]string, error) {
	switch src := src.(type) {
	case Remote:
		if s.remote == nil {
			return nil, fmt.Errorf("%w: no lister for remote source %q", ErrInvalidSource, src.URL)
		}
		return s.remote.List(ctx, src.URL)
	case Local:
		entries, err := os.ReadDir(src.Dir)
		if err != nil {
			return nil, err
		}
		names := make([]string, 0, len(entries))
		for _, e := range entries {
			if !e.IsDir() {
				names = append(names, e.Name())
			}
		}
		return names, nil
	}
	return nil, fmt.Errorf("%w: %v", ErrInvalidSource, src)
}
