// Package source selects and loads the per-dive files of a Seaglider
// mission from a remote basestation archive or a local directory.
package source

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
)

// ErrInvalidSource is returned when a source is neither an http(s) URL nor
// an existing directory.
var ErrInvalidSource = errors.New("invalid source")

// Source is where dive files come from: either Remote or Local.
type Source interface {
	String() string
	isSource()
}

// Remote is a basestation archive served over HTTP. URL points at the
// directory whose index page lists the dive files.
type Remote struct {
	URL string
}

func (r Remote) String() string { return r.URL }
func (Remote) isSource()        {}

// Local is a directory on disk holding dive files.
type Local struct {
	Dir string
}

func (l Local) String() string { return l.Dir }
func (Local) isSource()        {}

// ParseSource resolves s to a Remote source if it is an http or https URL
// and to a Local source if it names an existing directory.
func ParseSource(s string) (Source, error) {
	if strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://") {
		u, err := url.Parse(s)
		if err != nil || u.Host == "" {
			return nil, fmt.Errorf("%w: %q is not a valid URL", ErrInvalidSource, s)
		}
		return Remote{URL: s}, nil
	}
	fi, err := os.Stat(s)
	if err != nil || !fi.IsDir() {
		return nil, fmt.Errorf("%w: %q is neither a URL nor a directory", ErrInvalidSource, s)
	}
	return Local{Dir: s}, nil
}
