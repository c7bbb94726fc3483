package source

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
)

// ErrMalformedFilename matches every *MalformedFilenameError.
var ErrMalformedFilename = errors.New("malformed dive filename")

// MalformedFilenameError reports a dive file name without a parseable
// profile number.
type MalformedFilenameError struct {
	Name string
	Err  error
}

func (e *MalformedFilenameError) Error() string {
	return fmt.Sprintf("%s: %q: %v", ErrMalformedFilename, e.Name, e.Err)
}

func (e *MalformedFilenameError) Unwrap() error        { return e.Err }
func (e *MalformedFilenameError) Is(target error) bool { return target == ErrMalformedFilename }

// Filename is a parsed basestation file name such as p0150500_20050213.nc:
// "p", a three digit glider serial number, the profile (dive) number and an
// optional "_" suffix.
type Filename struct {
	Name    string
	Glider  string
	Profile int
}

// ParseFilename extracts the glider serial number and profile number from a
// dive file name.
func ParseFilename(name string) (Filename, error) {
	stem := strings.TrimSuffix(name, filepath.Ext(name))
	stem, _, _ = strings.Cut(stem, "_")
	if len(stem) < 5 {
		return Filename{}, &MalformedFilenameError{Name: name, Err: errors.New("too short")}
	}
	profile, err := strconv.Atoi(stem[4:])
	if err != nil {
		return Filename{}, &MalformedFilenameError{Name: name, Err: err}
	}
	return Filename{Name: name, Glider: stem[1:4], Profile: profile}, nil
}

// Range is an inclusive profile number range. A nil bound is open.
type Range struct {
	Start *int
	End   *int
}

// Contains reports whether profile lies within the range.
func (r Range) Contains(profile int) bool {
	if r.Start != nil && profile < *r.Start {
		return false
	}
	if r.End != nil && profile > *r.End {
		return false
	}
	return true
}

func (r Range) String() string {
	bound := func(p *int) string {
		if p == nil {
			return "*"
		}
		return strconv.Itoa(*p)
	}
	return "[" + bound(r.Start) + ", " + bound(r.End) + "]"
}
