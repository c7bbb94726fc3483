package vocab

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/ctessum/unit"
)

// NormalizeUnit rewrites a unit string into its OG1 spelling. Unknown
// strings are returned unchanged.
func (t *Tables) NormalizeUnit(u string) string {
	if to, ok := t.unitFormats[u]; ok {
		return to
	}
	return u
}

// Factor returns the factor that converts values in unit from to unit to.
// The conversion table is consulted first under both the written and the
// normalized spelling of each unit; otherwise the factor is derived from the
// dimensions of both units when they match.
func (t *Tables) Factor(from, to string) (float64, bool) {
	nf, nt := t.NormalizeUnit(from), t.NormalizeUnit(to)
	for _, c := range []conversion{{from, to}, {nf, nt}, {from, nt}, {nf, to}} {
		if f, ok := t.conversions[c]; ok {
			return f, true
		}
	}
	if nf == nt {
		return 1, true
	}
	a, err := parseUnit(nf)
	if err != nil {
		return 0, false
	}
	b, err := parseUnit(nt)
	if err != nil {
		return 0, false
	}
	if !a.Dimensions().Matches(b.Dimensions()) {
		return 0, false
	}
	return unit.Div(a, b).Value(), true
}

// Convert returns values expressed in unit to.
func (t *Tables) Convert(values []float64, from, to string) ([]float64, error) {
	f, ok := t.Factor(from, to)
	if !ok {
		return nil, fmt.Errorf("no conversion from %q to %q", from, to)
	}
	out := make([]float64, len(values))
	for i, v := range values {
		out[i] = v * f
	}
	return out, nil
}

// Preferred returns the first preferred unit that u converts to, with the
// factor. A unit that already is a preferred unit has nothing to convert.
func (t *Tables) Preferred(u string) (string, float64, bool) {
	nu := t.NormalizeUnit(u)
	for _, p := range t.preferredUnits {
		if nu == p {
			return "", 0, false
		}
	}
	for _, p := range t.preferredUnits {
		if f, ok := t.Factor(u, p); ok {
			return p, f, true
		}
	}
	return "", 0, false
}

var siemens = unit.Dimensions{
	unit.CurrentDim: 2,
	unit.TimeDim:    3,
	unit.MassDim:    -1,
	unit.LengthDim:  -2,
}

// baseUnits are SI scale factors and dimensions of the unit symbols found
// in glider files.
var baseUnits = map[string]struct {
	scale float64
	dims  unit.Dimensions
}{
	"m":   {1, unit.Dimensions{unit.LengthDim: 1}},
	"g":   {1e-3, unit.Dimensions{unit.MassDim: 1}},
	"s":   {1, unit.Dimensions{unit.TimeDim: 1}},
	"Pa":  {1, unit.Dimensions{unit.MassDim: 1, unit.LengthDim: -1, unit.TimeDim: -2}},
	"bar": {1e5, unit.Dimensions{unit.MassDim: 1, unit.LengthDim: -1, unit.TimeDim: -2}},
	"S":   {1, siemens},
	"1":   {1, unit.Dimensions{}},
}

var prefixes = map[byte]float64{
	'k': 1e3,
	'h': 1e2,
	'd': 1e-1,
	'c': 1e-2,
	'm': 1e-3,
	'u': 1e-6,
}

// parseUnit parses unit strings made of space separated symbols with
// optional integer exponents, such as "kg m-3" or "mS cm-1". A single "/"
// puts the symbols after it in the denominator.
func parseUnit(s string) (*unit.Unit, error) {
	num, den, _ := strings.Cut(s, "/")
	scale := 1.0
	dims := make(unit.Dimensions)
	for sign, part := range []string{num, den} {
		for _, tok := range strings.Fields(part) {
			f, d, err := parseSymbol(tok)
			if err != nil {
				return nil, fmt.Errorf("unit %q: %w", s, err)
			}
			if sign == 1 {
				f = 1 / f
			}
			scale *= f
			for dim, p := range d {
				if sign == 1 {
					p = -p
				}
				dims[dim] += p
			}
		}
	}
	for dim, p := range dims {
		if p == 0 {
			delete(dims, dim)
		}
	}
	return unit.New(scale, dims), nil
}

// parseSymbol parses one symbol such as "cm", "s-1" or "m2".
func parseSymbol(tok string) (float64, unit.Dimensions, error) {
	i := strings.IndexAny(tok, "-0123456789")
	if i <= 0 || tok == "1" {
		i = len(tok)
	}
	sym, exp := tok[:i], 1
	if i < len(tok) {
		e, err := strconv.Atoi(tok[i:])
		if err != nil {
			return 0, nil, fmt.Errorf("bad exponent in %q", tok)
		}
		exp = e
	}

	scale, dims, ok := lookupSymbol(sym)
	if !ok {
		return 0, nil, fmt.Errorf("unknown unit %q", sym)
	}
	f := 1.0
	for range abs(exp) {
		f *= scale
	}
	if exp < 0 {
		f = 1 / f
	}
	out := make(unit.Dimensions, len(dims))
	for d, p := range dims {
		out[d] = p * exp
	}
	return f, out, nil
}

func lookupSymbol(sym string) (float64, unit.Dimensions, bool) {
	if b, ok := baseUnits[sym]; ok {
		return b.scale, b.dims, true
	}
	if len(sym) < 2 {
		return 0, nil, false
	}
	p, ok := prefixes[sym[0]]
	if !ok {
		return 0, nil, false
	}
	b, ok := baseUnits[sym[1:]]
	if !ok || sym[1:] == "1" {
		return 0, nil, false
	}
	return p * b.scale, b.dims, true
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}
