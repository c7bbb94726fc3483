package fetch

import (
	"bufio"
	"crypto/md5"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"hash"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
)

// Digest is a content hash in "algorithm:hexdigest" form.
type Digest struct {
	Alg string
	Hex string
}

func (d Digest) String() string {
	return d.Alg + ":" + d.Hex
}

// ParseDigest parses "sha256:<hex>". A bare hex string is taken as sha256.
func ParseDigest(s string) (Digest, error) {
	alg, hx, ok := strings.Cut(s, ":")
	if !ok {
		alg, hx = "sha256", s
	}
	alg = strings.ToLower(alg)
	if _, err := newHash(alg); err != nil {
		return Digest{}, err
	}
	if _, err := hex.DecodeString(hx); err != nil || hx == "" {
		return Digest{}, fmt.Errorf("invalid %s digest %q", alg, hx)
	}
	return Digest{Alg: alg, Hex: strings.ToLower(hx)}, nil
}

func newHash(alg string) (hash.Hash, error) {
	switch alg {
	case "sha256":
		return sha256.New(), nil
	case "sha1":
		return sha1.New(), nil
	case "md5":
		return md5.New(), nil
	}
	return nil, fmt.Errorf("unsupported hash algorithm %q", alg)
}

// FileDigest hashes the file at path with the given algorithm.
func FileDigest(path, alg string) (Digest, error) {
	h, err := newHash(alg)
	if err != nil {
		return Digest{}, err
	}
	f, err := os.Open(path)
	if err != nil {
		return Digest{}, err
	}
	defer f.Close()
	if _, err := io.Copy(h, f); err != nil {
		return Digest{}, err
	}
	return Digest{Alg: alg, Hex: hex.EncodeToString(h.Sum(nil))}, nil
}

// Registry maps file names to their expected content digests.
type Registry map[string]Digest

// LoadRegistry reads a registry in "name digest" line format. Blank lines and
// lines starting with '#' are ignored.
func LoadRegistry(r io.Reader) (Registry, error) {
	reg := make(Registry)
	sc := bufio.NewScanner(r)
	for lineNo := 1; sc.Scan(); lineNo++ {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			return nil, fmt.Errorf("registry line %d: want \"name digest\", got %q", lineNo, line)
		}
		d, err := ParseDigest(fields[1])
		if err != nil {
			return nil, fmt.Errorf("registry line %d: %w", lineNo, err)
		}
		reg[fields[0]] = d
	}
	if err := sc.Err(); err != nil {
		return nil, err
	}
	return reg, nil
}

// ReadRegistryFile loads a registry from a file.
func ReadRegistryFile(path string) (Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return LoadRegistry(f)
}

// BuildRegistry hashes every dive file directly inside dir with sha256.
func BuildRegistry(dir string) (Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	reg := make(Registry)
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), DiveExt) {
			continue
		}
		d, err := FileDigest(filepath.Join(dir, e.Name()), "sha256")
		if err != nil {
			return nil, err
		}
		reg[e.Name()] = d
	}
	return reg, nil
}

// WriteTo writes the registry sorted by name, one "name alg:hex" per line.
func (reg Registry) WriteTo(w io.Writer) (int64, error) {
	names := make([]string, 0, len(reg))
	for name := range reg {
		names = append(names, name)
	}
	slices.Sort(names)
	var total int64
	for _, name := range names {
		n, err := fmt.Fprintf(w, "%s %s\n", name, reg[name])
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, nil
}
