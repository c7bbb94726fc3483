package vocab

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/eleanorfrajka/seagliderOG1/internal/dive"
)

// Names of the vocabulary documents.
const (
	VarAttrsFile    = "OG1_vocab_attrs.yaml"
	SensorAttrsFile = "OG1_sensor_attrs.yaml"
	GlobalAttrsFile = "OG1_global_attrs.yaml"
)

//go:embed config/*.yaml
var embedded embed.FS

// Default returns the built-in tables with the embedded vocabulary
// documents.
func Default() (*Tables, error) {
	sub, err := fs.Sub(embedded, "config")
	if err != nil {
		return nil, err
	}
	return Load(sub)
}

// LoadDir returns the built-in tables with the vocabulary documents found
// in dir. Documents missing from dir are taken from the embedded defaults.
func LoadDir(dir string) (*Tables, error) {
	sub, err := fs.Sub(embedded, "config")
	if err != nil {
		return nil, err
	}
	return Load(os.DirFS(dir), sub)
}

// Load returns the built-in tables with the vocabulary documents read from
// the first file system that holds each of them.
func Load(fsyss ...fs.FS) (*Tables, error) {
	t := builtin()
	read := func(name string) (*yaml.Node, error) {
		for _, fsys := range fsyss {
			b, err := fs.ReadFile(fsys, name)
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			if err != nil {
				return nil, err
			}
			root, err := parseDocument(b)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", name, err)
			}
			return root, nil
		}
		return nil, fmt.Errorf("%s: %w", name, fs.ErrNotExist)
	}

	root, err := read(VarAttrsFile)
	if err != nil {
		return nil, err
	}
	if err := eachEntry(root, func(name string, n *yaml.Node) error {
		attrs, err := attributes(n)
		t.varAttrs[name] = attrs
		return err
	}); err != nil {
		return nil, fmt.Errorf("%s: %w", VarAttrsFile, err)
	}

	root, err = read(SensorAttrsFile)
	if err != nil {
		return nil, err
	}
	if err := eachEntry(root, func(name string, n *yaml.Node) error {
		attrs, err := attributes(n)
		t.sensorAttrs[name] = attrs
		t.sensorNames = append(t.sensorNames, name)
		return err
	}); err != nil {
		return nil, fmt.Errorf("%s: %w", SensorAttrsFile, err)
	}

	root, err = read(GlobalAttrsFile)
	if err != nil {
		return nil, err
	}
	if err := t.loadGlobal(root); err != nil {
		return nil, fmt.Errorf("%s: %w", GlobalAttrsFile, err)
	}
	return t, nil
}

// loadGlobal reads the global attribute document. It has three sections:
// attr_to_add (attributes written as given), attr_to_rename (OG1 name to
// source attribute name) and attr_as_is (source attributes kept).
func (t *Tables) loadGlobal(root *yaml.Node) error {
	return eachEntry(root, func(section string, n *yaml.Node) error {
		switch section {
		case "attr_to_add":
			attrs, err := attributes(n)
			t.globalAdd = attrs
			return err
		case "attr_to_rename":
			return eachEntry(n, func(to string, from *yaml.Node) error {
				if from.Kind != yaml.ScalarNode {
					return fmt.Errorf("line %d: rename of %q is not a name", from.Line, to)
				}
				t.globalRename = append(t.globalRename, Rename{To: to, From: from.Value})
				return nil
			})
		case "attr_as_is":
			return n.Decode(&t.globalAsIs)
		}
		return fmt.Errorf("line %d: unknown section %q", n.Line, section)
	})
}

// parseDocument returns the top-level mapping of a YAML document. An empty
// document yields an empty mapping.
func parseDocument(b []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(b, &doc); err != nil {
		return nil, err
	}
	if len(doc.Content) == 0 {
		return &yaml.Node{Kind: yaml.MappingNode}, nil
	}
	return doc.Content[0], nil
}

// eachEntry calls fn for every key of a mapping node in document order.
func eachEntry(n *yaml.Node, fn func(key string, val *yaml.Node) error) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: want a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		if err := fn(n.Content[i].Value, n.Content[i+1]); err != nil {
			return err
		}
	}
	return nil
}

// attributes decodes a mapping of attribute names to values, keeping the
// document order. Null values are left out.
func attributes(n *yaml.Node) (dive.Attributes, error) {
	var attrs dive.Attributes
	err := eachEntry(n, func(key string, val *yaml.Node) error {
		var v any
		if err := val.Decode(&v); err != nil {
			return fmt.Errorf("attribute %q: %w", key, err)
		}
		if v != nil {
			attrs.Set(key, v)
		}
		return nil
	})
	return attrs, err
}
