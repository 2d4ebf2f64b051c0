package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// ErrKeyNotFound is returned when a dotted key names nothing in the file.
var ErrKeyNotFound = errors.New("config key not found")

var keySegment = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9_-]*$`)

// Document is the config file as an untyped tree, edited by dotted keys
// such as "gateway.auth.token". It keeps keys the typed Config ignores.
type Document struct {
	path string
	root map[string]any
}

// OpenDocument reads the file at path. A missing file yields an empty
// document that Save will create.
func OpenDocument(path string) (*Document, error) {
	doc := &Document{path: path, root: map[string]any{}}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return doc, nil
	}
	if err != nil {
		return nil, err
	}
	if err := unmarshal(path, data, &doc.root); err != nil {
		return nil, &ConfigError{Message: "failed to parse config: " + err.Error()}
	}
	if doc.root == nil {
		doc.root = map[string]any{}
	}
	return doc, nil
}

// splitKey validates a dotted key and returns its segments.
func splitKey(key string) ([]string, error) {
	if key == "" {
		return nil, &ConfigError{Message: "empty config key"}
	}
	segs := strings.Split(key, ".")
	for _, s := range segs {
		if !keySegment.MatchString(s) {
			return nil, &ConfigError{Message: fmt.Sprintf("invalid config key %q", key)}
		}
	}
	return segs, nil
}

// Get returns the value or subtree at key.
func (d *Document) Get(key string) (any, error) {
	segs, err := splitKey(key)
	if err != nil {
		return nil, err
	}
	var node any = d.root
	for _, s := range segs {
		m, ok := node.(map[string]any)
		if !ok {
			return nil, ErrKeyNotFound
		}
		if node, ok = m[s]; !ok {
			return nil, ErrKeyNotFound
		}
	}
	return node, nil
}

// Set stores value at key. Missing or scalar intermediate nodes are
// replaced with maps.
func (d *Document) Set(key string, value any) error {
	segs, err := splitKey(key)
	if err != nil {
		return err
	}
	parent := d.root
	for _, s := range segs[:len(segs)-1] {
		child, ok := parent[s].(map[string]any)
		if !ok {
			child = map[string]any{}
			parent[s] = child
		}
		parent = child
	}
	parent[segs[len(segs)-1]] = value
	return nil
}

// Unset removes key. It returns ErrKeyNotFound when nothing was there.
func (d *Document) Unset(key string) error {
	segs, err := splitKey(key)
	if err != nil {
		return err
	}
	parent := d.root
	for _, s := range segs[:len(segs)-1] {
		child, ok := parent[s].(map[string]any)
		if !ok {
			return ErrKeyNotFound
		}
		parent = child
	}
	last := segs[len(segs)-1]
	if _, ok := parent[last]; !ok {
		return ErrKeyNotFound
	}
	delete(parent, last)
	return nil
}

// Save writes the document back as TOML or YAML, following the file
// extension, creating parent directories as needed.
func (d *Document) Save() error {
	var data []byte
	if isTOML(d.path) {
		var buf bytes.Buffer
		if err := toml.NewEncoder(&buf).Encode(d.root); err != nil {
			return err
		}
		data = buf.Bytes()
	} else {
		var err error
		if data, err = yaml.Marshal(d.root); err != nil {
			return err
		}
	}
	if err := os.MkdirAll(filepath.Dir(d.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(d.path, data, 0o600)
}
