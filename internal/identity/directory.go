package identity

import (
	"errors"
	"fmt"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"

	"github.com/roach88/cobs/internal/cob"
	"gopkg.in/yaml.v3"
)

// Directory maps public keys to human-readable aliases. It is read-only
// during decoration; Add and Save exist for the CLI.
//
// File format:
//
//	aliases:
//	  <hex public key>: <alias>
//
// Thread-safety: Directory is safe for concurrent use.
type Directory struct {
	mu      sync.RWMutex
	aliases map[cob.PublicKey]string
}

type directoryFile struct {
	Aliases map[string]string `yaml:"aliases"`
}

// NewDirectory creates an empty directory.
func NewDirectory() *Directory {
	return &Directory{aliases: make(map[cob.PublicKey]string)}
}

// LoadDirectory reads an alias file. A missing file yields an empty
// directory.
func LoadDirectory(path string) (*Directory, error) {
	d := NewDirectory()
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return d, nil
		}
		return nil, fmt.Errorf("load aliases: %w", err)
	}

	var f directoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("load aliases %s: %w", path, err)
	}
	for k, alias := range f.Aliases {
		if err := d.Add(cob.PublicKey(k), alias); err != nil {
			return nil, fmt.Errorf("load aliases %s: %w", path, err)
		}
	}
	return d, nil
}

// Add records an alias, replacing any previous one for the key.
func (d *Directory) Add(key cob.PublicKey, alias string) error {
	alias = strings.TrimSpace(alias)
	if key == "" {
		return fmt.Errorf("alias %q: key is required", alias)
	}
	if alias == "" {
		return fmt.Errorf("alias for %s is empty", key.Short())
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	d.aliases[key] = alias
	return nil
}

// Resolve implements query.Resolver.
func (d *Directory) Resolve(key cob.PublicKey) (string, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	alias, ok := d.aliases[key]
	return alias, ok
}

// Keys returns the keys with an alias, sorted.
func (d *Directory) Keys() []cob.PublicKey {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return slices.Sorted(maps.Keys(d.aliases))
}

// Save writes the directory as YAML.
func (d *Directory) Save(path string) error {
	d.mu.RLock()
	f := directoryFile{Aliases: make(map[string]string, len(d.aliases))}
	for k, v := range d.aliases {
		f.Aliases[string(k)] = v
	}
	d.mu.RUnlock()

	data, err := yaml.Marshal(f)
	if err != nil {
		return fmt.Errorf("save aliases: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("save aliases: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("save aliases: %w", err)
	}
	return nil
}
