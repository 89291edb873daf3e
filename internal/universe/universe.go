// Package universe loads the static symbol lists scored by the screener.
//
// A universe is a JSON array of tickers stored as <type>/<name>.json. The
// embedded defaults are always loaded; files in an optional directory are
// added on top and replace defaults with the same type and name.
package universe

import (
	"embed"
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"GranStocks/internal/domain/models"
)

//go:embed defaults/*/*.json
var defaults embed.FS

// Registry holds the loaded universes. It is read-only after Load.
type Registry struct {
	m map[string]models.Universe
}

// Load reads the embedded universes and then every list under dir, if set.
func Load(dir string) (*Registry, error) {
	r := &Registry{m: make(map[string]models.Universe)}
	sub, err := fs.Sub(defaults, "defaults")
	if err != nil {
		return nil, err
	}
	if err := r.loadFS(sub); err != nil {
		return nil, fmt.Errorf("embedded universes: %w", err)
	}
	if dir != "" {
		if err := r.loadFS(os.DirFS(dir)); err != nil {
			return nil, fmt.Errorf("universes dir %s: %w", dir, err)
		}
	}
	return r, nil
}

func (r *Registry) loadFS(fsys fs.FS) error {
	files, err := fs.Glob(fsys, "*/*.json")
	if err != nil {
		return err
	}
	for _, f := range files {
		b, err := fs.ReadFile(fsys, f)
		if err != nil {
			return err
		}
		typ := path.Dir(f)
		name := strings.TrimSuffix(path.Base(f), ".json")
		u, err := Parse(typ, name, b)
		if err != nil {
			return fmt.Errorf("%s: %w", f, err)
		}
		r.m[u.Key()] = u
	}
	return nil
}

// Parse decodes a flat JSON array of tickers. Symbols are normalized and
// duplicates dropped, keeping first-seen order.
func Parse(typ, name string, b []byte) (models.Universe, error) {
	var raw []string
	if err := json.Unmarshal(b, &raw); err != nil {
		return models.Universe{}, fmt.Errorf("decode universe: %w", err)
	}
	u := models.Universe{Type: typ, Name: name, Symbols: make([]string, 0, len(raw))}
	seen := make(map[string]struct{}, len(raw))
	for _, s := range raw {
		s = models.NormalizeSymbol(s)
		if s == "" {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		u.Symbols = append(u.Symbols, s)
	}
	if len(u.Symbols) == 0 {
		return models.Universe{}, fmt.Errorf("universe %s is empty", u.Key())
	}
	return u, nil
}

// Get returns the universe or an error wrapping models.ErrNotFound.
func (r *Registry) Get(typ, name string) (models.Universe, error) {
	u, ok := r.m[typ+"/"+name]
	if !ok {
		return models.Universe{}, fmt.Errorf("universe %s/%s: %w", typ, name, models.ErrNotFound)
	}
	return u, nil
}

// Lookup resolves a "type/name" key.
func (r *Registry) Lookup(key string) (models.Universe, error) {
	typ, name, ok := strings.Cut(key, "/")
	if !ok {
		return models.Universe{}, fmt.Errorf("universe key %q: want type/name: %w", key, models.ErrNotFound)
	}
	return r.Get(typ, name)
}

// List returns every universe ordered by key.
func (r *Registry) List() []models.Universe {
	out := make([]models.Universe, 0, len(r.m))
	for _, u := range r.m {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key() < out[j].Key() })
	return out
}
