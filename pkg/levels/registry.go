package levels

import (
	"fmt"
	"sort"

	"github.com/parley-labs/parley/pkg/domain"
	"github.com/parley-labs/parley/pkg/script"
)

// Level is one authored practice script plus its presentation metadata.
type Level struct {
	Name        string
	Agent       string
	Description string
	Script      *script.Script
}

// Registry looks levels up by name.
type Registry struct {
	byName map[string]Level
}

// NewRegistry builds a registry from the given levels. Duplicate names are a
// programming error.
func NewRegistry(lvls ...Level) (*Registry, error) {
	byName := make(map[string]Level, len(lvls))
	for _, l := range lvls {
		if _, dup := byName[l.Name]; dup {
			return nil, fmt.Errorf("duplicate level %q", l.Name)
		}
		byName[l.Name] = l
	}
	return &Registry{byName: byName}, nil
}

// Default returns the registry of all shipped levels.
func Default() *Registry {
	r, err := NewRegistry(Level1(), Level2())
	if err != nil {
		panic(err)
	}
	return r
}

// Get returns the named level, or domain.ErrLevelNotFound.
func (r *Registry) Get(name string) (Level, error) {
	l, ok := r.byName[name]
	if !ok {
		return Level{}, fmt.Errorf("level %q: %w", name, domain.ErrLevelNotFound)
	}
	return l, nil
}

// Names returns all level names, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.byName))
	for n := range r.byName {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
