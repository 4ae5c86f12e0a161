package catalog

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"intentd/internal/logging"
)

// Catalog is the read-only intent registry. Insertion order is
// preserved because it is the final tie-breaker during ranking.
type Catalog struct {
	intents []Intent
	byName  map[string]int
}

// Loader produces the catalog at startup. Implementations may read a
// file, an embedded asset, or a remote config service.
type Loader interface {
	Load() ([]Intent, error)
}

// New builds a catalog from an ordered intent list. Duplicate ids and
// the reserved fallback name are rejected.
func New(intents []Intent) (*Catalog, error) {
	c := &Catalog{
		intents: make([]Intent, 0, len(intents)),
		byName:  make(map[string]int, len(intents)),
	}
	for _, in := range intents {
		if in.ID.IsZero() {
			return nil, fmt.Errorf("intent with empty id")
		}
		if in.ID.IsFallback() {
			return nil, fmt.Errorf("reserved fallback id cannot be a catalog entry")
		}
		name := in.ID.String()
		if _, dup := c.byName[name]; dup {
			return nil, fmt.Errorf("duplicate intent id %q", name)
		}
		c.byName[name] = len(c.intents)
		c.intents = append(c.intents, in)
	}
	logging.Boot("Intent catalog built: %d intents", len(c.intents))
	return c, nil
}

// Len returns the number of intents.
func (c *Catalog) Len() int {
	return len(c.intents)
}

// All returns the intents in insertion order. Callers must not mutate
// the returned slice.
func (c *Catalog) All() []Intent {
	return c.intents
}

// Get looks up an intent by id.
func (c *Catalog) Get(id ID) (Intent, bool) {
	if id.IsFallback() || id.IsZero() {
		return Intent{}, false
	}
	i, ok := c.byName[id.String()]
	if !ok {
		return Intent{}, false
	}
	return c.intents[i], true
}

// Order returns the insertion position of an intent, used as the final
// ranking tie-breaker. Unknown ids sort last.
func (c *Catalog) Order(id ID) int {
	if i, ok := c.byName[id.String()]; ok {
		return i
	}
	return len(c.intents)
}

// Parse resolves a caller-supplied intent name against the catalog.
// The fallback sentinel name is not parseable on purpose.
func (c *Catalog) Parse(name string) (ID, error) {
	if name == "" {
		return ID{}, fmt.Errorf("empty intent id")
	}
	if _, ok := c.byName[name]; !ok {
		return ID{}, fmt.Errorf("unknown intent id %q", name)
	}
	return NewID(name), nil
}

// fileIntent is the YAML shape of one catalog entry.
type fileIntent struct {
	ID       string       `yaml:"id"`
	Meaning  string       `yaml:"meaning"`
	Examples []string     `yaml:"examples"`
	Context  Requirements `yaml:"context"`
}

type catalogFile struct {
	Intents []fileIntent `yaml:"intents"`
}

// FileLoader loads the catalog from a YAML file.
type FileLoader struct {
	Path string
}

// Load reads and decodes the catalog file, preserving entry order.
func (fl FileLoader) Load() ([]Intent, error) {
	timer := logging.StartTimer(logging.CategoryBoot, "catalog.FileLoader.Load")
	defer timer.Stop()

	data, err := os.ReadFile(fl.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to read catalog file: %w", err)
	}

	var cf catalogFile
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse catalog file: %w", err)
	}
	if len(cf.Intents) == 0 {
		logging.Get(logging.CategoryBoot).Warn("Catalog file %s contains no intents", fl.Path)
	}

	intents := make([]Intent, 0, len(cf.Intents))
	for _, fi := range cf.Intents {
		intents = append(intents, Intent{
			ID:       NewID(fi.ID),
			Meaning:  fi.Meaning,
			Examples: fi.Examples,
			Req:      fi.Context,
		})
	}

	logging.Boot("Loaded %d intents from %s", len(intents), fl.Path)
	return intents, nil
}

// Load is the startup entry point: run the loader, validate, build.
func Load(l Loader) (*Catalog, error) {
	intents, err := l.Load()
	if err != nil {
		return nil, fmt.Errorf("catalog load failed: %w", err)
	}
	return New(intents)
}
