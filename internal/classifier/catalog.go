package classifier

import (
	"strings"

	"github.com/tphakala/wildlife-go/internal/conf"
)

const (
	UnknownID   = 0
	UnknownName = "Unknown"
)

// Species is one row of the activity table
type Species struct {
	ID       int
	Name     string
	Activity Activity
}

// Catalog is an ordered species table. Draw order follows table order so a
// seeded random source picks the same species across runs.
type Catalog struct {
	species []Species
	byID    map[int]Species
	byName  map[string]Species
}

// NewCatalog builds a catalog from config entries
func NewCatalog(entries []conf.SpeciesEntry) *Catalog {
	c := &Catalog{
		species: make([]Species, 0, len(entries)),
		byID:    make(map[int]Species, len(entries)),
		byName:  make(map[string]Species, len(entries)),
	}
	for _, e := range entries {
		s := Species{ID: e.ID, Name: e.Name, Activity: Activity(e.Activity)}
		c.species = append(c.species, s)
		c.byID[s.ID] = s
		c.byName[strings.ToLower(s.Name)] = s
	}
	return c
}

// DefaultCatalog returns the built-in fifteen species table
func DefaultCatalog() *Catalog {
	return NewCatalog(conf.DefaultSpecies())
}

// Name returns the species name for id, UnknownName for 0 or unknown ids
func (c *Catalog) Name(id int) string {
	if s, ok := c.byID[id]; ok {
		return s.Name
	}
	return UnknownName
}

// Lookup finds a species by id
func (c *Catalog) Lookup(id int) (Species, bool) {
	s, ok := c.byID[id]
	return s, ok
}

// ByName finds a species by its display name, ignoring case
func (c *Catalog) ByName(name string) (Species, bool) {
	s, ok := c.byName[strings.ToLower(strings.TrimSpace(name))]
	return s, ok
}

// ActiveIn returns species tagged with window or with Any, in table order
func (c *Catalog) ActiveIn(window Activity) []Species {
	var out []Species
	for _, s := range c.species {
		if s.Activity == window || s.Activity == Any {
			out = append(out, s)
		}
	}
	return out
}
