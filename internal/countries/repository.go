package countries

import "sync"

// Repository is an in-memory country store keyed by name
type Repository struct {
	mu        sync.RWMutex
	countries map[string]Country
}

// NewRepository creates a repository holding countries
func NewRepository(countries ...Country) *Repository {
	r := &Repository{countries: make(map[string]Country, len(countries))}
	for _, c := range countries {
		r.countries[c.Name] = c
	}
	return r
}

// DefaultRepository returns the repository the sample service is seeded with
func DefaultRepository() *Repository {
	return NewRepository(
		Country{Name: "Spain", Population: 46704314, Capital: "Madrid", Currency: EUR},
		Country{Name: "Poland", Population: 38186860, Capital: "Warsaw", Currency: PLN},
		Country{Name: "United Kingdom", Population: 63705000, Capital: "London", Currency: GBP},
	)
}

// FindCountry looks a country up by exact name
func (r *Repository) FindCountry(name string) (Country, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	c, ok := r.countries[name]
	return c, ok
}

// Put adds or replaces a country
func (r *Repository) Put(c Country) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.countries[c.Name] = c
}
