package settings

import "strings"

// MaxRecentQueries caps the recent query list.
const MaxRecentQueries = 10

// Recent is the most-recent-first list of executed queries.
type Recent struct {
	store *Store
	max   int
}

// NewRecent keeps up to max queries in store (MaxRecentQueries if max <= 0).
func NewRecent(store *Store, max int) *Recent {
	if max <= 0 {
		max = MaxRecentQueries
	}
	return &Recent{store: store, max: max}
}

// List returns the stored queries, most recent first.
func (r *Recent) List() []string {
	return r.store.Strings(KeyRecentQueries)
}

// Add moves query to the front, dropping any older copy and anything past
// the cap. Blank queries are ignored.
func (r *Recent) Add(query string) error {
	if strings.TrimSpace(query) == "" {
		return nil
	}
	queries := []string{query}
	for _, q := range r.List() {
		if q != query {
			queries = append(queries, q)
		}
	}
	if len(queries) > r.max {
		queries = queries[:r.max]
	}
	return r.store.Upsert(KeyRecentQueries, queries)
}

// Clear empties the list.
func (r *Recent) Clear() error {
	return r.store.Upsert(KeyRecentQueries, []string{})
}
