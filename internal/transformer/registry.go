package transformer

import "escrowetl/internal/schema"

// registry assigns surrogate account ids in first-seen order.
type registry struct {
	ids      map[schema.AccountKey]int64
	accounts []schema.DimAccount
}

func newRegistry() *registry {
	return &registry{ids: make(map[schema.AccountKey]int64)}
}

// lookup returns the id of key, if registered.
func (r *registry) lookup(key schema.AccountKey) (int64, bool) {
	id, ok := r.ids[key]
	return id, ok
}

// add registers key and returns its id. Registering a known key returns the
// existing id and keeps the original source.
func (r *registry) add(key schema.AccountKey, src schema.Role) int64 {
	if id, ok := r.ids[key]; ok {
		return id
	}
	id := int64(len(r.accounts) + 1)
	r.ids[key] = id
	r.accounts = append(r.accounts, schema.DimAccount{AccountID: id, AccountKey: key, FirstSeenSource: src})
	return id
}

func (r *registry) len() int { return len(r.accounts) }
