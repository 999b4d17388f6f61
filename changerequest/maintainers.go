package changerequest

import (
	"encoding/json"
	"sync"

	"github.com/forgepolicy/gatekeeper/gaterr"
	"github.com/forgepolicy/gatekeeper/store"
)

// MaintainerRegistry persists Maintainer records and satisfies
// MaintainerLookup for the change-request Store.
type MaintainerRegistry struct {
	db store.Database
	mu sync.RWMutex
}

// NewMaintainerRegistry constructs a registry over db.
func NewMaintainerRegistry(db store.Database) *MaintainerRegistry {
	return &MaintainerRegistry{db: db}
}

func maintainerKey(identity string) []byte {
	return []byte("maintainer/" + identity)
}

// Put creates or replaces a maintainer record.
func (r *MaintainerRegistry) Put(m Maintainer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	raw, err := json.Marshal(m)
	if err != nil {
		return gaterr.Wrap(gaterr.KindInvariant, "encode maintainer", err)
	}
	if err := r.db.Put(maintainerKey(m.Identity), raw); err != nil {
		return gaterr.Wrap(gaterr.KindTransient, "persist maintainer", err)
	}
	return nil
}

// Lookup implements MaintainerLookup.
func (r *MaintainerRegistry) Lookup(identity string) (Maintainer, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	raw, err := r.db.Get(maintainerKey(identity))
	if err != nil {
		return Maintainer{}, false
	}
	var m Maintainer
	if err := json.Unmarshal(raw, &m); err != nil {
		return Maintainer{}, false
	}
	return m, true
}
