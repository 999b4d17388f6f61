package aggregator

import (
	"github.com/VictoriaMetrics/fastcache"
	"lukechampine.com/blake3"
)

// pubKeyCache is a small read-through cache in front of repeated
// (signer, public_key) verification lookups. The verification itself is
// cheap, but a change request under active review may be re-evaluated many
// times as signatures trickle in, and every re-evaluation re-verifies every
// prior signature; caching the maintainer-identity -> public-key association
// avoids re-hitting the maintainer registry on every pass.
type pubKeyCache struct {
	cache *fastcache.Cache
}

func newPubKeyCache(maxBytes int) *pubKeyCache {
	if maxBytes <= 0 {
		maxBytes = 8 * 1024 * 1024
	}
	return &pubKeyCache{cache: fastcache.New(maxBytes)}
}

// cacheKey derives a fixed-width internal key from the signer identity.
// blake3 is used only to shape the cache key; it plays no part in any
// canonical hash the rest of the system persists or verifies.
func cacheKey(identity string) []byte {
	sum := blake3.Sum256([]byte(identity))
	return sum[:]
}

func (c *pubKeyCache) get(identity string) (string, bool) {
	value, ok := c.cache.HasGet(nil, cacheKey(identity))
	if !ok {
		return "", false
	}
	return string(value), true
}

func (c *pubKeyCache) put(identity, publicKeyHex string) {
	c.cache.Set(cacheKey(identity), []byte(publicKeyHex))
}

// invalidate drops a cached entry, used when a maintainer's key changes.
func (c *pubKeyCache) invalidate(identity string) {
	c.cache.Del(cacheKey(identity))
}
