package metadata

import (
	"github.com/coocood/freecache"
	json "github.com/goccy/go-json"
	"github.com/rs/zerolog/log"
)

// Cache stores fetched metadata keyed by URL.
type Cache interface {
	Get(key string) (*Metadata, bool)
	Set(key string, m *Metadata)
}

// cacheTTL is how long fetched metadata stays cached, in seconds.
const cacheTTL = 3600

type freeCache struct {
	cache *freecache.Cache
	ttl   int
}

// NewCache returns an in-process cache of sizeMB megabytes, or a cache that
// stores nothing when disabled.
func NewCache(enabled bool, sizeMB int) Cache {
	if !enabled || sizeMB <= 0 {
		log.Debug().Msg("metadata cache disabled")
		return noopCache{}
	}
	return &freeCache{
		cache: freecache.NewCache(sizeMB * 1024 * 1024),
		ttl:   cacheTTL,
	}
}

func (c *freeCache) Get(key string) (*Metadata, bool) {
	val, err := c.cache.Get([]byte(key))
	if err != nil {
		return nil, false
	}
	var m Metadata
	if err := json.Unmarshal(val, &m); err != nil {
		return nil, false
	}
	return &m, true
}

func (c *freeCache) Set(key string, m *Metadata) {
	val, err := json.Marshal(m)
	if err != nil {
		return
	}
	_ = c.cache.Set([]byte(key), val, c.ttl)
}

type noopCache struct{}

func (noopCache) Get(string) (*Metadata, bool) { return nil, false }
func (noopCache) Set(string, *Metadata)        {}
