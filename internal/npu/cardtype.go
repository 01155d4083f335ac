package npu

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"golang.org/x/sync/singleflight"

	"github.com/wmc1992/npustat/internal/npu/base"
)

// CardTypeCache remembers the product type of each card, keyed by tool
// version and card id. npu-smi info does not print the type, so it costs one
// extra command per card; entries live as long as the cache and are only
// dropped by Clear. A card swapped for another model keeps its old type until
// then. The zero value is ready to use.
type CardTypeCache struct {
	mu    sync.RWMutex
	types map[cardKey]string
	group singleflight.Group
}

type cardKey struct {
	version string
	cardID  string
}

func NewCardTypeCache() *CardTypeCache {
	return &CardTypeCache{types: make(map[cardKey]string)}
}

// Lookup returns the cached type of a card, running the side query once on a
// miss. Concurrent misses for the same card share one query. The empty
// string means the type could not be resolved.
func (c *CardTypeCache) Lookup(ctx context.Context, runCmd base.RunCmdFunc, version, cardID string) string {
	key := cardKey{version: version, cardID: cardID}

	c.mu.RLock()
	t, ok := c.types[key]
	c.mu.RUnlock()
	if ok {
		return t
	}

	v, _, _ := c.group.Do(version+"\x00"+cardID, func() (interface{}, error) {
		c.mu.RLock()
		t, ok := c.types[key]
		c.mu.RUnlock()
		if ok {
			return t, nil
		}

		out, err := runCmd(ctx, cardTypeCmd(cardID))
		if err != nil {
			// not cached: the tool may answer next time
			return "", nil
		}
		t = parseCardType(out)

		c.mu.Lock()
		if c.types == nil {
			c.types = make(map[cardKey]string)
		}
		c.types[key] = t
		c.mu.Unlock()
		return t, nil
	})
	return v.(string)
}

// Len returns the number of cached entries, resolved or not.
func (c *CardTypeCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.types)
}

// Clear forgets every cached type.
func (c *CardTypeCache) Clear() {
	c.mu.Lock()
	c.types = make(map[cardKey]string)
	c.mu.Unlock()
}

func cardTypeCmd(cardID string) string {
	return fmt.Sprintf("npu-smi info -t product -i %s", cardID)
}

// parseCardType reads a single "label: value" answer. Anything that does
// not split into exactly two fields is unresolved.
func parseCardType(out string) string {
	parts := strings.Split(out, ":")
	if len(parts) != 2 {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
