package randomaccessmanager

import (
	"container/list"
	"sync"

	"github.com/mlange-dev/bamra/bgzf"
)

// DefaultCacheCapacity is the default number of decompressed blocks a Cache
// retains before evicting the oldest entry, per §4.4.
const DefaultCacheCapacity = 512

type cacheKey struct {
	fileID uintptr
	offset int64
}

// Cache is a process-wide, thread-safe, bounded FIFO memoization layer over
// decompressed blocks, keyed by (FileID, start file offset) as described in
// DESIGN.md's open-question decisions. It never changes the observable
// contents of a query's record stream; it only avoids re-inflating a block
// already seen by an earlier query against the same file.
type Cache struct {
	mu       sync.Mutex
	capacity int
	order    *list.List
	entries  map[cacheKey]*list.Element
}

type cacheEntry struct {
	key   cacheKey
	block bgzf.DecompressedBlock
}

// NewCache returns a Cache holding at most capacity decompressed blocks.
// A capacity of 0 or less uses DefaultCacheCapacity.
func NewCache(capacity int) *Cache {
	if capacity <= 0 {
		capacity = DefaultCacheCapacity
	}
	return &Cache{
		capacity: capacity,
		order:    list.New(),
		entries:  make(map[cacheKey]*list.Element),
	}
}

func (c *Cache) get(fileID uintptr, offset int64) (bgzf.DecompressedBlock, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	el, ok := c.entries[cacheKey{fileID, offset}]
	if !ok {
		return bgzf.DecompressedBlock{}, false
	}
	return el.Value.(*cacheEntry).block, true
}

func (c *Cache) put(fileID uintptr, offset int64, block bgzf.DecompressedBlock) {
	c.mu.Lock()
	defer c.mu.Unlock()
	key := cacheKey{fileID, offset}
	if _, ok := c.entries[key]; ok {
		return
	}
	el := c.order.PushBack(&cacheEntry{key: key, block: block})
	c.entries[key] = el
	for c.order.Len() > c.capacity {
		oldest := c.order.Front()
		c.order.Remove(oldest)
		delete(c.entries, oldest.Value.(*cacheEntry).key)
	}
}
