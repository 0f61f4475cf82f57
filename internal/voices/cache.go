package voices

import (
	"sync"

	"storyvox/internal/structure"
)

// Casting is the per-book cast state shared across chapter jobs: the
// detected characters and the assigner holding their voices. It is built at
// most once per book lifetime; a cold start after restart simply rebuilds on
// the next chapter processed.
type Casting struct {
	Assigner   *Assigner
	Characters []structure.Character
}

// Cache holds one casting per book. Builds run at most once per book even
// under concurrent chapter jobs.
type Cache struct {
	mu    sync.Mutex
	books map[string]*cacheEntry
}

type cacheEntry struct {
	once    sync.Once
	casting *Casting
}

// NewCache creates an empty casting cache.
func NewCache() *Cache {
	return &Cache{books: make(map[string]*cacheEntry)}
}

// ForBook returns the book's casting, calling build exactly once to create
// it. Concurrent callers for the same book share one build.
func (c *Cache) ForBook(bookID string, build func() *Casting) *Casting {
	c.mu.Lock()
	entry, ok := c.books[bookID]
	if !ok {
		entry = &cacheEntry{}
		c.books[bookID] = entry
	}
	c.mu.Unlock()

	entry.once.Do(func() {
		entry.casting = build()
	})
	return entry.casting
}

// Invalidate drops a book's casting, forcing a rebuild on next use. Used
// when the book's TTS provider changes.
func (c *Cache) Invalidate(bookID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.books, bookID)
}
