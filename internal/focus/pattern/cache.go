package pattern

import (
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Compiler produces Matchers. Implementations must be safe for concurrent use.
type Compiler interface {
	Compile(pattern string) *Matcher
}

// CompilerFunc adapts a plain function to Compiler.
type CompilerFunc func(pattern string) *Matcher

func (f CompilerFunc) Compile(pattern string) *Matcher { return f(pattern) }

// Uncached compiles every call from scratch.
var Uncached Compiler = CompilerFunc(Compile)

// CacheStats reports lightweight cache metrics.
type CacheStats struct {
	Size      int
	Hits      uint64
	Misses    uint64
	Evictions uint64
}

// cachedCompiler memoizes Compile by raw pattern string. Compile is pure, so a
// cached Matcher is always equivalent to a fresh one.
type cachedCompiler struct {
	lru       *lru.Cache[string, *Matcher]
	hits      uint64
	misses    uint64
	evictions uint64
}

// newLRU is a seam for tests.
var newLRU = func(size int, onEvict func(string, *Matcher)) (*lru.Cache[string, *Matcher], error) {
	return lru.NewWithEvict(size, onEvict)
}

// NewCachedCompiler returns a Compiler backed by an LRU of the given size.
// A size <= 0 returns Uncached.
func NewCachedCompiler(size int) (Compiler, error) {
	if size <= 0 {
		return Uncached, nil
	}
	var c cachedCompiler
	cache, err := newLRU(size, func(string, *Matcher) {
		atomic.AddUint64(&c.evictions, 1)
	})
	if err != nil {
		return nil, err
	}
	c.lru = cache
	return &c, nil
}

// Compile returns the cached matcher for pattern, compiling it on a miss.
// Blank patterns are not cached and yield nil.
func (c *cachedCompiler) Compile(pattern string) *Matcher {
	if m, ok := c.lru.Get(pattern); ok {
		atomic.AddUint64(&c.hits, 1)
		return m
	}
	atomic.AddUint64(&c.misses, 1)
	m := Compile(pattern)
	if m != nil {
		c.lru.Add(pattern, m)
	}
	return m
}

func (c *cachedCompiler) Stats() CacheStats {
	return CacheStats{
		Size:      c.lru.Len(),
		Hits:      atomic.LoadUint64(&c.hits),
		Misses:    atomic.LoadUint64(&c.misses),
		Evictions: atomic.LoadUint64(&c.evictions),
	}
}

// Stats returns cache metrics when c is a cached compiler.
func Stats(c Compiler) (CacheStats, bool) {
	cc, ok := c.(*cachedCompiler)
	if !ok {
		return CacheStats{}, false
	}
	return cc.Stats(), true
}
