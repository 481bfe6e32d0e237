package backend

import (
	"github.com/Carmen-Shannon/oxy-gfx/common"
)

// bindingKey addresses one binding point: a target class within a unit. Buffers, vertex arrays and
// programs live on unit 0.
type bindingKey struct {
	unit   int
	target common.TargetKind
}

// BindingCache remembers which handle was last bound to each (unit, target) so redundant bind
// calls can be skipped. It is mutated only from the rendering thread.
type BindingCache struct {
	bound  map[bindingKey]Handle
	hits   uint64
	misses uint64
}

// NewBindingCache creates an empty BindingCache. Every binding point starts unknown, so the first
// bind to each point always reaches the backend.
//
// Returns:
//   - *BindingCache: the new cache
func NewBindingCache() *BindingCache {
	return &BindingCache{
		bound: make(map[bindingKey]Handle),
	}
}

// Bind records h as bound to (unit, target).
//
// Parameters:
//   - unit: the binding unit
//   - target: the target class
//   - h: the handle being bound, zero to unbind
//
// Returns:
//   - bool: true when the binding changed and the backend must be called
func (c *BindingCache) Bind(unit int, target common.TargetKind, h Handle) bool {
	key := bindingKey{unit: unit, target: target}
	if cur, ok := c.bound[key]; ok && cur == h {
		c.hits++
		return false
	}
	c.bound[key] = h
	c.misses++
	return true
}

// Bound returns the handle last bound to (unit, target) and whether the point is known.
func (c *BindingCache) Bound(unit int, target common.TargetKind) (Handle, bool) {
	h, ok := c.bound[bindingKey{unit: unit, target: target}]
	return h, ok
}

// Forget drops what is known about (unit, target), forcing the next bind to reach the backend.
func (c *BindingCache) Forget(unit int, target common.TargetKind) {
	delete(c.bound, bindingKey{unit: unit, target: target})
}

// Invalidate removes every binding point that references h. It must be called when h is released
// so a recycled handle value is never mistaken for a live binding.
//
// Parameters:
//   - h: the released handle
//
// Returns:
//   - int: the number of binding points dropped
func (c *BindingCache) Invalidate(h Handle) int {
	if h == 0 {
		return 0
	}
	n := 0
	for key, cur := range c.bound {
		if cur == h {
			delete(c.bound, key)
			n++
		}
	}
	return n
}

// Reset forgets every binding point.
func (c *BindingCache) Reset() {
	clear(c.bound)
}

// Hits returns the number of binds skipped because the handle was already bound.
func (c *BindingCache) Hits() uint64 { return c.hits }

// Misses returns the number of binds that reached the backend.
func (c *BindingCache) Misses() uint64 { return c.misses }
