package settlement

import (
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// RedirectGuard stops status-page redirect loops. Each (shift, invoice) pair
// gets a counter that resets after a period without redirects.
type RedirectGuard struct {
	mu      sync.Mutex
	counts  *expirable.LRU[string, int]
	limit   int
	onBlock func()
}

// NewRedirectGuard allows limit redirects per pair; counters expire after reset.
func NewRedirectGuard(limit, size int, reset time.Duration, onBlock func()) *RedirectGuard {
	if size <= 0 {
		size = 4096
	}
	if reset <= 0 {
		reset = 2 * time.Minute
	}
	return &RedirectGuard{
		counts:  expirable.NewLRU[string, int](size, nil, reset),
		limit:   limit,
		onBlock: onBlock,
	}
}

// Allow records one redirect and reports whether it is still under the limit.
func (g *RedirectGuard) Allow(shiftID, invoiceID string) bool {
	key := shiftID + "_" + invoiceID

	g.mu.Lock()
	n, _ := g.counts.Get(key)
	n++
	g.counts.Add(key, n) // re-adding refreshes the TTL
	g.mu.Unlock()

	if n > g.limit {
		if g.onBlock != nil {
			g.onBlock()
		}
		return false
	}
	return true
}

// Count returns the current counter of a pair.
func (g *RedirectGuard) Count(shiftID, invoiceID string) int {
	g.mu.Lock()
	defer g.mu.Unlock()
	n, _ := g.counts.Peek(shiftID + "_" + invoiceID)
	return n
}

// Reset clears the counter of a pair.
func (g *RedirectGuard) Reset(shiftID, invoiceID string) {
	g.mu.Lock()
	g.counts.Remove(shiftID + "_" + invoiceID)
	g.mu.Unlock()
}
