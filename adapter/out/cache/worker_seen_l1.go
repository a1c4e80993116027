package cache

import (
	"context"
	"sync"
	"time"

	"jobtrack_worker/core/port/out"
)

// =============================================================================
// In-memory seen filter - TTL + O(1) LRU eviction (doubly linked list)
// =============================================================================

type lruNode struct {
	key       string
	expiresAt time.Time
	prev      *lruNode
	next      *lruNode
}

// MemorySeenFilter is the single-process fallback when Redis is not configured.
type MemorySeenFilter struct {
	mu       sync.Mutex
	nodes    map[string]*lruNode
	head     *lruNode // most recently marked (dummy)
	tail     *lruNode // least recently marked (dummy)
	maxItems int
	ttl      time.Duration
	now      func() time.Time
}

var _ out.SeenFilter = (*MemorySeenFilter)(nil)

type L1Config struct {
	MaxItems int
	TTL      time.Duration
}

func DefaultL1Config() L1Config {
	return L1Config{MaxItems: 10000, TTL: DefaultSeenTTL}
}

func NewMemorySeenFilter(cfg L1Config) *MemorySeenFilter {
	if cfg.MaxItems <= 0 {
		cfg.MaxItems = DefaultL1Config().MaxItems
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultSeenTTL
	}
	head, tail := &lruNode{}, &lruNode{}
	head.next = tail
	tail.prev = head
	return &MemorySeenFilter{
		nodes:    make(map[string]*lruNode),
		head:     head,
		tail:     tail,
		maxItems: cfg.MaxItems,
		ttl:      cfg.TTL,
		now:      time.Now,
	}
}

func (f *MemorySeenFilter) MarkSeen(_ context.Context, messageID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := f.now()
	if n, ok := f.nodes[messageID]; ok {
		if now.Before(n.expiresAt) {
			return false, nil
		}
		f.remove(n)
	}

	for len(f.nodes) >= f.maxItems && f.tail.prev != f.head {
		f.remove(f.tail.prev)
	}

	n := &lruNode{key: messageID, expiresAt: now.Add(f.ttl)}
	n.next = f.head.next
	n.prev = f.head
	f.head.next.prev = n
	f.head.next = n
	f.nodes[messageID] = n
	return true, nil
}

func (f *MemorySeenFilter) Forget(_ context.Context, messageID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if n, ok := f.nodes[messageID]; ok {
		f.remove(n)
	}
	return nil
}

// Len reports tracked ids, expired ones included until they are touched or evicted.
func (f *MemorySeenFilter) Len() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.nodes)
}

func (f *MemorySeenFilter) remove(n *lruNode) {
	n.prev.next = n.next
	n.next.prev = n.prev
	delete(f.nodes, n.key)
}
