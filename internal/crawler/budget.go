package crawler

import "sync/atomic"

// Budget is the total fetch budget of a run, shared by all workers.
// A limit of zero or less means unlimited.
type Budget struct {
	limit int64
	used  atomic.Int64
}

// NewBudget returns a budget with used permits already consumed.
func NewBudget(limit, used int) *Budget {
	b := &Budget{limit: int64(limit)}
	b.used.Store(int64(used))
	return b
}

// TryAcquire takes one fetch permit. It returns false once the limit is reached.
func (b *Budget) TryAcquire() bool {
	if b.limit <= 0 {
		b.used.Add(1)
		return true
	}
	for {
		u := b.used.Load()
		if u >= b.limit {
			return false
		}
		if b.used.CompareAndSwap(u, u+1) {
			return true
		}
	}
}

// Used returns the number of permits handed out.
func (b *Budget) Used() int {
	return int(b.used.Load())
}

// Exhausted reports whether no permit is left.
func (b *Budget) Exhausted() bool {
	return b.limit > 0 && b.used.Load() >= b.limit
}
