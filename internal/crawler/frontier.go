package crawler

import (
	"github.com/tidwall/btree"

	"github.com/nao1215/citenet/internal/model"
)

// Frontier holds pending entries ordered by depth, then discovery order.
// Shallower entries are always expanded first, so the crawl is breadth first.
// A publication is pending at most once, at the lowest depth it was pushed with.
// It is owned by the Controller goroutine and is not safe for concurrent use.
type Frontier struct {
	tree    *btree.BTreeG[model.FrontierEntry]
	byID    map[int64]model.FrontierEntry
	nextSeq uint64
}

func frontierLess(a, b model.FrontierEntry) bool {
	if a.Depth != b.Depth {
		return a.Depth < b.Depth
	}
	return a.Seq < b.Seq
}

// NewFrontier returns an empty frontier.
func NewFrontier() *Frontier {
	return &Frontier{
		tree:    btree.NewBTreeG(frontierLess),
		byID:    make(map[int64]model.FrontierEntry),
		nextSeq: 1,
	}
}

// Push adds e with the next sequence number. An entry already pending for
// the same publication at a lower or equal depth wins and Push returns false.
func (f *Frontier) Push(e model.FrontierEntry) bool {
	if old, ok := f.byID[e.PublicationID]; ok {
		if old.Depth <= e.Depth {
			return false
		}
		f.tree.Delete(old)
	}
	e.Seq = f.nextSeq
	f.nextSeq++
	f.set(e)
	return true
}

// Requeue puts back an entry that was popped, keeping its position.
func (f *Frontier) Requeue(e model.FrontierEntry) {
	if e.Seq >= f.nextSeq {
		f.nextSeq = e.Seq + 1
	}
	if old, ok := f.byID[e.PublicationID]; ok {
		if old.Depth <= e.Depth {
			return
		}
		f.tree.Delete(old)
	}
	f.set(e)
}

func (f *Frontier) set(e model.FrontierEntry) {
	f.tree.Set(e)
	f.byID[e.PublicationID] = e
}

// Pop removes and returns the first entry.
func (f *Frontier) Pop() (model.FrontierEntry, bool) {
	e, ok := f.tree.PopMin()
	if ok {
		delete(f.byID, e.PublicationID)
	}
	return e, ok
}

// Len returns the number of pending entries.
func (f *Frontier) Len() int {
	return f.tree.Len()
}

// Entries returns the pending entries in order.
func (f *Frontier) Entries() []model.FrontierEntry {
	out := make([]model.FrontierEntry, 0, f.tree.Len())
	f.tree.Scan(func(e model.FrontierEntry) bool {
		out = append(out, e)
		return true
	})
	return out
}
