package estate

import (
	"sort"
	"sync"
)

// propertyLocks serializes writers per property inside this process. Row
// locks taken in the database cover writers in other processes.
type propertyLocks struct {
	mu    sync.Mutex
	locks map[uint]*lockEntry
}

type lockEntry struct {
	mu   sync.Mutex
	refs int
}

func newPropertyLocks() *propertyLocks {
	return &propertyLocks{locks: make(map[uint]*lockEntry)}
}

// lock acquires the locks of all given properties in ascending id order and
// returns the function releasing them.
func (l *propertyLocks) lock(ids ...uint) func() {
	ids = uniqueSorted(ids)

	entries := make([]*lockEntry, 0, len(ids))
	l.mu.Lock()
	for _, id := range ids {
		e, ok := l.locks[id]
		if !ok {
			e = &lockEntry{}
			l.locks[id] = e
		}
		e.refs++
		entries = append(entries, e)
	}
	l.mu.Unlock()

	for _, e := range entries {
		e.mu.Lock()
	}

	return func() {
		for i := len(entries) - 1; i >= 0; i-- {
			entries[i].mu.Unlock()
		}
		l.mu.Lock()
		for i, id := range ids {
			entries[i].refs--
			if entries[i].refs == 0 {
				delete(l.locks, id)
			}
		}
		l.mu.Unlock()
	}
}

func uniqueSorted(ids []uint) []uint {
	seen := make(map[uint]struct{}, len(ids))
	out := make([]uint, 0, len(ids))
	for _, id := range ids {
		if id == 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
