package cache

import "container/list"

// Policy tracks access recency for the keys held by a Cache.
//
// A Policy is not safe for concurrent use; the Cache calls it only while
// holding its own lock, so map and recency updates commit together.
type Policy interface {
	// Touch marks key as most recently used. It reports false, and does
	// nothing, if key is not tracked.
	Touch(key string) bool
	// Admit tracks key as most recently used. If that pushes the number of
	// tracked keys over capacity, the least recently used key is dropped
	// and returned so the caller can delete its entry in the same step.
	Admit(key string) (victim string, evicted bool)
	// Remove stops tracking key. It reports whether key was tracked.
	Remove(key string) bool
	// Len returns the number of tracked keys.
	Len() int
	// Keys returns tracked keys from most to least recently used.
	Keys() []string
}

// lru is a Policy backed by a doubly-linked list.
// Front = most recently used (MRU), Back = least recently used (LRU).
type lru struct {
	capacity int
	order    *list.List
	index    map[string]*list.Element
}

// NewLRU returns a least-recently-used Policy holding at most capacity keys.
func NewLRU(capacity int) Policy {
	return &lru{
		capacity: capacity,
		order:    list.New(),
		index:    make(map[string]*list.Element, capacity),
	}
}

func (l *lru) Touch(key string) bool {
	el, ok := l.index[key]
	if !ok {
		return false
	}
	l.order.MoveToFront(el)
	return true
}

func (l *lru) Admit(key string) (string, bool) {
	if el, ok := l.index[key]; ok {
		l.order.MoveToFront(el)
		return "", false
	}
	l.index[key] = l.order.PushFront(key)

	if l.order.Len() <= l.capacity {
		return "", false
	}
	back := l.order.Back()
	victim := back.Value.(string)
	l.order.Remove(back)
	delete(l.index, victim)
	return victim, true
}

func (l *lru) Remove(key string) bool {
	el, ok := l.index[key]
	if !ok {
		return false
	}
	l.order.Remove(el)
	delete(l.index, key)
	return true
}

func (l *lru) Len() int {
	return l.order.Len()
}

func (l *lru) Keys() []string {
	out := make([]string, 0, l.order.Len())
	for el := l.order.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.(string))
	}
	return out
}
