package pool

// List is an intrusive doubly-linked list over pool slot indices: next/prev
// live on the Slot itself, so pushing or removing a slot costs no
// allocation. A slot belongs to at most one List at a time.
type List struct {
	pool       *Pool
	head, tail int
	count      int
}

// NewList creates an empty list over the given pool's slots.
func NewList(p *Pool) *List {
	return &List{pool: p, head: noIndex, tail: noIndex}
}

// Count returns the number of slots currently in the list.
func (l *List) Count() int {
	return l.count
}

// Empty reports whether the list has no members.
func (l *List) Empty() bool {
	return l.count == 0
}

// Head returns the index of the first slot, or noIndex if empty.
func (l *List) Head() int {
	return l.head
}

// PushTail appends idx to the end of the list.
func (l *List) PushTail(idx int) {
	s := l.pool.Get(idx)
	s.next = noIndex
	s.prev = l.tail
	if l.tail != noIndex {
		l.pool.Get(l.tail).next = idx
	} else {
		l.head = idx
	}
	l.tail = idx
	s.queued = true
	l.count++
}

// PushHead prepends idx to the front of the list; used for retries that
// must take priority over freshly queued work.
func (l *List) PushHead(idx int) {
	s := l.pool.Get(idx)
	s.prev = noIndex
	s.next = l.head
	if l.head != noIndex {
		l.pool.Get(l.head).prev = idx
	} else {
		l.tail = idx
	}
	l.head = idx
	s.queued = true
	l.count++
}

// Remove unlinks idx from the list. idx must currently be a member.
func (l *List) Remove(idx int) {
	s := l.pool.Get(idx)
	if s.prev != noIndex {
		l.pool.Get(s.prev).next = s.next
	} else {
		l.head = s.next
	}
	if s.next != noIndex {
		l.pool.Get(s.next).prev = s.prev
	} else {
		l.tail = s.prev
	}
	s.next, s.prev, s.queued = noIndex, noIndex, false
	l.count--
}

// PopHead removes and returns the head index, or noIndex if empty.
func (l *List) PopHead() int {
	idx := l.head
	if idx == noIndex {
		return noIndex
	}
	l.Remove(idx)
	return idx
}

// ForEach walks the list from head to tail, calling fn(idx) for each member.
// fn may remove the current index from this (or any) list via List.Remove
// without disturbing the traversal — the next pointer is captured before
// fn runs.
func (l *List) ForEach(fn func(idx int)) {
	idx := l.head
	for idx != noIndex {
		next := l.pool.Get(idx).next
		fn(idx)
		idx = next
	}
}
