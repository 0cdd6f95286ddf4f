// Package pool implements the fixed-capacity message slot allocator and the
// three indexed queues (Ready, Wait, Timer) built on top of it.
package pool

import (
	"errors"
	"time"

	"github.com/libmcu/ocpp-go/internal/ocppmsg"
)

// ErrOutOfMemory is returned by Alloc when every slot is occupied.
var ErrOutOfMemory = errors.New("pool: out of memory")

const noIndex = -1

// Slot is the only heap-equivalent unit in the engine. It is addressed by
// its index into Pool.slots, never by pointer, so that the three queues can
// be built on plain int indices instead of linked allocations.
type Slot struct {
	ID       string
	Role     ocppmsg.Role
	Type     ocppmsg.Type
	Payload  []byte
	Expiry   time.Time
	Attempts int

	// queue linkage. A slot is a member of at most one queue at a time
	// (invariant: free XOR Ready XOR Wait XOR Timer), so one next/prev
	// pair is enough for all three lists.
	next, prev int
	queued     bool
}

// Pool is a fixed array of N slots. Alloc performs a linear scan for a free
// slot; it is the allocator of last resort and holds no storage beyond the
// slots themselves — the queues only reference pool indices.
type Pool struct {
	slots []Slot
}

// New creates a pool with capacity slots, all initially free.
func New(capacity int) *Pool {
	p := &Pool{slots: make([]Slot, capacity)}
	for i := range p.slots {
		p.slots[i].next = noIndex
		p.slots[i].prev = noIndex
	}
	return p
}

// Capacity returns the total number of slots, occupied or not.
func (p *Pool) Capacity() int {
	return len(p.slots)
}

// Alloc scans for a free slot, marks it Alloc, and returns its index.
func (p *Pool) Alloc() (int, error) {
	for i := range p.slots {
		if p.slots[i].Role == ocppmsg.None {
			p.slots[i].Role = ocppmsg.Alloc
			p.slots[i].Attempts = 0
			p.slots[i].next = noIndex
			p.slots[i].prev = noIndex
			return i, nil
		}
	}
	return noIndex, ErrOutOfMemory
}

// Release zeroes a slot, returning it to the free pool. The caller is
// responsible for removing the slot from any queue and for firing the
// MESSAGE_FREE event before calling Release, since the pool itself has no
// notion of the event callback.
func (p *Pool) Release(idx int) {
	p.slots[idx] = Slot{next: noIndex, prev: noIndex}
}

// Get returns a pointer to the slot at idx for in-place mutation.
func (p *Pool) Get(idx int) *Slot {
	return &p.slots[idx]
}

// Occupied counts slots not currently free.
func (p *Pool) Occupied() int {
	n := 0
	for i := range p.slots {
		if p.slots[i].Role != ocppmsg.None {
			n++
		}
	}
	return n
}
