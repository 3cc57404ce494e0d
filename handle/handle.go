// Package handle implements generation-checked handle tables. A Handle is an
// opaque 64-bit token that can cross the C boundary; resolving it through the
// table that issued it either yields the live object or a typed error, so a
// stale, foreign or double-freed handle is never undefined behavior.
//
// Layout of a Handle, most significant bits first:
//
//	| kind (8) | generation (24) | index (32) |
//
// Generations start at 1, which keeps every issued handle non-zero.
package handle

import (
	"fmt"
	"sync"

	"github.com/opd-ai/sionet/result"
)

// Kind distinguishes handle categories so a socket handle cannot be used where
// an interface handle is expected.
type Kind uint8

// Handle kinds issued by this module.
const (
	KindBuilder Kind = iota + 1
	KindInterface
	KindSocket
	KindDNSQuery
)

// Handle is an opaque token issued by a Table. The zero value is null.
type Handle uint64

// Null is the handle value that never resolves.
const Null Handle = 0

const (
	generationBits = 24
	generationMask = 1<<generationBits - 1
	indexBits      = 32
)

var (
	// ErrNullHandle is returned for the zero handle.
	ErrNullHandle = result.New(result.InvalidHandle, "null handle")

	// ErrStaleHandle is returned for handles whose object was already
	// removed, including a second removal of the same handle.
	ErrStaleHandle = result.New(result.InvalidHandle, "stale handle")

	// ErrWrongKind is returned when a handle of another category is used.
	ErrWrongKind = result.New(result.InvalidHandle, "handle kind mismatch")
)

func pack(kind Kind, gen, index uint32) Handle {
	return Handle(uint64(kind)<<(generationBits+indexBits) | uint64(gen&generationMask)<<indexBits | uint64(index))
}

// Kind returns the category the handle was issued for.
func (h Handle) Kind() Kind { return Kind(h >> (generationBits + indexBits)) }

// Generation returns the slot generation the handle was issued with.
func (h Handle) Generation() uint32 { return uint32(h>>indexBits) & generationMask }

// Index returns the slot index.
func (h Handle) Index() uint32 { return uint32(h) }

// IsNull reports whether h is the null handle.
func (h Handle) IsNull() bool { return h == Null }

func (h Handle) String() string {
	if h.IsNull() {
		return "handle(null)"
	}
	return fmt.Sprintf("handle(%d:%d@%d)", h.Kind(), h.Index(), h.Generation())
}

type slot[T any] struct {
	gen  uint32
	used bool
	val  T
}

// Table stores objects of one kind behind handles. It is safe for concurrent
// use.
type Table[T any] struct {
	mu    sync.RWMutex
	kind  Kind
	slots []slot[T]
	free  []uint32
	live  int
}

// NewTable creates an empty table issuing handles of the given kind.
func NewTable[T any](kind Kind) *Table[T] {
	return &Table[T]{kind: kind}
}

// Kind returns the kind stamped on every handle of the table.
func (t *Table[T]) Kind() Kind { return t.kind }

// Insert stores v and returns a fresh handle for it.
func (t *Table[T]) Insert(v T) Handle {
	t.mu.Lock()
	defer t.mu.Unlock()

	var idx uint32
	if n := len(t.free); n > 0 {
		idx = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		t.slots = append(t.slots, slot[T]{gen: 1})
		idx = uint32(len(t.slots) - 1)
	}

	s := &t.slots[idx]
	s.used = true
	s.val = v
	t.live++
	return pack(t.kind, s.gen, idx)
}

// lookup must be called with t.mu held.
func (t *Table[T]) lookup(h Handle) (*slot[T], error) {
	if h.IsNull() {
		return nil, ErrNullHandle
	}
	if h.Kind() != t.kind {
		return nil, fmt.Errorf("%w: got kind %d, want %d", ErrWrongKind, h.Kind(), t.kind)
	}
	idx := h.Index()
	if int(idx) >= len(t.slots) {
		return nil, fmt.Errorf("%w: %v", ErrStaleHandle, h)
	}
	s := &t.slots[idx]
	if !s.used || s.gen != h.Generation() {
		return nil, fmt.Errorf("%w: %v", ErrStaleHandle, h)
	}
	return s, nil
}

// Get resolves h without changing ownership.
func (t *Table[T]) Get(h Handle) (T, error) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	s, err := t.lookup(h)
	if err != nil {
		var zero T
		return zero, err
	}
	return s.val, nil
}

// Take removes h from the table and returns its object, transferring
// ownership back to the caller. The handle is stale afterwards.
func (t *Table[T]) Take(h Handle) (T, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var zero T
	s, err := t.lookup(h)
	if err != nil {
		return zero, err
	}
	v := s.val
	t.release(h.Index(), s)
	return v, nil
}

// Remove drops h from the table.
func (t *Table[T]) Remove(h Handle) error {
	_, err := t.Take(h)
	return err
}

// release must be called with t.mu held.
func (t *Table[T]) release(idx uint32, s *slot[T]) {
	var zero T
	s.val = zero
	s.used = false
	s.gen = (s.gen + 1) & generationMask
	if s.gen == 0 {
		s.gen = 1
	}
	t.free = append(t.free, idx)
	t.live--
}

// Len returns the number of live handles.
func (t *Table[T]) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.live
}

// Range calls fn for every live handle in index order until fn returns false.
// fn must not modify the table.
func (t *Table[T]) Range(fn func(Handle, T) bool) {
	t.mu.RLock()
	defer t.mu.RUnlock()

	for i := range t.slots {
		s := &t.slots[i]
		if !s.used {
			continue
		}
		if !fn(pack(t.kind, s.gen, uint32(i)), s.val) {
			return
		}
	}
}

// Clear invalidates every live handle and returns the objects they referred
// to, in index order.
func (t *Table[T]) Clear() []T {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]T, 0, t.live)
	for i := range t.slots {
		s := &t.slots[i]
		if !s.used {
			continue
		}
		out = append(out, s.val)
		t.release(uint32(i), s)
	}
	return out
}
