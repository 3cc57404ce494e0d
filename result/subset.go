package result

import (
	"fmt"
	"sort"
)

// Subset is the closed set of master codes one operation may report. E is the
// operation's own error type; its values are master codes by construction, so
// converting E to Code never reinterprets anything.
type Subset[E ~uint8] struct {
	name    string
	members map[Code]E
}

// NewSubset declares the codes operation name may return. OK is implicit and
// must not be listed. It panics on a code outside the master space, which
// turns a bad declaration into an init-time failure.
func NewSubset[E ~uint8](name string, members ...E) Subset[E] {
	s := Subset[E]{name: name, members: make(map[Code]E, len(members))}
	for _, m := range members {
		c := Code(m)
		if c == OK || !c.Valid() {
			panic(fmt.Sprintf("result: %s declares invalid member %v", name, c))
		}
		s.members[c] = m
	}
	return s
}

// Name returns the operation name the subset was declared for.
func (s Subset[E]) Name() string { return s.name }

// Contains reports whether c is one of the declared failure codes.
func (s Subset[E]) Contains(c Code) bool {
	_, ok := s.members[c]
	return ok
}

// FromCode converts a master code back to the operation's error type.
// ok is false for OK and for codes the operation never reports.
func (s Subset[E]) FromCode(c Code) (e E, ok bool) {
	e, ok = s.members[c]
	return e, ok
}

// Members returns the declared failure codes in ascending order.
func (s Subset[E]) Members() []E {
	out := make([]E, 0, len(s.members))
	for _, m := range s.members {
		out = append(out, m)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Narrow maps an arbitrary error onto the subset. ok is false when the
// error's code is not a member; generic callers can still widen it with Of.
func (s Subset[E]) Narrow(err error) (E, bool) {
	return s.FromCode(Of(err))
}
