package arenatrie

import (
	"fmt"
	"math/bits"
)

// minSliceCap is the capacity a Slice grows to on its first push.
const minSliceCap = 4

// Slice is a growable sequence whose backing storage comes from an Arena.
// When full, it doubles its capacity by allocating a new backing run and
// copying the elements over; the old run is simply abandoned, as arena
// memory is never freed individually.
//
// The zero Slice is empty and ready to use.
type Slice[T any] struct {
	items []T
}

// Push appends a zero element and returns a pointer to it.
// The pointer stays valid until the Slice grows again.
// A nil arena grows the Slice on the Go heap.
// Push panics if the arena cannot satisfy the request.
func (s *Slice[T]) Push(a *Arena) *T {
	p, err := s.TryPush(a)
	if err != nil {
		panic(err)
	}
	return p
}

// TryPush is like Push but reports allocation failures as errors.
// The Slice is unchanged on failure.
func (s *Slice[T]) TryPush(a *Arena) (*T, error) {
	n := len(s.items)
	if n == cap(s.items) {
		if err := s.grow(a, 1); err != nil {
			return nil, err
		}
	}
	s.items = s.items[:n+1]
	return &s.items[n], nil
}

// Append adds elems to the end of the Slice.
func (s *Slice[T]) Append(a *Arena, elems ...T) error {
	if cap(s.items)-len(s.items) < len(elems) {
		if err := s.grow(a, len(elems)); err != nil {
			return err
		}
	}
	s.items = append(s.items, elems...)
	return nil
}

// grow reallocates the backing run so that at least extra more
// elements fit, doubling the capacity.
func (s *Slice[T]) grow(a *Arena, extra int) error {
	n := len(s.items)
	newCap := max(cap(s.items)*2, minSliceCap)
	for newCap-n < extra {
		newCap *= 2
	}
	buf, err := TryMakeSlice[T](a, newCap)
	if err != nil {
		return fmt.Errorf("arenatrie: grow slice to %d: %w", newCap, err)
	}
	copy(buf, s.items)
	s.items = buf[:n]
	return nil
}

// Len returns the number of elements in the Slice.
func (s *Slice[T]) Len() int {
	return len(s.items)
}

// Cap returns the number of elements the Slice can hold before growing.
func (s *Slice[T]) Cap() int {
	return cap(s.items)
}

// At returns a pointer to the i-th element. It panics if i is out of range.
func (s *Slice[T]) At(i int) *T {
	return &s.items[i]
}

// Items returns the elements as a Go slice sharing the Slice's storage.
func (s *Slice[T]) Items() []T {
	return s.items
}

// All is the iterator version for iterating over all elements with
// their indexes.
func (s *Slice[T]) All() func(yield func(int, T) bool) {
	return func(yield func(int, T) bool) {
		for i, v := range s.items {
			if !yield(i, v) {
				return
			}
		}
	}
}

// String implement the formatting output interface fmt.Stringer
func (s *Slice[T]) String() string {
	return fmt.Sprint(s.items)
}

// Append appends elems to slice, reallocating from the arena when the
// capacity is too small. The new capacity is the next power of two that
// fits the result.
// Append panics if the arena cannot satisfy the request.
func Append[T any](a *Arena, slice []T, elems ...T) []T {
	if cap(slice)-len(slice) < len(elems) {
		newCap := 1 << bits.Len(uint(len(slice)+len(elems)))
		newSlice := MakeSlice[T](a, newCap)[:len(slice)]
		copy(newSlice, slice)
		slice = newSlice
	}
	return append(slice, elems...)
}
