package arenatrie

import (
	"errors"
	"fmt"
	"math"
	"reflect"
	"strings"
	"unsafe"
)

var (
	// ErrArenaFull is returned when an allocation would grow the arena
	// past the limit configured with WithMaxBytes.
	ErrArenaFull = errors.New("arena capacity exceeded")
	// ErrArenaFreed is returned for allocations from an arena after Free.
	ErrArenaFreed = errors.New("arena already freed")
	// ErrInvalidSize is returned for negative element counts.
	ErrInvalidSize = errors.New("invalid allocation size")
)

// defaultChunkSize is the preferred chunk size in bytes.
const defaultChunkSize = 256 * int(CacheLineSize)

// Arena is a region allocator. Objects are carved out of large chunks
// by bumping an offset, are always zero-initialized, and are never freed
// one by one: the whole region is released at once by Reset or Free.
//
// Chunks are typed (one slab per element type) so that pointers stored
// in arena memory stay visible to the garbage collector.
//
// An Arena must not be copied after first use and is not safe for
// concurrent use.
type Arena struct {
	_         noCopy
	slabs     map[reflect.Type]slabber
	chunkSize int // WithChunkSize
	maxBytes  int // WithMaxBytes
	reserved  int
	allocated int
	allocs    int
	chunks    int
	freed     bool
}

// ArenaConfig defines configurable Arena options.
type ArenaConfig struct {
	chunkSize int
	maxBytes  int
}

// WithChunkSize configures the preferred chunk size in bytes.
// Allocations larger than a chunk get a chunk of their own.
// If size is zero or negative, the value is ignored.
func WithChunkSize(size int) func(*ArenaConfig) {
	return func(c *ArenaConfig) {
		c.chunkSize = size
	}
}

// WithMaxBytes limits the total number of bytes the arena may reserve
// from the Go heap. Once reached, allocations fail with ErrArenaFull.
// If limit is zero or negative, the arena is unbounded.
func WithMaxBytes(limit int) func(*ArenaConfig) {
	return func(c *ArenaConfig) {
		c.maxBytes = limit
	}
}

// NewArena creates a new Arena instance.
//
// Parameters:
//   - WithChunkSize option for the preferred chunk size
//   - WithMaxBytes option to bound the arena
func NewArena(options ...func(*ArenaConfig)) *Arena {
	var cfg ArenaConfig
	for _, opt := range options {
		opt(&cfg)
	}
	a := &Arena{
		slabs:     make(map[reflect.Type]slabber),
		chunkSize: defaultChunkSize,
	}
	if cfg.chunkSize > 0 {
		a.chunkSize = cfg.chunkSize
	}
	if cfg.maxBytes > 0 {
		a.maxBytes = cfg.maxBytes
	}
	return a
}

// New returns a pointer to a new zero value of T allocated from a.
// A nil arena allocates from the Go heap.
// New panics if the arena cannot satisfy the request; use TryNew to
// get the error instead.
func New[T any](a *Arena) *T {
	p, err := TryNew[T](a)
	if err != nil {
		panic(err)
	}
	return p
}

// TryNew is like New but reports allocation failures as errors.
func TryNew[T any](a *Arena) (*T, error) {
	if a == nil {
		return new(T), nil
	}
	s, err := allocate[T](a, 1)
	if err != nil {
		return nil, err
	}
	return &s[0], nil
}

// MakeSlice returns n contiguous zero values of T allocated from a,
// with len and cap equal to n. A nil arena allocates from the Go heap.
// MakeSlice panics if the arena cannot satisfy the request.
func MakeSlice[T any](a *Arena, n int) []T {
	s, err := TryMakeSlice[T](a, n)
	if err != nil {
		panic(err)
	}
	return s
}

// TryMakeSlice is like MakeSlice but reports allocation failures as errors.
func TryMakeSlice[T any](a *Arena, n int) ([]T, error) {
	if n < 0 {
		return nil, fmt.Errorf("arenatrie: make slice of %d elements: %w", n, ErrInvalidSize)
	}
	if a == nil {
		return make([]T, n), nil
	}
	return allocate[T](a, n)
}

// Reset releases every allocation at once while keeping the chunks for
// reuse. The memory is zeroed; every pointer handed out before the call
// must not be used afterwards.
func (a *Arena) Reset() {
	if a == nil || a.freed {
		return
	}
	for _, s := range a.slabs {
		s.reset()
	}
	a.allocated = 0
	a.allocs = 0
}

// Free ends the lifetime of the arena. All chunks are zeroed and handed
// back to the garbage collector; later allocations fail with
// ErrArenaFreed. Free is idempotent.
func (a *Arena) Free() {
	if a == nil || a.freed {
		return
	}
	for _, s := range a.slabs {
		s.release()
	}
	a.slabs = nil
	a.reserved = 0
	a.allocated = 0
	a.allocs = 0
	a.chunks = 0
	a.freed = true
}

// Freed reports whether Free has been called.
func (a *Arena) Freed() bool {
	return a != nil && a.freed
}

// Stats returns statistics for the Arena.
func (a *Arena) Stats() *ArenaStats {
	stats := &ArenaStats{}
	if a == nil {
		return stats
	}
	stats.ChunkSize = a.chunkSize
	stats.MaxBytes = a.maxBytes
	stats.Reserved = a.reserved
	stats.Allocated = a.allocated
	stats.Allocs = a.allocs
	stats.Chunks = a.chunks
	stats.Slabs = len(a.slabs)
	stats.Freed = a.freed
	return stats
}

// ArenaStats is Arena statistics.
//
// Warning: arena statistics are intended to be used for diagnostic
// purposes, not for production code.
type ArenaStats struct {
	// ChunkSize is the preferred chunk size in bytes.
	ChunkSize int
	// MaxBytes is the reservation limit, 0 if unbounded.
	MaxBytes int
	// Reserved is the number of bytes held in chunks.
	Reserved int
	// Allocated is the number of bytes handed out since the last Reset.
	Allocated int
	// Allocs is the number of allocations since the last Reset.
	Allocs int
	// Chunks is the number of chunks, in use or spare.
	Chunks int
	// Slabs is the number of distinct element types allocated.
	Slabs int
	// Freed reports whether the arena was freed.
	Freed bool
}

// ToString returns string representation of arena stats.
func (s *ArenaStats) ToString() string {
	var sb strings.Builder
	sb.WriteString("ArenaStats{\n")
	sb.WriteString(fmt.Sprintf("ChunkSize: %d\n", s.ChunkSize))
	sb.WriteString(fmt.Sprintf("MaxBytes:  %d\n", s.MaxBytes))
	sb.WriteString(fmt.Sprintf("Reserved:  %d\n", s.Reserved))
	sb.WriteString(fmt.Sprintf("Allocated: %d\n", s.Allocated))
	sb.WriteString(fmt.Sprintf("Allocs:    %d\n", s.Allocs))
	sb.WriteString(fmt.Sprintf("Chunks:    %d\n", s.Chunks))
	sb.WriteString(fmt.Sprintf("Slabs:     %d\n", s.Slabs))
	sb.WriteString(fmt.Sprintf("Freed:     %t\n", s.Freed))
	sb.WriteString("}\n")
	return sb.String()
}

type slabber interface {
	reset()
	release()
}

// slab holds the chunks of a single element type.
// free is the unused tail of the current chunk.
type slab[T any] struct {
	chunks [][]T
	spare  [][]T
	free   []T
}

func (s *slab[T]) reset() {
	for _, c := range s.chunks {
		clear(c)
	}
	s.spare = append(s.spare, s.chunks...)
	s.chunks = s.chunks[:0]
	s.free = nil
}

func (s *slab[T]) release() {
	for _, c := range s.chunks {
		clear(c)
	}
	for _, c := range s.spare {
		clear(c)
	}
	s.chunks, s.spare, s.free = nil, nil, nil
}

// takeSpare removes and returns a spare chunk holding at least n elements.
func (s *slab[T]) takeSpare(n int) []T {
	for i, c := range s.spare {
		if len(c) >= n {
			last := len(s.spare) - 1
			s.spare[i] = s.spare[last]
			s.spare[last] = nil
			s.spare = s.spare[:last]
			return c
		}
	}
	return nil
}

func slabOf[T any](a *Arena) *slab[T] {
	typ := reflect.TypeFor[T]()
	if s, ok := a.slabs[typ]; ok {
		return s.(*slab[T])
	}
	s := &slab[T]{}
	a.slabs[typ] = s
	return s
}

// allocate bumps n elements of T out of the current chunk, opening a new
// chunk when the current one is too short. The arena is left untouched
// when the request fails.
func allocate[T any](a *Arena, n int) ([]T, error) {
	if a.freed {
		return nil, ErrArenaFreed
	}
	if a.slabs == nil {
		// Zero Arena, as opposed to one built by NewArena.
		a.slabs = make(map[reflect.Type]slabber)
		if a.chunkSize <= 0 {
			a.chunkSize = defaultChunkSize
		}
	}
	size := int(unsafe.Sizeof(*new(T)))
	if size == 0 {
		a.allocs++
		return make([]T, n), nil
	}
	s := slabOf[T](a)
	if len(s.free) < n {
		c := s.takeSpare(n)
		if c == nil {
			if n > math.MaxInt/size {
				return nil, fmt.Errorf("arenatrie: allocate %d x %d bytes: %w", n, size, ErrInvalidSize)
			}
			clen := max(a.chunkSize/size, n, 1)
			if a.maxBytes > 0 && a.reserved+clen*size > a.maxBytes {
				// Fall back to an exact fit before giving up.
				clen = n
				if a.reserved+clen*size > a.maxBytes {
					return nil, fmt.Errorf("arenatrie: allocate %d x %d bytes (%d of %d reserved): %w",
						n, size, a.reserved, a.maxBytes, ErrArenaFull)
				}
			}
			c = make([]T, clen)
			a.reserved += clen * size
			a.chunks++
		}
		s.chunks = append(s.chunks, c)
		s.free = c
	}
	r := s.free[:n:n]
	s.free = s.free[n:]
	a.allocated += n * size
	a.allocs++
	return r, nil
}

// noCopy may be embedded into structs which must not be copied
// after the first use. See https://golang.org/issues/8005#issuecomment-190753527
type noCopy struct{}

// Lock is a no-op used by -copylocks checker from `go vet`.
func (*noCopy) Lock()   {}
func (*noCopy) Unlock() {}
