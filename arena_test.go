package arenatrie

import (
	"errors"
	"testing"
	"unsafe"
)

func TestArenaNew(t *testing.T) {
	a := NewArena()
	defer a.Free()

	ptrs := make([]*structKey, 0, 1000)
	for i := 0; i < 1000; i++ {
		p := New[structKey](a)
		if *p != (structKey{}) {
			t.Fatalf("allocation %d is not zeroed: %v", i, *p)
		}
		p.Service = uint32(i)
		p.Instance = uint64(i) * 3
		ptrs = append(ptrs, p)
	}
	// Earlier allocations must not move or be overwritten.
	for i, p := range ptrs {
		if p.Service != uint32(i) || p.Instance != uint64(i)*3 {
			t.Fatalf("allocation %d was clobbered: %v", i, *p)
		}
	}
	st := a.Stats()
	t.Log(st.ToString())
	if st.Allocs != 1000 {
		t.Fatalf("expected 1000 allocations, got %d", st.Allocs)
	}
	if want := 1000 * int(unsafe.Sizeof(structKey{})); st.Allocated != want {
		t.Fatalf("expected %d allocated bytes, got %d", want, st.Allocated)
	}
	if st.Reserved < st.Allocated {
		t.Fatalf("reserved %d < allocated %d", st.Reserved, st.Allocated)
	}
	if st.Slabs != 1 {
		t.Fatalf("expected one slab, got %d", st.Slabs)
	}
}

func TestArenaNilFallsBackToHeap(t *testing.T) {
	p := New[int](nil)
	*p = 5
	s := MakeSlice[string](nil, 3)
	if len(s) != 3 || cap(s) != 3 {
		t.Fatalf("unexpected heap slice len=%d cap=%d", len(s), cap(s))
	}
	var a *Arena
	a.Reset()
	a.Free()
	if a.Freed() {
		t.Fatal("nil arena reports freed")
	}
	if st := a.Stats(); st.Allocs != 0 {
		t.Fatalf("nil arena has allocations: %s", st.ToString())
	}
}

func TestArenaZeroValue(t *testing.T) {
	var a Arena
	p := New[int](&a)
	*p = 1
	if st := a.Stats(); st.Allocs != 1 || st.ChunkSize != defaultChunkSize {
		t.Fatalf("zero arena not initialized: %s", st.ToString())
	}
}

func TestArenaCacheLineSize(t *testing.T) {
	t.Log("CacheLineSize:", CacheLineSize)
	if CacheLineSize == 0 || CacheLineSize&(CacheLineSize-1) != 0 {
		t.Fatalf("CacheLineSize %d is not a power of two", CacheLineSize)
	}
	if defaultChunkSize != 256*int(CacheLineSize) {
		t.Fatalf("defaultChunkSize %d does not scale with CacheLineSize %d", defaultChunkSize, CacheLineSize)
	}
}

func TestArenaMakeSlice(t *testing.T) {
	a := NewArena(WithChunkSize(64))
	defer a.Free()

	s1 := MakeSlice[int64](a, 3)
	s2 := MakeSlice[int64](a, 3)
	if len(s1) != 3 || cap(s1) != 3 {
		t.Fatalf("unexpected len=%d cap=%d", len(s1), cap(s1))
	}
	for i := range s1 {
		s1[i] = int64(i + 1)
	}
	s1 = append(s1, 99) // must reallocate, not spill into s2
	for i, v := range s2 {
		if v != 0 {
			t.Fatalf("s2[%d] overwritten with %d", i, v)
		}
	}

	// Larger than a chunk: gets a chunk of its own.
	big := MakeSlice[int64](a, 100)
	if len(big) != 100 {
		t.Fatalf("unexpected len=%d", len(big))
	}
	if empty := MakeSlice[int64](a, 0); len(empty) != 0 {
		t.Fatalf("unexpected len=%d", len(empty))
	}
	if _, err := TryMakeSlice[int64](a, -1); !errors.Is(err, ErrInvalidSize) {
		t.Fatalf("expected ErrInvalidSize, got %v", err)
	}
}

func TestArenaZeroSizeType(t *testing.T) {
	a := NewArena()
	defer a.Free()
	for i := 0; i < 10; i++ {
		_ = New[struct{}](a)
	}
	s := MakeSlice[struct{}](a, 1000)
	if len(s) != 1000 {
		t.Fatalf("unexpected len=%d", len(s))
	}
	if st := a.Stats(); st.Reserved != 0 {
		t.Fatalf("zero-size type reserved memory: %s", st.ToString())
	}
}

func TestArenaMaxBytes(t *testing.T) {
	a := NewArena(WithChunkSize(64), WithMaxBytes(128))
	defer a.Free()

	n := 0
	for {
		_, err := TryNew[int64](a)
		if err != nil {
			if !errors.Is(err, ErrArenaFull) {
				t.Fatalf("unexpected error: %v", err)
			}
			break
		}
		n++
		if n > 1000 {
			t.Fatal("bounded arena never filled up")
		}
	}
	if n != 16 {
		t.Fatalf("expected 16 int64 in 128 bytes, got %d", n)
	}
	before := *a.Stats()
	if _, err := TryMakeSlice[int64](a, 4); !errors.Is(err, ErrArenaFull) {
		t.Fatalf("expected ErrArenaFull, got %v", err)
	}
	if after := *a.Stats(); after != before {
		t.Fatalf("failed allocation changed the arena:\n%s%s", before.ToString(), after.ToString())
	}

	defer func() {
		if r := recover(); r == nil {
			t.Fatal("expected New to panic on a full arena")
		}
	}()
	New[int64](a)
}

func TestArenaMaxBytesExactFit(t *testing.T) {
	// A full chunk would not fit, a single element still does.
	a := NewArena(WithChunkSize(1024), WithMaxBytes(16))
	defer a.Free()
	if _, err := TryNew[int64](a); err != nil {
		t.Fatalf("expected exact-fit allocation to succeed: %v", err)
	}
	if _, err := TryNew[int64](a); err != nil {
		t.Fatalf("expected second exact-fit allocation to succeed: %v", err)
	}
	if _, err := TryNew[int64](a); !errors.Is(err, ErrArenaFull) {
		t.Fatalf("expected ErrArenaFull, got %v", err)
	}
}

func TestArenaReset(t *testing.T) {
	a := NewArena(WithChunkSize(64))
	defer a.Free()

	for i := 0; i < 100; i++ {
		*New[int64](a) = -1
	}
	before := a.Stats()
	a.Reset()
	st := a.Stats()
	if st.Allocs != 0 || st.Allocated != 0 {
		t.Fatalf("reset kept allocations: %s", st.ToString())
	}
	if st.Reserved != before.Reserved || st.Chunks != before.Chunks {
		t.Fatalf("reset dropped chunks: %s", st.ToString())
	}
	for i := 0; i < 100; i++ {
		p := New[int64](a)
		if *p != 0 {
			t.Fatalf("reused memory is not zeroed: %d", *p)
		}
	}
	if st = a.Stats(); st.Chunks != before.Chunks {
		t.Fatalf("expected chunks to be reused, got %d, had %d", st.Chunks, before.Chunks)
	}
}

func TestArenaFree(t *testing.T) {
	a := NewArena()
	p := New[int](a)
	*p = 42
	a.Free()
	if !a.Freed() {
		t.Fatal("arena not marked freed")
	}
	if *p != 0 {
		t.Fatalf("freed memory still holds %d", *p)
	}
	if _, err := TryNew[int](a); !errors.Is(err, ErrArenaFreed) {
		t.Fatalf("expected ErrArenaFreed, got %v", err)
	}
	a.Free()
	a.Reset()
	if st := a.Stats(); !st.Freed || st.Reserved != 0 {
		t.Fatalf("unexpected stats after free: %s", st.ToString())
	}
}

func TestArenaTypedSlabs(t *testing.T) {
	a := NewArena()
	defer a.Free()
	_ = New[int](a)
	_ = New[string](a)
	_ = New[node[string, int]](a)
	_ = MakeSlice[int](a, 2)
	if st := a.Stats(); st.Slabs != 3 {
		t.Fatalf("expected 3 slabs, got %d", st.Slabs)
	}
}
