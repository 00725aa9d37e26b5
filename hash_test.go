package arenatrie

import (
	"hash/fnv"
	"math/bits"
	"testing"
)

func TestHashString(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want uint64
	}{
		{"", 0xcbf29ce484222325},
		{"a", 0xaf63dc4c8601ec8c},
		{"foobar", 0x85944171f73967e8},
	} {
		if got := HashString(tc.in); got != tc.want {
			t.Errorf("HashString(%q) = %#x, want %#x", tc.in, got, tc.want)
		}
		if got := HashBytes([]byte(tc.in)); got != tc.want {
			t.Errorf("HashBytes(%q) = %#x, want %#x", tc.in, got, tc.want)
		}
	}
}

func TestHashStringMatchesStdlib(t *testing.T) {
	for _, s := range testDataLarge[:4096] {
		h := fnv.New64a()
		_, _ = h.Write([]byte(s))
		if got, want := HashString(s), h.Sum64(); got != want {
			t.Fatalf("HashString(%q) = %#x, hash/fnv says %#x", s, got, want)
		}
	}
}

func TestDefaultHasherConsistent(t *testing.T) {
	hs := defaultHasher[string](7)
	for _, s := range testData {
		// Build an equal key with a distinct backing array.
		dup := string([]byte(s))
		if hs(s) != hs(dup) {
			t.Fatalf("equal strings %q hash differently", s)
		}
	}

	hk := defaultHasher[structKey](7)
	if hk(structKey{1, 2}) != hk(structKey{1, 2}) {
		t.Fatal("equal struct keys hash differently")
	}
	if hk(structKey{1, 2}) == hk(structKey{2, 1}) {
		t.Log("struct key collision, unlikely but allowed")
	}
}

func TestDefaultHasherIntsInjective(t *testing.T) {
	for _, seed := range []uint64{0, 1, 0xdeadbeef} {
		hi := defaultHasher[int](seed)
		seen := make(map[uint64]int, len(testDataIntLarge))
		for _, k := range testDataIntLarge {
			h := hi(k)
			if prev, ok := seen[h]; ok {
				t.Fatalf("seed %d: keys %d and %d share hash %#x", seed, prev, k, h)
			}
			seen[h] = k
		}
	}
}

func TestDefaultHasherTopBits(t *testing.T) {
	// The trie consumes the top bits first; small integers must not all
	// land in child 0.
	for _, h := range []func(uint64) uint64{
		func(k uint64) uint64 { return defaultHasher[uint64](0)(k) },
		func(k uint64) uint64 { return defaultHasher[uint8](0)(uint8(k)) },
		func(k uint64) uint64 { return defaultHasher[string](0)(string(rune('a' + k))) },
	} {
		var used [nChildren]bool
		for k := uint64(0); k < 64; k++ {
			used[h(k)>>hashShift] = true
		}
		for i, ok := range used {
			if !ok {
				t.Errorf("child %d never selected at the first level", i)
			}
		}
	}
}

func TestWideBuiltInHasher(t *testing.T) {
	h := wideBuiltInHasher[string](3)
	var ones int
	for _, s := range testData {
		ones += bits.OnesCount64(h(s) >> 32)
	}
	if ones == 0 {
		t.Fatal("upper half of the hash is always zero")
	}
}
