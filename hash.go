package arenatrie

import (
	"math/bits"
	"reflect"
	"unsafe"
)

const (
	// fnvOffset64 and fnvPrime64 are the FNV-1a 64-bit parameters.
	fnvOffset64 uint64 = 0xcbf29ce484222325
	fnvPrime64  uint64 = 0x100000001b3

	// hashPrime is the 64-bit Golden Ratio mixing constant.
	// Multiplying by it moves the entropy of small integers into the
	// high bits, which are the first ones the trie consumes.
	hashPrime uint64 = 0x9E3779B185EBCA87
	// hashPrime32 is the 32-bit Golden Ratio constant, floor(2^32 / φ).
	hashPrime32 = 0x9E3779B9
)

// HashString returns the FNV-1a 64-bit hash of s.
func HashString(s string) uint64 {
	h := fnvOffset64
	for i := 0; i < len(s); i++ {
		h ^= uint64(s[i])
		h *= fnvPrime64
	}
	return h
}

// HashBytes returns the FNV-1a 64-bit hash of b.
// HashBytes(b) == HashString(string(b)) for every b.
func HashBytes(b []byte) uint64 {
	h := fnvOffset64
	for _, c := range b {
		h ^= uint64(c)
		h *= fnvPrime64
	}
	return h
}

func equalString(a, b string) bool {
	return a == b
}

// defaultEqual returns the built-in == for K, or nil if K is not
// comparable.
func defaultEqual[K any]() func(K, K) bool {
	_, equal := builtInHashEqual[K]()
	if equal == nil {
		return nil
	}
	return func(a, b K) bool {
		return equal(noescape(unsafe.Pointer(&a)), noescape(unsafe.Pointer(&b)))
	}
}

// defaultHasher picks the hash function used when none is injected.
// Integer keys get a multiplicative mix; everything else goes through
// the runtime's own map hasher. It returns nil if K is not comparable.
func defaultHasher[K any](seed uint64) func(K) uint64 {
	switch any(*new(K)).(type) {
	case uint, int, uintptr:
		return func(k K) uint64 {
			return (uint64(*(*uintptr)(unsafe.Pointer(&k))) ^ seed) * hashPrime
		}
	case uint64, int64:
		return func(k K) uint64 {
			return (*(*uint64)(unsafe.Pointer(&k)) ^ seed) * hashPrime
		}
	case uint32, int32:
		return func(k K) uint64 {
			return (uint64(*(*uint32)(unsafe.Pointer(&k))) ^ seed) * hashPrime
		}
	case uint16, int16:
		return func(k K) uint64 {
			return (uint64(*(*uint16)(unsafe.Pointer(&k))) ^ seed) * hashPrime
		}
	case uint8, int8:
		return func(k K) uint64 {
			return (uint64(*(*uint8)(unsafe.Pointer(&k))) ^ seed) * hashPrime
		}
	}
	return wideBuiltInHasher[K](seed)
}

// wideBuiltInHasher returns the runtime hasher for K as a 64-bit hash.
// On 32-bit platforms the runtime hasher yields 32 bits, so two hashes
// with distinct seeds are concatenated; otherwise the trie would only
// ever see zeros in the upper half.
func wideBuiltInHasher[K any](seed uint64) func(K) uint64 {
	hasher, _ := builtInHashEqual[K]()
	if hasher == nil {
		return nil
	}
	if bits.UintSize == 32 {
		lo, hi := uintptr(seed), uintptr(seed>>32)^hashPrime32
		return func(k K) uint64 {
			p := noescape(unsafe.Pointer(&k))
			return uint64(hasher(p, hi))<<32 | uint64(hasher(p, lo))
		}
	}
	s := uintptr(seed)
	return func(k K) uint64 {
		return uint64(hasher(noescape(unsafe.Pointer(&k)), s))
	}
}

// builtInHashEqual obtains Go's built-in hash and equality functions for
// K from the type descriptor of map[K]struct{}. Both are nil if K is not
// comparable.
//
// Notes:
//   - This implementation relies on Go's internal type representation
//   - It should be verified for compatibility with each Go version upgrade
func builtInHashEqual[K any]() (
	hasher func(unsafe.Pointer, uintptr) uintptr,
	equal func(unsafe.Pointer, unsafe.Pointer) bool,
) {
	kt := reflect.TypeFor[K]()
	if !kt.Comparable() {
		return nil, nil
	}
	mt := reflect.MapOf(kt, reflect.TypeFor[struct{}]())
	mapType := iTypeOf(reflect.Zero(mt).Interface()).MapType()
	return mapType.Hasher, mapType.Key.Equal
}

// noescape hides a pointer from escape analysis.  noescape is
// the identity function but escape analysis doesn't think the
// output depends on the input.  noescape is inlined and currently
// compiles down to zero instructions.
// USE CAREFULLY!
//
// nolint:all
//
//go:nosplit
//goland:noinspection ALL
func noescape(p unsafe.Pointer) unsafe.Pointer {
	x := uintptr(p)
	return unsafe.Pointer(x ^ 0)
}

type iTFlag uint8
type iKind uint8
type iNameOff int32

// TypeOff is the offset to a type from moduledata.types.  See resolveTypeOff in runtime.
type iTypeOff int32

type iType struct {
	Size_       uintptr
	PtrBytes    uintptr // number of (prefix) bytes in the type that can contain pointers
	Hash        uint32  // hash of type; avoids computation in hash tables
	TFlag       iTFlag  // extra type information flags
	Align_      uint8   // alignment of variable with this type
	FieldAlign_ uint8   // alignment of struct field with this type
	Kind_       iKind   // enumeration for C
	// function for comparing objects of this type
	// (ptr to object A, ptr to object B) -> ==?
	Equal func(unsafe.Pointer, unsafe.Pointer) bool
	// GCData stores the GC type data for the garbage collector.
	// Normally, GCData points to a bitmask that describes the
	// ptr/nonptr fields of the type. The bitmask will have at
	// least PtrBytes/ptrSize bits.
	// If the TFlagGCMaskOnDemand bit is set, GCData is instead a
	// **byte and the pointer to the bitmask is one dereference away.
	// The runtime will build the bitmask if needed.
	// (See runtime/type.go:getGCMask.)
	// Note: multiple types may have the same value of GCData,
	// including when TFlagGCMaskOnDemand is set. The types will, of course,
	// have the same pointer layout (but not necessarily the same size).
	GCData    *byte
	Str       iNameOff // string form
	PtrToThis iTypeOff // type for pointer to this type, may be zero
}

func (t *iType) MapType() *iMapType {
	return (*iMapType)(unsafe.Pointer(t))
}

type iMapType struct {
	iType
	Key   *iType
	Elem  *iType
	Group *iType // internal type representing a slot group
	// function for hashing keys (ptr to key, seed) -> hash
	Hasher func(unsafe.Pointer, uintptr) uintptr
}

func iTypeOf(a any) *iType {
	eface := *(*iEmptyInterface)(unsafe.Pointer(&a))
	// Types are either static (for compiler-created types) or
	// heap-allocated but always reachable (for reflection-created
	// types, held in the central map). So there is no need to
	// escape types. noescape here help avoid unnecessary escape
	// of v.
	return (*iType)(noescape(unsafe.Pointer(eface.Type)))
}

type iEmptyInterface struct {
	Type *iType
	Data unsafe.Pointer
}
