package arenatrie

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"math/rand/v2"
	"reflect"
	"strings"
)

var (
	// ErrNoHasher is returned when inserting into a Map whose key type
	// has no built-in hasher and none was injected.
	ErrNoHasher = errors.New("no hash function for key type")
	// ErrKeyNotFound is returned when a value is stored for an absent key
	// without an arena to allocate its entry from.
	ErrKeyNotFound = errors.New("key not found")
)

const (
	// nChildrenLog2 is the number of hash bits consumed per trie level.
	nChildrenLog2 = 2
	nChildren     = 1 << nChildrenLog2
	// hashShift selects the top nChildrenLog2 bits of a 64-bit hash.
	hashShift = 64 - nChildrenLog2
	// maxHashDepth is the depth at which every hash bit has been used.
	// Deeper nodes can only be reached through child 0.
	maxHashDepth = 64 / nChildrenLog2
)

// Map is an associative container laid out as a hash trie whose nodes
// are allocated from an Arena.
//
// The hash of a key is consumed two bits at a time, top bits first, to
// pick one of four children at each level, so the depth of the trie is
// bounded by the hash width rather than the key count. There are no
// buckets, no resizing and no rehashing. The shape of the trie is a pure
// function of the inserted hashes; no rebalancing takes place, and keys
// sharing a long hash prefix form a chain.
//
// Entries cannot be deleted: a key is inserted once and lives as long as
// the arena its node came from. Only the value slot is mutable, through
// the pointer returned by Upsert.
//
// A Map is not safe for concurrent use. Concurrent readers are fine as
// long as nobody inserts; any insertion needs external synchronization.
//
// The zero Map is empty and ready to use, hashing keys with the built-in
// hasher under a random seed. Key types that are not comparable, such as
// slices, have no built-in hasher and need NewMapWithHasher.
type Map[K any, V any] struct {
	_     noCopy
	root  *node[K, V]
	hash  func(K) uint64
	equal func(K, K) bool
	size  int
}

// MapConfig defines configurable Map options.
type MapConfig struct {
	seed    uint64
	hasSeed bool
}

// WithSeed configures the seed of the built-in hasher.
// With a fixed seed the trie shape is reproducible across runs.
// It has no effect on injected hash functions.
func WithSeed(seed uint64) func(*MapConfig) {
	return func(c *MapConfig) {
		c.seed = seed
		c.hasSeed = true
	}
}

// NewMap creates a Map hashing keys with the built-in hasher and
// comparing them with ==.
//
// Parameters:
//   - WithSeed option for a deterministic hash seed
func NewMap[K comparable, V any](options ...func(*MapConfig)) *Map[K, V] {
	return NewMapWithHasher[K, V](nil, nil, options...)
}

// NewMapWithHasher creates a Map with custom hashing and equality functions.
// The pair must be consistent, equal(a, b) implies hash(a) == hash(b), and
// deterministic for the life of the Map. Violations are not detected:
// lookups may miss present keys and duplicates may be created.
//
// Parameters:
//   - hash: nil uses the built-in hasher, required for non-comparable keys
//   - equal: nil uses ==, required for non-comparable keys
//   - WithSeed option for a deterministic seed of the built-in hasher
func NewMapWithHasher[K any, V any](
	hash func(key K) uint64,
	equal func(a, b K) bool,
	options ...func(*MapConfig),
) *Map[K, V] {
	var cfg MapConfig
	for _, opt := range options {
		opt(&cfg)
	}
	m := &Map[K, V]{hash: hash, equal: equal}
	m.initSlow(&cfg)
	return m
}

func (m *Map[K, V]) init() bool {
	if m.hash == nil || m.equal == nil {
		return m.initSlow(nil)
	}
	return true
}

// initSlow installs the built-in hasher and equality for whichever of the
// two is missing. It reports false if K has none.
func (m *Map[K, V]) initSlow(cfg *MapConfig) bool {
	if m.hash == nil {
		var seed uint64
		if cfg != nil && cfg.hasSeed {
			seed = cfg.seed
		} else {
			seed = rand.Uint64()
		}
		m.hash = defaultHasher[K](seed)
	}
	if m.equal == nil {
		m.equal = defaultEqual[K]()
	}
	return m.hash != nil && m.equal != nil
}

// NewStringMap creates a Map keyed by text. Keys are hashed with FNV-1a
// and compared byte by byte, so no hash or equality function is needed.
func NewStringMap[V any]() *Map[string, V] {
	return NewMapWithHasher[string, V](HashString, equalString)
}

// Upsert returns a pointer to the value stored for key.
// If the key is absent and a is not nil, a new entry with a zero value
// is allocated from a and a pointer to its value is returned for the
// caller to fill in. If the key is absent and a is nil, Upsert returns
// nil: a nil arena makes the call lookup-only.
//
// Upsert panics if the arena cannot satisfy the request; use TryUpsert
// to get the error instead.
func (m *Map[K, V]) Upsert(a *Arena, key K) *V {
	v, err := m.TryUpsert(a, key)
	if err != nil {
		panic(err)
	}
	return v
}

// TryUpsert is like Upsert but reports allocation failures as errors.
// The node is allocated before any slot is written, so a failed call
// leaves the Map exactly as it was.
func (m *Map[K, V]) TryUpsert(a *Arena, key K) (*V, error) {
	if !m.init() {
		return nil, fmt.Errorf("arenatrie: insert key %v: %w", key, ErrNoHasher)
	}
	slot, h0 := m.find(key)
	if *slot != nil {
		return &(*slot).value, nil
	}
	if a == nil {
		return nil, nil
	}
	n, err := TryNew[node[K, V]](a)
	if err != nil {
		return nil, fmt.Errorf("arenatrie: insert key %v: %w", key, err)
	}
	n.key = key
	//goland:noinspection ALL
	if embeddedHash {
		n.setHash(h0)
	}
	*slot = n
	m.size++
	return &n.value, nil
}

// find walks the trie for key. It returns the slot holding the node with
// an equal key, or the empty slot where such a node belongs, along with
// the full hash of key. The Map must be initialized.
func (m *Map[K, V]) find(key K) (**node[K, V], uint64) {
	h0 := m.hash(key)
	slot := &m.root
	for h := h0; *slot != nil; h <<= nChildrenLog2 {
		n := *slot
		//goland:noinspection ALL
		if (!embeddedHash || n.getHash() == h0) && m.equal(key, n.key) {
			return slot, h0
		}
		slot = &n.children[h>>hashShift]
	}
	return slot, h0
}

// Lookup returns a pointer to the value stored for key, or nil if the
// key is absent. It never inserts.
func (m *Map[K, V]) Lookup(key K) *V {
	if m.root == nil || !m.init() {
		return nil
	}
	slot, _ := m.find(key)
	if *slot == nil {
		return nil
	}
	return &(*slot).value
}

// Load returns the value stored in the map for a key, or the zero
// value if no value is present.
// The ok result indicates whether value was found in the map.
func (m *Map[K, V]) Load(key K) (value V, ok bool) {
	if v := m.Lookup(key); v != nil {
		return *v, true
	}
	return
}

// HasKey to check if the key exist
func (m *Map[K, V]) HasKey(key K) bool {
	return m.Lookup(key) != nil
}

// LoadOrStore returns the existing value for the key if present.
// Otherwise, it allocates an entry from a and stores the given value.
// The loaded result is true if the value was loaded, false if stored.
// With a nil arena an absent key fails with ErrKeyNotFound.
func (m *Map[K, V]) LoadOrStore(a *Arena, key K, value V) (actual V, loaded bool, err error) {
	if v := m.Lookup(key); v != nil {
		return *v, true, nil
	}
	v, err := m.TryUpsert(a, key)
	if err != nil {
		return actual, false, err
	}
	if v == nil {
		return actual, false, fmt.Errorf("arenatrie: load or store key %v: no arena given: %w", key, ErrKeyNotFound)
	}
	*v = value
	return value, false, nil
}

// Store sets the value for a key, allocating the entry from a if needed.
// With a nil arena only existing keys can be stored; an absent key
// fails with ErrKeyNotFound.
func (m *Map[K, V]) Store(a *Arena, key K, value V) error {
	v, err := m.TryUpsert(a, key)
	if err != nil {
		return err
	}
	if v == nil {
		return fmt.Errorf("arenatrie: store key %v: no arena given: %w", key, ErrKeyNotFound)
	}
	*v = value
	return nil
}

// Size returns the number of key-value pairs in the map.
// This is an O(1) operation.
func (m *Map[K, V]) Size() int {
	return m.size
}

// IsZero checks if the map is empty.
func (m *Map[K, V]) IsZero() bool {
	return m.root == nil
}

// RangeEntry calls yield for each entry with a pointer to its value, which
// may be written through. The order is a pre-order walk visiting children
// 0 to 3, and depends only on the hashes of the keys.
// If yield returns false, range stops the iteration.
func (m *Map[K, V]) RangeEntry(yield func(key K, value *V) bool) {
	if m.root == nil {
		return
	}
	stack := make([]*node[K, V], 0, 2*maxHashDepth)
	stack = append(stack, m.root)
	for len(stack) > 0 {
		n := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !yield(n.key, &n.value) {
			return
		}
		for i := nChildren - 1; i >= 0; i-- {
			if c := n.children[i]; c != nil {
				stack = append(stack, c)
			}
		}
	}
}

// Range calls yield sequentially for each key and value present in the map.
// If yield returns false, range stops the iteration.
func (m *Map[K, V]) Range(yield func(key K, value V) bool) {
	m.RangeEntry(func(key K, value *V) bool {
		return yield(key, *value)
	})
}

// All returns an iterator function for use with range-over-func.
// It provides the same functionality as Range but in iterator form.
func (m *Map[K, V]) All() func(yield func(K, V) bool) {
	return m.Range
}

// Keys is the iterator version for iterating over all keys.
func (m *Map[K, V]) Keys() func(yield func(K) bool) {
	return func(yield func(K) bool) {
		m.RangeEntry(func(key K, _ *V) bool {
			return yield(key)
		})
	}
}

// Values is the iterator version for iterating over all values.
func (m *Map[K, V]) Values() func(yield func(V) bool) {
	return func(yield func(V) bool) {
		m.RangeEntry(func(_ K, value *V) bool {
			return yield(*value)
		})
	}
}

// ToMap collect all entries of m and return a map[K]V
func ToMap[K comparable, V any](m *Map[K, V]) map[K]V {
	return ToMapWithLimit(m, -1)
}

// ToMapWithLimit collect up to limit entries into a map[K]V, limit < 0 is no limit
func ToMapWithLimit[K comparable, V any](m *Map[K, V], limit int) map[K]V {
	if limit < 0 {
		limit = math.MaxInt
	}
	a := make(map[K]V, min(m.size, limit))
	if limit == 0 {
		return a
	}
	m.Range(func(k K, v V) bool {
		a[k] = v
		return len(a) < limit
	})
	return a
}

// FromMap imports key-value pairs from a standard Go map into m,
// allocating the new entries from a. Existing keys are overwritten.
func FromMap[K comparable, V any](m *Map[K, V], a *Arena, source map[K]V) error {
	for k, v := range source {
		if err := m.Store(a, k, v); err != nil {
			return err
		}
	}
	return nil
}

// goMap collects up to limit entries into a Go map built by reflection,
// since K is not constrained to comparable. ok is false if K cannot key
// a Go map.
func (m *Map[K, V]) goMap(limit int) (rv reflect.Value, ok bool) {
	kt := reflect.TypeFor[K]()
	if !kt.Comparable() {
		return rv, false
	}
	rv = reflect.MakeMapWithSize(reflect.MapOf(kt, reflect.TypeFor[V]()), min(m.size, limit))
	if limit == 0 {
		return rv, true
	}
	m.Range(func(k K, v V) bool {
		rv.SetMapIndex(reflect.ValueOf(&k).Elem(), reflect.ValueOf(&v).Elem())
		return rv.Len() < limit
	})
	return rv, true
}

// String implement the formatting output interface fmt.Stringer
func (m *Map[K, V]) String() string {
	const limit = 1024
	if rv, ok := m.goMap(limit); ok {
		return strings.Replace(fmt.Sprint(rv.Interface()), "map[", "Map[", 1)
	}
	// Keys that cannot be sorted by fmt are printed in trie order.
	var sb strings.Builder
	sb.WriteString("Map[")
	n := 0
	m.Range(func(k K, v V) bool {
		if n > 0 {
			sb.WriteByte(' ')
		}
		fmt.Fprintf(&sb, "%v:%v", k, v)
		n++
		return n < limit
	})
	sb.WriteByte(']')
	return sb.String()
}

var jsonMarshal func(v any) ([]byte, error)

// SetDefaultJSONMarshal sets the default JSON serialization function.
// If not set, the standard library is used by default.
func SetDefaultJSONMarshal(marshal func(v any) ([]byte, error)) {
	jsonMarshal = marshal
}

// MarshalJSON JSON serialization
func (m *Map[K, V]) MarshalJSON() ([]byte, error) {
	rv, ok := m.goMap(math.MaxInt)
	if !ok {
		return nil, fmt.Errorf("arenatrie: marshal Map[%v]: unsupported key type", reflect.TypeFor[K]())
	}
	if jsonMarshal != nil {
		return jsonMarshal(rv.Interface())
	}
	return json.Marshal(rv.Interface())
}

// Stats returns statistics for the Map. It's an O(N) operation,
// so it should be used only for diagnostics or debugging purposes.
func (m *Map[K, V]) Stats() *TrieStats {
	stats := &TrieStats{Size: m.size}
	if m.root == nil {
		return stats
	}
	type frame struct {
		n     *node[K, V]
		depth int
	}
	var totalDepth int
	stack := []frame{{m.root, 0}}
	for len(stack) > 0 {
		f := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		stats.Nodes++
		totalDepth += f.depth
		if f.depth > stats.MaxDepth {
			stats.MaxDepth = f.depth
		}
		for len(stats.DepthCounts) <= f.depth {
			stats.DepthCounts = append(stats.DepthCounts, 0)
		}
		stats.DepthCounts[f.depth]++
		if f.depth >= maxHashDepth {
			stats.Exhausted++
		}
		children := 0
		for _, c := range f.n.children {
			if c == nil {
				stats.EmptySlots++
				continue
			}
			children++
			stack = append(stack, frame{c, f.depth + 1})
		}
		switch children {
		case 0:
			stats.Leaves++
		case nChildren:
			stats.FullNodes++
		}
	}
	stats.MeanDepth = float64(totalDepth) / float64(stats.Nodes)
	return stats
}

// TrieStats is Map statistics.
//
// Warning: map statistics are intended to be used for diagnostic
// purposes, not for production code. This means that breaking changes
// may be introduced into this struct even between minor releases.
type TrieStats struct {
	// Size is the number of entries according to the internal counter.
	Size int
	// Nodes is the exact number of nodes reachable from the root.
	Nodes int
	// Leaves is the number of nodes without children.
	Leaves int
	// FullNodes is the number of nodes with all four children.
	FullNodes int
	// EmptySlots is the number of unused child slots.
	EmptySlots int
	// MaxDepth is the depth of the deepest node, the root being at 0.
	MaxDepth int
	// MeanDepth is the average node depth.
	MeanDepth float64
	// Exhausted is the number of nodes placed after every hash bit
	// was consumed. Non-zero values point at a weak hash function.
	Exhausted int
	// DepthCounts is the number of nodes at each depth.
	DepthCounts []int
}

// ToString returns string representation of map stats.
func (s *TrieStats) ToString() string {
	var sb strings.Builder
	sb.WriteString("TrieStats{\n")
	sb.WriteString(fmt.Sprintf("Size:        %d\n", s.Size))
	sb.WriteString(fmt.Sprintf("Nodes:       %d\n", s.Nodes))
	sb.WriteString(fmt.Sprintf("Leaves:      %d\n", s.Leaves))
	sb.WriteString(fmt.Sprintf("FullNodes:   %d\n", s.FullNodes))
	sb.WriteString(fmt.Sprintf("EmptySlots:  %d\n", s.EmptySlots))
	sb.WriteString(fmt.Sprintf("MaxDepth:    %d\n", s.MaxDepth))
	sb.WriteString(fmt.Sprintf("MeanDepth:   %.2f\n", s.MeanDepth))
	sb.WriteString(fmt.Sprintf("Exhausted:   %d\n", s.Exhausted))
	sb.WriteString(fmt.Sprintf("DepthCounts: %v\n", s.DepthCounts))
	sb.WriteString("}\n")
	return sb.String()
}
