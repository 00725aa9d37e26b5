//go:build arenatrie_opt_embeddedhash

package arenatrie

// embeddedHash is true, every node keeps the full hash of its key.
// Lookups compare hashes before calling the equality function, which
// pays off for keys whose comparison is expensive (long strings, structs).
// Each node grows by 8 bytes.
const embeddedHash = true

// node is a single trie entry. It owns its four children exclusively.
type node[K any, V any] struct {
	children [4]*node[K, V]
	hash     uint64
	key      K
	value    V
}

//go:nosplit
func (n *node[K, V]) getHash() uint64 {
	return n.hash
}

//go:nosplit
func (n *node[K, V]) setHash(h uint64) {
	n.hash = h
}
