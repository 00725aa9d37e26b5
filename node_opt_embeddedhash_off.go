//go:build !arenatrie_opt_embeddedhash

package arenatrie

const embeddedHash = false

// node is a single trie entry. It owns its four children exclusively.
type node[K any, V any] struct {
	children [4]*node[K, V]
	key      K
	value    V
}

//go:nosplit
func (n *node[K, V]) getHash() uint64 {
	return 0
}

//go:nosplit
func (n *node[K, V]) setHash(_ uint64) {
}
