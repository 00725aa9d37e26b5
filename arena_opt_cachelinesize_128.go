//go:build arenatrie_opt_cachelinesize_128

package arenatrie

// CacheLineSize is fixed to 128 bytes by the arenatrie_opt_cachelinesize_128
// build tag, for targets where golang.org/x/sys reports the wrong size.
const CacheLineSize uintptr = 128
