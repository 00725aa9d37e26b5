//go:build arenatrie_opt_cachelinesize_64

package arenatrie

// CacheLineSize is fixed to 64 bytes by the arenatrie_opt_cachelinesize_64
// build tag, for targets where golang.org/x/sys reports the wrong size.
const CacheLineSize uintptr = 64
