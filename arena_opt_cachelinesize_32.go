//go:build arenatrie_opt_cachelinesize_32

package arenatrie

// CacheLineSize is fixed to 32 bytes by the arenatrie_opt_cachelinesize_32
// build tag, for targets where golang.org/x/sys reports the wrong size.
const CacheLineSize uintptr = 32
