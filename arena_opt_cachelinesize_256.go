//go:build arenatrie_opt_cachelinesize_256

package arenatrie

// CacheLineSize is fixed to 256 bytes by the arenatrie_opt_cachelinesize_256
// build tag, for targets where golang.org/x/sys reports the wrong size.
const CacheLineSize uintptr = 256
