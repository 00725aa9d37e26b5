//go:build !arenatrie_opt_cachelinesize_32 && !arenatrie_opt_cachelinesize_64 && !arenatrie_opt_cachelinesize_128 && !arenatrie_opt_cachelinesize_256

package arenatrie

import (
	"unsafe"

	"golang.org/x/sys/cpu"
)

// CacheLineSize is the cache line size of the target CPU.
// It's automatically calculated using the `golang.org/x/sys` package,
// and it scales the default arena chunk size.
const CacheLineSize = unsafe.Sizeof(cpu.CacheLinePad{})
