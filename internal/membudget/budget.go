package membudget

import "github.com/javi11/altview/internal/bitmapcache"

const (
	// MinCacheMB and MaxCacheMB clamp the cache byte budget.
	MinCacheMB = 512
	MaxCacheMB = 4096

	// ScarceCeilingMB is the ceiling below which the entry count is also
	// derived from the byte budget.
	ScarceCeilingMB = 2048

	// BytesPerImageEstimate is the decoded size of a 33 megapixel image at
	// 4 bytes per pixel.
	BytesPerImageEstimate int64 = 132 * MB
)

// BudgetFor derives the cache budget from a memory ceiling. Bytes are half of
// the ceiling clamped to [MinCacheMB, MaxCacheMB]. Entries are maxEntries,
// tightened on scarce hosts to the number of estimated full size images that
// fit in the byte budget. An unset maxEntries is derived the same way.
func BudgetFor(ceilingMB, maxEntries int) bitmapcache.Budget {
	cacheMB := min(max(ceilingMB/2, MinCacheMB), MaxCacheMB)
	maxBytes := int64(cacheMB) * MB

	entries := maxEntries
	if ceilingMB < ScarceCeilingMB || entries <= 0 {
		derived := int(max(1, maxBytes/BytesPerImageEstimate))
		if entries <= 0 || derived < entries {
			entries = derived
		}
	}

	return bitmapcache.Budget{MaxEntries: entries, MaxBytes: maxBytes}
}
