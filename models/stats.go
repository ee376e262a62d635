package models

import "time"

// CacheStats is a read-only snapshot of AST cache statistics. Counters are
// lifetime values; ResidentCount, EstimatedBytes and TopAccessed describe the
// cache as it was at snapshot time.
type CacheStats struct {
	Hits           int64      `json:"hits"`
	Misses         int64      `json:"misses"`
	Evictions      int64      `json:"evictions"`
	Expirations    int64      `json:"expirations"`
	HitRate        float64    `json:"hit_rate"`
	ResidentCount  int        `json:"resident_count"`
	EstimatedBytes int64      `json:"estimated_bytes"`
	TopAccessed    []TopEntry `json:"top_accessed,omitempty"`
}

// TopEntry identifies one frequently accessed cache entry.
type TopEntry struct {
	Fingerprint string    `json:"fingerprint"`
	AccessCount int64     `json:"access_count"`
	LastAccess  time.Time `json:"last_access"`
}

// Lookups returns the total number of Get calls observed.
func (s CacheStats) Lookups() int64 {
	return s.Hits + s.Misses
}
