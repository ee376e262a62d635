package cache

import (
	"sort"

	"github.com/flanksource/code-intel/models"
)

// statsCollector holds the lifetime counters and the incremental byte
// accounting. It is mutated only while the cache mutex is held, in the same
// step as the entry mutation the counters describe.
type statsCollector struct {
	hits        int64
	misses      int64
	evictions   int64
	expirations int64
	bytes       int64
}

func (s *statsCollector) snapshot() models.CacheStats {
	stats := models.CacheStats{
		Hits:           s.hits,
		Misses:         s.misses,
		Evictions:      s.evictions,
		Expirations:    s.expirations,
		EstimatedBytes: s.bytes,
	}
	if total := s.hits + s.misses; total > 0 {
		stats.HitRate = float64(s.hits) / float64(total)
	}
	return stats
}

// topAccessedLocked ranks resident entries by cumulative access count, ties
// broken by most recent access. Callers must hold c.mu.
func (c *ASTCache) topAccessedLocked(n int) []models.TopEntry {
	if n <= 0 || len(c.entries) == 0 {
		return nil
	}

	resident := make([]*entry, 0, len(c.entries))
	for elem := c.order.Front(); elem != nil; elem = elem.Next() {
		resident = append(resident, elem.Value.(*entry))
	}

	sort.Slice(resident, func(i, j int) bool {
		if resident[i].accessCount != resident[j].accessCount {
			return resident[i].accessCount > resident[j].accessCount
		}
		return resident[i].accessSeq > resident[j].accessSeq
	})

	if n > len(resident) {
		n = len(resident)
	}

	top := make([]models.TopEntry, 0, n)
	for _, e := range resident[:n] {
		top = append(top, models.TopEntry{
			Fingerprint: e.fp.String(),
			AccessCount: e.accessCount,
			LastAccess:  e.lastAccess,
		})
	}
	return top
}
