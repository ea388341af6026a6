package linecache

// Stats counts how the history was used during a run.
//
// Hits and Misses count Contains queries. Insertions counts new contents,
// Refreshes counts inserts of contents that were already held, and Evictions
// counts contents dropped because the cache was full.
type Stats struct {
	Hits       uint64
	Misses     uint64
	Insertions uint64
	Refreshes  uint64
	Evictions  uint64
}

// HitRate returns Hits / (Hits + Misses), or 0 before any query.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}

	return float64(s.Hits) / float64(total)
}
