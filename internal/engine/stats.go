package engine

import "sync/atomic"

// Stats counts engine activity. All counters are monotonic.
type Stats struct {
	// Compiled counts queries compiled from text.
	Compiled int64

	// CacheHits counts Compile calls served from the cache.
	CacheHits int64

	// Evaluations counts started evaluations, streams included.
	Evaluations int64
}

// counters is the live, concurrency-safe form of Stats.
type counters struct {
	compiled    atomic.Int64
	cacheHits   atomic.Int64
	evaluations atomic.Int64
}

func (c *counters) snapshot() Stats {
	return Stats{
		Compiled:    c.compiled.Load(),
		CacheHits:   c.cacheHits.Load(),
		Evaluations: c.evaluations.Load(),
	}
}
