package crawl

import (
	"sync/atomic"
	"time"
)

// Stats tracks crawl progress with lock-free counters.
type Stats struct {
	startTime time.Time

	pagesFetched       atomic.Int64
	productsDiscovered atomic.Int64
	productsSkipped    atomic.Int64
	productsStored     atomic.Int64
	productsDropped    atomic.Int64
	fetchErrors        atomic.Int64
	cycles             atomic.Int64
}

// NewStats creates a stats tracker anchored at now.
func NewStats() *Stats {
	return &Stats{startTime: time.Now()}
}

func (s *Stats) PageFetched()       { s.pagesFetched.Add(1) }
func (s *Stats) ProductDiscovered() { s.productsDiscovered.Add(1) }
func (s *Stats) ProductSkipped()    { s.productsSkipped.Add(1) }
func (s *Stats) ProductStored()     { s.productsStored.Add(1) }
func (s *Stats) ProductDropped()    { s.productsDropped.Add(1) }
func (s *Stats) FetchError()        { s.fetchErrors.Add(1) }
func (s *Stats) CycleComplete()     { s.cycles.Add(1) }

// Snapshot is a point-in-time copy of the counters.
type Snapshot struct {
	Uptime             time.Duration `json:"uptime"`
	PagesFetched       int64         `json:"pages_fetched"`
	ProductsDiscovered int64         `json:"products_discovered"`
	ProductsSkipped    int64         `json:"products_skipped"`
	ProductsStored     int64         `json:"products_stored"`
	ProductsDropped    int64         `json:"products_dropped"`
	FetchErrors        int64         `json:"fetch_errors"`
	Cycles             int64         `json:"cycles"`
}

// Snapshot returns the current counter values.
func (s *Stats) Snapshot() Snapshot {
	return Snapshot{
		Uptime:             time.Since(s.startTime),
		PagesFetched:       s.pagesFetched.Load(),
		ProductsDiscovered: s.productsDiscovered.Load(),
		ProductsSkipped:    s.productsSkipped.Load(),
		ProductsStored:     s.productsStored.Load(),
		ProductsDropped:    s.productsDropped.Load(),
		FetchErrors:        s.fetchErrors.Load(),
		Cycles:             s.cycles.Load(),
	}
}
