package core

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"sync/atomic"

	"golang.org/x/time/rate"

	"github.com/PlaceBound/PB-Backend/internal/geo"
)

// AreaMatch is one discovery hit. Distance is the planar Euclidean distance
// from the query point (0 inside the polygon); point and intersection matches
// always carry 0.
type AreaMatch struct {
	Area     *Area   `json:"area"`
	Distance float64 `json:"distance"`
}

// indexEntry pairs an area with its parsed ring so queries never re-parse.
type indexEntry struct {
	area *Area
	ring geo.Ring
}

// snapshot is one immutable generation of the index. Entries are sorted by
// area ID, which makes result ordering deterministic without per-query sorts.
type snapshot struct {
	entries []indexEntry
}

// SpatioTemporalIndex answers point, radius, and intersection queries over
// time-bounded areas. Readers load the current snapshot through an atomic
// pointer and never block; writers serialize among themselves, build the next
// generation copy-on-write, and swap it in. No reader ever observes a
// partially inserted area.
type SpatioTemporalIndex struct {
	mu   sync.Mutex // writers only
	snap atomic.Pointer[snapshot]

	// Throttles malformed-stored-area warnings during bulk loads so one bad
	// batch doesn't flood the log.
	warnEvery *rate.Limiter
}

func NewSpatioTemporalIndex() *SpatioTemporalIndex {
	ix := &SpatioTemporalIndex{
		warnEvery: rate.NewLimiter(rate.Limit(1), 5),
	}
	ix.snap.Store(&snapshot{})
	return ix
}

// Len reports the number of indexed areas in the current generation.
func (ix *SpatioTemporalIndex) Len() int {
	return len(ix.snap.Load().entries)
}

// Insert validates the area and publishes a new generation containing it.
// Invalid temporal bounds or geometry are rejected here, never at query time.
func (ix *SpatioTemporalIndex) Insert(a *Area) error {
	if err := a.Validate(); err != nil {
		return err
	}
	ring, err := a.Geometry()
	if err != nil {
		return err
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	cur := ix.snap.Load()
	for _, e := range cur.entries {
		if e.area.ID == a.ID {
			return fmt.Errorf("%w: area %s already indexed", ErrValidation, a.ID)
		}
	}
	next := &snapshot{entries: make([]indexEntry, 0, len(cur.entries)+1)}
	next.entries = append(next.entries, cur.entries...)
	next.entries = append(next.entries, indexEntry{area: a, ring: ring})
	sortEntries(next.entries)
	ix.snap.Store(next)
	return nil
}

// Remove publishes a new generation without the given area. Removing an
// unknown ID fails with ErrNotFound.
func (ix *SpatioTemporalIndex) Remove(areaID string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	cur := ix.snap.Load()
	next := &snapshot{entries: make([]indexEntry, 0, len(cur.entries))}
	found := false
	for _, e := range cur.entries {
		if e.area.ID == areaID {
			found = true
			continue
		}
		next.entries = append(next.entries, e)
	}
	if !found {
		return fmt.Errorf("%w: area %s", ErrNotFound, areaID)
	}
	ix.snap.Store(next)
	return nil
}

// Load replaces the whole index with the given areas, typically a fresh read
// from the persistence collaborator. A malformed stored area is skipped and
// reported as a warning rather than failing the batch; stored rows were
// validated at insertion, so a bad one here is an anomaly, not a caller error.
func (ix *SpatioTemporalIndex) Load(areas []*Area) {
	entries := make([]indexEntry, 0, len(areas))
	for _, a := range areas {
		ring, err := a.Geometry()
		if err == nil {
			err = a.Validate()
		}
		if err != nil {
			if ix.warnEvery.Allow() {
				log.Printf("WARN: skipping malformed stored area %s: %v", a.ID, err)
			}
			continue
		}
		entries = append(entries, indexEntry{area: a, ring: ring})
	}
	sortEntries(entries)

	ix.mu.Lock()
	ix.snap.Store(&snapshot{entries: entries})
	ix.mu.Unlock()
}

// FindByPoint returns all areas whose polygon contains (x, y), boundary
// inclusive, optionally filtered to those active during tr. Results are
// ordered by area ID.
func (ix *SpatioTemporalIndex) FindByPoint(x, y float64, tr *TimeRange) []AreaMatch {
	p := geo.Point{X: x, Y: y}
	var out []AreaMatch
	for _, e := range ix.snap.Load().entries {
		if !activeDuring(e.area, tr) {
			continue
		}
		if e.ring.Contains(p) {
			out = append(out, AreaMatch{Area: e.area})
		}
	}
	return out
}

// FindByRadius returns areas whose minimum distance from (x, y) is <= radius,
// ascending by distance with area-ID tie-break. Growing the radius only ever
// adds results.
func (ix *SpatioTemporalIndex) FindByRadius(x, y, radius float64, tr *TimeRange) ([]AreaMatch, error) {
	if radius < 0 {
		return nil, fmt.Errorf("%w: negative radius %v", ErrValidation, radius)
	}
	p := geo.Point{X: x, Y: y}
	var out []AreaMatch
	for _, e := range ix.snap.Load().entries {
		if !activeDuring(e.area, tr) {
			continue
		}
		if d := e.ring.DistanceTo(p); d <= radius {
			out = append(out, AreaMatch{Area: e.area, Distance: d})
		}
	}
	// Entries iterate in ID order, so a stable sort keeps the ID tie-break.
	sort.SliceStable(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	return out, nil
}

// FindByIntersection returns areas sharing any boundary or interior point
// with the query polygon. A degenerate query polygon fails with
// geo.ErrMalformedGeometry.
func (ix *SpatioTemporalIndex) FindByIntersection(pts []geo.Point, tr *TimeRange) ([]AreaMatch, error) {
	q, err := geo.NewRing(pts)
	if err != nil {
		return nil, err
	}
	var out []AreaMatch
	for _, e := range ix.snap.Load().entries {
		if !activeDuring(e.area, tr) {
			continue
		}
		if e.ring.Intersects(q) {
			out = append(out, AreaMatch{Area: e.area})
		}
	}
	return out, nil
}

func activeDuring(a *Area, tr *TimeRange) bool {
	if tr == nil {
		return true
	}
	return a.ActiveRange().Overlaps(*tr)
}

func sortEntries(entries []indexEntry) {
	sort.Slice(entries, func(i, j int) bool { return entries[i].area.ID < entries[j].area.ID })
}
