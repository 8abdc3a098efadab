package core_test

import (
	"errors"
	"fmt"
	"sync"
	"testing"

	"github.com/PlaceBound/PB-Backend/internal/core"
	"github.com/PlaceBound/PB-Backend/internal/geo"
)

// mustArea builds a validated square area [x, x+size] in both axes, active
// over the given years, with a fixed ID so ordering assertions are stable.
func mustArea(t *testing.T, id string, x, size float64, startYear, endYear int) *core.Area {
	t.Helper()
	a, err := core.NewArea(id, []geo.Point{
		{X: x, Y: 0}, {X: x + size, Y: 0}, {X: x + size, Y: size}, {X: x, Y: size},
	}, core.YearRange(startYear, endYear), "tester")
	if err != nil {
		t.Fatalf("building area %s: %v", id, err)
	}
	a.ID = id
	return a
}

func buildIndex(t *testing.T, areas ...*core.Area) *core.SpatioTemporalIndex {
	t.Helper()
	ix := core.NewSpatioTemporalIndex()
	for _, a := range areas {
		if err := ix.Insert(a); err != nil {
			t.Fatalf("inserting %s: %v", a.ID, err)
		}
	}
	return ix
}

// TestFindByPoint covers interior hits, boundary inclusion, and misses.
func TestFindByPoint(t *testing.T) {
	ix := buildIndex(t,
		mustArea(t, "a-left", 0, 4, 2000, 2010),   // [0,4]x[0,4]
		mustArea(t, "b-right", 4, 4, 2000, 2010),  // [4,8]x[0,4]
		mustArea(t, "c-far", 100, 4, 2000, 2010),  // far away
	)

	if got := ix.FindByPoint(2, 2, nil); len(got) != 1 || got[0].Area.ID != "a-left" {
		t.Errorf("interior point: got %d matches", len(got))
	}
	// x=4 is the shared border: inside both squares by the edge rule.
	if got := ix.FindByPoint(4, 2, nil); len(got) != 2 {
		t.Errorf("shared border point: expected both areas, got %d", len(got))
	}
	if got := ix.FindByPoint(50, 50, nil); len(got) != 0 {
		t.Errorf("miss: expected no matches, got %d", len(got))
	}
}

// TestFindByRadius verifies ascending-distance ordering, ID tie-breaks, and
// radius monotonicity.
func TestFindByRadius(t *testing.T) {
	ix := buildIndex(t,
		mustArea(t, "near", 10, 4, 2000, 2010),  // left edge at x=10
		mustArea(t, "far", 20, 4, 2000, 2010),   // left edge at x=20
		mustArea(t, "home", 0, 4, 2000, 2010),   // contains the query point
	)

	got, err := ix.FindByRadius(2, 2, 30, nil)
	if err != nil {
		t.Fatalf("radius query: %v", err)
	}
	wantOrder := []string{"home", "near", "far"}
	if len(got) != len(wantOrder) {
		t.Fatalf("expected %d matches, got %d", len(wantOrder), len(got))
	}
	for i, want := range wantOrder {
		if got[i].Area.ID != want {
			t.Errorf("position %d: got %s, want %s", i, got[i].Area.ID, want)
		}
	}
	for i := 1; i < len(got); i++ {
		if got[i].Distance < got[i-1].Distance {
			t.Errorf("distances not non-decreasing at %d", i)
		}
	}
	if got[0].Distance != 0 {
		t.Errorf("containing area should report distance 0, got %v", got[0].Distance)
	}

	// Growing the radius never removes a previously returned area.
	smaller, err := ix.FindByRadius(2, 2, 10, nil)
	if err != nil {
		t.Fatalf("smaller radius query: %v", err)
	}
	seen := map[string]bool{}
	for _, m := range got {
		seen[m.Area.ID] = true
	}
	for _, m := range smaller {
		if !seen[m.Area.ID] {
			t.Errorf("area %s vanished when radius grew", m.Area.ID)
		}
	}

	if _, err := ix.FindByRadius(0, 0, -1, nil); !errors.Is(err, core.ErrValidation) {
		t.Errorf("negative radius: expected ErrValidation, got %v", err)
	}
}

// TestFindByRadius_TieBreak checks that equidistant areas come back in ID order.
func TestFindByRadius_TieBreak(t *testing.T) {
	// Both squares are 2 units from the query point (0,2) horizontally.
	left := mustArea(t, "zz-later", 2, 4, 2000, 2010)
	right := mustArea(t, "aa-first", 2, 4, 2000, 2010)
	ix := buildIndex(t, left, right)

	got, err := ix.FindByRadius(0, 2, 5, nil)
	if err != nil {
		t.Fatalf("radius query: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 matches, got %d", len(got))
	}
	if got[0].Area.ID != "aa-first" || got[1].Area.ID != "zz-later" {
		t.Errorf("tie not broken by ID: got %s, %s", got[0].Area.ID, got[1].Area.ID)
	}
}

// TestFindByIntersection covers overlap, nesting, and malformed query rings.
func TestFindByIntersection(t *testing.T) {
	ix := buildIndex(t,
		mustArea(t, "big", 0, 10, 2000, 2010),
		mustArea(t, "distant", 100, 4, 2000, 2010),
	)

	// A small square inside "big": nested counts as intersecting.
	got, err := ix.FindByIntersection([]geo.Point{{X: 2, Y: 2}, {X: 4, Y: 2}, {X: 4, Y: 4}, {X: 2, Y: 4}}, nil)
	if err != nil {
		t.Fatalf("intersection query: %v", err)
	}
	if len(got) != 1 || got[0].Area.ID != "big" {
		t.Errorf("nested query polygon should match big, got %d matches", len(got))
	}

	_, err = ix.FindByIntersection([]geo.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}, nil)
	if !errors.Is(err, geo.ErrMalformedGeometry) {
		t.Errorf("degenerate query: expected ErrMalformedGeometry, got %v", err)
	}
}

// TestTemporalFilter applies a time range across query types.
func TestTemporalFilter(t *testing.T) {
	ix := buildIndex(t,
		mustArea(t, "old", 0, 4, 1990, 1999),
		mustArea(t, "new", 0, 4, 2020, 2030),
	)

	tr := core.YearRange(1995, 1995)
	got := ix.FindByPoint(2, 2, &tr)
	if len(got) != 1 || got[0].Area.ID != "old" {
		t.Errorf("1995 point query: expected only the 90s area, got %d matches", len(got))
	}

	boundary := core.YearRange(1999, 2020)
	got = ix.FindByPoint(2, 2, &boundary)
	if len(got) != 2 {
		t.Errorf("1999-2020 query should match both areas, got %d", len(got))
	}
}

// TestInsertValidation verifies that bad temporal bounds and duplicate IDs are
// rejected at insertion, not at query time.
func TestInsertValidation(t *testing.T) {
	ix := core.NewSpatioTemporalIndex()

	_, err := core.NewArea("inverted", []geo.Point{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}, {X: 0, Y: 4}},
		core.YearRange(2010, 2000), "tester")
	if !errors.Is(err, core.ErrValidation) {
		t.Errorf("inverted range: expected ErrValidation, got %v", err)
	}

	_, err = core.NewArea("ancient", []geo.Point{{X: 0, Y: 0}, {X: 4, Y: 0}, {X: 4, Y: 4}, {X: 0, Y: 4}},
		core.YearRange(1500, 1600), "tester")
	if !errors.Is(err, core.ErrValidation) {
		t.Errorf("out-of-bounds year: expected ErrValidation, got %v", err)
	}

	a := mustArea(t, "dup", 0, 4, 2000, 2010)
	if err := ix.Insert(a); err != nil {
		t.Fatalf("first insert: %v", err)
	}
	if err := ix.Insert(a); !errors.Is(err, core.ErrValidation) {
		t.Errorf("duplicate insert: expected ErrValidation, got %v", err)
	}
}

// TestRemove verifies generation swap on delete and ErrNotFound for unknown IDs.
func TestRemove(t *testing.T) {
	ix := buildIndex(t, mustArea(t, "only", 0, 4, 2000, 2010))

	if err := ix.Remove("only"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if got := ix.FindByPoint(2, 2, nil); len(got) != 0 {
		t.Errorf("removed area still matches")
	}
	if err := ix.Remove("only"); !errors.Is(err, core.ErrNotFound) {
		t.Errorf("removing twice: expected ErrNotFound, got %v", err)
	}
}

// TestLoad_SkipsMalformedStoredArea verifies that a corrupted stored row is
// skipped during a bulk load instead of failing the batch.
func TestLoad_SkipsMalformedStoredArea(t *testing.T) {
	good := mustArea(t, "good", 0, 4, 2000, 2010)
	bad := &core.Area{
		ID:        "bad",
		Ring:      []float64{0, 0, 1}, // odd-length storage
		StartYear: 2000,
		EndYear:   2010,
	}

	ix := core.NewSpatioTemporalIndex()
	ix.Load([]*core.Area{good, bad})

	if ix.Len() != 1 {
		t.Fatalf("expected 1 indexed area after load, got %d", ix.Len())
	}
	if got := ix.FindByPoint(2, 2, nil); len(got) != 1 || got[0].Area.ID != "good" {
		t.Errorf("good area should survive the load")
	}
}

// TestConcurrentReadsDuringWrites hammers the index with readers while a
// writer inserts new generations. Run with -race; readers must always see a
// complete snapshot and never block on the writer.
func TestConcurrentReadsDuringWrites(t *testing.T) {
	ix := buildIndex(t, mustArea(t, "base", 0, 4, 2000, 2010))

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				matches := ix.FindByPoint(2, 2, nil)
				// The base area is in every generation.
				if len(matches) < 1 {
					t.Error("reader observed an empty snapshot")
					return
				}
				if _, err := ix.FindByRadius(2, 2, 100, nil); err != nil {
					t.Errorf("radius query failed: %v", err)
					return
				}
			}
		}()
	}

	for i := 0; i < 50; i++ {
		a := mustArea(t, fmt.Sprintf("gen-%03d", i), 10, 4, 2000, 2010)
		if err := ix.Insert(a); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	close(stop)
	wg.Wait()

	if ix.Len() != 51 {
		t.Errorf("expected 51 areas, got %d", ix.Len())
	}
}
