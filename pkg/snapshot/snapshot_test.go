package snapshot

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/doctrove/atlas/pkg/api"
	"github.com/doctrove/atlas/pkg/filter"
	"github.com/doctrove/atlas/pkg/viewstate"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := New(filepath.Join(t.TempDir(), "atlas_test.db"), nil)
	if err != nil {
		t.Fatalf("failed to create store: %v", err)
	}
	if err := store.Init(context.Background()); err != nil {
		t.Fatalf("failed to init store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func fixturePoints() []api.Point {
	return []api.Point{
		{ID: "a1", Title: "Attention", Source: "arxiv", Date: "2021-06-12", Position: &api.Position{X: 1, Y: 11}},
		{ID: "a2", Title: "Diffusion", Source: "arxiv", Date: "2023-02-03", Position: &api.Position{X: 4, Y: 19}},
		{ID: "r1", Title: "Policy Brief", Source: "randpub", Date: "2022-09-30", Position: &api.Position{X: 2, Y: 15}},
		{ID: "x1", Title: "Unplaced", Source: "arxiv", Date: "2020-01-15", Position: nil},
		{ID: "far", Title: "Elsewhere", Source: "arxiv", Date: "2021-01-01", Position: &api.Position{X: 100, Y: 100}},
	}
}

func queryRequest(t *testing.T, fs filter.State) *api.Request {
	t.Helper()
	view := viewstate.FromRanges([2]float64{0, 5}, [2]float64{10, 20}, testNow)
	req := api.ComposeRequest(view, fs, api.Options{})
	if req == nil {
		t.Fatal("failed to compose request")
	}
	return req
}

func TestSaveAndQueryPoints(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SavePoints(ctx, fixturePoints()); err != nil {
		t.Fatalf("SavePoints failed: %v", err)
	}

	count, err := store.Count(ctx)
	if err != nil {
		t.Fatalf("Count failed: %v", err)
	}
	if count != 5 {
		t.Errorf("Count = %d, want 5", count)
	}

	set, err := store.QueryPoints(ctx, queryRequest(t, filter.New(testNow)))
	if err != nil {
		t.Fatalf("QueryPoints failed: %v", err)
	}
	// Only the three positioned points inside the bbox; the unplaced
	// and far ones fall outside.
	if len(set.Points) != 3 {
		t.Fatalf("got %d points, want 3: %+v", len(set.Points), set.Points)
	}
	for _, p := range set.Points {
		if p.Position == nil {
			t.Errorf("point %s lost its position", p.ID)
		}
	}
}

func TestQueryPointsAppliesCompiledPredicate(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.SavePoints(ctx, fixturePoints()); err != nil {
		t.Fatalf("SavePoints failed: %v", err)
	}

	sources := []string{"arxiv"}
	fs := filter.Apply(filter.New(testNow), filter.Update{
		Sources:   &sources,
		YearRange: &[2]float64{2021, 2022},
	}, testNow)

	set, err := store.QueryPoints(ctx, queryRequest(t, fs))
	if err != nil {
		t.Fatalf("QueryPoints failed: %v", err)
	}
	if len(set.Points) != 1 || set.Points[0].ID != "a1" {
		t.Errorf("predicate not applied, got %+v", set.Points)
	}
}

func TestSavePointsUpserts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if err := store.SavePoints(ctx, fixturePoints()); err != nil {
		t.Fatalf("SavePoints failed: %v", err)
	}
	updated := []api.Point{{ID: "a1", Title: "Attention v2", Source: "arxiv", Date: "2021-06-12", Position: &api.Position{X: 1.5, Y: 11.5}}}
	if err := store.SavePoints(ctx, updated); err != nil {
		t.Fatalf("second SavePoints failed: %v", err)
	}

	count, _ := store.Count(ctx)
	if count != 5 {
		t.Errorf("Count = %d after upsert, want 5", count)
	}

	set, err := store.QueryPoints(ctx, queryRequest(t, filter.New(testNow)))
	if err != nil {
		t.Fatalf("QueryPoints failed: %v", err)
	}
	for _, p := range set.Points {
		if p.ID == "a1" && p.Title != "Attention v2" {
			t.Errorf("upsert did not replace title: %+v", p)
		}
	}
}

func TestMaxExtent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	extent, err := store.MaxExtent(ctx, "")
	if err != nil {
		t.Fatalf("MaxExtent failed: %v", err)
	}
	if extent != nil {
		t.Errorf("empty store should have nil extent, got %+v", extent)
	}

	if err := store.SavePoints(ctx, fixturePoints()); err != nil {
		t.Fatalf("SavePoints failed: %v", err)
	}

	extent, err = store.MaxExtent(ctx, "")
	if err != nil {
		t.Fatalf("MaxExtent failed: %v", err)
	}
	if extent == nil {
		t.Fatal("expected an extent")
	}
	if extent.XMin != 1 || extent.XMax != 100 || extent.YMin != 11 || extent.YMax != 100 {
		t.Errorf("extent = %+v", extent)
	}

	filtered, err := store.MaxExtent(ctx, "doctrove_source IN ('randpub')")
	if err != nil {
		t.Fatalf("filtered MaxExtent failed: %v", err)
	}
	if filtered == nil || filtered.XMin != 2 || filtered.XMax != 2 {
		t.Errorf("filtered extent = %+v", filtered)
	}
}

func TestQueryPointsLimit(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.SavePoints(ctx, fixturePoints()); err != nil {
		t.Fatalf("SavePoints failed: %v", err)
	}

	view := viewstate.FromRanges([2]float64{0, 5}, [2]float64{10, 20}, testNow)
	req := api.ComposeRequest(view, filter.New(testNow), api.Options{Limit: 2})
	set, err := store.QueryPoints(ctx, req)
	if err != nil {
		t.Fatalf("QueryPoints failed: %v", err)
	}
	if len(set.Points) != 2 {
		t.Errorf("limit not applied, got %d points", len(set.Points))
	}
}

func TestClosedStore(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	if err := store.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := store.SavePoints(ctx, fixturePoints()); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("SavePoints on closed store = %v, want ErrStoreClosed", err)
	}
	if _, err := store.QueryPoints(ctx, queryRequest(t, filter.New(testNow))); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("QueryPoints on closed store = %v, want ErrStoreClosed", err)
	}
	if _, err := store.Count(ctx); !errors.Is(err, ErrStoreClosed) {
		t.Errorf("Count on closed store = %v, want ErrStoreClosed", err)
	}
}
