package viewstate

import (
	"math"
	"testing"
	"time"
)

var testNow = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func TestRangesToBbox(t *testing.T) {
	tests := []struct {
		name   string
		xRange [2]float64
		yRange [2]float64
		want   string
	}{
		{"integers", [2]float64{0, 5}, [2]float64{10, 20}, "0,10,5,20"},
		{"negatives", [2]float64{-3.5, 2.5}, [2]float64{-1, 1}, "-3.5,-1,2.5,1"},
		{"fractions", [2]float64{0.25, 0.75}, [2]float64{0.1, 0.9}, "0.25,0.1,0.75,0.9"},
	}

	for _, tt := range tests {
		if got := RangesToBbox(tt.xRange, tt.yRange); got != tt.want {
			t.Errorf("%s: RangesToBbox = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestParseBboxRoundTrip(t *testing.T) {
	xRange := [2]float64{-3.5, 2.5}
	yRange := [2]float64{-1, 1}

	gotX, gotY, err := ParseBbox(RangesToBbox(xRange, yRange))
	if err != nil {
		t.Fatalf("ParseBbox failed: %v", err)
	}
	if gotX != xRange || gotY != yRange {
		t.Errorf("round trip mismatch: got x=%v y=%v", gotX, gotY)
	}

	for _, bad := range []string{"", "1,2,3", "1,2,3,4,5", "a,b,c,d", "1,2,NaN,4"} {
		if _, _, err := ParseBbox(bad); err == nil {
			t.Errorf("ParseBbox(%q) should fail", bad)
		}
	}
}

func TestValidate(t *testing.T) {
	x := [2]float64{0, 5}
	y := [2]float64{10, 20}

	tests := []struct {
		name string
		view *View
		want bool
	}{
		{"nil view", nil, false},
		{"empty view", NewDefault(testNow), false},
		{"valid", FromRanges(x, y, testNow), true},
		{"only x", &View{XRange: &x}, false},
		{"only y", &View{YRange: &y}, false},
		{"inverted x", FromRanges([2]float64{5, 0}, y, testNow), false},
		{"equal endpoints", FromRanges([2]float64{3, 3}, y, testNow), false},
		{"nan endpoint", FromRanges([2]float64{math.NaN(), 5}, y, testNow), false},
		{"inf endpoint", FromRanges(x, [2]float64{0, math.Inf(1)}, testNow), false},
	}

	for _, tt := range tests {
		if got := Validate(tt.view); got != tt.want {
			t.Errorf("%s: Validate = %v, want %v", tt.name, got, tt.want)
		}
	}
}

func TestFromRanges(t *testing.T) {
	view := FromRanges([2]float64{0, 5}, [2]float64{10, 20}, testNow)
	if view.Bbox != "0,10,5,20" {
		t.Errorf("Bbox = %q, want %q", view.Bbox, "0,10,5,20")
	}
	if view.XRange == nil || view.YRange == nil {
		t.Fatal("ranges must be set")
	}
	if !view.LastUpdated.Equal(testNow) {
		t.Errorf("LastUpdated = %v, want %v", view.LastUpdated, testNow)
	}
}

func TestFromRelayoutPerAxisShape(t *testing.T) {
	payload := map[string]any{
		"xaxis.range": []any{0.0, 5.0},
		"yaxis.range": []any{10.0, 20.0},
	}
	view := FromRelayout(payload, testNow)
	if view == nil {
		t.Fatal("per-axis payload should be recognized")
	}
	if view.Bbox != "0,10,5,20" {
		t.Errorf("Bbox = %q, want %q", view.Bbox, "0,10,5,20")
	}
}

func TestFromRelayoutNestedShape(t *testing.T) {
	payload := map[string]any{
		"range": []any{
			[]any{0.0, 5.0},
			[]any{10.0, 20.0},
		},
	}
	view := FromRelayout(payload, testNow)
	if view == nil {
		t.Fatal("nested payload should be recognized")
	}
	if view.Bbox != "0,10,5,20" {
		t.Errorf("Bbox = %q, want %q", view.Bbox, "0,10,5,20")
	}
}

func TestFromRelayoutUnrecognized(t *testing.T) {
	tests := []struct {
		name    string
		payload map[string]any
	}{
		{"nil payload", nil},
		{"empty payload", map[string]any{}},
		{"autorange event", map[string]any{"xaxis.autorange": true}},
		{"x without y", map[string]any{"xaxis.range": []any{0.0, 5.0}}},
		{"non numeric", map[string]any{
			"xaxis.range": []any{"a", "b"},
			"yaxis.range": []any{10.0, 20.0},
		}},
		{"nested wrong arity", map[string]any{"range": []any{[]any{0.0, 5.0}}}},
	}

	for _, tt := range tests {
		if view := FromRelayout(tt.payload, testNow); view != nil {
			t.Errorf("%s: expected nil, got %+v", tt.name, view)
		}
	}
}

func TestFromFigure(t *testing.T) {
	fig := &Figure{Layout: FigureLayout{
		XAxis: AxisLayout{Range: []float64{0, 5}},
		YAxis: AxisLayout{Range: []float64{10, 20}},
	}}
	view := FromFigure(fig, testNow)
	if view == nil {
		t.Fatal("figure with both ranges should be recognized")
	}
	if view.Bbox != "0,10,5,20" {
		t.Errorf("Bbox = %q, want %q", view.Bbox, "0,10,5,20")
	}

	if FromFigure(nil, testNow) != nil {
		t.Error("nil figure should yield nil")
	}
	if FromFigure(&Figure{}, testNow) != nil {
		t.Error("figure without axis ranges should yield nil")
	}
	partial := &Figure{Layout: FigureLayout{XAxis: AxisLayout{Range: []float64{0, 5}}}}
	if FromFigure(partial, testNow) != nil {
		t.Error("figure with one axis should yield nil")
	}
}

func TestIsStable(t *testing.T) {
	base := FromRanges([2]float64{0, 5}, [2]float64{10, 20}, testNow)

	if !IsStable(base, base, DefaultStabilityThreshold) {
		t.Error("a view must be stable against itself")
	}

	jittered := FromRanges([2]float64{0.0005, 5.0005}, [2]float64{10.0005, 19.9995}, testNow)
	if !IsStable(base, jittered, DefaultStabilityThreshold) {
		t.Error("sub-threshold jitter must be stable")
	}

	moved := FromRanges([2]float64{1, 6}, [2]float64{11, 21}, testNow)
	if IsStable(base, moved, DefaultStabilityThreshold) {
		t.Error("above-threshold deltas must not be stable")
	}

	if !IsStable(nil, nil, DefaultStabilityThreshold) {
		t.Error("two empty views are stable")
	}
	if !IsStable(NewDefault(testNow), nil, DefaultStabilityThreshold) {
		t.Error("default view and nil are both empty, hence stable")
	}
	if IsStable(base, nil, DefaultStabilityThreshold) {
		t.Error("a ranged view is never stable against an empty one")
	}
}

func TestMerge(t *testing.T) {
	primary := FromRanges([2]float64{0, 5}, [2]float64{10, 20}, testNow)
	secondary := FromRanges([2]float64{-1, 1}, [2]float64{-1, 1}, testNow)

	if got := Merge(primary, secondary); got != primary {
		t.Error("primary with bbox must win")
	}
	if got := Merge(nil, secondary); got != secondary {
		t.Error("nil primary falls back to secondary")
	}
	if got := Merge(primary, nil); got != primary {
		t.Error("merge with nil secondary keeps primary")
	}
	if got := Merge(nil, nil); got != nil {
		t.Errorf("Merge(nil, nil) = %+v, want nil", got)
	}
	if got := Merge(NewDefault(testNow), secondary); got != secondary {
		t.Error("a primary without bbox must yield to secondary")
	}
}
