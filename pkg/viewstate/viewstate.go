// Package viewstate derives a stable rectangular viewport from chart
// interaction events and serializes it as a canonical bounding box string.
package viewstate

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// DefaultStabilityThreshold is the per-endpoint jitter tolerance used by
// IsStable when comparing two views.
const DefaultStabilityThreshold = 0.001

// View is an immutable viewport snapshot. Instances are replaced wholesale
// on every interaction event, never mutated in place.
type View struct {
	XRange      *[2]float64 `json:"x_range"`
	YRange      *[2]float64 `json:"y_range"`
	Bbox        string      `json:"bbox"`
	LastUpdated time.Time   `json:"last_updated"`
}

// RangesToBbox formats two axis ranges as the canonical "x0,y0,x1,y1"
// string. Pure formatting, no validation.
func RangesToBbox(xRange, yRange [2]float64) string {
	return fmt.Sprintf("%s,%s,%s,%s",
		formatCoord(xRange[0]), formatCoord(yRange[0]),
		formatCoord(xRange[1]), formatCoord(yRange[1]))
}

// formatCoord renders a coordinate with the shortest representation that
// round-trips, so bbox strings are stable cache keys.
func formatCoord(v float64) string {
	return strconv.FormatFloat(v, 'g', -1, 64)
}

// ParseBbox parses the canonical "x0,y0,x1,y1" serialization back into
// axis ranges. It accepts exactly four finite comma-separated numbers.
func ParseBbox(bbox string) (xRange, yRange [2]float64, err error) {
	parts := strings.Split(bbox, ",")
	if len(parts) != 4 {
		return xRange, yRange, fmt.Errorf("viewstate: bbox %q must have 4 components", bbox)
	}
	vals := make([]float64, 4)
	for i, p := range parts {
		v, perr := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if perr != nil || math.IsNaN(v) || math.IsInf(v, 0) {
			return xRange, yRange, fmt.Errorf("viewstate: bbox %q has invalid component %q", bbox, p)
		}
		vals[i] = v
	}
	return [2]float64{vals[0], vals[2]}, [2]float64{vals[1], vals[3]}, nil
}

// Validate reports whether v has two well-formed ranges: both present,
// all endpoints finite, and low < high on each axis. It is a total
// predicate and never panics; a nil view is simply invalid.
func Validate(v *View) bool {
	if v == nil || v.XRange == nil || v.YRange == nil {
		return false
	}
	return validRange(*v.XRange) && validRange(*v.YRange)
}

func validRange(r [2]float64) bool {
	for _, e := range r {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			return false
		}
	}
	return r[0] < r[1]
}

// NewDefault returns the empty session-start view: no ranges, no bbox.
func NewDefault(now time.Time) *View {
	return &View{LastUpdated: now}
}

// FromRanges builds a view with ranges, bbox and timestamp in one step.
// It does not validate; callers run Validate before acting on the result.
func FromRanges(xRange, yRange [2]float64, now time.Time) *View {
	x, y := xRange, yRange
	return &View{
		XRange:      &x,
		YRange:      &y,
		Bbox:        RangesToBbox(xRange, yRange),
		LastUpdated: now,
	}
}

// FromRelayout extracts axis ranges from a chart relayout payload. The
// payload is a decoded JSON object whose shape depends on the interaction
// source: drag-zoom emits separate "xaxis.range" / "yaxis.range" pairs,
// programmatic relayout emits a single nested "range" array of arrays.
// Returns nil when neither shape is recognizable.
func FromRelayout(payload map[string]any, now time.Time) *View {
	if payload == nil {
		return nil
	}

	if x, ok := asRange(payload["xaxis.range"]); ok {
		if y, ok := asRange(payload["yaxis.range"]); ok {
			return FromRanges(x, y, now)
		}
		return nil
	}

	// Fallback shape: "range": [[x0, x1], [y0, y1]]
	if nested, ok := payload["range"].([]any); ok && len(nested) == 2 {
		x, okX := asRange(nested[0])
		y, okY := asRange(nested[1])
		if okX && okY {
			return FromRanges(x, y, now)
		}
	}

	return nil
}

// Figure is the subset of a chart figure relevant to viewport extraction.
type Figure struct {
	Layout FigureLayout `json:"layout"`
}

// FigureLayout holds the per-axis range configuration of a figure.
type FigureLayout struct {
	XAxis AxisLayout `json:"xaxis"`
	YAxis AxisLayout `json:"yaxis"`
}

// AxisLayout is a single axis configuration.
type AxisLayout struct {
	Range []float64 `json:"range"`
}

// FromFigure extracts the viewport from a full figure layout rather than
// an incremental event. Returns nil if either axis range is absent or
// malformed.
func FromFigure(fig *Figure, now time.Time) *View {
	if fig == nil {
		return nil
	}
	xs := fig.Layout.XAxis.Range
	ys := fig.Layout.YAxis.Range
	if len(xs) != 2 || len(ys) != 2 {
		return nil
	}
	return FromRanges([2]float64{xs[0], xs[1]}, [2]float64{ys[0], ys[1]}, now)
}

// IsStable reports whether two views describe the same viewport up to
// floating-point jitter: every endpoint delta is at most threshold. Two
// views with no ranges at all are stable; a view with ranges is never
// stable against one without. A non-positive threshold falls back to
// DefaultStabilityThreshold.
func IsStable(current, previous *View, threshold float64) bool {
	if threshold <= 0 {
		threshold = DefaultStabilityThreshold
	}
	curEmpty := current == nil || current.XRange == nil || current.YRange == nil
	prevEmpty := previous == nil || previous.XRange == nil || previous.YRange == nil
	if curEmpty || prevEmpty {
		return curEmpty && prevEmpty
	}

	return rangeStable(*current.XRange, *previous.XRange, threshold) &&
		rangeStable(*current.YRange, *previous.YRange, threshold)
}

func rangeStable(a, b [2]float64, threshold float64) bool {
	return math.Abs(a[0]-b[0]) <= threshold && math.Abs(a[1]-b[1]) <= threshold
}

// Merge returns primary if it carries a bbox, else secondary, else nil.
// The latest complete observation wins over a stale or partial one.
func Merge(primary, secondary *View) *View {
	if primary != nil && primary.Bbox != "" {
		return primary
	}
	return secondary
}

// asRange coerces a decoded JSON value into a two-element numeric range.
func asRange(v any) ([2]float64, bool) {
	arr, ok := v.([]any)
	if !ok || len(arr) != 2 {
		return [2]float64{}, false
	}
	lo, okLo := asFloat(arr[0])
	hi, okHi := asFloat(arr[1])
	if !okLo || !okHi {
		return [2]float64{}, false
	}
	return [2]float64{lo, hi}, true
}

func asFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
