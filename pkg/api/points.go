// Package api is the client for the point-query backend. It composes
// view and filter state into request descriptors, issues single-shot
// fetches, and maps wire records into the internal point representation
// consumed by the clustering engine and the renderer.
package api

import (
	"github.com/doctrove/atlas/pkg/filter"
	"github.com/doctrove/atlas/pkg/viewstate"
)

// Position is a resolved 2D projection coordinate.
type Position struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Point is one document placed on the projection plane. Position is nil
// when the backend record carried no parsable coordinates; such points
// are kept rather than dropped because the absence of a plottable
// position is itself meaningful to the caller.
type Point struct {
	ID       string    `json:"id"`
	Title    string    `json:"title,omitempty"`
	Source   string    `json:"source,omitempty"`
	Date     string    `json:"date,omitempty"`
	Position *Position `json:"position"`
}

// PointSet is the materialized result of one fetch.
type PointSet struct {
	Points []Point
	// Total is the backend's total match count when reported, else -1.
	Total int64
}

// Extent is the backend's maximal data extent, used to bound the
// initial default view.
type Extent struct {
	XMin float64 `json:"x_min"`
	XMax float64 `json:"x_max"`
	YMin float64 `json:"y_min"`
	YMax float64 `json:"y_max"`
}

// Request is a fully composed point-query descriptor. One Request maps
// to exactly one backend call.
type Request struct {
	Bbox                string
	SQLFilter           string
	SearchText          string
	SimilarityThreshold float64
	Limit               int
	Fields              []string
	Sort                string
}

// Options are the per-request knobs a caller can override; zero values
// fall back to the defaults in DefaultOptions.
type Options struct {
	Limit   int
	Fields  []string
	Sort    string
	Columns filter.Columns
}

// DefaultOptions returns the standard request options: the default field
// set of the document schema and a limit sized for a full viewport.
func DefaultOptions() Options {
	return Options{
		Limit: 20000,
		Fields: []string{
			"doctrove_id",
			"title",
			"doctrove_source",
			"doctrove_primary_date",
			"position",
		},
		Columns: filter.DefaultColumns(),
	}
}

// ComposeRequest combines a validated view and the current filter state
// into a request descriptor. Returns nil when the view carries no bbox:
// there is no fetch without a valid viewport.
func ComposeRequest(view *viewstate.View, fs filter.State, opts Options) *Request {
	if view == nil || view.Bbox == "" {
		return nil
	}

	def := DefaultOptions()
	if opts.Limit <= 0 {
		opts.Limit = def.Limit
	}
	if len(opts.Fields) == 0 {
		opts.Fields = def.Fields
	}
	if opts.Columns == (filter.Columns{}) {
		opts.Columns = def.Columns
	}

	return &Request{
		Bbox:                view.Bbox,
		SQLFilter:           filter.Compile(fs, opts.Columns),
		SearchText:          fs.SearchText,
		SimilarityThreshold: fs.SimilarityThreshold,
		Limit:               opts.Limit,
		Fields:              opts.Fields,
		Sort:                opts.Sort,
	}
}
