// Package session owns the application state snapshot as an explicit
// state-transition function. Reduce is pure: it never mutates its input
// and can be driven from any concurrency model as long as the owner
// serializes dispatch.
package session

import (
	"github.com/doctrove/atlas/pkg/api"
	"github.com/doctrove/atlas/pkg/filter"
	"github.com/doctrove/atlas/pkg/viewstate"
)

// State is one immutable application snapshot.
type State struct {
	View   *viewstate.View
	Filter filter.State

	Points []api.Point
	Total  int64
	Extent *api.Extent

	// PendingBbox is the bbox of the in-flight fetch, used to discard
	// stale responses when two fetches overlap.
	PendingBbox string
	Loading     bool
	Err         error
}

// Action is a state transition request. The concrete types below are the
// full set; Reduce ignores anything else.
type Action interface{ isAction() }

// LoadStart marks a fetch in flight for the given bbox.
type LoadStart struct{ Bbox string }

// LoadSuccess delivers a fetched point set together with the bbox of the
// request that produced it.
type LoadSuccess struct {
	Bbox   string
	Points []api.Point
	Total  int64
}

// LoadError delivers a fetch failure.
type LoadError struct{ Err error }

// ExtentLoaded delivers the maximal data extent.
type ExtentLoaded struct{ Extent api.Extent }

// ViewChanged replaces the viewport wholesale.
type ViewChanged struct{ View *viewstate.View }

// FilterChanged replaces the filter state wholesale.
type FilterChanged struct{ Filter filter.State }

func (LoadStart) isAction()     {}
func (LoadSuccess) isAction()   {}
func (LoadError) isAction()     {}
func (ExtentLoaded) isAction()  {}
func (ViewChanged) isAction()   {}
func (FilterChanged) isAction() {}

// Reduce returns the state following action. Stale LoadSuccess results,
// whose originating bbox no longer matches the pending one, leave the
// state untouched; a newer fetch has superseded them.
func Reduce(s State, action Action) State {
	switch a := action.(type) {
	case LoadStart:
		s.Loading = true
		s.PendingBbox = a.Bbox
		s.Err = nil
	case LoadSuccess:
		if s.PendingBbox != "" && a.Bbox != s.PendingBbox {
			return s
		}
		s.Loading = false
		s.PendingBbox = ""
		s.Points = a.Points
		s.Total = a.Total
		s.Err = nil
	case LoadError:
		s.Loading = false
		s.PendingBbox = ""
		s.Err = a.Err
	case ExtentLoaded:
		extent := a.Extent
		s.Extent = &extent
	case ViewChanged:
		s.View = a.View
	case FilterChanged:
		s.Filter = a.Filter
	}
	return s
}
