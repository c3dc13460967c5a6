package cluster

// Rect is an axis-aligned viewport rectangle in projection coordinates.
type Rect struct {
	MinX float64 `json:"min_x"`
	MinY float64 `json:"min_y"`
	MaxX float64 `json:"max_x"`
	MaxY float64 `json:"max_y"`
}

// RectFromRanges builds a Rect from two axis ranges.
func RectFromRanges(xRange, yRange [2]float64) Rect {
	return Rect{MinX: xRange[0], MinY: yRange[0], MaxX: xRange[1], MaxY: yRange[1]}
}

// VoronoiCells computes the Voronoi tessellation of the centroid set,
// clipping every cell to bbox. Each cell is returned as a closed polygon
// (first vertex repeated as last), index-aligned with centroids. A
// centroid whose cell is clipped away entirely yields an empty polygon.
//
// Cells are built by successive half-plane clipping: cell i is the bbox
// rectangle cut against the perpendicular bisector between centroid i
// and every other centroid, keeping the side closer to i. Quadratic in
// the number of centroids, which is bounded by MaxClusters.
func VoronoiCells(centroids []Point, bbox Rect) [][]Point {
	cells := make([][]Point, len(centroids))
	for i, c := range centroids {
		cell := []Point{
			{X: bbox.MinX, Y: bbox.MinY},
			{X: bbox.MaxX, Y: bbox.MinY},
			{X: bbox.MaxX, Y: bbox.MaxY},
			{X: bbox.MinX, Y: bbox.MaxY},
		}
		for j, other := range centroids {
			if j == i || (other.X == c.X && other.Y == c.Y) {
				continue
			}
			cell = clipHalfPlane(cell, c, other)
			if len(cell) == 0 {
				break
			}
		}
		cells[i] = closePolygon(cell)
	}
	return cells
}

// clipHalfPlane clips polygon against the perpendicular bisector of
// near/far, keeping the side closer to near (Sutherland-Hodgman). The
// kept half-plane is a*x + b*y <= c.
func clipHalfPlane(polygon []Point, near, far Point) []Point {
	a := 2 * (far.X - near.X)
	b := 2 * (far.Y - near.Y)
	c := far.X*far.X + far.Y*far.Y - near.X*near.X - near.Y*near.Y

	var out []Point
	for i, cur := range polygon {
		prev := polygon[(i+len(polygon)-1)%len(polygon)]
		curIn := a*cur.X+b*cur.Y <= c
		prevIn := a*prev.X+b*prev.Y <= c

		if curIn {
			if !prevIn {
				out = append(out, intersect(prev, cur, a, b, c))
			}
			out = append(out, cur)
		} else if prevIn {
			out = append(out, intersect(prev, cur, a, b, c))
		}
	}
	return out
}

// intersect returns the point where segment p1-p2 crosses the line
// a*x + b*y = c. Callers only invoke it when the endpoints straddle the
// line, so the denominator is nonzero.
func intersect(p1, p2 Point, a, b, c float64) Point {
	t := (c - a*p1.X - b*p1.Y) / (a*(p2.X-p1.X) + b*(p2.Y-p1.Y))
	return Point{X: p1.X + t*(p2.X-p1.X), Y: p1.Y + t*(p2.Y-p1.Y)}
}

// closePolygon repeats the first vertex as the last so the ring is
// explicitly closed for the renderer.
func closePolygon(polygon []Point) []Point {
	if len(polygon) == 0 {
		return polygon
	}
	first, last := polygon[0], polygon[len(polygon)-1]
	if first != last {
		polygon = append(polygon, first)
	}
	return polygon
}
