package cluster

import "fmt"

// Polygon is one clipped Voronoi cell in overlay form: parallel
// coordinate sequences ready for a scatter trace.
type Polygon struct {
	ClusterID int       `json:"cluster_id"`
	Xs        []float64 `json:"xs"`
	Ys        []float64 `json:"ys"`
}

// Annotation is a text label positioned at a cluster centroid.
type Annotation struct {
	ClusterID int     `json:"cluster_id"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Text      string  `json:"text"`
}

// Overlay is the derived cluster visualization artifact. It is
// recomputed whenever the point set or cluster count changes and is
// never persisted.
type Overlay struct {
	Polygons    []Polygon    `json:"polygons"`
	Annotations []Annotation `json:"annotations"`
}

// BuildOverlay composes centroids, clipped Voronoi cells and one
// point-count annotation per cluster for the given converged labels.
// The cluster count is taken as max(labels)+1.
func BuildOverlay(points []Point, labels []int, bbox Rect) *Overlay {
	k := 0
	for _, l := range labels {
		if l >= k {
			k = l + 1
		}
	}
	if k == 0 {
		return &Overlay{}
	}

	centroids := ComputeCentroids(points, labels, k)
	cells := VoronoiCells(centroids, bbox)

	counts := make([]int, k)
	for _, l := range labels {
		if l >= 0 && l < k {
			counts[l]++
		}
	}

	overlay := &Overlay{
		Polygons:    make([]Polygon, 0, k),
		Annotations: make([]Annotation, 0, k),
	}
	for i := 0; i < k; i++ {
		poly := Polygon{ClusterID: i}
		for _, v := range cells[i] {
			poly.Xs = append(poly.Xs, v.X)
			poly.Ys = append(poly.Ys, v.Y)
		}
		overlay.Polygons = append(overlay.Polygons, poly)
		overlay.Annotations = append(overlay.Annotations, Annotation{
			ClusterID: i,
			X:         centroids[i].X,
			Y:         centroids[i].Y,
			Text:      fmt.Sprintf("cluster %d (%d pts)", i, counts[i]),
		})
	}
	return overlay
}
