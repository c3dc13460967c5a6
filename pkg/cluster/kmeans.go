// Package cluster partitions the visible point set into k groups and
// derives the spatial overlay (Voronoi cells clipped to the viewport plus
// centroid annotations) used for rendering.
package cluster

// Point is a position in the 2D projection plane.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

const (
	// MinClusters is the smallest cluster count a request clamps to.
	MinClusters = 2
	// MaxClusters is the largest cluster count a request clamps to.
	MaxClusters = 1000
	// DefaultMaxIterations bounds Lloyd's algorithm when assignments
	// keep oscillating.
	DefaultMaxIterations = 50
)

// ClampClusterCount clamps a requested cluster count to [MinClusters, MaxClusters].
func ClampClusterCount(k int) int {
	if k < MinClusters {
		return MinClusters
	}
	if k > MaxClusters {
		return MaxClusters
	}
	return k
}

// ShouldEnable reports whether clustering is worth offering: only when
// there are more points than clusters, guarding against degenerate
// one-point-per-cluster partitions.
func ShouldEnable(numPoints, k int) bool {
	return numPoints > k
}

// AssignLabels runs Lloyd's k-means over points and returns one cluster
// label in [0, k) per point. Seeding is deterministic: centroid i starts
// at the point with index i*len(points)/k, which spreads seeds across
// the input order and makes results reproducible for a fixed input.
// Iteration stops when no assignment changes or maxIterations is
// reached. A centroid that loses all its points keeps its previous
// position, so an empty cluster may persist. Returns nil when there are
// no points or k is not positive.
func AssignLabels(points []Point, k, maxIterations int) []int {
	if len(points) == 0 || k <= 0 {
		return nil
	}
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}

	centroids := seedCentroids(points, k)
	labels := make([]int, len(points))

	for iter := 0; iter < maxIterations; iter++ {
		changed := false
		for i, p := range points {
			nearest := nearestCentroid(p, centroids)
			if labels[i] != nearest {
				labels[i] = nearest
				changed = true
			}
		}
		if iter > 0 && !changed {
			break
		}

		sums := make([]Point, k)
		counts := make([]int, k)
		for i, p := range points {
			c := labels[i]
			sums[c].X += p.X
			sums[c].Y += p.Y
			counts[c]++
		}
		for c := range centroids {
			if counts[c] > 0 {
				centroids[c] = Point{X: sums[c].X / float64(counts[c]), Y: sums[c].Y / float64(counts[c])}
			}
		}
	}

	return labels
}

// ComputeCentroids recomputes centroid positions from converged labels.
// An empty cluster falls back to its deterministic seed position rather
// than dividing by zero.
func ComputeCentroids(points []Point, labels []int, k int) []Point {
	if k <= 0 {
		return nil
	}

	centroids := seedCentroids(points, k)
	sums := make([]Point, k)
	counts := make([]int, k)
	for i, p := range points {
		if i >= len(labels) {
			break
		}
		c := labels[i]
		if c < 0 || c >= k {
			continue
		}
		sums[c].X += p.X
		sums[c].Y += p.Y
		counts[c]++
	}
	for c := 0; c < k; c++ {
		if counts[c] > 0 {
			centroids[c] = Point{X: sums[c].X / float64(counts[c]), Y: sums[c].Y / float64(counts[c])}
		}
	}
	return centroids
}

// seedCentroids picks the deterministic initial centroids: evenly spaced
// indices over the input order.
func seedCentroids(points []Point, k int) []Point {
	centroids := make([]Point, k)
	if len(points) == 0 {
		return centroids
	}
	for i := 0; i < k; i++ {
		centroids[i] = points[i*len(points)/k]
	}
	return centroids
}

func nearestCentroid(p Point, centroids []Point) int {
	best := 0
	bestDist := squaredDistance(p, centroids[0])
	for i := 1; i < len(centroids); i++ {
		if d := squaredDistance(p, centroids[i]); d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

func squaredDistance(a, b Point) float64 {
	dx := a.X - b.X
	dy := a.Y - b.Y
	return dx*dx + dy*dy
}
