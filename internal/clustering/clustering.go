// Package clustering groups scene and face vectors with density-based
// clustering. Noise points land in a dedicated unclustered bucket;
// within a cluster, rows are ordered by distance to the centroid so the
// most representative member sorts first.
package clustering

import (
	"sort"

	"fennec/internal/vecmath"
)

// UnclusteredID is the cluster id assigned to noise points.
const UnclusteredID = -1

// unclusteredOrder sorts noise rows after every clustered row.
const unclusteredOrder = 999.0

// Assignment is the clustering result for one input vector, in input order.
type Assignment struct {
	ClusterID int
	Order     float64
}

// Options tunes the density clustering.
type Options struct {
	// Eps is the cosine-distance neighborhood radius.
	Eps float64
	// MinPoints is the minimum neighborhood size (self included) for a
	// core point. Two matching vectors are enough to form a cluster.
	MinPoints int
}

// DefaultOptions mirror the clustering the index was built with.
func DefaultOptions() Options {
	return Options{Eps: 0.35, MinPoints: 2}
}

// Cluster runs density-based clustering over the vectors and returns one
// assignment per input. Cluster ids are remapped by descending cluster
// size, so id 0 is always the largest group. Re-running on the same input
// yields the same assignments.
func Cluster(vectors [][]float32, opts Options) []Assignment {
	if opts.Eps <= 0 {
		opts.Eps = DefaultOptions().Eps
	}
	if opts.MinPoints < 2 {
		opts.MinPoints = DefaultOptions().MinPoints
	}

	n := len(vectors)
	assignments := make([]Assignment, n)
	if n == 0 {
		return assignments
	}

	labels := dbscan(vectors, opts)
	labels = remapBySize(labels)

	centroids := clusterCentroids(vectors, labels)
	for i := range assignments {
		label := labels[i]
		if label == UnclusteredID {
			assignments[i] = Assignment{ClusterID: UnclusteredID, Order: unclusteredOrder}
			continue
		}
		assignments[i] = Assignment{
			ClusterID: label,
			Order:     vecmath.CosineDistance(vectors[i], centroids[label]),
		}
	}
	return assignments
}

// dbscan labels each vector with a cluster id, or UnclusteredID for noise.
func dbscan(vectors [][]float32, opts Options) []int {
	const unvisited = -2
	n := len(vectors)
	labels := make([]int, n)
	for i := range labels {
		labels[i] = unvisited
	}

	next := 0
	for i := 0; i < n; i++ {
		if labels[i] != unvisited {
			continue
		}
		neighbors := regionQuery(vectors, i, opts.Eps)
		if len(neighbors) < opts.MinPoints {
			labels[i] = UnclusteredID
			continue
		}

		cluster := next
		next++
		labels[i] = cluster

		// Expand the cluster breadth-first.
		queue := append([]int{}, neighbors...)
		for len(queue) > 0 {
			j := queue[0]
			queue = queue[1:]
			if labels[j] == UnclusteredID {
				labels[j] = cluster
			}
			if labels[j] != unvisited {
				continue
			}
			labels[j] = cluster
			jNeighbors := regionQuery(vectors, j, opts.Eps)
			if len(jNeighbors) >= opts.MinPoints {
				queue = append(queue, jNeighbors...)
			}
		}
	}
	return labels
}

func regionQuery(vectors [][]float32, i int, eps float64) []int {
	var neighbors []int
	for j := range vectors {
		if vecmath.CosineDistance(vectors[i], vectors[j]) <= eps {
			neighbors = append(neighbors, j)
		}
	}
	return neighbors
}

// remapBySize renumbers cluster ids so the largest cluster is 0, the next
// 1, and so on. Ties break on the original id for determinism.
func remapBySize(labels []int) []int {
	sizes := map[int]int{}
	for _, label := range labels {
		if label != UnclusteredID {
			sizes[label]++
		}
	}
	ids := make([]int, 0, len(sizes))
	for id := range sizes {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(a, b int) bool {
		if sizes[ids[a]] != sizes[ids[b]] {
			return sizes[ids[a]] > sizes[ids[b]]
		}
		return ids[a] < ids[b]
	})
	remap := map[int]int{UnclusteredID: UnclusteredID}
	for newID, oldID := range ids {
		remap[oldID] = newID
	}

	out := make([]int, len(labels))
	for i, label := range labels {
		out[i] = remap[label]
	}
	return out
}

// clusterCentroids computes the normalized mean vector of each cluster.
func clusterCentroids(vectors [][]float32, labels []int) map[int][]float32 {
	groups := map[int][][]float32{}
	for i, label := range labels {
		if label == UnclusteredID {
			continue
		}
		groups[label] = append(groups[label], vectors[i])
	}
	centroids := make(map[int][]float32, len(groups))
	for label, members := range groups {
		centroids[label] = vecmath.Normalize(vecmath.Mean(members))
	}
	return centroids
}
