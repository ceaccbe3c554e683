package clustering

import (
	"testing"

	"fennec/internal/vecmath"
)

// unit builds a normalized 2-d vector; distinct directions are far apart
// in cosine distance.
func unit(x, y float32) []float32 {
	return vecmath.Normalize([]float32{x, y})
}

func TestClusterGroupsAndNoise(t *testing.T) {
	vectors := [][]float32{
		unit(1, 0), unit(0.99, 0.01), unit(0.98, 0.02), // tight group A
		unit(0, 1), unit(0.01, 0.99), // tight group B
		unit(-1, -1), // isolated noise
	}

	assignments := Cluster(vectors, Options{Eps: 0.05, MinPoints: 2})
	if len(assignments) != len(vectors) {
		t.Fatalf("expected %d assignments, got %d", len(vectors), len(assignments))
	}

	// Largest group remaps to id 0.
	for i := 0; i < 3; i++ {
		if assignments[i].ClusterID != 0 {
			t.Fatalf("vector %d: cluster %d, want 0", i, assignments[i].ClusterID)
		}
	}
	for i := 3; i < 5; i++ {
		if assignments[i].ClusterID != 1 {
			t.Fatalf("vector %d: cluster %d, want 1", i, assignments[i].ClusterID)
		}
	}
	if assignments[5].ClusterID != UnclusteredID {
		t.Fatalf("noise vector: cluster %d, want %d", assignments[5].ClusterID, UnclusteredID)
	}
	if assignments[5].Order != 999.0 {
		t.Fatalf("noise order = %g, want 999", assignments[5].Order)
	}
}

func TestClusterOrderIsDistanceToCentroid(t *testing.T) {
	vectors := [][]float32{
		unit(1, 0),
		unit(0.9, 0.1),
		unit(0.95, 0.05),
	}
	assignments := Cluster(vectors, Options{Eps: 0.1, MinPoints: 2})

	for i, a := range assignments {
		if a.ClusterID != 0 {
			t.Fatalf("vector %d not clustered: %+v", i, a)
		}
		if a.Order < 0 || a.Order >= 999 {
			t.Fatalf("vector %d: order %g out of range", i, a.Order)
		}
	}
	// The middle member sits closest to the centroid direction.
	if !(assignments[2].Order <= assignments[0].Order && assignments[2].Order <= assignments[1].Order) {
		t.Fatalf("expected the central vector to rank representative: %+v", assignments)
	}
}

func TestClusterRerunIsDeterministic(t *testing.T) {
	vectors := [][]float32{
		unit(1, 0), unit(0.99, 0.01),
		unit(0, 1), unit(0.01, 0.99), unit(0.02, 0.98),
	}
	first := Cluster(vectors, Options{Eps: 0.05, MinPoints: 2})
	second := Cluster(vectors, Options{Eps: 0.05, MinPoints: 2})
	for i := range first {
		if first[i] != second[i] {
			t.Fatalf("assignment %d differs across runs: %+v vs %+v", i, first[i], second[i])
		}
	}
	// The three-member group outranks the pair after size remap.
	if first[2].ClusterID != 0 || first[0].ClusterID != 1 {
		t.Fatalf("expected size-ordered ids, got %+v", first)
	}
}

func TestClusterEmptyInput(t *testing.T) {
	if got := Cluster(nil, DefaultOptions()); len(got) != 0 {
		t.Fatalf("expected no assignments for empty input, got %d", len(got))
	}
}

func TestSingletonIsNoise(t *testing.T) {
	assignments := Cluster([][]float32{unit(1, 0)}, Options{Eps: 0.05, MinPoints: 2})
	if assignments[0].ClusterID != UnclusteredID {
		t.Fatalf("singleton should be unclustered, got %d", assignments[0].ClusterID)
	}
}
