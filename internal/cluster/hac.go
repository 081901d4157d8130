package cluster

import (
	"context"

	"ruleforge/internal/distmatrix"
)

// DefaultDistanceThreshold is the single-linkage merge threshold.
const DefaultDistanceThreshold = 3

// HAC is single-linkage agglomerative clustering cut at Threshold: two
// passwords end up together when a chain of pairs each closer than
// Threshold connects them.
type HAC struct {
	Threshold float64
}

func (h HAC) Name() string { return "hac" }

// Cluster labels connected components of the graph whose edges are the pairs
// with distance below the threshold. Labels are numbered by first member.
func (h HAC) Cluster(ctx context.Context, words []string, m *distmatrix.Matrix) ([]Cluster, error) {
	n := m.Size()
	parent := make([]int, n)
	rank := make([]int, n)
	for i := range parent {
		parent[i] = i
	}

	find := func(u int) int {
		for parent[u] != u {
			parent[u] = parent[parent[u]]
			u = parent[u]
		}
		return u
	}
	union := func(u, v int) {
		ru, rv := find(u), find(v)
		if ru == rv {
			return
		}
		switch {
		case rank[ru] < rank[rv]:
			parent[ru] = rv
		case rank[ru] > rank[rv]:
			parent[rv] = ru
		default:
			parent[rv] = ru
			rank[ru]++
		}
	}

	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		row := m.Row(i)
		for j := i + 1; j < n; j++ {
			if float64(row[j]) < h.Threshold {
				union(i, j)
			}
		}
	}

	labels := make([]int, n)
	ids := make(map[int]int)
	for i := range labels {
		root := find(i)
		id, ok := ids[root]
		if !ok {
			id = len(ids)
			ids[root] = id
		}
		labels[i] = id
	}
	return fromLabels(words, m, exemplarLabels{labels: labels}), nil
}
