package cluster

import (
	"context"

	"ruleforge/internal/distmatrix"
)

const (
	DefaultEps       = 1
	DefaultMinPoints = 3
	DefaultEps2      = 0.25
)

// DBSCAN is density-based clustering on edit distance. The neighbourhood of
// a password is every password within Eps edits, itself included; a
// password is a core point when its neighbourhood holds at least MinPoints.
type DBSCAN struct {
	Eps       int
	MinPoints int
}

func (d DBSCAN) Name() string { return "dbscan" }

func (d DBSCAN) Cluster(ctx context.Context, words []string, m *distmatrix.Matrix) ([]Cluster, error) {
	labels, err := expand(ctx, words, m, d.Eps, d.MinPoints, nil)
	if err != nil {
		return nil, err
	}
	return fromLabels(words, m, exemplarLabels{labels: labels}), nil
}

// MDBSCAN is DBSCAN whose expansion only admits passwords whose Jaro-Winkler
// distance to the cluster's seed stays below Eps2. This keeps chains of
// small edits from drifting into unrelated passwords.
type MDBSCAN struct {
	Eps       int
	MinPoints int
	Eps2      float64
}

func (d MDBSCAN) Name() string { return "mdbscan" }

func (d MDBSCAN) Cluster(ctx context.Context, words []string, m *distmatrix.Matrix) ([]Cluster, error) {
	near := func(seed, candidate int) bool {
		return JaroWinklerDistance(words[seed], words[candidate]) < d.Eps2
	}
	labels, err := expand(ctx, words, m, d.Eps, d.MinPoints, near)
	if err != nil {
		return nil, err
	}
	return fromLabels(words, m, exemplarLabels{labels: labels}), nil
}

// expand runs the stack-based DBSCAN expansion. Unvisited points keep label
// -1 and end up as noise. admit, when set, gates every point on its
// relation to the seed that started the cluster.
func expand(ctx context.Context, words []string, m *distmatrix.Matrix, eps, minPoints int, admit func(seed, candidate int) bool) ([]int, error) {
	n := m.Size()
	neighbours := make([][]int, n)
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for j, d := range m.Row(i) {
			if int(d) <= eps {
				neighbours[i] = append(neighbours[i], j)
			}
		}
	}

	labels := make([]int, n)
	for i := range labels {
		labels[i] = -1
	}

	next := 0
	var stack []int
	for seed := 0; seed < n; seed++ {
		if labels[seed] != -1 || len(neighbours[seed]) < minPoints {
			continue
		}
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		assigned := false
		stack = append(stack[:0], seed)
		for len(stack) > 0 {
			cur := stack[len(stack)-1]
			stack = stack[:len(stack)-1]
			if labels[cur] != -1 {
				continue
			}
			if admit != nil && !admit(seed, cur) {
				continue
			}
			labels[cur] = next
			assigned = true
			if len(neighbours[cur]) >= minPoints {
				for _, x := range neighbours[cur] {
					if labels[x] == -1 {
						stack = append(stack, x)
					}
				}
			}
		}
		if assigned {
			next++
		}
	}
	return labels, nil
}
