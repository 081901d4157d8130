// Package cluster partitions a chunk of passwords into groups of similar
// passwords and picks one representative per group.
//
// All indices handed in or out of this package are chunk-local: index i
// names words[i] of the chunk being processed and row i of its matrix.
package cluster

import (
	"context"
	"strconv"

	"ruleforge/internal/distmatrix"
)

// NoiseLabel marks the group of passwords a density method left unclustered.
const NoiseLabel = "-1"

// Cluster is one group of passwords together with its representative.
type Cluster struct {
	Label string
	// Indices are chunk-local member positions. They are nil for clusters
	// that arrived as an external payload.
	Indices        []int
	Words          []string
	Representative string
}

// IsNoise reports whether c holds the unclustered outliers.
func (c Cluster) IsNoise() bool { return c.Label == NoiseLabel }

// Oracle is a clustering method over a precomputed distance matrix.
type Oracle interface {
	Name() string
	Cluster(ctx context.Context, words []string, m *distmatrix.Matrix) ([]Cluster, error)
}

// exemplarLabels is one label per word plus, for methods that choose their
// own representatives, the exemplar index of each label.
type exemplarLabels struct {
	labels    []int
	exemplars map[int]int
}

// fromLabels groups words by label in order of first appearance. Label -1
// becomes NoiseLabel. Representatives are exemplars when given, otherwise
// the medoid of the cluster.
func fromLabels(words []string, m *distmatrix.Matrix, el exemplarLabels) []Cluster {
	var (
		out   []Cluster
		index = make(map[int]int)
	)
	for i, label := range el.labels {
		pos, ok := index[label]
		if !ok {
			name := strconv.Itoa(label)
			if label < 0 {
				name = NoiseLabel
			}
			pos = len(out)
			index[label] = pos
			out = append(out, Cluster{Label: name})
		}
		out[pos].Indices = append(out[pos].Indices, i)
		out[pos].Words = append(out[pos].Words, words[i])
	}

	for label, pos := range index {
		c := &out[pos]
		if ex, ok := el.exemplars[label]; ok && ex >= 0 {
			c.Representative = words[ex]
			continue
		}
		c.Representative = words[c.Indices[Medoid(m, c.Indices)]]
	}
	return out
}
