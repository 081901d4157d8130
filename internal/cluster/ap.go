package cluster

import (
	"context"
	"math"
	"math/rand/v2"
	"slices"

	"ruleforge/internal/distmatrix"
)

// Affinity propagation defaults used when a field is unset or out of range.
const (
	DefaultDamping         = 0.7
	DefaultConvergenceIter = 15
	DefaultMaxIter         = 200
)

// AffinityPropagation clusters on similarities S = -distance with the
// preference set to the median similarity. A fixed seed drives the tiny
// noise that breaks ties between equal similarities, so results are
// reproducible.
type AffinityPropagation struct {
	Damping         float64
	ConvergenceIter int
	MaxIter         int
	Seed            uint64
}

func (a AffinityPropagation) Name() string { return "ap" }

func (a AffinityPropagation) withDefaults() AffinityPropagation {
	if a.Damping < 0.5 || a.Damping >= 1 {
		a.Damping = DefaultDamping
	}
	if a.ConvergenceIter <= 0 {
		a.ConvergenceIter = DefaultConvergenceIter
	}
	if a.MaxIter <= 0 {
		a.MaxIter = DefaultMaxIter
	}
	return a
}

// Cluster runs affinity propagation. When no exemplar emerges every
// password is labelled noise.
func (a AffinityPropagation) Cluster(ctx context.Context, words []string, m *distmatrix.Matrix) ([]Cluster, error) {
	labels, exemplars, err := a.fit(ctx, m)
	if err != nil {
		return nil, err
	}
	return fromLabels(words, m, exemplarLabels{labels: labels, exemplars: exemplars}), nil
}

func (a AffinityPropagation) fit(ctx context.Context, m *distmatrix.Matrix) ([]int, map[int]int, error) {
	a = a.withDefaults()
	n := m.Size()
	if n == 0 {
		return nil, nil, nil
	}

	S := make([][]float64, n)
	all := make([]float64, 0, n*n)
	for i := range S {
		S[i] = make([]float64, n)
		for j := range S[i] {
			S[i][j] = -float64(m.At(i, j))
			all = append(all, S[i][j])
		}
	}
	pref := median(all)

	if n == 1 || equalSimilarities(S) {
		return degenerate(S, pref)
	}
	for i := range S {
		S[i][i] = pref
	}

	rng := rand.New(rand.NewPCG(a.Seed, a.Seed^0x9e3779b97f4a7c15))
	const eps = 2.220446049250313e-16
	for i := range S {
		for j := range S[i] {
			S[i][j] += (eps*S[i][j] + math.SmallestNonzeroFloat64*100) * rng.NormFloat64()
		}
	}

	R := newSquare(n)
	A := newSquare(n)
	history := make([][]bool, n)
	for i := range history {
		history[i] = make([]bool, a.ConvergenceIter)
	}

	tmp := newSquare(n)
	exemplar := make([]bool, n)
	for it := 0; it < a.MaxIter; it++ {
		if err := ctx.Err(); err != nil {
			return nil, nil, err
		}

		// Responsibilities.
		for i := 0; i < n; i++ {
			best, second, arg := math.Inf(-1), math.Inf(-1), 0
			for k := 0; k < n; k++ {
				v := A[i][k] + S[i][k]
				if v > best {
					second, best, arg = best, v, k
				} else if v > second {
					second = v
				}
			}
			for k := 0; k < n; k++ {
				r := S[i][k] - best
				if k == arg {
					r = S[i][k] - second
				}
				R[i][k] = a.Damping*R[i][k] + (1-a.Damping)*r
			}
		}

		// Availabilities.
		for k := 0; k < n; k++ {
			sum := 0.0
			for i := 0; i < n; i++ {
				v := R[i][k]
				if i != k && v < 0 {
					v = 0
				}
				tmp[i][k] = v
				sum += v
			}
			for i := 0; i < n; i++ {
				v := sum - tmp[i][k]
				if i != k && v > 0 {
					v = 0
				}
				A[i][k] = a.Damping*A[i][k] + (1-a.Damping)*v
			}
		}

		count := 0
		for i := 0; i < n; i++ {
			exemplar[i] = A[i][i]+R[i][i] > 0
			history[i][it%a.ConvergenceIter] = exemplar[i]
			if exemplar[i] {
				count++
			}
		}
		if it >= a.ConvergenceIter && count > 0 && stable(history) {
			break
		}
	}

	var centers []int
	for i, ok := range exemplar {
		if ok {
			centers = append(centers, i)
		}
	}
	labels := make([]int, n)
	if len(centers) == 0 {
		for i := range labels {
			labels[i] = -1
		}
		return labels, nil, nil
	}

	assign := func() []int {
		c := make([]int, n)
		for i := 0; i < n; i++ {
			best := 0
			for k := 1; k < len(centers); k++ {
				if S[i][centers[k]] > S[i][centers[best]] {
					best = k
				}
			}
			c[i] = best
		}
		for k, e := range centers {
			c[e] = k
		}
		return c
	}

	// Refine each exemplar to the member with the highest summed similarity.
	c := assign()
	for k := range centers {
		var members []int
		for i, ck := range c {
			if ck == k {
				members = append(members, i)
			}
		}
		best, bestSum := members[0], math.Inf(-1)
		for _, j := range members {
			sum := 0.0
			for _, i := range members {
				sum += S[i][j]
			}
			if sum > bestSum {
				best, bestSum = j, sum
			}
		}
		centers[k] = best
	}
	c = assign()

	// Number clusters by ascending exemplar index.
	unique := slices.Clone(centers)
	slices.Sort(unique)
	unique = slices.Compact(unique)
	exemplars := make(map[int]int, len(unique))
	for i := range labels {
		e := centers[c[i]]
		label, _ := slices.BinarySearch(unique, e)
		labels[i] = label
		exemplars[label] = e
	}
	return labels, exemplars, nil
}

// degenerate handles inputs where every similarity is the same: each point
// is its own exemplar when the preference beats that similarity, otherwise
// everything joins the first point.
func degenerate(S [][]float64, pref float64) ([]int, map[int]int, error) {
	n := len(S)
	labels := make([]int, n)
	exemplars := make(map[int]int)
	if n == 1 || pref > S[0][n-1] {
		for i := range labels {
			labels[i] = i
			exemplars[i] = i
		}
		return labels, exemplars, nil
	}
	exemplars[0] = 0
	return labels, exemplars, nil
}

func equalSimilarities(S [][]float64) bool {
	n := len(S)
	first := S[0][1]
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			if i != j && S[i][j] != first {
				return false
			}
		}
	}
	return true
}

// stable reports whether every point kept the same exemplar decision over
// the whole convergence window.
func stable(history [][]bool) bool {
	for _, h := range history {
		on := 0
		for _, v := range h {
			if v {
				on++
			}
		}
		if on != 0 && on != len(h) {
			return false
		}
	}
	return true
}

func median(v []float64) float64 {
	s := slices.Clone(v)
	slices.Sort(s)
	mid := len(s) / 2
	if len(s)%2 == 1 {
		return s[mid]
	}
	return (s[mid-1] + s[mid]) / 2
}

func newSquare(n int) [][]float64 {
	out := make([][]float64, n)
	for i := range out {
		out[i] = make([]float64, n)
	}
	return out
}
