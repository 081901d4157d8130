package cluster

import (
	"ruleforge/internal/distmatrix"
	"ruleforge/internal/editdist"
)

// Medoid returns the position within members of the member with the lowest
// mean distance to all members. The first such member wins ties.
func Medoid(m *distmatrix.Matrix, members []int) int {
	best, bestSum := 0, -1
	for a, i := range members {
		sum := 0
		for _, j := range members {
			sum += m.At(i, j)
		}
		if bestSum < 0 || sum < bestSum {
			best, bestSum = a, sum
		}
	}
	return best
}

// MedoidWords is Medoid for a list of words without a matrix. Distances are
// bounded by maxDistance and saturate at maxDistance+1.
func MedoidWords(words []string, maxDistance int) int {
	best, bestSum := 0, -1
	for a, w := range words {
		sum := 0
		for _, other := range words {
			d := editdist.Strings(w, other, maxDistance)
			if d == editdist.TooLarge {
				d = maxDistance + 1
			}
			sum += d
		}
		if bestSum < 0 || sum < bestSum {
			best, bestSum = a, sum
		}
	}
	return best
}
