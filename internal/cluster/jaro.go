package cluster

import "ruleforge/internal/wordlist"

const (
	winklerBoostThreshold = 0.7
	winklerPrefixScale    = 0.1
	winklerMaxPrefix      = 4
)

// JaroWinklerDistance returns 1 minus the Jaro-Winkler similarity of a and
// b. The common-prefix boost is only applied above a Jaro similarity of 0.7.
func JaroWinklerDistance(a, b string) float64 {
	return 1 - JaroWinkler(a, b)
}

// JaroWinkler returns the Jaro-Winkler similarity in [0, 1].
func JaroWinkler(a, b string) float64 {
	r1, r2 := wordlist.Runes(a), wordlist.Runes(b)
	if len(r1) == 0 && len(r2) == 0 {
		return 1
	}
	if len(r1) == 0 || len(r2) == 0 {
		return 0
	}

	window := max(len(r1), len(r2))/2 - 1
	if window < 0 {
		window = 0
	}

	used1 := make([]bool, len(r1))
	used2 := make([]bool, len(r2))
	matches := 0
	for i, c := range r1 {
		lo := max(0, i-window)
		hi := min(len(r2), i+window+1)
		for k := lo; k < hi; k++ {
			if used2[k] || r2[k] != c {
				continue
			}
			used1[i], used2[k] = true, true
			matches++
			break
		}
	}
	if matches == 0 {
		return 0
	}

	transpositions := 0
	k := 0
	for i, c := range r1 {
		if !used1[i] {
			continue
		}
		for !used2[k] {
			k++
		}
		if c != r2[k] {
			transpositions++
		}
		k++
	}

	m := float64(matches)
	jaro := (m/float64(len(r1)) + m/float64(len(r2)) + (m-float64(transpositions)/2)/m) / 3
	if jaro <= winklerBoostThreshold {
		return jaro
	}

	prefix := 0
	for i := 0; i < min(winklerMaxPrefix, len(r1), len(r2)) && r1[i] == r2[i]; i++ {
		prefix++
	}
	return jaro + float64(prefix)*winklerPrefixScale*(1-jaro)
}
