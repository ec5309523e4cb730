package aggregate

import "strings"

// titleSimilarityThreshold matches the dedup cutoff used for
// near-identical titles published on the same day.
const titleSimilarityThreshold = 0.95

// similarity is the Ratcliff-Obershelp ratio in [0,1]: twice the total
// matched characters over the combined length, matching blocks found by
// recursing around the longest common substring.
func similarity(a, b string) float64 {
	ar := []rune(strings.ToLower(a))
	br := []rune(strings.ToLower(b))
	if len(ar) == 0 && len(br) == 0 {
		return 1
	}
	if len(ar) == 0 || len(br) == 0 {
		return 0
	}
	m := matchedRunes(ar, br)
	return 2 * float64(m) / float64(len(ar)+len(br))
}

func matchedRunes(a, b []rune) int {
	ai, bi, size := longestCommonRun(a, b)
	if size == 0 {
		return 0
	}
	total := size
	total += matchedRunes(a[:ai], b[:bi])
	total += matchedRunes(a[ai+size:], b[bi+size:])
	return total
}

// longestCommonRun finds the longest common substring of a and b,
// returning its start in each and its length.
func longestCommonRun(a, b []rune) (ai, bi, size int) {
	// prev[j] = length of common suffix of a[:i] and b[:j]
	prev := make([]int, len(b)+1)
	cur := make([]int, len(b)+1)

	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				cur[j] = prev[j-1] + 1
				if cur[j] > size {
					size = cur[j]
					ai = i - size
					bi = j - size
				}
			} else {
				cur[j] = 0
			}
		}
		prev, cur = cur, prev
	}
	return ai, bi, size
}
