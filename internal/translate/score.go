package translate

import "strings"

// compactReplacer strips the characters matchScore ignores: whitespace and
// sentence punctuation, including the full-width comma common in CJK text.
var compactReplacer = strings.NewReplacer(
	" ", "",
	"\n", "",
	"\t", "",
	",", "",
	"，", "",
	".", "",
)

// MatchScore computes a character-level similarity ratio in [0, 1] between
// two strings, ignoring case, spacing, and cosmetic punctuation. 1.0 means
// the strings are equivalent modulo those differences.
func MatchScore(a, b string) float64 {
	ra := []rune(strings.ToLower(compactReplacer.Replace(a)))
	rb := []rune(strings.ToLower(compactReplacer.Replace(b)))
	total := len(ra) + len(rb)
	if total == 0 {
		return 1.0
	}
	return 2 * float64(matchingRunes(ra, rb)) / float64(total)
}

// matchingRunes sums the sizes of the matching blocks found by repeatedly
// taking the longest common substring and recursing on both sides of it.
func matchingRunes(a, b []rune) int {
	ai, bj, size := longestMatch(a, b)
	if size == 0 {
		return 0
	}
	return size + matchingRunes(a[:ai], b[:bj]) + matchingRunes(a[ai+size:], b[bj+size:])
}

// longestMatch finds the longest common substring of a and b, returning its
// start in a, start in b, and length.
func longestMatch(a, b []rune) (int, int, int) {
	bestI, bestJ, best := 0, 0, 0
	prev := make(map[int]int)
	for i := range a {
		cur := make(map[int]int)
		for j := range b {
			if a[i] != b[j] {
				continue
			}
			k := prev[j-1] + 1
			cur[j] = k
			if k > best {
				bestI, bestJ, best = i-k+1, j-k+1, k
			}
		}
		prev = cur
	}
	return bestI, bestJ, best
}
