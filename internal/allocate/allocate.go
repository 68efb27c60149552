// Package allocate distributes a card budget across book sections.
package allocate

// ConceptRatio is the default share of a section's cards that are concept
// cards; the rest are example cards.
const ConceptRatio = 0.7

// Allocate returns floor(total*length/sum) for each section. Rounding
// truncates and the remainder is not redistributed, so the result may sum
// to less than total by at most len(lengths).
func Allocate(lengths []int, total int) []int {
	out := make([]int, len(lengths))
	sum := 0
	for _, l := range lengths {
		sum += l
	}
	if sum <= 0 || total <= 0 {
		return out
	}
	for i, l := range lengths {
		out[i] = int(int64(total) * int64(l) / int64(sum))
	}
	return out
}

// Lengths returns the byte length of every segment.
func Lengths(segments []string) []int {
	out := make([]int, len(segments))
	for i, s := range segments {
		out[i] = len(s)
	}
	return out
}

// Split divides a section budget into concept and example counts. The
// concept count truncates; examples take the remainder, never negative.
func Split(n int, ratio float64) (concept, example int) {
	if n <= 0 {
		return 0, 0
	}
	concept = int(float64(n) * ratio)
	if concept > n {
		concept = n
	}
	if concept < 0 {
		concept = 0
	}
	example = max(n-concept, 0)
	return concept, example
}

// Budget is the card budget of one section.
type Budget struct {
	Total    int
	Concepts int
	Examples int
}

// Plan allocates total across segments and splits each share at ratio.
func Plan(segments []string, total int, ratio float64) []Budget {
	counts := Allocate(Lengths(segments), total)
	out := make([]Budget, len(counts))
	for i, n := range counts {
		c, e := Split(n, ratio)
		out[i] = Budget{Total: n, Concepts: c, Examples: e}
	}
	return out
}
