package changes

import (
	"maps"
	"slices"
)

// DefaultThreshold is the similarity at which two descriptions are the same
// change.
const DefaultThreshold = 0.7

// Similarity is (maxLen - levenshtein(a, b)) / maxLen over runes. Two empty
// strings are identical.
func Similarity(a, b string) float64 {
	ar, br := []rune(a), []rune(b)
	maxLen := max(len(ar), len(br))
	if maxLen == 0 {
		return 1
	}
	return float64(maxLen-levenshtein(ar, br)) / float64(maxLen)
}

// Levenshtein returns the edit distance between a and b counted in runes.
func Levenshtein(a, b string) int {
	return levenshtein([]rune(a), []rune(b))
}

func levenshtein(a, b []rune) int {
	if len(a) == 0 {
		return len(b)
	}
	if len(b) == 0 {
		return len(a)
	}

	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(a); i++ {
		curr[0] = i
		for j := 1; j <= len(b); j++ {
			cost := 1
			if a[i-1] == b[j-1] {
				cost = 0
			}
			curr[j] = min(prev[j]+1, curr[j-1]+1, prev[j-1]+cost)
		}
		prev, curr = curr, prev
	}
	return prev[len(b)]
}

// Contains reports whether any entry is a near-duplicate of description,
// that is, at least threshold similar.
func Contains(entries []ChangeEntry, description string, threshold float64) bool {
	for _, e := range entries {
		if Similarity(e.Description, description) >= threshold {
			return true
		}
	}
	return false
}

// Merge combines two extraction passes. Primary entries are kept as they are
// and come first; a secondary entry is appended only when it is not a
// near-duplicate of an entry already in its category and the category holds
// fewer than limit entries. Secondary entries under an unknown category are
// merged into systems. Neither input is modified.
func Merge(primary, secondary CategorizedChanges, threshold float64, limit int) CategorizedChanges {
	merged := primary.Clone()
	for category, entries := range merged {
		if len(entries) > limit {
			merged[category] = entries[:limit]
		}
	}

	for _, category := range mergeOrder(secondary) {
		target := category
		if !target.Valid() {
			target = CategorySystems
		}
		for _, entry := range secondary[category] {
			if len(merged[target]) >= limit {
				break
			}
			if Contains(merged[target], entry.Description, threshold) {
				continue
			}
			merged[target] = append(merged[target], entry)
		}
	}

	return merged
}

// mergeOrder lists the known categories first, in priority order, then any
// unknown keys sorted so that merging stays deterministic.
func mergeOrder(c CategorizedChanges) []Category {
	order := slices.Clone(Categories)
	var unknown []Category
	for category := range maps.Keys(c) {
		if !category.Valid() {
			unknown = append(unknown, category)
		}
	}
	slices.Sort(unknown)
	return append(order, unknown...)
}
