// Package runs implements run-list resolution: combining the runs
// present in a dataset with the runs certified as good.
package runs

import "sort"

// Combine merges the run numbers reported by the dataset catalog with
// the certified run numbers. When both sources are non-empty the result
// is their intersection; otherwise it is their union, so an absent or
// empty source does not erase the other. The result is sorted ascending.
func Combine(catalog, certified []int) []int {
	catalogSet := toSet(catalog)
	certifiedSet := toSet(certified)

	var combined map[int]bool
	if len(catalogSet) > 0 && len(certifiedSet) > 0 {
		combined = make(map[int]bool)
		for run := range catalogSet {
			if certifiedSet[run] {
				combined[run] = true
			}
		}
	} else {
		combined = catalogSet
		for run := range certifiedSet {
			combined[run] = true
		}
	}

	result := make([]int, 0, len(combined))
	for run := range combined {
		result = append(result, run)
	}
	sort.Ints(result)
	return result
}

func toSet(runs []int) map[int]bool {
	set := make(map[int]bool, len(runs))
	for _, run := range runs {
		set[run] = true
	}
	return set
}
