package highlight

import "sort"

// reorder sorts candidates by personalized score (then raw quality, then pool position)
// and then runs the quality gap guard. It returns the new order and how many positions
// changed.
func reorder(cands []candidate, gap float64) ([]candidate, int) {
	if len(cands) == 0 {
		return cands, 0
	}
	ordered := append([]candidate(nil), cands...)
	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.personalized != b.personalized {
			return a.personalized > b.personalized
		}
		if a.raw() != b.raw() {
			return a.raw() > b.raw()
		}
		return a.index < b.index
	})
	gapGuard(ordered, gap)

	moved := 0
	for i := range cands {
		if cands[i].index != ordered[i].index {
			moved++
		}
	}
	return ordered, moved
}

// gapGuard swaps adjacent items whenever the later one's raw quality beats the earlier
// one's by more than gap, repeating full passes until a pass swaps nothing. Afterwards no
// adjacent pair violates the gap. Each swap removes at least one violating pair, so the
// loop terminates.
func gapGuard(ordered []candidate, gap float64) {
	if gap <= 0 {
		return
	}
	for swapped := true; swapped; {
		swapped = false
		for i := 1; i < len(ordered); i++ {
			if ordered[i].raw()-ordered[i-1].raw() > gap {
				ordered[i-1], ordered[i] = ordered[i], ordered[i-1]
				swapped = true
			}
		}
	}
}
