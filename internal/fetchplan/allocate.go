package fetchplan

import "math"

// Budget holds the knobs of one allocation.
type Budget struct {
	Total            int
	MinPerSource     int
	ExplorationRatio float64
}

// DefaultBudget is the stock fetch budget.
var DefaultBudget = Budget{Total: 60, MinPerSource: 3, ExplorationRatio: 0.15}

// Allocation is the per-source item quota plus exploration diagnostics.
type Allocation struct {
	Limits               map[string]int `json:"limits"`
	Allocated            int            `json:"allocated"`
	ExplorationTarget    int            `json:"exploration_target"`
	ExplorationAllocated int            `json:"exploration_allocated"`
	ExplorationShortfall int            `json:"exploration_shortfall"`
	Transfers            int            `json:"transfers"`
}

// Allocate spreads budget.Total over the prioritized sources.
//
// Every source first receives the floor (or, when the budget cannot cover a floor for
// everyone, a single slot in priority order). Allocations are clipped to caps, the rest
// of the budget is handed out in proportion to the remaining room of each source, and a
// final sweep in priority order mops up what integer truncation left behind.
//
// When preferred sources exist and ExplorationRatio > 0, single units move from the
// lowest-priority preferred source to exploratory sources (round-robin, priority order)
// until round(Total*ratio) units sit outside the preferred set. Donors never drop below
// max(1, MinPerSource). An unmet target is reported as ExplorationShortfall.
//
// Sources missing from caps are uncapped; negative caps count as zero.
func Allocate(ranked []Ranked, caps map[string]int, budget Budget, preferred map[string]bool) Allocation {
	n := len(ranked)
	out := Allocation{Limits: make(map[string]int, n)}
	total := max(0, budget.Total)
	floor := max(0, budget.MinPerSource)

	alloc := make([]int, n)
	capOf := make([]int, n)
	for i, r := range ranked {
		c, ok := caps[r.Source.ID]
		if !ok {
			c = total
		}
		capOf[i] = max(0, c)
	}

	if n > 0 && total > 0 {
		if total >= n*floor {
			for i := range alloc {
				alloc[i] = floor
			}
		} else {
			for i := 0; i < min(total, n); i++ {
				alloc[i] = 1
			}
		}

		remaining := total
		for i := range alloc {
			alloc[i] = min(alloc[i], capOf[i])
			remaining -= alloc[i]
		}

		if remaining > 0 {
			totalRoom := 0
			for i := range alloc {
				totalRoom += capOf[i] - alloc[i]
			}
			if totalRoom > 0 {
				pool := remaining
				for i := range alloc {
					add := min(pool*(capOf[i]-alloc[i])/totalRoom, capOf[i]-alloc[i])
					alloc[i] += add
					remaining -= add
				}
			}
			for i := range alloc {
				if remaining <= 0 {
					break
				}
				take := min(capOf[i]-alloc[i], remaining)
				alloc[i] += take
				remaining -= take
			}
		}

		explore(ranked, alloc, capOf, total, floor, budget.ExplorationRatio, preferred, &out)
	}

	for i, r := range ranked {
		out.Limits[r.Source.ID] = alloc[i]
		out.Allocated += alloc[i]
	}
	return out
}

func explore(ranked []Ranked, alloc, capOf []int, total, floor int, ratio float64, preferred map[string]bool, out *Allocation) {
	ratio = min(1, max(0, ratio))
	if ratio == 0 || len(preferred) == 0 {
		return
	}

	var explorers []int
	current := 0
	for i, r := range ranked {
		if !preferred[r.Source.ID] {
			explorers = append(explorers, i)
			current += alloc[i]
		}
	}

	target := int(math.Round(float64(total) * ratio))
	keep := max(1, floor)
	cursor := 0
	for current < target && len(explorers) > 0 {
		donor := -1
		for i := len(ranked) - 1; i >= 0; i-- {
			if preferred[ranked[i].Source.ID] && alloc[i] > keep {
				donor = i
				break
			}
		}
		if donor < 0 {
			break
		}

		recipient := -1
		for k := range explorers {
			j := explorers[(cursor+k)%len(explorers)]
			if alloc[j] < capOf[j] {
				recipient = j
				cursor = (cursor + k + 1) % len(explorers)
				break
			}
		}
		if recipient < 0 {
			break
		}

		alloc[donor]--
		alloc[recipient]++
		current++
		out.Transfers++
	}

	out.ExplorationTarget = target
	out.ExplorationAllocated = current
	out.ExplorationShortfall = max(0, target-current)
}
