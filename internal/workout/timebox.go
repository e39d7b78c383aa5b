package workout

// AvgSecondsPerSet is the working-set pace (work plus rest) used for budgets.
const AvgSecondsPerSet = 90

// EstimateSets returns a rough set count given duration and average per-set time.
func EstimateSets(durationMinutes int, avgSecondsPerSet int) int {
	if avgSecondsPerSet <= 0 {
		avgSecondsPerSet = AvgSecondsPerSet
	}
	if durationMinutes <= 0 {
		return 0
	}
	return durationMinutes * 60 / avgSecondsPerSet
}

// MainSetBudget is the number of working sets that fit the main block once
// roughly a fifth of the session is spent on warmup and cooldown.
func MainSetBudget(durationMinutes int) int {
	main := durationMinutes - durationMinutes/5
	n := EstimateSets(main, AvgSecondsPerSet)
	if n < 1 && durationMinutes > 0 {
		n = 1
	}
	return n
}
