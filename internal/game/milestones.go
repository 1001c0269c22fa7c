package game

// powerMilestones returns every value v = base^p (integer p >= 0) with
// old < v <= new and v >= minimum, ascending. Crossing such a value is a
// one-time milestone; callers pass the counter value before and after an
// update and get back the thresholds that update crossed.
func powerMilestones(old, new float64, base int64, minimum int64) []int64 {
	var milestones []int64
	if new <= old {
		return milestones
	}

	v := int64(1)
	for float64(v) <= old {
		v *= base
	}
	for float64(v) <= new {
		if v >= minimum {
			milestones = append(milestones, v)
		}
		v *= base
	}
	return milestones
}
