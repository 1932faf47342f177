package icing

// Accumulate writes the running sum of src into dst. Missing addends are skipped by the
// running total and leave dst missing at their own position. With forwardFill set, those
// positions hold the last known total instead, so the total stays flat through a gap.
// Positions before the first valid addend are missing either way.
func Accumulate(points []Point, src, dst Field, forwardFill bool) {
	var (
		sum     float64
		started bool
	)

	for i := range points {
		v := *src(&points[i])
		if IsMissing(v) {
			if forwardFill && started {
				*dst(&points[i]) = sum
			} else {
				*dst(&points[i]) = missing()
			}
			continue
		}

		sum += v
		started = true
		*dst(&points[i]) = sum
	}
}
