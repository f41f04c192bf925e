package run

// SetMaxDiff returns an UpdateSetter that records the largest difference seen.
func SetMaxDiff(diff float64) UpdateSetter {
	return func(r *Run) error {
		r.MaxDiff = diff
		return nil
	}
}
