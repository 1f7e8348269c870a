package cache

import "time"

// IsFresh reports whether a snapshot modified at modifiedAt is younger than
// maxAgeHours as of now. A non-positive maxAgeHours is never fresh.
func IsFresh(modifiedAt, now time.Time, maxAgeHours float64) bool {
	if maxAgeHours <= 0 {
		return false
	}
	return AgeHours(modifiedAt, now) < maxAgeHours
}

// AgeHours returns the age of modifiedAt in fractional hours.
func AgeHours(modifiedAt, now time.Time) float64 {
	return now.Sub(modifiedAt).Hours()
}
