// Package retention holds the age and budget rules that gate deletion.
package retention

import "time"

// DefaultMinSeedDays is used when a service does not configure minSeedDays.
const DefaultMinSeedDays = 30

const day = 24 * time.Hour

// IsEligibleByAge reports whether a torrent completed at completedAt has been
// seeding for at least minSeedDays at now. The boundary is inclusive. An
// unknown completion time is never eligible.
func IsEligibleByAge(completedAt *time.Time, minSeedDays int, now time.Time) bool {
	if completedAt == nil {
		return false
	}
	return now.Sub(*completedAt) >= time.Duration(minSeedDays)*day
}

// SeedingDays returns the fractional number of days since completion, or 0
// when the completion time is unknown.
func SeedingDays(completedAt *time.Time, now time.Time) float64 {
	if completedAt == nil {
		return 0
	}
	return now.Sub(*completedAt).Hours() / 24
}

// CheckBudget reports whether deleting selected out of total torrents stays
// within maxPercent. A nil maxPercent or an empty pool always passes.
func CheckBudget(selected, total int, maxPercent *float64) bool {
	if maxPercent == nil || total == 0 {
		return true
	}
	return DeletePercent(selected, total) <= *maxPercent
}

// DeletePercent returns selected/total as a percentage.
func DeletePercent(selected, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(selected) / float64(total) * 100
}
