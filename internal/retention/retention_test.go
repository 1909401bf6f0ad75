package retention

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func ptr[T any](v T) *T {
	return &v
}

func TestIsEligibleByAge(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name        string
		completedAt *time.Time
		minSeedDays int
		want        bool
	}{
		{name: "unknown completion", completedAt: nil, minSeedDays: 0, want: false},
		{name: "exact boundary", completedAt: ptr(now.Add(-30 * 24 * time.Hour)), minSeedDays: 30, want: true},
		{name: "one second short", completedAt: ptr(now.Add(-30*24*time.Hour + time.Second)), minSeedDays: 30, want: false},
		{name: "well past", completedAt: ptr(now.Add(-40 * 24 * time.Hour)), minSeedDays: 30, want: true},
		{name: "recent", completedAt: ptr(now.Add(-5 * 24 * time.Hour)), minSeedDays: 30, want: false},
		{name: "zero days", completedAt: ptr(now), minSeedDays: 0, want: true},
		{name: "completed in the future", completedAt: ptr(now.Add(time.Hour)), minSeedDays: 0, want: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, IsEligibleByAge(tt.completedAt, tt.minSeedDays, now))
		})
	}
}

func TestIsEligibleByAge_NilIgnoresNow(t *testing.T) {
	for _, now := range []time.Time{{}, time.Now(), time.Now().Add(100 * 365 * 24 * time.Hour)} {
		assert.False(t, IsEligibleByAge(nil, 0, now))
		assert.False(t, IsEligibleByAge(nil, DefaultMinSeedDays, now))
	}
}

func TestSeedingDays(t *testing.T) {
	now := time.Now()
	assert.Zero(t, SeedingDays(nil, now))
	assert.InDelta(t, 2.5, SeedingDays(ptr(now.Add(-60*time.Hour)), now), 0.0001)
}

func TestCheckBudget(t *testing.T) {
	tests := []struct {
		name       string
		selected   int
		total      int
		maxPercent *float64
		want       bool
	}{
		{name: "over budget", selected: 5, total: 10, maxPercent: ptr(40.0), want: false},
		{name: "at budget", selected: 4, total: 10, maxPercent: ptr(40.0), want: true},
		{name: "empty pool", selected: 0, total: 0, maxPercent: ptr(40.0), want: true},
		{name: "unconfigured", selected: 10, total: 10, maxPercent: nil, want: true},
		{name: "zero percent allows nothing", selected: 1, total: 10, maxPercent: ptr(0.0), want: false},
		{name: "zero percent with no candidates", selected: 0, total: 10, maxPercent: ptr(0.0), want: true},
		{name: "three of four over half", selected: 3, total: 4, maxPercent: ptr(50.0), want: false},
		{name: "three of four under eighty", selected: 3, total: 4, maxPercent: ptr(80.0), want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CheckBudget(tt.selected, tt.total, tt.maxPercent))
		})
	}
}

func TestDeletePercent(t *testing.T) {
	assert.Equal(t, 75.0, DeletePercent(3, 4))
	assert.Zero(t, DeletePercent(0, 0))
}
