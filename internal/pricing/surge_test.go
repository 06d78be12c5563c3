package pricing

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"hail/internal/domain"
	"hail/internal/tests"
)

// monday is 2025-06-02, a Monday.
func monday(hour, min int) time.Time {
	return time.Date(2025, 6, 2, hour, min, 0, 0, time.UTC)
}

func TestSurgeResolver_NoRulesDefaultsToOne(t *testing.T) {
	t.Parallel()

	resolver := NewSurgeResolver(tests.NewMockFareConfigRepository())

	m, err := resolver.Multiplier(context.Background(), 10, monday(9, 0))
	require.NoError(t, err)
	assert.Equal(t, 1.0, m)
}

func TestSurgeResolver_MatchingWindow(t *testing.T) {
	t.Parallel()

	config := tests.NewMockFareConfigRepository()
	config.SetSurgeRules(
		&domain.SurgeRule{
			ID:           "rush",
			DaysOfWeek:   []int{1, 2, 3, 4, 5},
			StartTime:    "08:00",
			EndTime:      "10:00",
			DistanceFrom: 0,
			DistanceTo:   100,
			Multiplier:   1.5,
			Active:       true,
		},
	)

	resolver := NewSurgeResolver(config)

	testCases := []struct {
		name     string
		at       time.Time
		expected float64
	}{
		{"inside window", monday(9, 0), 1.5},
		{"window start inclusive", monday(8, 0), 1.5},
		{"window end inclusive", monday(10, 0), 1.5},
		{"before window", monday(7, 59), 1.0},
		{"after window", monday(10, 1), 1.0},
		{"sunday excluded", time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC), 1.0},
	}

	for _, tc := range testCases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			m, err := resolver.Multiplier(context.Background(), 10, tc.at)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, m)
		})
	}
}

func TestSurgeResolver_HighestMultiplierWins(t *testing.T) {
	t.Parallel()

	config := tests.NewMockFareConfigRepository()
	config.SetSurgeRules(
		&domain.SurgeRule{
			ID: "mild", DaysOfWeek: []int{1}, StartTime: "00:00", EndTime: "23:59",
			DistanceFrom: 0, DistanceTo: 100, Multiplier: 1.2, Active: true,
		},
		&domain.SurgeRule{
			ID: "heavy", DaysOfWeek: []int{1}, StartTime: "08:00", EndTime: "10:00",
			DistanceFrom: 0, DistanceTo: 100, Multiplier: 2.0, Active: true,
		},
	)

	resolver := NewSurgeResolver(config)

	m, err := resolver.Multiplier(context.Background(), 10, monday(9, 0))
	require.NoError(t, err)
	assert.Equal(t, 2.0, m)

	// Outside the heavy window only the mild rule applies.
	m, err = resolver.Multiplier(context.Background(), 10, monday(14, 0))
	require.NoError(t, err)
	assert.Equal(t, 1.2, m)
}

func TestSurgeResolver_DistanceWindow(t *testing.T) {
	t.Parallel()

	config := tests.NewMockFareConfigRepository()
	config.SetSurgeRules(
		&domain.SurgeRule{
			ID: "long-trips", DaysOfWeek: []int{1}, StartTime: "00:00", EndTime: "23:59",
			DistanceFrom: 20, DistanceTo: 100, Multiplier: 1.3, Active: true,
		},
	)

	resolver := NewSurgeResolver(config)

	m, err := resolver.Multiplier(context.Background(), 10, monday(9, 0))
	require.NoError(t, err)
	assert.Equal(t, 1.0, m)

	m, err = resolver.Multiplier(context.Background(), 25, monday(9, 0))
	require.NoError(t, err)
	assert.Equal(t, 1.3, m)
}

func TestSurgeResolver_InactiveRuleIgnored(t *testing.T) {
	t.Parallel()

	config := tests.NewMockFareConfigRepository()
	config.SetSurgeRules(
		&domain.SurgeRule{
			ID: "off", DaysOfWeek: []int{0, 1, 2, 3, 4, 5, 6}, StartTime: "00:00", EndTime: "23:59",
			DistanceFrom: 0, DistanceTo: 100, Multiplier: 3.0, Active: false,
		},
	)

	resolver := NewSurgeResolver(config)

	m, err := resolver.Multiplier(context.Background(), 10, monday(9, 0))
	require.NoError(t, err)
	assert.Equal(t, 1.0, m)
}
