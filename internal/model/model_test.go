package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDaysRemaining(t *testing.T) {
	now := time.Date(2024, 2, 10, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		deletedAt time.Time
		want      int
	}{
		{"just deleted", now, 7},
		{"partial day floors", now.Add(-23 * time.Hour), 7},
		{"one day", now.Add(-24 * time.Hour), 6},
		{"six and a half days", now.Add(-156 * time.Hour), 1},
		{"at cutoff", now.AddDate(0, 0, -7), 0},
		{"long expired clamps", now.AddDate(0, 0, -30), 0},
		{"clock skew", now.Add(time.Hour), 7},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, DaysRemaining(tt.deletedAt, now, 7))
		})
	}
}

func TestParseHeldKind(t *testing.T) {
	k, err := ParseHeldKind("month_config_removed")
	require.NoError(t, err)
	assert.Equal(t, KindMonthConfigRemoved, k)

	_, err = ParseHeldKind("invoice")
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestFinanceSettings_EnabledMonths(t *testing.T) {
	s := FinanceSettings{
		Years:          []int{2024},
		DisabledMonths: map[string][]int{"2024": {1, 2}},
	}

	assert.True(t, s.HasYear(2024))
	assert.False(t, s.HasYear(2023))
	assert.False(t, s.MonthEnabled(2024, 1))
	assert.True(t, s.MonthEnabled(2025, 1))
	assert.Equal(t, []int{3, 4, 5, 6, 7, 8, 9, 10, 11, 12}, s.EnabledMonths(2024))
}

func TestPayment_Label(t *testing.T) {
	assert.Equal(t, "Jan Dues — Rahim", Payment{Month: 1, MemberName: "Rahim"}.Label())
	assert.Equal(t, "Dues — Rahim", Payment{MemberName: "Rahim"}.Label())
}

func TestNewPageMeta(t *testing.T) {
	tests := []struct {
		name               string
		page, limit, total int
		want               Meta
	}{
		{"empty", 1, 10, 0, Meta{Page: 1, Limit: 10}},
		{"single page", 1, 10, 7, Meta{Page: 1, Limit: 10, Total: 7, TotalPages: 1}},
		{"more pages", 1, 10, 25, Meta{Page: 1, Limit: 10, Total: 25, TotalPages: 3, HasMore: true}},
		{"last page", 3, 10, 25, Meta{Page: 3, Limit: 10, Total: 25, TotalPages: 3}},
		{"zero limit", 1, 0, 5, Meta{Page: 1, Total: 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NewPageMeta(tt.page, tt.limit, tt.total))
		})
	}
}
