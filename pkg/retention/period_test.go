package retention

import (
	"testing"
	"time"
)

func TestRetentionPeriod_Duration(t *testing.T) {
	tests := []struct {
		name   string
		period RetentionPeriod
		want   time.Duration
	}{
		{"one day", RetentionPeriod{Value: 1, Unit: UnitDays}, 86400000 * time.Millisecond},
		{"30 days", RetentionPeriod{Value: 30, Unit: UnitDays}, 30 * 24 * time.Hour},
		{"one month is 30 days", RetentionPeriod{Value: 1, Unit: UnitMonths}, 30 * 24 * time.Hour},
		{"one year is 365 days", RetentionPeriod{Value: 1, Unit: UnitYears}, 365 * 24 * time.Hour},
		{"seven years", RetentionPeriod{Value: 7, Unit: UnitYears}, 7 * 365 * 24 * time.Hour},
		{"unknown unit", RetentionPeriod{Value: 3, Unit: "weeks"}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.period.Duration(); got != tt.want {
				t.Errorf("Duration() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeCutoffDate(t *testing.T) {
	now := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name   string
		period RetentionPeriod
		want   time.Time
	}{
		{
			name:   "30 days",
			period: RetentionPeriod{Value: 30, Unit: UnitDays},
			want:   time.Date(2024, 1, 31, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "2 months approximated as 60 days",
			period: RetentionPeriod{Value: 2, Unit: UnitMonths},
			want:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
		},
		{
			name:   "1 year across a leap day is 365 days",
			period: RetentionPeriod{Value: 1, Unit: UnitYears},
			want:   time.Date(2023, 3, 2, 0, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := &Policy{RetentionPeriod: tt.period}
			got := ComputeCutoffDate(p, now)
			if !got.Equal(tt.want) {
				t.Errorf("ComputeCutoffDate() = %v, want %v", got, tt.want)
			}
		})
	}
}
