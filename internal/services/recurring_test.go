package services

import (
	"fmt"
	"testing"
	"time"

	"myfinance/internal/core"
)

func sequentialIDs() func() string {
	n := 0
	return func() string {
		n++
		return fmt.Sprintf("id-%d", n)
	}
}

func TestBuildSeries(t *testing.T) {
	now := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	sat := date(2026, time.January, 31)

	tests := []struct {
		name      string
		in        core.TransactionInput
		wantDates []time.Time
		wantGroup bool
		wantDay   *int
	}{
		{
			name:      "single occurrence keeps date",
			in:        core.TransactionInput{OccurredAt: sat, RecurringCount: 1},
			wantDates: []time.Time{sat},
		},
		{
			name:      "single occurrence honours weekend policy",
			in:        core.TransactionInput{OccurredAt: sat, RecurringCount: 1, RecurringWeekendPolicy: ptr(core.WeekendFriday)},
			wantDates: []time.Time{date(2026, time.January, 30)},
		},
		{
			name: "weekly series",
			in: core.TransactionInput{
				OccurredAt: date(2026, time.March, 2), RecurringCount: 3, RecurringFrequency: ptr(core.Weekly),
			},
			wantDates: []time.Time{date(2026, time.March, 2), date(2026, time.March, 9), date(2026, time.March, 16)},
			wantGroup: true,
		},
		{
			name: "none frequency repeats the same day",
			in: core.TransactionInput{
				OccurredAt: date(2026, time.March, 2), RecurringCount: 2, RecurringFrequency: ptr(core.FrequencyNone),
			},
			wantDates: []time.Time{date(2026, time.March, 2), date(2026, time.March, 2)},
			wantGroup: true,
		},
		{
			name: "monthly with explicit day anchor",
			in: core.TransactionInput{
				OccurredAt: date(2026, time.January, 15), RecurringCount: 3, RecurringFrequency: ptr(core.Monthly),
				RecurringDayOfMonth: ptr(30), RecurringWeekendPolicy: ptr(core.WeekendThursday),
			},
			// The anchor day applies from the first occurrence; Feb clamps to
			// Saturday the 28th and rolls back to Thursday.
			wantDates: []time.Time{date(2026, time.January, 30), date(2026, time.February, 26), date(2026, time.March, 30)},
			wantGroup: true,
			wantDay:   ptr(30),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rows := BuildSeries("alice", tt.in, now, sequentialIDs())
			if len(rows) != len(tt.wantDates) {
				t.Fatalf("len(rows) = %d, want %d", len(rows), len(tt.wantDates))
			}
			for i, row := range rows {
				if !row.OccurredAt.Equal(tt.wantDates[i]) {
					t.Errorf("row %d date = %v, want %v", i, row.OccurredAt, tt.wantDates[i])
				}
				if row.OwnerID != "alice" || !row.CreatedAt.Equal(now) {
					t.Errorf("row %d owner/created = %s/%v", i, row.OwnerID, row.CreatedAt)
				}
				if (row.RecurringGroupID != nil) != tt.wantGroup {
					t.Fatalf("row %d group = %v, want group %v", i, row.RecurringGroupID, tt.wantGroup)
				}
				if !tt.wantGroup {
					if row.RecurringIndex != nil || row.RecurringFrequency != nil {
						t.Errorf("row %d carries recurring fields", i)
					}
					continue
				}
				if *row.RecurringGroupID != *rows[0].RecurringGroupID {
					t.Errorf("row %d group differs", i)
				}
				if *row.RecurringIndex != i+1 {
					t.Errorf("row %d index = %d", i, *row.RecurringIndex)
				}
				switch {
				case tt.wantDay == nil && row.RecurringDayOfMonth != nil:
					t.Errorf("row %d day anchor = %d, want none", i, *row.RecurringDayOfMonth)
				case tt.wantDay != nil && (row.RecurringDayOfMonth == nil || *row.RecurringDayOfMonth != *tt.wantDay):
					t.Errorf("row %d day anchor = %v, want %d", i, row.RecurringDayOfMonth, *tt.wantDay)
				}
			}
		})
	}
}

func TestBuildSeriesUniqueIDs(t *testing.T) {
	in := core.TransactionInput{
		OccurredAt: date(2026, time.March, 2), RecurringCount: core.MaxRecurringCount, RecurringFrequency: ptr(core.Daily),
	}
	rows := BuildSeries("alice", in, time.Now(), sequentialIDs())
	if len(rows) != core.MaxRecurringCount {
		t.Fatalf("len(rows) = %d", len(rows))
	}
	seen := make(map[string]bool)
	for i, row := range rows {
		if seen[row.ID] {
			t.Fatalf("duplicate id %s", row.ID)
		}
		seen[row.ID] = true
		if i > 0 && row.OccurredAt.Before(rows[i-1].OccurredAt) {
			t.Fatalf("row %d goes back in time", i)
		}
	}
}
