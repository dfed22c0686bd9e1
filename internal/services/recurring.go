package services

import (
	"time"

	"myfinance/internal/core"
)

// BuildSeries expands one creation request into its dated occurrences. A
// request without a frequency yields a single row whose date still honours
// the weekend policy. Every requested occurrence is produced, even when
// several land on the same day.
func BuildSeries(ownerID string, in core.TransactionInput, now time.Time, newID func() string) []core.Transaction {
	policy := core.WeekendExact
	if in.RecurringWeekendPolicy != nil {
		policy = *in.RecurringWeekendPolicy
	}

	count := in.RecurringCount
	if count < 1 {
		count = 1
	}

	var (
		groupID   *string
		freq      core.FrequencyType
		dayAnchor = in.OccurredAt.Day()
	)
	if in.RecurringFrequency != nil {
		freq = *in.RecurringFrequency
		id := newID()
		groupID = &id
		if in.RecurringDayOfMonth != nil {
			dayAnchor = *in.RecurringDayOfMonth
		}
	} else {
		count = 1
	}

	rows := make([]core.Transaction, 0, count)
	for idx := 0; idx < count; idx++ {
		t := core.Transaction{
			ID:         newID(),
			OwnerID:    ownerID,
			AccountID:  in.AccountID,
			Direction:  in.Direction,
			Amount:     in.Amount,
			Currency:   in.Currency,
			OccurredAt: AdjustWeekend(in.OccurredAt, policy),
			Category:   copyString(in.Category),
			Note:       copyString(in.Note),
			CreatedAt:  now,
			UpdatedAt:  now,
		}
		if groupID != nil {
			t.OccurredAt = ShiftOccurrence(in.OccurredAt, freq, idx, dayAnchor, policy)
			t.RecurringGroupID = copyString(groupID)
			f := freq
			t.RecurringFrequency = &f
			index := idx + 1
			t.RecurringIndex = &index
			p := policy
			t.RecurringWeekendPolicy = &p
			if freq.AnchorsDay() {
				d := dayAnchor
				t.RecurringDayOfMonth = &d
			}
		}
		rows = append(rows, t)
	}
	return rows
}

func copyString(p *string) *string {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}
