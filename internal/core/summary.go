package core

// CategoryStat is the usage count of one category label.
type CategoryStat struct {
	Category   string `json:"category"`
	UsageCount int    `json:"usageCount"`
}

// CategoryStats is the derived per-owner category view.
type CategoryStats struct {
	MostUsedCategory *string        `json:"mostUsedCategory"`
	Categories       []CategoryStat `json:"categories"`
}

// Usage returns the count for label, zero when absent.
func (s CategoryStats) Usage(label string) int {
	for _, c := range s.Categories {
		if c.Category == label {
			return c.UsageCount
		}
	}
	return 0
}
