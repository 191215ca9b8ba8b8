package core

// SentimentCounts tallies communications per sentiment.
type SentimentCounts struct {
	Positive int `json:"positive"`
	Neutral  int `json:"neutral"`
	Negative int `json:"negative"`
}

// Get returns the count for s.
func (c SentimentCounts) Get(s Sentiment) int {
	switch s.Normalize() {
	case Positive:
		return c.Positive
	case Negative:
		return c.Negative
	default:
		return c.Neutral
	}
}

// SummaryAggregate is derived from store contents on every read and never stored.
type SummaryAggregate struct {
	IntentCounts         map[Category]int `json:"intentCounts"`
	SentimentCounts      SentimentCounts  `json:"sentimentCounts"`
	TotalIntents         int              `json:"totalIntents"`
	TotalInsights        int              `json:"totalInsights"`
	HighPriorityInsights int              `json:"highPriorityInsights"`
	// Uncategorized counts detected intents that matched no category. They are
	// kept out of IntentCounts.
	Uncategorized int `json:"uncategorized"`
}

// Count returns the number of detected intents mapped to c.
func (s SummaryAggregate) Count(c Category) int {
	return s.IntentCounts[c]
}

// Summarize projects communications and insights into a SummaryAggregate.
// It is pure: the inputs are only read.
func Summarize(comms []Communication, insights []Insight) SummaryAggregate {
	agg := SummaryAggregate{
		IntentCounts:  make(map[Category]int, len(Categories)),
		TotalIntents:  len(comms),
		TotalInsights: len(insights),
	}
	for _, c := range Categories {
		agg.IntentCounts[c] = 0
	}

	for _, comm := range comms {
		for _, di := range comm.FinancialIntents.DetectedIntents {
			if cat, ok := di.ResolveCategory(); ok {
				agg.IntentCounts[cat]++
			} else {
				agg.Uncategorized++
			}
		}

		switch comm.Sentiment() {
		case Positive:
			agg.SentimentCounts.Positive++
		case Negative:
			agg.SentimentCounts.Negative++
		default:
			agg.SentimentCounts.Neutral++
		}
	}

	for _, i := range insights {
		if i.IsHigh() {
			agg.HighPriorityInsights++
		}
	}
	return agg
}
