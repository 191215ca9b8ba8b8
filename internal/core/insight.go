package core

import (
	"fmt"
	"strings"
	"time"

	gonanoid "github.com/matoous/go-nanoid/v2"
)

type (
	InsightCategory string
	Priority        string
)

const (
	InsightAlert      InsightCategory = "alert"
	InsightSuggestion InsightCategory = "suggestion"
	InsightForecast   InsightCategory = "forecast"
)

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

const insightIDAlphabet = "0123456789abcdefghijklmnopqrstuvwxyz"

// RelatedCommunication points an insight back at its source communication.
type RelatedCommunication struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// Insight is a user-facing alert, suggestion or forecast derived from a
// communication. Exactly one of the source records is set, matching Category.
type Insight struct {
	ID                   string               `json:"id"`
	Category             InsightCategory      `json:"category"`
	Title                string               `json:"title"`
	Description          string               `json:"description"`
	Priority             Priority             `json:"priority"`
	RelatedCommunication RelatedCommunication `json:"relatedCommunication"`
	CreatedAt            time.Time            `json:"createdAt"`

	Alert      *Alert         `json:"alert,omitempty"`
	Suggestion *Suggestion    `json:"suggestion,omitempty"`
	Forecast   *RevenueAction `json:"forecast,omitempty"`
}

// ParsePriority lower-cases p; empty or unknown values are medium.
func ParsePriority(p string) Priority {
	switch Priority(strings.ToLower(strings.TrimSpace(p))) {
	case PriorityLow:
		return PriorityLow
	case PriorityHigh:
		return PriorityHigh
	default:
		return PriorityMedium
	}
}

// IsHigh reports whether the insight belongs in the high-priority feed.
func (i Insight) IsHigh() bool {
	return i.Priority == PriorityHigh
}

// BadgeLabel is the upper-cased category shown next to the title.
func (i Insight) BadgeLabel() string {
	return strings.ToUpper(string(i.Category))
}

// NewInsightID returns a short random id. Ids are independent of each other
// and collisions, while unlikely, are tolerated.
func NewInsightID() string {
	id, err := gonanoid.Generate(insightIDAlphabet, 8)
	if err != nil {
		return fmt.Sprintf("%x", time.Now().UnixNano())
	}
	return id
}

// DeriveInsights builds one insight per alert, suggestion and revenue action of
// comm, in that order. Every insight references comm.ID.
func DeriveInsights(comm Communication, newID func() string) []Insight {
	if newID == nil {
		newID = NewInsightID
	}
	related := RelatedCommunication{ID: comm.ID, Text: comm.Text}
	fi := comm.FinancialIntents
	out := make([]Insight, 0, len(fi.Alerts)+len(fi.Suggestions)+len(fi.RevenueActions))

	for _, a := range fi.Alerts {
		a := a
		out = append(out, Insight{
			ID:                   newID(),
			Category:             InsightAlert,
			Title:                a.Message,
			Description:          a.Impact,
			Priority:             ParsePriority(a.Severity),
			RelatedCommunication: related,
			CreatedAt:            comm.Timestamp,
			Alert:                &a,
		})
	}
	for _, s := range fi.Suggestions {
		s := s
		out = append(out, Insight{
			ID:                   newID(),
			Category:             InsightSuggestion,
			Title:                s.Message,
			Description:          s.Benefit,
			Priority:             ParsePriority(s.Priority),
			RelatedCommunication: related,
			CreatedAt:            comm.Timestamp,
			Suggestion:           &s,
		})
	}
	for _, f := range fi.RevenueActions {
		f := f
		title := f.Type
		if title == "" {
			title = "Forecast"
		}
		out = append(out, Insight{
			ID:                   newID(),
			Category:             InsightForecast,
			Title:                title,
			Description:          f.Description,
			Priority:             PriorityMedium,
			RelatedCommunication: related,
			CreatedAt:            comm.Timestamp,
			Forecast:             &f,
		})
	}
	return out
}

// HighPriority filters insights down to the high-priority feed, keeping order.
func HighPriority(insights []Insight) []Insight {
	var out []Insight
	for _, i := range insights {
		if i.IsHigh() {
			out = append(out, i)
		}
	}
	return out
}
