package core

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"
)

// MaxTextLength bounds the free text accepted for analysis.
const MaxTextLength = 10000

type (
	// DetectedIntent is one financial intent found in a communication.
	// Category is only set when the analysis service returns a closed value.
	DetectedIntent struct {
		Description  string  `json:"description"`
		Category     string  `json:"category,omitempty"`
		UrgencyLevel string  `json:"urgency_level,omitempty"`
		UrgencyScore float64 `json:"urgency_score,omitempty"`
		Timeline     string  `json:"timeline,omitempty"`
		Impact       string  `json:"impact,omitempty"`
	}

	Alert struct {
		Message        string `json:"message"`
		Severity       string `json:"severity,omitempty"`
		Impact         string `json:"impact,omitempty"`
		Recommendation string `json:"recommendation,omitempty"`
	}

	Suggestion struct {
		Message        string `json:"message"`
		Benefit        string `json:"benefit,omitempty"`
		Implementation string `json:"implementation,omitempty"`
		Priority       string `json:"priority,omitempty"`
	}

	RevenueAction struct {
		Type        string `json:"type,omitempty"`
		Target      string `json:"target,omitempty"`
		Timeline    string `json:"timeline,omitempty"`
		Description string `json:"description,omitempty"`
	}

	Expenditure struct {
		Type        string `json:"type,omitempty"`
		Amount      string `json:"amount,omitempty"`
		Timeline    string `json:"timeline,omitempty"`
		Description string `json:"description,omitempty"`
	}

	// FinancialIntents is the structured extraction returned by the analysis service.
	FinancialIntents struct {
		DetectedIntents []DetectedIntent `json:"detected_intents"`
		ConfidenceScore float64          `json:"confidence_score,omitempty"`
		RelevantDetails string           `json:"relevant_details,omitempty"`
		FinancialTopics []string         `json:"financial_topics,omitempty"`
		ActionItems     []string         `json:"action_items,omitempty"`
		Expenditures    []Expenditure    `json:"expenditures,omitempty"`
		RevenueActions  []RevenueAction  `json:"revenue_actions"`
		Alerts          []Alert          `json:"alerts"`
		Suggestions     []Suggestion     `json:"suggestions"`
	}

	UrgencyAnalysis struct {
		Sentiment       Sentiment `json:"sentiment"`
		UrgencyLevel    string    `json:"urgency_level,omitempty"`
		ConfidenceScore float64   `json:"confidence_score,omitempty"`
		KeyIndicators   []string  `json:"key_indicators,omitempty"`
	}

	// Communication is one unit of submitted text plus its analysis result.
	// It is never modified after it has been accepted by a store.
	Communication struct {
		ID               string           `json:"id"`
		Text             string           `json:"text"`
		Timestamp        time.Time        `json:"timestamp"`
		FinancialIntents FinancialIntents `json:"financial_intents"`
		UrgencyAnalysis  UrgencyAnalysis  `json:"urgency_analysis"`
	}
)

var (
	ErrEmptyText   = errors.New("empty text")
	ErrTextTooLong = errors.New("text too long (max 10000 characters)")
)

// ValidateText checks free text before it is sent for analysis.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return ErrEmptyText
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return ErrTextTooLong
	}
	return nil
}

// DisplayText is the text shown for a communication, falling back to the
// details extracted by the service when the original text is missing.
func (c Communication) DisplayText() string {
	if strings.TrimSpace(c.Text) != "" {
		return c.Text
	}
	return c.FinancialIntents.RelevantDetails
}

// Sentiment returns the normalized sentiment of the communication.
func (c Communication) Sentiment() Sentiment {
	return c.UrgencyAnalysis.Sentiment.Normalize()
}

// Categories resolves every detected intent. Unmatched intents are skipped.
func (c Communication) Categories() []Category {
	var out []Category
	for _, di := range c.FinancialIntents.DetectedIntents {
		if cat, ok := di.ResolveCategory(); ok {
			out = append(out, cat)
		}
	}
	return out
}

// Recent returns the last n communications in sequence order, oldest first.
func Recent(comms []Communication, n int) []Communication {
	if n <= 0 || len(comms) == 0 {
		return nil
	}
	if len(comms) <= n {
		return append([]Communication(nil), comms...)
	}
	return append([]Communication(nil), comms[len(comms)-n:]...)
}
