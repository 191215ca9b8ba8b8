package core

import (
	"encoding/json"
	"strings"
)

// Sentiment is the coarse polarity of a communication.
type Sentiment string

const (
	Positive Sentiment = "positive"
	Neutral  Sentiment = "neutral"
	Negative Sentiment = "negative"
)

// Sentiments lists the variants in display order.
var Sentiments = []Sentiment{Positive, Neutral, Negative}

// NormalizeSentiment maps a raw label onto a variant. Anything other than
// positive or negative, in any case, is neutral.
func NormalizeSentiment(raw string) Sentiment {
	switch Sentiment(strings.ToLower(strings.TrimSpace(raw))) {
	case Positive:
		return Positive
	case Negative:
		return Negative
	default:
		return Neutral
	}
}

// Normalize returns s mapped onto one of the three variants.
func (s Sentiment) Normalize() Sentiment {
	return NormalizeSentiment(string(s))
}

// Label is the capitalized display name.
func (s Sentiment) Label() string {
	switch s.Normalize() {
	case Positive:
		return "Positive"
	case Negative:
		return "Negative"
	default:
		return "Neutral"
	}
}

// BadgeClass is the badge color used when rendering the sentiment.
func (s Sentiment) BadgeClass() string {
	switch s.Normalize() {
	case Positive:
		return "success"
	case Negative:
		return "error"
	default:
		return "default"
	}
}

// ParseSentiment normalizes the wire value, which is either a bare string or
// an object carrying a "label". Missing or malformed input is neutral.
func ParseSentiment(data []byte) Sentiment {
	var label string
	if err := json.Unmarshal(data, &label); err == nil {
		return NormalizeSentiment(label)
	}
	var obj struct {
		Label *string `json:"label"`
	}
	if err := json.Unmarshal(data, &obj); err == nil && obj.Label != nil {
		return NormalizeSentiment(*obj.Label)
	}
	return Neutral
}

// UnmarshalJSON never fails: unknown shapes decode as neutral.
func (s *Sentiment) UnmarshalJSON(data []byte) error {
	*s = ParseSentiment(data)
	return nil
}

func (s Sentiment) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(s.Normalize()))
}
