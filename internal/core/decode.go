package core

import (
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

// The analysis service is model-backed and loose about JSON types: amounts
// arrive as numbers, scores as quoted strings, lists as a single string.
// Optional fields therefore decode through the Flex types, which never fail.

var errUnexpectedShape = errors.New("unexpected JSON shape")

// FlexString decodes a string, number or boolean as text. Anything else is
// empty.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	*f = FlexString(flexText(data))
	return nil
}

func flexText(data []byte) string {
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err == nil {
		return n.String()
	}
	var b bool
	if err := json.Unmarshal(data, &b); err == nil {
		return strconv.FormatBool(b)
	}
	return ""
}

// FlexFloat decodes a number or a numeric string. Anything else is 0.
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	*f = 0
	var n float64
	if err := json.Unmarshal(data, &n); err == nil {
		*f = FlexFloat(n)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err == nil && !math.IsNaN(v) && !math.IsInf(v, 0) {
			*f = FlexFloat(v)
		}
	}
	return nil
}

// FlexStrings decodes a list of scalars, or a single scalar as a one-element
// list. Empty and non-scalar elements are dropped.
type FlexStrings []string

func (f *FlexStrings) UnmarshalJSON(data []byte) error {
	*f = nil
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		if s := flexText(data); s != "" {
			*f = FlexStrings{s}
		}
		return nil
	}
	for _, item := range raw {
		if s := flexText(item); s != "" {
			*f = append(*f, s)
		}
	}
	return nil
}

// decodeList decodes a JSON array element by element, skipping elements that
// do not decode. Non-arrays decode as nil.
func decodeList[T any](data json.RawMessage) []T {
	if len(data) == 0 {
		return nil
	}
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil || raw == nil {
		return nil
	}
	out := make([]T, 0, len(raw))
	for _, item := range raw {
		var v T
		if err := json.Unmarshal(item, &v); err == nil {
			out = append(out, v)
		}
	}
	return out
}

// bareString reports the text of data when it is a JSON string rather than
// an object.
func bareString(data []byte) (string, bool) {
	if firstByte(data) != '"' {
		return "", false
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return "", false
	}
	return s, true
}

func isObject(data []byte) bool {
	return firstByte(data) == '{'
}

func firstByte(data []byte) byte {
	for _, b := range data {
		switch b {
		case ' ', '\t', '\n', '\r':
			continue
		}
		return b
	}
	return 0
}

// UnmarshalJSON accepts an object or a bare description string.
func (d *DetectedIntent) UnmarshalJSON(data []byte) error {
	if s, ok := bareString(data); ok {
		*d = DetectedIntent{Description: s}
		return nil
	}
	if !isObject(data) {
		return errUnexpectedShape
	}
	var w struct {
		Description  FlexString `json:"description"`
		Category     FlexString `json:"category"`
		UrgencyLevel FlexString `json:"urgency_level"`
		UrgencyScore FlexFloat  `json:"urgency_score"`
		Timeline     FlexString `json:"timeline"`
		Impact       FlexString `json:"impact"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return errUnexpectedShape
	}
	*d = DetectedIntent{
		Description:  string(w.Description),
		Category:     string(w.Category),
		UrgencyLevel: string(w.UrgencyLevel),
		UrgencyScore: float64(w.UrgencyScore),
		Timeline:     string(w.Timeline),
		Impact:       string(w.Impact),
	}
	return nil
}

// UnmarshalJSON accepts an object or a bare message string.
func (a *Alert) UnmarshalJSON(data []byte) error {
	if s, ok := bareString(data); ok {
		*a = Alert{Message: s}
		return nil
	}
	if !isObject(data) {
		return errUnexpectedShape
	}
	var w struct {
		Message        FlexString `json:"message"`
		Severity       FlexString `json:"severity"`
		Impact         FlexString `json:"impact"`
		Recommendation FlexString `json:"recommendation"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return errUnexpectedShape
	}
	*a = Alert{
		Message:        string(w.Message),
		Severity:       string(w.Severity),
		Impact:         string(w.Impact),
		Recommendation: string(w.Recommendation),
	}
	return nil
}

// UnmarshalJSON accepts an object or a bare message string.
func (s *Suggestion) UnmarshalJSON(data []byte) error {
	if msg, ok := bareString(data); ok {
		*s = Suggestion{Message: msg}
		return nil
	}
	if !isObject(data) {
		return errUnexpectedShape
	}
	var w struct {
		Message        FlexString `json:"message"`
		Benefit        FlexString `json:"benefit"`
		Implementation FlexString `json:"implementation"`
		Priority       FlexString `json:"priority"`
	}
	if err := json.Unmarshal(data, &w); err != nil {
		return errUnexpectedShape
	}
	*s = Suggestion{
		Message:        string(w.Message),
		Benefit:        string(w.Benefit),
		Implementation: string(w.Implementation),
		Priority:       string(w.Priority),
	}
	return nil
}

type movementWire struct {
	Type        FlexString `json:"type"`
	Target      FlexString `json:"target"`
	Amount      FlexString `json:"amount"`
	Timeline    FlexString `json:"timeline"`
	Description FlexString `json:"description"`
}

func (r *RevenueAction) UnmarshalJSON(data []byte) error {
	if !isObject(data) {
		return errUnexpectedShape
	}
	var w movementWire
	if err := json.Unmarshal(data, &w); err != nil {
		return errUnexpectedShape
	}
	*r = RevenueAction{
		Type:        string(w.Type),
		Target:      string(w.Target),
		Timeline:    string(w.Timeline),
		Description: string(w.Description),
	}
	return nil
}

func (e *Expenditure) UnmarshalJSON(data []byte) error {
	if !isObject(data) {
		return errUnexpectedShape
	}
	var w movementWire
	if err := json.Unmarshal(data, &w); err != nil {
		return errUnexpectedShape
	}
	*e = Expenditure{
		Type:        string(w.Type),
		Amount:      string(w.Amount),
		Timeline:    string(w.Timeline),
		Description: string(w.Description),
	}
	return nil
}

// UnmarshalJSON never fails. Malformed members decode as their zero value.
func (f *FinancialIntents) UnmarshalJSON(data []byte) error {
	var w struct {
		DetectedIntents json.RawMessage `json:"detected_intents"`
		ConfidenceScore FlexFloat       `json:"confidence_score"`
		RelevantDetails FlexString      `json:"relevant_details"`
		FinancialTopics FlexStrings     `json:"financial_topics"`
		ActionItems     FlexStrings     `json:"action_items"`
		Expenditures    json.RawMessage `json:"expenditures"`
		RevenueActions  json.RawMessage `json:"revenue_actions"`
		Alerts          json.RawMessage `json:"alerts"`
		Suggestions     json.RawMessage `json:"suggestions"`
	}
	*f = FinancialIntents{}
	if err := json.Unmarshal(data, &w); err != nil {
		return nil
	}
	*f = FinancialIntents{
		DetectedIntents: decodeList[DetectedIntent](w.DetectedIntents),
		ConfidenceScore: float64(w.ConfidenceScore),
		RelevantDetails: string(w.RelevantDetails),
		FinancialTopics: []string(w.FinancialTopics),
		ActionItems:     []string(w.ActionItems),
		Expenditures:    decodeList[Expenditure](w.Expenditures),
		RevenueActions:  decodeList[RevenueAction](w.RevenueActions),
		Alerts:          decodeList[Alert](w.Alerts),
		Suggestions:     decodeList[Suggestion](w.Suggestions),
	}
	return nil
}

// UnmarshalJSON never fails. Malformed members decode as their zero value.
func (u *UrgencyAnalysis) UnmarshalJSON(data []byte) error {
	var w struct {
		Sentiment       Sentiment   `json:"sentiment"`
		UrgencyLevel    FlexString  `json:"urgency_level"`
		ConfidenceScore FlexFloat   `json:"confidence_score"`
		KeyIndicators   FlexStrings `json:"key_indicators"`
	}
	*u = UrgencyAnalysis{}
	if err := json.Unmarshal(data, &w); err != nil {
		return nil
	}
	*u = UrgencyAnalysis{
		Sentiment:       w.Sentiment,
		UrgencyLevel:    string(w.UrgencyLevel),
		ConfidenceScore: float64(w.ConfidenceScore),
		KeyIndicators:   []string(w.KeyIndicators),
	}
	return nil
}
