package core

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFlexString(t *testing.T) {
	cases := []struct {
		raw  string
		want string
	}{
		{`"Q3 2025"`, "Q3 2025"},
		{`250000`, "250000"},
		{`12.75`, "12.75"},
		{`true`, "true"},
		{`null`, ""},
		{`{"min":1,"max":2}`, ""},
		{`[1,2]`, ""},
	}
	for _, tc := range cases {
		var got FlexString
		require.NoError(t, json.Unmarshal([]byte(tc.raw), &got), tc.raw)
		assert.Equal(t, tc.want, string(got), tc.raw)
	}
}

func TestFlexFloat(t *testing.T) {
	cases := []struct {
		raw  string
		want float64
	}{
		{`0.8`, 0.8},
		{`"0.8"`, 0.8},
		{`" 0.25 "`, 0.25},
		{`"high"`, 0},
		{`"NaN"`, 0},
		{`null`, 0},
		{`{"value":0.8}`, 0},
		{`[0.8]`, 0},
	}
	for _, tc := range cases {
		got := FlexFloat(42)
		require.NoError(t, json.Unmarshal([]byte(tc.raw), &got), tc.raw)
		assert.InDelta(t, tc.want, float64(got), 1e-9, tc.raw)
	}
}

func TestFlexStrings(t *testing.T) {
	cases := []struct {
		raw  string
		want []string
	}{
		{`["cash flow","payroll"]`, []string{"cash flow", "payroll"}},
		{`"cash flow"`, []string{"cash flow"}},
		{`["a", 2, null, "", {"x":1}]`, []string{"a", "2"}},
		{`[]`, nil},
		{`null`, nil},
		{`{"topic":"x"}`, nil},
	}
	for _, tc := range cases {
		var got FlexStrings
		require.NoError(t, json.Unmarshal([]byte(tc.raw), &got), tc.raw)
		assert.Equal(t, tc.want, []string(got), tc.raw)
	}
}

func TestFinancialIntentsToleratesWrongTypes(t *testing.T) {
	raw := `{
		"detected_intents": [
			{"description": "hiring plan", "urgency_score": "0.6", "timeline": 90, "impact": 3},
			"cash flow concern",
			12
		],
		"confidence_score": "0.9",
		"relevant_details": 7,
		"financial_topics": "hiring",
		"expenditures": [{"type": "hiring", "amount": 80000}],
		"revenue_actions": [{"type": "pricing", "target": 1.5e6}, "raise prices"],
		"alerts": ["Runway short", {"message": "Payroll due", "severity": 1}],
		"suggestions": [{"message": "Delay hiring", "priority": "HIGH"}]
	}`

	var fi FinancialIntents
	require.NoError(t, json.Unmarshal([]byte(raw), &fi))

	require.Len(t, fi.DetectedIntents, 2)
	assert.Equal(t, "hiring plan", fi.DetectedIntents[0].Description)
	assert.InDelta(t, 0.6, fi.DetectedIntents[0].UrgencyScore, 1e-9)
	assert.Equal(t, "90", fi.DetectedIntents[0].Timeline)
	assert.Equal(t, "3", fi.DetectedIntents[0].Impact)
	assert.Equal(t, "cash flow concern", fi.DetectedIntents[1].Description)

	assert.InDelta(t, 0.9, fi.ConfidenceScore, 1e-9)
	assert.Equal(t, "7", fi.RelevantDetails)
	assert.Equal(t, []string{"hiring"}, fi.FinancialTopics)

	require.Len(t, fi.Expenditures, 1)
	assert.Equal(t, "80000", fi.Expenditures[0].Amount)
	require.Len(t, fi.RevenueActions, 1)
	assert.Equal(t, "1.5e6", fi.RevenueActions[0].Target)

	require.Len(t, fi.Alerts, 2)
	assert.Equal(t, "Runway short", fi.Alerts[0].Message)
	assert.Equal(t, "1", fi.Alerts[1].Severity)
	require.Len(t, fi.Suggestions, 1)
	assert.Equal(t, "HIGH", fi.Suggestions[0].Priority)
}

func TestFinancialIntentsNonObjectIsEmpty(t *testing.T) {
	for _, raw := range []string{`null`, `"none"`, `[]`, `3`} {
		fi := FinancialIntents{RelevantDetails: "stale"}
		require.NoError(t, json.Unmarshal([]byte(raw), &fi), raw)
		assert.Equal(t, FinancialIntents{}, fi, raw)
	}
}

func TestUrgencyAnalysisToleratesWrongTypes(t *testing.T) {
	var ua UrgencyAnalysis
	require.NoError(t, json.Unmarshal([]byte(`{
		"sentiment": {"label": "Negative"},
		"urgency_level": 2,
		"confidence_score": "0.7",
		"key_indicators": "overdue invoices"
	}`), &ua))

	assert.Equal(t, Negative, ua.Sentiment)
	assert.Equal(t, "2", ua.UrgencyLevel)
	assert.InDelta(t, 0.7, ua.ConfidenceScore, 1e-9)
	assert.Equal(t, []string{"overdue invoices"}, ua.KeyIndicators)
}

func TestCommunicationRoundTripsThroughTolerantDecode(t *testing.T) {
	c := Communication{
		ID:   "c1",
		Text: "cash is tight",
		FinancialIntents: FinancialIntents{
			DetectedIntents: []DetectedIntent{{Description: "cash flow concern", UrgencyScore: 0.9}},
			Alerts:          []Alert{{Message: "Runway short", Severity: "high"}},
			RevenueActions:  []RevenueAction{{Type: "pricing", Target: "10%"}},
		},
		UrgencyAnalysis: UrgencyAnalysis{Sentiment: Negative, UrgencyLevel: "high"},
	}

	data, err := json.Marshal(c)
	require.NoError(t, err)

	var got Communication
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, c.FinancialIntents.DetectedIntents, got.FinancialIntents.DetectedIntents)
	assert.Equal(t, c.FinancialIntents.Alerts, got.FinancialIntents.Alerts)
	assert.Equal(t, c.FinancialIntents.RevenueActions, got.FinancialIntents.RevenueActions)
	assert.Equal(t, c.UrgencyAnalysis, got.UrgencyAnalysis)
}
