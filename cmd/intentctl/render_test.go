package main

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intentdash/internal/core"
	"intentdash/internal/store"
)

func init() {
	color.NoColor = true
}

func sampleCommunication() core.Communication {
	return core.Communication{
		ID:        "c1",
		Text:      "Our cash flow is tight; we should review the budget.",
		Timestamp: time.Date(2025, 5, 1, 9, 30, 0, 0, time.Local),
		FinancialIntents: core.FinancialIntents{
			DetectedIntents: []core.DetectedIntent{
				{Description: "cash flow pressure"},
				{Description: "budget review"},
				{Description: "cash flow timing"},
			},
		},
		UrgencyAnalysis: core.UrgencyAnalysis{Sentiment: core.Negative, UrgencyLevel: "high"},
	}
}

func TestSentimentBadge(t *testing.T) {
	assert.Equal(t, " POSITIVE ", sentimentBadge(core.Positive))
	assert.Equal(t, " NEGATIVE ", sentimentBadge(core.Negative))
	assert.Equal(t, " NEUTRAL ", sentimentBadge(core.Sentiment("")))
}

func TestCategoryList(t *testing.T) {
	assert.Equal(t, "Cash Flow, Budget", categoryList(sampleCommunication()))
	assert.Equal(t, "none", categoryList(core.Communication{}))
}

func TestPrintCommunication(t *testing.T) {
	var buf bytes.Buffer
	insights := []core.Insight{{Category: core.InsightAlert, Title: "Cash runway under 30 days", Priority: core.PriorityHigh}}

	printCommunication(&buf, sampleCommunication(), insights)

	out := buf.String()
	for _, want := range []string{
		" NEGATIVE  01 May 2025, 09:30",
		"Our cash flow is tight",
		"Intents: Cash Flow, Budget",
		"Urgency: high",
		"[HIGH] ALERT Cash runway under 30 days",
	} {
		assert.Contains(t, out, want)
	}
}

func TestPrintRecordAndSummary(t *testing.T) {
	rec := store.Record{
		SessionID:     "sess-1",
		Communication: sampleCommunication(),
		Insights: []core.Insight{
			{Priority: core.PriorityHigh},
			{Priority: core.PriorityLow},
		},
	}

	var buf bytes.Buffer
	printRecord(&buf, rec)
	assert.Contains(t, buf.String(), "sess-1")
	assert.Contains(t, buf.String(), "2 insight(s), 1 high priority | Cash Flow, Budget")

	buf.Reset()
	printSummary(&buf, core.Summarize([]core.Communication{rec.Communication}, rec.Insights))
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)
	assert.Equal(t, "Summary", lines[0])
	assert.Contains(t, buf.String(), "Cash Flow    2")
	assert.Contains(t, buf.String(), "Budget       1")
	assert.Contains(t, buf.String(), "negative 1")
	assert.Contains(t, buf.String(), "2 insights, 1 high priority")
}

func TestReadText(t *testing.T) {
	got, err := readText(nil, []string{"pay the invoice"})
	require.NoError(t, err)
	assert.Equal(t, "pay the invoice", got)

	got, err = readText(strings.NewReader("  from stdin \n"), []string{"-"})
	require.NoError(t, err)
	assert.Equal(t, "from stdin", got)

	got, err = readText(strings.NewReader("no args"), nil)
	require.NoError(t, err)
	assert.Equal(t, "no args", got)
}
