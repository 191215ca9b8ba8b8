package http

import (
	"time"

	"intentdash/internal/core"
	"intentdash/internal/store"
)

const (
	recentLimit = 3
	timeLayout  = "02 Jan 2006, 15:04"

	intentBarColor = "#2196f3"
)

var sentimentColors = map[core.Sentiment]string{
	core.Positive: "#4caf50",
	core.Neutral:  "#ff9800",
	core.Negative: "#f44336",
}

type summaryCard struct {
	Label string
	Value int
	Color string
}

type chartBar struct {
	Label   string
	Count   int
	Percent int
	Color   string
}

type chartView struct {
	Title string
	Label string
	Bars  []chartBar
}

type insightView struct {
	ID          string
	Title       string
	Badge       string
	BadgeClass  string
	Description string
}

type communicationView struct {
	ID             string
	Time           string
	Text           string
	Intents        []string
	Sentiment      string
	SentimentClass string
}

// dashboardView is everything the dashboard templates render. It is built
// from a snapshot and owns no state.
type dashboardView struct {
	Summary        core.SummaryAggregate
	Loading        bool
	Cards          []summaryCard
	IntentChart    chartView
	SentimentChart chartView
	HighPriority   []insightView
	Recent         []communicationView
	Uncategorized  int
}

func buildDashboardView(snap store.Snapshot, loc *time.Location) dashboardView {
	agg := snap.Summary()

	v := dashboardView{
		Summary: agg,
		Loading: snap.Loading,
		Cards: []summaryCard{
			{Label: "Total Communications", Value: agg.TotalIntents, Color: "#2196f3"},
			{Label: "Insights Generated", Value: agg.TotalInsights, Color: "#ff9800"},
			{Label: "Cash Flow Concerns", Value: agg.Count(core.CashFlowConcern), Color: "#f44336"},
			{Label: "Budget Planning", Value: agg.Count(core.BudgetPlanning), Color: "#4caf50"},
		},
		IntentChart:    intentChart(agg),
		SentimentChart: sentimentChart(agg),
		Uncategorized:  agg.Uncategorized,
	}

	for _, in := range core.HighPriority(snap.Insights) {
		v.HighPriority = append(v.HighPriority, newInsightView(in))
	}
	for _, c := range core.Recent(snap.Communications, recentLimit) {
		v.Recent = append(v.Recent, newCommunicationView(c, loc))
	}
	return v
}

func intentChart(agg core.SummaryAggregate) chartView {
	counts := make([]int, len(core.Categories))
	for i, c := range core.Categories {
		counts[i] = agg.Count(c)
	}
	percents := relativePercents(counts)

	chart := chartView{Title: "Financial Intents Distribution", Label: "Detected Intents"}
	for i, c := range core.Categories {
		chart.Bars = append(chart.Bars, chartBar{
			Label:   c.Label(),
			Count:   counts[i],
			Percent: percents[i],
			Color:   intentBarColor,
		})
	}
	return chart
}

func sentimentChart(agg core.SummaryAggregate) chartView {
	counts := make([]int, len(core.Sentiments))
	for i, s := range core.Sentiments {
		counts[i] = agg.SentimentCounts.Get(s)
	}
	percents := relativePercents(counts)

	chart := chartView{Title: "Communication Sentiment", Label: "Communication Sentiment"}
	for i, s := range core.Sentiments {
		chart.Bars = append(chart.Bars, chartBar{
			Label:   s.Label(),
			Count:   counts[i],
			Percent: percents[i],
			Color:   sentimentColors[s],
		})
	}
	return chart
}

// relativePercents scales counts against the largest one.
func relativePercents(counts []int) []int {
	maxCount := 0
	for _, c := range counts {
		if c > maxCount {
			maxCount = c
		}
	}
	out := make([]int, len(counts))
	if maxCount == 0 {
		return out
	}
	for i, c := range counts {
		out[i] = c * 100 / maxCount
	}
	return out
}

func newInsightView(in core.Insight) insightView {
	badgeClass := "primary"
	if in.Category == core.InsightAlert {
		badgeClass = "error"
	}
	return insightView{
		ID:          in.ID,
		Title:       in.Title,
		Badge:       in.BadgeLabel(),
		BadgeClass:  badgeClass,
		Description: in.Description,
	}
}

func newCommunicationView(c core.Communication, loc *time.Location) communicationView {
	v := communicationView{
		ID:             c.ID,
		Text:           c.DisplayText(),
		Sentiment:      string(c.Sentiment()),
		SentimentClass: c.Sentiment().BadgeClass(),
	}
	if !c.Timestamp.IsZero() {
		if loc == nil {
			loc = time.Local
		}
		v.Time = c.Timestamp.In(loc).Format(timeLayout)
	}
	for _, di := range c.FinancialIntents.DetectedIntents {
		if di.Description != "" {
			v.Intents = append(v.Intents, di.Description)
		}
	}
	return v
}

// chartJSDataset mirrors the dataset shape Chart.js consumes.
type chartJSDataset struct {
	Label           string `json:"label"`
	Data            []int  `json:"data"`
	BackgroundColor any    `json:"backgroundColor"`
}

type chartJSData struct {
	Labels   []string         `json:"labels"`
	Datasets []chartJSDataset `json:"datasets"`
}

func (c chartView) chartJS(singleColor bool) chartJSData {
	out := chartJSData{}
	ds := chartJSDataset{Label: c.Label}
	colors := make([]string, 0, len(c.Bars))
	for _, b := range c.Bars {
		out.Labels = append(out.Labels, b.Label)
		ds.Data = append(ds.Data, b.Count)
		colors = append(colors, b.Color)
	}
	if singleColor && len(colors) > 0 {
		ds.BackgroundColor = colors[0]
	} else {
		ds.BackgroundColor = colors
	}
	out.Datasets = []chartJSDataset{ds}
	return out
}
