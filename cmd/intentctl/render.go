package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"

	"intentdash/internal/core"
	"intentdash/internal/store"
)

const timeLayout = "02 Jan 2006, 15:04"

func sentimentBadge(s core.Sentiment) string {
	label := " " + strings.ToUpper(s.Label()) + " "
	switch s.Normalize() {
	case core.Positive:
		return color.New(color.FgBlack, color.BgGreen).Sprint(label)
	case core.Negative:
		return color.New(color.FgWhite, color.BgRed).Sprint(label)
	default:
		return color.New(color.FgBlack, color.BgWhite).Sprint(label)
	}
}

func priorityColor(p core.Priority) func(format string, a ...interface{}) string {
	switch p {
	case core.PriorityHigh:
		return color.RedString
	case core.PriorityLow:
		return color.CyanString
	default:
		return color.YellowString
	}
}

func categoryList(comm core.Communication) string {
	var labels []string
	seen := map[core.Category]bool{}
	for _, c := range comm.Categories() {
		if !seen[c] {
			seen[c] = true
			labels = append(labels, c.Label())
		}
	}
	if len(labels) == 0 {
		return "none"
	}
	return strings.Join(labels, ", ")
}

func printCommunication(w io.Writer, comm core.Communication, insights []core.Insight) {
	fmt.Fprintf(w, "%s %s\n", sentimentBadge(comm.Sentiment()), comm.Timestamp.Local().Format(timeLayout))
	fmt.Fprintln(w, comm.DisplayText())
	fmt.Fprintf(w, "Intents: %s\n", categoryList(comm))
	if u := comm.UrgencyAnalysis.UrgencyLevel; u != "" {
		fmt.Fprintf(w, "Urgency: %s\n", u)
	}
	for _, in := range insights {
		paint := priorityColor(in.Priority)
		fmt.Fprintf(w, "  %s %s %s\n", paint("[%s]", strings.ToUpper(string(in.Priority))), in.BadgeLabel(), in.Title)
	}
}

func printRecord(w io.Writer, rec store.Record) {
	comm := rec.Communication
	fmt.Fprintf(w, "%s %s  %s\n", sentimentBadge(comm.Sentiment()), comm.Timestamp.Local().Format(timeLayout), color.HiBlackString(rec.SessionID))
	fmt.Fprintf(w, "  %s\n", comm.DisplayText())
	fmt.Fprintf(w, "  %d insight(s), %d high priority | %s\n", len(rec.Insights), len(core.HighPriority(rec.Insights)), categoryList(comm))
}

func printSummary(w io.Writer, agg core.SummaryAggregate) {
	fmt.Fprintln(w, color.New(color.Bold).Sprint("Summary"))
	for _, c := range core.Categories {
		if n := agg.Count(c); n > 0 {
			fmt.Fprintf(w, "  %-12s %d\n", c.Label(), n)
		}
	}
	if agg.Uncategorized > 0 {
		fmt.Fprintf(w, "  %-12s %d\n", "Other", agg.Uncategorized)
	}
	fmt.Fprintf(w, "  %s %d  %s %d  %s %d\n",
		color.GreenString("positive"), agg.SentimentCounts.Get(core.Positive),
		"neutral", agg.SentimentCounts.Get(core.Neutral),
		color.RedString("negative"), agg.SentimentCounts.Get(core.Negative))
	fmt.Fprintf(w, "  %d insights, %d high priority\n", agg.TotalInsights, agg.HighPriorityInsights)
}
