package http

import (
	"context"
	"net/http"
	"time"

	"intentdash/internal/core"
	"intentdash/internal/log"
)

type historyEntry struct {
	Communication communicationView
	SessionID     string
	InsightCount  int
	HighPriority  int
}

type historyData struct {
	Enabled bool
	Limit   int
	Entries []historyEntry
	Summary core.SummaryAggregate
	Cards   []summaryCard
}

// handleHistory lists archived communications with an archive-wide summary.
// Errors render the same empty state as an empty archive.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	data := historyData{Limit: ParseLimit(r.URL.Query())}
	if s.history == nil {
		s.render(w, r, http.StatusOK, "history_page", data)
		return
	}
	data.Enabled = true

	ctx, cancel := context.WithTimeout(r.Context(), 7*time.Second)
	defer cancel()

	records, err := s.history.ListRecent(ctx, data.Limit)
	if err != nil {
		log.FromContext(ctx).WithComponent(log.ComponentArchive).ErrorContext(ctx, "Failed to list archived communications",
			log.FieldOperation, log.OpList,
			log.FieldError, err.Error())
		records = nil
	}

	var comms []core.Communication
	var insights []core.Insight
	for _, rec := range records {
		comms = append(comms, rec.Communication)
		insights = append(insights, rec.Insights...)
		data.Entries = append(data.Entries, historyEntry{
			Communication: newCommunicationView(rec.Communication, s.location),
			SessionID:     rec.SessionID,
			InsightCount:  len(rec.Insights),
			HighPriority:  len(core.HighPriority(rec.Insights)),
		})
	}

	data.Summary = core.Summarize(comms, insights)
	data.Cards = []summaryCard{
		{Label: "Archived Communications", Value: data.Summary.TotalIntents, Color: "#2196f3"},
		{Label: "Insights Generated", Value: data.Summary.TotalInsights, Color: "#ff9800"},
		{Label: "High Priority Insights", Value: data.Summary.HighPriorityInsights, Color: "#f44336"},
		{Label: "Uncategorized Intents", Value: data.Summary.Uncategorized, Color: "#9e9e9e"},
	}
	s.render(w, r, http.StatusOK, "history_page", data)
}
