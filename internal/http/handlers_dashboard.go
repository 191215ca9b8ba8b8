package http

import (
	"net/http"

	"intentdash/internal/core"
	"intentdash/internal/store"
)

// handleIndex renders the full dashboard page
func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	snap := store.MustFromContext(r.Context()).Snapshot()
	s.render(w, r, http.StatusOK, "dashboard_page", buildDashboardView(snap, s.location))
}

// handleDashboardBody returns the dashboard body partial for htmx refreshes
func (s *Server) handleDashboardBody(w http.ResponseWriter, r *http.Request) {
	snap := store.MustFromContext(r.Context()).Snapshot()
	s.render(w, r, http.StatusOK, "dashboard_body", buildDashboardView(snap, s.location))
}

type apiDashboardResponse struct {
	Summary        core.SummaryAggregate `json:"summary"`
	IntentChart    chartJSData           `json:"intentChart"`
	SentimentChart chartJSData           `json:"sentimentChart"`
	HighPriority   []core.Insight        `json:"highPriorityInsights"`
	Loading        bool                  `json:"loading"`
}

// handleAPIDashboard returns the aggregate and Chart.js datasets as JSON
func (s *Server) handleAPIDashboard(w http.ResponseWriter, r *http.Request) {
	snap := store.MustFromContext(r.Context()).Snapshot()
	v := buildDashboardView(snap, s.location)

	high := core.HighPriority(snap.Insights)
	if high == nil {
		high = []core.Insight{}
	}

	writeJSON(w, http.StatusOK, apiDashboardResponse{
		Summary:        v.Summary,
		IntentChart:    v.IntentChart.chartJS(true),
		SentimentChart: v.SentimentChart.chartJS(false),
		HighPriority:   high,
		Loading:        snap.Loading,
	})
}
