package http

import (
	"errors"
	"net/http"

	"intentdash/internal/core"
	"intentdash/internal/log"
	"intentdash/internal/store"
)

type communicationFormData struct {
	Text      string
	Error     string
	MaxLength int
	Loading   bool
}

// handleCommunicationForm renders the entry screen
func (s *Server) handleCommunicationForm(w http.ResponseWriter, r *http.Request) {
	st := store.MustFromContext(r.Context())
	s.render(w, r, http.StatusOK, "communication_page", communicationFormData{
		MaxLength: core.MaxTextLength,
		Loading:   st.Loading(),
	})
}

// handleCreateCommunication validates the submitted text and runs it through
// the session store. The analysis outcome is never surfaced here: failures
// are logged by the store and the dashboard simply does not change.
func (s *Server) handleCreateCommunication(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	st := store.MustFromContext(ctx)

	text, err := ParseCommunicationForm(w, r)
	if err != nil {
		msg := err.Error()
		switch {
		case errors.Is(err, core.ErrEmptyText):
			msg = "Please enter the communication text."
		case errors.Is(err, core.ErrTextTooLong):
			msg = "The communication is too long (max 10000 characters)."
		}
		log.FromContext(ctx).WarnContext(ctx, "Rejected communication",
			log.FieldOperation, log.OpValidate,
			log.FieldError, err.Error())
		if isHTMX(r) {
			ErrorResponse(http.StatusUnprocessableEntity, msg).
				TriggerErrorNotification(msg).
				Write(w)
			return
		}
		s.render(w, r, http.StatusUnprocessableEntity, "communication_page", communicationFormData{
			Text:      text,
			Error:     msg,
			MaxLength: core.MaxTextLength,
		})
		return
	}

	st.Add(ctx, text)

	if isHTMX(r) {
		NewHTMXResponse().
			TriggerFormReset().
			Header("HX-Redirect", "/").
			Write(w)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// handleClearCommunications empties the session store
func (s *Server) handleClearCommunications(w http.ResponseWriter, r *http.Request) {
	st := store.MustFromContext(r.Context())
	st.Clear()

	if !isHTMX(r) {
		http.Redirect(w, r, "/", http.StatusSeeOther)
		return
	}

	NewHTMXResponse().
		TriggerStoreCleared().
		TriggerSuccessNotification("Communications cleared").
		Header("Content-Type", "text/html; charset=utf-8").
		WriteTemplate(w, s.templates, "dashboard_body", buildDashboardView(st.Snapshot(), s.location))
}

type apiCommunicationsResponse struct {
	Communications []core.Communication `json:"communications"`
	Insights       []core.Insight       `json:"insights"`
	Loading        bool                 `json:"loading"`
}

// handleAPICommunications returns the session snapshot as JSON
func (s *Server) handleAPICommunications(w http.ResponseWriter, r *http.Request) {
	snap := store.MustFromContext(r.Context()).Snapshot()
	resp := apiCommunicationsResponse{
		Communications: snap.Communications,
		Insights:       snap.Insights,
		Loading:        snap.Loading,
	}
	if resp.Communications == nil {
		resp.Communications = []core.Communication{}
	}
	if resp.Insights == nil {
		resp.Insights = []core.Insight{}
	}
	writeJSON(w, http.StatusOK, resp)
}
