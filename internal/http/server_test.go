package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intentdash/internal/core"
	"intentdash/internal/log"
	"intentdash/internal/store"
)

type stubAnalyzer struct {
	mu  sync.Mutex
	n   int
	err error
}

func (a *stubAnalyzer) Analyze(_ context.Context, text string) (core.Communication, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.err != nil {
		return core.Communication{}, a.err
	}
	a.n++
	c := core.Communication{
		ID:        "comm-" + strconv.Itoa(a.n),
		Text:      text,
		Timestamp: time.Date(2025, 5, 1, 9, 30, 0, 0, time.UTC),
	}
	c.FinancialIntents.DetectedIntents = []core.DetectedIntent{{Description: "cash flow concern"}}
	c.FinancialIntents.Alerts = []core.Alert{{Message: "Collections overdue", Severity: "high", Impact: "Liquidity squeeze"}}
	c.UrgencyAnalysis.Sentiment = core.Negative
	return c, nil
}

type stubHistory struct {
	records []store.Record
	err     error
}

func (h stubHistory) ListRecent(_ context.Context, limit int) ([]store.Record, error) {
	if h.err != nil {
		return nil, h.err
	}
	if limit < len(h.records) {
		return h.records[:limit], nil
	}
	return h.records, nil
}

func newTestServer(t *testing.T, analyzer store.Analyzer, mutate func(*Options)) *Server {
	t.Helper()
	factory := func(id string) *store.IntentStore {
		return store.New(analyzer, store.WithSessionID(id), store.WithLogger(log.Discard()))
	}
	opts := Options{
		Registry:           store.NewRegistry(10, time.Hour, factory, log.Discard()),
		RateLimitPerMinute: 100,
		SessionTTL:         time.Hour,
		Location:           time.UTC,
		Logger:             log.Discard(),
	}
	if mutate != nil {
		mutate(&opts)
	}
	s := NewServer(":0", opts)
	require.NotNil(t, s.templates, "embedded templates must parse")
	t.Cleanup(func() { _ = s.Shutdown(context.Background()) })
	return s
}

func do(s *Server, method, target string, body string, cookies []*http.Cookie, headers map[string]string) *httptest.ResponseRecorder {
	var r *http.Request
	if body != "" {
		r = httptest.NewRequest(method, target, strings.NewReader(body))
		r.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	} else {
		r = httptest.NewRequest(method, target, nil)
	}
	for _, c := range cookies {
		r.AddCookie(c)
	}
	for k, v := range headers {
		r.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	s.Handler.ServeHTTP(rec, r)
	return rec
}

func sessionCookieFrom(t *testing.T, rec *httptest.ResponseRecorder) *http.Cookie {
	t.Helper()
	for _, c := range rec.Result().Cookies() {
		if c.Name == sessionCookie {
			return c
		}
	}
	t.Fatalf("no %s cookie set", sessionCookie)
	return nil
}

func form(text string) string {
	return url.Values{"text": {text}}.Encode()
}

func TestDashboardEmptyState(t *testing.T) {
	s := newTestServer(t, &stubAnalyzer{}, nil)

	rec := do(s, http.MethodGet, "/", "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	c := sessionCookieFrom(t, rec)
	assert.True(t, c.HttpOnly)
	assert.Equal(t, 3600, c.MaxAge)

	body := rec.Body.String()
	for _, want := range []string{
		"Total Communications",
		"Insights Generated",
		"Cash Flow Concerns",
		"Budget Planning",
		"Financial Intents Distribution",
		"Communication Sentiment",
		"No high priority insights detected",
		"No communications analyzed yet",
		"Add New Communication",
		`href="/communication"`,
	} {
		assert.Contains(t, body, want)
	}
	assert.NotEmpty(t, rec.Header().Get("X-Request-ID"))
	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
}

func TestSessionCookieReusesStore(t *testing.T) {
	s := newTestServer(t, &stubAnalyzer{}, nil)

	first := do(s, http.MethodGet, "/", "", nil, nil)
	c := sessionCookieFrom(t, first)

	second := do(s, http.MethodGet, "/communication", "", []*http.Cookie{c}, nil)
	assert.Equal(t, http.StatusOK, second.Code)
	assert.Empty(t, second.Result().Cookies(), "known session must not be reissued")
	assert.Equal(t, 1, s.registry.Len())

	stale := &http.Cookie{Name: sessionCookie, Value: "expired-session"}
	third := do(s, http.MethodGet, "/", "", []*http.Cookie{stale}, nil)
	assert.NotEqual(t, "expired-session", sessionCookieFrom(t, third).Value)
	assert.Equal(t, 2, s.registry.Len())
}

func TestCreateCommunication(t *testing.T) {
	s := newTestServer(t, &stubAnalyzer{}, nil)
	c := sessionCookieFrom(t, do(s, http.MethodGet, "/", "", nil, nil))

	rec := do(s, http.MethodPost, "/communications", form("We are worried about cash flow this month"), []*http.Cookie{c}, nil)
	require.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("Location"))

	page := do(s, http.MethodGet, "/", "", []*http.Cookie{c}, nil).Body.String()
	assert.Contains(t, page, "We are worried about cash flow this month")
	assert.Contains(t, page, "cash flow concern")
	assert.Contains(t, page, "Collections overdue")
	assert.Contains(t, page, "NEGATIVE")
	assert.Contains(t, page, "01 May 2025, 09:30")
	assert.NotContains(t, page, "No communications analyzed yet")

	// other sessions are unaffected
	other := do(s, http.MethodGet, "/", "", nil, nil).Body.String()
	assert.Contains(t, other, "No communications analyzed yet")
}

func TestCreateCommunicationValidation(t *testing.T) {
	s := newTestServer(t, &stubAnalyzer{}, nil)

	tests := []struct {
		name string
		text string
		want string
	}{
		{"blank", "   ", "Please enter the communication text."},
		{"too long", strings.Repeat("a", core.MaxTextLength+1), "The communication is too long (max 10000 characters)."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(s, http.MethodPost, "/communications", form(tt.text), nil, nil)
			assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
			assert.Contains(t, rec.Body.String(), tt.want)
		})
	}

	rec := do(s, http.MethodPost, "/communications", form(""), nil, map[string]string{"HX-Request": "true"})
	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Contains(t, rec.Header().Get("HX-Trigger"), "show-notification")
}

func TestCreateCommunicationAnalysisFailureIsSilent(t *testing.T) {
	s := newTestServer(t, &stubAnalyzer{err: errors.New("service down")}, nil)
	c := sessionCookieFrom(t, do(s, http.MethodGet, "/", "", nil, nil))

	rec := do(s, http.MethodPost, "/communications", form("budget review"), []*http.Cookie{c}, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	page := do(s, http.MethodGet, "/", "", []*http.Cookie{c}, nil).Body.String()
	assert.Contains(t, page, "No communications analyzed yet")
	assert.NotContains(t, page, "Analyzing communication")
}

func TestCreateCommunicationHTMXRedirect(t *testing.T) {
	s := newTestServer(t, &stubAnalyzer{}, nil)

	rec := do(s, http.MethodPost, "/communications", form("revenue growth"), nil, map[string]string{"HX-Request": "true"})
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "/", rec.Header().Get("HX-Redirect"))
	assert.Contains(t, rec.Header().Get("HX-Trigger"), "form:reset")
}

func TestClearCommunications(t *testing.T) {
	s := newTestServer(t, &stubAnalyzer{}, nil)
	c := sessionCookieFrom(t, do(s, http.MethodGet, "/", "", nil, nil))
	do(s, http.MethodPost, "/communications", form("cash flow"), []*http.Cookie{c}, nil)

	rec := do(s, http.MethodPost, "/communications/clear", "", []*http.Cookie{c}, map[string]string{"HX-Request": "true"})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("HX-Trigger"), "store:cleared")
	assert.Contains(t, rec.Body.String(), "No communications analyzed yet")
	assert.NotContains(t, rec.Body.String(), "<html")

	do(s, http.MethodPost, "/communications", form("cash flow"), []*http.Cookie{c}, nil)
	rec = do(s, http.MethodPost, "/communications/clear", "", []*http.Cookie{c}, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)

	st, ok := s.registry.Get(c.Value)
	require.True(t, ok)
	assert.Empty(t, st.Snapshot().Communications)
}

func TestDashboardPartial(t *testing.T) {
	s := newTestServer(t, &stubAnalyzer{}, nil)

	rec := do(s, http.MethodGet, "/ui/dashboard", "", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `id="dashboard"`)
	assert.NotContains(t, rec.Body.String(), "<html")
}

func TestAPIDashboard(t *testing.T) {
	s := newTestServer(t, &stubAnalyzer{}, nil)
	c := sessionCookieFrom(t, do(s, http.MethodGet, "/", "", nil, nil))

	empty := do(s, http.MethodGet, "/api/dashboard", "", []*http.Cookie{c}, nil)
	require.Equal(t, http.StatusOK, empty.Code)
	assert.Contains(t, empty.Body.String(), `"highPriorityInsights":[]`)

	do(s, http.MethodPost, "/communications", form("cash flow"), []*http.Cookie{c}, nil)
	rec := do(s, http.MethodGet, "/api/dashboard", "", []*http.Cookie{c}, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	var resp struct {
		Summary struct {
			IntentCounts    map[string]int `json:"intentCounts"`
			SentimentCounts map[string]int `json:"sentimentCounts"`
			TotalIntents    int            `json:"totalIntents"`
			TotalInsights   int            `json:"totalInsights"`
		} `json:"summary"`
		IntentChart struct {
			Labels   []string `json:"labels"`
			Datasets []struct {
				Label           string `json:"label"`
				Data            []int  `json:"data"`
				BackgroundColor any    `json:"backgroundColor"`
			} `json:"datasets"`
		} `json:"intentChart"`
		SentimentChart struct {
			Labels   []string `json:"labels"`
			Datasets []struct {
				Data            []int    `json:"data"`
				BackgroundColor []string `json:"backgroundColor"`
			} `json:"datasets"`
		} `json:"sentimentChart"`
		HighPriority []core.Insight `json:"highPriorityInsights"`
		Loading      bool           `json:"loading"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))

	assert.Equal(t, 1, resp.Summary.TotalIntents)
	assert.Equal(t, 1, resp.Summary.TotalInsights)
	assert.Equal(t, 1, resp.Summary.IntentCounts["cash_flow_concern"])
	assert.Equal(t, 1, resp.Summary.SentimentCounts["negative"])

	assert.Equal(t, []string{"Cash Flow", "Expenses", "Investment", "Revenue", "Budget", "Tax", "Debt"}, resp.IntentChart.Labels)
	require.Len(t, resp.IntentChart.Datasets, 1)
	assert.Equal(t, "Detected Intents", resp.IntentChart.Datasets[0].Label)
	assert.Equal(t, []int{1, 0, 0, 0, 0, 0, 0}, resp.IntentChart.Datasets[0].Data)
	assert.Equal(t, "#2196f3", resp.IntentChart.Datasets[0].BackgroundColor)

	assert.Equal(t, []string{"Positive", "Neutral", "Negative"}, resp.SentimentChart.Labels)
	require.Len(t, resp.SentimentChart.Datasets, 1)
	assert.Equal(t, []int{0, 0, 1}, resp.SentimentChart.Datasets[0].Data)
	assert.Equal(t, []string{"#4caf50", "#ff9800", "#f44336"}, resp.SentimentChart.Datasets[0].BackgroundColor)

	require.Len(t, resp.HighPriority, 1)
	assert.Equal(t, "Collections overdue", resp.HighPriority[0].Title)
	assert.False(t, resp.Loading)
}

func TestAPICommunications(t *testing.T) {
	s := newTestServer(t, &stubAnalyzer{}, nil)

	rec := do(s, http.MethodGet, "/api/communications", "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"communications":[],"insights":[],"loading":false}`, rec.Body.String())
}

func TestEndSession(t *testing.T) {
	s := newTestServer(t, &stubAnalyzer{}, nil)
	c := sessionCookieFrom(t, do(s, http.MethodGet, "/", "", nil, nil))
	require.Equal(t, 1, s.registry.Len())

	rec := do(s, http.MethodPost, "/session/end", "", []*http.Cookie{c}, nil)
	assert.Equal(t, http.StatusSeeOther, rec.Code)
	assert.Equal(t, -1, sessionCookieFrom(t, rec).MaxAge)
	assert.Equal(t, 0, s.registry.Len())
}

func TestHistory(t *testing.T) {
	t.Run("archive disabled", func(t *testing.T) {
		s := newTestServer(t, &stubAnalyzer{}, nil)
		rec := do(s, http.MethodGet, "/history", "", nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "Archive is not configured.")
	})

	t.Run("archived records", func(t *testing.T) {
		comm, _ := (&stubAnalyzer{}).Analyze(context.Background(), "archived cash flow note")
		records := []store.Record{{SessionID: "s1", Communication: comm, Insights: core.DeriveInsights(comm, nil)}}
		s := newTestServer(t, &stubAnalyzer{}, func(o *Options) { o.History = stubHistory{records: records} })

		rec := do(s, http.MethodGet, "/history?limit=5", "", nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		body := rec.Body.String()
		assert.Contains(t, body, "archived cash flow note")
		assert.Contains(t, body, "1 high priority")
		assert.Contains(t, body, "limit 5")
	})

	t.Run("archive error renders empty state", func(t *testing.T) {
		s := newTestServer(t, &stubAnalyzer{}, func(o *Options) { o.History = stubHistory{err: errors.New("db gone")} })
		rec := do(s, http.MethodGet, "/history", "", nil, nil)
		assert.Equal(t, http.StatusOK, rec.Code)
		assert.Contains(t, rec.Body.String(), "No communications analyzed yet")
	})
}

func TestOperationalEndpoints(t *testing.T) {
	metrics := NewAnalysisMetrics()
	s := newTestServer(t, &stubAnalyzer{}, func(o *Options) {
		o.Metrics = metrics
		o.Readiness = map[string]ReadinessCheck{
			"archive": func(context.Context) error { return errors.New("connection refused") },
			"broker":  func(context.Context) error { return nil },
		}
	})

	rec := do(s, http.MethodGet, "/healthz", "", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", rec.Body.String())

	rec = do(s, http.MethodGet, "/readyz", "", nil, nil)
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable","checks":{"archive":"connection refused","broker":"ok"}}`, rec.Body.String())

	metrics.Observe(nil, 20*time.Millisecond)
	metrics.Observe(errors.New("boom"), 40*time.Millisecond)
	do(s, http.MethodGet, "/", "", nil, nil)

	rec = do(s, http.MethodGet, "/metrics", "", nil, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var m metricsResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	assert.Equal(t, int64(1), m.Analysis.Succeeded)
	assert.Equal(t, int64(1), m.Analysis.Failed)
	assert.Equal(t, int64(30), m.Analysis.AverageDurationMs)
	assert.Equal(t, 1, m.Sessions.Active)
	assert.GreaterOrEqual(t, m.Requests.Total, int64(3))
}

func TestRateLimitOnlyAppliesToPosts(t *testing.T) {
	s := newTestServer(t, &stubAnalyzer{}, func(o *Options) { o.RateLimitPerMinute = 1 })

	assert.Equal(t, http.StatusSeeOther, do(s, http.MethodPost, "/communications", form("cash flow"), nil, nil).Code)
	limited := do(s, http.MethodPost, "/communications", form("cash flow"), nil, nil)
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "60", limited.Header().Get("Retry-After"))

	for i := 0; i < 3; i++ {
		assert.Equal(t, http.StatusOK, do(s, http.MethodGet, "/healthz", "", nil, nil).Code)
	}
}

func TestStaticAssets(t *testing.T) {
	s := newTestServer(t, &stubAnalyzer{}, nil)

	rec := do(s, http.MethodGet, "/static/app.css", "", nil, nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Cache-Control"), "max-age=3600")

	assert.Equal(t, http.StatusNotFound, do(s, http.MethodGet, "/nope", "", nil, nil).Code)
	assert.Equal(t, http.StatusMethodNotAllowed, do(s, http.MethodDelete, "/communications", "", nil, nil).Code)
}

func TestHandlersOutsideSessionPanic(t *testing.T) {
	s := newTestServer(t, &stubAnalyzer{}, nil)

	assert.Panics(t, func() {
		s.handleIndex(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/", nil))
	})
}
