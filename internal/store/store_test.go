package store

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"intentdash/internal/analysis"
	"intentdash/internal/core"
)

type fakeAnalyzer struct {
	mu    sync.Mutex
	calls int
	fn    func(ctx context.Context, text string) (core.Communication, error)
}

func (f *fakeAnalyzer) Analyze(ctx context.Context, text string) (core.Communication, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	return f.fn(ctx, text)
}

func echoAnalyzer() *fakeAnalyzer {
	n := 0
	var mu sync.Mutex
	return &fakeAnalyzer{fn: func(_ context.Context, text string) (core.Communication, error) {
		mu.Lock()
		n++
		id := "c" + strconv.Itoa(n)
		mu.Unlock()
		return core.Communication{ID: id, Text: text}, nil
	}}
}

type recorderFunc func(ctx context.Context, rec Record) error

func (f recorderFunc) Record(ctx context.Context, rec Record) error { return f(ctx, rec) }

func TestAdd_CashFlowScenario(t *testing.T) {
	analyzer := &fakeAnalyzer{fn: func(_ context.Context, text string) (core.Communication, error) {
		c := core.Communication{ID: "comm-1", Text: text}
		c.FinancialIntents.DetectedIntents = []core.DetectedIntent{{Description: "cash flow concern"}}
		c.FinancialIntents.Alerts = []core.Alert{{Message: "Collections overdue", Severity: "high"}}
		c.UrgencyAnalysis.Sentiment = "negative"
		return c, nil
	}}
	s := New(analyzer)

	s.Add(context.Background(), "We are worried about cash flow this month")

	snap := s.Snapshot()
	require.Len(t, snap.Communications, 1)
	require.Len(t, snap.Insights, 1)
	assert.False(t, snap.Loading)
	assert.Equal(t, "comm-1", snap.Insights[0].RelatedCommunication.ID)

	agg := snap.Summary()
	assert.Equal(t, 1, agg.Count(core.CashFlowConcern))
	assert.Equal(t, 1, agg.SentimentCounts.Negative)
	assert.Equal(t, 1, agg.TotalIntents)
	assert.Equal(t, 1, agg.HighPriorityInsights)
}

func TestAdd_FailureLeavesStateUnchanged(t *testing.T) {
	fail := false
	analyzer := &fakeAnalyzer{fn: func(_ context.Context, text string) (core.Communication, error) {
		if fail {
			return core.Communication{}, errors.New("service unavailable")
		}
		return core.Communication{ID: "ok", Text: text}, nil
	}}
	var observed []error
	s := New(analyzer, WithObserver(func(err error, _ time.Duration) { observed = append(observed, err) }))

	s.Add(context.Background(), "first")
	fail = true
	s.Add(context.Background(), "second")

	snap := s.Snapshot()
	assert.Len(t, snap.Communications, 1)
	assert.Empty(t, snap.Insights)
	assert.False(t, snap.Loading)
	require.Len(t, observed, 2)
	assert.NoError(t, observed[0])
	assert.Error(t, observed[1])
}

func TestAdd_ThreeAddsRecentInOrder(t *testing.T) {
	s := New(echoAnalyzer())
	for _, text := range []string{"one", "two", "three", "four"} {
		s.Add(context.Background(), text)
	}

	recent := core.Recent(s.Snapshot().Communications, 3)
	require.Len(t, recent, 3)
	assert.Equal(t, "two", recent[0].Text)
	assert.Equal(t, "three", recent[1].Text)
	assert.Equal(t, "four", recent[2].Text)
}

func TestAdd_AssignsMissingFields(t *testing.T) {
	analyzer := &fakeAnalyzer{fn: func(context.Context, string) (core.Communication, error) {
		c := core.Communication{}
		c.FinancialIntents.Suggestions = []core.Suggestion{{Message: "Pause marketing"}}
		return c, nil
	}}
	s := New(analyzer, WithIDFunc(func() string { return "ins" }))
	s.Add(context.Background(), "hello")

	snap := s.Snapshot()
	require.Len(t, snap.Communications, 1)
	c := snap.Communications[0]
	assert.NotEmpty(t, c.ID)
	assert.Equal(t, "hello", c.Text)
	assert.False(t, c.Timestamp.IsZero())
	require.Len(t, snap.Insights, 1)
	assert.Equal(t, c.ID, snap.Insights[0].RelatedCommunication.ID)
	assert.Equal(t, "ins", snap.Insights[0].ID)
}

func TestAdd_LoadingWhileInFlight(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	analyzer := &fakeAnalyzer{fn: func(_ context.Context, text string) (core.Communication, error) {
		close(started)
		<-release
		return core.Communication{ID: "x", Text: text}, nil
	}}
	s := New(analyzer)

	done := make(chan struct{})
	go func() {
		s.Add(context.Background(), "text")
		close(done)
	}()

	<-started
	assert.True(t, s.Loading())
	assert.True(t, s.Snapshot().Loading)
	close(release)
	<-done
	assert.False(t, s.Loading())
}

func TestAdd_PanickingAnalyzerClearsLoading(t *testing.T) {
	analyzer := &fakeAnalyzer{fn: func(context.Context, string) (core.Communication, error) {
		panic("analyzer exploded")
	}}
	s := New(analyzer)

	assert.Panics(t, func() { s.Add(context.Background(), "text") })

	assert.False(t, s.Loading())
	assert.Empty(t, s.Snapshot().Communications)

	analyzer.fn = func(_ context.Context, text string) (core.Communication, error) {
		return core.Communication{ID: "after", Text: text}, nil
	}
	s.Add(context.Background(), "text")
	snap := s.Snapshot()
	require.Len(t, snap.Communications, 1)
	assert.False(t, snap.Loading)
}

func TestClear_WinsOverInFlightAdd(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	analyzer := &fakeAnalyzer{fn: func(_ context.Context, text string) (core.Communication, error) {
		close(started)
		<-release
		c := core.Communication{ID: "late", Text: text}
		c.FinancialIntents.Alerts = []core.Alert{{Message: "late alert"}}
		return c, nil
	}}
	recorded := false
	s := New(analyzer, WithRecorder(recorderFunc(func(context.Context, Record) error {
		recorded = true
		return nil
	})))

	done := make(chan struct{})
	go func() {
		s.Add(context.Background(), "text")
		close(done)
	}()
	<-started
	s.Clear()
	close(release)
	<-done

	snap := s.Snapshot()
	assert.Empty(t, snap.Communications)
	assert.Empty(t, snap.Insights)
	assert.False(t, snap.Loading)
	assert.False(t, recorded, "discarded results are not archived")
}

func TestClear_Empties(t *testing.T) {
	s := New(echoAnalyzer())
	s.Add(context.Background(), "a")
	s.Clear()
	s.Add(context.Background(), "b")

	snap := s.Snapshot()
	require.Len(t, snap.Communications, 1)
	assert.Equal(t, "b", snap.Communications[0].Text)
}

func TestAdd_IgnoresCallerCancellation(t *testing.T) {
	analyzer := &fakeAnalyzer{fn: func(ctx context.Context, text string) (core.Communication, error) {
		if err := ctx.Err(); err != nil {
			return core.Communication{}, err
		}
		return core.Communication{ID: "x", Text: text}, nil
	}}
	s := New(analyzer)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	s.Add(ctx, "text")

	assert.Len(t, s.Snapshot().Communications, 1)
}

func TestAdd_RecordsWithSession(t *testing.T) {
	var got Record
	s := New(echoAnalyzer(),
		WithSessionID("sess-1"),
		WithRecorder(recorderFunc(func(_ context.Context, rec Record) error {
			got = rec
			return errors.New("archive down")
		})))

	s.Add(context.Background(), "text")

	assert.Equal(t, "sess-1", got.SessionID)
	assert.Equal(t, "text", got.Communication.Text)
	assert.Len(t, s.Snapshot().Communications, 1, "recorder errors do not affect state")
}

func TestSnapshot_IsACopy(t *testing.T) {
	s := New(echoAnalyzer())
	s.Add(context.Background(), "a")

	snap := s.Snapshot()
	snap.Communications[0].Text = "mutated"
	snap.Communications = append(snap.Communications, core.Communication{})

	again := s.Snapshot()
	require.Len(t, again.Communications, 1)
	assert.Equal(t, "a", again.Communications[0].Text)
}

func TestConcurrentAdds(t *testing.T) {
	s := New(echoAnalyzer())
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			s.Add(context.Background(), strconv.Itoa(i))
		}(i)
	}
	wg.Wait()

	snap := s.Snapshot()
	assert.Len(t, snap.Communications, 20)
	assert.False(t, snap.Loading)
}

func TestMustFromContext(t *testing.T) {
	assert.Panics(t, func() { MustFromContext(context.Background()) })

	s := New(echoAnalyzer())
	ctx := NewContext(context.Background(), s)
	assert.Same(t, s, MustFromContext(ctx))

	_, ok := FromContext(context.Background())
	assert.False(t, ok)
}

func TestAdd_LooselyTypedResponseIsAppended(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"financial_intents": {
				"detected_intents": [{"description": "revenue growth target", "urgency_score": "0.8"}],
				"revenue_actions": [{"type": "upsell", "target": 250000}],
				"expenditures": [{"type": "hiring", "amount": 90000}],
				"alerts": [], "suggestions": []
			},
			"urgency_analysis": {"sentiment": "positive", "confidence_score": "0.7"}
		}`))
	}))
	t.Cleanup(srv.Close)

	s := New(analysis.NewClient(srv.URL, 5*time.Second))
	s.Add(context.Background(), "We plan to grow revenue by 250k")

	snap := s.Snapshot()
	require.Len(t, snap.Communications, 1)
	require.Len(t, snap.Insights, 1)
	assert.False(t, snap.Loading)
	assert.Equal(t, "250000", snap.Communications[0].FinancialIntents.RevenueActions[0].Target)

	agg := snap.Summary()
	assert.Equal(t, 1, agg.Count(core.RevenueGrowth))
	assert.Equal(t, 1, agg.SentimentCounts.Positive)
}
