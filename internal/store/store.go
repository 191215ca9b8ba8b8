// Package store holds the per-session IntentStore: the ordered communications
// submitted in a session and the insights derived from them.
package store

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"intentdash/internal/core"
	"intentdash/internal/log"
)

// Analyzer turns free text into an analyzed Communication.
type Analyzer interface {
	Analyze(ctx context.Context, text string) (core.Communication, error)
}

// Record is what a successful Add hands to the Recorder.
type Record struct {
	SessionID     string
	Communication core.Communication
	Insights      []core.Insight
}

// Recorder receives every communication accepted into a store. Errors are
// logged by the store and never affect session state.
type Recorder interface {
	Record(ctx context.Context, rec Record) error
}

// ResultObserver is called once per analysis call with its outcome.
type ResultObserver func(err error, elapsed time.Duration)

// Snapshot is a copy of the store contents. Callers own the slices.
type Snapshot struct {
	Communications []core.Communication
	Insights       []core.Insight
	Loading        bool
}

// Summary projects the snapshot through core.Summarize.
func (s Snapshot) Summary() core.SummaryAggregate {
	return core.Summarize(s.Communications, s.Insights)
}

type IntentStore struct {
	analyzer     Analyzer
	recorder     Recorder
	observer     ResultObserver
	logger       *log.Logger
	sessionID    string
	newCommID    func() string
	newInsightID func() string

	mu             sync.Mutex
	communications []core.Communication
	insights       []core.Insight
	inflight       int
	// generation is bumped by Clear; Adds started under an older generation
	// are discarded when they resolve.
	generation uint64
}

type Option func(*IntentStore)

func WithRecorder(r Recorder) Option {
	return func(s *IntentStore) { s.recorder = r }
}

func WithObserver(o ResultObserver) Option {
	return func(s *IntentStore) { s.observer = o }
}

func WithLogger(l *log.Logger) Option {
	return func(s *IntentStore) {
		if l != nil {
			s.logger = l
		}
	}
}

func WithSessionID(id string) Option {
	return func(s *IntentStore) { s.sessionID = id }
}

// WithIDFunc overrides insight id generation.
func WithIDFunc(f func() string) Option {
	return func(s *IntentStore) {
		if f != nil {
			s.newInsightID = f
		}
	}
}

// New returns an empty store that analyzes through analyzer.
func New(analyzer Analyzer, opts ...Option) *IntentStore {
	s := &IntentStore{
		analyzer:     analyzer,
		logger:       log.Discard(),
		newCommID:    uuid.NewString,
		newInsightID: core.NewInsightID,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentCommunications)
	return s
}

// SessionID is the id of the session owning the store, if any.
func (s *IntentStore) SessionID() string {
	return s.sessionID
}

// Add analyzes text and appends the result with its derived insights.
// Failures are logged and leave the store unchanged. The analysis call is
// detached from ctx cancellation; only the analyzer's own timeout ends it.
func (s *IntentStore) Add(ctx context.Context, text string) {
	s.mu.Lock()
	s.inflight++
	gen := s.generation
	s.mu.Unlock()

	// Released here on every exit that did not apply a result, panics included.
	settled := false
	defer func() {
		if !settled {
			s.done()
		}
	}()

	callCtx := context.WithoutCancel(ctx)
	start := time.Now()
	comm, err := s.analyzer.Analyze(callCtx, text)
	if s.observer != nil {
		s.observer(err, time.Since(start))
	}
	if err != nil {
		s.logger.ErrorContext(ctx, "Analysis failed, communication not added",
			log.FieldSessionID, s.sessionID,
			log.FieldTextLength, len(text),
			log.FieldError, err.Error())
		return
	}

	if comm.ID == "" {
		comm.ID = s.newCommID()
	}
	if comm.Text == "" {
		comm.Text = text
	}
	if comm.Timestamp.IsZero() {
		comm.Timestamp = time.Now()
	}
	comm.UrgencyAnalysis.Sentiment = comm.UrgencyAnalysis.Sentiment.Normalize()
	insights := core.DeriveInsights(comm, s.newInsightID)

	s.mu.Lock()
	stale := gen != s.generation
	if !stale {
		s.communications = append(s.communications, comm)
		s.insights = append(s.insights, insights...)
	}
	s.inflight--
	settled = true
	s.mu.Unlock()

	if stale {
		s.logger.WarnContext(ctx, "Store cleared while analysis was in flight, result discarded",
			log.FieldSessionID, s.sessionID,
			log.FieldCommunicationID, comm.ID,
			log.FieldGeneration, gen)
		return
	}

	log.NewStructuredLogger(s.logger).LogCommunicationAnalyzed(ctx, s.sessionID, comm.ID, len(comm.Text),
		len(comm.FinancialIntents.DetectedIntents), len(insights), string(comm.Sentiment()))

	if s.recorder != nil {
		rec := Record{SessionID: s.sessionID, Communication: comm, Insights: insights}
		if err := s.recorder.Record(callCtx, rec); err != nil {
			s.logger.ErrorContext(ctx, "Failed to record communication",
				log.FieldSessionID, s.sessionID,
				log.FieldCommunicationID, comm.ID,
				log.FieldError, err.Error())
		}
	}
}

func (s *IntentStore) done() {
	s.mu.Lock()
	s.inflight--
	s.mu.Unlock()
}

// Clear empties both sequences. Adds still in flight are discarded when they
// resolve.
func (s *IntentStore) Clear() {
	s.mu.Lock()
	s.communications = nil
	s.insights = nil
	s.generation++
	pending := s.inflight
	s.mu.Unlock()

	s.logger.Info("Store cleared",
		log.FieldSessionID, s.sessionID,
		log.FieldOperation, log.OpClear,
		"pending_adds", pending)
}

// Snapshot copies the current contents.
func (s *IntentStore) Snapshot() Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return Snapshot{
		Communications: append([]core.Communication(nil), s.communications...),
		Insights:       append([]core.Insight(nil), s.insights...),
		Loading:        s.inflight > 0,
	}
}

// Loading reports whether any Add is in flight.
func (s *IntentStore) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.inflight > 0
}
