package http

import (
	"context"
	"html/template"
	"io/fs"
	"net/http"
	"strings"
	"sync"
	"time"

	"intentdash/internal/cache"
	"intentdash/internal/log"
	"intentdash/internal/middleware/ratelimit"
	"intentdash/internal/middleware/security"
	"intentdash/internal/middleware/trace"
	"intentdash/internal/store"
	appweb "intentdash/web"
)

// HistoryReader lists archived communications, newest first.
type HistoryReader interface {
	ListRecent(ctx context.Context, limit int) ([]store.Record, error)
}

// ReadinessCheck reports whether a dependency can serve traffic.
type ReadinessCheck func(ctx context.Context) error

// Options wires the server's collaborators. Registry is required.
type Options struct {
	Registry           *store.Registry
	History            HistoryReader
	Metrics            *AnalysisMetrics
	Readiness          map[string]ReadinessCheck
	RateLimitPerMinute int
	SessionTTL         time.Duration
	Location           *time.Location
	Logger             *log.Logger
}

type Server struct {
	http.Server
	templates *template.Template
	registry  *store.Registry
	history   HistoryReader
	readiness map[string]ReadinessCheck
	analysis  *AnalysisMetrics

	tracer       *trace.Middleware
	detector     *security.Detector
	limiter      *ratelimit.Limiter
	cacheManager *cache.Manager

	sessionTTL time.Duration
	location   *time.Location
	logger     *log.Logger

	shutdownOnce sync.Once
}

// NewServer configures routes, middleware and templates, returning a
// ready-to-run server. Session expiry runs in the background until Shutdown.
func NewServer(addr string, opts Options) *Server {
	logger := opts.Logger
	if logger == nil {
		logger = log.Discard()
	}
	if opts.Metrics == nil {
		opts.Metrics = NewAnalysisMetrics()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = 2 * time.Hour
	}

	mux := http.NewServeMux()
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadHeaderTimeout: 10 * time.Second,
		},
		registry:     opts.Registry,
		history:      opts.History,
		readiness:    opts.Readiness,
		analysis:     opts.Metrics,
		detector:     security.NewDetector(),
		limiter:      ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute, Methods: []string{http.MethodPost}}),
		cacheManager: cache.NewManager(logger),
		sessionTTL:   opts.SessionTTL,
		location:     opts.Location,
		logger:       logger.WithComponent(log.ComponentHTTP),
	}
	s.tracer = trace.NewMiddleware(s.detector.ExtractClientIP, logger)

	s.cacheManager.Register(s.registry.Cleaner())
	s.cacheManager.StartCleanup(time.Minute)

	// Parse embedded templates at startup.
	t, err := template.New("").Funcs(templateFuncs).ParseFS(appweb.TemplatesFS, "templates/*.html")
	if err != nil {
		s.logger.Warn("Failed parsing templates", log.FieldError, err.Error())
	} else {
		s.templates = t
	}

	// Static assets (served from embedded FS)
	if sub, err := fs.Sub(appweb.StaticFS, "static"); err == nil {
		static := http.StripPrefix("/static/", http.FileServer(http.FS(sub)))
		mux.Handle("GET /static/", security.StaticAssetMiddleware(3600)(static))
	} else {
		s.logger.Warn("Failed to mount embedded static FS", log.FieldError, err.Error())
	}

	// Pages
	mux.Handle("GET /{$}", s.withSession(s.handleIndex))
	mux.Handle("GET /ui/dashboard", s.withSession(s.handleDashboardBody))
	mux.Handle("GET /communication", s.withSession(s.handleCommunicationForm))
	mux.Handle("GET /history", http.HandlerFunc(s.handleHistory))

	// Actions
	mux.Handle("POST /communications", s.withSession(s.handleCreateCommunication))
	mux.Handle("POST /communications/clear", s.withSession(s.handleClearCommunications))
	mux.HandleFunc("POST /session/end", s.handleEndSession)

	// JSON API
	mux.Handle("GET /api/dashboard", s.withSession(s.handleAPIDashboard))
	mux.Handle("GET /api/communications", s.withSession(s.handleAPICommunications))

	// Operations
	mux.HandleFunc("GET /healthz", handleHealth)
	mux.HandleFunc("GET /readyz", s.handleReady)
	mux.HandleFunc("GET /metrics", s.handleMetrics)

	headers := security.NewHeadersMiddleware(security.DefaultHeadersConfig())
	limited := s.limiter.Middleware(s.detector.ExtractClientIP, s.onRateLimited)(mux)
	s.Handler = s.tracer.Middleware(headers.Middleware(s.detector.Middleware(logger)(limited)))

	return s
}

var templateFuncs = template.FuncMap{
	"upper": strings.ToUpper,
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	log.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		log.FieldClientIP, s.detector.ExtractClientIP(r),
		log.FieldMethod, r.Method,
		log.FieldPath, r.URL.Path)
	w.Header().Set("Retry-After", "60")
	http.Error(w, "Rate limit exceeded. Please try again later.", http.StatusTooManyRequests)
}

// Shutdown gracefully shuts down the server and its background routines
func (s *Server) Shutdown(ctx context.Context) error {
	var shutdownErr error

	s.shutdownOnce.Do(func() {
		s.cacheManager.Stop()
		s.limiter.Stop()
		shutdownErr = s.Server.Shutdown(ctx)
	})

	return shutdownErr
}
