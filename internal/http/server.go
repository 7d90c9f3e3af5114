package http

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	applog "fintrack/internal/log"
	"fintrack/internal/middleware/ratelimit"
	"fintrack/internal/middleware/security"
	"fintrack/internal/middleware/trace"
)

// maxBodyBytes bounds calculator request bodies.
const maxBodyBytes = 1 << 20

// Options configures a calculator server. Zero values pick defaults.
type Options struct {
	Logger *applog.Logger
	// RateLimitPerMinute caps requests per client; zero disables limiting.
	RateLimitPerMinute int
	// MaxProjectionDays bounds /project-balance horizons; zero disables the bound.
	MaxProjectionDays int
	// Location is the zone "today" is computed in. Defaults to time.Local.
	Location *time.Location
	// Clock overrides time.Now.
	Clock func() time.Time
}

// Server hosts one or more calculators on a single listener.
type Server struct {
	http.Server

	services          []Service
	logger            *applog.Logger
	traceMiddleware   *trace.Middleware
	rateLimiter       *ratelimit.Limiter
	detector          *security.Detector
	maxProjectionDays int
	location          *time.Location
	clock             func() time.Time
	startedAt         time.Time
	counters          map[Service]*serviceCounters

	shutdownOnce sync.Once
}

type serviceCounters struct {
	calculations     atomic.Int64
	validationErrors atomic.Int64
	internalErrors   atomic.Int64
}

// NewServer mounts services on a fresh mux and wires the middleware chain:
// trace, recover, request logger, probe detection, security headers, rate
// limit, body limit.
func NewServer(addr string, services []Service, opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = applog.Discard()
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}

	logger := opts.Logger.WithComponent(applog.ComponentHTTP)
	s := &Server{
		Server: http.Server{
			Addr:              addr,
			ReadTimeout:       10 * time.Second,
			ReadHeaderTimeout: 5 * time.Second,
			WriteTimeout:      10 * time.Second,
			IdleTimeout:       60 * time.Second,
			MaxHeaderBytes:    1 << 16,
		},
		services:          services,
		logger:            logger,
		traceMiddleware:   trace.NewMiddleware(opts.Logger, extractClientIP),
		detector:          security.NewDetector(extractClientIP),
		maxProjectionDays: opts.MaxProjectionDays,
		location:          opts.Location,
		clock:             opts.Clock,
		startedAt:         time.Now(),
		counters:          make(map[Service]*serviceCounters, len(services)),
	}
	if opts.RateLimitPerMinute > 0 {
		s.rateLimiter = ratelimit.NewLimiter(ratelimit.Config{RequestsPerMinute: opts.RateLimitPerMinute})
	}

	mux := http.NewServeMux()
	for _, svc := range services {
		s.counters[svc] = &serviceCounters{}
		mux.Handle(svc.Path(), s.calculatorHandler(svc))
	}
	mux.HandleFunc("/healthz", s.handleHealth)
	mux.HandleFunc("/readyz", s.handleReady)
	mux.HandleFunc("/metrics", s.handleMetrics)
	mux.HandleFunc("/", s.handleNotFound)

	var h http.Handler = mux
	h = security.MaxBodyMiddleware(maxBodyBytes)(h)
	if s.rateLimiter != nil {
		h = s.rateLimiter.Middleware(extractClientIP, s.onRateLimited)(h)
	}
	h = security.NewHeadersMiddleware(security.DefaultHeadersConfig()).Middleware(h)
	h = s.detector.Middleware(h)
	h = applog.Middleware(logger, trace.RequestID)(h)
	h = s.recoverMiddleware(h)
	h = s.traceMiddleware.Middleware(h)
	s.Handler = h

	return s
}

// Services returns the calculators mounted on this server.
func (s *Server) Services() []Service {
	return s.services
}

// Shutdown stops the rate limiter and drains the listener. Safe to call more
// than once.
func (s *Server) Shutdown(ctx context.Context) error {
	var err error
	s.shutdownOnce.Do(func() {
		if s.rateLimiter != nil {
			s.rateLimiter.Stop()
		}
		err = s.Server.Shutdown(ctx)
	})
	return err
}

func (s *Server) onRateLimited(w http.ResponseWriter, r *http.Request) {
	applog.FromContext(r.Context()).WarnContext(r.Context(), "Rate limit exceeded",
		applog.FieldClientIP, extractClientIP(r),
		applog.FieldPath, r.URL.Path)
	TooManyRequestsError().
		CorrelationID(trace.GetCorrelationID(r.Context())).
		Write(w)
}

// recoverMiddleware turns a panic outside the calculators into a JSON 500.
func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec == http.ErrAbortHandler {
					panic(rec)
				}
				s.logger.ErrorContext(r.Context(), "Panic while serving request",
					applog.FieldError, fmt.Sprint(rec),
					applog.FieldPath, r.URL.Path,
					applog.FieldRequestID, trace.GetCorrelationID(r.Context()))
				InternalServerError("Internal server error").
					CorrelationID(trace.GetCorrelationID(r.Context())).
					Write(w)
			}
		}()
		next.ServeHTTP(w, r)
	})
}
