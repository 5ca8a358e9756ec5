package relayserver

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	log "github.com/sirupsen/logrus"

	"heartx/internal/domain"
	"heartx/internal/platform/ratelimiter"
	"heartx/internal/relay"
)

const identityKey = "heartx.identity"

// Authenticator validates the collaborator-issued credential for identity.
type Authenticator func(identity domain.Identity, token string) bool

// Server is the reference relay: gin routes over an in-memory State.
type Server struct {
	cfg     Config
	state   *State
	log     log.FieldLogger
	limiter *ratelimiter.PerKey
	metrics *metrics
	auth    Authenticator
	now     func() time.Time
	engine  *gin.Engine
}

// Option customises a Server.
type Option func(*Server)

// WithLogger sets the request logger.
func WithLogger(l log.FieldLogger) Option { return func(s *Server) { s.log = l } }

// WithClock sets the clock used for arrival and rate-limit timestamps.
func WithClock(now func() time.Time) Option { return func(s *Server) { s.now = now } }

// WithAuthenticator installs a credential check; the default trusts the identity header.
func WithAuthenticator(a Authenticator) Option { return func(s *Server) { s.auth = a } }

// New builds a Server from cfg.
func New(cfg Config, opts ...Option) *Server {
	gin.SetMode(gin.ReleaseMode)

	s := &Server{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(s)
	}
	if s.log == nil {
		l := log.New()
		l.SetLevel(log.WarnLevel)
		s.log = l
	}
	s.state = NewState(s.now)
	s.limiter = ratelimiter.New(cfg.Rate.RPS, cfg.Rate.Burst, 10*time.Minute)
	s.metrics = newMetrics(s.state)
	s.engine = s.routes()
	return s
}

// Handler returns the HTTP handler, for httptest and embedding.
func (s *Server) Handler() http.Handler { return s.engine }

// State exposes the backing store to tests in this module.
func (s *Server) State() *State { return s.state }

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Listen,
		Handler:           s.engine,
		ReadHeaderTimeout: 5 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.WithField("listen", s.cfg.Listen).Info("relay listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		return errors.Wrap(err, "relay serve")
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

func (s *Server) routes() *gin.Engine {
	r := gin.New()
	r.Use(gin.Recovery(), s.accessLog(), s.metrics.middleware())

	if s.cfg.Metrics {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(s.metrics.registry, promhttp.HandlerOpts{})))
	}
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusNoContent) })

	v1 := r.Group("", s.identify(), s.rateLimit())
	v1.PUT(relay.PathKeys, s.putKeys)
	v1.GET(relay.PathKeys, s.getKeys)
	v1.GET(relay.PathDirectory, s.getDirectory)
	v1.GET(relay.PathSlots, s.getSlots)
	v1.PUT(relay.PathSlots, s.putSlots)
	v1.GET(relay.PathInbox, s.getInbox)
	v1.POST(relay.PathClaims, s.postClaim)
	v1.GET(relay.PathClaims, s.getClaims)
	v1.POST(relay.PathReturns, s.postReturns)
	v1.GET(relay.PathReturns, s.getReturns)
	v1.POST(relay.PathMatches, s.postMatch)
	v1.GET(relay.PathMatches, s.getMatches)
	v1.PUT(relay.PathRecovery, s.putRecovery)
	v1.GET(relay.PathRecovery, s.getRecovery)
	v1.DELETE(relay.PathState, s.deleteState)
	return r
}

// accessLog records method, path, status, bytes and duration per request.
func (s *Server) accessLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		entry := s.log.WithFields(log.Fields{
			"method":   c.Request.Method,
			"path":     c.Request.URL.Path,
			"status":   c.Writer.Status(),
			"bytes":    c.Writer.Size(),
			"duration": time.Since(start).String(),
		})
		if c.Writer.Status() >= 500 {
			entry.Warn("request failed")
			return
		}
		entry.Debug("request")
	}
}

func (s *Server) identify() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := domain.Identity(strings.TrimSpace(c.GetHeader(relay.HeaderIdentity)))
		if id == "" {
			abort(c, http.StatusUnauthorized, "missing identity")
			return
		}
		token := strings.TrimPrefix(c.GetHeader(relay.HeaderAuthorization), "Bearer ")
		if s.auth != nil && !s.auth(id, token) {
			abort(c, http.StatusUnauthorized, "invalid credential")
			return
		}
		c.Set(identityKey, id)
		c.Next()
	}
}

func (s *Server) rateLimit() gin.HandlerFunc {
	return func(c *gin.Context) {
		cost := 1
		if c.Request.Method == http.MethodPost && c.FullPath() == relay.PathMatches {
			cost = 3
		}
		if !s.limiter.Allow(caller(c).String(), cost, s.now()) {
			s.metrics.limited.Inc()
			abort(c, http.StatusTooManyRequests, "slow down")
			return
		}
		c.Next()
	}
}

func caller(c *gin.Context) domain.Identity {
	id, _ := c.Get(identityKey)
	v, _ := id.(domain.Identity)
	return v
}

func abort(c *gin.Context, code int, msg string) {
	c.AbortWithStatusJSON(code, relay.ErrorBody{Error: msg})
}

// fail maps err onto a status code; unknown errors are 500 and logged.
func (s *Server) fail(c *gin.Context, err error) {
	code := http.StatusInternalServerError
	switch {
	case errors.Is(err, errBadRequest):
		code = http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		code = http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		code = http.StatusConflict
	case errors.Is(err, domain.ErrCapacityExceeded):
		code = http.StatusUnprocessableEntity
	case errors.Is(err, domain.ErrRejected):
		code = http.StatusForbidden
	}
	if code == http.StatusInternalServerError {
		s.log.WithError(err).Error("relay handler")
		abort(c, code, "internal error")
		return
	}
	abort(c, code, err.Error())
}
