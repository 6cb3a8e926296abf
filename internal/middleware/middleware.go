package middleware

import (
	"context"
	"net/http"
	"strconv"

	"github.com/akolanti/docchat/internal/config"
	"github.com/akolanti/docchat/internal/handlers"
	"github.com/akolanti/docchat/internal/metrics"
	"github.com/akolanti/docchat/pkg/logger_i"
	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"
)

type requestResponseStruct struct {
	writer     http.ResponseWriter
	req        *http.Request
	badRequest failureStruct
	logger     *logger_i.Logger
}

type failureStruct struct {
	isBadRequest bool
	httpCode     int
	errorMessage string
}

type SessionResolver interface {
	Resolve(ctx context.Context, token string) (int64, bool)
}

type Config struct {
	Sessions SessionResolver
	// AuthToken is the static operator token; it identifies as user 0.
	AuthToken    string
	NoAuthBypass bool
	Limiter      *IPRateLimiter
}

// Chain runs every request through trace, identity, rate limit and the
// status recorder, in that order.
type Chain struct {
	sessions     SessionResolver
	authToken    string
	noAuthBypass bool
	limiter      *IPRateLimiter
	logger       *logger_i.Logger
}

func New(cfg Config) *Chain {
	return &Chain{
		sessions:     cfg.Sessions,
		authToken:    cfg.AuthToken,
		noAuthBypass: cfg.NoAuthBypass,
		limiter:      cfg.Limiter,
		logger:       logger_i.NewLogger("middleware"),
	}
}

func FromSettings(s *config.Settings, sessions SessionResolver) *Chain {
	return New(Config{
		Sessions:     sessions,
		AuthToken:    s.AuthToken,
		NoAuthBypass: s.NoAuthBypass,
		Limiter:      NewIPRateLimiter(rate.Limit(s.RateLimit), s.RateBurst),
	})
}

func (c *Chain) Handler(next http.Handler) http.Handler {
	return c.Wrap(next.ServeHTTP)
}

func (c *Chain) Wrap(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		rec := metrics.NewHttpStatusRecorder(w) //metrics
		re := c.processRequest(requestResponseStruct{req: r, writer: rec})

		if re.badRequest.isBadRequest {
			handleBadRequest(re)
		} else {
			next(rec, re.req)
		}

		metrics.HttpRequestsTotal.WithLabelValues(routeLabel(r), strconv.Itoa(rec.Status)).Inc() //metrics
	}
}

func (c *Chain) processRequest(re requestResponseStruct) requestResponseStruct {
	re.logger = c.logger
	re = injectTrace(re)
	if re.badRequest.isBadRequest {
		return re
	}
	re.logger.Debug("New request received", "method", re.req.Method, "path", re.req.URL.Path)
	re = c.identify(re)
	if re.badRequest.isBadRequest {
		return re //stop if auth fails
	}
	re = c.rateLimiter(re)
	return re
}

// RequireUser rejects anonymous callers. With the auth bypass on they act as user 0.
func (c *Chain) RequireUser(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if _, ok := config.UserID(r.Context()); !ok {
			if !c.noAuthBypass {
				handlers.WriteErrorResponse(w, http.StatusUnauthorized, config.TraceID(r.Context()), "Unauthorized")
				return
			}
			r = r.WithContext(config.WithUserID(r.Context(), 0))
		}
		next(w, r)
	}
}

// routeLabel keeps the metric label set bounded by using the chi pattern.
func routeLabel(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if p := rctx.RoutePattern(); p != "" {
			return p
		}
	}
	return r.URL.Path
}
