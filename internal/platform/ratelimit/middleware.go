package ratelimit

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	dErrors "pharmatrace/pkg/domain-errors"
	"pharmatrace/pkg/platform/httputil"
	"pharmatrace/pkg/requestcontext"
)

// Limiter applies one limit per caller. The caller is the authenticated
// subject, or the client IP when there is none.
type Limiter struct {
	store  Store
	limit  int
	window time.Duration
	scope  string
	logger *slog.Logger
}

// NewLimiter returns a limiter for one endpoint scope. A limit of zero or
// less disables it.
func NewLimiter(store Store, scope string, limit int, window time.Duration, logger *slog.Logger) *Limiter {
	return &Limiter{store: store, scope: scope, limit: limit, window: window, logger: logger}
}

func (l *Limiter) key(r *http.Request) string {
	if sub := requestcontext.Subject(r.Context()); sub != "" {
		return l.scope + ":sub:" + sub
	}
	return l.scope + ":ip:" + requestcontext.ClientIP(r.Context())
}

// Middleware rejects callers over the limit with 429. Store failures let the
// request through.
func (l *Limiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if l == nil || l.limit <= 0 {
			next.ServeHTTP(w, r)
			return
		}
		ctx := r.Context()
		res, err := l.store.Allow(ctx, l.key(r), l.limit, l.window)
		if err != nil {
			l.logger.ErrorContext(ctx, "rate limit check failed",
				"scope", l.scope,
				"request_id", requestcontext.RequestID(ctx),
				"error", err,
			)
			next.ServeHTTP(w, r)
			return
		}

		h := w.Header()
		h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
		h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
		if !res.Allowed {
			retry := max(int(time.Until(res.ResetAt).Seconds()+0.5), 1)
			h.Set("Retry-After", strconv.Itoa(retry))
			l.logger.WarnContext(ctx, "rate limit exceeded",
				"scope", l.scope,
				"subject", requestcontext.Subject(ctx),
				"request_id", requestcontext.RequestID(ctx),
			)
			httputil.WriteError(w, dErrors.New(dErrors.CodeRateLimited, "too many requests, retry later"))
			return
		}
		next.ServeHTTP(w, r)
	})
}
