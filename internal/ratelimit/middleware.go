package ratelimit

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	limiter "github.com/ulule/limiter/v3"

	"github.com/noah-isme/cartkit/internal/common"
	"github.com/noah-isme/cartkit/internal/obs"
)

// Handler enforces a request budget per cart session.
type Handler struct {
	Limiter *limiter.Limiter
	// Key derives the budget key; SessionKey when nil.
	Key     func(*http.Request) string
	OnError func(error)
}

// SessionKey keys by the cart session header, falling back to the client address.
func SessionKey(r *http.Request) string {
	if session := strings.TrimSpace(r.Header.Get(obs.SessionHeader)); session != "" {
		return "session:" + session
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		host = r.RemoteAddr
	}
	return "addr:" + host
}

// Middleware rejects requests over budget with 429. Limiter failures let the
// request through.
func (h Handler) Middleware(next http.Handler) http.Handler {
	if h.Limiter == nil || h.Limiter.Rate.Limit <= 0 {
		return next
	}
	keyFn := h.Key
	if keyFn == nil {
		keyFn = SessionKey
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		key := keyFn(r)
		if key == "" {
			next.ServeHTTP(w, r)
			return
		}
		lctx, err := h.Limiter.Get(r.Context(), key)
		if err != nil {
			if h.OnError != nil {
				h.OnError(err)
			}
			next.ServeHTTP(w, r)
			return
		}

		headers := w.Header()
		headers.Set("X-RateLimit-Limit", strconv.FormatInt(lctx.Limit, 10))
		headers.Set("X-RateLimit-Remaining", strconv.FormatInt(lctx.Remaining, 10))
		headers.Set("X-RateLimit-Reset", strconv.FormatInt(lctx.Reset, 10))

		if lctx.Reached {
			retryAfter := int64(time.Until(time.Unix(lctx.Reset, 0)).Seconds())
			if retryAfter < 0 {
				retryAfter = 0
			}
			headers.Set("Retry-After", strconv.FormatInt(retryAfter, 10))
			common.JSONError(w, http.StatusTooManyRequests, "RATE_LIMITED", "too many cart requests", nil)
			return
		}
		next.ServeHTTP(w, r)
	})
}
