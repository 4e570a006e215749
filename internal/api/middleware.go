package api

import (
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/vaultbank/ledger-service/internal/app"
)

// RateLimitMiddleware enforces a fixed-window budget per account number on
// the wrapped routes. A nil limiter or non-positive limit disables the
// check. Limiter failures fail open: a broken Redis must not take down
// mutations.
func RateLimitMiddleware(h *LedgerHandlers, limiter app.RateLimiter, scope string, limit int, window time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if limiter == nil || limit <= 0 {
				next.ServeHTTP(w, r)
				return
			}

			accountNumber := strings.TrimSpace(chi.URLParam(r, "accountNumber"))
			count, retryAfter, err := limiter.ConsumeRateLimit(r.Context(), scope, accountNumber, limit, window)
			if err != nil {
				log.Printf("level=warn component=api msg=\"rate limiter unavailable; allowing request\" account_number=%s err=%v", accountNumber, err)
				next.ServeHTTP(w, r)
				return
			}
			if count > limit {
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				h.writeError(w, http.StatusTooManyRequests, "Too many requests for this account. Please slow down.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
