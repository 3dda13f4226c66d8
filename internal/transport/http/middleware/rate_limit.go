package middleware

import (
	"context"
	"fmt"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

const (
	rateLimitProblemType  = "https://authority.example.com/errors/rate-limit-exceeded"
	rateLimitProblemTitle = "Rate Limit Exceeded"
)

// RateLimitStore is the sliding-window persistence the limiter runs on.
type RateLimitStore interface {
	TrimWindow(ctx context.Context, identifier string, window time.Duration, reference time.Time) error
	CountAttempts(ctx context.Context, identifier string, window time.Duration, reference time.Time) (int, error)
	RecordAttempt(ctx context.Context, identifier string, at time.Time) error
	OldestAttempt(ctx context.Context, identifier string, window time.Duration, reference time.Time) (time.Time, bool, error)
}

// IdentifierFunc extracts the value a rule keys its window on, typically
// the client IP. Returning false skips the rule for this request.
type IdentifierFunc func(*gin.Context) (string, bool)

// RateLimitRule is one named sliding-window limit.
type RateLimitRule struct {
	Name       string
	Limit      int
	Window     time.Duration
	Identifier IdentifierFunc
}

// RateLimiter enforces sliding-window limits backed by a RateLimitStore.
// Store failures fail open: the credential checks behind the limiter are
// the real protection.
type RateLimiter struct {
	store  RateLimitStore
	logger *zap.Logger
	now    func() time.Time
}

// verdict is the outcome of evaluating a single rule for one request.
type verdict struct {
	rule       RateLimitRule
	allowed    bool
	limit      int
	remaining  int
	reset      time.Time
	retryAfter time.Duration
	identifier string
	storageKey string
}

// ProblemDetails is the RFC 9457 payload returned on a rejected request.
type ProblemDetails struct {
	Type       string         `json:"type"`
	Title      string         `json:"title"`
	Status     int            `json:"status"`
	Detail     string         `json:"detail"`
	Instance   string         `json:"instance"`
	RetryAfter int            `json:"retry_after"`
	TraceID    string         `json:"trace_id,omitempty"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

// NewRateLimiter builds a reusable rate limiter middleware helper.
func NewRateLimiter(store RateLimitStore, logger *zap.Logger) *RateLimiter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RateLimiter{store: store, logger: logger, now: time.Now}
}

// WithClock swaps the limiter's clock, mainly for tests.
func (rl *RateLimiter) WithClock(now func() time.Time) *RateLimiter {
	if now != nil {
		rl.now = now
	}
	return rl
}

// ClientIPIdentifier keys a rule on the request's client IP.
func ClientIPIdentifier() IdentifierFunc {
	return func(c *gin.Context) (string, bool) {
		ip := c.ClientIP()
		return ip, ip != ""
	}
}

// RateLimit returns a Gin middleware enforcing the provided rules.
// Rules without an identifier, a positive limit, or a positive window
// are dropped up front.
func (rl *RateLimiter) RateLimit(rules ...RateLimitRule) gin.HandlerFunc {
	active := make([]RateLimitRule, 0, len(rules))
	for _, rule := range rules {
		if rule.Identifier == nil || rule.Limit <= 0 || rule.Window <= 0 {
			continue
		}
		if rule.Name == "" {
			rule.Name = "default"
		}
		active = append(active, rule)
	}

	return func(c *gin.Context) {
		if len(active) == 0 || rl.store == nil {
			c.Next()
			return
		}

		now := rl.now()
		var tightest *verdict

		for _, rule := range active {
			identifier, ok := rule.Identifier(c)
			if !ok || identifier == "" {
				continue
			}
			key := fmt.Sprintf("%s:%s", rule.Name, identifier)

			v, err := rl.evaluate(c.Request.Context(), rule, identifier, key, now)
			if err != nil {
				rl.logger.Warn("rate limit check failed",
					zap.String("rule", rule.Name),
					zap.String("identifier", identifier),
					zap.Error(err),
				)
				continue
			}

			if tightest == nil || v.tighterThan(*tightest) {
				snapshot := v
				tightest = &snapshot
			}

			if !v.allowed {
				rl.writeHeaders(c, v)
				rl.reject(c, v)
				return
			}
		}

		if tightest != nil {
			rl.writeHeaders(c, *tightest)
		}
		c.Next()
	}
}

func (rl *RateLimiter) evaluate(ctx context.Context, rule RateLimitRule, identifier, key string, now time.Time) (verdict, error) {
	if err := rl.store.TrimWindow(ctx, key, rule.Window, now); err != nil {
		return verdict{}, err
	}
	count, err := rl.store.CountAttempts(ctx, key, rule.Window, now)
	if err != nil {
		return verdict{}, err
	}
	oldest, hasAttempts, err := rl.store.OldestAttempt(ctx, key, rule.Window, now)
	if err != nil {
		return verdict{}, err
	}

	v := verdict{
		rule:       rule,
		limit:      rule.Limit,
		identifier: identifier,
		storageKey: key,
		reset:      now.Add(rule.Window),
		allowed:    true,
	}
	if hasAttempts {
		v.reset = oldest.Add(rule.Window)
	}

	if count >= rule.Limit {
		v.allowed = false
		v.remaining = 0
		v.retryAfter = max(v.reset.Sub(now), 0)
		return v, nil
	}

	if err := rl.store.RecordAttempt(ctx, key, now); err != nil {
		return verdict{}, err
	}

	v.remaining = max(rule.Limit-count-1, 0)
	v.retryAfter = max(v.reset.Sub(now), 0)
	if !hasAttempts {
		v.reset = now.Add(rule.Window)
	}
	return v, nil
}

// tighterThan reports whether v should drive the response headers over
// current: rejections win, then lower remaining, then earlier reset.
func (v verdict) tighterThan(current verdict) bool {
	if !v.allowed && current.allowed {
		return true
	}
	if v.allowed != current.allowed {
		return false
	}
	if v.remaining != current.remaining {
		return v.remaining < current.remaining
	}
	return v.reset.Before(current.reset)
}

func (rl *RateLimiter) writeHeaders(c *gin.Context, v verdict) {
	headers := c.Writer.Header()
	headers.Set("X-RateLimit-Limit", strconv.Itoa(v.limit))
	headers.Set("X-RateLimit-Remaining", strconv.Itoa(max(v.remaining, 0)))
	headers.Set("X-RateLimit-Reset", strconv.FormatInt(v.reset.Unix(), 10))

	if !v.allowed {
		headers.Set("Retry-After", strconv.Itoa(retrySeconds(v.retryAfter)))
	}
}

func (rl *RateLimiter) reject(c *gin.Context, v verdict) {
	seconds := retrySeconds(v.retryAfter)
	instance := c.FullPath()
	if instance == "" {
		instance = c.Request.URL.Path
	}

	c.AbortWithStatusJSON(http.StatusTooManyRequests, ProblemDetails{
		Type:       rateLimitProblemType,
		Title:      rateLimitProblemTitle,
		Status:     http.StatusTooManyRequests,
		Detail:     fmt.Sprintf("Too many requests. Try again in %d seconds.", seconds),
		Instance:   instance,
		RetryAfter: seconds,
		TraceID:    GetTraceID(c),
	})
}

func retrySeconds(d time.Duration) int {
	return max(int(math.Ceil(d.Seconds())), 0)
}
