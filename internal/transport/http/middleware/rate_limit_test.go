package middleware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strconv"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"
)

type fakeAttemptStore struct {
	trimErr   error
	count     int
	countErr  error
	oldest    time.Time
	hasOldest bool
	oldestErr error
	recordErr error

	trimmedKeys []string
	recordedKey string
	recordCalls int
}

func (f *fakeAttemptStore) TrimWindow(_ context.Context, identifier string, _ time.Duration, _ time.Time) error {
	f.trimmedKeys = append(f.trimmedKeys, identifier)
	return f.trimErr
}

func (f *fakeAttemptStore) CountAttempts(context.Context, string, time.Duration, time.Time) (int, error) {
	return f.count, f.countErr
}

func (f *fakeAttemptStore) RecordAttempt(_ context.Context, identifier string, _ time.Time) error {
	f.recordedKey = identifier
	f.recordCalls++
	return f.recordErr
}

func (f *fakeAttemptStore) OldestAttempt(context.Context, string, time.Duration, time.Time) (time.Time, bool, error) {
	return f.oldest, f.hasOldest, f.oldestErr
}

func limitedRouter(limiter *RateLimiter, rule RateLimitRule) *gin.Engine {
	router := gin.New()
	router.Use(limiter.RateLimit(rule))
	router.POST("/login", func(c *gin.Context) {
		c.Status(http.StatusOK)
	})
	return router
}

func TestRateLimit_AllowsBelowLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	oldest := now.Add(-20 * time.Second)

	store := &fakeAttemptStore{count: 3, oldest: oldest, hasOldest: true}
	limiter := NewRateLimiter(store, zaptest.NewLogger(t)).WithClock(func() time.Time { return now })

	router := limitedRouter(limiter, RateLimitRule{
		Name:   "login",
		Limit:  10,
		Window: time.Minute,
		Identifier: func(c *gin.Context) (string, bool) {
			return "203.0.113.9", true
		},
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if store.recordCalls != 1 {
		t.Fatalf("expected the attempt recorded once, got %d", store.recordCalls)
	}
	if store.recordedKey != "login:203.0.113.9" {
		t.Fatalf("expected the key scoped by rule name, got %q", store.recordedKey)
	}
	if got := rr.Header().Get("X-RateLimit-Limit"); got != "10" {
		t.Fatalf("expected limit header 10, got %q", got)
	}
	if got := rr.Header().Get("X-RateLimit-Remaining"); got != "6" {
		t.Fatalf("expected remaining header 6, got %q", got)
	}
	if want := strconv.FormatInt(oldest.Add(time.Minute).Unix(), 10); rr.Header().Get("X-RateLimit-Reset") != want {
		t.Fatalf("expected reset header %s, got %q", want, rr.Header().Get("X-RateLimit-Reset"))
	}
}

func TestRateLimit_BlocksAtLimit(t *testing.T) {
	gin.SetMode(gin.TestMode)

	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	oldest := now.Add(-45 * time.Second)

	store := &fakeAttemptStore{count: 5, oldest: oldest, hasOldest: true}
	limiter := NewRateLimiter(store, zaptest.NewLogger(t)).WithClock(func() time.Time { return now })

	router := limitedRouter(limiter, RateLimitRule{
		Name:   "login",
		Limit:  5,
		Window: time.Minute,
		Identifier: func(c *gin.Context) (string, bool) {
			return "203.0.113.9", true
		},
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))

	if rr.Code != http.StatusTooManyRequests {
		t.Fatalf("expected 429, got %d", rr.Code)
	}
	if store.recordCalls != 0 {
		t.Fatalf("blocked requests must not be recorded, got %d calls", store.recordCalls)
	}
	if got := rr.Header().Get("Retry-After"); got != "15" {
		t.Fatalf("expected retry-after 15, got %q", got)
	}

	var problem ProblemDetails
	if err := json.Unmarshal(rr.Body.Bytes(), &problem); err != nil {
		t.Fatalf("failed to decode body: %v", err)
	}
	if problem.Type != rateLimitProblemType {
		t.Fatalf("unexpected problem type %q", problem.Type)
	}
	if problem.Status != http.StatusTooManyRequests || problem.RetryAfter != 15 {
		t.Fatalf("unexpected problem payload: %+v", problem)
	}
}

func TestRateLimit_FailsOpenOnStoreError(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := &fakeAttemptStore{countErr: errors.New("redis unreachable")}
	limiter := NewRateLimiter(store, zaptest.NewLogger(t))

	router := limitedRouter(limiter, RateLimitRule{
		Name:   "login",
		Limit:  5,
		Window: time.Minute,
		Identifier: func(c *gin.Context) (string, bool) {
			return "203.0.113.9", true
		},
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected fail-open 200, got %d", rr.Code)
	}
}

func TestRateLimit_SkipsWhenIdentifierUnavailable(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := &fakeAttemptStore{count: 100}
	limiter := NewRateLimiter(store, zaptest.NewLogger(t))

	router := limitedRouter(limiter, RateLimitRule{
		Name:   "login",
		Limit:  1,
		Window: time.Minute,
		Identifier: func(c *gin.Context) (string, bool) {
			return "", false
		},
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 when no identifier resolves, got %d", rr.Code)
	}
	if len(store.trimmedKeys) != 0 {
		t.Fatalf("expected the store untouched, trimmed %v", store.trimmedKeys)
	}
}

func TestRateLimit_IgnoresInvalidRules(t *testing.T) {
	gin.SetMode(gin.TestMode)

	store := &fakeAttemptStore{count: 100}
	limiter := NewRateLimiter(store, zaptest.NewLogger(t))

	// Zero limit and zero window rules are dropped at construction.
	router := limitedRouter(limiter, RateLimitRule{
		Name:       "broken",
		Limit:      0,
		Window:     0,
		Identifier: ClientIPIdentifier(),
	})

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodPost, "/login", nil))

	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 with no active rules, got %d", rr.Code)
	}
}
