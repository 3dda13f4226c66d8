package middleware

import (
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	// TraceIDHeader carries the trace identifier on requests and responses.
	TraceIDHeader = "X-Trace-ID"
	// TraceIDKey is the gin context key the trace identifier is stored under.
	TraceIDKey = "trace_id"
	// AccountIDKey is the gin context key for the authenticated account.
	AccountIDKey = "account_id"

	requestContextKey = "request_context"
)

// RequestContext bundles the request-scoped values handlers care about.
type RequestContext struct {
	TraceID   string
	AccountID string
	IP        string
	UserAgent string
}

// EnrichContext stamps each request with a trace identifier, echoing the
// caller's X-Trace-ID when present, and stashes a RequestContext.
func EnrichContext() gin.HandlerFunc {
	return func(c *gin.Context) {
		traceID := c.GetHeader(TraceIDHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}
		c.Set(TraceIDKey, traceID)
		c.Header(TraceIDHeader, traceID)

		c.Set(requestContextKey, &RequestContext{
			TraceID:   traceID,
			IP:        c.ClientIP(),
			UserAgent: c.Request.UserAgent(),
		})
		c.Next()
	}
}

// GetTraceID reads the trace identifier stamped by EnrichContext.
func GetTraceID(c *gin.Context) string {
	if v, ok := c.Get(TraceIDKey); ok {
		if id, ok := v.(string); ok {
			return id
		}
	}
	return ""
}

// GetRequestContext reads the RequestContext, returning an empty one
// when the middleware did not run.
func GetRequestContext(c *gin.Context) *RequestContext {
	if v, ok := c.Get(requestContextKey); ok {
		if reqCtx, ok := v.(*RequestContext); ok {
			return reqCtx
		}
	}
	return &RequestContext{}
}
