package logger

import (
	"strings"
	"sync"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// RequestIDKey stores the request correlation identifier on a context.
type RequestIDKey struct{}

var (
	lg   *zap.Logger
	once sync.Once
)

// New returns the process-wide zap.Logger. Production gets JSON output;
// every other environment gets the colored development encoder.
func New(env string) (*zap.Logger, error) {
	var err error
	once.Do(func() {
		cfg := zap.NewProductionConfig()
		if env != "production" {
			cfg = zap.NewDevelopmentConfig()
			cfg.EncoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		}
		lg, err = cfg.Build()
	})
	return lg, err
}

// MaskIP coarsens a client address for audit logs: the first two octets
// of an IPv4 address or the first four groups of an IPv6 address survive.
func MaskIP(ip string) string {
	switch {
	case ip == "":
		return ""
	case strings.Contains(ip, "."):
		if parts := strings.Split(ip, "."); len(parts) == 4 {
			return parts[0] + "." + parts[1] + ".*.*"
		}
	case strings.Contains(ip, ":"):
		if parts := strings.Split(ip, ":"); len(parts) >= 4 {
			return strings.Join(parts[:4], ":") + ":*:*:*:*"
		}
	}
	return "***"
}

// MaskString keeps the first and last two characters of a sensitive
// value. Passwords never pass through here; they are never logged.
func MaskString(s string) string {
	if s == "" {
		return ""
	}
	if len(s) <= 4 {
		return "***"
	}
	return s[:2] + "***" + s[len(s)-2:]
}
