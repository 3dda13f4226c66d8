package telemetry

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/arklim/credential-authority/internal/infra/config"
)

// Provider holds the service metrics handles. Request-level HTTP metrics
// live in the transport middleware; these cover domain outcomes.
type Provider struct {
	loginAttempts    *prometheus.CounterVec
	lockoutsEngaged  prometheus.Counter
	policyRejections prometheus.Counter
	hashDuration     prometheus.Histogram
}

// Attach registers the service metrics and returns a provider handle.
func Attach(_ context.Context, cfg *config.AppConfig) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is nil")
	}

	return &Provider{
		loginAttempts: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "authority",
			Name:      "login_attempts_total",
			Help:      "Login attempts by outcome",
		}, []string{"outcome"}),
		lockoutsEngaged: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "authority",
			Name:      "lockouts_engaged_total",
			Help:      "Account lockouts engaged after repeated failures",
		}),
		policyRejections: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: "authority",
			Name:      "policy_rejections_total",
			Help:      "Password candidates rejected by policy",
		}),
		hashDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: "authority",
			Name:      "password_hash_duration_seconds",
			Help:      "Time spent deriving password digests",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
	}, nil
}

// ObserveLogin records a login attempt outcome ("issued", "rejected",
// "locked", "must_change").
func (p *Provider) ObserveLogin(outcome string) {
	if p == nil {
		return
	}
	p.loginAttempts.WithLabelValues(outcome).Inc()
}

// ObserveLockout records a lockout engaging.
func (p *Provider) ObserveLockout() {
	if p == nil {
		return
	}
	p.lockoutsEngaged.Inc()
}

// ObservePolicyRejection records a password candidate failing validation.
func (p *Provider) ObservePolicyRejection() {
	if p == nil {
		return
	}
	p.policyRejections.Inc()
}

// ObserveHashDuration records one digest derivation in seconds.
func (p *Provider) ObserveHashDuration(seconds float64) {
	if p == nil {
		return
	}
	p.hashDuration.Observe(seconds)
}
