package recaptcha

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/berkan-cetinkaya/simpleform-recaptcha/internal/settings"
)

var (
	decisionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recaptcha_decisions_total",
			Help: "Verification decisions, by variant, outcome and reason.",
		},
		[]string{"variant", "outcome", "reason"},
	)

	// Fail-open accepts; watch this to see how many submissions skipped verification.
	transportErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "recaptcha_transport_errors_total",
			Help: "Siteverify calls that could not complete, by failing step.",
		},
		[]string{"op"},
	)
)

func recordDecision(v settings.Variant, d Decision) {
	outcome := "accept"
	if !d.Accepted {
		outcome = "reject"
	} else if d.Err != nil {
		outcome = "fail_open"
	}
	decisionsTotal.WithLabelValues(string(v), outcome, string(d.Reason)).Inc()
}

func recordTransportError(op string) {
	transportErrorsTotal.WithLabelValues(op).Inc()
}
