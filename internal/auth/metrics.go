package auth

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var authAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "auth_attempts_total",
	Help: "Authentication attempts by mode and result.",
}, []string{"mode", "result"})

// RecordAttempt counts an authentication attempt outcome.
func RecordAttempt(mode, result string) {
	authAttempts.WithLabelValues(mode, result).Inc()
}
