// File: internal/infra/metrics/metrics.go
package metrics

import (
	"strconv"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	dispatchesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sms_dispatches_total",
			Help: "Send attempts by outcome (sent/denied_per_number/denied_daily/relay_failed/not_member).",
		},
		[]string{"outcome"},
	)

	relayLatencyMs = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "relay_call_latency_ms",
			Help:    "Relay call latency distribution in milliseconds.",
			Buckets: []float64{10, 25, 50, 100, 200, 400, 800, 1600, 3000, 5000},
		},
		[]string{"success"},
	)

	updatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bot_updates_total",
			Help: "Inbound updates by kind (command/text/callback).",
		},
		[]string{"kind"},
	)

	bonusGrantedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bonus_granted_total",
			Help: "Bonus allowance units granted, by source (admin/referral).",
		},
		[]string{"source"},
	)

	quotaSweepResets = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "quota_sweep_resets_total",
			Help: "Stale daily counters zeroed by the sweep worker.",
		},
	)
)

// MustRegister registers collectors with the default registry (idempotent).
func MustRegister() {
	once.Do(func() {
		prometheus.MustRegister(
			dispatchesTotal, relayLatencyMs, updatesTotal,
			bonusGrantedTotal, quotaSweepResets,
		)
	})
}

func norm(s string) string { return strings.ToLower(strings.TrimSpace(s)) }

// -------- Send pipeline helpers --------

func IncDispatch(outcome string) {
	dispatchesTotal.WithLabelValues(norm(outcome)).Inc()
}

func ObserveRelayCall(latencyMs int64, success bool) {
	relayLatencyMs.WithLabelValues(strconv.FormatBool(success)).Observe(float64(latencyMs))
}

// -------- Bot helpers --------

func IncUpdate(kind string) {
	updatesTotal.WithLabelValues(norm(kind)).Inc()
}

func AddBonusGranted(source string, units int) {
	bonusGrantedTotal.WithLabelValues(norm(source)).Add(float64(units))
}

func AddSweepResets(n int64) {
	quotaSweepResets.Add(float64(n))
}
