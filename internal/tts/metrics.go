package tts

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

// Prometheus metrics for TTS synthesis, surfaced through the control
// surface's health tool rather than a dedicated /metrics endpoint — the
// registry is still the standard client_golang DefaultRegisterer so it
// composes with any exporter a deployment wires up separately.
var (
	synthesisAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "podcaster_tts_synthesis_attempts_total",
		Help: "Total TTS synthesis calls by provider and outcome.",
	}, []string{"provider", "outcome"})

	synthesisRetries = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "podcaster_tts_synthesis_retries_total",
		Help: "Total retries issued while synthesizing a segment, by provider.",
	}, []string{"provider"})

	synthesisLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "podcaster_tts_synthesis_seconds",
		Help:    "Latency of a single segment synthesis call, by provider.",
		Buckets: prometheus.DefBuckets,
	}, []string{"provider"})

	providerHealthy = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "podcaster_tts_provider_healthy",
		Help: "1 if the provider's most recent synthesis call succeeded, 0 otherwise.",
	}, []string{"provider"})
)

func init() {
	prometheus.MustRegister(synthesisAttempts, synthesisRetries, synthesisLatency, providerHealthy)
}

// ProviderHealth is a point-in-time health snapshot for one TTS provider,
// returned by the control surface's get_service_health tool.
type ProviderHealth struct {
	Provider string  `json:"provider"`
	Healthy  bool    `json:"healthy"`
}

var (
	healthMu    sync.Mutex
	healthState = make(map[string]bool)
)

func recordOutcome(provider string, ok bool) {
	outcome := "success"
	if !ok {
		outcome = "failure"
	}
	synthesisAttempts.WithLabelValues(provider, outcome).Inc()
	healthValue := 0.0
	if ok {
		healthValue = 1.0
	}
	providerHealthy.WithLabelValues(provider).Set(healthValue)

	healthMu.Lock()
	healthState[provider] = ok
	healthMu.Unlock()
}

// HealthSnapshot returns the most recently observed health for each
// provider that has attempted at least one synthesis call.
func HealthSnapshot() []ProviderHealth {
	healthMu.Lock()
	defer healthMu.Unlock()
	out := make([]ProviderHealth, 0, len(healthState))
	for provider, ok := range healthState {
		out = append(out, ProviderHealth{Provider: provider, Healthy: ok})
	}
	return out
}
