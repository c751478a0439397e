package metrics

import (
    "net/http"
    "sync"
    "time"

    "github.com/prometheus/client_golang/prometheus"
    "github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
    strategyAttempts = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdfconsolidator",
            Name:      "strategy_attempts_total",
            Help:      "Strategy attempts by strategy and outcome",
        },
        []string{"strategy", "result"},
    )

    strategyLatency = prometheus.NewHistogramVec(
        prometheus.HistogramOpts{
            Namespace: "pdfconsolidator",
            Name:      "strategy_duration_seconds",
            Help:      "Duration of strategy attempts by strategy",
            Buckets:   []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20, 30, 60},
        },
        []string{"strategy"},
    )

    documentsProcessed = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdfconsolidator",
            Name:      "documents_processed_total",
            Help:      "Documents run through the strategy chain by pathology and result",
        },
        []string{"pathology", "result"},
    )

    placeholderPages = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdfconsolidator",
            Name:      "placeholder_pages_total",
            Help:      "Synthesized placeholder pages by reason",
        },
        []string{"reason"},
    )

    merges = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdfconsolidator",
            Name:      "merges_total",
            Help:      "Merge batches by result",
        },
        []string{"result"},
    )

    mergePages = prometheus.NewHistogram(
        prometheus.HistogramOpts{
            Namespace: "pdfconsolidator",
            Name:      "merge_pages",
            Help:      "Total pages of merged bundles",
            Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
        },
    )

    slotsInUse = prometheus.NewGauge(
        prometheus.GaugeOpts{
            Namespace: "pdfconsolidator",
            Name:      "external_slots_in_use",
            Help:      "External process slots currently held",
        },
    )

    breakerEvents = prometheus.NewCounterVec(
        prometheus.CounterOpts{
            Namespace: "pdfconsolidator",
            Name:      "breaker_events_total",
            Help:      "Circuit breaker events by tool and action",
        },
        []string{"tool", "action"},
    )
)

var once sync.Once

// Init registers collectors. Safe to call more than once.
func Init() {
    once.Do(func() {
        prometheus.MustRegister(strategyAttempts, strategyLatency, documentsProcessed, placeholderPages, merges, mergePages, slotsInUse, breakerEvents)
    })
}

// Handler returns the http.Handler for /metrics
func Handler() http.Handler { return promhttp.Handler() }

func ObserveStrategy(strategy, result string, dur time.Duration) {
    strategyAttempts.WithLabelValues(strategy, result).Inc()
    strategyLatency.WithLabelValues(strategy).Observe(dur.Seconds())
}

func IncDocument(pathology string, success bool) {
    documentsProcessed.WithLabelValues(pathology, resultLabel(success)).Inc()
}

func AddPlaceholders(reason string, n int) {
    if n > 0 { placeholderPages.WithLabelValues(reason).Add(float64(n)) }
}

func ObserveMerge(success bool, pages int) {
    merges.WithLabelValues(resultLabel(success)).Inc()
    if success { mergePages.Observe(float64(pages)) }
}

func SetSlotsInUse(n int64) { slotsInUse.Set(float64(n)) }

func BreakerOpened(tool string)  { breakerEvents.WithLabelValues(tool, "opened").Inc() }
func BreakerClosed(tool string)  { breakerEvents.WithLabelValues(tool, "closed").Inc() }
func BreakerSkipped(tool string) { breakerEvents.WithLabelValues(tool, "skipped").Inc() }

func resultLabel(ok bool) string { if ok { return "success" }; return "failure" }
