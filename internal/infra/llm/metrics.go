package llm

import (
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

type generatorMetrics struct {
	requests *prometheus.CounterVec
	duration *prometheus.HistogramVec
	length   *prometheus.HistogramVec
}

var (
	metricsInstance *generatorMetrics
	metricsOnce     sync.Once
)

// registerOrExisting returns the already registered collector when a test or
// second constructor registers the same metric twice.
func registerOrExisting[T prometheus.Collector](c T) T {
	if err := prometheus.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(T); ok {
				return existing
			}
		}
	}
	return c
}

func defaultGeneratorMetrics() *generatorMetrics {
	metricsOnce.Do(func() {
		metricsInstance = &generatorMetrics{
			requests: registerOrExisting(prometheus.NewCounterVec(prometheus.CounterOpts{
				Name: "llm_requests_total",
				Help: "Total number of LLM generation requests by provider and result",
			}, []string{"provider", "result"})),
			duration: registerOrExisting(prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "llm_request_duration_seconds",
				Help:    "LLM generation latency including retries",
				Buckets: []float64{0.5, 1, 2, 5, 10, 20, 30, 60},
			}, []string{"provider"})),
			length: registerOrExisting(prometheus.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "llm_output_length_characters",
				Help:    "Distribution of generated text lengths in characters",
				Buckets: []float64{50, 100, 200, 400, 800, 1600, 3200},
			}, []string{"provider"})),
		}
	})
	return metricsInstance
}

func (m *generatorMetrics) record(provider, result string, duration time.Duration, length int) {
	m.requests.WithLabelValues(provider, result).Inc()
	m.duration.WithLabelValues(provider).Observe(duration.Seconds())
	if length > 0 {
		m.length.WithLabelValues(provider).Observe(float64(length))
	}
}
