// Package metrics provides centralized Prometheus metrics for the application.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// HTTP metrics track HTTP request patterns and performance
var (
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)

// Digest pipeline metrics
var (
	// DigestRunsTotal counts pipeline runs by mode and terminal status
	// (sent, no_articles, failed, duplicate).
	DigestRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_runs_total",
			Help: "Total number of digest pipeline runs by mode and result",
		},
		[]string{"mode", "result"},
	)

	DigestRunDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "digest_run_duration_seconds",
			Help:    "End-to-end duration of a digest pipeline run",
			Buckets: []float64{1, 2.5, 5, 10, 20, 40, 80, 160, 320},
		},
		[]string{"mode"},
	)

	// DigestStageFailuresTotal counts Failed results by stage (fetch, persist, deliver).
	DigestStageFailuresTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_stage_failures_total",
			Help: "Total number of digest runs that failed, by stage",
		},
		[]string{"stage"},
	)

	ArticlesFetchedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "digest_articles_fetched_total",
			Help: "Total number of articles returned by topic fetches after dedup",
		},
	)

	TopicQueryErrorsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "digest_topic_query_errors_total",
			Help: "Total number of failed per-topic search queries",
		},
	)

	// SourceFilterFallbackTotal counts topics where no result matched the
	// preferred sources and the recency-eligible set was used instead.
	SourceFilterFallbackTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "digest_source_filter_fallback_total",
			Help: "Total number of topics served from the unfiltered fallback set",
		},
	)

	ArticlePersistFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "digest_article_persist_failures_total",
			Help: "Total number of swallowed article batch save failures",
		},
	)

	// ArticlesSummarizedTotal counts summaries by status: generated, fallback, cached.
	ArticlesSummarizedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_articles_summarized_total",
			Help: "Total number of article summaries by status",
		},
		[]string{"status"},
	)

	SummarizationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "digest_summarization_duration_seconds",
			Help:    "Time taken to summarize one article",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 10),
		},
	)

	// IntroductionsTotal counts digest introductions by status: generated, fallback.
	IntroductionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_introductions_total",
			Help: "Total number of digest introductions by status",
		},
		[]string{"status"},
	)

	// EmailsTotal counts delivery attempts by mode and result: sent, failed, preview.
	EmailsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_emails_total",
			Help: "Total number of digest emails by mode and result",
		},
		[]string{"mode", "result"},
	)

	// JobsProcessedTotal counts delayed jobs by result: done, failed, rescheduled.
	JobsProcessedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "digest_jobs_processed_total",
			Help: "Total number of delayed digest jobs processed by result",
		},
		[]string{"result"},
	)
)

// Content enhancement metrics
var (
	// ContentFetchAttemptsTotal counts content fetch attempts by result
	ContentFetchAttemptsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "content_fetch_attempts_total",
			Help: "Total number of content fetch attempts",
		},
		[]string{"result"}, // result: success, failure, skipped
	)

	ContentFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "content_fetch_duration_seconds",
			Help:    "Time taken to fetch article content",
			Buckets: []float64{0.1, 0.2, 0.4, 0.8, 1.6, 3.2, 6.4, 12.8},
		},
	)
)
