package metrics

import (
	"strconv"
	"time"
)

// RecordHTTPRequest records an HTTP request with its metadata.
func RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	code := strconv.Itoa(status)
	HTTPRequestsTotal.WithLabelValues(method, path, code).Inc()
	HTTPRequestDuration.WithLabelValues(method, path, code).Observe(duration.Seconds())
}

// RecordDigestRun records the terminal status and duration of one pipeline run.
func RecordDigestRun(mode, result string, duration time.Duration) {
	DigestRunsTotal.WithLabelValues(mode, result).Inc()
	DigestRunDuration.WithLabelValues(mode).Observe(duration.Seconds())
}

// RecordStageFailure records a run that ended in Failed(stage).
func RecordStageFailure(stage string) {
	DigestStageFailuresTotal.WithLabelValues(stage).Inc()
}

// RecordArticlesFetched adds the deduplicated article count of one fetch.
func RecordArticlesFetched(count int) {
	if count > 0 {
		ArticlesFetchedTotal.Add(float64(count))
	}
}

// RecordTopicQueryError records a per-topic search query that failed.
func RecordTopicQueryError() {
	TopicQueryErrorsTotal.Inc()
}

// RecordSourceFilterFallback records a topic served from the unfiltered set.
func RecordSourceFilterFallback() {
	SourceFilterFallbackTotal.Inc()
}

// RecordArticlePersistFailure records a swallowed SaveBatch failure.
func RecordArticlePersistFailure() {
	ArticlePersistFailuresTotal.Inc()
}

// RecordSummary records one summarization outcome ("generated", "fallback", "cached").
// Duration is ignored for cached summaries.
func RecordSummary(status string, duration time.Duration) {
	ArticlesSummarizedTotal.WithLabelValues(status).Inc()
	if status != "cached" {
		SummarizationDuration.Observe(duration.Seconds())
	}
}

// RecordIntroduction records whether the digest introduction came from the model.
func RecordIntroduction(generated bool) {
	status := "generated"
	if !generated {
		status = "fallback"
	}
	IntroductionsTotal.WithLabelValues(status).Inc()
}

// RecordEmail records one delivery attempt.
func RecordEmail(mode, result string) {
	EmailsTotal.WithLabelValues(mode, result).Inc()
}

// RecordJob records the outcome of one delayed job.
func RecordJob(result string) {
	JobsProcessedTotal.WithLabelValues(result).Inc()
}

// RecordContentFetchSuccess records a successful content fetch.
func RecordContentFetchSuccess(duration time.Duration) {
	ContentFetchAttemptsTotal.WithLabelValues("success").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
}

// RecordContentFetchFailed records a failed content fetch.
func RecordContentFetchFailed(duration time.Duration) {
	ContentFetchAttemptsTotal.WithLabelValues("failure").Inc()
	ContentFetchDuration.Observe(duration.Seconds())
}

// RecordContentFetchSkipped records a fetch skipped because the provider
// snippet was already long enough.
func RecordContentFetchSkipped() {
	ContentFetchAttemptsTotal.WithLabelValues("skipped").Inc()
}
