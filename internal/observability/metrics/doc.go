// Package metrics provides the Prometheus collectors shared by the digest API
// and worker, plus small recorder helpers.
//
// All collectors register with the default registry and are exposed on /metrics.
//
//	start := time.Now()
//	result := pipeline.RunDigest(ctx, user, mode, limit)
//	metrics.RecordDigestRun(string(mode), string(result.Status), time.Since(start))
package metrics
