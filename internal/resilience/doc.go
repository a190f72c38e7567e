// Package resilience groups the fault tolerance helpers used around every
// upstream call the digest pipeline makes (article search, language models,
// transactional mail, article page fetches).
//
//   - circuitbreaker wraps sony/gobreaker with per-upstream presets
//   - retry implements exponential backoff with jitter
//
// Usage Example:
//
//	cb := circuitbreaker.New(circuitbreaker.SearchAPIConfig())
//	err := retry.WithBackoff(ctx, retry.SearchAPIConfig(), func() error {
//	    _, err := cb.Execute(func() (interface{}, error) {
//	        return nil, callSearchAPI(ctx)
//	    })
//	    return err
//	})
package resilience
