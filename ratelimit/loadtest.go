package ratelimit

import (
	"context"
	"time"

	"golang.org/x/time/rate"
)

// LoadTestResult reports a synthetic run against a fresh limiter.
type LoadTestResult struct {
	Requests int
	Allowed  int
	Blocked  int
	Elapsed  time.Duration
}

// RunLoadTest drives requests admissions for a single key through a fresh
// Limiter built from cfg, paced at perSecond requests per second (zero or
// negative means unpaced). The run stops early if ctx ends; counts cover
// the admissions made up to that point.
func RunLoadTest(ctx context.Context, cfg Config, requests int, perSecond float64) (LoadTestResult, error) {
	limit := rate.Inf
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
	}
	pacer := rate.NewLimiter(limit, 1)

	l := New(cfg)
	start := time.Now()
	var result LoadTestResult

	const key = "loadtest"
	for i := 0; i < requests; i++ {
		if err := pacer.Wait(ctx); err != nil {
			result.Elapsed = time.Since(start)
			return result, err
		}
		result.Requests++
		if l.CheckAndHit(key) {
			result.Allowed++
		} else {
			result.Blocked++
		}
	}

	result.Elapsed = time.Since(start)
	return result, nil
}
