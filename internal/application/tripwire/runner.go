package tripwire

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// TargetResult is the outcome of one target of a batch.
type TargetResult struct {
	Target   string
	Reports  []*Report
	Err      error
	Duration time.Duration
}

// ScanFunc scans a single target.
type ScanFunc func(ctx context.Context, target string) ([]*Report, error)

// DoneFunc is called as each target finishes, in completion order.
type DoneFunc func(result TargetResult)

// Runner scans a batch of independent targets with bounded concurrency and
// an optional start rate.
type Runner struct {
	Concurrency int // Maximum number of concurrent scans
	RateLimit   int // Targets started per second; 0 means unlimited
}

// Run scans every target and returns the results in input order. A failing
// target does not stop the others.
func (r *Runner) Run(ctx context.Context, targets []string, scan ScanFunc, onDone DoneFunc) []TargetResult {
	concurrency := r.Concurrency
	if concurrency < 1 {
		concurrency = 1
	}
	limit, burst := rate.Inf, 1
	if r.RateLimit > 0 {
		limit, burst = rate.Limit(r.RateLimit), r.RateLimit
	}
	limiter := rate.NewLimiter(limit, burst)

	// Worker pool; workers take targets in input order.
	jobs := make(chan int)
	var wg sync.WaitGroup
	var mu sync.Mutex
	results := make([]TargetResult, len(targets))

	for w := 0; w < concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range jobs {
				result := TargetResult{Target: targets[i]}
				if err := limiter.Wait(ctx); err != nil {
					result.Err = err
				} else {
					start := time.Now()
					result.Reports, result.Err = scan(ctx, targets[i])
					result.Duration = time.Since(start)
				}
				results[i] = result

				if onDone != nil {
					mu.Lock()
					onDone(result)
					mu.Unlock()
				}
			}
		}()
	}

	for i := range targets {
		jobs <- i
	}
	close(jobs)

	wg.Wait()
	return results
}
