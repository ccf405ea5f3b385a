package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/jpillora/backoff"

	"github.com/opentrade/tradefleet/pkg/log"
)

// Check is one readiness dependency: a bounded, retryable probe. Critical
// checks gate overall readiness; non-critical ones are advisory.
type Check struct {
	Name       string
	Critical   bool
	Timeout    time.Duration
	RetryCount int
	Fn         func(ctx context.Context) error
}

// CheckResult is the outcome of one check
type CheckResult struct {
	Name     string
	Critical bool
	OK       bool
	Err      error
	Attempts int
	Elapsed  time.Duration
}

// RunChecks executes all checks in parallel, each with its own timeout and
// retry budget. Ready is true only when every critical check passed.
func RunChecks(ctx context.Context, checks []Check) (results []CheckResult, ready bool) {
	results = make([]CheckResult, len(checks))
	var wg sync.WaitGroup

	for i, c := range checks {
		wg.Add(1)
		go func(i int, c Check) {
			defer wg.Done()
			results[i] = runCheck(ctx, c)
		}(i, c)
	}
	wg.Wait()

	ready = true
	for _, r := range results {
		if r.Critical && !r.OK {
			ready = false
		}
	}
	return results, ready
}

func runCheck(ctx context.Context, c Check) CheckResult {
	logger := log.WithComponent("depcheck")
	start := time.Now()
	b := &backoff.Backoff{Min: 250 * time.Millisecond, Max: 5 * time.Second, Factor: 2}

	var err error
	attempts := 0
	for attempts <= c.RetryCount {
		attempts++

		checkCtx := ctx
		var cancel context.CancelFunc
		if c.Timeout > 0 {
			checkCtx, cancel = context.WithTimeout(ctx, c.Timeout)
		}
		err = c.Fn(checkCtx)
		if cancel != nil {
			cancel()
		}
		if err == nil {
			return CheckResult{Name: c.Name, Critical: c.Critical, OK: true, Attempts: attempts, Elapsed: time.Since(start)}
		}

		if attempts <= c.RetryCount {
			select {
			case <-time.After(b.Duration()):
			case <-ctx.Done():
				attempts = c.RetryCount + 1
			}
		}
	}

	logger.Warn().Str("check", c.Name).Bool("critical", c.Critical).Err(err).Int("attempts", attempts).Msg("dependency check failed")
	return CheckResult{Name: c.Name, Critical: c.Critical, OK: false, Err: err, Attempts: attempts, Elapsed: time.Since(start)}
}
