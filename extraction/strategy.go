package extraction

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"golang.org/x/time/rate"
)

// Strategy decides how a batch of chunks is scheduled against the extractor.
// The only implementations are Sequential and Parallel.
type Strategy interface {
	fmt.Stringer

	// run calls do(i) for every i in [0, n). When an index cannot be scheduled,
	// fail(i, err) is called instead. run returns once every index is settled.
	run(ctx context.Context, n int, do func(i int), fail func(i int, err error))
}

// Sequential processes chunks one at a time in input order, waiting at least
// delay between successive extractor calls. It exists for rate-limited
// providers and must be used wherever the throttle matters.
func Sequential(delay time.Duration) Strategy {
	return sequential{delay: delay}
}

// Parallel processes chunks on a bounded worker pool of maxConcurrency
// goroutines. Values below 1 are treated as 1.
func Parallel(maxConcurrency int) Strategy {
	if maxConcurrency < 1 {
		maxConcurrency = 1
	}
	return parallel{size: maxConcurrency}
}

type sequential struct {
	delay time.Duration
}

func (s sequential) String() string {
	return fmt.Sprintf("sequential(%s)", s.delay)
}

func (s sequential) run(ctx context.Context, n int, do func(int), fail func(int, error)) {
	var limiter *rate.Limiter
	if s.delay > 0 {
		limiter = rate.NewLimiter(rate.Every(s.delay), 1)
	}
	for i := range n {
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				for ; i < n; i++ {
					fail(i, err)
				}
				return
			}
		}
		do(i)
	}
}

type parallel struct {
	size int
}

func (p parallel) String() string {
	return fmt.Sprintf("parallel(%d)", p.size)
}

func (p parallel) run(ctx context.Context, n int, do func(int), fail func(int, error)) {
	pool, err := ants.NewPool(p.size)
	if err != nil {
		for i := range n {
			fail(i, err)
		}
		return
	}
	defer pool.Release()

	var wg sync.WaitGroup
	for i := range n {
		if err := ctx.Err(); err != nil {
			fail(i, err)
			continue
		}
		wg.Add(1)
		if err := pool.Submit(func() {
			defer wg.Done()
			do(i)
		}); err != nil {
			wg.Done()
			fail(i, err)
		}
	}
	wg.Wait()
}
