package upload

import (
	"context"
	"sync"
	"time"
)

type raceResult struct {
	service string
	url     string
}

// firstSuccess races speculative background retries against the sequential
// attempt loop. Unlike a race-to-first-settle, failures are swallowed: the
// race resolves only on the first success, or reports exhaustion once every
// launched operation has settled unsuccessfully.
type firstSuccess struct {
	mu       sync.Mutex
	launched int
	settled  int
	win      *raceResult
	ping     chan struct{}
}

func newFirstSuccess() *firstSuccess {
	return &firstSuccess{ping: make(chan struct{}, 1)}
}

// launch starts one background operation after a stagger delay. The result is
// recorded only if it is the first success; later results are discarded.
func (f *firstSuccess) launch(ctx context.Context, service string, stagger time.Duration, operation func(context.Context) (string, error)) {
	f.mu.Lock()
	f.launched++
	f.mu.Unlock()

	go func() {
		select {
		case <-ctx.Done():
			f.settle(nil)
			return
		case <-time.After(stagger):
		}

		url, err := operation(ctx)
		if err != nil {
			f.settle(nil)
			return
		}
		f.settle(&raceResult{service: service, url: url})
	}()
}

func (f *firstSuccess) settle(result *raceResult) {
	f.mu.Lock()
	f.settled++
	if result != nil && f.win == nil {
		f.win = result
	}
	f.mu.Unlock()

	select {
	case f.ping <- struct{}{}:
	default:
	}
}

// winner returns the first successful result without blocking.
func (f *firstSuccess) winner() (raceResult, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.win != nil {
		return *f.win, true
	}
	return raceResult{}, false
}

// wait blocks until a success arrives, every launched operation has settled
// unsuccessfully, the grace window elapses, or ctx is cancelled. With nothing
// launched it returns immediately.
func (f *firstSuccess) wait(ctx context.Context, grace time.Duration) (raceResult, bool) {
	deadline := time.NewTimer(grace)
	defer deadline.Stop()

	for {
		f.mu.Lock()
		win := f.win
		allSettled := f.settled == f.launched
		f.mu.Unlock()

		if win != nil {
			return *win, true
		}
		if allSettled {
			return raceResult{}, false
		}

		select {
		case <-ctx.Done():
			return raceResult{}, false
		case <-deadline.C:
			return raceResult{}, false
		case <-f.ping:
		}
	}
}
