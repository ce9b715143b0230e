package upload

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/filedrop-io/go-filedrop/upload/hosts"
	"github.com/filedrop-io/go-filedrop/upload/network"
)

type fakeOutcome struct {
	url string
	err error
}

// fakeService scripts one outcome per call; the last outcome repeats when
// calls outnumber the plan.
type fakeService struct {
	name         string
	retryable    bool
	rejectReason string
	delay        time.Duration
	plan         []fakeOutcome

	mu    sync.Mutex
	calls int
}

func (s *fakeService) Name() string { return s.name }

func (s *fakeService) Accepts(hosts.File) (bool, string) {
	if s.rejectReason != "" {
		return false, s.rejectReason
	}
	return true, ""
}

func (s *fakeService) SupportsBackgroundRetry() bool { return s.retryable }

func (s *fakeService) Upload(ctx context.Context, file hosts.File, opts hosts.UploadOptions) (string, error) {
	s.mu.Lock()
	call := s.calls
	s.calls++
	s.mu.Unlock()

	if s.delay > 0 {
		select {
		case <-ctx.Done():
			return "", network.ErrCancelled
		case <-time.After(s.delay):
		}
	}

	if len(s.plan) == 0 {
		return "", fmt.Errorf("%s: no outcome scripted", s.name)
	}
	if call >= len(s.plan) {
		call = len(s.plan) - 1
	}
	outcome := s.plan[call]
	return outcome.url, outcome.err
}

func (s *fakeService) callCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls
}

type fakeEnvRepo struct {
	values map[string]string
}

func (f fakeEnvRepo) Get(key string) string { return f.values[key] }
func (f fakeEnvRepo) Set(key, value string) error {
	f.values[key] = value
	return nil
}
func (f fakeEnvRepo) Unset(key string) error {
	delete(f.values, key)
	return nil
}
func (f fakeEnvRepo) List() []string { return nil }
