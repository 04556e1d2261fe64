package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/i474232898/offshore-forecast/internal/modelrun"
)

type countingRefresher struct {
	calls int32
	err   error
}

func (r *countingRefresher) Refresh(ctx context.Context) error {
	atomic.AddInt32(&r.calls, 1)
	if _, ok := ctx.Deadline(); !ok {
		return context.Canceled
	}
	return r.err
}

func TestStartRunsImmediately(t *testing.T) {
	r := &countingRefresher{err: modelrun.ErrNoCycle}
	s := New(r, time.Hour, time.Second)
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for atomic.LoadInt32(&r.calls) == 0 {
		if time.Now().After(deadline) {
			t.Fatal("refresh job did not run on start")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestNewDefaults(t *testing.T) {
	s := New(&countingRefresher{}, 0, 0)
	if s.interval != DefaultInterval || s.timeout != DefaultInterval {
		t.Fatalf("interval %s timeout %s", s.interval, s.timeout)
	}
}
