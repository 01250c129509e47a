package scheduler

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

type countingRefresher struct {
	calls atomic.Int32
}

func (r *countingRefresher) RefreshCurrent(ctx context.Context) {
	if _, ok := ctx.Deadline(); !ok {
		panic("refresh context must carry a deadline")
	}
	r.calls.Add(1)
}

func TestSchedulerRefreshesPeriodically(t *testing.T) {
	r := &countingRefresher{}
	s := New(50*time.Millisecond, r)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	deadline := time.Now().Add(3 * time.Second)
	for r.calls.Load() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("refresh job never ran")
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestSchedulerDisabled(t *testing.T) {
	r := &countingRefresher{}
	s := New(0, r)
	if err := s.Start(); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer s.Stop()

	time.Sleep(50 * time.Millisecond)
	if r.calls.Load() != 0 {
		t.Fatal("disabled scheduler should not refresh")
	}
}
