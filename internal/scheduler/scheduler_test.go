package scheduler

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"testing"
	"time"

	"fc-troll-detector/internal/model"

	"github.com/google/go-cmp/cmp"
)

func TestRunBoundedCeilingAndFailures(t *testing.T) {
	items := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	var inFlight, maxInFlight, started atomic.Int32

	got := RunBounded(context.Background(), items, 4, func(_ context.Context, n int) (int, error) {
		started.Add(1)
		cur := inFlight.Add(1)
		for {
			prev := maxInFlight.Load()
			if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		if n == 3 || n == 7 {
			return 0, errors.New("profile unavailable")
		}
		return n, nil
	})

	if m := maxInFlight.Load(); m > 4 || m < 1 {
		t.Errorf("max in flight = %d, want 1..4", m)
	}
	if s := started.Load(); s != 10 {
		t.Errorf("started = %d, want 10", s)
	}
	sort.Ints(got)
	if diff := cmp.Diff([]int{0, 1, 2, 4, 5, 6, 8, 9}, got); diff != "" {
		t.Errorf("results mismatch (-want +got):\n%s", diff)
	}
}

func TestRunBoundedRefillsFreedSlots(t *testing.T) {
	items := []int{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}
	got := RunBounded(context.Background(), items, 2, func(_ context.Context, n int) (int, error) {
		if n == 0 {
			time.Sleep(300 * time.Millisecond)
		} else {
			time.Sleep(5 * time.Millisecond)
		}
		return n, nil
	})
	if len(got) != 10 {
		t.Fatalf("results = %v", got)
	}
	if got[len(got)-1] != 0 {
		t.Errorf("slow unit should settle last when the other slot keeps refilling, got %v", got)
	}
}

func TestRunBoundedNonPositiveLimitIsSequential(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	RunBounded(context.Background(), []int{1, 2, 3, 4}, 0, func(_ context.Context, n int) (int, error) {
		if cur := inFlight.Add(1); cur > maxInFlight.Load() {
			maxInFlight.Store(cur)
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return n, nil
	})
	if m := maxInFlight.Load(); m != 1 {
		t.Errorf("max in flight = %d, want 1", m)
	}
}

func TestRunBoundedCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	var calls atomic.Int32
	got := RunBounded(ctx, []string{"a", "b"}, 2, func(context.Context, string) (string, error) {
		calls.Add(1)
		return "x", nil
	})
	if len(got) != 0 || calls.Load() != 0 {
		t.Errorf("cancelled run dispatched %d units, results %v", calls.Load(), got)
	}
}

func TestItemKey(t *testing.T) {
	if got := itemKey(model.UserReference{UserID: "7"}); got != "user:7" {
		t.Errorf("user key = %q", got)
	}
	if got := itemKey(model.ThreadReference{ThreadID: "9"}); got != "thread:9" {
		t.Errorf("thread key = %q", got)
	}
	if got := itemKey(3); got != "-" {
		t.Errorf("int key = %q", got)
	}
}
