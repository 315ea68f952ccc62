package worker

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runRecorder struct {
	mu      sync.Mutex
	runs    []string
	calls   int32
	started chan string
	release chan struct{}
}

func newRunRecorder() *runRecorder {
	return &runRecorder{started: make(chan string, 16), release: make(chan struct{})}
}

func (r *runRecorder) run(_ context.Context, listing string) error {
	r.mu.Lock()
	r.runs = append(r.runs, listing)
	r.mu.Unlock()

	r.started <- listing
	if atomic.AddInt32(&r.calls, 1) == 1 {
		<-r.release
	}
	return nil
}

func (r *runRecorder) waitStarted(t *testing.T) string {
	t.Helper()
	select {
	case l := <-r.started:
		return l
	case <-time.After(2 * time.Second):
		t.Fatal("run did not start")
		return ""
	}
}

func startScheduler(t *testing.T, s *Scheduler) context.CancelFunc {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- s.Start(ctx) }()
	t.Cleanup(func() {
		cancel()
		select {
		case err := <-done:
			assert.NoError(t, err)
		case <-time.After(2 * time.Second):
			t.Error("scheduler did not stop")
		}
	})
	return cancel
}

func TestScheduler_CoalescesTriggers(t *testing.T) {
	rec := newRunRecorder()
	s := NewScheduler(rec.run, Job{Listing: "catalog"}, Job{Listing: "sale"})
	startScheduler(t, s)

	require.True(t, s.Trigger("catalog"))
	assert.Equal(t, "catalog", rec.waitStarted(t))

	// The first run is still blocked; these collapse into one catalog and one sale run.
	s.Trigger("catalog")
	s.Trigger("catalog")
	s.Trigger("sale")
	close(rec.release)

	assert.Equal(t, "catalog", rec.waitStarted(t))
	assert.Equal(t, "sale", rec.waitStarted(t))

	select {
	case l := <-rec.started:
		t.Fatalf("unexpected extra run of %s", l)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestScheduler_UnknownListing(t *testing.T) {
	s := NewScheduler(func(context.Context, string) error { return nil }, Job{Listing: "catalog"})
	assert.False(t, s.Trigger("clearance"))
}

func TestScheduler_Interval(t *testing.T) {
	var calls int32
	s := NewScheduler(func(context.Context, string) error {
		atomic.AddInt32(&calls, 1)
		return nil
	}, Job{Listing: "sale", Interval: 10 * time.Millisecond})
	startScheduler(t, s)

	require.Eventually(t, func() bool { return atomic.LoadInt32(&calls) >= 2 }, 2*time.Second, 5*time.Millisecond)
}
