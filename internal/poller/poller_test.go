package poller

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alanyoungcy/winzzers/internal/service"
)

type countingRefresher struct {
	calls atomic.Int32
	err   error
}

func (c *countingRefresher) Refresh(context.Context) (service.RefreshResult, error) {
	n := c.calls.Add(1)
	return service.RefreshResult{Generation: uint64(n)}, c.err
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunLoopRefreshesImmediatelyAndOnTick(t *testing.T) {
	r := &countingRefresher{}
	p := New(r, 10*time.Millisecond, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 55*time.Millisecond)
	defer cancel()

	if err := p.RunLoop(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("RunLoop returned %v", err)
	}
	if n := r.calls.Load(); n < 2 {
		t.Errorf("refreshed %d times, want the initial refresh plus ticks", n)
	}
}

func TestRunLoopSurvivesFailures(t *testing.T) {
	r := &countingRefresher{err: errors.New("rpc down")}
	p := New(r, 5*time.Millisecond, quietLogger())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_ = p.RunLoop(ctx)

	if n := r.calls.Load(); n < 2 {
		t.Errorf("loop stopped after a failed refresh (%d calls)", n)
	}
}

func TestDefaultInterval(t *testing.T) {
	if got := New(&countingRefresher{}, 0, quietLogger()).Interval(); got != DefaultInterval {
		t.Errorf("Interval = %s, want %s", got, DefaultInterval)
	}
}
