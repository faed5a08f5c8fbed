package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestTaskRunnerBoundsConcurrency(t *testing.T) {
	runner := NewTaskRunner(2)
	defer runner.Close()

	var active, peak atomic.Int32
	release := make(chan struct{})
	for i := range 6 {
		runner.Submit(fmt.Sprintf("task-%d", i), func(context.Context) error {
			current := active.Add(1)
			for {
				old := peak.Load()
				if current <= old || peak.CompareAndSwap(old, current) {
					break
				}
			}
			<-release
			active.Add(-1)
			return nil
		})
	}
	close(release)
	runner.Wait()

	if got := peak.Load(); got > 2 {
		t.Fatalf("peak concurrency = %d, want <= 2", got)
	}
}

func TestTaskRunnerLogsFailures(t *testing.T) {
	runner := NewTaskRunner(1)
	var mu sync.Mutex
	var logged []string
	runner.logf = func(format string, args ...any) {
		mu.Lock()
		defer mu.Unlock()
		logged = append(logged, fmt.Sprintf(format, args...))
	}

	runner.Submit("archive news", func(context.Context) error { return errors.New("disk full") })
	runner.Close()

	mu.Lock()
	defer mu.Unlock()
	if len(logged) != 1 || logged[0] != "background task archive news failed: disk full" {
		t.Fatalf("logged = %q", logged)
	}
}

func TestTaskRunnerRejectsAfterClose(t *testing.T) {
	runner := NewTaskRunner(1)
	runner.logf = func(string, ...any) {}
	runner.Close()

	if runner.Submit("late", func(context.Context) error { return nil }) {
		t.Fatal("expected submit after close to be rejected")
	}
}

func TestTaskRunnerCloseDrainsQueuedTasks(t *testing.T) {
	runner := NewTaskRunner(1)
	var ran atomic.Int32
	for range 5 {
		runner.Submit("count", func(context.Context) error {
			ran.Add(1)
			return nil
		})
	}
	runner.Close()
	if got := ran.Load(); got != 5 {
		t.Fatalf("ran = %d, want 5", got)
	}
}

func TestTaskRunnerCloseRunsFollowUpsFromDrainingTasks(t *testing.T) {
	runner := NewTaskRunner(2)
	runner.logf = func(string, ...any) {}

	release := make(chan struct{})
	started := make(chan struct{})
	var followUp atomic.Bool
	runner.Submit("refresh", func(context.Context) error {
		close(started)
		<-release
		if !runner.Submit("archive", func(context.Context) error {
			followUp.Store(true)
			return nil
		}) {
			return errors.New("follow-up rejected")
		}
		return nil
	})
	<-started

	closed := make(chan struct{})
	go func() {
		runner.Close()
		close(closed)
	}()
	waitForClosed(t, runner)
	close(release)
	<-closed

	if !followUp.Load() {
		t.Fatal("expected follow-up submitted during drain to run")
	}
	if runner.Submit("late", func(context.Context) error { return nil }) {
		t.Fatal("expected submit after drain to be rejected")
	}
}

func waitForClosed(t *testing.T, runner *TaskRunner) {
	t.Helper()
	for range 500 {
		runner.mu.Lock()
		closed := runner.closed
		runner.mu.Unlock()
		if closed {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatal("runner never started closing")
}
