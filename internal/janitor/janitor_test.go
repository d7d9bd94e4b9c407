package janitor

import (
	"context"
	"testing"
	"time"

	"github.com/asford/jug/internal/store"
	"github.com/asford/jug/internal/telemetry"
)

func TestJanitorSweepsStaleLocks(t *testing.T) {
	mem := store.NewMemory()
	lock := mem.GetLock("deadbeef")
	if ok, err := lock.Acquire(); err != nil || !ok {
		t.Fatalf("acquire: ok=%v err=%v", ok, err)
	}

	j, err := New(mem, "@every 20ms", telemetry.Metrics{})
	if err != nil {
		t.Fatalf("new janitor: %v", err)
	}
	j.Start()
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = j.Stop(ctx)
	}()

	deadline := time.Now().Add(time.Second)
	for lock.IsLocked() && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if lock.IsLocked() {
		t.Fatalf("expected janitor sweep to clear the stale lock")
	}
}

func TestNewRejectsBadSchedule(t *testing.T) {
	mem := store.NewMemory()
	if _, err := New(mem, "not a schedule", telemetry.Metrics{}); err == nil {
		t.Fatalf("expected an error for a malformed cron schedule")
	}
}
