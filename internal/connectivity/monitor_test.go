package connectivity

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

func TestReconnectHookFiresOncePerTransition(t *testing.T) {
	m := New(func(context.Context) error { return nil }, time.Second)
	var fired int
	m.OnReconnect(func(context.Context) { fired++ })
	ctx := context.Background()

	if m.Status() == Online {
		t.Fatalf("status must start unknown")
	}

	m.Set(ctx, true)
	m.Set(ctx, true)
	if fired != 1 {
		t.Fatalf("expected 1 hook run after startup transition, got %d", fired)
	}

	m.MarkOffline()
	if m.Status() == Online {
		t.Fatalf("expected offline after MarkOffline")
	}
	m.Set(ctx, false)
	m.Set(ctx, true)
	if fired != 2 {
		t.Fatalf("expected 2 hook runs, got %d", fired)
	}
}

func TestUnknownToOfflineDoesNotFire(t *testing.T) {
	m := New(nil, time.Second)
	m.OnReconnect(func(context.Context) { t.Fatalf("hook must not run on offline transition") })
	m.Set(context.Background(), false)
	if m.Status() != Offline {
		t.Fatalf("expected offline, got %s", m.Status())
	}
}

func TestRunChecksUntilCancelled(t *testing.T) {
	var calls atomic.Int32
	m := New(func(context.Context) error {
		if calls.Add(1) == 1 {
			return errors.New("dial tcp: connection refused")
		}
		return nil
	}, 10*time.Millisecond)

	reconnected := make(chan struct{})
	var once sync.Once
	m.OnReconnect(func(context.Context) { once.Do(func() { close(reconnected) }) })

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		m.Run(ctx)
	}()

	select {
	case <-reconnected:
	case <-time.After(2 * time.Second):
		t.Fatalf("expected reconnect after failed first check")
	}
	cancel()
	<-done

	if m.Status() != Online {
		t.Fatalf("expected online status after a successful check")
	}
}

func TestOfflineOnlyAfterFailure(t *testing.T) {
	m := New(func(context.Context) error { return errors.New("down") }, time.Second)
	if m.Offline() {
		t.Fatalf("unknown status must not report offline")
	}
	m.Check(context.Background())
	if !m.Offline() {
		t.Fatalf("failed check should mark offline, got %s", m.Status())
	}
	m.Set(context.Background(), true)
	if m.Offline() {
		t.Fatalf("expected online after successful observation")
	}
}
