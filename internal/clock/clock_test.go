package clock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestFake_SleepAdvancesAndRecords(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)

	if err := f.Sleep(context.Background(), 2*time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	f.Advance(500 * time.Millisecond)
	if err := f.Sleep(context.Background(), time.Second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got, want := f.Now().Sub(start), 3500*time.Millisecond; got != want {
		t.Errorf("elapsed = %v, want %v", got, want)
	}
	sleeps := f.Sleeps()
	if len(sleeps) != 2 || sleeps[0] != 2*time.Second || sleeps[1] != time.Second {
		t.Errorf("sleeps = %v, want [2s 1s]", sleeps)
	}
}

func TestFake_SleepCancelled(t *testing.T) {
	f := NewFake(time.Now())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := f.Sleep(ctx, time.Second); !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if len(f.Sleeps()) != 0 {
		t.Error("cancelled sleep should not be recorded")
	}
}

func TestReal_SleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	start := time.Now()
	err := Real{}.Sleep(ctx, time.Hour)
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
	if time.Since(start) > time.Second {
		t.Error("cancelled sleep blocked")
	}
}

func TestReal_SleepZero(t *testing.T) {
	if err := (Real{}).Sleep(context.Background(), 0); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}
