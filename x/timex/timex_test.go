package timex

import (
	"context"
	"testing"
	"time"
)

func TestPeriodFromHz(t *testing.T) {
	if got := PeriodFromHz(30000); got != 33333 {
		t.Fatalf("PeriodFromHz(30000) = %d", got)
	}
	if got := PeriodFromHz(0); got != uint64(time.Second) {
		t.Fatalf("PeriodFromHz(0) = %d", got)
	}
}

func TestSleepCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if Sleep(ctx, time.Hour) {
		t.Fatal("Sleep should report cancellation")
	}
	if Sleep(ctx, 0) {
		t.Fatal("zero Sleep on a done context should report cancellation")
	}
}

func TestSleepElapses(t *testing.T) {
	start := time.Now()
	if !Sleep(context.Background(), 5*time.Millisecond) {
		t.Fatal("Sleep returned false without cancellation")
	}
	if time.Since(start) < 5*time.Millisecond {
		t.Fatal("Sleep returned early")
	}
}
