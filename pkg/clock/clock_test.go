package clock_test

import (
	"testing"
	"time"

	"github.com/MrWong99/lingosync/pkg/clock"
)

func TestFake_TickerFiresPerPeriod(t *testing.T) {
	t.Parallel()

	c := clock.NewFake(time.Time{})
	tk := c.NewTicker(100 * time.Millisecond)
	defer tk.Stop()

	c.Advance(50 * time.Millisecond)
	select {
	case <-tk.C():
		t.Fatal("ticker fired early")
	default:
	}

	c.Advance(50 * time.Millisecond)
	select {
	case <-tk.C():
	default:
		t.Fatal("ticker did not fire at 100ms")
	}

	// A slow receiver sees at most one buffered tick.
	c.Advance(time.Second)
	<-tk.C()
	select {
	case <-tk.C():
		t.Fatal("more than one buffered tick")
	default:
	}
}

func TestFake_AfterFuncOrderAndStop(t *testing.T) {
	t.Parallel()

	c := clock.NewFake(time.Time{})
	var order []string
	c.AfterFunc(300*time.Millisecond, func() { order = append(order, "c") })
	c.AfterFunc(100*time.Millisecond, func() { order = append(order, "a") })
	stopped := c.AfterFunc(200*time.Millisecond, func() { order = append(order, "b") })

	if !stopped.Stop() {
		t.Error("Stop() = false on pending timer")
	}
	if stopped.Stop() {
		t.Error("second Stop() = true")
	}

	c.Advance(time.Second)
	if len(order) != 2 || order[0] != "a" || order[1] != "c" {
		t.Errorf("order = %v, want [a c]", order)
	}
	if n := c.Waiters(); n != 0 {
		t.Errorf("Waiters() = %d, want 0", n)
	}
}

func TestFake_NowAdvancesToTarget(t *testing.T) {
	t.Parallel()

	start := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	c := clock.NewFake(start)
	var firedAt time.Time
	c.AfterFunc(time.Second, func() { firedAt = c.Now() })
	c.Advance(5 * time.Second)

	if want := start.Add(time.Second); !firedAt.Equal(want) {
		t.Errorf("callback saw Now() = %v, want %v", firedAt, want)
	}
	if want := start.Add(5 * time.Second); !c.Now().Equal(want) {
		t.Errorf("Now() = %v, want %v", c.Now(), want)
	}
}

func TestSleep(t *testing.T) {
	t.Parallel()

	c := clock.NewFake(time.Time{})
	done := make(chan struct{})
	res := make(chan bool, 1)
	go func() { res <- clock.Sleep(c, time.Second, done) }()

	c.BlockUntil(1)
	c.Advance(time.Second)
	if !<-res {
		t.Error("Sleep() = false after full duration")
	}

	go func() { res <- clock.Sleep(c, time.Second, done) }()
	c.BlockUntil(1)
	close(done)
	if <-res {
		t.Error("Sleep() = true after done closed")
	}
	if !clock.Sleep(c, 0, nil) {
		t.Error("Sleep(0) = false")
	}
}
