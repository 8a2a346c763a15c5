package tcp

import (
	"context"
	"math"
	"math/rand"
	"net"
	"sync"
	"testing"
	"time"
)

func TestNextDelayCapsAtMax(t *testing.T) {
	cfg := BackoffConfig{BaseDelay: time.Second, MaxDelay: 5 * time.Second, Factor: 1.8, JitterRatio: 0}
	d := nextDelay(cfg, 20, rand.New(rand.NewSource(1)))
	if d != 5*time.Second {
		t.Fatalf("got %v, want capped at 5s", d)
	}
}

func TestNextDelayGrowsByFactor(t *testing.T) {
	cfg := BackoffConfig{BaseDelay: time.Second, MaxDelay: time.Hour, Factor: 1.8, JitterRatio: 0}
	d1 := nextDelay(cfg, 1, rand.New(rand.NewSource(1)))
	d2 := nextDelay(cfg, 2, rand.New(rand.NewSource(1)))
	want1 := time.Second
	want2 := time.Duration(float64(time.Second) * 1.8)
	if d1 != want1 {
		t.Fatalf("attempt 1 = %v, want %v", d1, want1)
	}
	if d2 != want2 {
		t.Fatalf("attempt 2 = %v, want %v", d2, want2)
	}
}

func TestNextDelayJitterStaysWithinRatio(t *testing.T) {
	cfg := BackoffConfig{BaseDelay: time.Second, MaxDelay: time.Hour, Factor: 1.0, JitterRatio: 0.2}
	rng := rand.New(rand.NewSource(42))
	base := float64(time.Second)
	for i := 0; i < 200; i++ {
		d := nextDelay(cfg, 1, rng)
		lo := base * 0.8
		hi := base * 1.2
		if float64(d) < lo-1 || float64(d) > hi+1 {
			t.Fatalf("jittered delay %v outside [%v,%v]", d, time.Duration(lo), time.Duration(hi))
		}
	}
}

func TestNextDelayFloorsAtZero(t *testing.T) {
	cfg := BackoffConfig{BaseDelay: 0, MaxDelay: time.Second, Factor: 1.8, JitterRatio: 0.2}
	d := nextDelay(cfg, 5, rand.New(rand.NewSource(1)))
	if d < 0 {
		t.Fatalf("got negative delay %v", d)
	}
}

// stubSink collects raw reads for assertions.
type stubSink struct {
	mu   sync.Mutex
	data [][]byte
}

func (s *stubSink) OnRaw(b []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data = append(s.data, append([]byte{}, b...))
}

func (s *stubSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, d := range s.data {
		n += len(d)
	}
	return n
}

func TestSupervisorConnectsAndReceivesBytes(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	defer ln.Close()

	addr := ln.Addr().(*net.TCPAddr)

	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		_, _ = conn.Write([]byte("hello-p3"))
		time.Sleep(100 * time.Millisecond)
	}()

	sink := &stubSink{}
	sup := New(Config{
		Host:           "127.0.0.1",
		Port:           addr.Port,
		ConnectTimeout: time.Second,
		Backoff:        DefaultBackoff(),
	}, sink, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()

	err = sup.Start(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("Start returned %v, want DeadlineExceeded", err)
	}
	if sink.total() != len("hello-p3") {
		t.Fatalf("sink received %d bytes, want %d", sink.total(), len("hello-p3"))
	}
}

func TestSupervisorBackoffOnRefusedConnection(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen: %v", err)
	}
	addr := ln.Addr().(*net.TCPAddr)
	ln.Close() // nothing listens at this port now

	sink := &stubSink{}
	sup := New(Config{
		Host:           "127.0.0.1",
		Port:           addr.Port,
		ConnectTimeout: 100 * time.Millisecond,
		Backoff: BackoffConfig{
			BaseDelay:   10 * time.Millisecond,
			MaxDelay:    20 * time.Millisecond,
			Factor:      1.0,
			JitterRatio: 0,
		},
	}, sink, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 150*time.Millisecond)
	defer cancel()

	err = sup.Start(ctx)
	if err != context.DeadlineExceeded {
		t.Fatalf("Start returned %v, want DeadlineExceeded", err)
	}
}

func TestNextDelayMonotonicWithoutJitter(t *testing.T) {
	cfg := BackoffConfig{BaseDelay: 100 * time.Millisecond, MaxDelay: time.Hour, Factor: 2, JitterRatio: 0}
	prev := time.Duration(0)
	for attempt := 1; attempt <= 5; attempt++ {
		d := nextDelay(cfg, attempt, nil)
		if d < prev {
			t.Fatalf("attempt %d delay %v < previous %v", attempt, d, prev)
		}
		want := time.Duration(float64(cfg.BaseDelay) * math.Pow(cfg.Factor, float64(attempt-1)))
		if d != want {
			t.Fatalf("attempt %d = %v, want %v", attempt, d, want)
		}
		prev = d
	}
}
