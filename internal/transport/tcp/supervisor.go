// Package tcp implements the outbound TCP client half of the transport
// supervisor (spec §4.D): a reconnecting connection to the decoder that feeds
// raw bytes to a Sink and publishes its state machine position via
// transport.Counters.
package tcp

import (
	"context"
	"log"
	"math"
	"math/rand"
	"net"
	"strconv"
	"sync"
	"time"

	"p3bridge/internal/transport"
)

// Sink receives raw bytes read off the wire, in arrival order.
type Sink interface {
	OnRaw(data []byte)
}

// Closer is implemented by sinks that need to flush framing state pinned
// across a connection's lifetime once that connection closes (spec §7's
// dle_at_eof: a dangling DLE at the tail of the framer's buffer can never be
// resolved once the stream that would have supplied the next byte is gone).
type Closer interface {
	OnClose()
}

// BackoffConfig mirrors spec §4.D's backoff parameters.
type BackoffConfig struct {
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	Factor      float64
	JitterRatio float64
}

// DefaultBackoff returns spec §4.D's stated defaults.
func DefaultBackoff() BackoffConfig {
	return BackoffConfig{
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
		Factor:      1.8,
		JitterRatio: 0.2,
	}
}

// nextDelay implements `delay = min(base*factor^(attempt-1), max) * (1 + U(-jitter,+jitter))`,
// grounded in the pack's NextBackoffDelay (danmuck-edgectl/internal/protocol/session/backoff.go),
// adapted from a multiplicative half-to-1.5x jitter model to the spec's symmetric ± jitter model.
func nextDelay(cfg BackoffConfig, attempt int, rng *rand.Rand) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	delay := float64(cfg.BaseDelay) * math.Pow(cfg.Factor, float64(attempt-1))
	if cfg.MaxDelay > 0 && delay > float64(cfg.MaxDelay) {
		delay = float64(cfg.MaxDelay)
	}
	jitter := 1.0
	if cfg.JitterRatio > 0 {
		jitter = 1 + (rng.Float64()*2-1)*cfg.JitterRatio
	}
	delay *= jitter
	if delay < 0 {
		delay = 0
	}
	return time.Duration(delay)
}

// Config bundles the supervisor's target and timing parameters.
type Config struct {
	Host           string
	Port           int
	ConnectTimeout time.Duration
	Backoff        BackoffConfig
}

// Supervisor owns the outbound TCP client connection and its reconnect state
// machine (spec §4.D). There is one Supervisor per process; Start blocks
// until ctx is cancelled.
type Supervisor struct {
	mu      sync.Mutex
	cfg     Config
	sink    Sink
	counts  *transport.Counters
	conn    net.Conn
	attempt int

	retargetCh chan struct{}

	rng *rand.Rand
}

// New returns a Supervisor ready to Start. counts may be nil if the caller
// does not need published state/reconnect metrics.
func New(cfg Config, sink Sink, counts *transport.Counters) *Supervisor {
	if counts == nil {
		counts = transport.NewCounters()
	}
	return &Supervisor{
		cfg:        cfg,
		sink:       sink,
		counts:     counts,
		retargetCh: make(chan struct{}, 1),
		rng:        rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Retarget replaces the connection target at runtime (spec §4.D "Target
// mutation"). If Connected, the current socket is closed, which drives the
// state machine through Backoff(delay=0) back to Connecting against the new
// target. If in Backoff, the pending timer is cancelled and a connect is
// attempted immediately.
func (s *Supervisor) Retarget(host string, port int) {
	s.mu.Lock()
	s.cfg.Host = host
	s.cfg.Port = port
	conn := s.conn
	s.mu.Unlock()

	if conn != nil {
		s.counts.SetState(transport.StateClosing)
		_ = conn.Close()
	}
	select {
	case s.retargetCh <- struct{}{}:
	default:
	}
}

// Start runs the state machine until ctx is cancelled, at which point it
// transitions to Stopped and returns ctx.Err().
func (s *Supervisor) Start(ctx context.Context) error {
	s.counts.SetState(transport.StateIdle)
	for {
		select {
		case <-ctx.Done():
			s.counts.SetState(transport.StateStopped)
			return ctx.Err()
		default:
		}

		conn, err := s.connect(ctx)
		if err != nil {
			if ctx.Err() != nil {
				s.counts.SetState(transport.StateStopped)
				return ctx.Err()
			}
			if !s.backoffWait(ctx) {
				s.counts.SetState(transport.StateStopped)
				return ctx.Err()
			}
			continue
		}

		s.mu.Lock()
		s.conn = conn
		s.attempt = 0
		s.mu.Unlock()
		s.counts.SetState(transport.StateConnected)

		s.readLoop(ctx, conn)

		s.mu.Lock()
		s.conn = nil
		s.mu.Unlock()

		if ctx.Err() != nil {
			s.counts.SetState(transport.StateClosing)
			s.counts.SetState(transport.StateStopped)
			return ctx.Err()
		}
		if !s.backoffWait(ctx) {
			s.counts.SetState(transport.StateStopped)
			return ctx.Err()
		}
	}
}

// connect performs Idle/Backoff → Connecting → Connected|Backoff.
func (s *Supervisor) connect(ctx context.Context) (net.Conn, error) {
	s.counts.SetState(transport.StateConnecting)

	s.mu.Lock()
	host, port, timeout := s.cfg.Host, s.cfg.Port, s.cfg.ConnectTimeout
	s.mu.Unlock()

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	addr := net.JoinHostPort(host, strconv.Itoa(port))
	var d net.Dialer
	conn, err := d.DialContext(dialCtx, "tcp", addr)
	if err != nil {
		log.Printf("[tcp] connect %s failed: %v", addr, err)
		return nil, err
	}
	if tc, ok := conn.(*net.TCPConn); ok {
		_ = tc.SetNoDelay(true) // Nagle off, per spec §4.D
	}
	log.Printf("[tcp] connected to %s", addr)
	return conn, nil
}

// readLoop copies bytes from conn into the sink until the socket closes or
// ctx is cancelled. The socket close, from either side, drives the caller
// back into Backoff.
func (s *Supervisor) readLoop(ctx context.Context, conn net.Conn) {
	defer conn.Close()

	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-done:
		}
	}()
	defer close(done)

	buf := make([]byte, 4096)
	for {
		n, err := conn.Read(buf)
		if n > 0 {
			b := make([]byte, n)
			copy(b, buf[:n])
			s.sink.OnRaw(b)
		}
		if err != nil {
			if c, ok := s.sink.(Closer); ok {
				c.OnClose()
			}
			return
		}
	}
}

// backoffWait sleeps for the next scheduled reconnect delay, honoring both
// ctx cancellation and a runtime Retarget (which shortcuts the wait).
// It reports false if ctx was cancelled during the wait.
func (s *Supervisor) backoffWait(ctx context.Context) bool {
	s.counts.SetState(transport.StateBackoff)
	s.counts.AddReconnect()

	s.mu.Lock()
	s.attempt++
	delay := nextDelay(s.cfg.Backoff, s.attempt, s.rng)
	s.mu.Unlock()

	if delay <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-s.retargetCh:
		return true
	case <-timer.C:
		return true
	}
}
