// Package bootstrap wires transport → framer → parser → suppression filter →
// delivery into the single pipeline the rest of the process drives, the way
// the teacher's own RunAll wires its adapters to its registry and event bus.
package bootstrap

import (
	"context"
	"log"
	"time"

	"p3bridge/internal/config"
	"p3bridge/internal/delivery"
	"p3bridge/internal/events"
	"p3bridge/internal/p3"
	"p3bridge/internal/transport"
	"p3bridge/internal/transport/tcp"
	"p3bridge/internal/transport/udp"
)

// Deps bundles everything RunAll needs beyond the configuration itself.
type Deps struct {
	Counts   *transport.Counters
	Recent   events.Buffer
	Pipeline *delivery.Pipeline
}

// sink adapts the transport layer's raw-byte callback into the
// framer→parser→suppression→delivery chain (spec §4.B–§4.E's "no component
// upcalls its predecessor" data flow, expressed as one struct instead of a
// chain of interfaces since the core's single-writer discipline means every
// step runs inline on the same goroutine that received the bytes).
type sink struct {
	framer *p3.Framer
	cfg    *config.Config
	deps   Deps
}

func (s *sink) OnRaw(data []byte) {
	frames, diags := s.framer.Push(data)
	for _, d := range diags {
		log.Printf("[p3:framer] %s: %s", d.Kind, d.Detail)
		s.deps.Counts.AddFrameError()
	}
	for _, frame := range frames {
		s.deps.Counts.AddFrameOK()
		s.handleFrame(frame)
	}
}

// OnClose implements tcp.Closer: it flushes any framing state pinned across
// the closed connection's lifetime (a dangling DLE the framer was still
// waiting to resolve into an escaped byte).
func (s *sink) OnClose() {
	for _, d := range s.framer.Close() {
		log.Printf("[p3:framer] %s: %s", d.Kind, d.Detail)
		s.deps.Counts.AddFrameError()
	}
}

func (s *sink) handleFrame(frame []byte) {
	rec, perr := p3.Parse(frame, time.Now())
	if perr != nil {
		log.Printf("[p3:parser] %s: %s", perr.Kind, perr.Detail)
		s.deps.Counts.AddParseError()
		return
	}
	if !rec.CRC.OK {
		log.Printf("[p3:parser] crc mismatch: received=%04x computed=%04x", rec.CRC.Received, rec.CRC.Computed)
		s.deps.Counts.AddCRCMismatch()
	}

	s.deps.Recent.Push(rec)

	if s.cfg.Logging.SuppressStatus && rec.Suppressed() {
		s.deps.Counts.AddMsgSuppressed()
		return
	}

	log.Printf("[p3] %s: %+v", rec.TORName, rec.Decoded)
	s.deps.Pipeline.Deliver(rec)
}

// RunAll starts the transport supervisor (TCP or UDP, per defaults.mode),
// the delivery pipeline's drain timer, and blocks until ctx is cancelled.
func RunAll(ctx context.Context, cfg *config.Config, deps Deps) error {
	s := &sink{framer: p3.NewFramer(), cfg: cfg, deps: deps}

	go deps.Pipeline.StartDrainTimer(ctx)

	switch cfg.Defaults.Mode {
	case "udp":
		listener := udp.New(udp.Config{
			Host: "0.0.0.0",
			Port: cfg.Defaults.UDPListenPort,
		}, s)
		log.Printf("[bootstrap] starting UDP listener on port %d", cfg.Defaults.UDPListenPort)
		return listener.Start(ctx)
	default:
		sup := tcp.New(tcp.Config{
			Host:           cfg.Defaults.TCPHost,
			Port:           cfg.Defaults.TCPPort,
			ConnectTimeout: time.Duration(cfg.Decoder.Reconnect.ConnectTimeoutMs) * time.Millisecond,
			Backoff: tcp.BackoffConfig{
				BaseDelay:   time.Duration(cfg.Decoder.Reconnect.BaseDelayMs) * time.Millisecond,
				MaxDelay:    time.Duration(cfg.Decoder.Reconnect.MaxDelayMs) * time.Millisecond,
				Factor:      cfg.Decoder.Reconnect.BackoffFactor,
				JitterRatio: cfg.Decoder.Reconnect.JitterRatio,
			},
		}, s, deps.Counts)
		log.Printf("[bootstrap] starting TCP supervisor against %s:%d", cfg.Defaults.TCPHost, cfg.Defaults.TCPPort)
		return sup.Start(ctx)
	}
}
