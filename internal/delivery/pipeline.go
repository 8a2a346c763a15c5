package delivery

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log"
	"math"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"p3bridge/internal/p3"
	"p3bridge/internal/transport"
)

// Config is the delivery pipeline's consumed subset of the post.*
// configuration surface (spec §6 "Configuration surface"), plus the interval
// of the periodic drain tick.
type Config struct {
	Enabled                bool
	BaseURL                string
	Path                   string
	Method                 string
	Timeout                time.Duration
	Retries                int
	RetryDelay             time.Duration
	RetryBackoffMultiplier float64
	QueueDrainMaxPerTick   int
	DrainInterval          time.Duration
	Headers                map[string]string
}

// DefaultConfig returns spec §4.E/§6's stated defaults.
func DefaultConfig() Config {
	return Config{
		Enabled:                true,
		Method:                 http.MethodPost,
		Timeout:                8 * time.Second,
		Retries:                5,
		RetryDelay:             500 * time.Millisecond,
		RetryBackoffMultiplier: 2,
		QueueDrainMaxPerTick:   5,
		DrainInterval:          30 * time.Second,
		Headers:                map[string]string{"Content-Type": "application/json"},
	}
}

// Pipeline implements spec §4.E: immediate POST attempt, classification,
// inline retry with backoff, and terminal enqueue into a persistent FIFO
// queue drained on a timer and after every successful inline POST.
type Pipeline struct {
	cfg    Config
	client *http.Client
	queue  *Queue
	counts *transport.Counters

	draining atomic.Bool
	drainMu  sync.Mutex
}

// NewPipeline wires a Pipeline to its on-disk queue file and shared counters.
func NewPipeline(cfg Config, queuePath string, counts *transport.Counters) (*Pipeline, error) {
	q, err := OpenQueue(queuePath)
	if err != nil {
		return nil, err
	}
	if counts == nil {
		counts = transport.NewCounters()
	}
	return &Pipeline{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		queue:  q,
		counts: counts,
	}, nil
}

// Deliver handles one parsed record end to end: build the envelope, attempt
// immediate delivery with inline retries, and enqueue on terminal failure.
// It never returns an error to the caller — the at-least-once contract means
// a persisted queue entry, not a caller-visible failure, is the only outcome.
func (p *Pipeline) Deliver(rec *p3.Record) {
	p.counts.AddMsgTotal()

	env := BuildEnvelope(rec)
	body, err := json.Marshal(env)
	if err != nil {
		log.Printf("[delivery] failed to marshal envelope: %v", err)
		return
	}

	if !p.cfg.Enabled {
		log.Printf("[delivery] dry-run: %s", body)
		return
	}

	url := p.cfg.BaseURL + p.cfg.Path
	method := p.cfg.Method
	if method == "" {
		method = http.MethodPost
	}

	lastErr := ""
	for attempt := 0; attempt <= p.cfg.Retries; attempt++ {
		if attempt > 0 {
			delay := time.Duration(float64(p.cfg.RetryDelay) * math.Pow(p.cfg.RetryBackoffMultiplier, float64(attempt-1)))
			time.Sleep(delay)
		}

		status, err := p.post(method, url, body)
		switch classify(status, err) {
		case outcomeSuccess:
			p.counts.AddHTTPOK()
			p.triggerDrain()
			return
		case outcomeTerminal:
			lastErr = terminalError(status, err)
			// 4xx (non-429): don't burn inline retries, enqueue now.
			p.enqueueAndCount(method, url, body, lastErr)
			return
		case outcomeRetryable:
			lastErr = terminalError(status, err)
			continue
		}
	}

	p.enqueueAndCount(method, url, body, lastErr)
}

func (p *Pipeline) enqueueAndCount(method, url string, body []byte, lastErr string) {
	if err := p.queue.Enqueue(method, url, p.cfg.Headers, json.RawMessage(body), lastErr); err != nil {
		log.Printf("[delivery] failed to persist queue entry: %v", err)
		return
	}
	p.counts.AddHTTPEnqueued()
}

func (p *Pipeline) post(method, url string, body []byte) (int, error) {
	req, err := http.NewRequest(method, url, bytes.NewReader(body))
	if err != nil {
		return 0, err
	}
	for k, v := range p.cfg.Headers {
		req.Header.Set(k, v)
	}
	resp, err := p.client.Do(req)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}

type outcome int

const (
	outcomeSuccess outcome = iota
	outcomeTerminal
	outcomeRetryable
)

// classify implements spec §4.E's response classification table.
func classify(status int, err error) outcome {
	if err != nil {
		return outcomeRetryable // network error / timeout
	}
	switch {
	case status >= 200 && status < 300:
		return outcomeSuccess
	case status == 429:
		return outcomeRetryable
	case status >= 500:
		return outcomeRetryable
	case status >= 400:
		return outcomeTerminal // 4xx except 429
	default:
		return outcomeRetryable
	}
}

func terminalError(status int, err error) string {
	if err != nil {
		return err.Error()
	}
	return fmt.Sprintf("HTTP %d", status)
}

// StartDrainTimer runs the periodic drain trigger until ctx is cancelled
// (spec §4.E "a drainer fires on ... a periodic tick").
func (p *Pipeline) StartDrainTimer(ctx context.Context) {
	ticker := time.NewTicker(p.cfg.DrainInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.triggerDrain()
		}
	}
}

// triggerDrain starts a drain pass unless one is already running
// (spec §4.E "Drain is single-flight").
func (p *Pipeline) triggerDrain() {
	if !p.draining.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer p.draining.Store(false)
		p.drain()
	}()
}

// drain processes up to QueueDrainMaxPerTick entries from the head. Success
// shifts the head and continues; failure updates attempts/last_error,
// persists, and aborts the rest of this pass (spec §4.E "Per drain...").
func (p *Pipeline) drain() {
	p.drainMu.Lock()
	defer p.drainMu.Unlock()

	max := p.cfg.QueueDrainMaxPerTick
	if max <= 0 {
		max = 5
	}
	for i := 0; i < max; i++ {
		entry, ok := p.queue.Head()
		if !ok {
			return
		}
		status, err := p.post(entry.Method, entry.URL, entry.Payload)
		if classify(status, err) != outcomeSuccess {
			lastErr := terminalError(status, err)
			if err := p.queue.MarkHeadFailed(lastErr); err != nil {
				log.Printf("[delivery] failed to persist drain failure: %v", err)
			}
			return // head-of-line blocking: don't hammer a down endpoint
		}
		if err := p.queue.PopHead(); err != nil {
			log.Printf("[delivery] failed to persist drain success: %v", err)
			return
		}
		p.counts.AddQueueDrained()
	}
}

// QueueDepth reports the current persisted queue length, for
// internal/statusapi's /queue endpoint.
func (p *Pipeline) QueueDepth() int {
	return p.queue.Len()
}

// QueueHead returns the queue's head entry, if any.
func (p *Pipeline) QueueHead() (QueueEntry, bool) {
	return p.queue.Head()
}
