// Package transport holds the state shared across the TCP supervisor and UDP
// listener: the connection-state machine's published state and the process
// counters read by internal/statusapi.
package transport

import "sync"

// State names the TCP supervisor's current position in its state machine.
// The UDP listener has no connection state of its own and does not publish
// one; in UDP mode the state stays StateIdle.
type State string

const (
	StateIdle       State = "idle"
	StateConnecting State = "connecting"
	StateConnected  State = "connected"
	StateBackoff    State = "backoff"
	StateClosing    State = "closing"
	StateStopped    State = "stopped"
)

// Counters is the mutex-protected process counter set consulted by
// internal/statusapi's /status endpoint. There is exactly one owner per
// process; all mutation goes through its methods, and readers take a
// point-in-time Snapshot rather than touching the fields directly.
type Counters struct {
	mu sync.Mutex

	framesOK      uint64
	frameErrors   uint64
	parseErrors   uint64
	crcMismatches uint64
	msgTotal      uint64
	msgSuppressed uint64
	httpOK        uint64
	httpEnqueued  uint64
	queueDrained  uint64
	reconnects    uint64

	state State
}

// NewCounters returns a zeroed Counters with state StateIdle.
func NewCounters() *Counters {
	return &Counters{state: StateIdle}
}

// Snapshot is an immutable copy of Counters at one instant.
type Snapshot struct {
	FramesOK      uint64 `json:"framesOK"`
	FrameErrors   uint64 `json:"frameErrors"`
	ParseErrors   uint64 `json:"parseErrors"`
	CRCMismatches uint64 `json:"crcMismatches"`
	MsgTotal      uint64 `json:"msgTotal"`
	MsgSuppressed uint64 `json:"msgSuppressed"`
	HTTPOK        uint64 `json:"httpOK"`
	HTTPEnqueued  uint64 `json:"httpEnqueued"`
	QueueDrained  uint64 `json:"queueDrained"`
	Reconnects    uint64 `json:"reconnects"`
	State         State  `json:"state"`
}

func (c *Counters) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return Snapshot{
		FramesOK:      c.framesOK,
		FrameErrors:   c.frameErrors,
		ParseErrors:   c.parseErrors,
		CRCMismatches: c.crcMismatches,
		MsgTotal:      c.msgTotal,
		MsgSuppressed: c.msgSuppressed,
		HTTPOK:        c.httpOK,
		HTTPEnqueued:  c.httpEnqueued,
		QueueDrained:  c.queueDrained,
		Reconnects:    c.reconnects,
		State:         c.state,
	}
}

func (c *Counters) AddFrameOK()       { c.inc(&c.framesOK) }
func (c *Counters) AddFrameError()    { c.inc(&c.frameErrors) }
func (c *Counters) AddParseError()    { c.inc(&c.parseErrors) }
func (c *Counters) AddCRCMismatch()   { c.inc(&c.crcMismatches) }
func (c *Counters) AddMsgTotal()      { c.inc(&c.msgTotal) }
func (c *Counters) AddMsgSuppressed() { c.inc(&c.msgSuppressed) }
func (c *Counters) AddHTTPOK()        { c.inc(&c.httpOK) }
func (c *Counters) AddHTTPEnqueued()  { c.inc(&c.httpEnqueued) }
func (c *Counters) AddQueueDrained()  { c.inc(&c.queueDrained) }
func (c *Counters) AddReconnect()     { c.inc(&c.reconnects) }

func (c *Counters) inc(field *uint64) {
	c.mu.Lock()
	*field++
	c.mu.Unlock()
}

// SetState publishes the supervisor's current state machine position.
func (c *Counters) SetState(s State) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}
