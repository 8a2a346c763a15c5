// Package udp implements the UDP listener half of the transport supervisor
// (spec §4.D): a bound socket that forwards each datagram's bytes to a Sink,
// identically to the TCP client's byte stream.
package udp

import (
	"context"
	"log"
	"net"
	"strconv"
	"time"

	"golang.org/x/net/ipv4"
)

// Sink receives raw bytes read off the wire, in arrival order.
type Sink interface {
	OnRaw(data []byte)
}

// Multicast optionally joins a multicast group on a named interface so the
// listener can receive decoder broadcasts, grounded in the teacher's
// WS-Discovery use of golang.org/x/net/ipv4 (internal/discovery/wsdiscovery.go).
// Leave GroupIP nil to skip multicast entirely and just bind the unicast port.
type Multicast struct {
	IfaceName string
	GroupIP   net.IP
	TTL       int
}

// Config bundles the listener's bind target and optional multicast join.
type Config struct {
	Host      string
	Port      int
	Multicast *Multicast
}

// Listener binds a UDP socket and forwards every datagram it receives to a
// Sink until ctx is cancelled. Bind failure is fatal (spec §4.D): Start
// returns the error rather than retrying.
type Listener struct {
	cfg  Config
	sink Sink
}

// New returns a Listener ready to Start.
func New(cfg Config, sink Sink) *Listener {
	return &Listener{cfg: cfg, sink: sink}
}

// Start binds the socket, optionally joins a multicast group, and reads
// datagrams until ctx is cancelled. It blocks; callers run it in a goroutine.
func (l *Listener) Start(ctx context.Context) error {
	addr := net.JoinHostPort(l.cfg.Host, strconv.Itoa(l.cfg.Port))
	pc, err := net.ListenPacket("udp4", addr)
	if err != nil {
		return err // bind failure is fatal per spec §4.D
	}
	defer pc.Close()
	log.Printf("[udp] listening on %s", addr)

	p := ipv4.NewPacketConn(pc)
	if l.cfg.Multicast != nil && l.cfg.Multicast.GroupIP != nil {
		l.joinMulticast(p)
	}

	go func() {
		<-ctx.Done()
		_ = pc.Close()
	}()

	buf := make([]byte, 8192)
	for {
		_ = pc.SetReadDeadline(time.Now().Add(2 * time.Second))
		n, _, err := pc.ReadFrom(buf)
		if err != nil {
			if ne, ok := err.(net.Error); ok && ne.Timeout() {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Printf("[udp] read error: %v", err)
			continue
		}
		if n > 0 {
			b := make([]byte, n)
			copy(b, buf[:n])
			l.sink.OnRaw(b)
		}
	}
}

// joinMulticast joins the configured group on the named interface. Failure
// is logged, not fatal — the unicast bind still serves decoder traffic sent
// directly to this socket.
func (l *Listener) joinMulticast(p *ipv4.PacketConn) {
	m := l.cfg.Multicast
	ifi, err := net.InterfaceByName(m.IfaceName)
	if err != nil {
		log.Printf("[udp] multicast: cannot find interface %s: %v", m.IfaceName, err)
		return
	}
	if err := p.JoinGroup(ifi, &net.UDPAddr{IP: m.GroupIP}); err != nil {
		log.Printf("[udp] multicast: JoinGroup %s on %s failed: %v", m.GroupIP, m.IfaceName, err)
		return
	}
	ttl := m.TTL
	if ttl <= 0 {
		ttl = 1
	}
	_ = p.SetMulticastInterface(ifi)
	_ = p.SetMulticastTTL(ttl)
	log.Printf("[udp] multicast: joined %s on %s", m.GroupIP, m.IfaceName)
}
