// Command decoder-emulator is a standalone TCP server that emits synthetic,
// byte-stuffed, CRC-correct P3 Passing/Status/Version frames on a jittered
// interval, so the bridge's transport/framer/parser/delivery chain can be
// exercised end to end without real decoder hardware. Developer tooling,
// adapted from the teacher's cmd/frame-emulator.
package main

import (
	"context"
	"flag"
	"log"
	"math/rand"
	"net"
	"os/signal"
	"syscall"
	"time"

	"p3bridge/internal/crc16"
)

func main() {
	var (
		addr       = flag.String("addr", "127.0.0.1:5403", "TCP listen address")
		interval   = flag.Duration("interval", time.Second, "Base interval between frames")
		jitterPct  = flag.Float64("jitter", 0.3, "Jitter fraction applied to the interval (0..1)")
		statusEach = flag.Int("status-every", 5, "Emit a Status frame every N Passing frames")
		verbose    = flag.Bool("v", true, "Verbose logs")
	)
	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	ln, err := net.Listen("tcp", *addr)
	if err != nil {
		log.Fatalf("[decoder-emulator] listen %s: %v", *addr, err)
	}
	defer ln.Close()
	log.Printf("[decoder-emulator] listening on %s", *addr)

	go acceptLoop(ctx, ln, *interval, *jitterPct, *statusEach, *verbose)

	<-ctx.Done()
	log.Printf("[decoder-emulator] stopped")
}

func acceptLoop(ctx context.Context, ln net.Listener, interval time.Duration, jitterPct float64, statusEach int, verbose bool) {
	go func() {
		<-ctx.Done()
		_ = ln.Close()
	}()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			log.Printf("[decoder-emulator] accept error: %v", err)
			continue
		}
		go serveConn(ctx, conn, interval, jitterPct, statusEach, verbose)
	}
}

func serveConn(ctx context.Context, conn net.Conn, interval time.Duration, jitterPct float64, statusEach int, verbose bool) {
	defer conn.Close()
	if verbose {
		log.Printf("[decoder-emulator] client connected: %s", conn.RemoteAddr())
	}

	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	sentVersion := false
	passingCount := 0
	lapNumber := uint32(0)

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		var frame []byte
		switch {
		case !sentVersion:
			frame = versionFrame()
			sentVersion = true
		case statusEach > 0 && passingCount > 0 && passingCount%statusEach == 0:
			frame = statusFrame()
			passingCount = 0
		default:
			lapNumber++
			frame = passingFrame(lapNumber)
			passingCount++
		}

		if _, err := conn.Write(frame); err != nil {
			if verbose {
				log.Printf("[decoder-emulator] write error: %v", err)
			}
			return
		}

		sleepWithJitter(interval, jitterPct)
	}
}

func sleepWithJitter(base time.Duration, pct float64) {
	if pct <= 0 {
		time.Sleep(base)
		return
	}
	delta := base.Seconds() * pct
	j := (rand.Float64()*2 - 1) * delta
	d := time.Duration((base.Seconds() + j) * float64(time.Second))
	if d < 0 {
		d = 0
	}
	time.Sleep(d)
}

// Field/TOR constants mirror internal/p3/tables.go without importing it —
// the emulator is a standalone peer, not a consumer of the bridge's parser.
const (
	torPassing uint16 = 0x0001
	torStatus  uint16 = 0x0002
	torVersion uint16 = 0x0003
)

func passingFrame(lapNumber uint32) []byte {
	var fields []byte
	fields = append(fields, tlv(0x01, randomTransponderCode())...)
	fields = append(fields, tlv(0x02, u32le(uint32(time.Now().UnixNano()/1e6)))...)
	fields = append(fields, tlv(0x03, u32le(lapNumber))...)
	fields = append(fields, tlv(0x05, u16le(uint16(400+rand.Intn(600))))...)
	return buildFrame(1, torPassing, 0, fields)
}

func statusFrame() []byte {
	var fields []byte
	fields = append(fields, tlv(0x01, u16le(uint16(1200+rand.Intn(200))))...)
	fields = append(fields, tlv(0x02, i16le(int16(15+rand.Intn(20))))...)
	fields = append(fields, tlv(0x03, []byte{1})...)
	fields = append(fields, tlv(0x04, u32le(uint32(time.Now().Unix())))...)
	return buildFrame(1, torStatus, 0, fields)
}

func versionFrame() []byte {
	var fields []byte
	fields = append(fields, tlv(0x01, []byte("1.4.2-emu"))...)
	fields = append(fields, tlv(0x02, []byte("rev-c"))...)
	fields = append(fields, tlv(0x03, randomTransponderCode())...)
	return buildFrame(1, torVersion, 0, fields)
}

func randomTransponderCode() []byte {
	b := make([]byte, 5)
	_, _ = rand.Read(b)
	return b
}

func tlv(tof uint8, data []byte) []byte {
	out := []byte{tof, byte(len(data)), byte(len(data) >> 8)}
	return append(out, data...)
}

func u16le(v uint16) []byte { return []byte{byte(v), byte(v >> 8)} }
func i16le(v int16) []byte  { return u16le(uint16(v)) }
func u32le(v uint32) []byte { return []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)} }

// buildFrame assembles version|tor|flags|fields, appends the CRC-16/CCITT-FALSE
// trailer, and applies SOH/EOT/DLE byte-stuffing around it.
func buildFrame(version uint8, tor uint16, flags uint16, fields []byte) []byte {
	body := append([]byte{version, byte(tor), byte(tor >> 8), byte(flags), byte(flags >> 8)}, fields...)
	crc := crc16.Compute(body)
	body = append(body, byte(crc), byte(crc>>8))

	const (
		soh byte = 0x01
		eot byte = 0x04
		dle byte = 0x10
	)
	wire := make([]byte, 0, len(body)+2)
	wire = append(wire, soh)
	for _, b := range body {
		switch b {
		case soh, eot, dle:
			wire = append(wire, dle, b^0x20)
		default:
			wire = append(wire, b)
		}
	}
	wire = append(wire, eot)
	return wire
}
