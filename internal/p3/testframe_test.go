package p3

import "p3bridge/internal/crc16"

// escapePayload applies P3 byte-stuffing: SOH, EOT, and DLE occurring in p
// are replaced by DLE followed by (byte XOR 0x20) (spec §4.B / §3).
func escapePayload(p []byte) []byte {
	out := make([]byte, 0, len(p))
	for _, b := range p {
		switch b {
		case soh, eot, dle:
			out = append(out, dle, b^0x20)
		default:
			out = append(out, b)
		}
	}
	return out
}

// buildFrame constructs a complete wire frame (SOH ... EOT) from an
// unescaped payload, computing and appending a valid CRC-16/CCITT-FALSE
// trailer before escaping.
func buildFrame(version uint8, tor uint16, flags uint16, fieldBytes []byte) (wire []byte, unescaped []byte) {
	body := []byte{version, byte(tor), byte(tor >> 8), byte(flags), byte(flags >> 8)}
	body = append(body, fieldBytes...)
	crc := crc16.Compute(body)
	body = append(body, byte(crc), byte(crc>>8))

	wire = make([]byte, 0, len(body)+2)
	wire = append(wire, soh)
	wire = append(wire, escapePayload(body)...)
	wire = append(wire, eot)
	return wire, body
}

// tlvField encodes one tof/length/data triple for use in buildFrame's
// fieldBytes argument.
func tlvField(tof uint8, data []byte) []byte {
	out := []byte{tof, byte(len(data)), byte(len(data) >> 8)}
	return append(out, data...)
}
