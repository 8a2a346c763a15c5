package p3

import "time"

// CRC reports the CRC-16/CCITT-FALSE validation outcome for a frame (spec §3
// "Record.crc"). A mismatch never suppresses the record — it is surfaced with
// OK=false so downstream observers can count and investigate (spec §4.C
// "CRC policy").
type CRC struct {
	OK       bool
	Received uint16
	Computed uint16
}

// Field is one decoded TLV field from a frame's body (spec §3 "Field (TOF)").
type Field struct {
	TOF          uint8
	TOFName      string
	Length       uint16
	TypeTag      FieldType
	RawBytes     []byte
	DecodedValue any
}

// Record is the parsed result of one frame (spec §3 "Record").
type Record struct {
	Version    uint8
	TOR        uint16
	TORName    string
	Flags      uint16
	Fields     []Field
	CRC        CRC
	ReceivedAt time.Time

	// Decoded is the flat {name -> value} convenience map described in
	// spec §4.C: a duplicate name converts its slot into an ordered slice,
	// and a third or later occurrence appends to that slice.
	Decoded map[string]any
}

// Suppressed reports whether this record is a Status record for the
// suppression feature of spec §6 ("Record suppression").
func (r *Record) Suppressed() bool {
	return r.TOR == TORStatus
}

func addDecoded(m map[string]any, name string, value any) {
	existing, ok := m[name]
	if !ok {
		m[name] = value
		return
	}
	if seq, ok := existing.([]any); ok {
		m[name] = append(seq, value)
		return
	}
	m[name] = []any{existing, value}
}
