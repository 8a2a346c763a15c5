// Package delivery turns parsed P3 records into the HTTP(S) JSON envelope of
// spec §6 and forwards them at-least-once, with an on-disk retry queue for
// terminal failures.
package delivery

import (
	"time"

	"p3bridge/internal/byteutil"
	"p3bridge/internal/p3"
)

// Envelope is the wire shape POSTed to the configured receiver (spec §6
// "HTTP out (records)").
type Envelope struct {
	ReceivedAt time.Time       `json:"receivedAt"`
	Version    uint8           `json:"version"`
	TOR        uint16          `json:"tor"`
	TORName    string          `json:"torName"`
	Flags      uint16          `json:"flags"`
	CRCOK      bool            `json:"crcOk"`
	Decoded    map[string]any  `json:"decoded"`
	Fields     []EnvelopeField `json:"fields"`
}

// EnvelopeField is one entry of Envelope.Fields.
type EnvelopeField struct {
	TOF       uint8  `json:"tof"`
	TOFName   string `json:"tofName"`
	Length    uint16 `json:"length"`
	Type      string `json:"type"`
	Value     any    `json:"value"`
	ValueType string `json:"valueType"`
	DataHex   string `json:"dataHex"`
	DataAscii string `json:"dataAscii"`
}

// BuildEnvelope converts a parsed record into the wire envelope.
func BuildEnvelope(rec *p3.Record) *Envelope {
	env := &Envelope{
		ReceivedAt: rec.ReceivedAt.UTC(),
		Version:    rec.Version,
		TOR:        rec.TOR,
		TORName:    rec.TORName,
		Flags:      rec.Flags,
		CRCOK:      rec.CRC.OK,
		Decoded:    rec.Decoded,
	}
	for _, f := range rec.Fields {
		env.Fields = append(env.Fields, EnvelopeField{
			TOF:       f.TOF,
			TOFName:   f.TOFName,
			Length:    f.Length,
			Type:      string(f.TypeTag),
			Value:     f.DecodedValue,
			ValueType: valueTypeName(f.DecodedValue),
			DataHex:   byteutil.HexString(f.RawBytes),
			DataAscii: asciiString(f.RawBytes),
		})
	}
	return env
}

func valueTypeName(v any) string {
	switch v.(type) {
	case string:
		return "string"
	case uint8, uint16, uint32, uint64, int16, int32:
		return "number"
	case bool:
		return "bool"
	default:
		return "string"
	}
}

// asciiString renders b with every non-printable byte replaced by '.', for a
// quick-glance diagnostic field distinct from DecodedValue's 85%-threshold
// string/hex decision.
func asciiString(b []byte) string {
	out := make([]byte, len(b))
	for i, c := range b {
		if c >= 0x20 && c <= 0x7E {
			out[i] = c
		} else {
			out[i] = '.'
		}
	}
	return string(out)
}
