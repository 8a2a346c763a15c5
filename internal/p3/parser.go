package p3

import (
	"fmt"
	"time"

	"p3bridge/internal/byteutil"
	"p3bridge/internal/crc16"
)

// headerLen is version(1) + tor(2) + flags(2); crcLen is the trailing CRC.
const (
	headerLen     = 5
	crcLen        = 2
	minPayloadLen = headerLen + crcLen
)

// Parse decodes one unescaped frame payload into a Record (spec §4.C).
// It never panics on malformed input: too-short payloads and fields whose
// declared length runs past the body return a terminal *ParseError and the
// caller must not deliver the record. A bad CRC is not terminal — it is
// reported via Record.CRC.OK so the record can still be delivered.
func Parse(payload []byte, receivedAt time.Time) (*Record, *ParseError) {
	if len(payload) < minPayloadLen {
		return nil, &ParseError{
			Kind:   ParseTooShort,
			Detail: fmt.Sprintf("payload length %d < minimum %d", len(payload), minPayloadLen),
		}
	}

	n := len(payload)
	version := payload[0]
	tor := byteutil.U16LE(payload[1:3])
	flags := byteutil.U16LE(payload[3:5])

	received := byteutil.U16LE(payload[n-2:])
	computed := crc16.Compute(payload[:n-2])

	rec := &Record{
		Version:    version,
		TOR:        tor,
		TORName:    torName(tor),
		Flags:      flags,
		CRC:        CRC{OK: received == computed, Received: received, Computed: computed},
		ReceivedAt: receivedAt,
		Decoded:    make(map[string]any),
	}

	body := payload[headerLen : n-crcLen]
	i := 0
	for i < len(body) {
		if len(body)-i < 3 {
			return rec, &ParseError{
				Kind:   ParseTruncatedField,
				Detail: fmt.Sprintf("field header at offset %d runs past body", i),
			}
		}
		tof := body[i]
		length := byteutil.U16LE(body[i+1 : i+3])
		i += 3

		if int(length) > len(body)-i {
			return rec, &ParseError{
				Kind:   ParseTruncatedField,
				Detail: fmt.Sprintf("field tof=0x%02X declares length %d past body end", tof, length),
			}
		}
		raw := body[i : i+int(length)]
		i += int(length)

		field := decodeField(tor, tof, length, raw)
		rec.Fields = append(rec.Fields, field)
		addDecoded(rec.Decoded, field.TOFName, field.DecodedValue)
	}

	return rec, nil
}

// decodeField resolves a single TLV field's name, type tag, and decoded
// value per the lookup order of spec §4.C.
func decodeField(tor uint16, tof uint8, length uint16, raw []byte) Field {
	if desc, ok := tofDescriptor(tor, tof); ok {
		return Field{
			TOF:          tof,
			TOFName:      desc.Name,
			Length:       length,
			TypeTag:      desc.Type,
			RawBytes:     raw,
			DecodedValue: decodeTyped(desc.Type, raw),
		}
	}

	name := tofName(tof)
	if byteutil.IsPrintable(raw) {
		return Field{
			TOF:          tof,
			TOFName:      name,
			Length:       length,
			TypeTag:      TypeString,
			RawBytes:     raw,
			DecodedValue: string(raw),
		}
	}
	return Field{
		TOF:          tof,
		TOFName:      name,
		Length:       length,
		TypeTag:      TypeBytes,
		RawBytes:     raw,
		DecodedValue: byteutil.HexString(raw),
	}
}

// decodeTyped interprets raw according to a table-resolved type tag.
func decodeTyped(t FieldType, raw []byte) any {
	switch t {
	case TypeU8:
		if len(raw) == 0 {
			return uint8(0)
		}
		return raw[0]
	case TypeU16:
		return byteutil.U16LE(raw)
	case TypeU32:
		return byteutil.U32LE(raw)
	case TypeU64:
		return byteutil.U64LE(raw)
	case TypeI16:
		return byteutil.I16LE(raw)
	case TypeI32:
		return byteutil.I32LE(raw)
	case TypeHex:
		return byteutil.HexString(raw)
	case TypeString:
		return string(raw)
	default:
		return byteutil.HexString(raw)
	}
}
