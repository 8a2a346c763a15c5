package p3

import (
	"testing"
	"time"
)

func TestParsePassingRecord(t *testing.T) {
	fields := append(
		tlvField(0x01, []byte{0xAA, 0xBB, 0xCC, 0xDD, 0xEE}),
		append(
			tlvField(0x02, []byte{0x2A, 0x00, 0x00, 0x00}),
			tlvField(0x03, []byte{0x07, 0x00, 0x00, 0x00})...,
		)...,
	)
	_, payload := buildFrame(1, TORPassing, 0, fields)

	rec, perr := Parse(payload, time.Unix(0, 0))
	if perr != nil {
		t.Fatalf("unexpected parse error: %v", perr)
	}
	if !rec.CRC.OK {
		t.Fatalf("expected CRC OK, got received=%04x computed=%04x", rec.CRC.Received, rec.CRC.Computed)
	}
	if rec.TORName != "passing" {
		t.Fatalf("TORName = %q, want passing", rec.TORName)
	}
	if len(rec.Fields) != 3 {
		t.Fatalf("got %d fields, want 3", len(rec.Fields))
	}
	if rec.Decoded["passingNumber"] != uint32(0x2A) {
		t.Fatalf("passingNumber = %v, want 42", rec.Decoded["passingNumber"])
	}
	if rec.Decoded["lapNumber"] != uint32(7) {
		t.Fatalf("lapNumber = %v, want 7", rec.Decoded["lapNumber"])
	}
	if rec.Decoded["transponderCode"] != "aabbccddee" {
		t.Fatalf("transponderCode = %v, want aabbccddee", rec.Decoded["transponderCode"])
	}
}

func TestParseCRCMismatchStillDelivered(t *testing.T) {
	_, payload := buildFrame(1, TORPassing, 0, tlvField(0x02, []byte{1, 0, 0, 0}))
	corrupted := append([]byte{}, payload...)
	corrupted[len(corrupted)-1] ^= 0xFF

	rec, perr := Parse(corrupted, time.Now())
	if perr != nil {
		t.Fatalf("CRC mismatch must not be a terminal parse error: %v", perr)
	}
	if rec.CRC.OK {
		t.Fatalf("expected CRC.OK=false after corrupting the trailer")
	}
	if rec.Decoded["passingNumber"] != uint32(1) {
		t.Fatalf("record with bad CRC should still decode its fields, got %v", rec.Decoded)
	}
}

func TestParseMinimalFrameHasNoFields(t *testing.T) {
	_, payload := buildFrame(1, TORStatus, 0, nil)

	rec, perr := Parse(payload, time.Now())
	if perr != nil {
		t.Fatalf("unexpected parse error: %v", perr)
	}
	if len(rec.Fields) != 0 {
		t.Fatalf("got %d fields, want 0", len(rec.Fields))
	}
	if len(rec.Decoded) != 0 {
		t.Fatalf("got %d decoded entries, want 0", len(rec.Decoded))
	}
}

func TestParseTooShortIsTerminal(t *testing.T) {
	_, perr := Parse([]byte{1, 2, 3}, time.Now())
	if perr == nil {
		t.Fatalf("expected a terminal parse error for a too-short payload")
	}
	if perr.Kind != ParseTooShort {
		t.Fatalf("Kind = %q, want too_short", perr.Kind)
	}
}

func TestParseTruncatedFieldIsTerminal(t *testing.T) {
	_, full := buildFrame(1, TORPassing, 0, tlvField(0x02, []byte{1, 0, 0, 0}))
	// Truncate the body so the declared field length runs past the end,
	// without touching the CRC-length invariant the loop relies on.
	truncated := full[:len(full)-4]

	_, perr := Parse(truncated, time.Now())
	if perr == nil {
		t.Fatalf("expected a terminal parse error for a truncated field")
	}
	if perr.Kind != ParseTruncatedField {
		t.Fatalf("Kind = %q, want truncated_field", perr.Kind)
	}
}

func TestParseZeroLengthFields(t *testing.T) {
	fields := append(
		tlvField(0x01, []byte{}), // firmwareVersion, string
		tlvField(0x03, []byte{})..., // serialNumber, hex
	)
	_, payload := buildFrame(1, TORVersion, 0, fields)

	rec, perr := Parse(payload, time.Now())
	if perr != nil {
		t.Fatalf("unexpected parse error: %v", perr)
	}
	if rec.Decoded["firmwareVersion"] != "" {
		t.Fatalf("firmwareVersion = %q, want empty string", rec.Decoded["firmwareVersion"])
	}
	if rec.Decoded["serialNumber"] != "" {
		t.Fatalf("serialNumber (hex, zero-length) = %q, want empty string", rec.Decoded["serialNumber"])
	}
}

func TestParseUnknownFieldFallsBackToPrintableHeuristic(t *testing.T) {
	fields := append(
		tlvField(0xF0, []byte("hello")),
		tlvField(0xF1, []byte{0x00, 0x01, 0x02, 0x03, 0xFF})...,
	)
	_, payload := buildFrame(1, TORPassing, 0, fields)

	rec, perr := Parse(payload, time.Now())
	if perr != nil {
		t.Fatalf("unexpected parse error: %v", perr)
	}
	if rec.Decoded["tof_0xF0"] != "hello" {
		t.Fatalf("tof_0xF0 = %v, want \"hello\"", rec.Decoded["tof_0xF0"])
	}
	if rec.Decoded["tof_0xF1"] != "00010203ff" {
		t.Fatalf("tof_0xF1 = %v, want hex \"00010203ff\"", rec.Decoded["tof_0xF1"])
	}
}

func TestParseDuplicateFieldNameWidensToSlice(t *testing.T) {
	fields := append(
		tlvField(0x81, []byte{1, 0, 0, 0}),
		append(
			tlvField(0x81, []byte{2, 0, 0, 0}),
			tlvField(0x81, []byte{3, 0, 0, 0})...,
		)...,
	)
	_, payload := buildFrame(1, TORPassing, 0, fields)

	rec, perr := Parse(payload, time.Now())
	if perr != nil {
		t.Fatalf("unexpected parse error: %v", perr)
	}
	seq, ok := rec.Decoded["decoderId"].([]any)
	if !ok {
		t.Fatalf("decoderId = %v (%T), want []any of length 3", rec.Decoded["decoderId"], rec.Decoded["decoderId"])
	}
	if len(seq) != 3 {
		t.Fatalf("got %d decoderId values, want 3", len(seq))
	}
	if seq[0] != uint32(1) || seq[1] != uint32(2) || seq[2] != uint32(3) {
		t.Fatalf("decoderId sequence = %v, want [1 2 3]", seq)
	}
}

func TestRecordSuppressedOnlyForStatus(t *testing.T) {
	statusRec := &Record{TOR: TORStatus}
	if !statusRec.Suppressed() {
		t.Fatalf("status record should be suppressed")
	}
	passingRec := &Record{TOR: TORPassing}
	if passingRec.Suppressed() {
		t.Fatalf("passing record should not be suppressed")
	}
}
