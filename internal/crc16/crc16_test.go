package crc16

import "testing"

func TestComputeKnownVector(t *testing.T) {
	// Standard CRC-16/CCITT-FALSE check value for the ASCII string "123456789".
	if got := Compute([]byte("123456789")); got != 0x29B1 {
		t.Errorf("Compute = 0x%04x, want 0x29b1", got)
	}
}

func TestComputeEmpty(t *testing.T) {
	if got := Compute(nil); got != Init() {
		t.Errorf("Compute(nil) = 0x%04x, want init 0x%04x", got, Init())
	}
}

func TestUpdateIncrementalMatchesCompute(t *testing.T) {
	data := []byte("the quick brown fox jumps over the lazy dog")
	want := Compute(data)

	crc := Init()
	crc = Update(crc, data[:10])
	crc = Update(crc, data[10:])
	if crc != want {
		t.Errorf("incremental = 0x%04x, want 0x%04x", crc, want)
	}
}

func TestVerifyRoundTrip(t *testing.T) {
	payload := []byte{0x04, 0x01, 0x00, 0x00, 0x00, 0x01, 0x04, 0x00, 0x00, 0x01, 0x00}
	crc := Compute(payload)
	framed := append(append([]byte{}, payload...), byte(crc), byte(crc>>8))
	if !Verify(framed) {
		t.Errorf("Verify failed for computed CRC 0x%04x", crc)
	}
}

func TestVerifyDetectsMismatch(t *testing.T) {
	payload := []byte{0x04, 0x01, 0x00, 0x00, 0x00, 0x01, 0x04, 0x00, 0x00, 0x01, 0x00}
	framed := append(append([]byte{}, payload...), 0x00, 0x00)
	if Verify(framed) {
		t.Errorf("Verify should fail when CRC bytes are zeroed")
	}
}

func TestVerifyTooShort(t *testing.T) {
	if Verify([]byte{0x01}) {
		t.Errorf("Verify should reject payloads shorter than 2 bytes")
	}
}
