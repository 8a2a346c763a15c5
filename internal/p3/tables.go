package p3

import "fmt"

// FieldType tags how a field's raw bytes were interpreted (spec §4.C).
type FieldType string

const (
	TypeU8     FieldType = "u8"
	TypeU16    FieldType = "u16"
	TypeU32    FieldType = "u32"
	TypeU64    FieldType = "u64"
	TypeI16    FieldType = "i16"
	TypeI32    FieldType = "i32"
	TypeHex    FieldType = "hex"
	TypeString FieldType = "string"
	TypeBytes  FieldType = "bytes"
)

type fieldDesc struct {
	Name string
	Type FieldType
}

// Known Type-Of-Record values (spec §3). Unknown TORs synthesise
// tor_0xXXXX and fall through to the general TOF table only.
const (
	TORPassing uint16 = 0x0001
	TORStatus  uint16 = 0x0002
	TORVersion uint16 = 0x0003
	TORError   uint16 = 0xFFFF
)

var torNames = map[uint16]string{
	TORPassing: "passing",
	TORStatus:  "status",
	TORVersion: "version",
	TORError:   "error",
}

// torFieldTables holds the per-TOR TOF descriptor tables. A lookup here
// takes precedence over generalFieldTable (spec §4.C).
var torFieldTables = map[uint16]map[uint8]fieldDesc{
	TORPassing: {
		0x01: {Name: "transponderCode", Type: TypeHex},
		0x02: {Name: "passingNumber", Type: TypeU32},
		0x03: {Name: "lapNumber", Type: TypeU32},
		0x04: {Name: "rtcTime", Type: TypeU64}, // RTC time, microseconds
		0x05: {Name: "strength", Type: TypeU16},
		0x06: {Name: "hits", Type: TypeU16},
		0x07: {Name: "passingFlags", Type: TypeU16},
	},
	TORStatus: {
		0x01: {Name: "voltage", Type: TypeU16},
		0x02: {Name: "temperature", Type: TypeI16},
		0x03: {Name: "gpsFix", Type: TypeU8},
		0x04: {Name: "uptimeSeconds", Type: TypeU32},
	},
	TORVersion: {
		0x01: {Name: "firmwareVersion", Type: TypeString},
		0x02: {Name: "hardwareVersion", Type: TypeString},
		0x03: {Name: "serialNumber", Type: TypeHex},
	},
	TORError: {
		0x01: {Name: "errorCode", Type: TypeU16},
		0x02: {Name: "errorMessage", Type: TypeString},
	},
}

// generalFieldTable covers transport-level fields that can appear inside any
// TOR (spec §4.C's fallback table).
var generalFieldTable = map[uint8]fieldDesc{
	0x81: {Name: "decoderId", Type: TypeU32},
	0x83: {Name: "controllerId", Type: TypeU32},
	0x85: {Name: "requestId", Type: TypeU64},
}

// torName resolves a TOR to its canonical name, synthesising tor_0xXXXX for
// unknown values (spec §4.C "Name resolution").
func torName(tor uint16) string {
	if name, ok := torNames[tor]; ok {
		return name
	}
	return fmt.Sprintf("tor_0x%04X", tor)
}

// tofDescriptor looks up the field descriptor for (tor, tof), trying the
// per-TOR table first and falling back to the general table. ok is false
// when neither table has an entry — the caller applies the printable-ratio
// fallback.
func tofDescriptor(tor uint16, tof uint8) (fieldDesc, bool) {
	if perTOR, ok := torFieldTables[tor]; ok {
		if d, ok := perTOR[tof]; ok {
			return d, true
		}
	}
	if d, ok := generalFieldTable[tof]; ok {
		return d, true
	}
	return fieldDesc{}, false
}

// tofName synthesises tof_0xXX for a tof with no resolved descriptor.
func tofName(tof uint8) string {
	return fmt.Sprintf("tof_0x%02X", tof)
}
