package p3

import "fmt"

// FrameKind identifies the reason a framing diagnostic was raised. All
// FrameError values are non-fatal: the framer returns them to its caller as
// diagnostics and keeps scanning for the next candidate frame (spec §7).
type FrameKind string

const (
	FrameResync   FrameKind = "resync"
	FrameOversize FrameKind = "oversize"
	FrameDLEAtEOF FrameKind = "dle_at_eof"
)

// FrameError is a diagnostic emitted by the framer. It never aborts framing.
type FrameError struct {
	Kind   FrameKind
	Detail string
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("p3 frame: %s: %s", e.Kind, e.Detail)
}

// ParseKind identifies why Parse returned a terminal error. Unlike
// FrameError, a ParseError means the record must not be delivered. For
// truncated_field Parse still returns the partial record holding the fields
// decoded before the bad one; for too_short it returns no record.
type ParseKind string

const (
	// ParseTooShort: payload shorter than the 7-byte minimum header+CRC.
	ParseTooShort ParseKind = "too_short"
	// ParseTruncatedField: a field's declared length runs past the payload.
	ParseTruncatedField ParseKind = "truncated_field"
	// ParseUnknownType is never returned as a terminal error — spec §4.C
	// resolves an unmatched (tor, tof) pair to a string/hex fallback rather
	// than failing the parse. Parse neither returns nor emits this kind; a
	// field that fell through to the fallback typing rule is visible only
	// through its TypeTag.
	ParseUnknownType ParseKind = "unknown_type"
)

// ParseError is a terminal parse failure: the record is not delivered (see
// ParseKind for when a partial Record accompanies it).
type ParseError struct {
	Kind   ParseKind
	Detail string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("p3 parse: %s: %s", e.Kind, e.Detail)
}
