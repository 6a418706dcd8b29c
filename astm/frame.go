package astm

import (
	"fmt"
)

// MaxFrameNumber is the highest frame-number digit. Outbound frame numbers
// cycle 1→2→…→7→1 across a single message.
const MaxFrameNumber = 7

// frameOverhead is the number of envelope bytes around the record payload:
// STX, frame-number digit, CR, ETX, two checksum digits, CR, LF.
const frameOverhead = 8

// minFrameLen is the smallest structurally valid frame (empty record).
const minFrameLen = frameOverhead

// BuildFrame wraps a single record into an ASTM frame:
//
//	<STX><n><record><CR><ETX><c1><c2><CR><LF>
//
// n is the frame-number digit (1–7). record must not contain its trailing
// CR; BuildFrame appends it. The checksum is the low eight bits of the sum
// of every byte after STX up to and including ETX, rendered as two
// uppercase hex digits.
func BuildFrame(n int, record []byte) []byte {
	buf := make([]byte, 0, len(record)+frameOverhead)
	buf = append(buf, STX, '0'+byte(n))
	buf = append(buf, record...)
	buf = append(buf, CR, ETX)

	buf = fmt.Appendf(buf, "%02X", frameChecksum(buf))
	buf = append(buf, CR, LF)

	return buf
}

// frameChecksum computes the modulo-256 checksum of a frame.
//
// Every byte after STX is summed up to and including the first ETX or ETB.
// This matches the wire behavior of the analyzers this package targets:
// the terminator itself is part of the sum, STX is not.
func frameChecksum(frame []byte) byte {
	var sum byte

	for _, b := range frame {
		if b == STX {
			continue
		}

		sum += b

		if b == ETX || b == ETB {
			break
		}
	}

	return sum
}

// NextFrameNumber returns the frame number following n, wrapping 7→1.
func NextFrameNumber(n int) int {
	if n >= MaxFrameNumber {
		return 1
	}

	return n + 1
}

// ParseFrame validates a complete frame (STX through LF) and returns its
// frame number and record payload, with the trailing CR stripped.
//
// ParseFrame validates:
//   - The envelope layout: STX prefix, CR before ETX, checksum digits,
//     CR LF suffix.
//   - The frame-number digit is ASCII '0'–'9'.
//   - The checksum matches the two trailing hex digits.
func ParseFrame(frame []byte) (int, []byte, error) {
	if len(frame) < minFrameLen {
		return 0, nil, fmt.Errorf("%w: %d bytes", ErrMalformedFrame, len(frame))
	}

	if frame[0] != STX {
		return 0, nil, fmt.Errorf("%w: missing STX", ErrMalformedFrame)
	}

	if frame[len(frame)-2] != CR || frame[len(frame)-1] != LF {
		return 0, nil, fmt.Errorf("%w: missing CR LF suffix", ErrMalformedFrame)
	}

	term := frame[len(frame)-5]
	if term != ETX && term != ETB {
		return 0, nil, fmt.Errorf("%w: missing ETX before checksum", ErrMalformedFrame)
	}

	if frame[len(frame)-6] != CR {
		return 0, nil, fmt.Errorf("%w: record not CR-terminated", ErrMalformedFrame)
	}

	digit := frame[1]
	if digit < '0' || digit > '9' {
		return 0, nil, fmt.Errorf("%w: got 0x%02X", ErrBadFrameNumber, digit)
	}

	wireSum := frame[len(frame)-4 : len(frame)-2]
	calcSum := frameChecksum(frame)

	want, ok := parseHexPair(wireSum)
	if !ok {
		return 0, nil, fmt.Errorf("%w: non-hex checksum %q", ErrMalformedFrame, wireSum)
	}

	if want != calcSum {
		return 0, nil, fmt.Errorf("%w: wire=%02X, computed=%02X", ErrChecksumMismatch, want, calcSum)
	}

	record := frame[2 : len(frame)-6]

	return int(digit - '0'), record, nil
}

// parseHexPair decodes two case-insensitive hex digits.
func parseHexPair(p []byte) (byte, bool) {
	hi, ok := hexNibble(p[0])
	if !ok {
		return 0, false
	}

	lo, ok := hexNibble(p[1])
	if !ok {
		return 0, false
	}

	return hi<<4 | lo, true
}

func hexNibble(b byte) (byte, bool) {
	switch {
	case b >= '0' && b <= '9':
		return b - '0', true
	case b >= 'A' && b <= 'F':
		return b - 'A' + 10, true
	case b >= 'a' && b <= 'f':
		return b - 'a' + 10, true
	default:
		return 0, false
	}
}
