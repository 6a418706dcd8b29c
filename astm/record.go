package astm

import (
	"fmt"
	"strings"
	"time"
)

// RecordType identifies an ASTM record by its leading letter.
type RecordType byte

const (
	RecordHeader     RecordType = 'H'
	RecordPatient    RecordType = 'P'
	RecordOrder      RecordType = 'O'
	RecordResult     RecordType = 'R'
	RecordQuery      RecordType = 'Q'
	RecordTerminator RecordType = 'L'
)

// Record is a single ASCII line within a message. Fields are separated by
// '|' and subdivided into components by '^'.
type Record struct {
	Type RecordType
	Raw  string
}

// Field returns the record's i-th field (1-based, counting from the field
// after the record-type letter). Missing fields yield "".
func (r Record) Field(i int) string {
	parts := strings.Split(r.Raw, "|")
	if i < 0 || i >= len(parts) {
		return ""
	}

	return parts[i]
}

// Component returns the i-th '^'-separated component of s (1-based).
// Missing components yield "".
func Component(s string, i int) string {
	parts := strings.Split(s, "^")
	if i < 1 || i > len(parts) {
		return ""
	}

	return parts[i-1]
}

// MaxParamNameLen bounds the parameter name of a persistable reading.
// Longer names are artifacts of malformed result records and are dropped.
const MaxParamNameLen = 15

// emptyValueSentinel is the literal an analyzer reports for a measurement
// it could not produce.
const emptyValueSentinel = "----"

// Reading is a persisted result extracted from an R record.
type Reading struct {
	LabNumber string
	MachineID string
	// Parameter is the qualified parameter name: MachineID + "_" + the
	// parameter extracted from the result record.
	Parameter string
	Value     string
}

// Order is a pending test request fetched from the persistence
// collaborator for a queried lab number.
type Order struct {
	AssayCode   string
	PatientName string
	Age         string
	Gender      string
}

// MessageContent is the decoded content of one complete received message.
type MessageContent struct {
	Records    []Record
	Readings   []Reading
	Queries    []string
	Terminated bool
}

// ParseMessage decodes a complete message body (the bytes between ENQ and
// EOT with frame envelopes already removed) into typed records.
//
// Records are split on CR. An O record sets the current lab number for the
// R records that follow it in the same message. Readings failing the
// filter (parameter name length >= MaxParamNameLen, empty value, or the
// "----" sentinel) are not emitted. Malformed records are skipped
// individually; parsing always continues.
func ParseMessage(body []byte, machineID string) *MessageContent {
	content := &MessageContent{}

	labNumber := ""

	for _, line := range strings.Split(string(body), "\r") {
		line = strings.TrimPrefix(line, "\n")
		if line == "" {
			continue
		}

		// A leading digit is a frame number that survived deframing.
		// Strip it, drop the trailing checksum window if one is present,
		// and dispatch the remainder.
		if line[0] >= '0' && line[0] <= '9' {
			line = stripFrameResidue(line)
			if line == "" {
				continue
			}
		}

		rec := Record{Type: RecordType(line[0]), Raw: line}

		switch rec.Type {
		case RecordHeader, RecordPatient:
			content.Records = append(content.Records, rec)

		case RecordOrder:
			labNumber = Component(rec.Field(2), 1)
			content.Records = append(content.Records, rec)

		case RecordResult:
			content.Records = append(content.Records, rec)

			if reading, ok := extractReading(rec, labNumber, machineID); ok {
				content.Readings = append(content.Readings, reading)
			}

		case RecordQuery:
			content.Records = append(content.Records, rec)

			queryLab := Component(rec.Field(2), 2)
			if queryLab == "" {
				queryLab = Component(rec.Field(2), 1)
			}

			if queryLab != "" {
				content.Queries = append(content.Queries, queryLab)
			}

		case RecordTerminator:
			content.Records = append(content.Records, rec)
			content.Terminated = true

		default:
			// Unknown record type: skip, keep parsing the rest.
		}
	}

	return content
}

// extractReading builds a Reading from an R record, applying the reading
// filter.
func extractReading(rec Record, labNumber, machineID string) (Reading, bool) {
	testID := rec.Field(2)

	param := Component(testID, 4)
	if param == "" && !strings.Contains(testID, "^") {
		param = Component(testID, 1)
	}

	value := Component(rec.Field(3), 1)

	if param == "" || len(param) >= MaxParamNameLen || value == "" || value == emptyValueSentinel {
		return Reading{}, false
	}

	return Reading{
		LabNumber: labNumber,
		MachineID: machineID,
		Parameter: machineID + "_" + param,
		Value:     value,
	}, true
}

// stripFrameResidue removes a surviving leading frame-number digit and, if
// present, the trailing ETX-plus-checksum window from a record line.
func stripFrameResidue(line string) string {
	line = line[1:]

	if i := strings.IndexByte(line, ETX); i >= 0 && len(line)-i <= 3 {
		line = line[:i]
	}

	return line
}

// --- Outbound message building ---

// headerDateLayout is the timestamp format embedded in outbound headers.
const headerDateLayout = "20060102"

// BuildOrderMessage builds the outbound order message answering a query
// for labNumber. It contains a header record carrying the configured
// machine name and the current date, a single patient record, one order
// record per fetched order (1-indexed), and a terminator.
func BuildOrderMessage(machineName, labNumber string, orders []Order, now time.Time) []string {
	records := make([]string, 0, len(orders)+3)

	records = append(records,
		fmt.Sprintf(`H|\^&||PSWD|%s User|||||Lis||P|E1394-97%s`, machineName, now.Format(headerDateLayout)),
		"P|1",
	)

	for i, order := range orders {
		records = append(records, fmt.Sprintf("O|%d|%s||^^^%s|R", i+1, labNumber, order.AssayCode))
	}

	records = append(records, "L|1|N")

	return records
}

// SerializeMessage renders records as a message body: each record is
// terminated by CR, records are separated by LF.
func SerializeMessage(records []string) []byte {
	return []byte(strings.Join(records, "\r\n") + "\r")
}

// ParseMessageRecords splits a serialized message body back into its
// record strings. It is the inverse of SerializeMessage for any message
// whose records obey the grammar.
func ParseMessageRecords(body []byte) []string {
	var records []string

	for _, line := range strings.Split(string(body), "\r") {
		line = strings.TrimPrefix(line, "\n")
		if line == "" {
			continue
		}

		records = append(records, line)
	}

	return records
}
