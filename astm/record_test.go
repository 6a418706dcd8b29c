package astm

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFieldAndComponent(t *testing.T) {
	rec := Record{Type: RecordResult, Raw: "R|1|^^^GLU|5.3|mmol/L"}

	assert.Equal(t, "1", rec.Field(1))
	assert.Equal(t, "^^^GLU", rec.Field(2))
	assert.Equal(t, "5.3", rec.Field(3))
	assert.Equal(t, "", rec.Field(9))

	assert.Equal(t, "GLU", Component("^^^GLU", 4))
	assert.Equal(t, "", Component("^^^GLU", 1))
	assert.Equal(t, "GLU", Component("GLU", 1))
	assert.Equal(t, "", Component("GLU", 2))
}

func TestParseMessageResults(t *testing.T) {
	body := strings.Join([]string{
		`H|\^&|||cobas6000^1`,
		"P|1",
		"O|1|LAB12345",
		"R|1|^^^GLU|5.3|mmol/L",
		"R|2|^^^ALB|41|g/L",
		"L|1|N",
	}, "\r") + "\r"

	content := ParseMessage([]byte(body), "cobas")

	require.Len(t, content.Records, 6)
	assert.True(t, content.Terminated)
	assert.Empty(t, content.Queries)

	require.Len(t, content.Readings, 2)
	assert.Equal(t, Reading{
		LabNumber: "LAB12345",
		MachineID: "cobas",
		Parameter: "cobas_GLU",
		Value:     "5.3",
	}, content.Readings[0])
	assert.Equal(t, "cobas_ALB", content.Readings[1].Parameter)
	assert.Equal(t, "41", content.Readings[1].Value)
}

func TestParseMessageLabNumberTracksOrders(t *testing.T) {
	body := strings.Join([]string{
		"O|1|LAB1",
		"R|1|^^^GLU|5.0",
		"O|2|LAB2^extra",
		"R|1|^^^ALB|40",
	}, "\r") + "\r"

	content := ParseMessage([]byte(body), "m")

	require.Len(t, content.Readings, 2)
	assert.Equal(t, "LAB1", content.Readings[0].LabNumber)
	// Lab number is the first component of the order's sample field.
	assert.Equal(t, "LAB2", content.Readings[1].LabNumber)
}

func TestParseMessageReadingWithoutOrder(t *testing.T) {
	// Results arriving before any O record carry an empty lab number.
	content := ParseMessage([]byte("R|1|^^^GLU|5.3\r"), "EM")

	require.Len(t, content.Readings, 1)
	assert.Equal(t, Reading{
		LabNumber: "",
		MachineID: "EM",
		Parameter: "EM_GLU",
		Value:     "5.3",
	}, content.Readings[0])
}

func TestParseMessageReadingFilter(t *testing.T) {
	tests := []struct {
		name string
		rec  string
		kept bool
	}{
		{"normal", "R|1|^^^GLU|5.3", true},
		{"single component param", "R|1|GLU|5.3", true},
		{"empty value", "R|1|^^^GLU|", false},
		{"placeholder value", "R|1|^^^GLU|----", false},
		{"param too long", "R|1|^^^AVERYLONGPARAMNAME|5.3", false},
		{"multi component without param", "R|1|GLU^sub|5.3", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := "O|1|LAB1\r" + tt.rec + "\r"
			content := ParseMessage([]byte(body), "m")

			if tt.kept {
				assert.Len(t, content.Readings, 1)
			} else {
				assert.Empty(t, content.Readings)
			}
		})
	}
}

func TestParseMessageQueries(t *testing.T) {
	body := strings.Join([]string{
		`H|\^&`,
		"Q|1|^LAB900",
		"Q|2|LAB901",
		"Q|3|",
		"L|1|N",
	}, "\r") + "\r"

	content := ParseMessage([]byte(body), "m")

	// Second component preferred, first component as fallback, empty
	// queries dropped.
	assert.Equal(t, []string{"LAB900", "LAB901"}, content.Queries)
}

func TestParseMessageFrameResidue(t *testing.T) {
	// Lines that kept their frame-number digit and checksum window, as
	// produced by instruments that blur framing and content.
	body := "2O|1|LAB77\r" + "3R|1|^^^GLU|5.3" + string(ETX) + "A4\r"

	content := ParseMessage([]byte(body), "m")

	require.Len(t, content.Records, 2)
	assert.Equal(t, "O|1|LAB77", content.Records[0].Raw)
	assert.Equal(t, "R|1|^^^GLU|5.3", content.Records[1].Raw)

	require.Len(t, content.Readings, 1)
	assert.Equal(t, "LAB77", content.Readings[0].LabNumber)
}

func TestParseMessageSkipsUnknownRecords(t *testing.T) {
	body := "X|junk\rO|1|LAB1\rR|1|^^^GLU|5.3\r"

	content := ParseMessage([]byte(body), "m")

	require.Len(t, content.Readings, 1)
	assert.False(t, content.Terminated)
}

func TestBuildOrderMessage(t *testing.T) {
	now := time.Date(2026, 8, 25, 10, 30, 0, 0, time.UTC)

	orders := []Order{
		{AssayCode: "GLU", PatientName: "DOE", Age: "42", Gender: "M"},
		{AssayCode: "ALB"},
	}

	records := BuildOrderMessage("cobas", "LAB900", orders, now)

	assert.Equal(t, []string{
		`H|\^&||PSWD|cobas User|||||Lis||P|E1394-9720260825`,
		"P|1",
		"O|1|LAB900||^^^GLU|R",
		"O|2|LAB900||^^^ALB|R",
		"L|1|N",
	}, records)
}

func TestBuildOrderMessageNoOrders(t *testing.T) {
	records := BuildOrderMessage("m", "LAB1", nil, time.Now())

	require.Len(t, records, 3)
	assert.Equal(t, "P|1", records[1])
	assert.Equal(t, "L|1|N", records[2])
}

func TestSerializeMessageRoundTrip(t *testing.T) {
	records := BuildOrderMessage("m", "LAB1", []Order{{AssayCode: "GLU"}}, time.Now())

	body := SerializeMessage(records)
	assert.Equal(t, records, ParseMessageRecords(body))
}

func TestSerializeMessageBody(t *testing.T) {
	body := SerializeMessage([]string{"P|1", "L|1|N"})
	assert.Equal(t, "P|1\r\nL|1|N\r", string(body))
}
