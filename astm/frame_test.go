package astm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildFrame(t *testing.T) {
	frame := BuildFrame(1, []byte("R|1|^^^GLU|5.3"))

	expected := append([]byte{STX, '1'}, []byte("R|1|^^^GLU|5.3")...)
	expected = append(expected, CR, ETX, 'D', '0', CR, LF)

	assert.Equal(t, expected, frame)
}

func TestBuildFrameEmptyRecord(t *testing.T) {
	frame := BuildFrame(1, nil)

	// sum = '1' + CR + ETX = 0x41
	assert.Equal(t, []byte{STX, '1', CR, ETX, '4', '1', CR, LF}, frame)
}

func TestParseFrameRoundTrip(t *testing.T) {
	records := []string{
		`H|\^&||PSWD|Architect User|||||Lis||P|E1394-97`,
		"P|1",
		"O|1|LAB12345||^^^GLU|R",
		"R|1|^^^GLU|5.3|mmol/L",
		"L|1|N",
		"",
	}

	n := 1
	for _, record := range records {
		frame := BuildFrame(n, []byte(record))

		gotN, gotRecord, err := ParseFrame(frame)
		require.NoError(t, err)
		assert.Equal(t, n, gotN)
		assert.Equal(t, record, string(gotRecord))

		n = NextFrameNumber(n)
	}
}

func TestParseFrameLowercaseChecksum(t *testing.T) {
	frame := BuildFrame(2, []byte("P|1"))

	// Re-render the checksum digits in lowercase.
	for i := len(frame) - 4; i < len(frame)-2; i++ {
		if frame[i] >= 'A' && frame[i] <= 'F' {
			frame[i] += 'a' - 'A'
		}
	}

	n, record, err := ParseFrame(frame)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, "P|1", string(record))
}

func TestParseFrameChecksumMismatch(t *testing.T) {
	frame := BuildFrame(1, []byte("R|1|^^^GLU|5.3"))
	frame[5] ^= 0x01 // corrupt one payload byte

	_, _, err := ParseFrame(frame)
	require.ErrorIs(t, err, ErrChecksumMismatch)
}

func TestParseFrameMalformed(t *testing.T) {
	valid := BuildFrame(1, []byte("P|1"))

	tests := []struct {
		name    string
		mutate  func([]byte) []byte
		wantErr error
	}{
		{
			name:    "too short",
			mutate:  func(f []byte) []byte { return f[:4] },
			wantErr: ErrMalformedFrame,
		},
		{
			name: "missing STX",
			mutate: func(f []byte) []byte {
				f[0] = 'X'
				return f
			},
			wantErr: ErrMalformedFrame,
		},
		{
			name: "missing LF suffix",
			mutate: func(f []byte) []byte {
				f[len(f)-1] = 'X'
				return f
			},
			wantErr: ErrMalformedFrame,
		},
		{
			name: "missing ETX",
			mutate: func(f []byte) []byte {
				f[len(f)-5] = 'X'
				return f
			},
			wantErr: ErrMalformedFrame,
		},
		{
			name: "record not CR-terminated",
			mutate: func(f []byte) []byte {
				f[len(f)-6] = 'X'
				return f
			},
			wantErr: ErrMalformedFrame,
		},
		{
			name: "non-digit frame number",
			mutate: func(f []byte) []byte {
				f[1] = 'A'
				return f
			},
			wantErr: ErrBadFrameNumber,
		},
		{
			name: "non-hex checksum",
			mutate: func(f []byte) []byte {
				f[len(f)-4] = 'Z'
				return f
			},
			wantErr: ErrMalformedFrame,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			frame := make([]byte, len(valid))
			copy(frame, valid)

			_, _, err := ParseFrame(tt.mutate(frame))
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestNextFrameNumber(t *testing.T) {
	assert.Equal(t, 2, NextFrameNumber(1))
	assert.Equal(t, 7, NextFrameNumber(6))
	assert.Equal(t, 1, NextFrameNumber(7))
}

func TestFrameNumberCycle(t *testing.T) {
	n := 1
	var seen []int

	for i := 0; i < 10; i++ {
		seen = append(seen, n)
		n = NextFrameNumber(n)
	}

	assert.Equal(t, []int{1, 2, 3, 4, 5, 6, 7, 1, 2, 3}, seen)
}
