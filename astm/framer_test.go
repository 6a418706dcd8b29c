package astm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pushAll feeds bytes to the framer and collects every completed token.
func pushAll(t *testing.T, f *Framer, data []byte) []Token {
	t.Helper()

	var tokens []Token
	for _, b := range data {
		tok, err := f.Push(b)
		require.NoError(t, err)

		if tok.Kind != TokenNone {
			tokens = append(tokens, tok)
		}
	}

	return tokens
}

func TestFramerControlBytes(t *testing.T) {
	tests := []struct {
		b    byte
		kind TokenKind
	}{
		{ENQ, TokenENQ},
		{ACK, TokenACK},
		{NAK, TokenNAK},
		{EOT, TokenEOT},
		{ETX, TokenETX},
	}

	f := NewFramer()
	for _, tt := range tests {
		tok, err := f.Push(tt.b)
		require.NoError(t, err)
		assert.Equal(t, tt.kind, tok.Kind)
		assert.Zero(t, f.Pending())
	}
}

func TestFramerCompleteFrame(t *testing.T) {
	f := NewFramer()
	frame := BuildFrame(1, []byte("R|1|^^^GLU|5.3"))

	tokens := pushAll(t, f, frame)
	require.Len(t, tokens, 1)
	assert.Equal(t, TokenFrame, tokens[0].Kind)
	assert.Equal(t, frame, tokens[0].Data)
	assert.Zero(t, f.Pending())
}

func TestFramerInterleavedControlAndFrames(t *testing.T) {
	f := NewFramer()

	var stream []byte
	stream = append(stream, ENQ)
	stream = append(stream, BuildFrame(1, []byte("P|1"))...)
	stream = append(stream, BuildFrame(2, []byte("L|1|N"))...)
	stream = append(stream, EOT)

	tokens := pushAll(t, f, stream)
	require.Len(t, tokens, 4)
	assert.Equal(t, TokenENQ, tokens[0].Kind)
	assert.Equal(t, TokenFrame, tokens[1].Kind)
	assert.Equal(t, TokenFrame, tokens[2].Kind)
	assert.Equal(t, TokenEOT, tokens[3].Kind)
}

func TestFramerStrayAckInsideFrame(t *testing.T) {
	f := NewFramer()
	frame := BuildFrame(1, []byte("O|1|LAB1"))

	// Inject an ACK in the middle of the frame bytes; it must be dropped
	// without corrupting the frame.
	var stream []byte
	stream = append(stream, frame[:5]...)
	stream = append(stream, ACK)
	stream = append(stream, frame[5:]...)

	tokens := pushAll(t, f, stream)
	require.Len(t, tokens, 1)
	assert.Equal(t, TokenFrame, tokens[0].Kind)
	assert.Equal(t, frame, tokens[0].Data)
}

func TestFramerStandaloneSTXBeforeFrame(t *testing.T) {
	f := NewFramer()
	frame := BuildFrame(1, []byte("P|1"))

	// A standalone STX directly followed by a frame (which itself starts
	// with STX): the first STX is emitted as a control token, the second
	// opens the frame.
	stream := append([]byte{STX}, frame...)

	tokens := pushAll(t, f, stream)
	require.Len(t, tokens, 2)
	assert.Equal(t, TokenSTX, tokens[0].Kind)
	assert.Equal(t, TokenFrame, tokens[1].Kind)
	assert.Equal(t, frame, tokens[1].Data)
}

func TestFramerLFWithoutCR(t *testing.T) {
	f := NewFramer()

	for _, b := range []byte{STX, '1', 'X'} {
		_, err := f.Push(b)
		require.NoError(t, err)
	}

	_, err := f.Push(LF)
	assert.ErrorIs(t, err, ErrMalformedFrame)
	assert.Zero(t, f.Pending())
}

func TestFramerMissingChecksumBlock(t *testing.T) {
	f := NewFramer()

	// STX-opened buffer closed by CR LF but with no ETX/checksum block.
	for _, b := range []byte{STX, '1', 'X'} {
		_, err := f.Push(b)
		require.NoError(t, err)
	}

	_, err := f.Push(CR)
	require.NoError(t, err)

	_, err = f.Push(LF)
	assert.ErrorIs(t, err, ErrMalformedFrame)
}

func TestFramerOverflow(t *testing.T) {
	f := NewFramer()

	_, err := f.Push(STX)
	require.NoError(t, err)

	overflowed := false
	for i := 0; i < maxFramerBuffer+8; i++ {
		_, err := f.Push('X')
		if err != nil {
			assert.ErrorIs(t, err, ErrFrameOverflow)
			overflowed = true

			break
		}
	}

	assert.True(t, overflowed)
	assert.Zero(t, f.Pending())
}

func TestFramerResumesAfterError(t *testing.T) {
	f := NewFramer()

	// Malformed buffer first.
	for _, b := range []byte{STX, '1', CR} {
		_, err := f.Push(b)
		require.NoError(t, err)
	}
	_, err := f.Push(LF)
	require.Error(t, err)

	// A clean frame right after must still classify.
	frame := BuildFrame(1, []byte("P|1"))
	tokens := pushAll(t, f, frame)
	require.Len(t, tokens, 1)
	assert.Equal(t, TokenFrame, tokens[0].Kind)
}
