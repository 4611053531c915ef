package codec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	tests := []struct {
		name     string
		payload  []byte
		expected string
	}{
		{
			name:     "plain text",
			payload:  []byte("hello"),
			expected: `"hello"`,
		},
		{
			name:     "empty payload",
			payload:  []byte{},
			expected: `""`,
		},
		{
			name:     "embedded quotes and backslashes",
			payload:  []byte(`BEGIN:VCARD "quoted" \slash`),
			expected: `"BEGIN:VCARD \"quoted\" \\slash"`,
		},
		{
			name:     "newlines stay escaped",
			payload:  []byte("line1\r\nline2"),
			expected: `"line1\r\nline2"`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, Encode(tt.payload))
		})
	}
}

func TestDecodeRoundTrip(t *testing.T) {
	payloads := [][]byte{
		[]byte("hello"),
		{},
		[]byte("control\x01\x02\x1fchars"),
		[]byte("unicode: héllo wörld ✓"),
		[]byte("BEGIN:VCALENDAR\r\nVERSION:2.0\r\nEND:VCALENDAR\r\n"),
		[]byte(`{"nested":"json"}`),
	}

	for _, p := range payloads {
		decoded, present, err := Decode(Encode(p))
		require.NoError(t, err)
		assert.True(t, present, "encoded payload should decode as present")
		assert.Equal(t, p, decoded)
	}
}

func TestDecodeDeletionMarker(t *testing.T) {
	payload, present, err := Decode(DeletionMarker)
	require.NoError(t, err)
	assert.False(t, present, "deletion marker should decode as absent")
	assert.Nil(t, payload)
}

func TestDecodeEmptyString(t *testing.T) {
	payload, present, err := Decode(`""`)
	require.NoError(t, err)
	assert.True(t, present, "empty string is a present zero-length payload, not a deletion")
	assert.Len(t, payload, 0)
}

func TestDecodeMalformed(t *testing.T) {
	malformed := []string{
		"",
		"not json",
		"{",
		`"unterminated`,
		"42",      // a number is not a valid payload value
		"[1,2,3]", // nor is a nested array
	}

	for _, v := range malformed {
		_, _, err := Decode(v)
		assert.Error(t, err, "value %q should fail to decode", v)
	}
}
