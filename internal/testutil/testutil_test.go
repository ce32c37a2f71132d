package testutil

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFloat32PayloadLayout(t *testing.T) {
	raw, err := base64.StdEncoding.DecodeString(Float32Payload(1.0, -2.5))
	require.NoError(t, err)
	// 1.0 = 0x3f800000, -2.5 = 0xc0200000, little-endian
	assert.Equal(t, []byte{0x00, 0x00, 0x80, 0x3f, 0x00, 0x00, 0x20, 0xc0}, raw)
}

func TestRampWaterfall(t *testing.T) {
	entries := RampWaterfall(3, 4, -100)
	require.Len(t, entries, 3)
	assert.Equal(t, Float32Payload(-98, -97, -96, -95), entries[2].Data)
	assert.Equal(t, 1e6, entries[0].SampleRate)
}

func TestAssertStatusCodeMatching(t *testing.T) {
	fakeT := &testing.T{}
	AssertStatusCode(fakeT, 200, 200)
	assert.False(t, fakeT.Failed())
}
