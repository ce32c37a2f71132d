// Package waterfall is the waterfall visualization engine: it decodes
// power-spectrum slices, estimates a shared color scale, tracks the visible
// window and selection, drives timed playback and rasterises the window.
package waterfall

import (
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"math"
)

// DecodeSlice decodes one base64 payload into float32 power values (dB).
// The decoded bytes are read as consecutive little-endian IEEE-754 floats.
// An empty payload decodes to zero samples without error.
func DecodeSlice(payload string) ([]float32, error) {
	raw, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, fmt.Errorf("base64 decode: %w", err)
	}
	if len(raw)%4 != 0 {
		return nil, fmt.Errorf("payload length %d is not a multiple of 4 bytes", len(raw))
	}
	samples := make([]float32, len(raw)/4)
	for i := range samples {
		samples[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[i*4:]))
	}
	return samples, nil
}

// EncodeSlice is the inverse of DecodeSlice.
func EncodeSlice(samples []float32) string {
	raw := make([]byte, 4*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint32(raw[i*4:], math.Float32bits(v))
	}
	return base64.StdEncoding.EncodeToString(raw)
}
