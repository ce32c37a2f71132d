// Package testutil provides shared test helpers and waterfall payload fixtures.
package testutil

import (
	"encoding/base64"
	"encoding/binary"
	"math"
	"testing"
)

// AssertStatusCode checks that the response status code matches expected.
func AssertStatusCode(t testing.TB, got, want int) {
	t.Helper()
	if got != want {
		t.Errorf("status code = %d, want %d", got, want)
	}
}

// Float32Payload encodes samples the way the upstream gateway does:
// little-endian IEEE-754 float32 values, base64 (standard alphabet).
func Float32Payload(samples ...float32) string {
	buf := make([]byte, 4*len(samples))
	for i, v := range samples {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return base64.StdEncoding.EncodeToString(buf)
}

// WaterfallEntry mirrors one element of the download_post_processed_data array.
type WaterfallEntry struct {
	Data       string  `json:"data"`
	SampleRate float64 `json:"sample_rate"`
	Timestamp  string  `json:"timestamp,omitempty"`
}

// RampWaterfall builds n entries of width samples each. Sample j of slice i
// is base + i + j, which makes min/max easy to predict in assertions.
func RampWaterfall(n, width int, base float32) []WaterfallEntry {
	out := make([]WaterfallEntry, n)
	for i := range out {
		samples := make([]float32, width)
		for j := range samples {
			samples[j] = base + float32(i+j)
		}
		out[i] = WaterfallEntry{Data: Float32Payload(samples...), SampleRate: 1e6}
	}
	return out
}

// StatusBody returns a post_processing_status response with a single artifact.
func StatusBody(processingType, status string) map[string]interface{} {
	return map[string]interface{}{
		"capture_uuid": "capture",
		"post_processed_data": []map[string]interface{}{
			{"processing_type": processingType, "processing_status": status},
		},
	}
}
