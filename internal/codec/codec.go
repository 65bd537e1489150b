// Package codec converts between raw bytes, base64 text and PCM16 audio.
//
// PCM16 conversion is exact for every int16 sample value. Floats that do not
// sit on the int16 lattice (k/32768) are rounded, so round-tripping arbitrary
// floats is lossy.
package codec

import (
	"encoding/base64"
	"encoding/binary"
	"math"
)

const pcmScale = 32768.0

func EncodeBase64(b []byte) string {
	return base64.StdEncoding.EncodeToString(b)
}

func DecodeBase64(s string) ([]byte, error) {
	return base64.StdEncoding.DecodeString(s)
}

// PCM16ToFloat32 decodes little-endian signed 16-bit samples. A trailing odd
// byte is ignored.
func PCM16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(binary.LittleEndian.Uint16(pcm[i*2:]))
		out[i] = float32(float64(v) / pcmScale)
	}
	return out
}

// Float32ToPCM16 encodes samples as little-endian int16, clamping to range.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(floatToInt16(s)))
	}
	return out
}

// DeinterleavePCM16 splits interleaved PCM16 frames into one float slice per
// channel.
func DeinterleavePCM16(pcm []byte, channels int) [][]float32 {
	if channels <= 1 {
		return [][]float32{PCM16ToFloat32(pcm)}
	}
	samples := PCM16ToFloat32(pcm)
	frames := len(samples) / channels
	out := make([][]float32, channels)
	for ch := range out {
		out[ch] = make([]float32, frames)
		for i := 0; i < frames; i++ {
			out[ch][i] = samples[i*channels+ch]
		}
	}
	return out
}

func floatToInt16(f float32) int16 {
	if math.IsNaN(float64(f)) {
		return 0
	}
	v := math.Round(float64(f) * pcmScale)
	if v > math.MaxInt16 {
		return math.MaxInt16
	}
	if v < math.MinInt16 {
		return math.MinInt16
	}
	return int16(v)
}
