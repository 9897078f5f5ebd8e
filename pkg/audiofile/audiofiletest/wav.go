// Package audiofiletest writes small audio fixtures for tests.
package audiofiletest

import (
	"math"
	"os"
	"testing"
	"time"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteTone writes a 16-bit mono 440 Hz WAV of length d to path.
func WriteTone(t testing.TB, path string, sampleRate int, d time.Duration) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	n := int(d.Seconds() * float64(sampleRate))
	data := make([]int, n)
	for i := range data {
		data[i] = int(8000 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
	}

	enc := wav.NewEncoder(f, sampleRate, 16, 1, 1)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("finish %s: %v", path, err)
	}
}

// WriteFloatTone writes a 32-bit IEEE float (format tag 3) mono 440 Hz WAV
// of length d to path.
func WriteFloatTone(t testing.TB, path string, sampleRate int, d time.Duration) {
	t.Helper()

	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("create %s: %v", path, err)
	}
	defer f.Close()

	n := int(d.Seconds() * float64(sampleRate))
	data := make([]int, n)
	for i := range data {
		v := float32(0.25 * math.Sin(2*math.Pi*440*float64(i)/float64(sampleRate)))
		// the encoder writes 32-bit samples as raw little-endian words
		data[i] = int(int32(math.Float32bits(v)))
	}

	enc := wav.NewEncoder(f, sampleRate, 32, 1, 3)
	buf := &audio.IntBuffer{
		Format:         &audio.Format{NumChannels: 1, SampleRate: sampleRate},
		Data:           data,
		SourceBitDepth: 32,
	}
	if err := enc.Write(buf); err != nil {
		t.Fatalf("encode %s: %v", path, err)
	}
	if err := enc.Close(); err != nil {
		t.Fatalf("finish %s: %v", path, err)
	}
}

// WriteGarbage writes bytes no decoder accepts.
func WriteGarbage(t testing.TB, path string) {
	t.Helper()

	if err := os.WriteFile(path, []byte("definitely not audio"), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}
