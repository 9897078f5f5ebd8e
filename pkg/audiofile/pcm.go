package audiofile

import (
	"fmt"
	"sync"
)

// pcmStream serves fully decoded stereo frames. Only the opus decoder, which
// cannot seek, produces whole buffers.
type pcmStream struct {
	mu     sync.Mutex
	frames [][2]float64
	pos    int
}

func newPCMStream(frames [][2]float64) *pcmStream {
	return &pcmStream{frames: frames}
}

func (s *pcmStream) Stream(samples [][2]float64) (n int, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.pos >= len(s.frames) {
		return 0, false
	}
	n = copy(samples, s.frames[s.pos:])
	s.pos += n
	return n, true
}

func (s *pcmStream) Err() error { return nil }

func (s *pcmStream) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

func (s *pcmStream) Position() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

func (s *pcmStream) Seek(p int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if p < 0 || p > len(s.frames) {
		return fmt.Errorf("seek position %d out of range [0, %d]", p, len(s.frames))
	}
	s.pos = p
	return nil
}

func (s *pcmStream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.frames = nil
	s.pos = 0
	return nil
}

// helpers

// interleavedToFrames maps mono onto both channels and keeps the first two
// channels of wider layouts.
func interleavedToFrames(in []float32, channels int) [][2]float64 {
	if channels <= 0 {
		channels = 1
	}
	nFrames := len(in) / channels
	out := make([][2]float64, nFrames)
	for i := 0; i < nFrames; i++ {
		base := i * channels
		l := float64(in[base])
		r := l
		if channels > 1 {
			r = float64(in[base+1])
		}
		out[i] = [2]float64{l, r}
	}
	return out
}

func int16SliceToFloat32(data []int16) []float32 {
	out := make([]float32, len(data))
	const scale = 1.0 / 32768.0
	for i, v := range data {
		out[i] = float32(float64(v) * scale)
	}
	return out
}
