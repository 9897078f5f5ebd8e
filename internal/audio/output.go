package audio

import (
	"fmt"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/speaker"
)

// Output is the device voices are mixed into. Lock/Unlock guard every
// streamer the output is currently pulling from.
type Output interface {
	SampleRate() beep.SampleRate
	Play(s beep.Streamer)
	Lock()
	Unlock()
	Close() error
}

type Config struct {
	SampleRate int
	Buffer     time.Duration
}

func DefaultConfig() Config {
	return Config{
		SampleRate: 44100,
		Buffer:     100 * time.Millisecond,
	}
}

// speakerOutput is the process-wide beep speaker. It stays open until Close.
type speakerOutput struct {
	rate beep.SampleRate
}

// OpenSpeaker checks for a default output device and opens the speaker on it.
func OpenSpeaker(cfg Config) (Output, error) {
	if cfg.SampleRate <= 0 {
		cfg.SampleRate = DefaultConfig().SampleRate
	}
	if cfg.Buffer <= 0 {
		cfg.Buffer = DefaultConfig().Buffer
	}

	if _, err := DefaultOutputDevice(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrDevice, err)
	}

	sr := beep.SampleRate(cfg.SampleRate)
	if err := speaker.Init(sr, sr.N(cfg.Buffer)); err != nil {
		return nil, fmt.Errorf("%w: speaker init: %w", ErrDevice, err)
	}

	return &speakerOutput{rate: sr}, nil
}

func (o *speakerOutput) SampleRate() beep.SampleRate { return o.rate }

func (o *speakerOutput) Play(s beep.Streamer) { speaker.Play(s) }

func (o *speakerOutput) Lock() { speaker.Lock() }

func (o *speakerOutput) Unlock() { speaker.Unlock() }

func (o *speakerOutput) Close() error {
	speaker.Close()
	return nil
}
