package audio

import (
	"math"
	"sync"
	"time"

	"github.com/faiface/beep"
	"github.com/faiface/beep/effects"
)

// VoiceInfo describes one playing voice.
type VoiceInfo struct {
	ID      string    `json:"id"`
	ClipID  string    `json:"clip_id"`
	Path    string    `json:"path"`
	Gain    float64   `json:"gain"`
	Started time.Time `json:"started"`
}

type voice struct {
	id      string
	clipID  string
	path    string
	gain    float64
	started time.Time

	source beep.StreamSeekCloser
	vol    *effects.Volume
	ctrl   *beep.Ctrl

	done chan struct{}
	once sync.Once
}

func newVoice(id, clipID, path string, gain float64, source beep.StreamSeekCloser, src beep.Streamer) *voice {
	v := &voice{
		id:      id,
		clipID:  clipID,
		path:    path,
		gain:    gain,
		started: time.Now(),
		source:  source,
		done:    make(chan struct{}),
	}
	v.vol = &effects.Volume{Streamer: src, Base: 2}
	v.ctrl = &beep.Ctrl{Streamer: beep.Seq(v.vol, beep.Callback(v.finish))}

	return v
}

// setLevel must run under the output lock once the voice is playing.
func (v *voice) setLevel(level float64) {
	if level <= 0 {
		v.vol.Silent = true
		v.vol.Volume = 0
		return
	}
	v.vol.Silent = false
	v.vol.Volume = math.Log2(level)
}

// halt detaches the voice from the mixer. Must run under the output lock.
func (v *voice) halt() {
	v.ctrl.Streamer = nil
}

func (v *voice) finish() {
	v.once.Do(func() {
		close(v.done)
	})
}

func (v *voice) info() VoiceInfo {
	return VoiceInfo{
		ID:      v.id,
		ClipID:  v.clipID,
		Path:    v.path,
		Gain:    v.gain,
		Started: v.started,
	}
}
