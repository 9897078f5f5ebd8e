package audio

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"math"
	"slices"
	"sync"

	"github.com/faiface/beep"
	"github.com/google/uuid"

	"soundboard/pkg/audiofile"
	"soundboard/pkg/util"
)

var (
	ErrFileNotFound = errors.New("audio file not found")
	ErrDecode       = errors.New("cannot decode audio file")
	ErrDevice       = errors.New("no audio output device")
)

const (
	MinGain = 0.0
	MaxGain = 2.0

	resampleQuality = 4
)

type Option func(*Engine)

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.log = l
		}
	}
}

// WithActivityHook registers f to receive the active voice count after
// every change. f runs on the goroutine that made the change.
func WithActivityHook(f func(active int)) Option {
	return func(e *Engine) {
		e.onActivity = f
	}
}

// WithDeviceLister replaces the portaudio device listing.
func WithDeviceLister(f func() ([]string, error)) Option {
	return func(e *Engine) {
		e.listDevices = f
	}
}

// Engine plays overlapping one-shot clips on a single Output.
type Engine struct {
	out         Output
	log         *slog.Logger
	listDevices func() ([]string, error)
	onActivity  func(int)

	mu     sync.RWMutex
	voices map[string]*voice

	gainMu sync.RWMutex
	master float64

	closeOnce sync.Once
}

// Init opens the default speaker and builds an Engine on it.
func Init(cfg Config, opts ...Option) (*Engine, error) {
	out, err := OpenSpeaker(cfg)
	if err != nil {
		return nil, err
	}
	return New(out, opts...), nil
}

func New(out Output, opts ...Option) *Engine {
	e := &Engine{
		out:         out,
		log:         slog.Default(),
		listDevices: ListOutputDevices,
		voices:      make(map[string]*voice),
		master:      1.0,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Play decodes path and starts it as a new voice at gain*master. It returns
// once the voice is mixing; completion is reaped in the background.
func (e *Engine) Play(clipID, path string, gain float64) (string, error) {
	s, format, err := audiofile.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return "", fmt.Errorf("%w: %s", ErrFileNotFound, path)
		}
		return "", fmt.Errorf("%w: %s: %w", ErrDecode, path, err)
	}

	var src beep.Streamer = s
	if rate := e.out.SampleRate(); format.SampleRate != rate {
		src = beep.Resample(resampleQuality, format.SampleRate, rate, s)
	}

	gain = clampGain(gain)
	v := newVoice(uuid.NewString(), clipID, path, gain, s, src)
	v.setLevel(gain * e.MasterVolume())

	e.mu.Lock()
	e.voices[v.id] = v
	e.mu.Unlock()

	e.out.Play(v.ctrl)
	go e.reap(v)

	e.log.Debug("Voice started", "voice", v.id, "clip", clipID, "path", path, "gain", gain)
	e.notify()

	return v.id, nil
}

func (e *Engine) reap(v *voice) {
	<-v.done

	e.mu.Lock()
	cur, ok := e.voices[v.id]
	if ok && cur == v {
		delete(e.voices, v.id)
	}
	e.mu.Unlock()

	if err := v.source.Close(); err != nil {
		e.log.Debug("Failed to close voice source", "voice", v.id, "err", err)
	}

	if ok {
		e.log.Debug("Voice finished", "voice", v.id, "clip", v.clipID)
		e.notify()
	}
}

// StopOne halts a single voice. It reports whether the voice was active.
func (e *Engine) StopOne(voiceID string) bool {
	e.mu.Lock()
	v, ok := e.voices[voiceID]
	delete(e.voices, voiceID)
	e.mu.Unlock()

	if !ok {
		return false
	}

	e.halt([]*voice{v})
	return true
}

// StopClip halts every voice started for clipID and returns how many.
func (e *Engine) StopClip(clipID string) int {
	var stopped []*voice

	e.mu.Lock()
	for id, v := range e.voices {
		if v.clipID == clipID {
			stopped = append(stopped, v)
			delete(e.voices, id)
		}
	}
	e.mu.Unlock()

	e.halt(stopped)
	return len(stopped)
}

// StopAll halts and releases every active voice.
func (e *Engine) StopAll() int {
	e.mu.Lock()
	stopped := make([]*voice, 0, len(e.voices))
	for _, v := range e.voices {
		stopped = append(stopped, v)
	}
	e.voices = make(map[string]*voice)
	e.mu.Unlock()

	e.halt(stopped)
	return len(stopped)
}

func (e *Engine) halt(voices []*voice) {
	if len(voices) == 0 {
		return
	}

	e.out.Lock()
	for _, v := range voices {
		v.halt()
	}
	e.out.Unlock()

	for _, v := range voices {
		v.finish()
	}

	e.notify()
}

// SetMasterVolume clamps v to [MinGain, MaxGain], stores it and re-applies
// clip gain * master to every active voice. It returns the stored value.
func (e *Engine) SetMasterVolume(v float64) float64 {
	v = clampGain(v)

	e.gainMu.Lock()
	e.master = v
	e.gainMu.Unlock()

	e.mu.RLock()
	active := make([]*voice, 0, len(e.voices))
	for _, vc := range e.voices {
		active = append(active, vc)
	}
	e.mu.RUnlock()

	if len(active) > 0 {
		e.out.Lock()
		for _, vc := range active {
			vc.setLevel(vc.gain * v)
		}
		e.out.Unlock()
	}

	return v
}

func (e *Engine) MasterVolume() float64 {
	e.gainMu.RLock()
	defer e.gainMu.RUnlock()
	return e.master
}

// Active returns the playing voices, oldest first.
func (e *Engine) Active() []VoiceInfo {
	e.mu.RLock()
	out := make([]VoiceInfo, 0, len(e.voices))
	for _, v := range e.voices {
		out = append(out, v.info())
	}
	e.mu.RUnlock()

	slices.SortFunc(out, func(a, b VoiceInfo) int {
		return a.Started.Compare(b.Started)
	})
	return out
}

func (e *Engine) ListOutputDevices() ([]string, error) {
	names, err := e.listDevices()
	if err != nil {
		return nil, err
	}
	if names == nil {
		names = []string{}
	}
	return names, nil
}

// Close stops every voice and releases the output. Pending reapers are left
// to finish on their own.
func (e *Engine) Close() error {
	var err error
	e.closeOnce.Do(func() {
		e.StopAll()
		err = e.out.Close()
	})
	return err
}

func (e *Engine) notify() {
	if e.onActivity == nil {
		return
	}

	e.mu.RLock()
	n := len(e.voices)
	e.mu.RUnlock()

	e.onActivity(n)
}

func clampGain(v float64) float64 {
	if math.IsNaN(v) {
		return MinGain
	}
	return util.Clamp(v, MinGain, MaxGain)
}
