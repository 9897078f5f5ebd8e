package library

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"soundboard/internal/hotkey"
	"soundboard/pkg/audiofile"
	"soundboard/pkg/util"
)

var (
	ErrNotFound    = errors.New("sound not found")
	ErrHotkeyInUse = errors.New("hotkey already bound")
)

const (
	MinVolume = 0.0
	MaxVolume = 2.0
)

type Sound struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Path     string        `json:"path"`
	Volume   float64       `json:"volume"`
	Hotkey   *string       `json:"hotkey"`
	Duration time.Duration `json:"duration,omitempty"`
	Size     int64         `json:"size,omitempty"`
}

func (s Sound) clone() Sound {
	if s.Hotkey != nil {
		hk := *s.Hotkey
		s.Hotkey = &hk
	}
	return s
}

type State struct {
	Sounds                    []Sound `json:"sounds"`
	CurrentFolder             *string `json:"current_folder"`
	MasterVolume              float64 `json:"master_volume"`
	SystemAudioRoutingEnabled bool    `json:"system_audio_routing_enabled"`
	VirtualMicEnabled         bool    `json:"virtual_mic_enabled"`
}

// Update carries optional changes for UpdateSound. A nil field is left
// alone; an empty Hotkey clears the binding.
type Update struct {
	Name   *string  `json:"name,omitempty"`
	Volume *float64 `json:"volume,omitempty"`
	Hotkey *string  `json:"hotkey,omitempty"`
}

type Option func(*Library)

func WithLogger(l *slog.Logger) Option {
	return func(lib *Library) {
		if l != nil {
			lib.log = l
		}
	}
}

// WithProber replaces the metadata probe run for every new sound.
func WithProber(f func(path string) (audiofile.Info, error)) Option {
	return func(lib *Library) { lib.probe = f }
}

// Library is the in-memory clip list and session state. Nothing is
// persisted.
type Library struct {
	log   *slog.Logger
	probe func(string) (audiofile.Info, error)

	mu    sync.RWMutex
	state State

	folderCh  chan string
	closed    chan struct{}
	closeOnce sync.Once
}

func New(opts ...Option) *Library {
	lib := &Library{
		log:   slog.Default(),
		probe: audiofile.Probe,
		state: State{
			Sounds:       []Sound{},
			MasterVolume: 1.0,
		},
		folderCh: make(chan string, 1),
		closed:   make(chan struct{}),
	}
	for _, opt := range opts {
		opt(lib)
	}
	return lib
}

// LoadFolder replaces the clip list with the audio files directly inside
// dir. Every clip gets a fresh id. An unreadable folder yields no clips.
func (l *Library) LoadFolder(dir string) ([]Sound, error) {
	dir = filepath.Clean(dir)
	sounds := l.scan(dir)

	l.mu.Lock()
	l.state.Sounds = sounds
	l.state.CurrentFolder = &dir
	out := l.soundsLocked()
	l.mu.Unlock()

	l.log.Info("Loaded folder", "folder", dir, "sounds", len(sounds))

	l.announceFolder(dir)

	return out, nil
}

// announceFolder hands the newest folder to Watch, replacing any unread one.
func (l *Library) announceFolder(dir string) {
	for {
		select {
		case l.folderCh <- dir:
			return
		default:
		}
		select {
		case <-l.folderCh:
		default:
		}
	}
}

func (l *Library) scan(dir string) []Sound {
	sounds := []Sound{}

	entries, err := os.ReadDir(dir)
	if err != nil {
		l.log.Warn("Failed to read folder", "folder", dir, "err", err)
		return sounds
	}

	for _, entry := range entries {
		path := filepath.Join(dir, entry.Name())
		if !isAudioFile(path) {
			continue
		}
		sounds = append(sounds, l.newSound(path))
	}

	return sounds
}

func (l *Library) newSound(path string) Sound {
	s := Sound{
		ID:     uuid.NewString(),
		Name:   strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		Path:   path,
		Volume: 1.0,
	}

	if fi, err := os.Stat(path); err == nil {
		s.Size = fi.Size()
	}
	if info, err := l.probe(path); err == nil {
		s.Duration = info.Duration
	} else {
		l.log.Debug("Probe failed", "path", path, "err", err)
	}

	return s
}

// AddSound appends a single file to the list.
func (l *Library) AddSound(path string) (Sound, error) {
	if _, err := os.Stat(path); err != nil {
		return Sound{}, fmt.Errorf("add sound: %w", err)
	}

	s := l.newSound(path)

	l.mu.Lock()
	l.state.Sounds = append(l.state.Sounds, s)
	l.mu.Unlock()

	return s.clone(), nil
}

// RemoveSound drops the sound with id and reports whether it existed.
func (l *Library) RemoveSound(id string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i, s := range l.state.Sounds {
		if s.ID == id {
			l.state.Sounds = append(l.state.Sounds[:i], l.state.Sounds[i+1:]...)
			return true
		}
	}
	return false
}

// UpdateSound applies u to the sound with id. Unknown ids are ignored.
func (l *Library) UpdateSound(id string, u Update) error {
	var binding *string
	if u.Hotkey != nil && *u.Hotkey != "" {
		norm, err := hotkey.Normalize(*u.Hotkey)
		if err != nil {
			return err
		}
		binding = &norm
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	idx := l.indexLocked(id)
	if idx < 0 {
		return nil
	}

	if binding != nil {
		for _, other := range l.state.Sounds {
			if other.ID != id && other.Hotkey != nil && *other.Hotkey == *binding {
				return fmt.Errorf("%w: %s is used by %q", ErrHotkeyInUse, *binding, other.Name)
			}
		}
	}

	s := &l.state.Sounds[idx]
	if u.Name != nil {
		s.Name = *u.Name
	}
	if u.Volume != nil {
		s.Volume = clampVolume(*u.Volume)
	}
	if u.Hotkey != nil {
		s.Hotkey = binding
	}

	return nil
}

func (l *Library) Sound(id string) (Sound, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	idx := l.indexLocked(id)
	if idx < 0 {
		return Sound{}, false
	}
	return l.state.Sounds[idx].clone(), true
}

// FindByHotkey returns the sound bound to the combination hk.
func (l *Library) FindByHotkey(hk string) (Sound, error) {
	norm, err := hotkey.Normalize(hk)
	if err != nil {
		return Sound{}, err
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	for _, s := range l.state.Sounds {
		if s.Hotkey != nil && *s.Hotkey == norm {
			return s.clone(), nil
		}
	}
	return Sound{}, fmt.Errorf("%w: no sound bound to %s", ErrNotFound, norm)
}

func (l *Library) Sounds() []Sound {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return l.soundsLocked()
}

func (l *Library) State() State {
	l.mu.RLock()
	defer l.mu.RUnlock()

	st := l.state
	st.Sounds = l.soundsLocked()
	if st.CurrentFolder != nil {
		folder := *st.CurrentFolder
		st.CurrentFolder = &folder
	}
	return st
}

func (l *Library) CurrentFolder() (string, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	if l.state.CurrentFolder == nil {
		return "", false
	}
	return *l.state.CurrentFolder, true
}

func (l *Library) SetMasterVolume(v float64) float64 {
	v = clampVolume(v)

	l.mu.Lock()
	l.state.MasterVolume = v
	l.mu.Unlock()

	return v
}

func (l *Library) SetSystemAudioRouting(enabled bool) {
	l.mu.Lock()
	l.state.SystemAudioRoutingEnabled = enabled
	l.mu.Unlock()
}

func (l *Library) SetVirtualMicEnabled(enabled bool) {
	l.mu.Lock()
	l.state.VirtualMicEnabled = enabled
	l.mu.Unlock()
}

// Close stops Watch. The clip list stays readable.
func (l *Library) Close() error {
	l.closeOnce.Do(func() { close(l.closed) })
	return nil
}

func (l *Library) indexLocked(id string) int {
	for i, s := range l.state.Sounds {
		if s.ID == id {
			return i
		}
	}
	return -1
}

func (l *Library) soundsLocked() []Sound {
	out := make([]Sound, len(l.state.Sounds))
	for i, s := range l.state.Sounds {
		out[i] = s.clone()
	}
	return out
}

func clampVolume(v float64) float64 {
	if math.IsNaN(v) {
		return MinVolume
	}
	return util.Clamp(v, MinVolume, MaxVolume)
}

// isAudioFile follows symlinks; a link to an audio file counts as one.
func isAudioFile(path string) bool {
	if !audiofile.IsAudio(path) {
		return false
	}
	fi, err := os.Stat(path)
	return err == nil && fi.Mode().IsRegular()
}
