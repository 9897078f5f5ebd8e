package board

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"soundboard/internal/audio"
	"soundboard/internal/events"
	"soundboard/internal/library"
)

// Engine is the part of audio.Engine the board drives.
type Engine interface {
	Play(clipID, path string, gain float64) (string, error)
	StopOne(voiceID string) bool
	StopClip(clipID string) int
	StopAll() int
	SetMasterVolume(v float64) float64
	Active() []audio.VoiceInfo
	ListOutputDevices() ([]string, error)
	Close() error
}

// Router is the part of routing.Controller the board drives.
type Router interface {
	Setup(ctx context.Context) error
	RouteApplicationAudio(ctx context.Context) (int, error)
	StartMaintenance(ctx context.Context)
	ToggleSystemAudioRouting(ctx context.Context, enabled bool) error
	CheckVirtualMicExists(ctx context.Context) (bool, error)
	ListSources(ctx context.Context) ([]string, error)
	ListSinks(ctx context.Context) ([]string, error)
	DefaultSource(ctx context.Context) (string, error)
	SetDefaultSource(ctx context.Context, source string) error
	Cleanup(ctx context.Context)
	SinkName() string
}

type Publisher interface {
	Publish(ev events.Event)
}

type discard struct{}

func (discard) Publish(events.Event) {}

type Option func(*Board)

func WithLogger(l *slog.Logger) Option {
	return func(b *Board) {
		if l != nil {
			b.log = l
		}
	}
}

func WithPublisher(p Publisher) Option {
	return func(b *Board) {
		if p != nil {
			b.pub = p
		}
	}
}

// WithCleanupOnExit makes Shutdown tear down the virtual devices.
func WithCleanupOnExit(enabled bool) Option {
	return func(b *Board) { b.cleanupOnExit = enabled }
}

// Board is the command surface: every UI command maps to one method.
type Board struct {
	base   context.Context
	engine Engine
	router Router
	lib    *library.Library
	pub    Publisher
	log    *slog.Logger

	cleanupOnExit bool
}

// New builds a board. base outlives single commands and scopes the
// routing maintenance loop.
func New(base context.Context, engine Engine, router Router, lib *library.Library, opts ...Option) *Board {
	b := &Board{
		base:   base,
		engine: engine,
		router: router,
		lib:    lib,
		pub:    discard{},
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

func (b *Board) changed(what string) {
	b.pub.Publish(events.StateChanged(what))
}

func (b *Board) LoadFolder(dir string) ([]library.Sound, error) {
	sounds, err := b.lib.LoadFolder(dir)
	if err != nil {
		return nil, err
	}
	b.log.Info("Loaded folder", "dir", dir, "sounds", len(sounds))
	b.changed("sounds")
	return sounds, nil
}

func (b *Board) AddSound(path string) (library.Sound, error) {
	s, err := b.lib.AddSound(path)
	if err != nil {
		return library.Sound{}, err
	}
	b.changed("sounds")
	return s, nil
}

func (b *Board) RemoveSound(id string) bool {
	if !b.lib.RemoveSound(id) {
		return false
	}
	b.changed("sounds")
	return true
}

func (b *Board) UpdateSound(id string, u library.Update) error {
	if err := b.lib.UpdateSound(id, u); err != nil {
		return err
	}
	b.changed("sounds")
	return nil
}

// PlaySound starts the clip with the given id. An unknown id is not an
// error and starts nothing.
func (b *Board) PlaySound(id string) (string, error) {
	s, ok := b.lib.Sound(id)
	if !ok {
		b.log.Debug("Play of unknown sound ignored", "id", id)
		return "", nil
	}
	return b.play(s)
}

func (b *Board) PlayHotkey(hk string) (string, error) {
	s, err := b.lib.FindByHotkey(hk)
	if err != nil {
		return "", err
	}
	return b.play(s)
}

func (b *Board) play(s library.Sound) (string, error) {
	voiceID, err := b.engine.Play(s.ID, s.Path, s.Volume)
	if err != nil {
		b.log.Warn("Failed to play", "sound", s.Name, "err", err)
		return "", err
	}
	b.log.Info("Playing", "sound", s.Name, "voice", voiceID)
	b.pub.Publish(events.SoundPlayed(s.ID, s.Name))
	return voiceID, nil
}

// StopSound stops every voice of the clip.
func (b *Board) StopSound(id string) int {
	return b.engine.StopClip(id)
}

func (b *Board) StopVoice(voiceID string) bool {
	return b.engine.StopOne(voiceID)
}

func (b *Board) StopAllSounds() int {
	return b.engine.StopAll()
}

func (b *Board) Sounds() []library.Sound {
	return b.lib.Sounds()
}

func (b *Board) State() library.State {
	return b.lib.State()
}

func (b *Board) SetMasterVolume(v float64) float64 {
	v = b.engine.SetMasterVolume(v)
	b.lib.SetMasterVolume(v)
	b.changed("master_volume")
	return v
}

func (b *Board) ActiveVoices() []audio.VoiceInfo {
	return b.engine.Active()
}

func (b *Board) ListOutputDevices() ([]string, error) {
	return b.engine.ListOutputDevices()
}

// SetupVirtualMicrophone builds the device graph, moves our streams onto the
// mix sink and keeps them there. It returns the mix sink name.
func (b *Board) SetupVirtualMicrophone(ctx context.Context) (string, error) {
	if err := b.router.Setup(ctx); err != nil {
		return "", err
	}
	if n, err := b.router.RouteApplicationAudio(ctx); err != nil {
		b.log.Warn("Initial stream routing failed", "err", err)
	} else {
		b.log.Debug("Routed streams", "count", n)
	}
	b.router.StartMaintenance(b.base)

	b.lib.SetVirtualMicEnabled(true)
	b.changed("virtual_mic")
	return b.router.SinkName(), nil
}

func (b *Board) CheckVirtualMicExists(ctx context.Context) (bool, error) {
	return b.router.CheckVirtualMicExists(ctx)
}

func (b *Board) CleanupVirtualMicrophone(ctx context.Context) {
	b.router.Cleanup(ctx)
	b.lib.SetVirtualMicEnabled(false)
	b.changed("virtual_mic")
}

// ToggleSystemAudioRouting records the new intent only when the routing
// change went through.
func (b *Board) ToggleSystemAudioRouting(ctx context.Context, enabled bool) error {
	if err := b.router.ToggleSystemAudioRouting(ctx, enabled); err != nil {
		return err
	}
	b.lib.SetSystemAudioRouting(enabled)
	b.changed("system_audio_routing")
	return nil
}

func (b *Board) ListAudioSources(ctx context.Context) ([]string, error) {
	return b.router.ListSources(ctx)
}

func (b *Board) ListAudioSinks(ctx context.Context) ([]string, error) {
	return b.router.ListSinks(ctx)
}

func (b *Board) DefaultSource(ctx context.Context) (string, error) {
	return b.router.DefaultSource(ctx)
}

func (b *Board) SetDefaultSource(ctx context.Context, source string) error {
	if source == "" {
		return errors.New("source name required")
	}
	return b.router.SetDefaultSource(ctx, source)
}

// Shutdown silences everything and releases the output device.
func (b *Board) Shutdown(ctx context.Context) error {
	n := b.engine.StopAll()
	b.log.Debug("Stopped voices", "count", n)

	var errs []error
	if err := b.engine.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close engine: %w", err))
	}
	if err := b.lib.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close library: %w", err))
	}
	if b.cleanupOnExit {
		b.router.Cleanup(ctx)
	}
	return errors.Join(errs...)
}
