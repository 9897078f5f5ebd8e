package board

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"soundboard/internal/audio"
	"soundboard/internal/events"
	"soundboard/internal/ipc"
	"soundboard/internal/library"
	"soundboard/internal/routing"
	"soundboard/pkg/audiofile"
)

type played struct {
	clipID, path string
	gain         float64
}

type fakeEngine struct {
	mu      sync.Mutex
	plays   []played
	master  float64
	stopped []string
	closed  bool
	failErr error
}

func (e *fakeEngine) Play(clipID, path string, gain float64) (string, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.failErr != nil {
		return "", e.failErr
	}
	e.plays = append(e.plays, played{clipID, path, gain})
	return "voice-" + clipID, nil
}

func (e *fakeEngine) StopOne(voiceID string) bool {
	e.stopped = append(e.stopped, voiceID)
	return voiceID == "voice-live"
}

func (e *fakeEngine) StopClip(clipID string) int {
	e.stopped = append(e.stopped, clipID)
	return 2
}

func (e *fakeEngine) StopAll() int { return 3 }

func (e *fakeEngine) SetMasterVolume(v float64) float64 {
	if v > 2 {
		v = 2
	}
	e.master = v
	return v
}

func (e *fakeEngine) Active() []audio.VoiceInfo {
	return []audio.VoiceInfo{{ID: "voice-live", ClipID: "c1"}}
}

func (e *fakeEngine) ListOutputDevices() ([]string, error) {
	return []string{"Built-in Audio"}, nil
}

func (e *fakeEngine) Close() error {
	e.closed = true
	return nil
}

type fakeRouter struct {
	mu          sync.Mutex
	calls       []string
	micExists   bool
	setupErr    error
	toggleErr   error
	maintaining bool
	defaultSrc  string
}

func (r *fakeRouter) record(call string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = append(r.calls, call)
}

func (r *fakeRouter) Setup(context.Context) error {
	r.record("setup")
	if r.setupErr != nil {
		return r.setupErr
	}
	r.micExists = true
	return nil
}

func (r *fakeRouter) RouteApplicationAudio(context.Context) (int, error) {
	r.record("route")
	return 1, nil
}

func (r *fakeRouter) StartMaintenance(ctx context.Context) {
	r.record("maintain")
	r.maintaining = true
}

func (r *fakeRouter) ToggleSystemAudioRouting(_ context.Context, enabled bool) error {
	r.record("toggle")
	if enabled && !r.micExists {
		return routing.ErrPrecondition
	}
	return r.toggleErr
}

func (r *fakeRouter) CheckVirtualMicExists(context.Context) (bool, error) {
	return r.micExists, nil
}

func (r *fakeRouter) ListSources(context.Context) ([]string, error) {
	return []string{"alsa_input.pci", "SoundboardMic"}, nil
}

func (r *fakeRouter) ListSinks(context.Context) ([]string, error) {
	return []string{}, nil
}

func (r *fakeRouter) DefaultSource(context.Context) (string, error) {
	return r.defaultSrc, nil
}

func (r *fakeRouter) SetDefaultSource(_ context.Context, source string) error {
	r.defaultSrc = source
	return nil
}

func (r *fakeRouter) Cleanup(context.Context) {
	r.record("cleanup")
	r.micExists = false
	r.maintaining = false
}

func (r *fakeRouter) SinkName() string { return "Soundboard_Mix" }

type recorder struct {
	mu     sync.Mutex
	events []events.Event
}

func (p *recorder) Publish(ev events.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recorder) kinds() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Kind
	}
	return out
}

func noProbe(string) (audiofile.Info, error) {
	return audiofile.Info{}, errors.New("probe disabled")
}

type fixture struct {
	board  *Board
	engine *fakeEngine
	router *fakeRouter
	lib    *library.Library
	pub    *recorder
	dir    string
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()

	dir := t.TempDir()
	for _, name := range []string{"airhorn.mp3", "applause.wav", "readme.txt"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	f := &fixture{
		engine: &fakeEngine{master: 1},
		router: &fakeRouter{defaultSrc: "alsa_input.pci"},
		lib:    library.New(library.WithProber(noProbe)),
		pub:    &recorder{},
		dir:    dir,
	}
	opts = append([]Option{WithPublisher(f.pub)}, opts...)
	f.board = New(context.Background(), f.engine, f.router, f.lib, opts...)
	return f
}

func (f *fixture) call(t *testing.T, cmd string, args any) ipc.Response {
	t.Helper()
	req := ipc.Request{Cmd: cmd}
	if args != nil {
		raw, err := json.Marshal(args)
		if err != nil {
			t.Fatal(err)
		}
		req.Args = raw
	}
	return f.board.Handle(context.Background(), req)
}

func (f *fixture) mustCall(t *testing.T, cmd string, args any, out any) {
	t.Helper()
	resp := f.call(t, cmd, args)
	if !resp.OK {
		t.Fatalf("%s failed: %s", cmd, resp.Error)
	}
	if out != nil {
		if err := resp.Decode(out); err != nil {
			t.Fatalf("%s decode: %v", cmd, err)
		}
	}
}

func (f *fixture) soundNamed(t *testing.T, name string) library.Sound {
	t.Helper()
	for _, s := range f.lib.Sounds() {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("no sound named %q", name)
	return library.Sound{}
}

func TestLoadFolderAndList(t *testing.T) {
	f := newFixture(t)

	var sounds []library.Sound
	f.mustCall(t, "load_folder", map[string]string{"path": f.dir}, &sounds)
	if len(sounds) != 2 {
		t.Fatalf("expected 2 sounds, got %d", len(sounds))
	}

	var listed []library.Sound
	f.mustCall(t, "get_all_sounds", nil, &listed)
	if len(listed) != 2 {
		t.Errorf("get_all_sounds returned %d", len(listed))
	}

	var st library.State
	f.mustCall(t, "get_state", nil, &st)
	if st.CurrentFolder == nil || *st.CurrentFolder != f.dir {
		t.Errorf("current folder = %v", st.CurrentFolder)
	}

	if kinds := f.pub.kinds(); len(kinds) != 1 || kinds[0] != events.KindStateChanged {
		t.Errorf("events = %v", kinds)
	}
}

func TestPlaySound(t *testing.T) {
	f := newFixture(t)
	f.mustCall(t, "load_folder", map[string]string{"path": f.dir}, nil)
	horn := f.soundNamed(t, "airhorn")

	f.mustCall(t, "update_sound", map[string]any{"id": horn.ID, "volume": 3.5}, nil)

	var res PlayResult
	f.mustCall(t, "play_sound", map[string]string{"id": horn.ID}, &res)
	if res.VoiceID != "voice-"+horn.ID {
		t.Errorf("voice id = %q", res.VoiceID)
	}
	if len(f.engine.plays) != 1 || f.engine.plays[0].gain != 2.0 || f.engine.plays[0].path != horn.Path {
		t.Errorf("engine plays = %+v", f.engine.plays)
	}

	kinds := f.pub.kinds()
	if kinds[len(kinds)-1] != events.KindSoundPlayed {
		t.Errorf("expected sound-played last, got %v", kinds)
	}
}

func TestPlayUnknownIsNoop(t *testing.T) {
	f := newFixture(t)

	var res PlayResult
	f.mustCall(t, "play_sound", map[string]string{"id": "nope"}, &res)
	if res.VoiceID != "" || len(f.engine.plays) != 0 {
		t.Errorf("unknown id started playback: %+v", f.engine.plays)
	}
}

func TestPlayFailureSurfaces(t *testing.T) {
	f := newFixture(t)
	f.mustCall(t, "load_folder", map[string]string{"path": f.dir}, nil)
	f.engine.failErr = audio.ErrFileNotFound

	resp := f.call(t, "play_sound", map[string]string{"id": f.soundNamed(t, "applause").ID})
	if resp.OK || resp.Error != audio.ErrFileNotFound.Error() {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestPlayHotkey(t *testing.T) {
	f := newFixture(t)
	f.mustCall(t, "load_folder", map[string]string{"path": f.dir}, nil)
	clap := f.soundNamed(t, "applause")

	f.mustCall(t, "update_sound", map[string]any{"id": clap.ID, "hotkey": "ctrl+shift+p"}, nil)

	var res PlayResult
	f.mustCall(t, "play_hotkey", map[string]string{"hotkey": "Shift+Ctrl+P"}, &res)
	if res.VoiceID != "voice-"+clap.ID {
		t.Errorf("voice id = %q", res.VoiceID)
	}

	resp := f.call(t, "play_hotkey", map[string]string{"hotkey": "Ctrl+Q"})
	if resp.OK {
		t.Error("unbound hotkey should fail")
	}

	f.mustCall(t, "update_sound", map[string]any{"id": clap.ID, "hotkey": ""}, nil)
	if s := f.soundNamed(t, "applause"); s.Hotkey != nil {
		t.Errorf("hotkey not cleared: %q", *s.Hotkey)
	}
}

func TestStopCommands(t *testing.T) {
	f := newFixture(t)

	var res StopResult
	f.mustCall(t, "stop_sound", map[string]string{"id": "c1"}, &res)
	if res.Stopped != 2 {
		t.Errorf("stop_sound stopped %d", res.Stopped)
	}

	f.mustCall(t, "stop_sound", map[string]string{"voice_id": "voice-live"}, &res)
	if res.Stopped != 1 {
		t.Errorf("stop by voice stopped %d", res.Stopped)
	}

	f.mustCall(t, "stop_all_sounds", nil, &res)
	if res.Stopped != 3 {
		t.Errorf("stop_all_sounds stopped %d", res.Stopped)
	}

	var voices []audio.VoiceInfo
	f.mustCall(t, "get_active_voices", nil, &voices)
	if len(voices) != 1 || voices[0].ID != "voice-live" {
		t.Errorf("active voices = %+v", voices)
	}
}

func TestSetMasterVolume(t *testing.T) {
	f := newFixture(t)

	var res VolumeResult
	f.mustCall(t, "set_master_volume", map[string]float64{"volume": 5}, &res)
	if res.Volume != 2 || f.engine.master != 2 {
		t.Errorf("volume = %v, engine = %v", res.Volume, f.engine.master)
	}
	if st := f.lib.State(); st.MasterVolume != 2 {
		t.Errorf("library master = %v", st.MasterVolume)
	}

	if resp := f.call(t, "set_master_volume", map[string]any{}); resp.OK {
		t.Error("missing volume should fail")
	}
}

func TestVirtualMicLifecycle(t *testing.T) {
	f := newFixture(t)

	resp := f.call(t, "toggle_system_audio_routing", map[string]bool{"enabled": true})
	if resp.OK {
		t.Fatal("toggle without mic should fail")
	}
	if f.lib.State().SystemAudioRoutingEnabled {
		t.Error("failed toggle recorded intent")
	}

	var setup SetupResult
	f.mustCall(t, "setup_virtual_microphone", nil, &setup)
	if setup.Sink != "Soundboard_Mix" {
		t.Errorf("sink = %q", setup.Sink)
	}
	want := []string{"toggle", "setup", "route", "maintain"}
	if len(f.router.calls) != len(want) {
		t.Fatalf("router calls = %v", f.router.calls)
	}
	for i := range want {
		if f.router.calls[i] != want[i] {
			t.Errorf("router calls = %v, want %v", f.router.calls, want)
			break
		}
	}

	var exists bool
	f.mustCall(t, "check_virtual_mic_exists", nil, &exists)
	if !exists {
		t.Error("mic should exist after setup")
	}

	f.mustCall(t, "toggle_system_audio_routing", map[string]bool{"enabled": true}, nil)
	st := f.lib.State()
	if !st.SystemAudioRoutingEnabled || !st.VirtualMicEnabled {
		t.Errorf("state after toggle = %+v", st)
	}

	f.mustCall(t, "cleanup_virtual_microphone", nil, nil)
	if f.router.maintaining || f.lib.State().VirtualMicEnabled {
		t.Error("cleanup left session active")
	}
}

func TestSetupFailure(t *testing.T) {
	f := newFixture(t)
	f.router.setupErr = routing.ErrRouting

	resp := f.call(t, "setup_virtual_microphone", nil)
	if resp.OK {
		t.Fatal("expected failure")
	}
	if f.router.maintaining || f.lib.State().VirtualMicEnabled {
		t.Error("failed setup started the session")
	}
}

func TestDeviceQueries(t *testing.T) {
	f := newFixture(t)

	var sources, sinks, devices []string
	f.mustCall(t, "list_audio_sources", nil, &sources)
	f.mustCall(t, "list_audio_sinks", nil, &sinks)
	f.mustCall(t, "list_output_devices", nil, &devices)
	if len(sources) != 2 || sinks == nil || len(sinks) != 0 || len(devices) != 1 {
		t.Errorf("sources %v sinks %v devices %v", sources, sinks, devices)
	}

	f.mustCall(t, "set_default_source", map[string]string{"source": "SoundboardMic"}, nil)

	var def DefaultSourceResult
	f.mustCall(t, "get_default_source", nil, &def)
	if def.Source != "SoundboardMic" {
		t.Errorf("default source = %q", def.Source)
	}

	if resp := f.call(t, "set_default_source", map[string]string{"source": ""}); resp.OK {
		t.Error("empty source should fail")
	}
}

func TestHandleErrors(t *testing.T) {
	f := newFixture(t)

	tests := []struct {
		name string
		req  ipc.Request
	}{
		{"unknown command", ipc.Request{Cmd: "explode"}},
		{"missing args", ipc.Request{Cmd: "play_sound"}},
		{"bad args", ipc.Request{Cmd: "load_folder", Args: json.RawMessage(`[1,2]`)}},
		{"add missing file", ipc.Request{Cmd: "add_sound", Args: json.RawMessage(`{"path":"/nonexistent/x.mp3"}`)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := f.board.Handle(context.Background(), tt.req)
			if resp.OK || resp.Error == "" {
				t.Errorf("expected error response, got %+v", resp)
			}
		})
	}
}

func TestAddRemoveSound(t *testing.T) {
	f := newFixture(t)

	var s library.Sound
	f.mustCall(t, "add_sound", map[string]string{"path": filepath.Join(f.dir, "airhorn.mp3")}, &s)
	if s.Name != "airhorn" {
		t.Errorf("name = %q", s.Name)
	}

	var removed bool
	f.mustCall(t, "remove_sound", map[string]string{"id": s.ID}, &removed)
	if !removed {
		t.Error("remove_sound reported false")
	}
	f.mustCall(t, "remove_sound", map[string]string{"id": s.ID}, &removed)
	if removed {
		t.Error("second remove_sound reported true")
	}
}

func TestShutdown(t *testing.T) {
	f := newFixture(t, WithCleanupOnExit(true))

	if err := f.board.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown failed: %v", err)
	}
	if !f.engine.closed {
		t.Error("engine not closed")
	}
	if f.router.calls[len(f.router.calls)-1] != "cleanup" {
		t.Errorf("router calls = %v", f.router.calls)
	}

	g := newFixture(t)
	g.board.Shutdown(context.Background())
	if len(g.router.calls) != 0 {
		t.Errorf("cleanup ran without WithCleanupOnExit: %v", g.router.calls)
	}
}
