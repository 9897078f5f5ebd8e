package board

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"soundboard/internal/ipc"
	"soundboard/internal/library"
)

type pathArgs struct {
	Path string `json:"path"`
}

type idArgs struct {
	ID string `json:"id"`
}

type updateArgs struct {
	ID string `json:"id"`
	library.Update
}

type hotkeyArgs struct {
	Hotkey string `json:"hotkey"`
}

type stopArgs struct {
	ID      string `json:"id,omitempty"`
	VoiceID string `json:"voice_id,omitempty"`
}

type volumeArgs struct {
	Volume *float64 `json:"volume"`
}

type toggleArgs struct {
	Enabled bool `json:"enabled"`
}

type sourceArgs struct {
	Source string `json:"source"`
}

// PlayResult is the payload of play_sound and play_hotkey. VoiceID is empty
// when nothing was started.
type PlayResult struct {
	VoiceID string `json:"voice_id"`
}

type StopResult struct {
	Stopped int `json:"stopped"`
}

type SetupResult struct {
	Sink string `json:"sink"`
}

type VolumeResult struct {
	Volume float64 `json:"volume"`
}

type DefaultSourceResult struct {
	Source string `json:"source"`
}

var errNoArgs = errors.New("missing arguments")

func decodeArgs(req ipc.Request, v any) error {
	if len(req.Args) == 0 {
		return errNoArgs
	}
	if err := json.Unmarshal(req.Args, v); err != nil {
		return fmt.Errorf("bad arguments for %s: %w", req.Cmd, err)
	}
	return nil
}

// Handle serves one IPC request.
func (b *Board) Handle(ctx context.Context, req ipc.Request) ipc.Response {
	resp, err := b.dispatch(ctx, req)
	if err != nil {
		b.log.Debug("Command failed", "cmd", req.Cmd, "err", err)
		return ipc.Fail(err)
	}
	return resp
}

func (b *Board) dispatch(ctx context.Context, req ipc.Request) (ipc.Response, error) {
	switch req.Cmd {
	case "load_folder":
		var args pathArgs
		if err := decodeArgs(req, &args); err != nil {
			return ipc.Response{}, err
		}
		sounds, err := b.LoadFolder(args.Path)
		if err != nil {
			return ipc.Response{}, err
		}
		return ipc.Reply(sounds), nil

	case "add_sound":
		var args pathArgs
		if err := decodeArgs(req, &args); err != nil {
			return ipc.Response{}, err
		}
		s, err := b.AddSound(args.Path)
		if err != nil {
			return ipc.Response{}, err
		}
		return ipc.Reply(s), nil

	case "remove_sound":
		var args idArgs
		if err := decodeArgs(req, &args); err != nil {
			return ipc.Response{}, err
		}
		return ipc.Reply(b.RemoveSound(args.ID)), nil

	case "update_sound":
		var args updateArgs
		if err := decodeArgs(req, &args); err != nil {
			return ipc.Response{}, err
		}
		if err := b.UpdateSound(args.ID, args.Update); err != nil {
			return ipc.Response{}, err
		}
		return ipc.Reply(nil), nil

	case "play_sound":
		var args idArgs
		if err := decodeArgs(req, &args); err != nil {
			return ipc.Response{}, err
		}
		id, err := b.PlaySound(args.ID)
		if err != nil {
			return ipc.Response{}, err
		}
		return ipc.Reply(PlayResult{VoiceID: id}), nil

	case "play_hotkey":
		var args hotkeyArgs
		if err := decodeArgs(req, &args); err != nil {
			return ipc.Response{}, err
		}
		id, err := b.PlayHotkey(args.Hotkey)
		if err != nil {
			return ipc.Response{}, err
		}
		return ipc.Reply(PlayResult{VoiceID: id}), nil

	case "stop_sound":
		var args stopArgs
		if err := decodeArgs(req, &args); err != nil {
			return ipc.Response{}, err
		}
		if args.VoiceID != "" {
			n := 0
			if b.StopVoice(args.VoiceID) {
				n = 1
			}
			return ipc.Reply(StopResult{Stopped: n}), nil
		}
		return ipc.Reply(StopResult{Stopped: b.StopSound(args.ID)}), nil

	case "stop_all_sounds":
		return ipc.Reply(StopResult{Stopped: b.StopAllSounds()}), nil

	case "get_all_sounds":
		return ipc.Reply(b.Sounds()), nil

	case "get_state":
		return ipc.Reply(b.State()), nil

	case "set_master_volume":
		var args volumeArgs
		if err := decodeArgs(req, &args); err != nil {
			return ipc.Response{}, err
		}
		if args.Volume == nil {
			return ipc.Response{}, errors.New("volume required")
		}
		return ipc.Reply(VolumeResult{Volume: b.SetMasterVolume(*args.Volume)}), nil

	case "setup_virtual_microphone":
		sink, err := b.SetupVirtualMicrophone(ctx)
		if err != nil {
			return ipc.Response{}, err
		}
		return ipc.Reply(SetupResult{Sink: sink}), nil

	case "check_virtual_mic_exists":
		ok, err := b.CheckVirtualMicExists(ctx)
		if err != nil {
			return ipc.Response{}, err
		}
		return ipc.Reply(ok), nil

	case "cleanup_virtual_microphone":
		b.CleanupVirtualMicrophone(ctx)
		return ipc.Reply(nil), nil

	case "toggle_system_audio_routing":
		var args toggleArgs
		if err := decodeArgs(req, &args); err != nil {
			return ipc.Response{}, err
		}
		if err := b.ToggleSystemAudioRouting(ctx, args.Enabled); err != nil {
			return ipc.Response{}, err
		}
		return ipc.Reply(nil), nil

	case "list_audio_sources":
		sources, err := b.ListAudioSources(ctx)
		if err != nil {
			return ipc.Response{}, err
		}
		return ipc.Reply(sources), nil

	case "list_audio_sinks":
		sinks, err := b.ListAudioSinks(ctx)
		if err != nil {
			return ipc.Response{}, err
		}
		return ipc.Reply(sinks), nil

	case "get_default_source":
		src, err := b.DefaultSource(ctx)
		if err != nil {
			return ipc.Response{}, err
		}
		return ipc.Reply(DefaultSourceResult{Source: src}), nil

	case "set_default_source":
		var args sourceArgs
		if err := decodeArgs(req, &args); err != nil {
			return ipc.Response{}, err
		}
		if err := b.SetDefaultSource(ctx, args.Source); err != nil {
			return ipc.Response{}, err
		}
		b.changed("default_source")
		return ipc.Reply(nil), nil

	case "list_output_devices":
		devices, err := b.ListOutputDevices()
		if err != nil {
			return ipc.Response{}, err
		}
		return ipc.Reply(devices), nil

	case "get_active_voices":
		return ipc.Reply(b.ActiveVoices()), nil

	default:
		return ipc.Response{}, fmt.Errorf("unknown command %q", req.Cmd)
	}
}
