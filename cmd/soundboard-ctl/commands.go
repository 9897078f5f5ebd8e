package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"soundboard/internal/audio"
	"soundboard/internal/board"
	"soundboard/internal/library"
)

func commands() []*cobra.Command {
	return []*cobra.Command{
		loadFolderCmd(),
		addSoundCmd(),
		removeSoundCmd(),
		updateSoundCmd(),
		playSoundCmd(),
		playHotkeyCmd(),
		stopSoundCmd(),
		stopAllCmd(),
		listSoundsCmd(),
		stateCmd(),
		masterVolumeCmd(),
		setupMicCmd(),
		checkMicCmd(),
		cleanupMicCmd(),
		passthroughCmd(),
		listSourcesCmd(),
		listSinksCmd(),
		getDefaultSourceCmd(),
		setDefaultSourceCmd(),
		outputDevicesCmd(),
		voicesCmd(),
	}
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func loadFolderCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "load-folder DIR",
		Aliases: []string{"load"},
		Short:   "Replace the sound list with the audio files in DIR",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var sounds []library.Sound
			return request(cmd, "load_folder", map[string]string{"path": absPath(args[0])}, &sounds,
				func(w io.Writer) error { return renderSounds(w, sounds) })
		},
	}
}

func addSoundCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add-sound FILE",
		Short: "Add one audio file to the sound list",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var s library.Sound
			return request(cmd, "add_sound", map[string]string{"path": absPath(args[0])}, &s,
				func(w io.Writer) error { return renderSounds(w, []library.Sound{s}) })
		},
	}
}

func removeSoundCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "remove-sound ID",
		Aliases: []string{"rm"},
		Short:   "Remove a sound from the list",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var removed bool
			return request(cmd, "remove_sound", map[string]string{"id": args[0]}, &removed,
				func(w io.Writer) error {
					if !removed {
						_, err := fmt.Fprintln(w, "no such sound")
						return err
					}
					return nil
				})
		},
	}
}

func updateSoundCmd() *cobra.Command {
	var (
		name   string
		volume float64
		hk     string
	)
	cmd := &cobra.Command{
		Use:   "update-sound ID",
		Short: "Rename a sound, change its volume or bind a hotkey",
		Long:  "Only the given flags change. --hotkey \"\" removes the binding.",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req := map[string]any{"id": args[0]}
			if cmd.Flags().Changed("name") {
				req["name"] = name
			}
			if cmd.Flags().Changed("volume") {
				req["volume"] = volume
			}
			if cmd.Flags().Changed("hotkey") {
				req["hotkey"] = hk
			}
			if len(req) == 1 {
				return fmt.Errorf("nothing to update")
			}
			return request(cmd, "update_sound", req, nil, nil)
		},
	}
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().Float64Var(&volume, "volume", 1.0, "clip volume, 0 to 2")
	cmd.Flags().StringVar(&hk, "hotkey", "", "hotkey such as Ctrl+Alt+A")
	return cmd
}

func renderPlay(res *board.PlayResult) func(io.Writer) error {
	return func(w io.Writer) error {
		if res.VoiceID == "" {
			_, err := fmt.Fprintln(w, "nothing played")
			return err
		}
		_, err := fmt.Fprintln(w, res.VoiceID)
		return err
	}
}

func playSoundCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "play-sound ID",
		Aliases: []string{"play"},
		Short:   "Play a sound",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var res board.PlayResult
			return request(cmd, "play_sound", map[string]string{"id": args[0]}, &res, renderPlay(&res))
		},
	}
}

func playHotkeyCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "play-hotkey HOTKEY",
		Aliases: []string{"hotkey"},
		Short:   "Play the sound bound to HOTKEY, for window manager bindings",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var res board.PlayResult
			return request(cmd, "play_hotkey", map[string]string{"hotkey": args[0]}, &res, renderPlay(&res))
		},
	}
}

func renderStopped(res *board.StopResult) func(io.Writer) error {
	return func(w io.Writer) error {
		_, err := fmt.Fprintf(w, "stopped %d\n", res.Stopped)
		return err
	}
}

func stopSoundCmd() *cobra.Command {
	var voice bool
	cmd := &cobra.Command{
		Use:   "stop-sound ID",
		Short: "Stop every voice of a sound, or one voice with --voice",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			key := "id"
			if voice {
				key = "voice_id"
			}
			var res board.StopResult
			return request(cmd, "stop_sound", map[string]string{key: args[0]}, &res, renderStopped(&res))
		},
	}
	cmd.Flags().BoolVar(&voice, "voice", false, "ID is a voice id")
	return cmd
}

func stopAllCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "stop-all-sounds",
		Aliases: []string{"stop-all"},
		Short:   "Stop everything that is playing",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var res board.StopResult
			return request(cmd, "stop_all_sounds", nil, &res, renderStopped(&res))
		},
	}
}

func listSoundsCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get-all-sounds",
		Aliases: []string{"ls", "list"},
		Short:   "List sounds",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var sounds []library.Sound
			return request(cmd, "get_all_sounds", nil, &sounds,
				func(w io.Writer) error { return renderSounds(w, sounds) })
		},
	}
}

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get-state",
		Aliases: []string{"state"},
		Short:   "Show the session state",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var st library.State
			return request(cmd, "get_state", nil, &st,
				func(w io.Writer) error { return renderState(w, st) })
		},
	}
}

func masterVolumeCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "set-master-volume VOLUME",
		Aliases: []string{"volume"},
		Short:   "Set the master volume, 0 to 2",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := strconv.ParseFloat(args[0], 64)
			if err != nil {
				return fmt.Errorf("volume: %w", err)
			}
			var res board.VolumeResult
			return request(cmd, "set_master_volume", map[string]float64{"volume": v}, &res,
				func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "master volume %s\n", percent(res.Volume))
					return err
				})
		},
	}
}

func setupMicCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "setup-virtual-microphone",
		Aliases: []string{"mic-up"},
		Short:   "Create the mix sink and virtual microphone",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var res board.SetupResult
			return request(cmd, "setup_virtual_microphone", nil, &res,
				func(w io.Writer) error {
					_, err := fmt.Fprintf(w, "routing clips into %s\n", res.Sink)
					return err
				})
		},
	}
}

func checkMicCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check-virtual-mic-exists",
		Short: "Report whether the virtual microphone exists",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var exists bool
			return request(cmd, "check_virtual_mic_exists", nil, &exists,
				func(w io.Writer) error {
					_, err := fmt.Fprintln(w, yesNo(exists))
					return err
				})
		},
	}
}

func cleanupMicCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "cleanup-virtual-microphone",
		Aliases: []string{"mic-down"},
		Short:   "Remove the virtual devices and loopbacks",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(cmd, "cleanup_virtual_microphone", nil, nil, nil)
		},
	}
}

func passthroughCmd() *cobra.Command {
	return &cobra.Command{
		Use:       "toggle-system-audio-routing on|off",
		Aliases:   []string{"passthrough"},
		Short:     "Mix system audio into the virtual microphone",
		Args:      cobra.ExactArgs(1),
		ValidArgs: []string{"on", "off"},
		RunE: func(cmd *cobra.Command, args []string) error {
			enabled, err := parseOnOff(args[0])
			if err != nil {
				return err
			}
			return request(cmd, "toggle_system_audio_routing", map[string]bool{"enabled": enabled}, nil, nil)
		},
	}
}

func listCmd(use, alias, short, command string) *cobra.Command {
	return &cobra.Command{
		Use:     use,
		Aliases: []string{alias},
		Short:   short,
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var names []string
			return request(cmd, command, nil, &names,
				func(w io.Writer) error { return renderLines(w, names) })
		},
	}
}

func listSourcesCmd() *cobra.Command {
	return listCmd("list-audio-sources", "sources", "List audio server sources", "list_audio_sources")
}

func listSinksCmd() *cobra.Command {
	return listCmd("list-audio-sinks", "sinks", "List audio server sinks", "list_audio_sinks")
}

func outputDevicesCmd() *cobra.Command {
	return listCmd("list-output-devices", "devices", "List local output devices", "list_output_devices")
}

func getDefaultSourceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get-default-source",
		Short: "Show the default source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var res board.DefaultSourceResult
			return request(cmd, "get_default_source", nil, &res,
				func(w io.Writer) error {
					_, err := fmt.Fprintln(w, res.Source)
					return err
				})
		},
	}
}

func setDefaultSourceCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-default-source NAME",
		Short: "Change the default source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return request(cmd, "set_default_source", map[string]string{"source": args[0]}, nil, nil)
		},
	}
}

func voicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "get-active-voices",
		Aliases: []string{"voices"},
		Short:   "List voices that are playing",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			var voices []audio.VoiceInfo
			return request(cmd, "get_active_voices", nil, &voices,
				func(w io.Writer) error { return renderVoices(w, voices) })
		},
	}
}
