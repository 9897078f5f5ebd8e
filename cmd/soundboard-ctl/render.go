package main

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"soundboard/internal/audio"
	"soundboard/internal/library"
)

func percent(v float64) string {
	return fmt.Sprintf("%.0f%%", v*100)
}

func yesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

func parseOnOff(s string) (bool, error) {
	switch strings.ToLower(s) {
	case "on", "true", "yes", "1":
		return true, nil
	case "off", "false", "no", "0":
		return false, nil
	}
	return false, fmt.Errorf("expected on or off, got %q", s)
}

func clipLength(d time.Duration) string {
	if d <= 0 {
		return "-"
	}
	return d.Round(10 * time.Millisecond).String()
}

func renderSounds(w io.Writer, sounds []library.Sound) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tVOLUME\tHOTKEY\tLENGTH\tSIZE")
	for _, s := range sounds {
		hk := "-"
		if s.Hotkey != nil {
			hk = *s.Hotkey
		}
		size := "-"
		if s.Size > 0 {
			size = humanize.Bytes(uint64(s.Size))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n",
			s.ID, s.Name, percent(s.Volume), hk, clipLength(s.Duration), size)
	}
	return tw.Flush()
}

func renderState(w io.Writer, st library.State) error {
	folder := "-"
	if st.CurrentFolder != nil {
		folder = *st.CurrentFolder
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintf(tw, "folder\t%s\n", folder)
	fmt.Fprintf(tw, "sounds\t%s\n", humanize.Comma(int64(len(st.Sounds))))
	fmt.Fprintf(tw, "master volume\t%s\n", percent(st.MasterVolume))
	fmt.Fprintf(tw, "virtual mic\t%s\n", yesNo(st.VirtualMicEnabled))
	fmt.Fprintf(tw, "system audio routing\t%s\n", yesNo(st.SystemAudioRoutingEnabled))
	return tw.Flush()
}

func renderVoices(w io.Writer, voices []audio.VoiceInfo) error {
	if len(voices) == 0 {
		_, err := fmt.Fprintln(w, "nothing playing")
		return err
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "VOICE\tSOUND\tFILE\tGAIN\tSTARTED")
	for _, v := range voices {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			v.ID, v.ClipID, filepath.Base(v.Path), percent(v.Gain), humanize.Time(v.Started))
	}
	return tw.Flush()
}

func renderLines(w io.Writer, lines []string) error {
	for _, l := range lines {
		if _, err := fmt.Fprintln(w, l); err != nil {
			return err
		}
	}
	return nil
}
