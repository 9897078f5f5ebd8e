package audiofile

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-audio/wav"
	gomp3 "github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
)

// Info is what Probe can learn about a clip without decoding all of it.
type Info struct {
	Format     string
	Duration   time.Duration
	SampleRate int
	Channels   int
}

// Probe reads container metadata for path. Formats without a cheap probe
// fall back to a full decode.
func Probe(path string) (Info, error) {
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".wav":
		return probeWAV(path)
	case ".mp3":
		return probeMP3(path)
	case ".ogg", ".oga":
		info, err := probeVorbis(path)
		if err == nil {
			return info, nil
		}
		return probeDecoded(path, "opus")
	default:
		return probeDecoded(path, strings.TrimPrefix(ext, "."))
	}
}

func probeWAV(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return Info{}, errors.New("invalid wav")
	}
	if err := dec.FwdToPCM(); err != nil {
		return Info{}, fmt.Errorf("wav: %w", err)
	}

	var d time.Duration
	bytesPerSec := int64(dec.SampleRate) * int64(dec.NumChans) * int64(dec.BitDepth) / 8
	if bytesPerSec > 0 {
		d = time.Duration(dec.PCMLen()) * time.Second / time.Duration(bytesPerSec)
	}

	return Info{
		Format:     "wav",
		Duration:   d,
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
	}, nil
}

func probeMP3(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	dec, err := gomp3.NewDecoder(f)
	if err != nil {
		return Info{}, fmt.Errorf("mp3: %w", err)
	}

	sr := dec.SampleRate()
	info := Info{Format: "mp3", SampleRate: sr, Channels: 2}
	// go-mp3 always emits 16-bit stereo, 4 bytes per frame
	if n := dec.Length(); n > 0 && sr > 0 {
		info.Duration = time.Duration(n/4) * time.Second / time.Duration(sr)
	}
	return info, nil
}

func probeVorbis(path string) (Info, error) {
	f, err := os.Open(path)
	if err != nil {
		return Info{}, err
	}
	defer f.Close()

	length, format, err := oggvorbis.GetLength(f)
	if err != nil {
		return Info{}, fmt.Errorf("ogg/vorbis: %w", err)
	}
	if format == nil || format.SampleRate <= 0 {
		return Info{}, errors.New("invalid ogg/vorbis stream")
	}

	return Info{
		Format:     "vorbis",
		Duration:   time.Duration(length) * time.Second / time.Duration(format.SampleRate),
		SampleRate: format.SampleRate,
		Channels:   format.Channels,
	}, nil
}

func probeDecoded(path, name string) (Info, error) {
	s, format, err := Open(path)
	if err != nil {
		return Info{}, err
	}
	defer s.Close()

	return Info{
		Format:     name,
		Duration:   format.SampleRate.D(s.Len()),
		SampleRate: int(format.SampleRate),
		Channels:   format.NumChannels,
	}, nil
}
