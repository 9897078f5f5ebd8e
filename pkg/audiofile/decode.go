package audiofile

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/faiface/beep"
	"github.com/faiface/beep/flac"
	"github.com/faiface/beep/mp3"
	"github.com/faiface/beep/vorbis"
	"github.com/faiface/beep/wav"
	popus "github.com/pekim/opus"
)

// ErrUnsupported is returned for containers the decoders cannot read.
var ErrUnsupported = errors.New("unsupported audio format")

const opusSampleRate = 48000

// Extensions lists the container extensions a folder scan picks up.
var Extensions = []string{".mp3", ".wav", ".ogg", ".oga", ".opus", ".flac", ".m4a", ".aac"}

// IsAudio reports whether path carries one of Extensions, ignoring case.
func IsAudio(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// Open decodes the file at path into a seekable stream. A missing file
// yields an error matching os.ErrNotExist.
func Open(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, err
	}

	s, format, err := decode(f, strings.ToLower(filepath.Ext(path)))
	if err != nil {
		f.Close()
		return nil, beep.Format{}, err
	}

	return s, format, nil
}

func decode(f *os.File, ext string) (beep.StreamSeekCloser, beep.Format, error) {
	switch ext {
	case ".wav":
		return decodeWAV(f)
	case ".mp3":
		return decodeMP3(f)
	case ".ogg", ".oga":
		return decodeOgg(f)
	case ".opus":
		return decodeOpus(f)
	case ".flac":
		return decodeFLAC(f)
	case ".m4a", ".aac":
		return nil, beep.Format{}, fmt.Errorf("%w: %s", ErrUnsupported, ext)
	default:
		// Quick sniff
		br := bufio.NewReader(f)
		magic, _ := br.Peek(4)
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return nil, beep.Format{}, err
		}
		switch {
		case string(magic) == "RIFF":
			return decodeWAV(f)
		case string(magic) == "OggS":
			return decodeOgg(f)
		case string(magic) == "fLaC":
			return decodeFLAC(f)
		case len(magic) >= 3 && string(magic[:3]) == "ID3",
			len(magic) >= 2 && magic[0] == 0xFF && magic[1]&0xE0 == 0xE0:
			return decodeMP3(f)
		default:
			return nil, beep.Format{}, fmt.Errorf("%w: %s", ErrUnsupported, ext)
		}
	}
}

// decodeWAV streams PCM straight from the file; f is closed with the
// stream. Float and compressed WAVs are rejected.
func decodeWAV(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
	s, format, err := wav.Decode(f)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if s.Len() == 0 {
		s.Close()
		return nil, beep.Format{}, errors.New("wav: empty stream")
	}
	return s, format, nil
}

func decodeMP3(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
	s, format, err := mp3.Decode(f)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("mp3: %w", err)
	}
	return s, format, nil
}

func decodeOgg(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
	s, format, err := vorbis.Decode(f)
	if err == nil {
		return s, format, nil
	}
	if _, e2 := f.Seek(0, io.SeekStart); e2 != nil {
		return nil, beep.Format{}, fmt.Errorf("ogg: %w", err)
	}
	s, format, e3 := decodeOpus(f)
	if e3 != nil {
		return nil, beep.Format{}, fmt.Errorf("cannot decode ogg as Vorbis (%v) or Opus: %w", err, e3)
	}
	return s, format, nil
}

func decodeOpus(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
	dec, err := popus.NewDecoder(f)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("opus: %w", err)
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}

	var (
		pcm []float32
		buf = make([]int16, opusSampleRate*ch/2)
	)
	for {
		n, err := dec.Read(buf) // n = samples per channel
		if n > 0 {
			pcm = append(pcm, int16SliceToFloat32(buf[:n*ch])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, beep.Format{}, fmt.Errorf("opus: %w", err)
		}
	}
	if len(pcm) == 0 {
		return nil, beep.Format{}, errors.New("opus: empty stream")
	}

	f.Close()

	return newPCMStream(interleavedToFrames(pcm, ch)), formatOf(opusSampleRate, ch, 2), nil
}

func decodeFLAC(f *os.File) (beep.StreamSeekCloser, beep.Format, error) {
	s, format, err := flac.Decode(f)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("flac: %w", err)
	}
	return s, format, nil
}

func formatOf(sampleRate, channels, precision int) beep.Format {
	if channels > 2 {
		channels = 2
	}
	if precision <= 0 {
		precision = 2
	}
	return beep.Format{
		SampleRate:  beep.SampleRate(sampleRate),
		NumChannels: channels,
		Precision:   precision,
	}
}
