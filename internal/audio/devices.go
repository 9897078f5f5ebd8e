package audio

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// portaudio's Initialize/Terminate pair is not safe to interleave.
var paMu sync.Mutex

func withPortAudio(f func() error) error {
	paMu.Lock()
	defer paMu.Unlock()

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}
	defer portaudio.Terminate()

	return f()
}

// ListOutputDevices returns the names of host devices with output channels.
func ListOutputDevices() ([]string, error) {
	var names []string

	err := withPortAudio(func() error {
		devs, err := portaudio.Devices()
		if err != nil {
			return fmt.Errorf("portaudio devices: %w", err)
		}
		for _, d := range devs {
			if d.MaxOutputChannels > 0 {
				names = append(names, d.Name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	return names, nil
}

// DefaultOutputDevice returns the name of the host's default output device.
func DefaultOutputDevice() (string, error) {
	var name string

	err := withPortAudio(func() error {
		d, err := portaudio.DefaultOutputDevice()
		if err != nil {
			return err
		}
		if d == nil || d.MaxOutputChannels <= 0 {
			return errors.New("default device has no output channels")
		}
		name = d.Name
		return nil
	})

	return name, err
}
