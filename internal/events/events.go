package events

import "time"

const (
	KindSoundPlayed  = "sound-played"
	KindStateChanged = "state-changed"
)

// Event is one broadcast on the event stream.
type Event struct {
	Kind    string    `json:"kind"`
	SoundID string    `json:"sound_id,omitempty"`
	Message string    `json:"message,omitempty"`
	Time    time.Time `json:"time"`
}

func SoundPlayed(id, name string) Event {
	return Event{Kind: KindSoundPlayed, SoundID: id, Message: name, Time: time.Now()}
}

func StateChanged(what string) Event {
	return Event{Kind: KindStateChanged, Message: what, Time: time.Now()}
}
