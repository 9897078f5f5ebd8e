package hotkey

import (
	"errors"
	"testing"
)

func TestParse(t *testing.T) {
	tests := []struct {
		in      string
		want    string
		wantErr bool
	}{
		{in: "Ctrl+Alt+A", want: "Ctrl+Alt+A"},
		{in: "alt + control + a", want: "Ctrl+Alt+A"},
		{in: "win+shift+f12", want: "Shift+Super+F12"},
		{in: "meta+1", want: "Super+1"},
		{in: "space", want: "Space"},
		{in: "Ctrl+return", want: "Ctrl+Enter"},
		{in: "esc", want: "Escape"},
		{in: "Shift+Left", want: "Shift+Left"},
		{in: "", wantErr: true},
		{in: "   ", wantErr: true},
		{in: "Ctrl+Alt", wantErr: true},
		{in: "Ctrl+A+B", wantErr: true},
		{in: "Ctrl+F13", wantErr: true},
		{in: "Ctrl+PageUp", wantErr: true},
		{in: "Ctrl++", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			hk, err := Parse(tt.in)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalid) {
					t.Errorf("Parse(%q) error = %v, want ErrInvalid", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse(%q) unexpected error: %v", tt.in, err)
			}
			if got := hk.String(); got != tt.want {
				t.Errorf("Parse(%q).String() = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeRoundTrip(t *testing.T) {
	for _, in := range []string{"Ctrl+Alt+A", "Super+F1", "Tab"} {
		got, err := Normalize(in)
		if err != nil {
			t.Fatalf("Normalize(%q) failed: %v", in, err)
		}
		again, err := Normalize(got)
		if err != nil || again != got {
			t.Errorf("Normalize(%q) not stable: %q -> %q (%v)", in, got, again, err)
		}
	}
}
