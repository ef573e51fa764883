package spotify

import (
	"errors"
	"testing"
)

func TestExtractID(t *testing.T) {
	tests := []struct {
		name     string
		raw      string
		wantKind string
		wantID   string
		wantErr  bool
	}{
		{"track url", "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC", "track", "4uLU6hMCjMI75M1A2tKUQC", false},
		{"track url with share query", "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC?si=abc123", "track", "4uLU6hMCjMI75M1A2tKUQC", false},
		{"playlist url", "https://open.spotify.com/playlist/37i9dQZF1DXcBWIGoYBM5M", "playlist", "37i9dQZF1DXcBWIGoYBM5M", false},
		{"locale segment", "https://open.spotify.com/intl-de/track/4uLU6hMCjMI75M1A2tKUQC", "track", "4uLU6hMCjMI75M1A2tKUQC", false},
		{"trailing slash", "https://open.spotify.com/track/4uLU6hMCjMI75M1A2tKUQC/", "track", "4uLU6hMCjMI75M1A2tKUQC", false},
		{"surrounding spaces", "  https://open.spotify.com/track/abc  ", "track", "abc", false},
		{"uri", "spotify:track:4uLU6hMCjMI75M1A2tKUQC", "track", "4uLU6hMCjMI75M1A2tKUQC", false},
		{"playlist uri", "spotify:playlist:37i9dQZF1DXcBWIGoYBM5M", "playlist", "37i9dQZF1DXcBWIGoYBM5M", false},
		{"other host", "https://example.com/track/abc", "", "", true},
		{"missing id", "https://open.spotify.com/track/", "", "", true},
		{"unsupported type", "https://open.spotify.com/show/abc", "", "", true},
		{"bad id characters", "https://open.spotify.com/track/ab-c", "", "", true},
		{"malformed uri", "spotify:track", "", "", true},
		{"empty", "", "", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			kind, id, err := ExtractID(tt.raw)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidURL) {
					t.Errorf("ExtractID(%q) error = %v, want ErrInvalidURL", tt.raw, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ExtractID(%q) error = %v", tt.raw, err)
			}
			if kind != tt.wantKind || id != tt.wantID {
				t.Errorf("ExtractID(%q) = %q, %q; want %q, %q", tt.raw, kind, id, tt.wantKind, tt.wantID)
			}
		})
	}
}

func TestExtractTypedID(t *testing.T) {
	if _, err := ExtractTypedID("https://open.spotify.com/playlist/abc", TypeTrack); !errors.Is(err, ErrInvalidURL) {
		t.Errorf("ExtractTypedID() error = %v, want ErrInvalidURL", err)
	}
	id, err := ExtractTypedID("spotify:track:abc", TypeTrack)
	if err != nil || id != "abc" {
		t.Errorf("ExtractTypedID() = %q, %v; want abc, nil", id, err)
	}
}
