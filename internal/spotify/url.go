package spotify

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// ErrInvalidURL is returned when a Spotify URL or URI cannot be parsed.
var ErrInvalidURL = errors.New("invalid Spotify URL")

// Object types accepted by ExtractID.
const (
	TypeTrack    = "track"
	TypePlaylist = "playlist"
)

// ExtractID returns the object type and ID referenced by an
// open.spotify.com URL or a spotify:{type}:{id} URI. Query strings such as
// ?si=... and locale segments such as /intl-de/ are ignored.
func ExtractID(raw string) (kind, id string, err error) {
	raw = strings.TrimSpace(raw)

	if rest, ok := strings.CutPrefix(raw, "spotify:"); ok {
		parts := strings.Split(rest, ":")
		if len(parts) != 2 {
			return "", "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
		}
		return validate(raw, parts[0], parts[1])
	}

	u, err := url.Parse(raw)
	if err != nil {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	if u.Host != "open.spotify.com" {
		return "", "", fmt.Errorf("%w: unexpected host in %q", ErrInvalidURL, raw)
	}

	var segments []string
	for _, s := range strings.Split(u.Path, "/") {
		if s == "" || strings.HasPrefix(s, "intl-") {
			continue
		}
		segments = append(segments, s)
	}
	if len(segments) != 2 {
		return "", "", fmt.Errorf("%w: %q", ErrInvalidURL, raw)
	}
	return validate(raw, segments[0], segments[1])
}

// ExtractTypedID is ExtractID restricted to one object type.
func ExtractTypedID(raw, want string) (string, error) {
	kind, id, err := ExtractID(raw)
	if err != nil {
		return "", err
	}
	if kind != want {
		return "", fmt.Errorf("%w: expected a %s, got a %s", ErrInvalidURL, want, kind)
	}
	return id, nil
}

func validate(raw, kind, id string) (string, string, error) {
	switch kind {
	case TypeTrack, TypePlaylist, "album", "artist":
	default:
		return "", "", fmt.Errorf("%w: unsupported type %q in %q", ErrInvalidURL, kind, raw)
	}
	if id == "" || !isBase62(id) {
		return "", "", fmt.Errorf("%w: bad id in %q", ErrInvalidURL, raw)
	}
	return kind, id, nil
}

func isBase62(s string) bool {
	for _, r := range s {
		if !(r >= '0' && r <= '9' || r >= 'a' && r <= 'z' || r >= 'A' && r <= 'Z') {
			return false
		}
	}
	return true
}
