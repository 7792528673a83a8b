package model

import (
	"strings"
	"time"
)

// RecipientLink is the per-recipient link and media record (one row of
// insta_links). Lists are stored newline separated.
type RecipientLink struct {
	ID                 int64
	Username           string
	Link               string
	GeneralLink        string
	MonetizedURLs      string
	ImageURLs          string
	LastUsedLinkIndex  *int
	LastUsedImageIndex *int
	Timestamp          time.Time
}

// Links returns the rotation list of watch links.
func (r *RecipientLink) Links() []string { return splitLines(r.MonetizedURLs) }

// Images returns the rotation list of image URLs.
func (r *RecipientLink) Images() []string { return splitLines(r.ImageURLs) }

// FallbackLink is used when no rotation links are configured.
func (r *RecipientLink) FallbackLink() string {
	if r.GeneralLink != "" {
		return r.GeneralLink
	}
	return r.Link
}

// RotationIndex maps any stored cursor onto [0, n). Cursors written by older
// code or by hand may be negative or past the end of a list that has shrunk.
func RotationIndex(i, n int) int {
	if n <= 0 {
		return 0
	}
	return (i%n + n) % n
}

func splitLines(s string) []string {
	var out []string
	for _, line := range strings.Split(s, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
