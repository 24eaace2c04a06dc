package metadata

import (
	"fmt"
	"strings"
	"time"
)

// exifTimeLayout is how EXIF stores DateTimeOriginal: local wall clock, no zone
const exifTimeLayout = "2006:01:02 15:04:05"

// CanonicalTimeLayout is how capture times are compared in the catalogue
const CanonicalTimeLayout = "2006-01-02T15:04:05Z"

// ParseCaptureTime parses an EXIF timestamp into a zone-less wall clock
// value (held in UTC without conversion). Sub-second and zone suffixes that
// some writers append are ignored.
func ParseCaptureTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if len(s) < len(exifTimeLayout) {
		return time.Time{}, fmt.Errorf("capture time %q too short", s)
	}
	t, err := time.ParseInLocation(exifTimeLayout, s[:len(exifTimeLayout)], time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse capture time %q: %w", s, err)
	}
	if t.Year() < 1 {
		return time.Time{}, fmt.Errorf("capture time %q has no date", s)
	}
	return t, nil
}

// ParseUTCOffset parses a fixed offset such as "+02:00", "-0530" or "Z"
func ParseUTCOffset(s string) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" || s == "Z" || strings.EqualFold(s, "UTC") {
		return 0, nil
	}
	t, err := time.Parse("-07:00", s)
	if err != nil {
		if t, err = time.Parse("-0700", s); err != nil {
			return 0, fmt.Errorf("invalid UTC offset %q (want +HH:MM)", s)
		}
	}
	_, secs := t.Zone()
	return time.Duration(secs) * time.Second, nil
}

// NormalizeCaptureTime interprets a wall-clock capture time as local time in
// the given fixed offset and returns the equivalent UTC instant. The host
// machine's time zone is never consulted.
func NormalizeCaptureTime(wall time.Time, offset time.Duration) time.Time {
	local := time.Date(wall.Year(), wall.Month(), wall.Day(),
		wall.Hour(), wall.Minute(), wall.Second(), 0,
		time.FixedZone("capture", int(offset/time.Second)))
	return local.UTC()
}

// FormatCaptureTime renders a normalized capture time in the canonical layout
func FormatCaptureTime(wall time.Time, offset time.Duration) string {
	return NormalizeCaptureTime(wall, offset).Format(CanonicalTimeLayout)
}
