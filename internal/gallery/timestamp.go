package gallery

import (
	"regexp"
	"strconv"
	"time"
)

// millisecondThreshold separates millisecond epochs from second epochs.
const millisecondThreshold = 1_000_000_000_000

// LabelLayout is the display format for item date labels
const LabelLayout = "2006/01/02 15:04"

var timestampPattern = regexp.MustCompile(`(\d{10,13})\.[A-Za-z]+$`)

// ExtractTimestamp returns the epoch seconds embedded in an item name.
// The name must end in a run of 10-13 digits followed by a letter-only
// extension. Millisecond values are floored to seconds.
func ExtractTimestamp(name string) (int64, bool) {
	m := timestampPattern.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}

	v, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return 0, false
	}

	if v > millisecondThreshold {
		return v / 1000, true
	}
	return v, true
}

// ExtractTime is ExtractTimestamp converted to a UTC time.
func ExtractTime(name string) (time.Time, bool) {
	sec, ok := ExtractTimestamp(name)
	if !ok {
		return time.Time{}, false
	}
	return time.Unix(sec, 0).UTC(), true
}

// Label formats the embedded timestamp of name in loc.
func Label(name string, loc *time.Location) (string, bool) {
	t, ok := ExtractTime(name)
	if !ok {
		return "", false
	}
	if loc == nil {
		loc = time.UTC
	}
	return t.In(loc).Format(LabelLayout), true
}
