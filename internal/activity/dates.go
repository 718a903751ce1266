package activity

import (
	"regexp"
	"strings"
	"time"
)

// ISOLayout is the wire format for since/until filters.
const ISOLayout = "2006-01-02T15:04:05.000Z"

// localDate is the dd/mm/yyyy[ HH:MM] form admins type by hand.
var localDate = regexp.MustCompile(`^(\d{2})/(\d{2})/(\d{4})(?:\s+(\d{2}):(\d{2}))?$`)

// isoLayouts are tried in order. Layouts without a zone are read as UTC.
var isoLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04Z07:00",
	"2006-01-02T15:04:05.999999999",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseDate reads an ISO-8601 date/time or a dd/mm/yyyy[ HH:MM] date.
// Local dates and zone-less ISO values are taken as UTC.
func ParseDate(raw string) (time.Time, bool) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range isoLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC(), true
		}
	}

	m := localDate.FindStringSubmatch(s)
	if m == nil {
		return time.Time{}, false
	}
	hh, mm := m[4], m[5]
	if hh == "" {
		hh, mm = "00", "00"
	}
	t, err := time.Parse("2006-01-02T15:04", m[3]+"-"+m[2]+"-"+m[1]+"T"+hh+":"+mm)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// NormalizeDate converts raw to the ISO wire format. It reports false for
// input that cannot be parsed; callers drop such filters.
func NormalizeDate(raw string) (string, bool) {
	t, ok := ParseDate(raw)
	if !ok {
		return "", false
	}
	return t.UTC().Format(ISOLayout), true
}
