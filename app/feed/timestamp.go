package feed

import (
	"log/slog"
	"regexp"
	"strings"
	"time"

	"github.com/araddon/dateparse"
)

// TimestampLayout renders UTC instants with millisecond precision so that
// lexicographic order equals chronological order.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// rfc822Zones are the named zones RFC 822 allows in dates. dateparse reads
// unknown abbreviations as UTC, so they are rewritten as numeric offsets.
var rfc822Zones = map[string]string{
	"UT":  "+0000",
	"Z":   "+0000",
	"EST": "-0500",
	"EDT": "-0400",
	"CST": "-0600",
	"CDT": "-0500",
	"MST": "-0700",
	"MDT": "-0600",
	"PST": "-0800",
	"PDT": "-0700",
}

var trailingZonePattern = regexp.MustCompile(`\s([A-Za-z]{1,3})$`)

func resolveZone(raw string) string {
	m := trailingZonePattern.FindStringSubmatchIndex(raw)
	if m == nil {
		return raw
	}
	offset, ok := rfc822Zones[strings.ToUpper(raw[m[2]:m[3]])]
	if !ok {
		return raw
	}
	return raw[:m[2]] + offset
}

func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// NormalizeTimestamp parses a loosely formatted upstream date. Missing or
// unparseable values fall back to now, which can float stale items to the top
// of a recency-sorted stream.
func NormalizeTimestamp(raw string, now time.Time) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return FormatTimestamp(now)
	}

	t, err := dateparse.ParseIn(resolveZone(raw), time.UTC)
	if err != nil {
		slog.Debug("Unparseable item date, using fetch time", "value", raw, "error", err)
		return FormatTimestamp(now)
	}

	return FormatTimestamp(t)
}
