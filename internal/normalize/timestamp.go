package normalize

import (
	"fmt"
	"time"
)

// isoLayouts cover the timestamp strings seen on the wire: RFC 3339
// plus the variant with a colon-less numeric offset.
var isoLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05.000-0700",
	"2006-01-02T15:04:05-0700",
}

// parseTimestamp accepts either an integer count of epoch
// milliseconds or an ISO-8601 string with a numeric UTC offset, and
// normalizes both to the same UTC instant.
func parseTimestamp(v any) (time.Time, error) {
	switch ts := v.(type) {
	case float64:
		return time.UnixMilli(int64(ts)).UTC(), nil
	case int64:
		return time.UnixMilli(ts).UTC(), nil
	case string:
		for _, layout := range isoLayouts {
			if t, err := time.Parse(layout, ts); err == nil {
				return t.UTC(), nil
			}
		}
		return time.Time{}, fmt.Errorf("unparsable timestamp %q", ts)
	case nil:
		return time.Time{}, fmt.Errorf("missing timestamp")
	}
	return time.Time{}, fmt.Errorf("unsupported timestamp type %T", v)
}
