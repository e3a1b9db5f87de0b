package uplink

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var dataRateRe = regexp.MustCompile(`SF(\d+)BW(\d+)`)

// ParseDataRate extracts the spreading factor and bandwidth (kHz) from a
// LoRa data rate string such as "SF7BW125".
func ParseDataRate(dr string) (sf, bw int, err error) {
	m := dataRateRe.FindStringSubmatch(dr)
	if m == nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidDataRate, dr)
	}
	if sf, err = strconv.Atoi(m[1]); err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidDataRate, dr)
	}
	if bw, err = strconv.Atoi(m[2]); err != nil {
		return 0, 0, fmt.Errorf("%w: %q", ErrInvalidDataRate, dr)
	}
	return sf, bw, nil
}

// ParseTime converts a network server timestamp to nanoseconds since the
// Unix epoch. Only UTC timestamps with fractional seconds are accepted
// ("2019-11-04T15:20:01.123456789Z"); ok is false for anything else, and the
// caller should let the store assign the insertion time instead.
func ParseTime(s string) (nanos int64, ok bool) {
	if !strings.HasSuffix(s, "Z") || !strings.Contains(s, ".") {
		return 0, false
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return 0, false
	}
	return t.UnixNano(), true
}
