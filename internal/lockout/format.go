package lockout

import (
	"strconv"
	"strings"
	"time"
)

// FormatDuration renders d as "1h 2m 3s": largest unit first, zero units
// omitted, partial seconds rounded up.
func FormatDuration(d time.Duration) string {
	secs := int64((d + time.Second - 1) / time.Second)
	if secs <= 0 {
		return "0s"
	}
	h, m, s := secs/3600, secs%3600/60, secs%60

	parts := make([]string, 0, 3)
	if h > 0 {
		parts = append(parts, strconv.FormatInt(h, 10)+"h")
	}
	if m > 0 {
		parts = append(parts, strconv.FormatInt(m, 10)+"m")
	}
	if s > 0 {
		parts = append(parts, strconv.FormatInt(s, 10)+"s")
	}
	return strings.Join(parts, " ")
}
