// Package duration decodes the upstream catalog's ISO-8601 style duration
// tokens ("PT1H2M3S") and owns the short-form classification threshold.
// Every consumer of the threshold goes through IsShort; the constant is not
// duplicated anywhere else.
package duration

import (
	"regexp"
	"strconv"
)

// ShortMaxSeconds is the inclusive upper bound for short-form content.
const ShortMaxSeconds = 60

var tokenRe = regexp.MustCompile(`^PT(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?$`)

// Seconds converts a "PT[nH][nM][nS]" token to total whole seconds. Missing
// groups count as zero. Malformed or empty input decodes to 0 rather than
// failing the caller.
func Seconds(token string) int {
	m := tokenRe.FindStringSubmatch(token)
	if m == nil {
		return 0
	}
	hours := atoi(m[1])
	minutes := atoi(m[2])
	seconds := atoi(m[3])
	return hours*3600 + minutes*60 + seconds
}

// IsShort reports whether the token decodes to short-form length.
func IsShort(token string) bool {
	return IsShortSeconds(Seconds(token))
}

// IsShortSeconds applies the short-form threshold to already-decoded seconds.
func IsShortSeconds(secs int) bool {
	return secs <= ShortMaxSeconds
}

func atoi(s string) int {
	if s == "" {
		return 0
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0
	}
	return n
}
