package validator

import (
	"net/url"
	"strconv"
)

// Evidence downloads larger than this are not archived; the chat platform
// already caps uploads well below it.
const MaxEvidenceBytes int64 = 1 << 26

// ensure a fetched evidence body stays within the archival size cap
func ValidateEvidenceSize(n int64) bool {
	return n > 0 && n <= MaxEvidenceBytes
}

// evidence locators must be absolute http(s) URLs; anything else is opaque
// junk the relay should not have forwarded
func ValidateEvidenceURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}

	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// a judged score must be a bare non-negative integer no wider than the task bound
func ParseScore(raw string, maxPoints int) (int, bool) {
	score, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}

	if score < 0 || score > maxPoints {
		return 0, false
	}

	return score, true
}
