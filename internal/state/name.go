package state

import (
	"fmt"
	"regexp"
	"strconv"
)

var incrementSuffix = regexp.MustCompile(`^(.*) \((\d+)\)$`)

// IncrementName applies the mDNS name-conflict renaming rule: if name ends
// in " (N)" for some integer N, it is replaced with " (N+1)"; otherwise
// " (2)" is appended (§4.E "Name increment rule").
func IncrementName(name string) string {
	if m := incrementSuffix.FindStringSubmatch(name); m != nil {
		n, err := strconv.Atoi(m[2])
		if err == nil {
			return fmt.Sprintf("%s (%d)", m[1], n+1)
		}
	}
	return name + " (2)"
}

// RenameQualified applies IncrementName to only the leftmost label of a
// fully-qualified name, leaving the remaining labels (the service type and
// domain) untouched — e.g. "MyPrinter._ipp._tcp.local." becomes
// "MyPrinter (2)._ipp._tcp.local.", matching scenario S3. A Machine's name
// is always fully qualified, so Conflict renames through this rather than
// through IncrementName directly.
//
// The split is escape-aware: an instance label containing a literal
// backslash-escaped dot (RFC 6763 §4.3) is not mistaken for a label
// boundary, matching dnssd's splitLeadingLabel.
func RenameQualified(qualified string) string {
	idx := leadingLabelEnd(qualified)
	if idx < 0 {
		return IncrementName(qualified)
	}
	return IncrementName(qualified[:idx]) + qualified[idx:]
}

// leadingLabelEnd returns the index of the "." separating qualified's
// first label from the rest, skipping any backslash-escaped character
// (including an escaped dot), or -1 if qualified has no further labels.
func leadingLabelEnd(qualified string) int {
	for i := 0; i < len(qualified); i++ {
		if qualified[i] == '\\' {
			i++
			continue
		}
		if qualified[i] == '.' {
			return i
		}
	}
	return -1
}
