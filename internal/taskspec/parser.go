// Package taskspec parses the free-text task list accepted by the /request
// command. A spec is a semicolon-separated list of task titles; a title may
// carry a leading "{Nx}" marker to emit it N times, e.g.
//
//	"scout the area;{3x}gather wood;build camp"
//
// expands to ["scout the area", "gather wood", "gather wood", "gather wood",
// "build camp"].
package taskspec

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// multiplyRE captures an optional "{N x}" repeat marker and the remainder of
// a task segment.
var multiplyRE = regexp.MustCompile(`^\{(\d+)x\}(.*)$`)

// MaxRepeat bounds a single "{Nx}" marker. A Discord select menu holds at
// most 25 options, so anything past this is a typo, not a workload.
const MaxRepeat = 100

// MalformedSpecError reports a task segment whose repeat-count marker could
// not be parsed as a positive integer.
type MalformedSpecError struct {
	// Segment is the offending task segment as written by the user.
	Segment string
	// Count is the raw repeat-count text that failed to parse.
	Count string
}

// Error implements the error interface.
func (e *MalformedSpecError) Error() string {
	return fmt.Sprintf("malformed repeat count %q in task %q", e.Count, e.Segment)
}

// Parse expands a task spec into an ordered list of task titles.
//
// The spec is split on ';'; empty segments (after trimming) are dropped.
// A segment prefixed with "{Nx}" is emitted N times; N may be zero, in
// which case the segment is dropped entirely. A repeat count above
// MaxRepeat, or too large to parse at all, is reported as a
// *MalformedSpecError rather than expanded.
func Parse(spec string) ([]string, error) {
	var out []string
	for _, seg := range strings.Split(spec, ";") {
		seg = strings.TrimSpace(seg)
		if seg == "" {
			continue
		}
		count := 1
		text := seg
		if m := multiplyRE.FindStringSubmatch(seg); m != nil {
			n, err := strconv.Atoi(m[1])
			if err != nil || n > MaxRepeat {
				return nil, &MalformedSpecError{Segment: seg, Count: m[1]}
			}
			count = n
			text = strings.TrimSpace(m[2])
		}
		for i := 0; i < count; i++ {
			out = append(out, text)
		}
	}
	return out, nil
}
