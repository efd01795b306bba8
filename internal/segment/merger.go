package segment

import (
	"regexp"
	"strings"
)

// debugTagPattern marks diagnostic passthrough lines that must stay
// visually separate.
var debugTagPattern = regexp.MustCompile(`^\[(?:DEBUG|TRACE|LOG)\]`)

// mergeAll collapses adjacent same-type segments that pass the merge
// guards. Flowing types join with a space, structural types with a
// newline. The earlier segment's timestamp and data win; missing data
// keys are filled from the later one.
func mergeAll(segs []Segment, opts Options) []Segment {
	if len(segs) < 2 {
		return segs
	}
	out := make([]Segment, 0, len(segs))
	for _, s := range segs {
		if len(out) == 0 || !canMerge(&out[len(out)-1], &s, opts) {
			out = append(out, s)
			continue
		}
		prev := &out[len(out)-1]
		sep := "\n"
		if flowing(prev.Type) {
			sep = " "
		}
		prev.Content += sep + s.Content
		for k, v := range s.Data {
			if _, ok := prev.Data[k]; !ok {
				prev.withData(k, v)
			}
		}
	}
	return out
}

// canMerge applies the merge guards: same type, combined length under
// the ceiling, neither side structural or debug-tagged, and at least
// one side short enough that the merge cannot compound two long
// blocks.
func canMerge(a, b *Segment, opts Options) bool {
	if a.Type != b.Type {
		return false
	}
	if len(a.Content)+len(b.Content) > opts.MergeMaxLen {
		return false
	}
	if unmergeable(a.Content) || unmergeable(b.Content) {
		return false
	}
	if debugTagPattern.MatchString(a.Content) != debugTagPattern.MatchString(b.Content) {
		return false
	}
	if len(a.Content) >= opts.MergeShortLen && len(b.Content) >= opts.MergeShortLen {
		return false
	}
	return true
}

// unmergeable reports content that must keep its own segment: fenced
// code, structural JSON-like payloads, and debug passthrough lines.
func unmergeable(content string) bool {
	if strings.Contains(content, "```") {
		return true
	}
	trimmed := strings.TrimSpace(content)
	if len(trimmed) >= 2 {
		first, last := trimmed[0], trimmed[len(trimmed)-1]
		if (first == '{' && last == '}') || (first == '[' && last == ']') {
			return true
		}
	}
	return debugTagPattern.MatchString(content)
}
