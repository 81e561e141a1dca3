package output

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// Structured retrieval errors. Callers branch with errors.Is; none of
// these ever surfaces as an unhandled fault.
var (
	ErrInvalidRange         = errors.New("invalid line range")
	ErrInvalidPattern       = errors.New("invalid search pattern")
	ErrNoMatches            = errors.New("no matches found")
	ErrOccurrenceOutOfRange = errors.New("occurrence out of range")
)

// Selection is one retrieval's chosen slice of an entry's output, before
// the byte budget is applied.
type Selection struct {
	Header    []string // descriptive lines prepended to the response
	Lines     []string // content lines
	StartLine int      // 1-based line number of Lines[0] in the full output
	Hint      string   // navigation hint (e.g. next search occurrence), appended after content
}

// ResolveLineIndex maps a possibly negative 1-based index onto the
// positive range: -1 is the last line, -2 the second-to-last, and so on.
// Positive values pass through untouched.
func ResolveLineIndex(n, totalLines int) int {
	if n < 0 {
		return totalLines + n + 1
	}
	return n
}

// SelectRange picks lines start..end (1-based, inclusive). Negative
// endpoints are resolved against the total first; the bounds check after
// resolution is strict: out-of-range is an error, never a clamp.
func SelectRange(lines []string, start, end int) (Selection, error) {
	total := len(lines)
	rs := ResolveLineIndex(start, total)
	re := ResolveLineIndex(end, total)

	if rs < 1 || re > total || rs > re {
		return Selection{}, fmt.Errorf("%w: resolved to %d..%d, valid range is 1..%d", ErrInvalidRange, rs, re, total)
	}

	return Selection{
		Header:    []string{fmt.Sprintf("Lines %d-%d of %d:", rs, re, total)},
		Lines:     lines[rs-1 : re],
		StartLine: rs,
	}, nil
}

// SearchOccurrence finds the occurrence-th line matching pattern (1-based)
// and returns it with a symmetric context window of contextLines before
// and after. When further occurrences remain, the selection carries a
// navigation hint naming the next index.
func SearchOccurrence(lines []string, pattern string, occurrence, contextLines int) (Selection, error) {
	re, err := regexp.Compile(pattern)
	if err != nil {
		return Selection{}, fmt.Errorf("%w: %v", ErrInvalidPattern, err)
	}

	var matches []int // 0-based indices of matching lines
	for i, line := range lines {
		if re.MatchString(line) {
			matches = append(matches, i)
		}
	}
	if len(matches) == 0 {
		return Selection{}, fmt.Errorf("%w: pattern %q", ErrNoMatches, pattern)
	}
	if occurrence < 1 || occurrence > len(matches) {
		return Selection{}, fmt.Errorf("%w: occurrence %d of %d matches", ErrOccurrenceOutOfRange, occurrence, len(matches))
	}

	idx := matches[occurrence-1]
	lo := idx - contextLines
	if lo < 0 {
		lo = 0
	}
	hi := idx + contextLines
	if hi > len(lines)-1 {
		hi = len(lines) - 1
	}

	sel := Selection{
		Header: []string{fmt.Sprintf("Match %d of %d for %q (line %d):",
			occurrence, len(matches), pattern, idx+1)},
		Lines:     lines[lo : hi+1],
		StartLine: lo + 1,
	}
	if occurrence < len(matches) {
		sel.Hint = fmt.Sprintf("[%d more match(es) — pass occurrence=%d for the next one]",
			len(matches)-occurrence, occurrence+1)
	}
	return sel, nil
}

// Response is the final, budgeted text of one retrieval plus its
// metadata. TotalLines always reports the entry's original line count,
// distinct from how many lines actually made it into Text.
type Response struct {
	Text             string
	TotalLines       int
	ReturnedLines    int
	TruncatedByLines bool
	TruncatedByBytes bool
}

// BuildResponse renders a selection under two independent caps: maxLines
// bounds how many content lines are included (0 = unlimited), and
// maxBytes bounds the whole response. Header and content are committed
// into the buffer one unit at a time, each addition checked against the
// remaining budget first; when even the header does not fit, the response
// degrades to a fixed minimal notice.
func BuildResponse(sel Selection, totalLines, maxLines, maxBytes int) Response {
	resp := Response{TotalLines: totalLines}

	lines := sel.Lines
	if maxLines > 0 && len(lines) > maxLines {
		lines = lines[:maxLines]
		resp.TruncatedByLines = true
	}

	var sb strings.Builder
	remaining := maxBytes

	commit := func(unit string) bool {
		cost := len(unit) + 1 // trailing newline
		if maxBytes > 0 && cost > remaining {
			return false
		}
		sb.WriteString(unit)
		sb.WriteByte('\n')
		remaining -= cost
		return true
	}

	for _, h := range sel.Header {
		if !commit(h) {
			resp.Text = fmt.Sprintf("[output truncated to fit %d bytes]", maxBytes)
			resp.TruncatedByBytes = true
			return resp
		}
	}

	for _, line := range lines {
		if !commit(line) {
			resp.TruncatedByBytes = true
			break
		}
		resp.ReturnedLines++
	}

	if sel.Hint != "" && !resp.TruncatedByBytes {
		commit(sel.Hint)
	}

	resp.Text = strings.TrimSuffix(sb.String(), "\n")
	return resp
}
