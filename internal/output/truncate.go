// Package output bounds what leaves the gateway: the immediate response
// is tail-truncated to a line limit with a banner pointing at the full
// record, and later retrieval (full, ranged, or searched) is bounded by a
// byte budget. Stored entries are never modified here; everything in
// this package is derived per response.
package output

import (
	"fmt"
	"strings"
)

// HardFallbackLines bounds the response when neither the call nor the
// configuration supplies a limit.
const HardFallbackLines = 500

// Truncated is the transient result of bounding one response.
type Truncated struct {
	Text          string
	WasTruncated  bool
	TotalLines    int
	ReturnedLines int
	Banner        string
}

// EffectiveLimit resolves the line limit: per-call override first, then
// the shell/global configured default, then the hard fallback.
func EffectiveLimit(perCall, configured int) int {
	if perCall > 0 {
		return perCall
	}
	if configured > 0 {
		return configured
	}
	return HardFallbackLines
}

// Truncate bounds text to its last `limit` lines. The tail is kept, never
// the head, since the failure signal lives at the end of command output. When
// truncation is disabled or the text already fits, the text passes
// through unmodified with no banner. retrievalHint tells the reader how
// to get the omitted lines (a disk file path or a retrieval handle).
func Truncate(text string, limit int, enabled bool, retrievalHint string) Truncated {
	lines := SplitLines(text)
	total := len(lines)

	if !enabled || total <= limit {
		return Truncated{
			Text:          text,
			TotalLines:    total,
			ReturnedLines: total,
		}
	}

	kept := lines[total-limit:]
	omitted := total - limit
	banner := fmt.Sprintf("[showing last %d of %d lines — %d lines omitted]", limit, total, omitted)
	if retrievalHint != "" {
		banner = fmt.Sprintf("[showing last %d of %d lines — %d lines omitted. %s]", limit, total, omitted, retrievalHint)
	}

	return Truncated{
		Text:          strings.Join(kept, "\n") + "\n" + banner,
		WasTruncated:  true,
		TotalLines:    total,
		ReturnedLines: limit,
		Banner:        banner,
	}
}

// SplitLines splits on newlines without manufacturing a phantom empty
// line from a trailing newline. Empty input yields no lines.
func SplitLines(s string) []string {
	if s == "" {
		return nil
	}
	return strings.Split(strings.TrimSuffix(s, "\n"), "\n")
}
