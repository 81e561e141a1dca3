package gateway

import (
	"context"
	"fmt"

	"github.com/jkaninda/amri/internal/output"
)

// RetrieveRequest selects part of a stored execution record. Exactly one
// mode applies per call: a search pattern wins over a line range, a line
// range over full text.
type RetrieveRequest struct {
	Handle       string
	StartLine    int // 1-based; negative counts from the end; 0 = unset
	EndLine      int // same semantics; 0 = unset
	Pattern      string
	Occurrence   int // 1-based, default 1
	ContextLines int // lines of context around a search match, default 2
	MaxLines     int // cap on returned lines, 0 = unlimited
	MaxBytes     int // byte budget; clamped to the configured cap
}

// RetrieveResult is the selected text plus metadata. TotalLines is always
// the stored record's original line count.
type RetrieveResult struct {
	Handle           string
	Text             string
	TotalLines       int
	ReturnedLines    int
	TruncatedByLines bool
	TruncatedByBytes bool
}

// RetrieveOutput serves the three retrieval modes over one stored entry.
// Malformed input (unknown handle, bad range, bad pattern, empty match
// set, occurrence out of range) returns a structured error; an oversized
// byte budget is clamped to the configured cap, not rejected.
func (g *Gateway) RetrieveOutput(_ context.Context, req RetrieveRequest) (*RetrieveResult, error) {
	mode := "full"
	switch {
	case req.Pattern != "":
		mode = "search"
	case req.StartLine != 0 || req.EndLine != 0:
		mode = "range"
	}

	entry, ok := g.store.Get(req.Handle)
	if !ok {
		g.countRetrieval(mode, "not_found")
		return nil, fmt.Errorf("%w: %q", ErrHandleNotFound, req.Handle)
	}

	lines := output.SplitLines(entry.CombinedOutput)

	var (
		sel output.Selection
		err error
	)
	switch {
	case req.Pattern != "":
		occurrence := req.Occurrence
		if occurrence == 0 {
			occurrence = 1
		}
		contextLines := req.ContextLines
		if contextLines == 0 {
			contextLines = 2
		}
		sel, err = output.SearchOccurrence(lines, req.Pattern, occurrence, contextLines)
	case req.StartLine != 0 || req.EndLine != 0:
		start := req.StartLine
		if start == 0 {
			start = 1
		}
		end := req.EndLine
		if end == 0 {
			end = -1 // through the last line
		}
		sel, err = output.SelectRange(lines, start, end)
	default:
		sel = output.Selection{
			Header: []string{fmt.Sprintf("Output of %s (%d lines):", entry.ID, len(lines))},
			Lines:  lines,
		}
	}
	if err != nil {
		g.countRetrieval(mode, "error")
		return nil, err
	}

	// Requested budgets above the configured cap are capped, not rejected.
	maxBytes := req.MaxBytes
	if limit := g.cfg.Output.MaxRetrieveBytes; maxBytes <= 0 || (limit > 0 && maxBytes > limit) {
		maxBytes = limit
	}

	resp := output.BuildResponse(sel, entry.TotalLines, req.MaxLines, maxBytes)
	g.countRetrieval(mode, "ok")

	return &RetrieveResult{
		Handle:           entry.ID,
		Text:             resp.Text,
		TotalLines:       resp.TotalLines,
		ReturnedLines:    resp.ReturnedLines,
		TruncatedByLines: resp.TruncatedByLines,
		TruncatedByBytes: resp.TruncatedByBytes,
	}, nil
}

func (g *Gateway) countRetrieval(mode, status string) {
	if g.metrics == nil {
		return
	}
	g.metrics.RetrievalsTotal.WithLabelValues(mode, status).Inc()
}
