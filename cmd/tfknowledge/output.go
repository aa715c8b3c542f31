package main

import (
	"fmt"
	"io"
	"slices"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/talkops-ai/tfknowledge/orchestrator"
	"github.com/talkops-ai/tfknowledge/search"
	"github.com/talkops-ai/tfknowledge/tracker"
)

var (
	green  = color.New(color.FgGreen)
	red    = color.New(color.FgRed)
	yellow = color.New(color.FgYellow)
	bold   = color.New(color.Bold)
	dim    = color.New(color.Faint)

	colorError = color.New(color.FgRed, color.Bold)
)

// snippetLen bounds the content shown per search hit without --full.
const snippetLen = 200

func printSummary(w io.Writer, s *orchestrator.Summary) {
	bold.Fprintf(w, "Ingestion run %s finished in %s\n", s.RunID, s.Elapsed().Round(time.Millisecond))
	green.Fprintf(w, "  succeeded: %d\n", s.Succeeded())
	yellow.Fprintf(w, "  skipped:   %d\n", s.Skipped())
	red.Fprintf(w, "  failed:    %d\n", s.Failed())
	fmt.Fprintf(w, "  chunks written: %d, failed: %d\n", s.ChunksWritten(), s.ChunksFailed())

	for _, f := range s.Failures() {
		red.Fprintf(w, "  ✗ %s", f.Doc.Source)
		if f.Err != nil {
			fmt.Fprintf(w, ": %v", f.Err)
		}
		fmt.Fprintln(w)
	}
}

func printResult(w io.Writer, res orchestrator.DocumentResult) {
	switch res.State {
	case orchestrator.StateFailed:
		red.Fprintf(w, "✗ %s: %v\n", res.Doc.Source, res.Err)
	case orchestrator.StateSkipped:
		yellow.Fprintf(w, "- %s unchanged\n", res.Doc.Source)
	default:
		green.Fprintf(w, "✓ %s (%d chunks written)\n", res.Doc.Source, res.Written)
	}
}

func printResults(w io.Writer, query string, results []*search.Result, full bool) {
	if len(results) == 0 {
		yellow.Fprintf(w, "No results for %q\n", query)
		return
	}
	for i, r := range results {
		bold.Fprintf(w, "%d. [%.3f] %s", i+1, r.Score, r.ID)
		dim.Fprintf(w, " (%s)", r.NodeType)
		if r.Verbatim {
			green.Fprint(w, " verbatim")
		}
		fmt.Fprintln(w)

		content := r.Content
		if !full {
			content = snippet(content, snippetLen)
		}
		for _, line := range strings.Split(content, "\n") {
			fmt.Fprintf(w, "   %s\n", line)
		}
	}
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n]) + "..."
}

func printStatus(w io.Writer, snapshot *tracker.Snapshot) {
	counts := snapshot.Counts()
	if len(counts) == 0 {
		yellow.Fprintln(w, "Ingestion log is empty")
		return
	}

	statuses := make([]tracker.Status, 0, len(counts))
	for status := range counts {
		statuses = append(statuses, status)
	}
	slices.Sort(statuses)

	bold.Fprintln(w, "Latest status per id:")
	for _, status := range statuses {
		c := fmt.Sprintf("  %-8s %d\n", status, counts[status])
		switch status {
		case tracker.StatusSuccess:
			green.Fprint(w, c)
		case tracker.StatusFailure, tracker.StatusError:
			red.Fprint(w, c)
		default:
			fmt.Fprint(w, c)
		}
	}

	anomalies := snapshot.Anomalies()
	if len(anomalies) == 0 {
		return
	}
	yellow.Fprintf(w, "%d id(s) failed after an earlier success:\n", len(anomalies))
	for _, a := range anomalies {
		fmt.Fprintf(w, "  %s: success at %s, then %s at %s", a.Key,
			a.SuccessAt.Format(time.RFC3339), a.Later.Status, a.Later.Timestamp.Format(time.RFC3339))
		if a.Later.Error != "" {
			fmt.Fprintf(w, " (%s)", a.Later.Error)
		}
		fmt.Fprintln(w)
	}
}

func printError(w io.Writer, err error) {
	colorError.Fprint(w, "Error: ")
	fmt.Fprintln(w, err)
}
