package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/dosanma1/forge-booster/internal/graph"
)

var outcomeOrder = []graph.Outcome{
	graph.OutcomeExecuted,
	graph.OutcomeUpToDate,
	graph.OutcomeNoSource,
	graph.OutcomeFailed,
	graph.OutcomeBlocked,
	graph.OutcomeCancelled,
}

// RenderResult renders one line per task followed by a build verdict.
// Skipped tasks are listed only when verbose.
func RenderResult(res *graph.Result, elapsed time.Duration, verbose bool) string {
	var b strings.Builder
	width := 0
	for _, tr := range res.Tasks {
		width = max(width, len(tr.Name))
	}
	for _, tr := range res.Tasks {
		if !verbose && (tr.Outcome == graph.OutcomeUpToDate || tr.Outcome == graph.OutcomeNoSource) {
			continue
		}
		icon, style := OutcomeStyle(tr.Outcome)
		line := fmt.Sprintf("%s %-*s  %-11s %s", icon, width, tr.Name, tr.Outcome, tr.Duration.Round(time.Millisecond))
		b.WriteString(style.Render(line))
		b.WriteByte('\n')
		if tr.Err != nil {
			b.WriteString(HelpStyle.Render("   " + tr.Err.Error()))
			b.WriteByte('\n')
		}
	}

	var counts []string
	for _, o := range outcomeOrder {
		if n := res.Count(o); n > 0 {
			counts = append(counts, fmt.Sprintf("%d %s", n, o))
		}
	}
	summary := strings.Join(counts, ", ")
	if res.Err() != nil || res.Count(graph.OutcomeCancelled) > 0 {
		b.WriteString(ErrorStyle.Render(fmt.Sprintf("%s BUILD FAILED in %s", IconError, elapsed.Round(time.Millisecond))))
	} else {
		b.WriteString(SuccessStyle.Render(fmt.Sprintf("%s BUILD SUCCESSFUL in %s", IconRocket, elapsed.Round(time.Millisecond))))
	}
	if summary != "" {
		b.WriteString(HelpStyle.Render(" (" + summary + ")"))
	}
	b.WriteByte('\n')
	return b.String()
}

// RenderSection renders a title followed by aligned key/value rows.
func RenderSection(title string, rows [][2]string) string {
	var b strings.Builder
	b.WriteString(SubtitleStyle.Render(title))
	b.WriteByte('\n')
	width := 0
	for _, r := range rows {
		width = max(width, len(r[0]))
	}
	for _, r := range rows {
		b.WriteString(KeyStyle.Render(fmt.Sprintf("%-*s", width, r[0])))
		b.WriteString("  ")
		b.WriteString(r[1])
		b.WriteByte('\n')
	}
	return b.String()
}
