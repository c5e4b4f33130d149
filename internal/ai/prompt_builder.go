package ai

import (
	"fmt"
	"strings"

	"smart-scheduler/internal/scheduler"
)

const summarySystemPrompt = `You summarize a proposed work schedule.
Use only the placements you are given; never move, add or drop tasks.
Answer in at most five short sentences of plain text, no lists, no markdown.`

// BuildSchedulePrompt renders suggestions one per line in placement order.
func BuildSchedulePrompt(suggestions []scheduler.Suggestion) string {
	var b strings.Builder

	b.WriteString("placements:\n")
	for _, s := range suggestions {
		fmt.Fprintf(&b, "- %s | %s - %s | score %d",
			s.Title,
			s.Start.Format("Mon 2006-01-02 15:04"),
			s.End.Format("15:04"),
			s.PriorityScore,
		)
		if s.Reason != "" {
			b.WriteString(" | ")
			b.WriteString(s.Reason)
		}
		b.WriteString("\n")
	}

	return b.String()
}
