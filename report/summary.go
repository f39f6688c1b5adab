package report

import (
	"fmt"
	"strings"
)

func tierEmoji(rate float64) string {
	switch {
	case rate >= 90:
		return "🎉"
	case rate >= 70:
		return "👍"
	case rate >= 50:
		return "⚠️"
	}

	return "🚨"
}

// SummaryMessage condenses a report into a chat message
func SummaryMessage(report *Report) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s Medication report (%s)\n\n", tierEmoji(report.Summary.AdherenceRate), report.ReportType)
	fmt.Fprintf(&b, "📊 Period: %s\n\n", report.Period)
	fmt.Fprintf(&b, "📈 Adherence:\n")
	fmt.Fprintf(&b, "• Scheduled: %d\n", report.Summary.TotalScheduled)
	fmt.Fprintf(&b, "• Taken: %d\n", report.Summary.TotalTaken)
	fmt.Fprintf(&b, "• Missed: %d\n", report.Summary.TotalMissed)
	fmt.Fprintf(&b, "• Adherence rate: %.1f%%\n", report.Summary.AdherenceRate)

	if len(report.Recommendations) > 0 {
		fmt.Fprintf(&b, "\n💡 %s\n", report.Recommendations[0])
	}

	if report.Summary.BestAdherenceMedicine != "" {
		fmt.Fprintf(&b, "\n⭐ Best: %s", report.Summary.BestAdherenceMedicine)
	}

	if report.Summary.WorstAdherenceMedicine != "" {
		fmt.Fprintf(&b, "\n🔸 Needs attention: %s", report.Summary.WorstAdherenceMedicine)
	}

	b.WriteString("\n\nSee the full report for details.")

	return b.String()
}
