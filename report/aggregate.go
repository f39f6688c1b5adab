package report

import (
	"fmt"
	"sort"
	"time"

	"git.0xdad.com/tblyler/medreminder/db"
	"github.com/google/uuid"
)

// bucket of the day missed doses are grouped into
type bucket struct {
	name     string
	from, to int
}

// in order of precedence when counts tie
var buckets = []bucket{
	{name: "the morning (6-11)", from: 6, to: 11},
	{name: "the afternoon (12-17)", from: 12, to: 17},
	{name: "the evening (18-23)", from: 18, to: 23},
	{name: "late night (0-5)", from: 0, to: 5},
}

func bucketOf(hour int) int {
	for i, b := range buckets {
		if hour >= b.from && hour <= b.to {
			return i
		}
	}

	return len(buckets) - 1
}

func adherenceRate(taken, scheduled int) float64 {
	if scheduled == 0 {
		return 0
	}

	return float64(taken) / float64(scheduled) * 100
}

// Build a report from a user's active medicines and their logs within the
// period. Times are reported in loc.
func Build(userID uuid.UUID, reportType Type, period Period, medicines []*db.Medicine, logs []*db.Log, loc *time.Location, generatedAt time.Time) *Report {
	sorted := append([]*db.Medicine(nil), medicines...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Name < sorted[j].Name
	})

	byMedicine := make(map[uuid.UUID][]*db.Log, len(sorted))
	for _, log := range logs {
		byMedicine[log.IDMedicine] = append(byMedicine[log.IDMedicine], log)
	}

	report := &Report{
		UserID:      userID,
		ReportType:  reportType,
		Period:      period.String(),
		Medicines:   make([]MedicineReport, 0, len(sorted)),
		GeneratedAt: generatedAt,
	}

	misses := make([]int, len(buckets))
	summary := &report.Summary

	for _, medicine := range sorted {
		medicineLogs := byMedicine[medicine.ID]
		sort.SliceStable(medicineLogs, func(i, j int) bool {
			return medicineLogs[i].ScheduledTime.Before(medicineLogs[j].ScheduledTime)
		})

		medicineReport := MedicineReport{
			MedicineID:     medicine.ID,
			MedicineName:   medicine.Name,
			ScheduledCount: len(medicineLogs),
			MissedTimes:    []string{},
		}

		for _, log := range medicineLogs {
			switch log.Status {
			case db.StatusCompleted:
				medicineReport.TakenCount++
			case db.StatusMissed:
				medicineReport.MissedCount++

				scheduled := log.ScheduledTime.In(loc)
				medicineReport.MissedTimes = append(medicineReport.MissedTimes, scheduled.Format("15:04"))
				misses[bucketOf(scheduled.Hour())]++
			}
		}

		medicineReport.AdherenceRate = adherenceRate(medicineReport.TakenCount, medicineReport.ScheduledCount)
		report.Medicines = append(report.Medicines, medicineReport)

		summary.TotalScheduled += medicineReport.ScheduledCount
		summary.TotalTaken += medicineReport.TakenCount
		summary.TotalMissed += medicineReport.MissedCount
	}

	summary.AdherenceRate = adherenceRate(summary.TotalTaken, summary.TotalScheduled)

	most := -1
	for i, count := range misses {
		if count > 0 && (most < 0 || count > misses[most]) {
			most = i
		}
	}
	if most >= 0 {
		summary.MostMissedTime = buckets[most].name
	}

	var best, worst *MedicineReport
	for i := range report.Medicines {
		medicineReport := &report.Medicines[i]
		if medicineReport.ScheduledCount == 0 {
			continue
		}

		if best == nil || medicineReport.AdherenceRate > best.AdherenceRate {
			best = medicineReport
		}

		if worst == nil || medicineReport.AdherenceRate < worst.AdherenceRate {
			worst = medicineReport
		}
	}
	if best != nil {
		summary.BestAdherenceMedicine = best.MedicineName
		summary.WorstAdherenceMedicine = worst.MedicineName
	}

	report.Recommendations = Recommend(report.Summary, report.Medicines)

	return report
}

// Recommend advice for a summary, never empty
func Recommend(summary Summary, medicines []MedicineReport) []string {
	var recommendations []string

	switch {
	case summary.AdherenceRate >= 90:
		recommendations = append(recommendations, "🎉 Excellent adherence! Keep it up.")
	case summary.AdherenceRate >= 70:
		recommendations = append(recommendations, "👍 Good medication habits, with a little room for improvement.")
	case summary.AdherenceRate >= 50:
		recommendations = append(recommendations, "⚠️ Your adherence needs improvement. Consider setting alarms or using a medication management app.")
	default:
		recommendations = append(recommendations, "🚨 Your adherence is low. Please consult your doctor or pharmacist.")
	}

	if summary.MostMissedTime != "" {
		recommendations = append(recommendations, fmt.Sprintf("⏰ Doses are often missed in %s. Consider stronger reminders at that time of day.", summary.MostMissedTime))
	}

	for _, medicine := range medicines {
		if medicine.AdherenceRate < 60 && medicine.ScheduledCount >= 3 {
			recommendations = append(recommendations, fmt.Sprintf("💊 Adherence for %q is dropping. Consider reviewing when you take it.", medicine.MedicineName))
		}
	}

	if summary.TotalMissed > summary.TotalTaken/2 {
		recommendations = append(recommendations, "📱 Try a medication app, keeping your medicine somewhere visible, or asking family to remind you.")
	}

	if len(recommendations) == 0 {
		recommendations = append(recommendations, "Keep recording your doses to get a more detailed analysis.")
	}

	return recommendations
}
