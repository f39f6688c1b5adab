package reminder

import (
	"fmt"
	"time"

	"git.0xdad.com/tblyler/medreminder/db"
)

func dosageSuffix(medicine *db.Medicine) string {
	switch {
	case medicine.Dosage != "" && medicine.Unit != "":
		return fmt.Sprintf(" (%s%s)", medicine.Dosage, medicine.Unit)
	case medicine.Dosage != "":
		return fmt.Sprintf(" (%s)", medicine.Dosage)
	}

	return ""
}

func reminderMessage(medicine *db.Medicine, at db.TimeOfDay) string {
	return fmt.Sprintf(
		"🔔 Time to take your medication!\n\n💊 %s%s\n⏰ %s\n\nReply \"taken\" once you have taken it.",
		medicine.Name,
		dosageSuffix(medicine),
		at,
	)
}

func missedMessage(medicine *db.Medicine, scheduled time.Time) string {
	return fmt.Sprintf(
		"⚠️ Did you forget your medication?\n\n💊 %s\n⏰ %s\n\nIf there is still time, reply \"taken\" after taking it.",
		medicine.Name,
		scheduled.Format("15:04"),
	)
}
