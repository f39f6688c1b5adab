// Package notify renders notification requests and pushes them to a chat
// gateway.
package notify

import (
	"fmt"

	"github.com/google/uuid"
)

// Kind of notification
type Kind int

const (
	// KindGeneral notifications are sent as plain text
	KindGeneral Kind = iota
	// KindMedicationReminder is sent when a dose is due
	KindMedicationReminder
	// KindMissedMedication is sent when a dose was not taken in time
	KindMissedMedication
	// KindMedicationReport carries an adherence report summary
	KindMedicationReport
)

var kindNames = [...]string{
	KindGeneral:            "general",
	KindMedicationReminder: "medication_reminder",
	KindMissedMedication:   "missed_medication",
	KindMedicationReport:   "medication_report",
}

func (k Kind) String() string {
	if k < 0 || int(k) >= len(kindNames) {
		return fmt.Sprintf("Kind(%d)", int(k))
	}

	return kindNames[k]
}

// Request to notify a recipient
type Request struct {
	Recipient  string
	Message    string
	Kind       Kind
	MedicineID *uuid.UUID
	LogID      *uuid.UUID
}

// RejectedError is returned by a Gateway that refused a push
type RejectedError struct {
	Status int
	Body   string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("gateway rejected push with status %d: %s", e.Status, e.Body)
}
