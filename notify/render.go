package notify

import "fmt"

// Button actions understood by the chat front end
const (
	ActionTaken  = "taken"
	ActionSnooze = "snooze"
	ActionMissed = "missed"
)

// Button on a card
type Button struct {
	Label   string
	Action  string
	Primary bool
	Color   string
	// Data identifies the action and the dose log it applies to
	Data string
}

// Card is a structured message with a header, a body and action buttons
type Card struct {
	AltText     string
	Header      string
	HeaderColor string
	Background  string
	Body        string
	Buttons     []Button
	Urgent      bool
}

// Payload rendered for a gateway, exactly one of Card and Text is set
type Payload struct {
	Card *Card
	Text string
}

// Render a request into a gateway payload
func Render(req Request) (Payload, error) {
	switch req.Kind {
	case KindMedicationReminder:
		return Payload{Card: &Card{
			AltText:     "Medication reminder",
			Header:      "🔔 Time for your medication",
			HeaderColor: "#2E86AB",
			Background:  "#F3F7FA",
			Body:        req.Message,
			Buttons: []Button{
				newButton(req, "Taken", ActionTaken, true, "#28a745"),
				newButton(req, "Remind me later", ActionSnooze, false, ""),
			},
		}}, nil

	case KindMissedMedication:
		return Payload{Card: &Card{
			AltText:     "Missed medication",
			Header:      "⚠️ Missed dose",
			HeaderColor: "#DC3545",
			Background:  "#FDF2F2",
			Body:        req.Message,
			Buttons: []Button{
				newButton(req, "Taking it now", ActionTaken, true, "#28a745"),
				newButton(req, "Log as missed", ActionMissed, false, "#6c757d"),
			},
			Urgent: true,
		}}, nil

	case KindMedicationReport, KindGeneral:
		return Payload{Text: req.Message}, nil
	}

	return Payload{}, fmt.Errorf("no renderer for notification kind %s", req.Kind)
}

func newButton(req Request, label, action string, primary bool, color string) Button {
	data := action
	if req.LogID != nil {
		data += ":" + req.LogID.String()
	}

	return Button{
		Label:   label,
		Action:  action,
		Primary: primary,
		Color:   color,
		Data:    data,
	}
}
