// Package apperr classifies the failures that can occur while running
// reminder passes, dispatching notifications and generating reports.
package apperr

import (
	"errors"
	"fmt"
)

// Kind of failure
type Kind int

const (
	// KindUnknown is used for errors that did not originate from this package
	KindUnknown Kind = iota
	// KindStoreUnavailable aborts the current pass or request
	KindStoreUnavailable
	// KindMedicineNotFound skips the affected schedule or log
	KindMedicineNotFound
	// KindUserNotFound skips the affected schedule or log
	KindUserNotFound
	// KindRecipientNotConfigured occurs when a user has no gateway recipient
	KindRecipientNotConfigured
	// KindNotificationsDisabled occurs when a user opted out of notifications
	KindNotificationsDisabled
	// KindInvalidReportType rejects a report request
	KindInvalidReportType
	// KindDeliveryFailed occurs when the gateway rejects a push
	KindDeliveryFailed
	// KindArtifactPersistFailed occurs when a report could not be written
	KindArtifactPersistFailed
)

var kindNames = map[Kind]string{
	KindUnknown:                "Unknown",
	KindStoreUnavailable:       "StoreUnavailable",
	KindMedicineNotFound:       "MedicineNotFound",
	KindUserNotFound:           "UserNotFound",
	KindRecipientNotConfigured: "RecipientNotConfigured",
	KindNotificationsDisabled:  "NotificationsDisabled",
	KindInvalidReportType:      "InvalidReportType",
	KindDeliveryFailed:         "DeliveryFailed",
	KindArtifactPersistFailed:  "ArtifactPersistFailed",
}

func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}

	return fmt.Sprintf("Kind(%d)", int(k))
}

// Soft kinds are logged and skipped, they never escape a pass.
func (k Kind) Soft() bool {
	switch k {
	case KindMedicineNotFound,
		KindUserNotFound,
		KindRecipientNotConfigured,
		KindNotificationsDisabled,
		KindDeliveryFailed,
		KindArtifactPersistFailed:
		return true
	}

	return false
}

// Error carries a Kind, the entity it concerns and an optional cause
type Error struct {
	Kind   Kind
	Entity string
	Cause  error
}

func (e *Error) Error() string {
	msg := e.Kind.String()
	if e.Entity != "" {
		msg += " (" + e.Entity + ")"
	}

	if e.Cause != nil {
		msg += ": " + e.Cause.Error()
	}

	return msg
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target is an *Error of the same Kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}

	return t.Kind == e.Kind
}

// New error of the given kind about entity
func New(kind Kind, entity string, cause error) *Error {
	return &Error{
		Kind:   kind,
		Entity: entity,
		Cause:  cause,
	}
}

// KindOf returns the Kind of the first *Error in err's chain
func KindOf(err error) Kind {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Kind
	}

	return KindUnknown
}

var (
	ErrStoreUnavailable       = &Error{Kind: KindStoreUnavailable}
	ErrMedicineNotFound       = &Error{Kind: KindMedicineNotFound}
	ErrUserNotFound           = &Error{Kind: KindUserNotFound}
	ErrRecipientNotConfigured = &Error{Kind: KindRecipientNotConfigured}
	ErrNotificationsDisabled  = &Error{Kind: KindNotificationsDisabled}
	ErrInvalidReportType      = &Error{Kind: KindInvalidReportType}
	ErrDeliveryFailed         = &Error{Kind: KindDeliveryFailed}
	ErrArtifactPersistFailed  = &Error{Kind: KindArtifactPersistFailed}
)
