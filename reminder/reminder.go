// Package reminder runs the hourly reminder pass and the missed dose pass
// against the medication store.
package reminder

import (
	"context"
	"time"

	"git.0xdad.com/tblyler/medreminder/apperr"
	"git.0xdad.com/tblyler/medreminder/db"
	"git.0xdad.com/tblyler/medreminder/notify"
	"github.com/google/uuid"
)

// Store is the subset of the medication store the passes need
type Store interface {
	FindMedicine(ctx context.Context, id uuid.UUID) (*db.Medicine, error)
	FindUser(ctx context.Context, id uuid.UUID) (*db.User, error)
	ListDueSchedules(ctx context.Context, at db.TimeOfDay, weekday int) ([]*db.Schedule, error)
	FindLog(ctx context.Context, medicineID uuid.UUID, scheduled time.Time) (*db.Log, error)
	InsertLog(ctx context.Context, log *db.Log) error
	ListPendingLogs(ctx context.Context, from, to time.Time) ([]*db.Log, error)
	TransitionLogStatus(ctx context.Context, id uuid.UUID, to db.Status, takenAt *time.Time, from ...db.Status) (*db.Log, error)
}

// Notifier sends a rendered notification to a recipient
type Notifier interface {
	Dispatch(ctx context.Context, req notify.Request) (notify.Result, error)
}

// target of a notification
type target struct {
	medicine *db.Medicine
	user     *db.User
}

func resolve(ctx context.Context, store Store, medicineID uuid.UUID) (*target, error) {
	medicine, err := store.FindMedicine(ctx, medicineID)
	if err != nil {
		return nil, err
	}

	user, err := store.FindUser(ctx, medicine.IDUser)
	if err != nil {
		return nil, err
	}

	if user.Recipient == "" {
		return nil, apperr.New(apperr.KindRecipientNotConfigured, "user "+user.ID.String(), nil)
	}

	return &target{
		medicine: medicine,
		user:     user,
	}, nil
}

// soft reports whether err may be recorded on the result without aborting the pass
func soft(err error) bool {
	return apperr.KindOf(err).Soft()
}
