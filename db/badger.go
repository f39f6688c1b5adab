package db

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"git.0xdad.com/tblyler/medreminder/apperr"
	"github.com/dgraph-io/badger"
	"github.com/google/uuid"
)

var (
	// ErrLogExists occurs when a dose log for the same medicine and scheduled time exists
	ErrLogExists = errors.New("dose log already exists")
	// ErrLogNotFound occurs when a dose log id is unknown
	ErrLogNotFound = errors.New("dose log not found")
	// ErrStatusConflict occurs when a dose log is not in the expected status
	ErrStatusConflict = errors.New("dose log status conflict")
)

// Badger db implementation
type Badger struct {
	db       *badger.DB
	cancelGC func()
	wg       sync.WaitGroup
}

// NewBadger creates a new badger instance for the given path
func NewBadger(dbPath string) (*Badger, error) {
	db, err := badger.Open(badger.DefaultOptions(dbPath).WithLogger(nil))
	if err != nil {
		return nil, fmt.Errorf("failed to open badger db at path %s: %w", dbPath, err)
	}

	ctx, cancel := context.WithCancel(context.Background())

	b := &Badger{
		db:       db,
		cancelGC: cancel,
	}

	b.wg.Add(1)
	go func() {
		defer b.wg.Done()

		ticker := time.NewTicker(time.Hour)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				for b.db.RunValueLogGC(0.5) == nil && ctx.Err() == nil {
				}

			case <-ctx.Done():
				return
			}
		}
	}()

	return b, nil
}

// Close the database
func (b *Badger) Close() error {
	b.cancelGC()
	b.wg.Wait()

	return b.db.Close()
}

func unavailable(err error) error {
	return apperr.New(apperr.KindStoreUnavailable, "", err)
}

// Badger calls cannot be interrupted, so a done context is only honored
// between calls.
func checkContext(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return unavailable(err)
	}

	return nil
}

func getJSON(tx *badger.Txn, key []byte, v interface{}) error {
	item, err := tx.Get(key)
	if err != nil {
		return err
	}

	return item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	})
}

func setJSON(tx *badger.Txn, key []byte, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("failed to JSON marshal value for key %q: %w", key, err)
	}

	return tx.Set(key, data)
}

func getIndexed(tx *badger.Txn, indexKey []byte, v interface{}) error {
	item, err := tx.Get(indexKey)
	if err != nil {
		return err
	}

	key, err := item.ValueCopy(nil)
	if err != nil {
		return err
	}

	return getJSON(tx, key, v)
}

// AddUser to the database
func (b *Badger) AddUser(user *User) error {
	return b.db.Update(func(tx *badger.Txn) error {
		nameKey := badgerKeyForUsername(user.Name)
		if _, err := tx.Get(nameKey); err == nil {
			return fmt.Errorf("user %s already exists", user.Name)
		}

		if err := setJSON(tx, user.badgerKey(), user); err != nil {
			return err
		}

		return tx.Set(nameKey, user.badgerKey())
	})
}

// GetUser from the database by username, nil if it does not exist
func (b *Badger) GetUser(username string) (user *User, err error) {
	err = b.db.View(func(tx *badger.Txn) error {
		user = &User{}

		err := getIndexed(tx, badgerKeyForUsername(username), user)
		if errors.Is(err, badger.ErrKeyNotFound) {
			user = nil
			return nil
		}

		if err != nil {
			return fmt.Errorf("failed to get user value for username %s: %w", username, err)
		}

		return nil
	})

	return
}

// FindUser by id
func (b *Badger) FindUser(ctx context.Context, id uuid.UUID) (*User, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	user := &User{}
	err := b.db.View(func(tx *badger.Txn) error {
		return getJSON(tx, badgerKeyForUserID(id), user)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, apperr.New(apperr.KindUserNotFound, "user "+id.String(), nil)
	}

	if err != nil {
		return nil, unavailable(fmt.Errorf("failed to get user %s: %w", id, err))
	}

	return user, nil
}

// ListUsers from the database
func (b *Badger) ListUsers() (users []*User, err error) {
	err = b.db.View(func(tx *badger.Txn) error {
		return iterateJSON(tx, []byte("user:"), func() interface{} {
			user := &User{}
			users = append(users, user)
			return user
		})
	})

	return
}

// iterateJSON decodes every value under prefix into the value returned by next
func iterateJSON(tx *badger.Txn, prefix []byte, next func() interface{}) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix

	it := tx.NewIterator(opts)
	defer it.Close()

	for it.Rewind(); it.Valid(); it.Next() {
		item := it.Item()

		err := item.Value(func(val []byte) error {
			err := json.Unmarshal(val, next())
			if err != nil {
				return fmt.Errorf("failed to unmarshal value for key %q: %w", item.Key(), err)
			}

			return nil
		})

		if err != nil {
			return err
		}
	}

	return nil
}

// AddMedicine to the database
func (b *Badger) AddMedicine(medicine *Medicine) error {
	return b.db.Update(func(tx *badger.Txn) error {
		if _, err := tx.Get(badgerKeyForUserID(medicine.IDUser)); err != nil {
			return fmt.Errorf("failed to find user %s for medicine %s: %w", medicine.IDUser, medicine.Name, err)
		}

		if err := setJSON(tx, medicine.badgerKey(), medicine); err != nil {
			return err
		}

		return tx.Set(badgerIndexKeyForMedicineID(medicine.ID), medicine.badgerKey())
	})
}

// ListMedicinesForUser from the database
func (b *Badger) ListMedicinesForUser(user *User) (medicines []*Medicine, err error) {
	err = b.db.View(func(tx *badger.Txn) error {
		return iterateJSON(tx, badgerPrefixKeyForMedicineUser(user.ID), func() interface{} {
			medicine := &Medicine{}
			medicines = append(medicines, medicine)
			return medicine
		})
	})

	return
}

// ListActiveMedicines owned by a user
func (b *Badger) ListActiveMedicines(ctx context.Context, userID uuid.UUID) ([]*Medicine, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	all, err := b.ListMedicinesForUser(&User{ID: userID})
	if err != nil {
		return nil, unavailable(fmt.Errorf("failed to list medicines for user %s: %w", userID, err))
	}

	active := make([]*Medicine, 0, len(all))
	for _, medicine := range all {
		if medicine.Active {
			active = append(active, medicine)
		}
	}

	return active, nil
}

// FindMedicine by id
func (b *Badger) FindMedicine(ctx context.Context, id uuid.UUID) (*Medicine, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	medicine := &Medicine{}
	err := b.db.View(func(tx *badger.Txn) error {
		return getIndexed(tx, badgerIndexKeyForMedicineID(id), medicine)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, apperr.New(apperr.KindMedicineNotFound, "medicine "+id.String(), nil)
	}

	if err != nil {
		return nil, unavailable(fmt.Errorf("failed to get medicine %s: %w", id, err))
	}

	return medicine, nil
}

// AddSchedule to the database
func (b *Badger) AddSchedule(schedule *Schedule) error {
	if err := schedule.Validate(); err != nil {
		return err
	}

	return b.db.Update(func(tx *badger.Txn) error {
		if _, err := tx.Get(badgerIndexKeyForMedicineID(schedule.IDMedicine)); err != nil {
			return fmt.Errorf("failed to find medicine %s for schedule: %w", schedule.IDMedicine, err)
		}

		if err := setJSON(tx, schedule.badgerKey(), schedule); err != nil {
			return err
		}

		return tx.Set(badgerIndexKeyForScheduleMedicine(schedule.IDMedicine, schedule.ID), schedule.badgerKey())
	})
}

// ListSchedulesForMedicine from the database
func (b *Badger) ListSchedulesForMedicine(medicine *Medicine) (schedules []*Schedule, err error) {
	err = b.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = badgerPrefixKeyForScheduleMedicine(medicine.ID)

		it := tx.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			key, err := it.Item().ValueCopy(nil)
			if err != nil {
				return err
			}

			schedule := &Schedule{}
			if err := getJSON(tx, key, schedule); err != nil {
				return fmt.Errorf("failed to get schedule for medicine %s: %w", medicine.ID, err)
			}

			schedules = append(schedules, schedule)
		}

		return nil
	})

	return
}

// ListDueSchedules that are active at the given time of day and ISO weekday
func (b *Badger) ListDueSchedules(ctx context.Context, at TimeOfDay, weekday int) ([]*Schedule, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	var candidates []*Schedule
	err := b.db.View(func(tx *badger.Txn) error {
		return iterateJSON(tx, badgerPrefixKeyForScheduleTime(at), func() interface{} {
			schedule := &Schedule{}
			candidates = append(candidates, schedule)
			return schedule
		})
	})
	if err != nil {
		return nil, unavailable(fmt.Errorf("failed to list schedules at %s: %w", at, err))
	}

	due := make([]*Schedule, 0, len(candidates))
	for _, schedule := range candidates {
		if schedule.Matches(at, weekday) {
			due = append(due, schedule)
		}
	}

	return due, nil
}

// FindLog for a medicine at a scheduled time, nil if there is none
func (b *Badger) FindLog(ctx context.Context, medicineID uuid.UUID, scheduled time.Time) (*Log, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	log := &Log{}
	err := b.db.View(func(tx *badger.Txn) error {
		return getJSON(tx, badgerKeyForLog(medicineID, scheduled), log)
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, nil
	}

	if err != nil {
		return nil, unavailable(fmt.Errorf("failed to get log for medicine %s at %s: %w", medicineID, scheduled, err))
	}

	return log, nil
}

// InsertLog unless a log for the same medicine and scheduled time exists, in
// which case ErrLogExists is returned
func (b *Badger) InsertLog(ctx context.Context, log *Log) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	key := log.badgerKey()
	err := b.db.Update(func(tx *badger.Txn) error {
		if _, err := tx.Get(key); err == nil {
			return ErrLogExists
		} else if !errors.Is(err, badger.ErrKeyNotFound) {
			return err
		}

		if err := setJSON(tx, key, log); err != nil {
			return err
		}

		if err := tx.Set(badgerIndexKeyForLogID(log.ID), key); err != nil {
			return err
		}

		if log.Status == StatusPending {
			return tx.Set(log.badgerPendingKey(), key)
		}

		return nil
	})

	switch {
	case err == nil:
		return nil
	case errors.Is(err, ErrLogExists):
		return ErrLogExists
	case errors.Is(err, badger.ErrConflict):
		// a concurrent transaction wrote the same natural key
		existing, findErr := b.FindLog(ctx, log.IDMedicine, log.ScheduledTime)
		if findErr == nil && existing != nil {
			return ErrLogExists
		}

		return unavailable(fmt.Errorf("failed to insert log for medicine %s: %w", log.IDMedicine, err))
	default:
		return unavailable(fmt.Errorf("failed to insert log for medicine %s: %w", log.IDMedicine, err))
	}
}

// TransitionLogStatus moves a log to status to if its current status is one of
// from. ErrStatusConflict is returned otherwise.
func (b *Badger) TransitionLogStatus(ctx context.Context, id uuid.UUID, to Status, takenAt *time.Time, from ...Status) (*Log, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	log := &Log{}
	err := b.db.Update(func(tx *badger.Txn) error {
		item, err := tx.Get(badgerIndexKeyForLogID(id))
		if errors.Is(err, badger.ErrKeyNotFound) {
			return ErrLogNotFound
		}

		if err != nil {
			return err
		}

		key, err := item.ValueCopy(nil)
		if err != nil {
			return err
		}

		if err := getJSON(tx, key, log); err != nil {
			return err
		}

		allowed := false
		for _, status := range from {
			if log.Status == status {
				allowed = true
				break
			}
		}

		if !allowed {
			return fmt.Errorf("log %s is %s, not transitioning to %s: %w", id, log.Status, to, ErrStatusConflict)
		}

		previous := log.Status
		log.Status = to
		if takenAt != nil {
			log.TakenTime = takenAt
		}

		if err := setJSON(tx, key, log); err != nil {
			return err
		}

		if previous == StatusPending && to != StatusPending {
			return tx.Delete(log.badgerPendingKey())
		}

		return nil
	})

	switch {
	case err == nil:
		return log, nil
	case errors.Is(err, ErrLogNotFound), errors.Is(err, ErrStatusConflict):
		return nil, err
	case errors.Is(err, badger.ErrConflict):
		return nil, fmt.Errorf("log %s changed concurrently: %w", id, ErrStatusConflict)
	default:
		return nil, unavailable(fmt.Errorf("failed to update log %s: %w", id, err))
	}
}

// MarkLogTaken completes a pending or missed log
func (b *Badger) MarkLogTaken(ctx context.Context, id uuid.UUID, takenAt time.Time) (*Log, error) {
	return b.TransitionLogStatus(ctx, id, StatusCompleted, &takenAt, StatusPending, StatusMissed)
}

// ListPendingLogs scheduled within [from, to], second resolution
func (b *Badger) ListPendingLogs(ctx context.Context, from, to time.Time) ([]*Log, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	var logs []*Log
	err := b.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Prefix = badgerPrefixLogPending

		it := tx.NewIterator(opts)
		defer it.Close()

		start := append(append([]byte{}, badgerPrefixLogPending...), unixKey(from)...)
		end := to.Unix()

		for it.Seek(start); it.ValidForPrefix(badgerPrefixLogPending); it.Next() {
			item := it.Item()
			if unixFromKey(item.Key()[len(badgerPrefixLogPending):]) > end {
				break
			}

			key, err := item.ValueCopy(nil)
			if err != nil {
				return err
			}

			log := &Log{}
			if err := getJSON(tx, key, log); err != nil {
				return fmt.Errorf("failed to get pending log %q: %w", key, err)
			}

			if log.Status == StatusPending {
				logs = append(logs, log)
			}
		}

		return nil
	})
	if err != nil {
		return nil, unavailable(fmt.Errorf("failed to list pending logs: %w", err))
	}

	return logs, nil
}

// ListLogs of the given medicines scheduled within [from, to], second resolution
func (b *Badger) ListLogs(ctx context.Context, medicineIDs []uuid.UUID, from, to time.Time) ([]*Log, error) {
	if err := checkContext(ctx); err != nil {
		return nil, err
	}

	var logs []*Log
	err := b.db.View(func(tx *badger.Txn) error {
		end := to.Unix()

		for _, medicineID := range medicineIDs {
			prefix := badgerPrefixKeyForLogMedicine(medicineID)

			opts := badger.DefaultIteratorOptions
			opts.Prefix = prefix

			it := tx.NewIterator(opts)
			for it.Seek(append(append([]byte{}, prefix...), unixKey(from)...)); it.ValidForPrefix(prefix); it.Next() {
				item := it.Item()
				if unixFromKey(item.Key()[len(prefix):]) > end {
					break
				}

				log := &Log{}
				err := item.Value(func(val []byte) error {
					return json.Unmarshal(val, log)
				})
				if err != nil {
					it.Close()
					return fmt.Errorf("failed to unmarshal log for medicine %s: %w", medicineID, err)
				}

				logs = append(logs, log)
			}
			it.Close()
		}

		return nil
	})
	if err != nil {
		return nil, unavailable(fmt.Errorf("failed to list logs: %w", err))
	}

	return logs, nil
}

// RecordDelivery audit entry
func (b *Badger) RecordDelivery(ctx context.Context, delivery *Delivery) error {
	if err := checkContext(ctx); err != nil {
		return err
	}

	err := b.db.Update(func(tx *badger.Txn) error {
		return setJSON(tx, delivery.badgerKey(), delivery)
	})
	if err != nil {
		return unavailable(fmt.Errorf("failed to record delivery to %s: %w", delivery.Recipient, err))
	}

	return nil
}

// ListDeliveries newest first, at most limit entries when limit > 0
func (b *Badger) ListDeliveries(limit int) (deliveries []*Delivery, err error) {
	err = b.db.View(func(tx *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.Reverse = true

		it := tx.NewIterator(opts)
		defer it.Close()

		// reverse iteration seeks to the last key not greater than the seek key
		seek := append(append([]byte{}, badgerPrefixDelivery...), bytes.Repeat([]byte{0xff}, 24)...)
		for it.Seek(seek); it.ValidForPrefix(badgerPrefixDelivery); it.Next() {
			if limit > 0 && len(deliveries) >= limit {
				break
			}

			delivery := &Delivery{}
			err := it.Item().Value(func(val []byte) error {
				return json.Unmarshal(val, delivery)
			})
			if err != nil {
				return fmt.Errorf("failed to unmarshal delivery: %w", err)
			}

			deliveries = append(deliveries, delivery)
		}

		return nil
	})

	return
}
