package db

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"git.0xdad.com/tblyler/medreminder/apperr"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBadger(t *testing.T) *Badger {
	t.Helper()

	b, err := NewBadger(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { b.Close() })

	return b
}

func addTestMedicine(t *testing.T, b *Badger) (*User, *Medicine) {
	t.Helper()

	user := &User{
		ID:                   uuid.New(),
		Name:                 "alice",
		Recipient:            "uQiRzpo4DXghDmr9QzzfQu27cmVRsG",
		NotificationsEnabled: true,
		CreatedAt:            time.Now(),
	}
	require.NoError(t, b.AddUser(user))

	medicine := &Medicine{
		IDUser:    user.ID,
		ID:        uuid.New(),
		Name:      "Aspirin",
		Dosage:    "100",
		Unit:      "mg",
		Active:    true,
		CreatedAt: time.Now(),
	}
	require.NoError(t, b.AddMedicine(medicine))

	return user, medicine
}

func TestUsers(t *testing.T) {
	b := newTestBadger(t)
	ctx := context.Background()
	user, _ := addTestMedicine(t, b)

	got, err := b.GetUser("alice")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, user.ID, got.ID)

	missing, err := b.GetUser("bob")
	require.NoError(t, err)
	assert.Nil(t, missing)

	assert.Error(t, b.AddUser(&User{ID: uuid.New(), Name: "alice"}))

	found, err := b.FindUser(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, "alice", found.Name)

	_, err = b.FindUser(ctx, uuid.New())
	assert.True(t, errors.Is(err, apperr.ErrUserNotFound))

	users, err := b.ListUsers()
	require.NoError(t, err)
	assert.Len(t, users, 1)
}

func TestMedicines(t *testing.T) {
	b := newTestBadger(t)
	ctx := context.Background()
	user, medicine := addTestMedicine(t, b)

	inactive := &Medicine{IDUser: user.ID, ID: uuid.New(), Name: "Retired", Active: false}
	require.NoError(t, b.AddMedicine(inactive))

	all, err := b.ListMedicinesForUser(user)
	require.NoError(t, err)
	assert.Len(t, all, 2)

	active, err := b.ListActiveMedicines(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, medicine.ID, active[0].ID)

	found, err := b.FindMedicine(ctx, medicine.ID)
	require.NoError(t, err)
	assert.Equal(t, "Aspirin", found.Name)

	_, err = b.FindMedicine(ctx, uuid.New())
	assert.True(t, errors.Is(err, apperr.ErrMedicineNotFound))

	assert.Error(t, b.AddMedicine(&Medicine{IDUser: uuid.New(), ID: uuid.New(), Name: "Orphan"}))
}

func TestListDueSchedules(t *testing.T) {
	b := newTestBadger(t)
	ctx := context.Background()
	_, medicine := addTestMedicine(t, b)

	eight := TimeOfDay{Hour: 8}
	daily := &Schedule{IDMedicine: medicine.ID, ID: uuid.New(), TimeOfDay: eight, Frequency: FrequencyDaily, Active: true}
	mwf := &Schedule{IDMedicine: medicine.ID, ID: uuid.New(), TimeOfDay: eight, Frequency: FrequencyWeekly, Weekdays: []int{1, 3, 5}, Active: true}
	anyDay := &Schedule{IDMedicine: medicine.ID, ID: uuid.New(), TimeOfDay: eight, Frequency: FrequencyWeekly, Active: true}
	inactive := &Schedule{IDMedicine: medicine.ID, ID: uuid.New(), TimeOfDay: eight, Frequency: FrequencyDaily, Active: false}
	evening := &Schedule{IDMedicine: medicine.ID, ID: uuid.New(), TimeOfDay: TimeOfDay{Hour: 20}, Frequency: FrequencyDaily, Active: true}

	for _, schedule := range []*Schedule{daily, mwf, anyDay, inactive, evening} {
		require.NoError(t, b.AddSchedule(schedule))
	}

	ids := func(schedules []*Schedule) []uuid.UUID {
		out := make([]uuid.UUID, 0, len(schedules))
		for _, schedule := range schedules {
			out = append(out, schedule.ID)
		}
		return out
	}

	monday, err := b.ListDueSchedules(ctx, eight, 1)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{daily.ID, mwf.ID, anyDay.ID}, ids(monday))

	tuesday, err := b.ListDueSchedules(ctx, eight, 2)
	require.NoError(t, err)
	assert.ElementsMatch(t, []uuid.UUID{daily.ID, anyDay.ID}, ids(tuesday))

	none, err := b.ListDueSchedules(ctx, TimeOfDay{Hour: 8, Minute: 1}, 1)
	require.NoError(t, err)
	assert.Empty(t, none)

	forMedicine, err := b.ListSchedulesForMedicine(medicine)
	require.NoError(t, err)
	assert.Len(t, forMedicine, 5)
}

func TestAddScheduleRejectsInvalid(t *testing.T) {
	b := newTestBadger(t)
	_, medicine := addTestMedicine(t, b)

	err := b.AddSchedule(&Schedule{IDMedicine: medicine.ID, ID: uuid.New(), Frequency: FrequencyWeekly, Weekdays: []int{}, Active: true})
	assert.True(t, errors.Is(err, ErrInvalidSchedule))

	err = b.AddSchedule(&Schedule{IDMedicine: uuid.New(), ID: uuid.New(), Frequency: FrequencyDaily, Active: true})
	assert.Error(t, err)
}

func TestInsertLogIsUniquePerSlot(t *testing.T) {
	b := newTestBadger(t)
	ctx := context.Background()
	_, medicine := addTestMedicine(t, b)

	loc := time.FixedZone("JST", 9*3600)
	scheduled := time.Date(2026, 10, 14, 8, 0, 0, 0, loc)

	existing, err := b.FindLog(ctx, medicine.ID, scheduled)
	require.NoError(t, err)
	assert.Nil(t, existing)

	first := &Log{IDMedicine: medicine.ID, ID: uuid.New(), ScheduledTime: scheduled, Status: StatusPending}
	require.NoError(t, b.InsertLog(ctx, first))

	second := &Log{IDMedicine: medicine.ID, ID: uuid.New(), ScheduledTime: scheduled, Status: StatusPending}
	assert.ErrorIs(t, b.InsertLog(ctx, second), ErrLogExists)

	found, err := b.FindLog(ctx, medicine.ID, scheduled.UTC())
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, first.ID, found.ID)
}

func TestInsertLogConcurrent(t *testing.T) {
	b := newTestBadger(t)
	ctx := context.Background()
	_, medicine := addTestMedicine(t, b)

	scheduled := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		created int
	)

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			err := b.InsertLog(ctx, &Log{IDMedicine: medicine.ID, ID: uuid.New(), ScheduledTime: scheduled, Status: StatusPending})
			if err == nil {
				mu.Lock()
				created++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, created)

	logs, err := b.ListLogs(ctx, []uuid.UUID{medicine.ID}, scheduled, scheduled)
	require.NoError(t, err)
	assert.Len(t, logs, 1)
}

func TestTransitionLogStatus(t *testing.T) {
	b := newTestBadger(t)
	ctx := context.Background()
	_, medicine := addTestMedicine(t, b)

	scheduled := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
	log := &Log{IDMedicine: medicine.ID, ID: uuid.New(), ScheduledTime: scheduled, Status: StatusPending}
	require.NoError(t, b.InsertLog(ctx, log))

	pending, err := b.ListPendingLogs(ctx, scheduled.Add(-time.Minute), scheduled.Add(time.Minute))
	require.NoError(t, err)
	assert.Len(t, pending, 1)

	missed, err := b.TransitionLogStatus(ctx, log.ID, StatusMissed, nil, StatusPending)
	require.NoError(t, err)
	assert.Equal(t, StatusMissed, missed.Status)

	_, err = b.TransitionLogStatus(ctx, log.ID, StatusMissed, nil, StatusPending)
	assert.ErrorIs(t, err, ErrStatusConflict)

	pending, err = b.ListPendingLogs(ctx, scheduled.Add(-time.Minute), scheduled.Add(time.Minute))
	require.NoError(t, err)
	assert.Empty(t, pending)

	takenAt := scheduled.Add(45 * time.Minute)
	taken, err := b.MarkLogTaken(ctx, log.ID, takenAt)
	require.NoError(t, err)
	assert.Equal(t, StatusCompleted, taken.Status)
	require.NotNil(t, taken.TakenTime)
	assert.True(t, takenAt.Equal(*taken.TakenTime))

	_, err = b.MarkLogTaken(ctx, log.ID, takenAt)
	assert.ErrorIs(t, err, ErrStatusConflict)

	_, err = b.MarkLogTaken(ctx, uuid.New(), takenAt)
	assert.ErrorIs(t, err, ErrLogNotFound)
}

func TestListPendingLogsWindow(t *testing.T) {
	b := newTestBadger(t)
	ctx := context.Background()
	_, medicine := addTestMedicine(t, b)

	base := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
	for _, offset := range []time.Duration{-time.Hour, -5 * time.Minute, 0, 5 * time.Minute, time.Hour} {
		require.NoError(t, b.InsertLog(ctx, &Log{IDMedicine: medicine.ID, ID: uuid.New(), ScheduledTime: base.Add(offset), Status: StatusPending}))
	}

	logs, err := b.ListPendingLogs(ctx, base.Add(-5*time.Minute), base.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Len(t, logs, 3)
}

func TestListLogsRange(t *testing.T) {
	b := newTestBadger(t)
	ctx := context.Background()
	user, medicine := addTestMedicine(t, b)

	other := &Medicine{IDUser: user.ID, ID: uuid.New(), Name: "Metformin", Active: true}
	require.NoError(t, b.AddMedicine(other))

	day := time.Date(2026, 10, 14, 0, 0, 0, 0, time.UTC)
	for _, medicineID := range []uuid.UUID{medicine.ID, other.ID} {
		for _, hour := range []int{8, 20} {
			require.NoError(t, b.InsertLog(ctx, &Log{IDMedicine: medicineID, ID: uuid.New(), ScheduledTime: day.Add(time.Duration(hour) * time.Hour), Status: StatusPending}))
		}
		require.NoError(t, b.InsertLog(ctx, &Log{IDMedicine: medicineID, ID: uuid.New(), ScheduledTime: day.AddDate(0, 0, 1).Add(8 * time.Hour), Status: StatusPending}))
	}

	endOfDay := day.Add(23*time.Hour + 59*time.Minute + 59*time.Second)

	logs, err := b.ListLogs(ctx, []uuid.UUID{medicine.ID}, day, endOfDay)
	require.NoError(t, err)
	assert.Len(t, logs, 2)

	logs, err = b.ListLogs(ctx, []uuid.UUID{medicine.ID, other.ID}, day, endOfDay)
	require.NoError(t, err)
	assert.Len(t, logs, 4)

	logs, err = b.ListLogs(ctx, nil, day, endOfDay)
	require.NoError(t, err)
	assert.Empty(t, logs)
}

func TestCanceledContext(t *testing.T) {
	b := newTestBadger(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := b.ListDueSchedules(ctx, TimeOfDay{Hour: 8}, 1)
	assert.True(t, errors.Is(err, apperr.ErrStoreUnavailable))
}

func TestDeliveries(t *testing.T) {
	b := newTestBadger(t)
	ctx := context.Background()

	start := time.Date(2026, 10, 14, 8, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		require.NoError(t, b.RecordDelivery(ctx, &Delivery{
			ID:          uuid.New(),
			Recipient:   "recipient",
			Kind:        "medication_reminder",
			DeliveredAt: start.Add(time.Duration(i) * time.Minute),
		}))
	}

	deliveries, err := b.ListDeliveries(2)
	require.NoError(t, err)
	require.Len(t, deliveries, 2)
	assert.True(t, deliveries[0].DeliveredAt.After(deliveries[1].DeliveredAt))

	all, err := b.ListDeliveries(0)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
