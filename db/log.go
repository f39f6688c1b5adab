package db

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

// Status of a dose log
type Status string

const (
	// StatusPending doses are waiting to be taken
	StatusPending Status = "pending"
	// StatusCompleted doses were taken
	StatusCompleted Status = "completed"
	// StatusMissed doses were not taken within the grace window
	StatusMissed Status = "missed"
	// StatusSkipped doses were deliberately skipped
	StatusSkipped Status = "skipped"
)

// Log of one scheduled dose. A log is unique per (IDMedicine, ScheduledTime).
type Log struct {
	IDMedicine    uuid.UUID  `json:"id_medicine"`
	ID            uuid.UUID  `json:"id"`
	ScheduledTime time.Time  `json:"scheduled_time"`
	TakenTime     *time.Time `json:"taken_time,omitempty"`
	Status        Status     `json:"status"`
	Notes         string     `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
}

// natural key: log:<medicine id><scheduled unix seconds, big endian>
func (l *Log) badgerKey() []byte {
	return badgerKeyForLog(l.IDMedicine, l.ScheduledTime)
}

func badgerKeyForLog(medicineID uuid.UUID, scheduled time.Time) []byte {
	return append(badgerPrefixKeyForLogMedicine(medicineID), unixKey(scheduled)...)
}

func badgerPrefixKeyForLogMedicine(medicineID uuid.UUID) []byte {
	return append([]byte("log:"), medicineID[:]...)
}

func badgerIndexKeyForLogID(id uuid.UUID) []byte {
	return append([]byte("log_id:"), id[:]...)
}

var badgerPrefixLogPending = []byte("log_pending:")

func (l *Log) badgerPendingKey() []byte {
	return append(append(append([]byte{}, badgerPrefixLogPending...), unixKey(l.ScheduledTime)...), l.ID[:]...)
}

func unixKey(t time.Time) []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(t.Unix()))

	return key
}

func unixFromKey(key []byte) int64 {
	return int64(binary.BigEndian.Uint64(key))
}
