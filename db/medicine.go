package db

import (
	"time"

	"github.com/google/uuid"
)

// Medicine information for a user
type Medicine struct {
	IDUser    uuid.UUID `json:"id_user"`
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Dosage    string    `json:"dosage,omitempty"`
	Unit      string    `json:"unit,omitempty"`
	Active    bool      `json:"active"`
	CreatedAt time.Time `json:"created_at"`
}

func (m *Medicine) badgerKey() []byte {
	return append(append([]byte("medicine:"), m.IDUser[:]...), m.ID[:]...)
}

func badgerPrefixKeyForMedicineUser(userID uuid.UUID) []byte {
	return append([]byte("medicine:"), userID[:]...)
}

func badgerIndexKeyForMedicineID(id uuid.UUID) []byte {
	return append([]byte("medicine_id:"), id[:]...)
}
