package db

import (
	"encoding/binary"
	"time"

	"github.com/google/uuid"
)

// Delivery audit entry for a notification accepted by the gateway
type Delivery struct {
	ID          uuid.UUID  `json:"id"`
	Recipient   string     `json:"recipient"`
	Kind        string     `json:"kind"`
	IDMedicine  *uuid.UUID `json:"id_medicine,omitempty"`
	IDLog       *uuid.UUID `json:"id_log,omitempty"`
	DryRun      bool       `json:"dry_run,omitempty"`
	DeliveredAt time.Time  `json:"delivered_at"`
}

var badgerPrefixDelivery = []byte("delivery:")

func (d *Delivery) badgerKey() []byte {
	key := make([]byte, 8)
	binary.BigEndian.PutUint64(key, uint64(d.DeliveredAt.UnixNano()))

	return append(append(append([]byte{}, badgerPrefixDelivery...), key...), d.ID[:]...)
}
