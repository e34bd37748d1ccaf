package domain

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Op is the kind of change a history entry records.
type Op string

const (
	OpInsert Op = "insert"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Change is one record-level mutation inside a Transaction.
//
// Inserts carry the full record in Record. Updates carry only the changed
// properties in Fields. Deletes carry neither. TripID is the owning trip
// (uuid.Nil for wishlist items) so stores can index and import by trip.
// Store is the location of the store the record lives in.
type Change struct {
	Ref    Ref             `json:"ref"`
	Op     Op              `json:"op"`
	TripID uuid.UUID       `json:"trip_id"`
	Store  string          `json:"store"`
	Parent *Ref            `json:"parent,omitempty"`
	Record json.RawMessage `json:"record,omitempty"`
	Fields Fields          `json:"fields,omitempty"`
}

// Transaction is a batch of changes committed atomically by one author.
// Token is assigned by the store and advances monotonically; it is the
// history cursor value.
type Transaction struct {
	Token     int64     `json:"token"`
	Author    string    `json:"author"`
	CreatedAt time.Time `json:"created_at"`
	Changes   []Change  `json:"changes"`
}
